// Package ledger holds the per-shift salvage buffer.
//
// A Shift is an append-only, insertion-ordered log of salvage entries plus
// optional race metadata. Once a shift is ended the buffer freezes: late
// appends are rejected with ErrShiftEnded rather than corrupting the frozen
// log, because the event source is asynchronous and cannot be made to
// respect the boundary precisely.
//
// Derived totals partition entries disjointly by the Destroyed flag: an
// entry's value counts toward exactly one of the salvaged or destroyed
// totals.
//
// Readers never see shift internals; Snapshot produces an immutable View
// that the persistence and archive layers consume.
package ledger
