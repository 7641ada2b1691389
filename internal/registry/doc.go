// Package registry owns the shift lifecycle and is the inbound API the host
// adapter calls.
//
// State machine per shift:
//
//	NoActiveShift -> ShiftActive -> ShiftEnding -> Retired
//
// At most one shift is Active at a time; StartShift while a shift is Active
// fails with ErrShiftActive rather than silently stacking shifts. A shift
// whose persistence is still in flight (ShiftEnding) does not block a new
// StartShift, so a rapid restart works while the previous shift flushes.
//
// Every accepted mutation is also published to the broadcaster, fire and
// forget: a slow or absent subscriber can never stall the capture path.
//
// The registry holds no global state. Collaborators (Publisher, Flusher,
// Archiver, clock, ID generator) are injected at construction.
package registry
