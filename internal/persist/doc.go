// Package persist renders a frozen shift to its two durable artifacts: a
// machine-readable salvage ledger (CSV) and a human-readable shift summary.
//
// Writes are all-or-nothing: both files render in memory first, land as
// .tmp files, and only then rename into place, so a failure partway never
// leaves a torn ledger behind. File names derive deterministically from
// shift identity ({RACE<week>-}?<startUTC>_ledger.csv / _summary.txt), so
// re-running a flush can never silently overwrite a differently-started
// shift.
package persist
