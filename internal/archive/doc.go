// Package archive keeps a queryable history of retired shifts in SQLite.
//
// The archive is strictly secondary to the flat-file ledger: a shift end
// that fails to archive still succeeds, and the database can always be
// rebuilt from the CSV ledgers on disk.
package archive
