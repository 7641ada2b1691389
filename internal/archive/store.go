package archive

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/breakyard/shiftledger/internal/ledger"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added started_at index on shifts
const currentSchemaVersion = 1

// Store provides durable storage for retired shifts.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db *sql.DB
}

// ShiftSummary is one row of the shift history listing.
type ShiftSummary struct {
	ID             string
	StartedAt      time.Time
	EndedAt        time.Time
	ExitCause      string
	ValueSalvaged  float64
	ValueDestroyed float64
	Race           bool
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and the schema automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Archive stores a frozen shift and all its entries in one transaction.
// Re-archiving the same shift ID replaces the previous rows, so a retried
// shift end never produces duplicate history.
func (s *Store) Archive(v ledger.View) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin archive: %w", err)
	}
	defer tx.Rollback()

	var seed, version, maxValue, maxMass sql.NullInt64
	var startDate sql.NullString
	if v.RaceInfo != nil {
		seed = sql.NullInt64{Int64: int64(v.RaceInfo.Seed), Valid: true}
		version = sql.NullInt64{Int64: int64(v.RaceInfo.Version), Valid: true}
		startDate = sql.NullString{String: v.RaceInfo.StartDateUTC, Valid: true}
		maxValue = sql.NullInt64{Int64: int64(v.RaceInfo.MaxTotalValue), Valid: true}
		maxMass = sql.NullInt64{Int64: int64(v.RaceInfo.MaxSalvageMass), Valid: true}
	}

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO shifts (
			id, started_at_ms, ended_at_ms, exit_cause,
			value_salvaged, value_destroyed,
			race_seed, race_version, race_start_date, race_max_value, race_max_mass
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.StartedAt.UTC().UnixMilli(), v.EndedAt.UTC().UnixMilli(), v.ExitCause,
		v.ValueSalvaged, v.ValueDestroyed,
		seed, version, startDate, maxValue, maxMass,
	)
	if err != nil {
		return fmt.Errorf("insert shift %s: %w", v.ID, err)
	}

	// INSERT OR REPLACE on the parent does not cascade, clear explicitly.
	if _, err := tx.Exec(`DELETE FROM salvage_entries WHERE shift_id = ?`, v.ID); err != nil {
		return fmt.Errorf("clear entries for %s: %w", v.ID, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO salvage_entries (
			shift_id, seq, object_name, mass, categories, salvaged_by,
			value, mass_based_value, destroyed, game_time, system_time_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare entry insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range v.Entries {
		_, err := stmt.Exec(
			v.ID, i, e.ObjectName, e.Mass, strings.Join(e.Categories, ";"),
			e.SalvagedBy, e.Value, e.MassBasedValue, e.Destroyed,
			e.GameTime, e.SystemTime.UTC().UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("insert entry %d for %s: %w", i, v.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit archive for %s: %w", v.ID, err)
	}
	return nil
}

// ListShifts returns all archived shifts, most recently started first.
func (s *Store) ListShifts(ctx context.Context) ([]ShiftSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at_ms, ended_at_ms, exit_cause,
		       value_salvaged, value_destroyed, race_seed IS NOT NULL
		FROM shifts
		ORDER BY started_at_ms DESC`)
	if err != nil {
		return nil, fmt.Errorf("list shifts: %w", err)
	}
	defer rows.Close()

	var out []ShiftSummary
	for rows.Next() {
		var sum ShiftSummary
		var startedMs, endedMs int64
		if err := rows.Scan(&sum.ID, &startedMs, &endedMs, &sum.ExitCause,
			&sum.ValueSalvaged, &sum.ValueDestroyed, &sum.Race); err != nil {
			return nil, fmt.Errorf("scan shift: %w", err)
		}
		sum.StartedAt = time.UnixMilli(startedMs).UTC()
		sum.EndedAt = time.UnixMilli(endedMs).UTC()
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Entries returns one archived shift's salvage entries in insertion order.
func (s *Store) Entries(ctx context.Context, shiftID string) ([]ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT object_name, mass, categories, salvaged_by, value,
		       mass_based_value, destroyed, game_time, system_time_ms
		FROM salvage_entries
		WHERE shift_id = ?
		ORDER BY seq`, shiftID)
	if err != nil {
		return nil, fmt.Errorf("entries for %s: %w", shiftID, err)
	}
	defer rows.Close()

	var out []ledger.Entry
	for rows.Next() {
		var e ledger.Entry
		var categories string
		var systemMs int64
		if err := rows.Scan(&e.ObjectName, &e.Mass, &categories, &e.SalvagedBy,
			&e.Value, &e.MassBasedValue, &e.Destroyed, &e.GameTime, &systemMs); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if categories != "" {
			e.Categories = strings.Split(categories, ";")
		}
		e.SystemTime = time.UnixMilli(systemMs).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and stamps the schema
// version. Idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}

	return nil
}
