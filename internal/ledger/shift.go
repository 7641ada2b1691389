package ledger

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrShiftEnded reports an append against a frozen shift. Callers treat
	// this as a soft failure: log and drop, never crash the capture path.
	ErrShiftEnded = errors.New("shift already ended")

	// ErrRaceInfoSet reports a second SetRaceInfo on the same shift. Race
	// info is immutable once set.
	ErrRaceInfoSet = errors.New("race info already set")
)

// Entry is one salvage ledger row. Entries are immutable once appended.
type Entry struct {
	ObjectName     string
	Mass           float64
	Categories     []string
	SalvagedBy     string
	Value          float64
	MassBasedValue bool
	Destroyed      bool
	GameTime       float64
	SystemTime     time.Time
}

// RaceInfo is the weekly-race metadata block, set at most once per shift.
type RaceInfo struct {
	Seed           int
	Version        int
	StartDateUTC   string
	MaxTotalValue  int
	MaxSalvageMass int
}

// Shift is one bounded gameplay session's ledger.
//
// Mutation is serialized by an internal mutex; total/top-k queries take a
// read lock and may run concurrently with each other.
type Shift struct {
	mu        sync.RWMutex
	id        string
	startedAt time.Time
	endedAt   time.Time // zero while the shift is active
	exitCause string
	raceInfo  *RaceInfo
	entries   []Entry
}

// NewShift creates an active shift started at the given time.
func NewShift(id string, startedAt time.Time) *Shift {
	return &Shift{id: id, startedAt: startedAt}
}

// ID returns the shift identifier.
func (s *Shift) ID() string { return s.id }

// StartedAt returns the shift start timestamp.
func (s *Shift) StartedAt() time.Time { return s.startedAt }

// Ended reports whether the shift has been frozen.
func (s *Shift) Ended() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.endedAt.IsZero()
}

// Append adds an entry to the ledger. Returns ErrShiftEnded once the shift
// is frozen; the entry's category slice is copied so later caller mutation
// cannot reach the ledger.
func (s *Shift) Append(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.endedAt.IsZero() {
		return ErrShiftEnded
	}

	if e.Categories != nil {
		categories := make([]string, len(e.Categories))
		copy(categories, e.Categories)
		e.Categories = categories
	}
	s.entries = append(s.entries, e)
	return nil
}

// SetRaceInfo records the race metadata. The second call fails with
// ErrRaceInfoSet and leaves the first values unchanged; a call on a frozen
// shift fails with ErrShiftEnded.
func (s *Shift) SetRaceInfo(info RaceInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.endedAt.IsZero() {
		return ErrShiftEnded
	}
	if s.raceInfo != nil {
		return ErrRaceInfoSet
	}
	s.raceInfo = &info
	return nil
}

// RaceInfo returns a copy of the race metadata, or nil if unset.
func (s *Shift) RaceInfo() *RaceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.raceInfo == nil {
		return nil
	}
	info := *s.raceInfo
	return &info
}

// End freezes the shift. Idempotent: the first call wins, later calls keep
// the original end time and cause.
func (s *Shift) End(exitCause string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.endedAt.IsZero() {
		return
	}
	s.endedAt = at
	s.exitCause = exitCause
}

// Totals returns the salvaged and destroyed value sums. The two sums
// partition entries disjointly by the Destroyed flag.
func (s *Shift) Totals() (salvaged, destroyed float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.Destroyed {
			destroyed += e.Value
		} else {
			salvaged += e.Value
		}
	}
	return salvaged, destroyed
}

// Len returns the number of entries appended so far.
func (s *Shift) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
