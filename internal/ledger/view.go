package ledger

import (
	"sort"
	"time"
)

// View is an immutable snapshot of a shift, safe to hand to the persistence
// and archive layers. The entry slice is a copy; mutating it cannot reach
// the shift.
type View struct {
	ID             string
	StartedAt      time.Time
	EndedAt        time.Time
	ExitCause      string
	RaceInfo       *RaceInfo
	Entries        []Entry
	ValueSalvaged  float64
	ValueDestroyed float64
}

// Snapshot captures the shift's current state as a View.
func (s *Shift) Snapshot() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, len(s.entries))
	copy(entries, s.entries)

	var raceInfo *RaceInfo
	if s.raceInfo != nil {
		info := *s.raceInfo
		raceInfo = &info
	}

	var salvaged, destroyed float64
	for _, e := range s.entries {
		if e.Destroyed {
			destroyed += e.Value
		} else {
			salvaged += e.Value
		}
	}

	return View{
		ID:             s.id,
		StartedAt:      s.startedAt,
		EndedAt:        s.endedAt,
		ExitCause:      s.exitCause,
		RaceInfo:       raceInfo,
		Entries:        entries,
		ValueSalvaged:  salvaged,
		ValueDestroyed: destroyed,
	}
}

// Duration is the shift length, or zero while the shift is still active.
func (v View) Duration() time.Duration {
	if v.EndedAt.IsZero() {
		return 0
	}
	return v.EndedAt.Sub(v.StartedAt)
}

// TopDestroyed returns the k highest-value destroyed entries. Ties keep
// insertion order (stable sort), so of two equal-value losses the earlier
// one lists first.
func (v View) TopDestroyed(k int) []Entry {
	destroyed := make([]Entry, 0, len(v.Entries))
	for _, e := range v.Entries {
		if e.Destroyed {
			destroyed = append(destroyed, e)
		}
	}

	sort.SliceStable(destroyed, func(i, j int) bool {
		return destroyed[i].Value > destroyed[j].Value
	})

	if k < len(destroyed) {
		destroyed = destroyed[:k]
	}
	return destroyed
}
