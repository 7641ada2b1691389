package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var shiftStart = time.Date(2021, 5, 1, 12, 0, 0, 0, time.UTC)

func entryWithValue(name string, value float64, destroyed bool) Entry {
	return Entry{
		ObjectName: name,
		Value:      value,
		Destroyed:  destroyed,
		SystemTime: shiftStart,
	}
}

func TestShift_TotalsPartitionByDestroyed(t *testing.T) {
	s := NewShift("shift-1", shiftStart)

	entries := []Entry{
		entryWithValue("Pipe", 4.20, false),
		entryWithValue("Panel", 10.00, false),
		entryWithValue("Reactor", 250.50, true),
		entryWithValue("Chair", 1.25, true),
		entryWithValue("Strut", 0, false),
	}
	var sum float64
	for _, e := range entries {
		require.NoError(t, s.Append(e))
		sum += e.Value
	}

	salvaged, destroyed := s.Totals()
	assert.InDelta(t, 14.20, salvaged, 1e-9)
	assert.InDelta(t, 251.75, destroyed, 1e-9)
	assert.InDelta(t, sum, salvaged+destroyed, 1e-9,
		"salvaged and destroyed must partition the total")
}

func TestShift_AppendAfterEnd(t *testing.T) {
	s := NewShift("shift-1", shiftStart)
	require.NoError(t, s.Append(entryWithValue("Pipe", 4.20, false)))

	s.End("complete", shiftStart.Add(25*time.Minute))

	err := s.Append(entryWithValue("Straggler", 99, false))
	require.ErrorIs(t, err, ErrShiftEnded)

	// The frozen ledger is untouched.
	assert.Equal(t, 1, s.Len())
	salvaged, _ := s.Totals()
	assert.InDelta(t, 4.20, salvaged, 1e-9)
}

func TestShift_EndIsIdempotent(t *testing.T) {
	s := NewShift("shift-1", shiftStart)

	first := shiftStart.Add(10 * time.Minute)
	s.End("complete", first)
	s.End("abort", shiftStart.Add(20*time.Minute))

	v := s.Snapshot()
	assert.Equal(t, first, v.EndedAt)
	assert.Equal(t, "complete", v.ExitCause)
}

func TestShift_SetRaceInfoTwice(t *testing.T) {
	s := NewShift("shift-1", shiftStart)

	info := RaceInfo{Seed: 1234, Version: 3, StartDateUTC: "2021-04-26", MaxTotalValue: 5000000, MaxSalvageMass: 250000}
	require.NoError(t, s.SetRaceInfo(info))

	err := s.SetRaceInfo(RaceInfo{Seed: 9999})
	require.ErrorIs(t, err, ErrRaceInfoSet)

	got := s.RaceInfo()
	require.NotNil(t, got)
	assert.Equal(t, info, *got, "first call's values survive the rejected second call")
}

func TestShift_AppendCopiesCategories(t *testing.T) {
	s := NewShift("shift-1", shiftStart)

	categories := []string{"scrap"}
	require.NoError(t, s.Append(Entry{ObjectName: "Pipe", Categories: categories}))
	categories[0] = "mutated"

	v := s.Snapshot()
	assert.Equal(t, []string{"scrap"}, v.Entries[0].Categories)
}

func TestView_TopDestroyed(t *testing.T) {
	s := NewShift("shift-1", shiftStart)

	// Values [5,3,3,9,1,9,2]; the two 9s must keep insertion order.
	values := []float64{5, 3, 3, 9, 1, 9, 2}
	names := []string{"a", "b", "c", "first-nine", "e", "second-nine", "g"}
	for i, v := range values {
		require.NoError(t, s.Append(entryWithValue(names[i], v, true)))
	}
	// A salvaged entry never shows up in the destroyed report.
	require.NoError(t, s.Append(entryWithValue("kept", 1000, false)))

	top := s.Snapshot().TopDestroyed(5)
	require.Len(t, top, 5)

	gotValues := make([]float64, len(top))
	for i, e := range top {
		gotValues[i] = e.Value
	}
	assert.Equal(t, []float64{9, 9, 5, 3, 3}, gotValues)
	assert.Equal(t, "first-nine", top[0].ObjectName)
	assert.Equal(t, "second-nine", top[1].ObjectName)
}

func TestView_TopDestroyed_FewerThanK(t *testing.T) {
	s := NewShift("shift-1", shiftStart)
	require.NoError(t, s.Append(entryWithValue("only", 7, true)))

	top := s.Snapshot().TopDestroyed(5)
	assert.Len(t, top, 1)
}

func TestView_SnapshotIsolation(t *testing.T) {
	s := NewShift("shift-1", shiftStart)
	require.NoError(t, s.Append(entryWithValue("Pipe", 4.20, false)))

	v := s.Snapshot()
	require.NoError(t, s.Append(entryWithValue("Panel", 10, false)))

	assert.Len(t, v.Entries, 1, "snapshot does not track later appends")
	v.Entries[0].ObjectName = "mutated"
	assert.Equal(t, "Pipe", s.Snapshot().Entries[0].ObjectName)
}

func TestView_Duration(t *testing.T) {
	s := NewShift("shift-1", shiftStart)
	assert.Zero(t, s.Snapshot().Duration(), "active shift has no duration yet")

	s.End("complete", shiftStart.Add(25*time.Minute))
	assert.Equal(t, 25*time.Minute, s.Snapshot().Duration())
}
