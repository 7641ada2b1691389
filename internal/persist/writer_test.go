package persist

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breakyard/shiftledger/internal/ledger"
)

var flushStart = time.Date(2021, 5, 1, 12, 0, 0, 0, time.UTC)

// basicView is the canonical single-entry shift: one mass-based Pipe worth
// $4.20, nothing destroyed.
func basicView(t *testing.T) ledger.View {
	t.Helper()
	s := ledger.NewShift("shift-1", flushStart)
	require.NoError(t, s.Append(ledger.Entry{
		ObjectName:     "Pipe",
		Mass:           12.5,
		Categories:     []string{"scrap"},
		SalvagedBy:     "Furnace",
		Value:          4.20,
		MassBasedValue: true,
		Destroyed:      false,
		GameTime:       30.0,
		SystemTime:     flushStart.Add(30 * time.Second),
	}))
	s.End("complete", flushStart.Add(25*time.Minute))
	return s.Snapshot()
}

// raceView adds destroyed entries and race metadata.
func raceView(t *testing.T) ledger.View {
	t.Helper()
	s := ledger.NewShift("shift-2", flushStart)
	require.NoError(t, s.SetRaceInfo(ledger.RaceInfo{
		Seed:           1234,
		Version:        3,
		StartDateUTC:   "2021-04-26",
		MaxTotalValue:  5000000,
		MaxSalvageMass: 250000,
	}))
	require.NoError(t, s.Append(ledger.Entry{
		ObjectName:     "Pipe",
		Mass:           12.5,
		Categories:     []string{"scrap"},
		SalvagedBy:     "Furnace",
		Value:          4.20,
		MassBasedValue: true,
		GameTime:       30.0,
		SystemTime:     flushStart.Add(30 * time.Second),
	}))
	require.NoError(t, s.Append(ledger.Entry{
		ObjectName: "Reactor Core",
		Mass:       500,
		Categories: []string{"hazard", "valuable"},
		SalvagedBy: "Processor",
		Value:      250.50,
		Destroyed:  true,
		GameTime:   60.0,
		SystemTime: flushStart.Add(time.Minute),
	}))
	require.NoError(t, s.Append(ledger.Entry{
		ObjectName:     "Chair",
		Mass:           3,
		Categories:     []string{"scrap"},
		SalvagedBy:     "Furnace",
		Value:          1.25,
		MassBasedValue: true,
		Destroyed:      true,
		GameTime:       90.0,
		SystemTime:     flushStart.Add(90 * time.Second),
	}))
	s.End("complete", flushStart.Add(25*time.Minute+30*time.Second))
	return s.Snapshot()
}

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestRenderSummary_Basic(t *testing.T) {
	newGoldie(t).Assert(t, "summary_basic", RenderSummary(basicView(t)))
}

func TestRenderSummary_Race(t *testing.T) {
	newGoldie(t).Assert(t, "summary_race", RenderSummary(raceView(t)))
}

func TestRenderLedger_Race(t *testing.T) {
	b, err := RenderLedger(raceView(t))
	require.NoError(t, err)
	newGoldie(t).Assert(t, "ledger_race", b)
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "20210501T120000", BaseName(basicView(t)))
	assert.Equal(t, "RACE4-20210501T120000", BaseName(raceView(t)))
}

func TestFlush_WritesBothFiles(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	require.NoError(t, w.Flush(basicView(t)))

	summary, err := os.ReadFile(filepath.Join(dir, "20210501T120000_summary.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "Total value salvaged: $4.20")
	assert.Contains(t, string(summary), "Total value destroyed: $0.00")

	entries, err := ReadLedger(filepath.Join(dir, "20210501T120000_ledger.csv"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "the ledger has exactly one data row")
	assert.Equal(t, "Pipe", entries[0].ObjectName)

	// No stray temp files once the flush lands.
	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestFlush_SecondRenameFailureLeavesNoTornPair(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	// A directory squatting on the ledger path makes its rename fail after
	// the summary rename already succeeded.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "20210501T120000_ledger.csv"), 0o755))

	require.Error(t, w.Flush(basicView(t)))

	_, err := os.Stat(filepath.Join(dir, "20210501T120000_summary.txt"))
	assert.True(t, os.IsNotExist(err), "no summary may land without its ledger")

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestFlush_MissingDirFailsCleanly(t *testing.T) {
	w := NewWriter(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, w.Flush(basicView(t)))
}

func TestReadLedger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	v := raceView(t)
	require.NoError(t, w.Flush(v))

	entries, err := ReadLedger(filepath.Join(dir, "RACE4-20210501T120000_ledger.csv"))
	require.NoError(t, err)
	require.Len(t, entries, len(v.Entries))

	for i, got := range entries {
		want := v.Entries[i]
		assert.Equal(t, want.ObjectName, got.ObjectName)
		assert.InDelta(t, want.Mass, got.Mass, 0.001)
		assert.Equal(t, want.Categories, got.Categories)
		assert.Equal(t, want.SalvagedBy, got.SalvagedBy)
		assert.InDelta(t, want.Value, got.Value, 0.01)
		assert.Equal(t, want.MassBasedValue, got.MassBasedValue)
		assert.Equal(t, want.Destroyed, got.Destroyed)
		assert.InDelta(t, want.GameTime, got.GameTime, 0.1)
		assert.Equal(t, want.SystemTime, got.SystemTime, "epoch millis round-trip exactly")
	}
}

func TestReadLedger_RejectsForeignHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b,c\n1,2,3\n"), 0o644))

	_, err := ReadLedger(path)
	require.Error(t, err)
}

func TestReadLedger_QuotedObjectName(t *testing.T) {
	dir := t.TempDir()
	s := ledger.NewShift("shift-3", flushStart)
	require.NoError(t, s.Append(ledger.Entry{
		ObjectName: "Panel, Reinforced",
		SalvagedBy: "PickUp",
		Value:      7,
		SystemTime: flushStart,
	}))
	s.End("complete", flushStart.Add(time.Minute))

	w := NewWriter(dir)
	require.NoError(t, w.Flush(s.Snapshot()))

	entries, err := ReadLedger(filepath.Join(dir, "20210501T120000_ledger.csv"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Panel, Reinforced", entries[0].ObjectName, "commas in names survive CSV quoting")
}
