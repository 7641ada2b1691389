package persist

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/breakyard/shiftledger/internal/event"
	"github.com/breakyard/shiftledger/internal/ledger"
)

const separator = "--------------------------------------"

// ledgerHeader is the fixed CSV column contract; external chart viewers
// parse it by name.
var ledgerHeader = []string{
	"objectName", "mass", "categories", "salvagedBy", "value",
	"massBasedValue", "destroyed", "gameTime", "epochTimeMs",
}

// Writer persists frozen shifts into a data directory.
type Writer struct {
	dataDir string
}

// NewWriter creates a Writer rooted at dataDir. The directory must exist.
func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// BaseName derives the shift's file name stem: an optional RACE<week>-
// prefix followed by the UTC start timestamp, e.g.
// "RACE4-20210501T120000".
func BaseName(v ledger.View) string {
	var b strings.Builder
	if v.RaceInfo != nil {
		fmt.Fprintf(&b, "RACE%d-", v.RaceInfo.Version+1)
	}
	b.WriteString(v.StartedAt.UTC().Format("20060102T150405"))
	return b.String()
}

// Flush writes the ledger CSV and summary for a frozen shift, atomically
// and all-or-nothing. On any error no new file is left in place and the
// caller should retain the shift for a retry.
func (w *Writer) Flush(v ledger.View) error {
	ledgerBytes, err := RenderLedger(v)
	if err != nil {
		return fmt.Errorf("render ledger: %w", err)
	}
	summaryBytes := RenderSummary(v)

	base := BaseName(v)
	summaryPath := filepath.Join(w.dataDir, base+"_summary.txt")
	ledgerPath := filepath.Join(w.dataDir, base+"_ledger.csv")
	slog.Info("writing shift summary and ledger",
		"summary", summaryPath, "ledger", ledgerPath)

	if err := writeAtomicPair(
		summaryPath, summaryBytes,
		ledgerPath, ledgerBytes,
	); err != nil {
		return err
	}

	slog.Info("shift summary and ledger written", "base", base)
	return nil
}

// writeAtomicPair lands two files together: both .tmp files must be written
// before either rename happens, and any failure cleans up the temp files. If
// the second rename fails the first file is removed again, so the pair is
// all-or-nothing on disk; the caller retains the shift and retries.
func writeAtomicPair(pathA string, dataA []byte, pathB string, dataB []byte) error {
	tmpA, tmpB := pathA+".tmp", pathB+".tmp"

	cleanup := func() {
		_ = os.Remove(tmpA)
		_ = os.Remove(tmpB)
	}

	if err := os.WriteFile(tmpA, dataA, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("write %s: %w", tmpA, err)
	}
	if err := os.WriteFile(tmpB, dataB, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("write %s: %w", tmpB, err)
	}
	if err := os.Rename(tmpA, pathA); err != nil {
		cleanup()
		return fmt.Errorf("rename %s: %w", tmpA, err)
	}
	if err := os.Rename(tmpB, pathB); err != nil {
		_ = os.Remove(pathA)
		cleanup()
		return fmt.Errorf("rename %s: %w", tmpB, err)
	}
	return nil
}

// RenderLedger renders the salvage ledger CSV: the fixed header, then one
// row per entry in insertion order. Categories join with ';' (distinct from
// the field delimiter); timestamps render as UTC epoch milliseconds for a
// lossless round-trip.
func RenderLedger(v ledger.View) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	if err := cw.Write(ledgerHeader); err != nil {
		return nil, err
	}
	for _, e := range v.Entries {
		row := []string{
			e.ObjectName,
			strconv.FormatFloat(e.Mass, 'f', 3, 64),
			strings.Join(e.Categories, ";"),
			e.SalvagedBy,
			strconv.FormatFloat(e.Value, 'f', 2, 64),
			strconv.FormatBool(e.MassBasedValue),
			strconv.FormatBool(e.Destroyed),
			strconv.FormatFloat(e.GameTime, 'f', 1, 64),
			strconv.FormatInt(e.SystemTime.UTC().UnixMilli(), 10),
		}
		if err := cw.Write(row); err != nil {
			return nil, err
		}
	}
	cw.Flush()
	return buf.Bytes(), cw.Error()
}

// RenderSummary renders the human-readable shift report. Not meant for
// round-trip parsing; large race numbers get thousands separators.
func RenderSummary(v ledger.View) []byte {
	p := message.NewPrinter(language.English)
	var b strings.Builder

	fmt.Fprintf(&b, "Started: %s\n", v.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Ended: %s\n", v.EndedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "EndedBy: %s\n", v.ExitCause)
	fmt.Fprintf(&b, "Duration: %s\n", v.Duration())
	fmt.Fprintf(&b, "Total value salvaged: $%.2f\n", v.ValueSalvaged)
	fmt.Fprintf(&b, "Total value destroyed: $%.2f\n", v.ValueDestroyed)
	fmt.Fprintf(&b, "RACE?: %t\n", v.RaceInfo != nil)
	if v.RaceInfo != nil {
		b.WriteString("\n")
		b.WriteString("RACE Info\n")
		b.WriteString(separator + "\n")
		fmt.Fprintf(&b, "Seed: %d\n", v.RaceInfo.Seed)
		fmt.Fprintf(&b, "Version: %d (probably week %d)\n", v.RaceInfo.Version, v.RaceInfo.Version+1)
		fmt.Fprintf(&b, "Start date: %s\n", v.RaceInfo.StartDateUTC)
		fmt.Fprintf(&b, "Maximum possible salvage: $%s\n", p.Sprintf("%d", v.RaceInfo.MaxTotalValue))
		fmt.Fprintf(&b, "Total mass: %skg\n", p.Sprintf("%d", v.RaceInfo.MaxSalvageMass))
	}
	b.WriteString(separator + "\n")
	b.WriteString("Top 5 most valuable destroyed objects:\n")
	for _, e := range v.TopDestroyed(5) {
		b.WriteString(entryLine(e))
		b.WriteString("\n")
	}
	return []byte(b.String())
}

// entryLine renders one entry the way the live feed's String form does, so
// the report and the broadcast read the same.
func entryLine(e ledger.Entry) string {
	return event.SalvageRecorded{
		SystemTime:     e.SystemTime,
		ObjectName:     e.ObjectName,
		Mass:           e.Mass,
		Categories:     e.Categories,
		SalvagedBy:     e.SalvagedBy,
		Value:          e.Value,
		MassBasedValue: e.MassBasedValue,
		Destroyed:      e.Destroyed,
		GameTime:       e.GameTime,
	}.String()
}

// ReadLedger parses a persisted ledger CSV back into entries. Used by the
// replay and summarize commands, and by round-trip tests.
func ReadLedger(path string) ([]ledger.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cr := csv.NewReader(f)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: missing header row", path)
	}
	if got := records[0]; !equalHeader(got) {
		return nil, fmt.Errorf("%s: unexpected header %v", path, got)
	}

	entries := make([]ledger.Entry, 0, len(records)-1)
	for i, row := range records[1:] {
		e, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: %w", path, i+1, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func equalHeader(got []string) bool {
	if len(got) != len(ledgerHeader) {
		return false
	}
	for i, col := range ledgerHeader {
		if got[i] != col {
			return false
		}
	}
	return true
}

func parseRow(row []string) (ledger.Entry, error) {
	if len(row) != len(ledgerHeader) {
		return ledger.Entry{}, fmt.Errorf("expected %d fields, got %d", len(ledgerHeader), len(row))
	}

	mass, err := strconv.ParseFloat(row[1], 64)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("mass: %w", err)
	}
	value, err := strconv.ParseFloat(row[4], 64)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("value: %w", err)
	}
	massBased, err := strconv.ParseBool(row[5])
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("massBasedValue: %w", err)
	}
	destroyed, err := strconv.ParseBool(row[6])
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("destroyed: %w", err)
	}
	gameTime, err := strconv.ParseFloat(row[7], 64)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("gameTime: %w", err)
	}
	epochMs, err := strconv.ParseInt(row[8], 10, 64)
	if err != nil {
		return ledger.Entry{}, fmt.Errorf("epochTimeMs: %w", err)
	}

	var categories []string
	if row[2] != "" {
		categories = strings.Split(row[2], ";")
	}

	return ledger.Entry{
		ObjectName:     row[0],
		Mass:           mass,
		Categories:     categories,
		SalvagedBy:     row[3],
		Value:          value,
		MassBasedValue: massBased,
		Destroyed:      destroyed,
		GameTime:       gameTime,
		SystemTime:     time.UnixMilli(epochMs).UTC(),
	}, nil
}
