package registry

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/breakyard/shiftledger/internal/event"
	"github.com/breakyard/shiftledger/internal/ledger"
)

// Publisher delivers events to live subscribers, best effort. Publish must
// never block on subscriber I/O.
type Publisher interface {
	Publish(event.Record)
}

// Flusher persists a frozen shift durably. Flush is all-or-nothing from the
// registry's perspective.
type Flusher interface {
	Flush(v ledger.View) error
}

// Archiver records a persisted shift for later querying. Optional; archive
// failures are logged, never surfaced, because the flushed files are the
// durability contract.
type Archiver interface {
	Archive(v ledger.View) error
}

// Registry is the shift lifecycle state machine.
type Registry struct {
	pub      Publisher
	flusher  Flusher
	archiver Archiver
	now      func() time.Time
	newID    func() string

	mu     sync.RWMutex
	shifts []*ledger.Shift // oldest first; last = most recently started

	// flushMu serializes persistence runs so a retried EndShift cannot race
	// a still-running flush for the same shift.
	flushMu sync.Mutex
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the wall clock. Tests use a fixed clock.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithIDGenerator overrides shift ID generation. Tests use fixed IDs.
func WithIDGenerator(newID func() string) Option {
	return func(r *Registry) { r.newID = newID }
}

// WithArchiver attaches a shift archive.
func WithArchiver(a Archiver) Option {
	return func(r *Registry) { r.archiver = a }
}

// New creates a Registry. The publisher and flusher are required
// collaborators; pass a no-op publisher if broadcasting is disabled.
func New(pub Publisher, flusher Flusher, opts ...Option) *Registry {
	r := &Registry{
		pub:     pub,
		flusher: flusher,
		now:     time.Now,
		newID:   func() string { return uuid.Must(uuid.NewV7()).String() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// current returns the most recently started, not-yet-retired shift.
// Caller must hold at least a read lock.
func (r *Registry) current() *ledger.Shift {
	if len(r.shifts) == 0 {
		return nil
	}
	return r.shifts[len(r.shifts)-1]
}

// StartShift opens a new shift. Fails with ErrShiftActive while another
// shift is active; a shift still flushing (ShiftEnding) does not block.
func (r *Registry) StartShift() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur := r.current(); cur != nil && !cur.Ended() {
		return ErrShiftActive
	}

	now := r.now()
	s := ledger.NewShift(r.newID(), now)
	r.shifts = append(r.shifts, s)

	slog.Info("shift started", "shift_id", s.ID())
	r.pub.Publish(event.ShiftStarted{SystemTime: now})
	return nil
}

// SetRaceInfo records weekly-race metadata on the active shift. Valid only
// while the shift is active; a second call fails with
// ledger.ErrRaceInfoSet and leaves the first values unchanged.
func (r *Registry) SetRaceInfo(seed, version int, startDateUTC string, maxTotalValue, maxSalvageMass int) error {
	r.mu.RLock()
	s := r.current()
	r.mu.RUnlock()

	if s == nil {
		return ErrNoShift
	}

	info := ledger.RaceInfo{
		Seed:           seed,
		Version:        version,
		StartDateUTC:   startDateUTC,
		MaxTotalValue:  maxTotalValue,
		MaxSalvageMass: maxSalvageMass,
	}
	if err := s.SetRaceInfo(info); err != nil {
		if errors.Is(err, ledger.ErrShiftEnded) {
			return ErrNoShift
		}
		return err
	}

	now := r.now()
	slog.Info("race info set", "shift_id", s.ID(), "seed", seed, "version", version)
	r.pub.Publish(event.RaceInfoSet{
		SystemTime:     now,
		Seed:           seed,
		Version:        version,
		StartDateUTC:   startDateUTC,
		MaxTotalValue:  maxTotalValue,
		MaxSalvageMass: maxSalvageMass,
	})
	return nil
}

// AddSalvage appends one salvage entry to the active shift and broadcasts
// it.
//
// A late entry arriving after EndShift is dropped with a warning and a nil
// error: the event source is asynchronous and cannot respect the shift
// boundary precisely, and late events must never crash the capture path or
// corrupt the frozen ledger. With no shift at all the caller gets
// ErrNoShift.
func (r *Registry) AddSalvage(objectName string, mass float64, categories []string, salvagedBy string, value float64, massBasedValue, destroyed bool, gameTime float64) error {
	r.mu.RLock()
	s := r.current()
	r.mu.RUnlock()

	if s == nil {
		return ErrNoShift
	}

	now := r.now()
	entry := ledger.Entry{
		ObjectName:     objectName,
		Mass:           mass,
		Categories:     categories,
		SalvagedBy:     salvagedBy,
		Value:          value,
		MassBasedValue: massBasedValue,
		Destroyed:      destroyed,
		GameTime:       gameTime,
		SystemTime:     now,
	}

	if err := s.Append(entry); err != nil {
		if errors.Is(err, ledger.ErrShiftEnded) {
			slog.Warn("salvage arrived after shift end, dropping",
				"shift_id", s.ID(), "object", objectName, "value", value)
			return nil
		}
		return err
	}

	rec := event.SalvageRecorded{
		SystemTime:     now,
		ObjectName:     objectName,
		Mass:           mass,
		Categories:     categories,
		SalvagedBy:     salvagedBy,
		Value:          value,
		MassBasedValue: massBasedValue,
		Destroyed:      destroyed,
		GameTime:       gameTime,
	}
	slog.Info("salvage recorded", "shift_id", s.ID(), "entry", rec.String())
	r.pub.Publish(rec)
	return nil
}

// EndShift freezes the active shift, broadcasts the boundary, and persists
// the ledger synchronously. On success the shift is retired and removed; on
// persistence failure it stays in ShiftEnding and the FlushError is
// returned so the operator sees it. Every EndShift also retries the flush
// for any earlier shift still stuck in ShiftEnding, so a shift whose
// persistence failed stays reachable even after a new shift has started.
func (r *Registry) EndShift(exitCause string) error {
	r.mu.Lock()
	s := r.current()
	if s == nil {
		r.mu.Unlock()
		return ErrNoShift
	}

	if !s.Ended() {
		now := r.now()
		s.End(exitCause, now)

		v := s.Snapshot()
		slog.Info("shift ended",
			"shift_id", s.ID(),
			"started", v.StartedAt,
			"ended", v.EndedAt,
			"exit_cause", v.ExitCause,
			"duration", v.Duration(),
			"value_salvaged", v.ValueSalvaged,
			"value_destroyed", v.ValueDestroyed,
		)
		// Broadcast before persisting so live viewers see the boundary even
		// if the flush is slow or fails.
		r.pub.Publish(event.ShiftEnded{SystemTime: now, ExitCause: exitCause})
	}

	// Every ended shift still registered is owed a flush, oldest first.
	pending := make([]*ledger.Shift, 0, len(r.shifts))
	for _, sh := range r.shifts {
		if sh.Ended() {
			pending = append(pending, sh)
		}
	}
	r.mu.Unlock()

	// Persist outside the registry lock: a slow disk must not block a new
	// StartShift or capture for a subsequent shift.
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	var firstErr error
	for _, sh := range pending {
		v := sh.Snapshot()
		if err := r.flusher.Flush(v); err != nil {
			slog.Error("shift persistence failed, retaining shift for retry",
				"shift_id", v.ID, "error", err)
			if firstErr == nil {
				firstErr = &FlushError{ShiftID: v.ID, Err: err}
			}
			continue
		}

		if r.archiver != nil {
			if err := r.archiver.Archive(v); err != nil {
				slog.Warn("shift archive failed", "shift_id", v.ID, "error", err)
			}
		}

		r.mu.Lock()
		r.remove(sh)
		r.mu.Unlock()
		slog.Info("shift retired", "shift_id", v.ID)
	}
	return firstErr
}

// remove retires a shift. Caller must hold the write lock.
func (r *Registry) remove(target *ledger.Shift) {
	for i, s := range r.shifts {
		if s == target {
			r.shifts = append(r.shifts[:i], r.shifts[i+1:]...)
			return
		}
	}
}

// NotifyGameStateChanged broadcasts a game state transition. Duplicate
// transitions (current == previous) are suppressed; the game occasionally
// repeats them.
func (r *Registry) NotifyGameStateChanged(current, previous event.GameState) {
	if current == previous {
		return
	}
	slog.Debug("game state changed", "current", current.Code(), "previous", previous.Code())
	r.pub.Publish(event.GameStateChanged{
		SystemTime: r.now(),
		Current:    current.Code(),
		Previous:   previous.Code(),
	})
}

// NotifyTimeTick broadcasts a shift timer heartbeat, normalized so the
// current time always counts upward.
func (r *Registry) NotifyTimeTick(currentTime, maxTime float64, countsUp bool) {
	r.pub.Publish(event.NewTimeTick(r.now(), currentTime, maxTime, countsUp))
}

// CurrentShift returns a snapshot of the active or most recently ending
// shift. Fails with ErrNoShift when none exists.
func (r *Registry) CurrentShift() (ledger.View, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := r.current()
	if s == nil {
		return ledger.View{}, ErrNoShift
	}
	return s.Snapshot(), nil
}
