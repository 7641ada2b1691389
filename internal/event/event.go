package event

import (
	"fmt"
	"time"
)

// Kind identifies an event variant.
type Kind int

const (
	// KindShiftStarted marks the beginning of a shift.
	KindShiftStarted Kind = iota + 1
	// KindShiftEnded marks the end of a shift, with its exit cause.
	KindShiftEnded
	// KindRaceInfoSet carries weekly-race metadata, at most once per shift.
	KindRaceInfoSet
	// KindSalvageRecorded is one salvage ledger entry.
	KindSalvageRecorded
	// KindGameStateChanged is a game session state transition.
	KindGameStateChanged
	// KindTimeTick is a shift timer heartbeat.
	KindTimeTick
	// KindWelcome is the per-session handshake payload, never part of a ledger.
	KindWelcome
)

// kindTags is the single source of truth for wire discriminant tags.
//
// INVARIANT: each tag is the lower-camel-cased variant name. This is the
// wire contract with external viewers and the relay; never change a tag
// for a shipped variant.
var kindTags = map[Kind]string{
	KindShiftStarted:     "shiftStarted",
	KindShiftEnded:       "shiftEnded",
	KindRaceInfoSet:      "raceInfoSet",
	KindSalvageRecorded:  "salvageRecorded",
	KindGameStateChanged: "gameStateChanged",
	KindTimeTick:         "timeTick",
	KindWelcome:          "welcomeEvent",
}

// Tag returns the wire discriminant for the kind.
func (k Kind) Tag() string {
	if tag, ok := kindTags[k]; ok {
		return tag
	}
	return "unknown"
}

// String returns the wire tag; Kind is only ever rendered as its tag.
func (k Kind) String() string { return k.Tag() }

// Record is one immutable ledger event.
//
// Records are value types: once constructed they are never mutated, so they
// may be handed to the broadcaster and persistence layer without copying.
type Record interface {
	Kind() Kind
	OccurredAt() time.Time
}

// ShiftStarted signals that a new shift began. No payload.
type ShiftStarted struct {
	SystemTime time.Time
}

func (e ShiftStarted) Kind() Kind            { return KindShiftStarted }
func (e ShiftStarted) OccurredAt() time.Time { return e.SystemTime }

// ShiftEnded signals that the current shift ended.
type ShiftEnded struct {
	SystemTime time.Time
	// ExitCause is a free-form reason code, e.g. "complete" or "abort".
	ExitCause string
}

func (e ShiftEnded) Kind() Kind            { return KindShiftEnded }
func (e ShiftEnded) OccurredAt() time.Time { return e.SystemTime }

// RaceInfoSet carries metadata for a weekly-race shift. Emitted at most once
// per shift, and only when the session is a weekly race.
type RaceInfoSet struct {
	SystemTime     time.Time
	Seed           int
	Version        int
	StartDateUTC   string
	MaxTotalValue  int
	MaxSalvageMass int
}

func (e RaceInfoSet) Kind() Kind            { return KindRaceInfoSet }
func (e RaceInfoSet) OccurredAt() time.Time { return e.SystemTime }

// SalvageRecorded is one salvaged or destroyed object.
type SalvageRecorded struct {
	SystemTime time.Time
	// ObjectName is the localized display name.
	ObjectName string
	// Mass in kg as reported at salvage time.
	Mass float64
	// Categories the game assigns the object, in reported order.
	Categories []string
	// SalvagedBy names what consumed the object (Furnace, Processor, ...).
	SalvagedBy string
	// Value in dollars.
	Value float64
	// MassBasedValue reports whether value scales with mass.
	MassBasedValue bool
	// Destroyed means the value was lost rather than collected.
	Destroyed bool
	// GameTime is seconds into the shift.
	GameTime float64
}

func (e SalvageRecorded) Kind() Kind            { return KindSalvageRecorded }
func (e SalvageRecorded) OccurredAt() time.Time { return e.SystemTime }

// GameStateChanged reports a game session state transition. States are
// carried as stable lowercase codes, see GameState.
type GameStateChanged struct {
	SystemTime time.Time
	Current    string
	Previous   string
}

func (e GameStateChanged) Kind() Kind            { return KindGameStateChanged }
func (e GameStateChanged) OccurredAt() time.Time { return e.SystemTime }

// TimeTick is a shift timer heartbeat.
//
// CurrentTime is normalized at construction so it always counts upward,
// regardless of whether the underlying game timer counts up or down. Build
// ticks with NewTimeTick to get the normalization.
type TimeTick struct {
	SystemTime  time.Time
	CurrentTime float64
	MaxTime     float64
	CountsUp    bool
}

// NewTimeTick normalizes the raw timer reading: a count-down timer reading
// cur out of max becomes max-cur elapsed.
func NewTimeTick(at time.Time, currentTime, maxTime float64, countsUp bool) TimeTick {
	if !countsUp {
		currentTime = maxTime - currentTime
	}
	return TimeTick{SystemTime: at, CurrentTime: currentTime, MaxTime: maxTime, CountsUp: countsUp}
}

func (e TimeTick) Kind() Kind            { return KindTimeTick }
func (e TimeTick) OccurredAt() time.Time { return e.SystemTime }

// Welcome is the one-time handshake payload a subscriber receives on
// connect, before any domain event.
type Welcome struct {
	SystemTime time.Time
	Msg        string
}

// NewWelcome builds the standard greeting.
func NewWelcome(at time.Time) Welcome {
	return Welcome{SystemTime: at, Msg: "hello new client!"}
}

func (e Welcome) Kind() Kind            { return KindWelcome }
func (e Welcome) OccurredAt() time.Time { return e.SystemTime }

// String renders a salvage entry the way the shift summary lists it:
//
//	30.0 (2021-05-01T12:00:00Z) Salvaged: 12.500kg of Pipe worth $4.20 via Furnace
//
// The mass prefix only appears for mass-based values.
func (e SalvageRecorded) String() string {
	verb := "Salvaged"
	if e.Destroyed {
		verb = "Destroyed"
	}
	massPrefix := ""
	if e.MassBasedValue {
		massPrefix = fmt.Sprintf("%.3fkg of ", e.Mass)
	}
	return fmt.Sprintf("%.1f (%s) %s: %s%s worth $%.2f via %s",
		e.GameTime, e.SystemTime.UTC().Format(time.RFC3339), verb, massPrefix, e.ObjectName, e.Value, e.SalvagedBy)
}
