package registry

import (
	"errors"
	"fmt"
)

var (
	// ErrNoShift reports an operation that needs a shift when none exists.
	// Background handlers arriving after teardown get this, never a panic.
	ErrNoShift = errors.New("no shift in progress")

	// ErrShiftActive reports a StartShift while another shift is active.
	ErrShiftActive = errors.New("a shift is already active")
)

// FlushError reports a failed persistence run. The shift stays registered
// in ShiftEnding so a later EndShift can retry; nothing is dropped from the
// in-memory ledger.
type FlushError struct {
	ShiftID string
	Err     error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("flush shift %s: %v", e.ShiftID, e.Err)
}

func (e *FlushError) Unwrap() error { return e.Err }

// IsFlushError reports whether err is (or wraps) a persistence failure.
func IsFlushError(err error) bool {
	var fe *FlushError
	return errors.As(err, &fe)
}
