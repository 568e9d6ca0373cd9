// Package booking implements the capacity-safe core of the reservation
// engine: the hold-commit protocol for single-vehicle charters and the
// atomic ticket sale transaction for shared departures.  All shared mutable
// state lives in the database; the transaction boundary is the only
// synchronization primitive, so correctness holds across process instances.
package booking

import (
    "errors"
    "fmt"
    "time"
)

// ErrConflict is returned when a vehicle/window is already committed by a
// hold, booking or maintenance block.  It is never retried automatically
// against a different window or vehicle; that choice belongs to the caller.
var ErrConflict = errors.New("vehicle unavailable for the requested window")

// ErrNotFound is returned when a referenced entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrTourCancelled is returned when purchasing against a cancelled
// departure.
var ErrTourCancelled = errors.New("tour has been cancelled")

// CapacityError reports that a purchase requested more units than the
// departure has left.  Remaining is exact at the time the purchase failed:
// the capacity sum is read under the departure row lock, so it cannot be
// stale.
type CapacityError struct {
    Remaining int
}

func (e *CapacityError) Error() string {
    if e.Remaining <= 0 {
        return "sold out"
    }
    if e.Remaining == 1 {
        return "only 1 spot remaining"
    }
    return fmt.Sprintf("only %d spots remaining", e.Remaining)
}

// CutoffError reports that the booking cutoff for a departure has passed.
// The check runs inside the sale transaction, after the row lock is held.
type CutoffError struct {
    ClosedAt time.Time
}

func (e *CutoffError) Error() string {
    return fmt.Sprintf("booking closed at %s", e.ClosedAt.UTC().Format(time.RFC3339))
}

// ValidationError reports malformed input discovered before any lock or
// transaction is acquired.  It carries no side effects.
type ValidationError struct {
    Field  string
    Reason string
}

func (e *ValidationError) Error() string {
    return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
