package booking

import (
    "context"
    "crypto/rand"
    "encoding/hex"
    "time"

    "github.com/vinetrail/tour-booking/internal/model"
    "github.com/vinetrail/tour-booking/internal/pricing"
)

// Allocator selects candidate vehicles for a requested class and window.
// Resource selection is delegated: the protocol takes the first candidate
// and never falls back to a second choice after a hold conflict.
type Allocator interface {
    Candidates(ctx context.Context, class string, starts, ends time.Time, minCapacity int) ([]model.Vehicle, error)
}

// Ledger is the persistence contract for the hold-commit protocol.  Each
// method is one transaction:
//
//   - PlaceHold inserts a hold availability block.  The insert is guarded by
//     the database exclusion constraint; a concurrent overlapping block makes
//     the insert itself fail, and the implementation must surface that as
//     ErrConflict.  There is no separately-checked race window.
//   - ReleaseHold deletes a hold block that was never committed.
//   - CommitReservation creates the reservation row and converts the hold
//     block into a booking block referencing it, atomically.
//   - CancelReservation marks the reservation cancelled and deletes its
//     booking block, atomically.
type Ledger interface {
    PlaceHold(ctx context.Context, vehicleID uint64, starts, ends time.Time, token string, expiresAt time.Time) (uint64, error)
    ReleaseHold(ctx context.Context, blockID uint64) error
    CommitReservation(ctx context.Context, blockID uint64, draft ReservationDraft) (model.Reservation, error)
    CancelReservation(ctx context.Context, reservationID uint64) (model.Reservation, error)
}

// ReservationDraft carries the fields CommitReservation persists.  The
// confirmation code is assigned by the ledger from the per-year sequence.
type ReservationDraft struct {
    VehicleID    uint64
    StartsAt     time.Time
    EndsAt       time.Time
    PartySize    int
    ContactEmail string
    TotalCents   int64
    BalanceDueOn *time.Time
}

// ReserveInput is the inbound "create reservation" request.
type ReserveInput struct {
    VehicleClass string
    StartsAt     time.Time
    EndsAt       time.Time
    PartySize    int
    ContactEmail string
    BalanceDueOn *time.Time
}

// holdTTL bounds how long an uncommitted hold may linger if the process
// dies between placing the hold and releasing it.  Under normal operation a
// hold lives for milliseconds; the TTL only matters for leak cleanup.
const holdTTL = 5 * time.Minute

// HoldService runs the hold-commit protocol for private charter bookings:
// none -> held -> booked, or none -> held -> released.  A reservation is
// never created without a preceding successful hold, and a hold that does
// not commit is released on every exit path.
type HoldService struct {
    allocator Allocator
    ledger    Ledger
    pricer    pricing.Pricer
    now       func() time.Time
}

// NewHoldService constructs a HoldService.  The now function may be nil, in
// which case time.Now is used; tests inject a fixed clock.
func NewHoldService(allocator Allocator, ledger Ledger, pricer pricing.Pricer, now func() time.Time) *HoldService {
    if now == nil {
        now = time.Now
    }
    return &HoldService{allocator: allocator, ledger: ledger, pricer: pricer, now: now}
}

// Reserve books one vehicle for one trip.  Flow: validate, propose a
// candidate via the allocator, place a hold (the exclusion constraint
// decides races), price the trip, then commit the reservation and convert
// the hold into a booking block.  If anything after the hold fails the hold
// is released in the deferred cleanup, including on context cancellation.
func (s *HoldService) Reserve(ctx context.Context, in ReserveInput) (model.Reservation, error) {
    if err := s.validate(in); err != nil {
        return model.Reservation{}, err
    }

    candidates, err := s.allocator.Candidates(ctx, in.VehicleClass, in.StartsAt, in.EndsAt, in.PartySize)
    if err != nil {
        return model.Reservation{}, err
    }
    if len(candidates) == 0 {
        return model.Reservation{}, ErrConflict
    }
    vehicle := candidates[0]

    token, err := holdToken()
    if err != nil {
        return model.Reservation{}, err
    }

    blockID, err := s.ledger.PlaceHold(ctx, vehicle.ID, in.StartsAt, in.EndsAt, token, s.now().Add(holdTTL))
    if err != nil {
        // A conflicting concurrent hold surfaces here as ErrConflict.  The
        // protocol does not silently pick a second-choice vehicle.
        return model.Reservation{}, err
    }

    committed := false
    defer func() {
        if !committed {
            // Release must survive request cancellation, otherwise the hold
            // leaks until its TTL.
            _ = s.ledger.ReleaseHold(context.WithoutCancel(ctx), blockID)
        }
    }()

    quote, err := s.pricer.Charter(ctx, in.VehicleClass, in.EndsAt.Sub(in.StartsAt), in.PartySize)
    if err != nil {
        return model.Reservation{}, err
    }

    res, err := s.ledger.CommitReservation(ctx, blockID, ReservationDraft{
        VehicleID:    vehicle.ID,
        StartsAt:     in.StartsAt,
        EndsAt:       in.EndsAt,
        PartySize:    in.PartySize,
        ContactEmail: in.ContactEmail,
        TotalCents:   quote.TotalCents,
        BalanceDueOn: in.BalanceDueOn,
    })
    if err != nil {
        return model.Reservation{}, err
    }
    committed = true
    return res, nil
}

// Cancel cancels a committed reservation and deletes its booking block,
// freeing the vehicle/window for future holds.  Both mutations happen in
// one transaction inside the ledger.
func (s *HoldService) Cancel(ctx context.Context, reservationID uint64) (model.Reservation, error) {
    return s.ledger.CancelReservation(ctx, reservationID)
}

func (s *HoldService) validate(in ReserveInput) error {
    if in.VehicleClass == "" {
        return &ValidationError{Field: "vehicle_class", Reason: "required"}
    }
    if in.PartySize <= 0 {
        return &ValidationError{Field: "party_size", Reason: "must be positive"}
    }
    if !in.EndsAt.After(in.StartsAt) {
        return &ValidationError{Field: "window", Reason: "end must be after start"}
    }
    if in.StartsAt.Before(s.now()) {
        return &ValidationError{Field: "window", Reason: "start is in the past"}
    }
    return nil
}

// holdToken returns a random 64-character hex token used to correlate a
// hold block with the request that created it.
func holdToken() (string, error) {
    b := make([]byte, 32)
    if _, err := rand.Read(b); err != nil {
        return "", err
    }
    return hex.EncodeToString(b), nil
}
