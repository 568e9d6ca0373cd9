package booking

import (
    "context"
    "errors"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/vinetrail/tour-booking/internal/model"
    "github.com/vinetrail/tour-booking/internal/pricing"
)

// memLedger is an in-memory Ledger whose PlaceHold enforces the same
// no-overlap rule the database exclusion constraint does: the overlap check
// and the insert happen under one mutex, so concurrent callers genuinely
// race for the window.
type memLedger struct {
    mu       sync.Mutex
    nextID   uint64
    blocks   map[uint64]memBlock
    commits  int
    releases int

    failCommit bool
}

type memBlock struct {
    vehicleID uint64
    starts    time.Time
    ends      time.Time
    kind      string
}

func newMemLedger() *memLedger {
    return &memLedger{blocks: map[uint64]memBlock{}}
}

func (l *memLedger) PlaceHold(_ context.Context, vehicleID uint64, starts, ends time.Time, _ string, _ time.Time) (uint64, error) {
    l.mu.Lock()
    defer l.mu.Unlock()
    for _, b := range l.blocks {
        if b.vehicleID == vehicleID && starts.Before(b.ends) && b.starts.Before(ends) {
            return 0, ErrConflict
        }
    }
    l.nextID++
    l.blocks[l.nextID] = memBlock{vehicleID: vehicleID, starts: starts, ends: ends, kind: model.BlockKindHold}
    return l.nextID, nil
}

func (l *memLedger) ReleaseHold(_ context.Context, blockID uint64) error {
    l.mu.Lock()
    defer l.mu.Unlock()
    if b, ok := l.blocks[blockID]; ok && b.kind == model.BlockKindHold {
        delete(l.blocks, blockID)
        l.releases++
    }
    return nil
}

func (l *memLedger) CommitReservation(_ context.Context, blockID uint64, draft ReservationDraft) (model.Reservation, error) {
    l.mu.Lock()
    defer l.mu.Unlock()
    if l.failCommit {
        return model.Reservation{}, errors.New("commit failed")
    }
    b, ok := l.blocks[blockID]
    if !ok || b.kind != model.BlockKindHold {
        return model.Reservation{}, ErrConflict
    }
    b.kind = model.BlockKindBooking
    l.blocks[blockID] = b
    l.commits++
    return model.Reservation{
        ID:           blockID,
        VehicleID:    draft.VehicleID,
        StartsAt:     draft.StartsAt,
        EndsAt:       draft.EndsAt,
        PartySize:    draft.PartySize,
        ContactEmail: draft.ContactEmail,
        Status:       model.ReservationConfirmed,
        TotalCents:   draft.TotalCents,
        BalanceDueOn: draft.BalanceDueOn,
    }, nil
}

func (l *memLedger) CancelReservation(_ context.Context, reservationID uint64) (model.Reservation, error) {
    l.mu.Lock()
    defer l.mu.Unlock()
    b, ok := l.blocks[reservationID]
    if !ok || b.kind != model.BlockKindBooking {
        return model.Reservation{}, ErrNotFound
    }
    delete(l.blocks, reservationID)
    return model.Reservation{ID: reservationID, Status: model.ReservationCancelled}, nil
}

func (l *memLedger) kinds() (holds, bookings int) {
    l.mu.Lock()
    defer l.mu.Unlock()
    for _, b := range l.blocks {
        switch b.kind {
        case model.BlockKindHold:
            holds++
        case model.BlockKindBooking:
            bookings++
        }
    }
    return
}

// fixedAllocator always proposes the same vehicles.
type fixedAllocator struct {
    vehicles []model.Vehicle
}

func (a fixedAllocator) Candidates(_ context.Context, _ string, _, _ time.Time, _ int) ([]model.Vehicle, error) {
    return a.vehicles, nil
}

var testClock = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func charterInput() ReserveInput {
    return ReserveInput{
        VehicleClass: "sprinter",
        StartsAt:     testClock.Add(48 * time.Hour),
        EndsAt:       testClock.Add(52 * time.Hour),
        PartySize:    8,
        ContactEmail: "guest@example.com",
    }
}

func newTestHoldService(ledger *memLedger, vehicles ...model.Vehicle) *HoldService {
    if len(vehicles) == 0 {
        vehicles = []model.Vehicle{{ID: 1, Name: "Sprinter 1", Class: "sprinter", Capacity: 12, Active: true}}
    }
    return NewHoldService(fixedAllocator{vehicles: vehicles}, ledger, pricing.NewStandardPricer(), func() time.Time { return testClock })
}

func TestReserveCommitsHoldIntoBooking(t *testing.T) {
    ledger := newMemLedger()
    svc := newTestHoldService(ledger)

    res, err := svc.Reserve(context.Background(), charterInput())
    require.NoError(t, err)
    assert.Equal(t, model.ReservationConfirmed, res.Status)
    assert.Equal(t, uint64(1), res.VehicleID)
    // 4 hours of sprinter at 18500/h plus 8.5% tax.
    assert.Equal(t, int64(74000+6290), res.TotalCents)

    holds, bookings := ledger.kinds()
    assert.Equal(t, 0, holds, "no hold should outlive a committed reservation")
    assert.Equal(t, 1, bookings)
}

func TestReserveConcurrentSameWindowOneWinner(t *testing.T) {
    ledger := newMemLedger()
    svc := newTestHoldService(ledger)

    const attempts = 16
    var wg sync.WaitGroup
    results := make([]error, attempts)
    for i := 0; i < attempts; i++ {
        wg.Add(1)
        go func(i int) {
            defer wg.Done()
            _, results[i] = svc.Reserve(context.Background(), charterInput())
        }(i)
    }
    wg.Wait()

    won := 0
    for _, err := range results {
        if err == nil {
            won++
        } else {
            assert.ErrorIs(t, err, ErrConflict)
        }
    }
    assert.Equal(t, 1, won, "exactly one concurrent request may book the window")

    holds, bookings := ledger.kinds()
    assert.Equal(t, 0, holds)
    assert.Equal(t, 1, bookings, "the ledger must hold exactly one committed block")
}

func TestReserveNoSecondChoiceAfterHoldConflict(t *testing.T) {
    ledger := newMemLedger()
    // Two candidate vehicles; the first is already booked for the window.
    svc := newTestHoldService(ledger,
        model.Vehicle{ID: 1, Class: "sprinter", Capacity: 12, Active: true},
        model.Vehicle{ID: 2, Class: "sprinter", Capacity: 12, Active: true},
    )
    in := charterInput()
    _, err := ledger.PlaceHold(context.Background(), 1, in.StartsAt, in.EndsAt, "tok", testClock.Add(time.Hour))
    require.NoError(t, err)

    _, err = svc.Reserve(context.Background(), in)
    assert.ErrorIs(t, err, ErrConflict, "a lost hold race surfaces as a conflict, not a silent vehicle swap")

    _, bookings := ledger.kinds()
    assert.Equal(t, 0, bookings)
}

func TestReserveReleasesHoldWhenCommitFails(t *testing.T) {
    ledger := newMemLedger()
    ledger.failCommit = true
    svc := newTestHoldService(ledger)

    _, err := svc.Reserve(context.Background(), charterInput())
    require.Error(t, err)

    holds, bookings := ledger.kinds()
    assert.Equal(t, 0, holds, "the hold must be released on the failure path")
    assert.Equal(t, 0, bookings)
    assert.Equal(t, 1, ledger.releases)
}

func TestReserveReleasesHoldOnCancelledContext(t *testing.T) {
    ledger := newMemLedger()
    ledger.failCommit = true
    svc := newTestHoldService(ledger)

    ctx, cancel := context.WithCancel(context.Background())
    cancel()
    _, err := svc.Reserve(ctx, charterInput())
    require.Error(t, err)

    holds, _ := ledger.kinds()
    assert.Equal(t, 0, holds, "release must run even when the request context is dead")
}

func TestReserveValidation(t *testing.T) {
    svc := newTestHoldService(newMemLedger())

    cases := []struct {
        name   string
        mutate func(*ReserveInput)
        field  string
    }{
        {"missing class", func(in *ReserveInput) { in.VehicleClass = "" }, "vehicle_class"},
        {"zero party", func(in *ReserveInput) { in.PartySize = 0 }, "party_size"},
        {"inverted window", func(in *ReserveInput) { in.EndsAt = in.StartsAt.Add(-time.Hour) }, "window"},
        {"past start", func(in *ReserveInput) {
            in.StartsAt = testClock.Add(-time.Hour)
            in.EndsAt = testClock.Add(time.Hour)
        }, "window"},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            in := charterInput()
            tc.mutate(&in)
            _, err := svc.Reserve(context.Background(), in)
            var verr *ValidationError
            require.ErrorAs(t, err, &verr)
            assert.Equal(t, tc.field, verr.Field)
        })
    }
}

func TestCancelFreesWindowForNewHold(t *testing.T) {
    ledger := newMemLedger()
    svc := newTestHoldService(ledger)
    in := charterInput()

    res, err := svc.Reserve(context.Background(), in)
    require.NoError(t, err)

    _, err = svc.Cancel(context.Background(), res.ID)
    require.NoError(t, err)

    _, err = svc.Reserve(context.Background(), in)
    assert.NoError(t, err, "a cancelled reservation's window must be bookable again")
}
