package payment

import (
    "context"
    "fmt"
    "sync"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/vinetrail/tour-booking/internal/booking"
    "github.com/vinetrail/tour-booking/internal/model"
)

// memPaymentStore is an in-memory payment.Store.
type memPaymentStore struct {
    mu        sync.Mutex
    states    map[EntityRef]*PaymentState
    reminders map[uint64]int // reservation id -> pending reminder count
}

func newMemPaymentStore() *memPaymentStore {
    return &memPaymentStore{
        states:    map[EntityRef]*PaymentState{},
        reminders: map[uint64]int{},
    }
}

func (s *memPaymentStore) PaymentState(_ context.Context, ref EntityRef) (PaymentState, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    state, ok := s.states[ref]
    if !ok {
        return PaymentState{}, booking.ErrNotFound
    }
    return *state, nil
}

func (s *memPaymentStore) SaveIntent(_ context.Context, ref EntityRef, intentID string, generation int) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    state, ok := s.states[ref]
    if !ok {
        return booking.ErrNotFound
    }
    state.IntentRef = intentID
    state.Generation = generation
    return nil
}

func (s *memPaymentStore) FindByIntent(_ context.Context, intentID string) (EntityRef, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    for ref, state := range s.states {
        if state.IntentRef == intentID {
            return ref, nil
        }
    }
    return EntityRef{}, booking.ErrNotFound
}

func (s *memPaymentStore) MarkPaid(_ context.Context, ref EntityRef) (bool, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    state, ok := s.states[ref]
    if !ok {
        return false, booking.ErrNotFound
    }
    if state.PaymentStatus == model.PaymentPaid {
        return false, nil
    }
    state.PaymentStatus = model.PaymentPaid
    return true, nil
}

func (s *memPaymentStore) CancelPendingReminders(_ context.Context, reservationID uint64) (int, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    n := s.reminders[reservationID]
    s.reminders[reservationID] = 0
    return n, nil
}

// memProcessor returns the same intent for the same idempotency key,
// exactly as the real processor's Idempotency-Key header contract.
type memProcessor struct {
    mu      sync.Mutex
    nextID  int
    byKey   map[string]Intent
    byID    map[string]Intent
    creates int
}

func newMemProcessor() *memProcessor {
    return &memProcessor{byKey: map[string]Intent{}, byID: map[string]Intent{}}
}

func (p *memProcessor) CreateIntent(_ context.Context, amountCents int64, _ string, idempotencyKey string) (Intent, error) {
    p.mu.Lock()
    defer p.mu.Unlock()
    if intent, ok := p.byKey[idempotencyKey]; ok {
        return intent, nil
    }
    p.creates++
    p.nextID++
    intent := Intent{
        ID:          fmt.Sprintf("pi_%04d", p.nextID),
        Status:      IntentRequiresPayment,
        ClientToken: fmt.Sprintf("tok_%04d", p.nextID),
        AmountCents: amountCents,
    }
    p.byKey[idempotencyKey] = intent
    p.byID[intent.ID] = intent
    return intent, nil
}

func (p *memProcessor) RetrieveIntent(_ context.Context, intentID string) (Intent, error) {
    p.mu.Lock()
    defer p.mu.Unlock()
    intent, ok := p.byID[intentID]
    if !ok {
        return Intent{}, booking.ErrNotFound
    }
    return intent, nil
}

func (p *memProcessor) setStatus(intentID, status string) {
    p.mu.Lock()
    defer p.mu.Unlock()
    intent := p.byID[intentID]
    intent.Status = status
    p.byID[intentID] = intent
}

func resRef() EntityRef { return EntityRef{Kind: EntityReservation, ID: 42} }

func newTestGateway() (*Gateway, *memPaymentStore, *memProcessor) {
    store := newMemPaymentStore()
    store.states[resRef()] = &PaymentState{PaymentStatus: model.PaymentPending, TotalCents: 180000}
    store.reminders[42] = 3
    proc := newMemProcessor()
    return NewGateway(store, proc, "usd"), store, proc
}

func TestIdempotencyKeyDeterministic(t *testing.T) {
    a := IdempotencyKey(resRef(), 130000, 0)
    b := IdempotencyKey(resRef(), 130000, 0)
    assert.Equal(t, a, b)

    assert.NotEqual(t, a, IdempotencyKey(resRef(), 130001, 0), "amount is part of the key")
    assert.NotEqual(t, a, IdempotencyKey(resRef(), 130000, 1), "generation is part of the key")
    assert.NotEqual(t, a, IdempotencyKey(EntityRef{Kind: EntitySale, ID: 42}, 130000, 0), "entity kind is part of the key")
    assert.Len(t, a, 64)
}

func TestCreateIntentRetryReturnsSameIntent(t *testing.T) {
    gw, _, proc := newTestGateway()
    ctx := context.Background()

    first, err := gw.CreateIntent(ctx, resRef(), 130000)
    require.NoError(t, err)
    second, err := gw.CreateIntent(ctx, resRef(), 130000)
    require.NoError(t, err)

    assert.Equal(t, first.IntentID, second.IntentID)
    assert.Equal(t, first.ClientToken, second.ClientToken)
    assert.Equal(t, 1, proc.creates, "a retried request must not open a second charge")
}

func TestCreateIntentSupersedesDeadIntent(t *testing.T) {
    gw, store, proc := newTestGateway()
    ctx := context.Background()

    first, err := gw.CreateIntent(ctx, resRef(), 130000)
    require.NoError(t, err)

    proc.setStatus(first.IntentID, IntentCanceled)

    second, err := gw.CreateIntent(ctx, resRef(), 130000)
    require.NoError(t, err)
    assert.NotEqual(t, first.IntentID, second.IntentID, "a canceled intent must not be resurrected")
    assert.Equal(t, 2, proc.creates)
    assert.Equal(t, 1, store.states[resRef()].Generation, "supersede bumps the generation")
}

func TestCreateIntentSucceededButUnpaidLocally(t *testing.T) {
    // The intent succeeded at the processor but the webhook never landed,
    // so the entity is still pending locally.  A fresh intent is issued
    // rather than handing back a spent one.
    gw, _, proc := newTestGateway()
    ctx := context.Background()

    first, err := gw.CreateIntent(ctx, resRef(), 130000)
    require.NoError(t, err)
    proc.setStatus(first.IntentID, IntentSucceeded)

    second, err := gw.CreateIntent(ctx, resRef(), 130000)
    require.NoError(t, err)
    assert.NotEqual(t, first.IntentID, second.IntentID)
}

func TestCreateIntentAlreadyPaid(t *testing.T) {
    gw, store, _ := newTestGateway()
    store.states[resRef()].PaymentStatus = model.PaymentPaid

    _, err := gw.CreateIntent(context.Background(), resRef(), 130000)
    assert.ErrorIs(t, err, ErrAlreadyPaid)
}

func TestConfirmIsIdempotent(t *testing.T) {
    gw, store, _ := newTestGateway()
    ctx := context.Background()

    created, err := gw.CreateIntent(ctx, resRef(), 130000)
    require.NoError(t, err)

    first, err := gw.Confirm(ctx, created.IntentID)
    require.NoError(t, err)
    assert.False(t, first.AlreadyPaid)
    assert.Equal(t, resRef(), first.Ref)
    assert.Equal(t, 3, first.RemindersCancelled)
    assert.Equal(t, model.PaymentPaid, store.states[resRef()].PaymentStatus)

    // Duplicate webhook delivery.
    second, err := gw.Confirm(ctx, created.IntentID)
    require.NoError(t, err)
    assert.True(t, second.AlreadyPaid)
    assert.Zero(t, second.RemindersCancelled, "reminder cleanup runs only on the first confirmation")
}

func TestConfirmUnknownIntent(t *testing.T) {
    gw, _, _ := newTestGateway()
    _, err := gw.Confirm(context.Background(), "pi_nope")
    assert.ErrorIs(t, err, booking.ErrNotFound)
}

func TestCreateIntentInvalidRef(t *testing.T) {
    gw, _, _ := newTestGateway()
    _, err := gw.CreateIntent(context.Background(), EntityRef{Kind: "voucher", ID: 1}, 1000)
    assert.Error(t, err)
    _, err = gw.CreateIntent(context.Background(), EntityRef{Kind: EntitySale, ID: 0}, 1000)
    assert.Error(t, err)
}
