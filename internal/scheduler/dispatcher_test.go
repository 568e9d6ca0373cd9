package scheduler

import (
    "context"
    "errors"
    "sort"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/vinetrail/tour-booking/internal/model"
    "github.com/vinetrail/tour-booking/internal/notify"
)

// memStore is an in-memory Store with claim semantics equivalent to the
// SQL skip-locked statement: selection and the pending -> processing flip
// happen under one mutex, so two concurrent runs can never claim the same
// row.
type memStore struct {
    mu        sync.Mutex
    reminders map[uint64]*model.Reminder
    billing   map[uint64]BillingState
}

func newMemStore() *memStore {
    return &memStore{
        reminders: map[uint64]*model.Reminder{},
        billing:   map[uint64]BillingState{},
    }
}

func (s *memStore) add(rem model.Reminder) {
    s.mu.Lock()
    defer s.mu.Unlock()
    r := rem
    if r.Status == "" {
        r.Status = model.ReminderPending
    }
    s.reminders[r.ID] = &r
}

func (s *memStore) ClaimDue(_ context.Context, dueOn time.Time, limit int) ([]model.Reminder, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    var due []*model.Reminder
    for _, r := range s.reminders {
        if r.Status == model.ReminderPending && !r.Paused && !r.ScheduledOn.After(dueOn) {
            due = append(due, r)
        }
    }
    sort.Slice(due, func(i, j int) bool {
        if !due[i].ScheduledOn.Equal(due[j].ScheduledOn) {
            return due[i].ScheduledOn.Before(due[j].ScheduledOn)
        }
        return model.UrgencyRank(due[i].Urgency) > model.UrgencyRank(due[j].Urgency)
    })
    if len(due) > limit {
        due = due[:limit]
    }
    now := time.Now()
    claimed := make([]model.Reminder, 0, len(due))
    for _, r := range due {
        r.Status = model.ReminderProcessing
        r.ClaimedAt = &now
        claimed = append(claimed, *r)
    }
    return claimed, nil
}

func (s *memStore) Billing(_ context.Context, reservationID uint64) (BillingState, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    state, ok := s.billing[reservationID]
    if !ok {
        return BillingState{}, errors.New("reservation not found")
    }
    return state, nil
}

func (s *memStore) transition(reminderID uint64, to string, reason string) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    r, ok := s.reminders[reminderID]
    if !ok || r.Status != model.ReminderProcessing {
        return errors.New("not processing")
    }
    r.Status = to
    r.SkipReason = reason
    return nil
}

func (s *memStore) MarkSent(_ context.Context, reminderID uint64, at time.Time) error {
    if err := s.transition(reminderID, model.ReminderSent, ""); err != nil {
        return err
    }
    s.mu.Lock()
    defer s.mu.Unlock()
    s.reminders[reminderID].SentAt = &at
    return nil
}

func (s *memStore) MarkSkipped(_ context.Context, reminderID uint64, reason string) error {
    return s.transition(reminderID, model.ReminderSkipped, reason)
}

func (s *memStore) MarkFailed(_ context.Context, reminderID uint64, reason string) error {
    return s.transition(reminderID, model.ReminderFailed, reason)
}

func (s *memStore) ReapStuck(_ context.Context, olderThan time.Duration) (int, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    reaped := 0
    cutoff := time.Now().Add(-olderThan)
    for _, r := range s.reminders {
        if r.Status == model.ReminderProcessing && r.ClaimedAt != nil && r.ClaimedAt.Before(cutoff) {
            r.Status = model.ReminderPending
            r.ClaimedAt = nil
            reaped++
        }
    }
    return reaped, nil
}

func (s *memStore) status(id uint64) string {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.reminders[id].Status
}

// recordingSender counts deliveries per address and can be told to fail.
type recordingSender struct {
    mu   sync.Mutex
    sent map[string]int
    fail bool
}

func newRecordingSender() *recordingSender {
    return &recordingSender{sent: map[string]int{}}
}

func (s *recordingSender) Send(address string, _ notify.Message) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.fail {
        return errors.New("smtp unavailable")
    }
    s.sent[address]++
    return nil
}

func (s *recordingSender) total() int {
    s.mu.Lock()
    defer s.mu.Unlock()
    n := 0
    for _, c := range s.sent {
        n += c
    }
    return n
}

func owingState(email string) BillingState {
    due := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)
    return BillingState{
        ConfirmationCode: "VT-2026-0001",
        ContactEmail:     email,
        PaymentStatus:    model.PaymentPending,
        TotalCents:       180000,
        AmountPaidCents:  50000,
        BalanceDueOn:     &due,
    }
}

func newTestDispatcher(store *memStore, sender notify.Sender) *Dispatcher {
    return NewDispatcher(store, notify.TemplateRenderer{}, sender, Config{BatchSize: 100, ReapAfter: 15 * time.Minute}, nil)
}

func TestRunSendsDueReminder(t *testing.T) {
    store := newMemStore()
    store.billing[1] = owingState("guest@example.com")
    store.add(model.Reminder{ID: 10, ReservationID: 1, ScheduledOn: time.Now().Add(-24 * time.Hour), Urgency: model.UrgencyFirm})

    sender := newRecordingSender()
    sum, err := newTestDispatcher(store, sender).Run(context.Background())
    require.NoError(t, err)

    assert.Equal(t, 1, sum.Claimed)
    assert.Equal(t, 1, sum.Sent)
    assert.Equal(t, model.ReminderSent, store.status(10))
    assert.Equal(t, 1, sender.sent["guest@example.com"])
}

func TestRunDoesNotClaimFutureOrPaused(t *testing.T) {
    store := newMemStore()
    store.billing[1] = owingState("guest@example.com")
    store.add(model.Reminder{ID: 1, ReservationID: 1, ScheduledOn: time.Now().Add(48 * time.Hour), Urgency: model.UrgencyFirm})
    store.add(model.Reminder{ID: 2, ReservationID: 1, ScheduledOn: time.Now().Add(-time.Hour), Urgency: model.UrgencyFirm, Paused: true})

    sum, err := newTestDispatcher(store, newRecordingSender()).Run(context.Background())
    require.NoError(t, err)
    assert.Zero(t, sum.Claimed)
    assert.Equal(t, model.ReminderPending, store.status(1))
    assert.Equal(t, model.ReminderPending, store.status(2))
}

func TestRunSkipReasons(t *testing.T) {
    cases := []struct {
        name   string
        state  func() BillingState
        reason string
    }{
        {"billing paused", func() BillingState {
            s := owingState("guest@example.com")
            s.BillingPaused = true
            return s
        }, SkipPaused},
        {"sponsored", func() BillingState {
            s := owingState("guest@example.com")
            s.Sponsored = true
            return s
        }, SkipSponsored},
        {"already paid", func() BillingState {
            s := owingState("guest@example.com")
            s.PaymentStatus = model.PaymentPaid
            return s
        }, SkipPaid},
        {"nothing outstanding", func() BillingState {
            s := owingState("guest@example.com")
            s.AmountPaidCents = s.TotalCents
            return s
        }, SkipNothingDue},
        {"no contact", func() BillingState {
            return owingState("")
        }, SkipNoContact},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            store := newMemStore()
            store.billing[1] = tc.state()
            store.add(model.Reminder{ID: 10, ReservationID: 1, ScheduledOn: time.Now().Add(-time.Hour), Urgency: model.UrgencyUrgent})

            sender := newRecordingSender()
            sum, err := newTestDispatcher(store, sender).Run(context.Background())
            require.NoError(t, err)

            assert.Equal(t, 1, sum.Skipped)
            assert.Zero(t, sender.total(), "skipped reminders must not send")
            assert.Equal(t, model.ReminderSkipped, store.status(10))
            require.Len(t, sum.Details, 1)
            assert.Equal(t, tc.reason, sum.Details[0].Reason)
        })
    }
}

func TestRunPaymentLandedBetweenScheduleAndDispatch(t *testing.T) {
    // The reservation paid in full after the reminder was scheduled.  The
    // post-claim fresh read must catch it.
    store := newMemStore()
    state := owingState("guest@example.com")
    state.PaymentStatus = model.PaymentPaid
    state.AmountPaidCents = state.TotalCents
    store.billing[1] = state
    store.add(model.Reminder{ID: 10, ReservationID: 1, ScheduledOn: time.Now().Add(-time.Hour), Urgency: model.UrgencyFinal})

    sender := newRecordingSender()
    sum, err := newTestDispatcher(store, sender).Run(context.Background())
    require.NoError(t, err)
    assert.Equal(t, 1, sum.Skipped)
    assert.Zero(t, sender.total())
}

func TestRunSendFailureIsTerminal(t *testing.T) {
    store := newMemStore()
    store.billing[1] = owingState("guest@example.com")
    store.add(model.Reminder{ID: 10, ReservationID: 1, ScheduledOn: time.Now().Add(-time.Hour), Urgency: model.UrgencyFirm})

    sender := newRecordingSender()
    sender.fail = true
    d := newTestDispatcher(store, sender)

    sum, err := d.Run(context.Background())
    require.NoError(t, err)
    assert.Equal(t, 1, sum.Failed)
    assert.Equal(t, model.ReminderFailed, store.status(10))

    // A failed row is never re-claimed: the send may have gone out past
    // the point of failure detection.
    sender.fail = false
    sum, err = d.Run(context.Background())
    require.NoError(t, err)
    assert.Zero(t, sum.Claimed)
    assert.Zero(t, sender.total())
}

func TestRunFailureDoesNotAbortBatch(t *testing.T) {
    store := newMemStore()
    store.billing[1] = owingState("guest@example.com")
    // Reservation 2 has no billing row; its reminder fails to evaluate.
    store.add(model.Reminder{ID: 10, ReservationID: 2, ScheduledOn: time.Now().Add(-2 * time.Hour), Urgency: model.UrgencyFinal})
    store.add(model.Reminder{ID: 11, ReservationID: 1, ScheduledOn: time.Now().Add(-time.Hour), Urgency: model.UrgencyFirm})

    sender := newRecordingSender()
    sum, err := newTestDispatcher(store, sender).Run(context.Background())
    require.NoError(t, err)

    assert.Equal(t, 2, sum.Claimed)
    assert.Equal(t, 1, sum.Failed)
    assert.Equal(t, 1, sum.Sent)
    assert.Equal(t, 1, sender.total())
}

func TestConcurrentRunsClaimDisjointSets(t *testing.T) {
    store := newMemStore()
    const n = 60
    for i := uint64(1); i <= n; i++ {
        store.billing[i] = owingState("guest@example.com")
        store.add(model.Reminder{ID: i, ReservationID: i, ScheduledOn: time.Now().Add(-time.Hour), Urgency: model.UrgencyFirm})
    }

    sender := newRecordingSender()
    // Three dispatchers with a batch smaller than the backlog, running
    // concurrently and repeatedly, as ticker + cron + manual trigger would.
    var wg sync.WaitGroup
    var mu sync.Mutex
    totalClaimed := 0
    for w := 0; w < 3; w++ {
        wg.Add(1)
        go func() {
            defer wg.Done()
            d := NewDispatcher(store, notify.TemplateRenderer{}, sender, Config{BatchSize: 7, ReapAfter: 15 * time.Minute}, nil)
            for {
                sum, err := d.Run(context.Background())
                if !assert.NoError(t, err) {
                    return
                }
                mu.Lock()
                totalClaimed += sum.Claimed
                mu.Unlock()
                if sum.Claimed == 0 {
                    return
                }
            }
        }()
    }
    wg.Wait()

    assert.Equal(t, n, totalClaimed, "every reminder claimed exactly once across all runs")
    assert.Equal(t, n, sender.total(), "every reminder sent exactly once")
    for i := uint64(1); i <= n; i++ {
        assert.Equal(t, model.ReminderSent, store.status(i))
    }
}

func TestRunReapsStuckClaims(t *testing.T) {
    store := newMemStore()
    store.billing[1] = owingState("guest@example.com")

    stale := time.Now().Add(-time.Hour)
    rem := model.Reminder{ID: 10, ReservationID: 1, ScheduledOn: time.Now().Add(-24 * time.Hour), Urgency: model.UrgencyFirm, Status: model.ReminderProcessing}
    rem.ClaimedAt = &stale
    store.add(rem)

    sender := newRecordingSender()
    sum, err := newTestDispatcher(store, sender).Run(context.Background())
    require.NoError(t, err)

    assert.Equal(t, 1, sum.Reaped)
    assert.Equal(t, 1, sum.Sent, "a reaped row is claimable again in the same run")
    assert.Equal(t, model.ReminderSent, store.status(10))
}

func TestClaimOrdering(t *testing.T) {
    store := newMemStore()
    store.billing[1] = owingState("guest@example.com")
    today := time.Now().Add(-time.Hour)
    yesterday := time.Now().Add(-25 * time.Hour)
    store.add(model.Reminder{ID: 1, ReservationID: 1, ScheduledOn: today, Urgency: model.UrgencyFinal})
    store.add(model.Reminder{ID: 2, ReservationID: 1, ScheduledOn: yesterday, Urgency: model.UrgencyFriendly})
    store.add(model.Reminder{ID: 3, ReservationID: 1, ScheduledOn: yesterday, Urgency: model.UrgencyUrgent})

    claimed, err := store.ClaimDue(context.Background(), time.Now(), 10)
    require.NoError(t, err)
    require.Len(t, claimed, 3)
    assert.Equal(t, uint64(3), claimed[0].ID, "soonest day, most urgent first")
    assert.Equal(t, uint64(2), claimed[1].ID)
    assert.Equal(t, uint64(1), claimed[2].ID)
}
