package scheduler

import (
    "context"
    "fmt"
    "log"
    "time"

    "github.com/vinetrail/tour-booking/internal/model"
    "github.com/vinetrail/tour-booking/internal/notify"
)

// BillingState is the fresh per-reservation read taken after a claim.  A
// reminder is never evaluated against data read before its claim; the cost
// of violating that rule is reminding someone who already paid.
type BillingState struct {
    ConfirmationCode string
    ContactEmail     string
    BillingPaused    bool
    Sponsored        bool
    PaymentStatus    string
    TotalCents       int64
    AmountPaidCents  int64
    BalanceDueOn     *time.Time
}

// OutstandingCents is the unpaid remainder; zero or negative means there is
// nothing to remind about.
func (b BillingState) OutstandingCents() int64 {
    return b.TotalCents - b.AmountPaidCents
}

// Store is the persistence contract for the dispatcher.
//
// ClaimDue must select all pending, unpaused reminders due on or before the
// given day and move them to processing in one atomic statement with
// skip-locked semantics, ordered soonest deadline and highest urgency
// first.  ReapStuck reverts processing rows older than the given age back
// to pending; a stuck processing row is a crashed worker's leftover, never
// something a second worker may grab while live.
type Store interface {
    ClaimDue(ctx context.Context, dueOn time.Time, limit int) ([]model.Reminder, error)
    Billing(ctx context.Context, reservationID uint64) (BillingState, error)
    MarkSent(ctx context.Context, reminderID uint64, at time.Time) error
    MarkSkipped(ctx context.Context, reminderID uint64, reason string) error
    MarkFailed(ctx context.Context, reminderID uint64, reason string) error
    ReapStuck(ctx context.Context, olderThan time.Duration) (int, error)
}

// Skip reasons recorded on skipped rows and in the run summary.
const (
    SkipPaused     = "billing_paused"
    SkipPaid       = "already_paid"
    SkipNothingDue = "nothing_outstanding"
    SkipNoContact  = "no_contact_address"
    SkipSponsored  = "sponsored"
)

// Outcome is the reason-tagged result for one claimed reminder.
type Outcome struct {
    ReminderID uint64 `json:"reminder_id"`
    Status     string `json:"status"` // sent, skipped, failed
    Reason     string `json:"reason,omitempty"`
}

// Summary is the result of one dispatcher run.
type Summary struct {
    Claimed int       `json:"claimed"`
    Sent    int       `json:"sent"`
    Skipped int       `json:"skipped"`
    Failed  int       `json:"failed"`
    Reaped  int       `json:"reaped"`
    Details []Outcome `json:"details"`
}

// Dispatcher claims due reminders and dispatches them at most once.  It may
// be triggered by the in-process ticker, a cron binary and a manual ops
// endpoint at the same time; the claim statement is what keeps that safe.
type Dispatcher struct {
    store     Store
    renderer  notify.Renderer
    sender    notify.Sender
    batchSize int
    reapAfter time.Duration
    now       func() time.Time
}

// Config carries dispatcher tuning.  Zero values fall back to a batch of
// 100 and a 15 minute reap window.
type Config struct {
    BatchSize int
    ReapAfter time.Duration
}

// NewDispatcher constructs a Dispatcher.  A nil now defaults to time.Now.
func NewDispatcher(store Store, renderer notify.Renderer, sender notify.Sender, cfg Config, now func() time.Time) *Dispatcher {
    batch := cfg.BatchSize
    if batch <= 0 {
        batch = 100
    }
    reap := cfg.ReapAfter
    if reap <= 0 {
        reap = 15 * time.Minute
    }
    if now == nil {
        now = time.Now
    }
    return &Dispatcher{
        store:     store,
        renderer:  renderer,
        sender:    sender,
        batchSize: batch,
        reapAfter: reap,
        now:       now,
    }
}

// Run executes one dispatch cycle: reap stuck rows, claim the due batch,
// then evaluate each claimed reminder against a fresh billing read and
// record a terminal outcome.  A single reminder's failure is recorded
// per-row and never aborts the rest of the batch.
func (d *Dispatcher) Run(ctx context.Context) (Summary, error) {
    var sum Summary

    reaped, err := d.store.ReapStuck(ctx, d.reapAfter)
    if err != nil {
        return sum, fmt.Errorf("reap stuck reminders: %w", err)
    }
    sum.Reaped = reaped

    claimed, err := d.store.ClaimDue(ctx, d.now(), d.batchSize)
    if err != nil {
        return sum, fmt.Errorf("claim due reminders: %w", err)
    }
    sum.Claimed = len(claimed)

    // Billing reads are cached for the duration of this run only.  That is
    // safe because the batch was claimed up front and no row's outcome
    // depends on another row's processing; it is still a post-claim read.
    billing := make(map[uint64]BillingState)

    for _, rem := range claimed {
        outcome := d.process(ctx, rem, billing)
        sum.Details = append(sum.Details, outcome)
        switch outcome.Status {
        case model.ReminderSent:
            sum.Sent++
        case model.ReminderSkipped:
            sum.Skipped++
        default:
            sum.Failed++
        }
    }
    return sum, nil
}

func (d *Dispatcher) process(ctx context.Context, rem model.Reminder, cache map[uint64]BillingState) Outcome {
    state, ok := cache[rem.ReservationID]
    if !ok {
        var err error
        state, err = d.store.Billing(ctx, rem.ReservationID)
        if err != nil {
            return d.fail(ctx, rem.ID, fmt.Sprintf("billing read: %v", err))
        }
        cache[rem.ReservationID] = state
    }

    if reason := skipReason(rem, state); reason != "" {
        if err := d.store.MarkSkipped(ctx, rem.ID, reason); err != nil {
            log.Printf("dispatcher: mark skipped %d: %v", rem.ID, err)
        }
        return Outcome{ReminderID: rem.ID, Status: model.ReminderSkipped, Reason: reason}
    }

    due := ""
    if state.BalanceDueOn != nil {
        due = state.BalanceDueOn.Format("2006-01-02")
    }
    msg, err := d.renderer.Render(rem.Urgency, notify.ReminderData{
        ConfirmationCode: state.ConfirmationCode,
        OutstandingCents: state.OutstandingCents(),
        DueOn:            due,
    })
    if err != nil {
        return d.fail(ctx, rem.ID, fmt.Sprintf("render: %v", err))
    }

    if err := d.sender.Send(state.ContactEmail, msg); err != nil {
        // The send may have gone through past the point of failure
        // detection, so the row stays terminal for this cycle instead of
        // reverting to pending and risking a duplicate next run.
        return d.fail(ctx, rem.ID, fmt.Sprintf("send: %v", err))
    }

    if err := d.store.MarkSent(ctx, rem.ID, d.now()); err != nil {
        log.Printf("dispatcher: mark sent %d: %v", rem.ID, err)
    }
    return Outcome{ReminderID: rem.ID, Status: model.ReminderSent}
}

func (d *Dispatcher) fail(ctx context.Context, reminderID uint64, reason string) Outcome {
    if err := d.store.MarkFailed(ctx, reminderID, reason); err != nil {
        log.Printf("dispatcher: mark failed %d: %v", reminderID, err)
    }
    return Outcome{ReminderID: reminderID, Status: model.ReminderFailed, Reason: reason}
}

// skipReason returns the first applicable skip reason, or "" when the
// reminder should be sent.  The paused flag on the reminder row and the
// billing-level pause are both honoured.
func skipReason(rem model.Reminder, state BillingState) string {
    switch {
    case rem.Paused || state.BillingPaused:
        return SkipPaused
    case state.Sponsored:
        return SkipSponsored
    case state.PaymentStatus == model.PaymentPaid:
        return SkipPaid
    case state.OutstandingCents() <= 0:
        return SkipNothingDue
    case state.ContactEmail == "":
        return SkipNoContact
    }
    return ""
}

// Start runs the dispatcher on a fixed cadence until the context is
// cancelled.  Overlap with other triggers is harmless; the claim makes each
// reminder land in exactly one run.
func Start(ctx context.Context, interval time.Duration, d *Dispatcher) {
    ticker := time.NewTicker(interval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            sum, err := d.Run(ctx)
            if err != nil {
                log.Printf("dispatcher: run failed: %v", err)
                continue
            }
            log.Printf("dispatcher: claimed=%d sent=%d skipped=%d failed=%d reaped=%d",
                sum.Claimed, sum.Sent, sum.Skipped, sum.Failed, sum.Reaped)
        }
    }
}
