package repository

import (
    "context"
    "database/sql"
    "fmt"
    "time"

    "github.com/vinetrail/tour-booking/internal/booking"
    "github.com/vinetrail/tour-booking/internal/model"
    "github.com/vinetrail/tour-booking/internal/scheduler"
)

// ReminderStore implements scheduler.Store plus the creation paths used by
// the schedule generator and the manual ops endpoint.
type ReminderStore struct {
    db *sql.DB
}

// NewReminderStore returns a ReminderStore bound to the provided database.
func NewReminderStore(db *sql.DB) *ReminderStore { return &ReminderStore{db: db} }

// ClaimDue atomically claims the batch of due reminders: a single UPDATE
// whose subquery selects pending, unpaused rows due on or before the given
// day with FOR UPDATE SKIP LOCKED.  Two overlapping dispatcher runs can
// never both claim the same row: whichever locks it first claims it, the
// other skips it.  Ordering is soonest schedule first, then most urgent,
// best effort.
func (s *ReminderStore) ClaimDue(ctx context.Context, dueOn time.Time, limit int) ([]model.Reminder, error) {
    const q = `UPDATE reminders
               SET status = 'processing', claimed_at = now()
               WHERE id IN (
                   SELECT id FROM reminders
                   WHERE status = 'pending' AND NOT paused AND scheduled_on <= $1
                   ORDER BY scheduled_on,
                            CASE urgency
                                WHEN 'final' THEN 0
                                WHEN 'urgent' THEN 1
                                WHEN 'firm' THEN 2
                                ELSE 3
                            END
                   FOR UPDATE SKIP LOCKED
                   LIMIT $2
               )
               RETURNING id, reservation_id, scheduled_on, urgency, status, paused, claimed_at, created_at`
    rows, err := s.db.QueryContext(ctx, q, dueOn.UTC().Format("2006-01-02"), limit)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var claimed []model.Reminder
    for rows.Next() {
        var r model.Reminder
        var claimedAt sql.NullTime
        if err := rows.Scan(&r.ID, &r.ReservationID, &r.ScheduledOn, &r.Urgency, &r.Status, &r.Paused, &claimedAt, &r.CreatedAt); err != nil {
            return nil, err
        }
        if claimedAt.Valid {
            t := claimedAt.Time
            r.ClaimedAt = &t
        }
        claimed = append(claimed, r)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return claimed, nil
}

// Billing is the mandatory post-claim fresh read of the owning
// reservation's payment state.
func (s *ReminderStore) Billing(ctx context.Context, reservationID uint64) (scheduler.BillingState, error) {
    const q = `SELECT confirmation_code, contact_email, billing_paused, sponsored,
                      CASE WHEN amount_paid_cents >= total_cents AND total_cents > 0 THEN 'paid' ELSE 'pending' END,
                      total_cents, amount_paid_cents, balance_due_on
               FROM reservations WHERE id = $1`
    var state scheduler.BillingState
    var due sql.NullTime
    err := s.db.QueryRowContext(ctx, q, reservationID).Scan(
        &state.ConfirmationCode, &state.ContactEmail, &state.BillingPaused, &state.Sponsored,
        &state.PaymentStatus, &state.TotalCents, &state.AmountPaidCents, &due,
    )
    if err != nil {
        return scheduler.BillingState{}, err
    }
    if due.Valid {
        t := due.Time
        state.BalanceDueOn = &t
    }
    return state, nil
}

// MarkSent transitions a processing reminder to sent and stamps the time.
func (s *ReminderStore) MarkSent(ctx context.Context, reminderID uint64, at time.Time) error {
    return s.transition(ctx, reminderID,
        `UPDATE reminders SET status = 'sent', sent_at = $2 WHERE id = $1 AND status = 'processing'`, at.UTC())
}

// MarkSkipped transitions a processing reminder to skipped with a reason.
func (s *ReminderStore) MarkSkipped(ctx context.Context, reminderID uint64, reason string) error {
    return s.transition(ctx, reminderID,
        `UPDATE reminders SET status = 'skipped', skip_reason = $2 WHERE id = $1 AND status = 'processing'`, reason)
}

// MarkFailed records a terminal-for-this-cycle dispatch failure.
func (s *ReminderStore) MarkFailed(ctx context.Context, reminderID uint64, reason string) error {
    return s.transition(ctx, reminderID,
        `UPDATE reminders SET status = 'failed', skip_reason = $2 WHERE id = $1 AND status = 'processing'`, reason)
}

func (s *ReminderStore) transition(ctx context.Context, reminderID uint64, query string, arg interface{}) error {
    result, err := s.db.ExecContext(ctx, query, reminderID, arg)
    if err != nil {
        return err
    }
    affected, err := result.RowsAffected()
    if err != nil {
        return err
    }
    if affected == 0 {
        return booking.ErrNotFound
    }
    return nil
}

// ReapStuck reverts processing rows whose claim is older than the given
// age back to pending.  Such rows are leftovers of a worker that died
// mid-evaluation; live rows are protected because a live claim is younger
// than any sane reap window.
func (s *ReminderStore) ReapStuck(ctx context.Context, olderThan time.Duration) (int, error) {
    const q = `UPDATE reminders
               SET status = 'pending', claimed_at = NULL
               WHERE status = 'processing' AND claimed_at < now() - $1::interval`
    result, err := s.db.ExecContext(ctx, q, olderThan.String())
    if err != nil {
        return 0, err
    }
    affected, err := result.RowsAffected()
    if err != nil {
        return 0, err
    }
    return int(affected), nil
}

// InsertPending creates one manually scheduled reminder.  Validation of the
// urgency tier and date happens in the scheduler package before this call.
func (s *ReminderStore) InsertPending(ctx context.Context, reservationID uint64, scheduledOn time.Time, urgency string) (model.Reminder, error) {
    const q = `INSERT INTO reminders (reservation_id, scheduled_on, urgency)
               VALUES ($1, $2, $3)
               RETURNING id, status, paused, created_at`
    r := model.Reminder{ReservationID: reservationID, ScheduledOn: scheduledOn, Urgency: urgency}
    err := s.db.QueryRowContext(ctx, q, reservationID, scheduledOn.Format("2006-01-02"), urgency).
        Scan(&r.ID, &r.Status, &r.Paused, &r.CreatedAt)
    if err != nil {
        return model.Reminder{}, err
    }
    return r, nil
}

// CreateSchedule bulk-inserts a generated reminder plan for a reservation
// in one statement.  An empty plan is a no-op.
func (s *ReminderStore) CreateSchedule(ctx context.Context, reservationID uint64, plan []scheduler.PlannedReminder) error {
    if len(plan) == 0 {
        return nil
    }
    query := `INSERT INTO reminders (reservation_id, scheduled_on, urgency) VALUES `
    args := make([]interface{}, 0, len(plan)*3)
    for i, p := range plan {
        if i > 0 {
            query += ","
        }
        n := i * 3
        query += fmt.Sprintf("($%d, $%d, $%d)", n+1, n+2, n+3)
        args = append(args, reservationID, p.ScheduledOn.Format("2006-01-02"), p.Urgency)
    }
    _, err := s.db.ExecContext(ctx, query, args...)
    return err
}

// ListForReservation returns all reminders for a reservation, soonest
// first.
func (s *ReminderStore) ListForReservation(ctx context.Context, reservationID uint64) ([]model.Reminder, error) {
    const q = `SELECT id, reservation_id, scheduled_on, urgency, status, paused,
                      COALESCE(skip_reason, ''), claimed_at, sent_at, created_at
               FROM reminders WHERE reservation_id = $1 ORDER BY scheduled_on, id`
    rows, err := s.db.QueryContext(ctx, q, reservationID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var reminders []model.Reminder
    for rows.Next() {
        var r model.Reminder
        var claimedAt, sentAt sql.NullTime
        if err := rows.Scan(&r.ID, &r.ReservationID, &r.ScheduledOn, &r.Urgency, &r.Status, &r.Paused,
            &r.SkipReason, &claimedAt, &sentAt, &r.CreatedAt); err != nil {
            return nil, err
        }
        if claimedAt.Valid {
            t := claimedAt.Time
            r.ClaimedAt = &t
        }
        if sentAt.Valid {
            t := sentAt.Time
            r.SentAt = &t
        }
        reminders = append(reminders, r)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return reminders, nil
}

// SetPaused flips the pause flag on a pending reminder.
func (s *ReminderStore) SetPaused(ctx context.Context, reminderID uint64, paused bool) error {
    result, err := s.db.ExecContext(ctx,
        `UPDATE reminders SET paused = $2 WHERE id = $1 AND status = 'pending'`, reminderID, paused)
    if err != nil {
        return err
    }
    affected, err := result.RowsAffected()
    if err != nil {
        return err
    }
    if affected == 0 {
        return booking.ErrNotFound
    }
    return nil
}
