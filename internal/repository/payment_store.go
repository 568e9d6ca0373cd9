package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/vinetrail/tour-booking/internal/booking"
    "github.com/vinetrail/tour-booking/internal/payment"
)

// PaymentStore implements payment.Store over the reservations and
// ticket_sales tables.  Intents attach to either entity kind; both tables
// carry payment_intent_ref and intent_generation columns.
type PaymentStore struct {
    db *sql.DB
}

// NewPaymentStore returns a PaymentStore bound to the provided database.
func NewPaymentStore(db *sql.DB) *PaymentStore { return &PaymentStore{db: db} }

func tableFor(kind string) (string, error) {
    switch kind {
    case payment.EntityReservation:
        return "reservations", nil
    case payment.EntitySale:
        return "ticket_sales", nil
    }
    return "", errors.New("unknown payment entity kind: " + kind)
}

// PaymentState reads the locally stored payment view of one entity.
func (s *PaymentStore) PaymentState(ctx context.Context, ref payment.EntityRef) (payment.PaymentState, error) {
    var state payment.PaymentState
    var intentRef sql.NullString
    var err error
    switch ref.Kind {
    case payment.EntityReservation:
        const q = `SELECT CASE WHEN amount_paid_cents >= total_cents AND total_cents > 0 THEN 'paid' ELSE 'pending' END,
                          total_cents, payment_intent_ref, intent_generation
                   FROM reservations WHERE id = $1`
        err = s.db.QueryRowContext(ctx, q, ref.ID).Scan(&state.PaymentStatus, &state.TotalCents, &intentRef, &state.Generation)
    case payment.EntitySale:
        const q = `SELECT payment_status, total_cents, payment_intent_ref, intent_generation
                   FROM ticket_sales WHERE id = $1`
        err = s.db.QueryRowContext(ctx, q, ref.ID).Scan(&state.PaymentStatus, &state.TotalCents, &intentRef, &state.Generation)
    default:
        return payment.PaymentState{}, errors.New("unknown payment entity kind: " + ref.Kind)
    }
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return payment.PaymentState{}, booking.ErrNotFound
        }
        return payment.PaymentState{}, err
    }
    if intentRef.Valid {
        state.IntentRef = intentRef.String
    }
    return state, nil
}

// SaveIntent records the intent reference and generation on the owning row.
func (s *PaymentStore) SaveIntent(ctx context.Context, ref payment.EntityRef, intentID string, generation int) error {
    table, err := tableFor(ref.Kind)
    if err != nil {
        return err
    }
    result, err := s.db.ExecContext(ctx,
        `UPDATE `+table+` SET payment_intent_ref = $2, intent_generation = $3, updated_at = now() WHERE id = $1`,
        ref.ID, intentID, generation)
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

// FindByIntent resolves an intent reference to its owning entity.  Webhooks
// only carry the intent id, so this is the entry point of confirmation.
func (s *PaymentStore) FindByIntent(ctx context.Context, intentID string) (payment.EntityRef, error) {
    var id uint64
    err := s.db.QueryRowContext(ctx,
        `SELECT id FROM ticket_sales WHERE payment_intent_ref = $1`, intentID).Scan(&id)
    if err == nil {
        return payment.EntityRef{Kind: payment.EntitySale, ID: id}, nil
    }
    if !errors.Is(err, sql.ErrNoRows) {
        return payment.EntityRef{}, err
    }
    err = s.db.QueryRowContext(ctx,
        `SELECT id FROM reservations WHERE payment_intent_ref = $1`, intentID).Scan(&id)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return payment.EntityRef{}, booking.ErrNotFound
        }
        return payment.EntityRef{}, err
    }
    return payment.EntityRef{Kind: payment.EntityReservation, ID: id}, nil
}

// MarkPaid flips the entity to paid.  The WHERE clause makes it idempotent:
// a second webhook delivery matches zero rows and reports changed=false,
// which the gateway acknowledges without re-processing.
func (s *PaymentStore) MarkPaid(ctx context.Context, ref payment.EntityRef) (bool, error) {
    var result sql.Result
    var err error
    switch ref.Kind {
    case payment.EntityReservation:
        result, err = s.db.ExecContext(ctx,
            `UPDATE reservations SET amount_paid_cents = total_cents, updated_at = now()
             WHERE id = $1 AND amount_paid_cents < total_cents`, ref.ID)
    case payment.EntitySale:
        result, err = s.db.ExecContext(ctx,
            `UPDATE ticket_sales SET payment_status = 'paid', updated_at = now()
             WHERE id = $1 AND payment_status = 'pending'`, ref.ID)
    default:
        return false, errors.New("unknown payment entity kind: " + ref.Kind)
    }
    if err != nil {
        return false, err
    }
    affected, err := result.RowsAffected()
    if err != nil {
        return false, err
    }
    return affected > 0, nil
}

// CancelPendingReminders cancels all pending reminders for a reservation
// that just paid in full.
func (s *PaymentStore) CancelPendingReminders(ctx context.Context, reservationID uint64) (int, error) {
    result, err := s.db.ExecContext(ctx,
        `UPDATE reminders SET status = 'cancelled' WHERE reservation_id = $1 AND status = 'pending'`,
        reservationID)
    if err != nil {
        return 0, err
    }
    affected, err := result.RowsAffected()
    if err != nil {
        return 0, err
    }
    return int(affected), nil
}
