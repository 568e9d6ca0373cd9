package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/vinetrail/tour-booking/internal/booking"
    "github.com/vinetrail/tour-booking/internal/model"
)

// BookingStore implements booking.Ledger over the availability_blocks and
// reservations tables.  Each interface method is exactly one transaction;
// the exclusion constraint on availability_blocks is the arbiter of every
// race the hold-commit protocol can encounter.
type BookingStore struct {
    db *sql.DB
}

// NewBookingStore returns a BookingStore bound to the provided database.
func NewBookingStore(db *sql.DB) *BookingStore { return &BookingStore{db: db} }

// PlaceHold inserts a hold block for the vehicle and window.  When a
// concurrent transaction already committed an overlapping block, the insert
// itself fails with an exclusion violation and booking.ErrConflict is
// returned; there is no separate availability check whose result could go
// stale.
func (s *BookingStore) PlaceHold(ctx context.Context, vehicleID uint64, starts, ends time.Time, token string, expiresAt time.Time) (uint64, error) {
    const q = `INSERT INTO availability_blocks (vehicle_id, during, kind, hold_token, expires_at)
               VALUES ($1, tstzrange($2, $3, '[)'), 'hold', $4, $5)
               RETURNING id`
    var id uint64
    err := s.db.QueryRowContext(ctx, q, vehicleID, starts.UTC(), ends.UTC(), token, expiresAt.UTC()).Scan(&id)
    if err != nil {
        if isExclusionViolation(err) {
            return 0, booking.ErrConflict
        }
        return 0, err
    }
    return id, nil
}

// ReleaseHold deletes a hold block that never converted into a booking.
// Deleting an already-converted or already-deleted block is a no-op, which
// keeps the deferred release in the protocol idempotent.
func (s *BookingStore) ReleaseHold(ctx context.Context, blockID uint64) error {
    _, err := s.db.ExecContext(ctx, `DELETE FROM availability_blocks WHERE id = $1 AND kind = 'hold'`, blockID)
    return err
}

// CommitReservation creates the reservation row and converts the hold block
// into a booking block referencing it, in one transaction.  The conversion
// requires the block to still be a hold; if it was released or expired out
// from under us the transaction rolls back and the caller sees ErrConflict.
func (s *BookingStore) CommitReservation(ctx context.Context, blockID uint64, draft booking.ReservationDraft) (model.Reservation, error) {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return model.Reservation{}, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    code, err := nextConfirmationCodeTx(ctx, tx, time.Now())
    if err != nil {
        return model.Reservation{}, err
    }

    const ins = `INSERT INTO reservations
                   (confirmation_code, vehicle_id, starts_at, ends_at, party_size, contact_email, total_cents, balance_due_on)
                 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
                 RETURNING id, status, amount_paid_cents, billing_paused, sponsored, created_at, updated_at`
    res := model.Reservation{
        ConfirmationCode: code,
        VehicleID:        draft.VehicleID,
        StartsAt:         draft.StartsAt.UTC(),
        EndsAt:           draft.EndsAt.UTC(),
        PartySize:        draft.PartySize,
        ContactEmail:     draft.ContactEmail,
        TotalCents:       draft.TotalCents,
        BalanceDueOn:     draft.BalanceDueOn,
    }
    var due sql.NullTime
    if draft.BalanceDueOn != nil {
        due = sql.NullTime{Time: draft.BalanceDueOn.UTC(), Valid: true}
    }
    err = tx.QueryRowContext(ctx, ins,
        code, draft.VehicleID, draft.StartsAt.UTC(), draft.EndsAt.UTC(),
        draft.PartySize, draft.ContactEmail, draft.TotalCents, due,
    ).Scan(&res.ID, &res.Status, &res.AmountPaidCents, &res.BillingPaused, &res.Sponsored, &res.CreatedAt, &res.UpdatedAt)
    if err != nil {
        return model.Reservation{}, err
    }

    const conv = `UPDATE availability_blocks
                  SET kind = 'booking', reservation_id = $1, hold_token = NULL, expires_at = NULL
                  WHERE id = $2 AND kind = 'hold'`
    result, err := tx.ExecContext(ctx, conv, res.ID, blockID)
    if err != nil {
        return model.Reservation{}, err
    }
    affected, err := result.RowsAffected()
    if err != nil {
        return model.Reservation{}, err
    }
    if affected == 0 {
        // The hold disappeared between placement and commit.  Roll back the
        // reservation: it must never exist without its booking block.
        return model.Reservation{}, booking.ErrConflict
    }

    if err := tx.Commit(); err != nil {
        return model.Reservation{}, err
    }
    committed = true
    return res, nil
}

// CancelReservation marks the reservation cancelled and deletes its booking
// block in one transaction, freeing the vehicle/window for future holds.
func (s *BookingStore) CancelReservation(ctx context.Context, reservationID uint64) (model.Reservation, error) {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return model.Reservation{}, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    const upd = `UPDATE reservations
                 SET status = 'cancelled', updated_at = now()
                 WHERE id = $1 AND status = 'confirmed'
                 RETURNING confirmation_code, vehicle_id, starts_at, ends_at, party_size, contact_email,
                           total_cents, amount_paid_cents, billing_paused, sponsored, created_at, updated_at`
    res := model.Reservation{ID: reservationID, Status: model.ReservationCancelled}
    err = tx.QueryRowContext(ctx, upd, reservationID).Scan(
        &res.ConfirmationCode, &res.VehicleID, &res.StartsAt, &res.EndsAt, &res.PartySize, &res.ContactEmail,
        &res.TotalCents, &res.AmountPaidCents, &res.BillingPaused, &res.Sponsored, &res.CreatedAt, &res.UpdatedAt,
    )
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return model.Reservation{}, booking.ErrNotFound
        }
        return model.Reservation{}, err
    }

    if _, err := tx.ExecContext(ctx,
        `DELETE FROM availability_blocks WHERE reservation_id = $1 AND kind = 'booking'`, reservationID); err != nil {
        return model.Reservation{}, err
    }

    // A cancelled trip has nothing left to remind about.
    if _, err := tx.ExecContext(ctx,
        `UPDATE reminders SET status = 'cancelled' WHERE reservation_id = $1 AND status = 'pending'`, reservationID); err != nil {
        return model.Reservation{}, err
    }

    if err := tx.Commit(); err != nil {
        return model.Reservation{}, err
    }
    committed = true
    return res, nil
}

// GetReservation loads a single reservation.  booking.ErrNotFound is
// returned when no row exists.
func (s *BookingStore) GetReservation(ctx context.Context, id uint64) (model.Reservation, error) {
    const q = `SELECT id, confirmation_code, vehicle_id, starts_at, ends_at, party_size, contact_email,
                      status, total_cents, amount_paid_cents, balance_due_on, billing_paused, sponsored,
                      created_at, updated_at
               FROM reservations WHERE id = $1`
    var res model.Reservation
    var due sql.NullTime
    err := s.db.QueryRowContext(ctx, q, id).Scan(
        &res.ID, &res.ConfirmationCode, &res.VehicleID, &res.StartsAt, &res.EndsAt, &res.PartySize, &res.ContactEmail,
        &res.Status, &res.TotalCents, &res.AmountPaidCents, &due, &res.BillingPaused, &res.Sponsored,
        &res.CreatedAt, &res.UpdatedAt,
    )
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return model.Reservation{}, booking.ErrNotFound
        }
        return model.Reservation{}, err
    }
    if due.Valid {
        d := due.Time
        res.BalanceDueOn = &d
    }
    return res, nil
}
