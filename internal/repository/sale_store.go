package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/vinetrail/tour-booking/internal/booking"
    "github.com/vinetrail/tour-booking/internal/model"
)

// SaleStore implements booking.SaleStore over the departures and
// ticket_sales tables.
type SaleStore struct {
    db *sql.DB
}

// NewSaleStore returns a SaleStore bound to the provided database.
func NewSaleStore(db *sql.DB) *SaleStore { return &SaleStore{db: db} }

// Tx begins a transaction, hands the ticket desk a transactional view, and
// commits only when fn returns nil.  Any error rolls the whole sale back.
func (s *SaleStore) Tx(ctx context.Context, fn func(tx booking.SaleTx) error) error {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    if err := fn(&saleTx{tx: tx}); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// saleTx is the *sql.Tx-backed implementation of booking.SaleTx.
type saleTx struct {
    tx *sql.Tx
}

// LockDeparture takes the row-level exclusive lock that serializes every
// concurrent seller for this departure.  Everything the sale decides on is
// read after this lock is held.
func (t *saleTx) LockDeparture(ctx context.Context, id uint64) (model.Departure, error) {
    const q = `SELECT id, tour_name, departs_at, capacity, cutoff_minutes, unit_price_cents, status, created_at
               FROM departures WHERE id = $1 FOR UPDATE`
    var dep model.Departure
    err := t.tx.QueryRowContext(ctx, q, id).Scan(
        &dep.ID, &dep.TourName, &dep.DepartsAt, &dep.Capacity, &dep.CutoffMinutes,
        &dep.UnitPriceCents, &dep.Status, &dep.CreatedAt,
    )
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return model.Departure{}, booking.ErrNotFound
        }
        return model.Departure{}, err
    }
    return dep, nil
}

// CommittedUnits sums units across non-cancelled sales.  Runs under the
// departure lock, so the sum cannot be stale relative to this transaction.
func (t *saleTx) CommittedUnits(ctx context.Context, departureID uint64) (int, error) {
    const q = `SELECT COALESCE(SUM(units), 0) FROM ticket_sales
               WHERE departure_id = $1 AND sale_status <> 'cancelled'`
    var units int
    if err := t.tx.QueryRowContext(ctx, q, departureID).Scan(&units); err != nil {
        return 0, err
    }
    return units, nil
}

// InsertSale persists the sale row, assigning its ID and per-year
// confirmation code.
func (t *saleTx) InsertSale(ctx context.Context, sale *model.TicketSale) error {
    code, err := nextConfirmationCodeTx(ctx, t.tx, time.Now())
    if err != nil {
        return err
    }
    const q = `INSERT INTO ticket_sales
                 (confirmation_code, departure_id, units, buyer_name, buyer_email,
                  subtotal_cents, tax_cents, total_cents, payment_status, sale_status)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
               RETURNING id, created_at, updated_at`
    sale.ConfirmationCode = code
    return t.tx.QueryRowContext(ctx, q,
        code, sale.DepartureID, sale.Units, sale.BuyerName, sale.BuyerEmail,
        sale.SubtotalCents, sale.TaxCents, sale.TotalCents, sale.PaymentStatus, sale.SaleStatus,
    ).Scan(&sale.ID, &sale.CreatedAt, &sale.UpdatedAt)
}

// MarkDepartureFull flips the departure to full so the next concurrent
// transaction fails fast at the status check.
func (t *saleTx) MarkDepartureFull(ctx context.Context, id uint64) error {
    _, err := t.tx.ExecContext(ctx, `UPDATE departures SET status = 'full' WHERE id = $1 AND status = 'open'`, id)
    return err
}

// GetSale loads a sale within the transaction.
func (t *saleTx) GetSale(ctx context.Context, id uint64) (model.TicketSale, error) {
    const q = `SELECT id, confirmation_code, departure_id, units, buyer_name, buyer_email,
                      subtotal_cents, tax_cents, total_cents, payment_status, sale_status, created_at, updated_at
               FROM ticket_sales WHERE id = $1`
    var sale model.TicketSale
    err := t.tx.QueryRowContext(ctx, q, id).Scan(
        &sale.ID, &sale.ConfirmationCode, &sale.DepartureID, &sale.Units, &sale.BuyerName, &sale.BuyerEmail,
        &sale.SubtotalCents, &sale.TaxCents, &sale.TotalCents, &sale.PaymentStatus, &sale.SaleStatus,
        &sale.CreatedAt, &sale.UpdatedAt,
    )
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return model.TicketSale{}, booking.ErrNotFound
        }
        return model.TicketSale{}, err
    }
    return sale, nil
}

// CancelSale marks a sale cancelled.  Returns false when the sale was
// already cancelled by a concurrent request.
func (t *saleTx) CancelSale(ctx context.Context, id uint64) (bool, error) {
    result, err := t.tx.ExecContext(ctx,
        `UPDATE ticket_sales SET sale_status = 'cancelled', updated_at = now()
         WHERE id = $1 AND sale_status <> 'cancelled'`, id)
    if err != nil {
        return false, err
    }
    affected, err := result.RowsAffected()
    if err != nil {
        return false, err
    }
    return affected > 0, nil
}

// ReopenDeparture reverts a full departure to open after a cancellation
// freed units.
func (t *saleTx) ReopenDeparture(ctx context.Context, id uint64) error {
    _, err := t.tx.ExecContext(ctx, `UPDATE departures SET status = 'open' WHERE id = $1 AND status = 'full'`, id)
    return err
}

// GetDeparture loads a departure outside any sale transaction, for display.
func (s *SaleStore) GetDeparture(ctx context.Context, id uint64) (model.Departure, error) {
    const q = `SELECT id, tour_name, departs_at, capacity, cutoff_minutes, unit_price_cents, status, created_at
               FROM departures WHERE id = $1`
    var dep model.Departure
    err := s.db.QueryRowContext(ctx, q, id).Scan(
        &dep.ID, &dep.TourName, &dep.DepartsAt, &dep.Capacity, &dep.CutoffMinutes,
        &dep.UnitPriceCents, &dep.Status, &dep.CreatedAt,
    )
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return model.Departure{}, booking.ErrNotFound
        }
        return model.Departure{}, err
    }
    return dep, nil
}
