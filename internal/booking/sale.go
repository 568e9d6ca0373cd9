package booking

import (
    "context"
    "time"

    "github.com/vinetrail/tour-booking/internal/model"
    "github.com/vinetrail/tour-booking/internal/pricing"
)

// SaleStore runs a function inside one database transaction.  The function
// receives a SaleTx scoped to that transaction; any error rolls everything
// back, so there is never a partial sale or orphaned capacity consumption.
type SaleStore interface {
    Tx(ctx context.Context, fn func(tx SaleTx) error) error
}

// SaleTx is the transactional view used by the ticket sale path.
// LockDeparture must take a row-level exclusive lock (SELECT ... FOR
// UPDATE): the lock serializes every concurrent seller against the same
// capacity pool, which is what makes the subsequent unit sum trustworthy.
type SaleTx interface {
    LockDeparture(ctx context.Context, id uint64) (model.Departure, error)
    CommittedUnits(ctx context.Context, departureID uint64) (int, error)
    InsertSale(ctx context.Context, sale *model.TicketSale) error
    MarkDepartureFull(ctx context.Context, id uint64) error
    GetSale(ctx context.Context, id uint64) (model.TicketSale, error)
    CancelSale(ctx context.Context, id uint64) (bool, error)
    ReopenDeparture(ctx context.Context, id uint64) error
}

// PurchaseInput is the inbound "purchase N units" request.
type PurchaseInput struct {
    DepartureID uint64
    Units       int
    BuyerName   string
    BuyerEmail  string
}

// TicketDesk sells units of capacity on shared group departures.  Every
// sale against one departure serializes behind the departure row lock;
// arrival order at the lock, not request arrival order, decides who gets
// the last spot.  Throughput is deliberately traded for correctness here:
// concurrent buyers per slot number in the low tens at most.
type TicketDesk struct {
    store  SaleStore
    pricer pricing.Pricer
    now    func() time.Time
}

// NewTicketDesk constructs a TicketDesk.  A nil now defaults to time.Now.
func NewTicketDesk(store SaleStore, pricer pricing.Pricer, now func() time.Time) *TicketDesk {
    if now == nil {
        now = time.Now
    }
    return &TicketDesk{store: store, pricer: pricer, now: now}
}

// Purchase executes the check-and-reserve sale as a single transaction, in
// this exact order: lock the departure row, fail fast on status, re-check
// the booking cutoff inside the lock, sum committed units, verify remaining
// capacity, price, insert the sale, and flip the departure to full when the
// new total reaches capacity.
func (d *TicketDesk) Purchase(ctx context.Context, in PurchaseInput) (model.TicketSale, error) {
    if in.Units <= 0 {
        return model.TicketSale{}, &ValidationError{Field: "units", Reason: "must be positive"}
    }
    if in.BuyerName == "" {
        return model.TicketSale{}, &ValidationError{Field: "buyer_name", Reason: "required"}
    }

    var sale model.TicketSale
    err := d.store.Tx(ctx, func(tx SaleTx) error {
        dep, err := tx.LockDeparture(ctx, in.DepartureID)
        if err != nil {
            return err
        }
        switch dep.Status {
        case model.DepartureCancelled:
            return ErrTourCancelled
        case model.DepartureFull:
            return &CapacityError{Remaining: 0}
        }

        // Cutoff is checked under the lock so time-of-check equals
        // time-of-commit.
        closesAt := dep.DepartsAt.Add(-time.Duration(dep.CutoffMinutes) * time.Minute)
        if d.now().After(closesAt) {
            return &CutoffError{ClosedAt: closesAt}
        }

        committed, err := tx.CommittedUnits(ctx, dep.ID)
        if err != nil {
            return err
        }
        remaining := dep.Capacity - committed
        if in.Units > remaining {
            return &CapacityError{Remaining: remaining}
        }

        quote, err := d.pricer.Ticket(ctx, dep, in.Units)
        if err != nil {
            return err
        }

        sale = model.TicketSale{
            DepartureID:   dep.ID,
            Units:         in.Units,
            BuyerName:     in.BuyerName,
            BuyerEmail:    in.BuyerEmail,
            SubtotalCents: quote.SubtotalCents,
            TaxCents:      quote.TaxCents,
            TotalCents:    quote.TotalCents,
            PaymentStatus: model.PaymentPending,
            SaleStatus:    model.SaleConfirmed,
        }
        if err := tx.InsertSale(ctx, &sale); err != nil {
            return err
        }

        if committed+in.Units == dep.Capacity {
            if err := tx.MarkDepartureFull(ctx, dep.ID); err != nil {
                return err
            }
        }
        return nil
    })
    if err != nil {
        return model.TicketSale{}, err
    }
    return sale, nil
}

// Cancel cancels a sale and frees its units.  If the departure was full it
// reopens, again under the departure row lock so a concurrent purchase
// cannot observe the intermediate state.  Cancelling an already-cancelled
// sale is a no-op.
func (d *TicketDesk) Cancel(ctx context.Context, saleID uint64) (model.TicketSale, error) {
    var sale model.TicketSale
    err := d.store.Tx(ctx, func(tx SaleTx) error {
        var err error
        sale, err = tx.GetSale(ctx, saleID)
        if err != nil {
            return err
        }
        if sale.SaleStatus == model.SaleCancelled {
            return nil
        }
        dep, err := tx.LockDeparture(ctx, sale.DepartureID)
        if err != nil {
            return err
        }
        changed, err := tx.CancelSale(ctx, saleID)
        if err != nil {
            return err
        }
        if changed && dep.Status == model.DepartureFull {
            if err := tx.ReopenDeparture(ctx, dep.ID); err != nil {
                return err
            }
        }
        sale.SaleStatus = model.SaleCancelled
        return nil
    })
    if err != nil {
        return model.TicketSale{}, err
    }
    return sale, nil
}

// Remaining reports the open capacity for a departure.  The read runs in
// its own transaction under the row lock, so the number is exact at the
// moment it is computed (it may of course be stale by the time the caller
// acts on it; only Purchase's in-transaction check is authoritative).
func (d *TicketDesk) Remaining(ctx context.Context, departureID uint64) (int, error) {
    var remaining int
    err := d.store.Tx(ctx, func(tx SaleTx) error {
        dep, err := tx.LockDeparture(ctx, departureID)
        if err != nil {
            return err
        }
        committed, err := tx.CommittedUnits(ctx, dep.ID)
        if err != nil {
            return err
        }
        remaining = dep.Capacity - committed
        return nil
    })
    if err != nil {
        return 0, err
    }
    return remaining, nil
}
