// Package pricing is the delegated price calculator consulted by the
// booking core.  It is read-only and safe to call while holding the
// departure row lock.
package pricing

import (
    "context"
    "time"

    "github.com/vinetrail/tour-booking/internal/model"
)

// Quote is a priced breakdown in minor currency units.
type Quote struct {
    SubtotalCents int64 `json:"subtotal_cents"`
    TaxCents      int64 `json:"tax_cents"`
    TotalCents    int64 `json:"total_cents"`
}

// Pricer computes quotes for the two booking types.  Implementations must
// be side-effect free.
type Pricer interface {
    // Ticket prices units seats on a group departure.
    Ticket(ctx context.Context, dep model.Departure, units int) (Quote, error)
    // Charter prices a private trip by vehicle class and duration.
    Charter(ctx context.Context, class string, duration time.Duration, partySize int) (Quote, error)
}

// StandardPricer is the default rate table: a per-seat price carried on the
// departure row, and an hourly rate per vehicle class for charters.  Tax is
// a flat basis-point rate applied to the subtotal.
type StandardPricer struct {
    TaxBasisPoints int64            // e.g. 850 for 8.5%
    HourlyRates    map[string]int64 // class -> cents per hour
}

// NewStandardPricer returns a pricer with the house rate table.
func NewStandardPricer() *StandardPricer {
    return &StandardPricer{
        TaxBasisPoints: 850,
        HourlyRates: map[string]int64{
            "sedan":    12000,
            "sprinter": 18500,
            "coach":    27500,
        },
    }
}

func (p *StandardPricer) Ticket(_ context.Context, dep model.Departure, units int) (Quote, error) {
    sub := dep.UnitPriceCents * int64(units)
    return p.quote(sub), nil
}

func (p *StandardPricer) Charter(_ context.Context, class string, duration time.Duration, _ int) (Quote, error) {
    rate, ok := p.HourlyRates[class]
    if !ok {
        rate = p.HourlyRates["sedan"]
    }
    // Round partial hours up; a 5.5h trip bills 6 hours.
    hours := int64(duration / time.Hour)
    if duration%time.Hour != 0 {
        hours++
    }
    if hours < 1 {
        hours = 1
    }
    return p.quote(rate * hours), nil
}

func (p *StandardPricer) quote(subtotal int64) Quote {
    tax := subtotal * p.TaxBasisPoints / 10000
    return Quote{SubtotalCents: subtotal, TaxCents: tax, TotalCents: subtotal + tax}
}
