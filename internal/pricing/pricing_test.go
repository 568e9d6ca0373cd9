package pricing

import (
    "context"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/vinetrail/tour-booking/internal/model"
)

func TestTicketQuote(t *testing.T) {
    p := NewStandardPricer()
    dep := model.Departure{UnitPriceCents: 9500}

    q, err := p.Ticket(context.Background(), dep, 4)
    require.NoError(t, err)
    assert.Equal(t, int64(38000), q.SubtotalCents)
    assert.Equal(t, int64(3230), q.TaxCents)
    assert.Equal(t, int64(41230), q.TotalCents)
}

func TestCharterQuote(t *testing.T) {
    p := NewStandardPricer()
    cases := []struct {
        name     string
        class    string
        duration time.Duration
        subtotal int64
    }{
        {"sedan whole hours", "sedan", 3 * time.Hour, 36000},
        {"sprinter partial hour rounds up", "sprinter", 5*time.Hour + 30*time.Minute, 6 * 18500},
        {"coach", "coach", 8 * time.Hour, 8 * 27500},
        {"sub-hour bills one hour", "sedan", 20 * time.Minute, 12000},
        {"unknown class falls back to sedan", "limousine", 2 * time.Hour, 24000},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            q, err := p.Charter(context.Background(), tc.class, tc.duration, 4)
            require.NoError(t, err)
            assert.Equal(t, tc.subtotal, q.SubtotalCents)
            assert.Equal(t, tc.subtotal*850/10000, q.TaxCents)
            assert.Equal(t, q.SubtotalCents+q.TaxCents, q.TotalCents)
        })
    }
}
