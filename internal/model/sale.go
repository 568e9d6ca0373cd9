package model

import "time"

// Payment statuses for ticket sales and reservations.
const (
    PaymentPending  = "pending"
    PaymentPaid     = "paid"
    PaymentRefunded = "refunded"
)

// Sale statuses.  Cancelled sales free their units implicitly: the capacity
// sum in the sale transaction excludes them.
const (
    SaleConfirmed = "confirmed"
    SaleCancelled = "cancelled"
    SaleNoShow    = "no_show"
    SaleAttended  = "attended"
)

// TicketSale is a purchase of Units seats against one departure.  Sales are
// only ever created inside the atomic lock-then-check-then-insert
// transaction; a committed sale implies the capacity invariant held at
// commit time.
type TicketSale struct {
    ID               uint64    // ticket_sales.id
    ConfirmationCode string    // ticket_sales.confirmation_code
    DepartureID      uint64    // ticket_sales.departure_id
    Units            int       // ticket_sales.units
    BuyerName        string    // ticket_sales.buyer_name
    BuyerEmail       string    // ticket_sales.buyer_email
    SubtotalCents    int64     // ticket_sales.subtotal_cents
    TaxCents         int64     // ticket_sales.tax_cents
    TotalCents       int64     // ticket_sales.total_cents
    PaymentStatus    string    // ticket_sales.payment_status
    SaleStatus       string    // ticket_sales.sale_status
    CreatedAt        time.Time // ticket_sales.created_at
    UpdatedAt        time.Time // ticket_sales.updated_at
}
