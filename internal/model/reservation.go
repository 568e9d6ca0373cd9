package model

import "time"

// Reservation statuses.
const (
    ReservationConfirmed = "confirmed"
    ReservationCancelled = "cancelled"
)

// Reservation is a confirmed assignment of exactly one vehicle to one
// private charter trip.  A reservation row is only ever created after a
// hold block for the same vehicle and window committed first; the hold is
// then converted in place into the booking block that references this row.
//
// Billing fields drive the payment-reminder scheduler: BalanceDueOn is the
// deadline reminders are generated from, and BillingPaused / Sponsored are
// consulted fresh at dispatch time.
type Reservation struct {
    ID               uint64     // reservations.id
    ConfirmationCode string     // reservations.confirmation_code
    VehicleID        uint64     // reservations.vehicle_id
    StartsAt         time.Time  // reservations.starts_at
    EndsAt           time.Time  // reservations.ends_at
    PartySize        int        // reservations.party_size
    ContactEmail     string     // reservations.contact_email
    Status           string     // reservations.status
    TotalCents       int64      // reservations.total_cents
    AmountPaidCents  int64      // reservations.amount_paid_cents
    BalanceDueOn     *time.Time // reservations.balance_due_on (nullable)
    BillingPaused    bool       // reservations.billing_paused
    Sponsored        bool       // reservations.sponsored
    CreatedAt        time.Time  // reservations.created_at
    UpdatedAt        time.Time  // reservations.updated_at
}
