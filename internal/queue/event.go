// Package queue defines message payloads exchanged over the message broker.
package queue

// ReservationConfirmedEvent is published when a private charter reservation
// commits.  It carries enough for downstream consumers to log, notify, or
// feed analytics without querying the primary database.
type ReservationConfirmedEvent struct {
    EventID          string `json:"event_id"`
    ReservationID    uint64 `json:"reservation_id"`
    ConfirmationCode string `json:"confirmation_code"`
    VehicleID        uint64 `json:"vehicle_id"`
    StartsAt         string `json:"starts_at"`
    EndsAt           string `json:"ends_at"`
    PartySize        int    `json:"party_size"`
    TotalCents       int64  `json:"total_cents"`
    ConfirmedAt      string `json:"confirmed_at"`
}

// TicketSaleConfirmedEvent is published when a group-tour ticket sale
// commits.
type TicketSaleConfirmedEvent struct {
    EventID          string `json:"event_id"`
    SaleID           uint64 `json:"sale_id"`
    ConfirmationCode string `json:"confirmation_code"`
    DepartureID      uint64 `json:"departure_id"`
    Units            int    `json:"units"`
    TotalCents       int64  `json:"total_cents"`
    ConfirmedAt      string `json:"confirmed_at"`
}

// PaymentReceivedEvent is published after a payment webhook marks an entity
// paid for the first time.  Duplicate webhook deliveries do not publish.
type PaymentReceivedEvent struct {
    EventID            string `json:"event_id"`
    EntityKind         string `json:"entity_kind"` // reservation or sale
    EntityID           uint64 `json:"entity_id"`
    IntentID           string `json:"intent_id"`
    RemindersCancelled int    `json:"reminders_cancelled"`
    ReceivedAt         string `json:"received_at"`
}
