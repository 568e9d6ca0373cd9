package model

import "time"

// Departure statuses.  A departure flips to "full" inside the same
// transaction that sells its last unit, so the next buyer fails fast on the
// status check instead of racing through the capacity math.
const (
    DepartureOpen      = "open"
    DepartureFull      = "full"
    DepartureCancelled = "cancelled"
)

// Departure is a scheduled group tour: the shared, many-buyer resource with
// a fixed total capacity.  The departure row is the lock target that
// serializes all concurrent ticket sales against one capacity pool.
//
// Fields:
//  ID            – primary key identifier.
//  TourName      – display name of the tour itinerary.
//  DepartsAt     – scheduled departure time (UTC).
//  Capacity      – maximum guest count across all sales.
//  CutoffMinutes – booking closes this many minutes before departure.
//  Status        – one of the Departure* constants.
//  CreatedAt     – creation timestamp.
type Departure struct {
    ID             uint64    // departures.id
    TourName       string    // departures.tour_name
    DepartsAt      time.Time // departures.departs_at
    Capacity       int       // departures.capacity
    CutoffMinutes  int       // departures.cutoff_minutes
    UnitPriceCents int64     // departures.unit_price_cents
    Status         string    // departures.status
    CreatedAt      time.Time // departures.created_at
}
