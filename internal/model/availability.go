package model

import "time"

// Block kinds stored in availability_blocks.kind.  A hold is a provisional,
// time-boxed claim created during the hold-commit protocol; a booking is the
// permanent form a hold converts into; maintenance is a fleet blackout.
const (
    BlockKindHold        = "hold"
    BlockKindBooking     = "booking"
    BlockKindMaintenance = "maintenance"
)

// AvailabilityBlock is one row of the capacity ledger: "vehicle V is
// committed from StartsAt to EndsAt for reason Kind".  The database-level
// exclusion constraint over (vehicle_id, during) is what makes overlapping
// inserts from concurrent transactions impossible; this struct only mirrors
// the row.
//
// Fields:
//  ID            – primary key identifier.
//  VehicleID     – vehicle the block commits.
//  StartsAt      – inclusive start of the committed window (UTC).
//  EndsAt        – exclusive end of the committed window (UTC).
//  Kind          – one of the BlockKind constants.
//  ReservationID – owning reservation when Kind is "booking".
//  HoldToken     – opaque correlation token when Kind is "hold".
//  ExpiresAt     – hold expiry when Kind is "hold".
//  CreatedAt     – creation timestamp.
type AvailabilityBlock struct {
    ID            uint64     // availability_blocks.id
    VehicleID     uint64     // availability_blocks.vehicle_id
    StartsAt      time.Time  // lower bound of availability_blocks.during
    EndsAt        time.Time  // upper bound of availability_blocks.during
    Kind          string     // availability_blocks.kind
    ReservationID *uint64    // availability_blocks.reservation_id (nullable)
    HoldToken     string     // availability_blocks.hold_token
    ExpiresAt     *time.Time // availability_blocks.expires_at (nullable)
    CreatedAt     time.Time  // availability_blocks.created_at
}
