package model

import "time"

// Vehicle represents a physical asset with a fixed seat count used for
// private charter tours.  Vehicles are created and maintained by fleet
// management; the booking core treats them as read-only apart from
// consulting capacity and the active flag.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – human readable fleet name ("Sprinter 2").
//  Class     – vehicle class requested by customers (sedan, sprinter, coach).
//  Capacity  – maximum party size the vehicle can carry.
//  Active    – inactive vehicles are never offered to new bookings.
//  CreatedAt – creation timestamp.
type Vehicle struct {
    ID        uint64    // vehicles.id
    Name      string    // vehicles.name
    Class     string    // vehicles.class
    Capacity  int       // vehicles.capacity
    Active    bool      // vehicles.active
    CreatedAt time.Time // vehicles.created_at
}
