package model

import "time"

// Portal roles.  OPS covers internal staff; PARTNER covers hotel and
// concierge accounts that may create bookings on behalf of guests.
const (
    RoleOps     = "OPS"
    RolePartner = "PARTNER"
)

// User is a partner/ops portal account.  Only the bcrypt hash of the
// password is stored.
type User struct {
    ID           uint64    // users.id
    Email        string    // users.email
    PasswordHash string    // users.password_hash
    Role         string    // users.role
    CreatedAt    time.Time // users.created_at
}
