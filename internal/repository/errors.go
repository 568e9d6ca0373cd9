// Package repository provides Postgres-backed persistence for the booking
// core.  Repositories hold a *sql.DB; methods that must run inside a
// caller-owned transaction take an explicit *sql.Tx and carry a Tx suffix.
// Domain errors live in the booking package; this file maps driver-level
// error codes onto them so handlers never see raw pg errors.
package repository

import (
    "errors"

    "github.com/jackc/pgx/v5/pgconn"
)

// Postgres error codes the core cares about.  23P01 is exclusion_violation:
// the availability exclusion constraint rejecting an overlapping block.
const (
    pgExclusionViolation = "23P01"
    pgUniqueViolation    = "23505"
)

// ErrDuplicate is returned when an insert collides with an existing unique
// value, such as a registered email address.
var ErrDuplicate = errors.New("already exists")

// isExclusionViolation reports whether err is the availability ledger's
// overlap constraint firing.  This is the expected shape of a lost race in
// the hold-commit protocol, not an operational failure.
func isExclusionViolation(err error) bool {
    var pgErr *pgconn.PgError
    return errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation
}

// isUniqueViolation reports whether err is a unique constraint violation
// (duplicate confirmation code or email).
func isUniqueViolation(err error) bool {
    var pgErr *pgconn.PgError
    return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
