package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/vinetrail/tour-booking/internal/booking"
    "github.com/vinetrail/tour-booking/internal/model"
)

// AvailabilityRepo exposes the ledger reads and the maintenance blackout
// writes that live outside the hold-commit protocol.
type AvailabilityRepo struct {
    db *sql.DB
}

// NewAvailabilityRepo returns an AvailabilityRepo bound to the database.
func NewAvailabilityRepo(db *sql.DB) *AvailabilityRepo { return &AvailabilityRepo{db: db} }

// PlaceMaintenance inserts a maintenance blackout block.  It is guarded by
// the same exclusion constraint as holds and bookings: maintenance cannot
// be scheduled over a committed trip, and surfaces booking.ErrConflict when
// tried.
func (r *AvailabilityRepo) PlaceMaintenance(ctx context.Context, vehicleID uint64, starts, ends time.Time) (uint64, error) {
    const q = `INSERT INTO availability_blocks (vehicle_id, during, kind)
               VALUES ($1, tstzrange($2, $3, '[)'), 'maintenance')
               RETURNING id`
    var id uint64
    err := r.db.QueryRowContext(ctx, q, vehicleID, starts.UTC(), ends.UTC()).Scan(&id)
    if err != nil {
        if isExclusionViolation(err) {
            return 0, booking.ErrConflict
        }
        return 0, err
    }
    return id, nil
}

// RemoveMaintenance deletes a maintenance block.  Only maintenance blocks
// may be removed this way; holds and bookings have their own lifecycles.
func (r *AvailabilityRepo) RemoveMaintenance(ctx context.Context, blockID uint64) error {
    result, err := r.db.ExecContext(ctx,
        `DELETE FROM availability_blocks WHERE id = $1 AND kind = 'maintenance'`, blockID)
    if err != nil {
        return err
    }
    affected, err := result.RowsAffected()
    if err != nil {
        return err
    }
    if affected == 0 {
        return booking.ErrNotFound
    }
    return nil
}

// ListForVehicle returns all blocks committed against a vehicle that end
// after the given time, soonest first.
func (r *AvailabilityRepo) ListForVehicle(ctx context.Context, vehicleID uint64, after time.Time) ([]model.AvailabilityBlock, error) {
    const q = `SELECT id, vehicle_id, lower(during), upper(during), kind, reservation_id, expires_at, created_at
               FROM availability_blocks
               WHERE vehicle_id = $1 AND upper(during) > $2
               ORDER BY lower(during)`
    rows, err := r.db.QueryContext(ctx, q, vehicleID, after.UTC())
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var blocks []model.AvailabilityBlock
    for rows.Next() {
        var b model.AvailabilityBlock
        var resID sql.NullInt64
        var expires sql.NullTime
        if err := rows.Scan(&b.ID, &b.VehicleID, &b.StartsAt, &b.EndsAt, &b.Kind, &resID, &expires, &b.CreatedAt); err != nil {
            return nil, err
        }
        if resID.Valid {
            id := uint64(resID.Int64)
            b.ReservationID = &id
        }
        if expires.Valid {
            t := expires.Time
            b.ExpiresAt = &t
        }
        blocks = append(blocks, b)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return blocks, nil
}

// SweepExpiredHolds deletes hold blocks whose expiry has passed.  Expired
// holds are leaks from crashed processes; under normal operation the
// hold-commit protocol releases or converts every hold it places.
func (r *AvailabilityRepo) SweepExpiredHolds(ctx context.Context) (int64, error) {
    result, err := r.db.ExecContext(ctx,
        `DELETE FROM availability_blocks WHERE kind = 'hold' AND expires_at <= now()`)
    if err != nil {
        return 0, err
    }
    return result.RowsAffected()
}
