package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/vinetrail/tour-booking/internal/booking"
    "github.com/vinetrail/tour-booking/internal/model"
)

// VehicleRepo reads the vehicle fleet.  Vehicles are owned by external
// fleet management; the core only reads them, and its Candidates query
// doubles as the default allocator for the hold-commit protocol.
type VehicleRepo struct {
    db *sql.DB
}

// NewVehicleRepo returns a VehicleRepo bound to the provided database.
func NewVehicleRepo(db *sql.DB) *VehicleRepo { return &VehicleRepo{db: db} }

// Candidates lists active vehicles of the requested class with at least
// minCapacity seats and no availability block overlapping the window,
// ordered smallest-capacity-first so large vehicles stay free for large
// parties.  This read is advisory: the hold insert's exclusion constraint
// is what actually decides a race, so candidates going stale between this
// query and the hold is handled, not prevented.
func (r *VehicleRepo) Candidates(ctx context.Context, class string, starts, ends time.Time, minCapacity int) ([]model.Vehicle, error) {
    const q = `SELECT v.id, v.name, v.class, v.capacity, v.active, v.created_at
               FROM vehicles v
               WHERE v.class = $1 AND v.active AND v.capacity >= $2
                 AND NOT EXISTS (
                     SELECT 1 FROM availability_blocks b
                     WHERE b.vehicle_id = v.id
                       AND b.during && tstzrange($3, $4, '[)')
                       AND (b.kind <> 'hold' OR b.expires_at > now())
                 )
               ORDER BY v.capacity, v.id`
    rows, err := r.db.QueryContext(ctx, q, class, minCapacity, starts.UTC(), ends.UTC())
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var vehicles []model.Vehicle
    for rows.Next() {
        var v model.Vehicle
        if err := rows.Scan(&v.ID, &v.Name, &v.Class, &v.Capacity, &v.Active, &v.CreatedAt); err != nil {
            return nil, err
        }
        vehicles = append(vehicles, v)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return vehicles, nil
}

// GetByID loads one vehicle.  booking.ErrNotFound when absent.
func (r *VehicleRepo) GetByID(ctx context.Context, id uint64) (model.Vehicle, error) {
    const q = `SELECT id, name, class, capacity, active, created_at FROM vehicles WHERE id = $1`
    var v model.Vehicle
    err := r.db.QueryRowContext(ctx, q, id).Scan(&v.ID, &v.Name, &v.Class, &v.Capacity, &v.Active, &v.CreatedAt)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return model.Vehicle{}, booking.ErrNotFound
        }
        return model.Vehicle{}, err
    }
    return v, nil
}
