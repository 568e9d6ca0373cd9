package handler

import (
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/vinetrail/tour-booking/internal/model"
    "github.com/vinetrail/tour-booking/internal/repository"
)

// AvailabilityHandler exposes fleet availability: candidate search for a
// requested window, the per-vehicle block calendar, and maintenance
// blackouts.  Maintenance goes through the same exclusion constraint as
// bookings, so it can never be placed over an existing reservation.
type AvailabilityHandler struct {
    Vehicles *repository.VehicleRepo
    Blocks   *repository.AvailabilityRepo
}

func NewAvailabilityHandler(v *repository.VehicleRepo, b *repository.AvailabilityRepo) *AvailabilityHandler {
    return &AvailabilityHandler{Vehicles: v, Blocks: b}
}

// Search lists vehicles of a class free for the requested window.  The
// result is advisory: only the hold placed during booking is authoritative.
func (h *AvailabilityHandler) Search(c echo.Context) error {
    class := c.QueryParam("class")
    starts, err := time.Parse(time.RFC3339, c.QueryParam("starts_at"))
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be RFC 3339"})
    }
    ends, err := time.Parse(time.RFC3339, c.QueryParam("ends_at"))
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "ends_at must be RFC 3339"})
    }
    partySize := 1
    if p := c.QueryParam("party_size"); p != "" {
        n, err := parsePositive(p)
        if err != nil {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "party_size must be a positive integer"})
        }
        partySize = n
    }
    if class == "" || !ends.After(starts) {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "class and a valid window are required"})
    }

    vehicles, err := h.Vehicles.Candidates(c.Request().Context(), class, starts.UTC(), ends.UTC(), partySize)
    if err != nil {
        return writeDomainError(c, err)
    }
    out := make([]echo.Map, 0, len(vehicles))
    for _, v := range vehicles {
        out = append(out, echo.Map{"id": v.ID, "name": v.Name, "class": v.Class, "capacity": v.Capacity})
    }
    return c.JSON(http.StatusOK, echo.Map{"vehicles": out})
}

// Calendar lists the upcoming availability blocks of one vehicle.
func (h *AvailabilityHandler) Calendar(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return nil
    }
    blocks, err := h.Blocks.ListForVehicle(c.Request().Context(), id, time.Now().UTC())
    if err != nil {
        return writeDomainError(c, err)
    }
    out := make([]echo.Map, 0, len(blocks))
    for _, b := range blocks {
        entry := echo.Map{
            "id":        b.ID,
            "kind":      b.Kind,
            "starts_at": b.StartsAt,
            "ends_at":   b.EndsAt,
        }
        if b.Kind == model.BlockKindBooking && b.ReservationID != nil {
            entry["reservation_id"] = *b.ReservationID
        }
        out = append(out, entry)
    }
    return c.JSON(http.StatusOK, echo.Map{"vehicle_id": id, "blocks": out})
}

type maintenanceReq struct {
    StartsAt string `json:"starts_at"` // RFC 3339
    EndsAt   string `json:"ends_at"`   // RFC 3339
}

// PlaceMaintenance blocks a vehicle for a maintenance window.  Overlap with
// any existing block is a 409.
func (h *AvailabilityHandler) PlaceMaintenance(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return nil
    }
    var req maintenanceReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    starts, err := time.Parse(time.RFC3339, req.StartsAt)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be RFC 3339"})
    }
    ends, err := time.Parse(time.RFC3339, req.EndsAt)
    if err != nil || !ends.After(starts) {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "ends_at must be RFC 3339 and after starts_at"})
    }

    blockID, err := h.Blocks.PlaceMaintenance(c.Request().Context(), id, starts.UTC(), ends.UTC())
    if err != nil {
        return writeDomainError(c, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{"block_id": blockID})
}

// RemoveMaintenance lifts a maintenance blackout.
func (h *AvailabilityHandler) RemoveMaintenance(c echo.Context) error {
    id, ok := pathID(c, "block_id")
    if !ok {
        return nil
    }
    if err := h.Blocks.RemoveMaintenance(c.Request().Context(), id); err != nil {
        return writeDomainError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}
