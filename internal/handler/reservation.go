package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"

    "github.com/vinetrail/tour-booking/internal/booking"
    "github.com/vinetrail/tour-booking/internal/model"
    "github.com/vinetrail/tour-booking/internal/queue"
    "github.com/vinetrail/tour-booking/internal/repository"
    "github.com/vinetrail/tour-booking/internal/scheduler"
    queue_publisher "github.com/vinetrail/tour-booking/internal/service"
)

// ReservationHandler exposes the private charter booking endpoints.  The
// hold-commit protocol itself lives in the booking service; this layer
// binds requests, maps errors and fires the post-commit side effects
// (reminder schedule, event publish) that must never fail the booking.
type ReservationHandler struct {
    Holds     *booking.HoldService
    Store     *repository.BookingStore
    Reminders *repository.ReminderStore
}

func NewReservationHandler(h *booking.HoldService, s *repository.BookingStore, r *repository.ReminderStore) *ReservationHandler {
    return &ReservationHandler{Holds: h, Store: s, Reminders: r}
}

type createReservationReq struct {
    VehicleClass string `json:"vehicle_class"`
    StartsAt     string `json:"starts_at"` // RFC 3339
    EndsAt       string `json:"ends_at"`   // RFC 3339
    PartySize    int    `json:"party_size"`
    ContactEmail string `json:"contact_email"`
    BalanceDueOn string `json:"balance_due_on,omitempty"` // YYYY-MM-DD
}

type reservationResp struct {
    ID               uint64     `json:"id"`
    ConfirmationCode string     `json:"confirmation_code"`
    VehicleID        uint64     `json:"vehicle_id"`
    StartsAt         time.Time  `json:"starts_at"`
    EndsAt           time.Time  `json:"ends_at"`
    PartySize        int        `json:"party_size"`
    ContactEmail     string     `json:"contact_email"`
    Status           string     `json:"status"`
    TotalCents       int64      `json:"total_cents"`
    AmountPaidCents  int64      `json:"amount_paid_cents"`
    BalanceDueOn     *time.Time `json:"balance_due_on,omitempty"`
    CreatedAt        time.Time  `json:"created_at"`
}

func toReservationResp(r model.Reservation) reservationResp {
    return reservationResp{
        ID:               r.ID,
        ConfirmationCode: r.ConfirmationCode,
        VehicleID:        r.VehicleID,
        StartsAt:         r.StartsAt,
        EndsAt:           r.EndsAt,
        PartySize:        r.PartySize,
        ContactEmail:     r.ContactEmail,
        Status:           r.Status,
        TotalCents:       r.TotalCents,
        AmountPaidCents:  r.AmountPaidCents,
        BalanceDueOn:     r.BalanceDueOn,
        CreatedAt:        r.CreatedAt,
    }
}

// Create books one vehicle for one trip through the hold-commit protocol.
// On success the reminder schedule is generated from the balance deadline
// and a confirmation event is published; neither can fail the booking.
func (h *ReservationHandler) Create(c echo.Context) error {
    var req createReservationReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    starts, err := time.Parse(time.RFC3339, req.StartsAt)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "starts_at must be RFC 3339"})
    }
    ends, err := time.Parse(time.RFC3339, req.EndsAt)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "ends_at must be RFC 3339"})
    }
    var dueOn *time.Time
    if req.BalanceDueOn != "" {
        d, err := time.ParseInLocation("2006-01-02", req.BalanceDueOn, time.UTC)
        if err != nil {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "balance_due_on must be YYYY-MM-DD"})
        }
        dueOn = &d
    }

    ctx := c.Request().Context()
    res, err := h.Holds.Reserve(ctx, booking.ReserveInput{
        VehicleClass: req.VehicleClass,
        StartsAt:     starts.UTC(),
        EndsAt:       ends.UTC(),
        PartySize:    req.PartySize,
        ContactEmail: req.ContactEmail,
        BalanceDueOn: dueOn,
    })
    if err != nil {
        return writeDomainError(c, err)
    }

    // Side effects run detached from the request context so a client
    // disconnect after commit cannot drop them.
    bg := context.WithoutCancel(ctx)
    if res.BalanceDueOn != nil {
        plan := scheduler.GenerateSchedule(*res.BalanceDueOn, time.Now())
        if err := h.Reminders.CreateSchedule(bg, res.ID, plan); err != nil {
            c.Logger().Errorf("create reminder schedule for reservation %d: %v", res.ID, err)
        }
    }
    go func() {
        _ = queue_publisher.PublishReservationConfirmed(bg, queue.ReservationConfirmedEvent{
            EventID:          uuid.NewString(),
            ReservationID:    res.ID,
            ConfirmationCode: res.ConfirmationCode,
            VehicleID:        res.VehicleID,
            StartsAt:         res.StartsAt.Format(time.RFC3339),
            EndsAt:           res.EndsAt.Format(time.RFC3339),
            PartySize:        res.PartySize,
            TotalCents:       res.TotalCents,
            ConfirmedAt:      time.Now().UTC().Format(time.RFC3339),
        })
    }()

    return c.JSON(http.StatusCreated, toReservationResp(res))
}

// Get returns one reservation by ID.
func (h *ReservationHandler) Get(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return nil
    }
    res, err := h.Store.GetReservation(c.Request().Context(), id)
    if err != nil {
        return writeDomainError(c, err)
    }
    return c.JSON(http.StatusOK, toReservationResp(res))
}

// Cancel cancels a confirmed reservation, freeing its vehicle window and
// cancelling any pending payment reminders.
func (h *ReservationHandler) Cancel(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return nil
    }
    res, err := h.Holds.Cancel(c.Request().Context(), id)
    if err != nil {
        return writeDomainError(c, err)
    }
    return c.JSON(http.StatusOK, toReservationResp(res))
}
