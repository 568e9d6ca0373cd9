package handler

import (
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/vinetrail/tour-booking/internal/repository"
    "github.com/vinetrail/tour-booking/internal/scheduler"
)

// ReminderHandler exposes the ops-facing reminder endpoints: manual
// creation, schedule generation, listing, pause, and a manual dispatcher
// trigger.  The trigger may race the in-process ticker and a cron run; the
// claim statement makes that safe.
type ReminderHandler struct {
    Store      *repository.ReminderStore
    Bookings   *repository.BookingStore
    Dispatcher *scheduler.Dispatcher
}

func NewReminderHandler(s *repository.ReminderStore, b *repository.BookingStore, d *scheduler.Dispatcher) *ReminderHandler {
    return &ReminderHandler{Store: s, Bookings: b, Dispatcher: d}
}

type createReminderReq struct {
    ScheduledOn string `json:"scheduled_on"` // YYYY-MM-DD
    Urgency     string `json:"urgency"`
}

// Create adds one manually scheduled reminder to a reservation.
func (h *ReminderHandler) Create(c echo.Context) error {
    resID, ok := pathID(c, "id")
    if !ok {
        return nil
    }
    var req createReminderReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    day, err := scheduler.ValidateManual(req.Urgency, req.ScheduledOn, time.Now())
    if err != nil {
        return writeDomainError(c, err)
    }

    ctx := c.Request().Context()
    if _, err := h.Bookings.GetReservation(ctx, resID); err != nil {
        return writeDomainError(c, err)
    }
    rem, err := h.Store.InsertPending(ctx, resID, day, req.Urgency)
    if err != nil {
        return writeDomainError(c, err)
    }
    return c.JSON(http.StatusCreated, rem)
}

// GenerateSchedule regenerates the standard reminder plan for a
// reservation from its balance deadline.  Reservations without a deadline
// have nothing to remind about.
func (h *ReminderHandler) GenerateSchedule(c echo.Context) error {
    resID, ok := pathID(c, "id")
    if !ok {
        return nil
    }
    ctx := c.Request().Context()
    res, err := h.Bookings.GetReservation(ctx, resID)
    if err != nil {
        return writeDomainError(c, err)
    }
    if res.BalanceDueOn == nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "reservation has no balance deadline"})
    }
    plan := scheduler.GenerateSchedule(*res.BalanceDueOn, time.Now())
    if err := h.Store.CreateSchedule(ctx, resID, plan); err != nil {
        return writeDomainError(c, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{"created": len(plan)})
}

// List returns all reminders for a reservation, soonest first.
func (h *ReminderHandler) List(c echo.Context) error {
    resID, ok := pathID(c, "id")
    if !ok {
        return nil
    }
    reminders, err := h.Store.ListForReservation(c.Request().Context(), resID)
    if err != nil {
        return writeDomainError(c, err)
    }
    return c.JSON(http.StatusOK, reminders)
}

type pauseReq struct {
    Paused bool `json:"paused"`
}

// Pause flips the pause flag on one pending reminder.
func (h *ReminderHandler) Pause(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return nil
    }
    var req pauseReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if err := h.Store.SetPaused(c.Request().Context(), id, req.Paused); err != nil {
        return writeDomainError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"id": id, "paused": req.Paused})
}

// Run triggers one dispatch cycle immediately and returns its summary.
func (h *ReminderHandler) Run(c echo.Context) error {
    sum, err := h.Dispatcher.Run(c.Request().Context())
    if err != nil {
        return writeDomainError(c, err)
    }
    return c.JSON(http.StatusOK, sum)
}
