package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"

    "github.com/vinetrail/tour-booking/internal/payment"
    "github.com/vinetrail/tour-booking/internal/queue"
    queue_publisher "github.com/vinetrail/tour-booking/internal/service"
)

// PaymentHandler exposes intent creation for clients and the processor
// webhook.  Both paths are idempotent end to end: retried intent requests
// land on the same intent, and duplicate webhook deliveries acknowledge
// without re-processing.
type PaymentHandler struct {
    Gateway *payment.Gateway
}

func NewPaymentHandler(g *payment.Gateway) *PaymentHandler {
    return &PaymentHandler{Gateway: g}
}

type createIntentReq struct {
    EntityKind  string `json:"entity_kind"` // reservation | sale
    EntityID    uint64 `json:"entity_id"`
    AmountCents int64  `json:"amount_cents"`
}

// CreateIntent returns a usable payment intent for a reservation or sale.
func (h *PaymentHandler) CreateIntent(c echo.Context) error {
    var req createIntentReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    if req.AmountCents <= 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount_cents must be positive"})
    }
    result, err := h.Gateway.CreateIntent(c.Request().Context(),
        payment.EntityRef{Kind: req.EntityKind, ID: req.EntityID}, req.AmountCents)
    if err != nil {
        return writeDomainError(c, err)
    }
    return c.JSON(http.StatusOK, result)
}

type webhookReq struct {
    Type     string `json:"type"`
    IntentID string `json:"intent_id"`
}

// Webhook processes processor event deliveries.  Only payment_succeeded is
// acted on; everything else is acknowledged and dropped.  The 200 response
// is what stops the processor from re-delivering, so any outcome we can
// handle must answer 200.
func (h *PaymentHandler) Webhook(c echo.Context) error {
    var req webhookReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }
    receipt := uuid.NewString()
    if req.Type != "payment_succeeded" || req.IntentID == "" {
        return c.JSON(http.StatusOK, echo.Map{"receipt": receipt, "handled": false})
    }

    result, err := h.Gateway.Confirm(c.Request().Context(), req.IntentID)
    if err != nil {
        // Unknown intent or storage failure: a non-2xx makes the processor
        // retry later, which is the correct behavior for both.
        return writeDomainError(c, err)
    }

    if !result.AlreadyPaid {
        go func() {
            _ = queue_publisher.PublishPaymentReceived(context.WithoutCancel(c.Request().Context()), queue.PaymentReceivedEvent{
                EventID:            uuid.NewString(),
                EntityKind:         result.Ref.Kind,
                EntityID:           result.Ref.ID,
                IntentID:           req.IntentID,
                RemindersCancelled: result.RemindersCancelled,
                ReceivedAt:         time.Now().UTC().Format(time.RFC3339),
            })
        }()
    }
    return c.JSON(http.StatusOK, echo.Map{
        "receipt":             receipt,
        "handled":             true,
        "already_paid":        result.AlreadyPaid,
        "reminders_cancelled": result.RemindersCancelled,
    })
}
