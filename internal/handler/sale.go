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
    queue_publisher "github.com/vinetrail/tour-booking/internal/service"
)

// SaleHandler exposes the group-tour ticket sale endpoints.
type SaleHandler struct {
    Desk  *booking.TicketDesk
    Store *repository.SaleStore
}

func NewSaleHandler(d *booking.TicketDesk, s *repository.SaleStore) *SaleHandler {
    return &SaleHandler{Desk: d, Store: s}
}

type purchaseReq struct {
    Units      int    `json:"units"`
    BuyerName  string `json:"buyer_name"`
    BuyerEmail string `json:"buyer_email"`
}

type saleResp struct {
    ID               uint64    `json:"id"`
    ConfirmationCode string    `json:"confirmation_code"`
    DepartureID      uint64    `json:"departure_id"`
    Units            int       `json:"units"`
    BuyerName        string    `json:"buyer_name"`
    BuyerEmail       string    `json:"buyer_email"`
    SubtotalCents    int64     `json:"subtotal_cents"`
    TaxCents         int64     `json:"tax_cents"`
    TotalCents       int64     `json:"total_cents"`
    PaymentStatus    string    `json:"payment_status"`
    SaleStatus       string    `json:"sale_status"`
    CreatedAt        time.Time `json:"created_at"`
}

func toSaleResp(s model.TicketSale) saleResp {
    return saleResp{
        ID:               s.ID,
        ConfirmationCode: s.ConfirmationCode,
        DepartureID:      s.DepartureID,
        Units:            s.Units,
        BuyerName:        s.BuyerName,
        BuyerEmail:       s.BuyerEmail,
        SubtotalCents:    s.SubtotalCents,
        TaxCents:         s.TaxCents,
        TotalCents:       s.TotalCents,
        PaymentStatus:    s.PaymentStatus,
        SaleStatus:       s.SaleStatus,
        CreatedAt:        s.CreatedAt,
    }
}

// Purchase sells units on a departure.  Capacity conflicts come back as 409
// with the exact remaining count so the client can offer it to the buyer.
func (h *SaleHandler) Purchase(c echo.Context) error {
    depID, ok := pathID(c, "id")
    if !ok {
        return nil
    }
    var req purchaseReq
    if err := c.Bind(&req); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
    }

    sale, err := h.Desk.Purchase(c.Request().Context(), booking.PurchaseInput{
        DepartureID: depID,
        Units:       req.Units,
        BuyerName:   req.BuyerName,
        BuyerEmail:  req.BuyerEmail,
    })
    if err != nil {
        return writeDomainError(c, err)
    }

    go func() {
        _ = queue_publisher.PublishTicketSaleConfirmed(context.WithoutCancel(c.Request().Context()), queue.TicketSaleConfirmedEvent{
            EventID:          uuid.NewString(),
            SaleID:           sale.ID,
            ConfirmationCode: sale.ConfirmationCode,
            DepartureID:      sale.DepartureID,
            Units:            sale.Units,
            TotalCents:       sale.TotalCents,
            ConfirmedAt:      time.Now().UTC().Format(time.RFC3339),
        })
    }()

    return c.JSON(http.StatusCreated, toSaleResp(sale))
}

// CancelSale cancels a ticket sale and frees its units.  Cancelling an
// already-cancelled sale returns 200 with the unchanged sale.
func (h *SaleHandler) CancelSale(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return nil
    }
    sale, err := h.Desk.Cancel(c.Request().Context(), id)
    if err != nil {
        return writeDomainError(c, err)
    }
    return c.JSON(http.StatusOK, toSaleResp(sale))
}

// GetDeparture returns a departure with its exact remaining capacity.
func (h *SaleHandler) GetDeparture(c echo.Context) error {
    id, ok := pathID(c, "id")
    if !ok {
        return nil
    }
    dep, err := h.Store.GetDeparture(c.Request().Context(), id)
    if err != nil {
        return writeDomainError(c, err)
    }
    remaining, err := h.Desk.Remaining(c.Request().Context(), id)
    if err != nil {
        return writeDomainError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "id":               dep.ID,
        "tour_name":        dep.TourName,
        "departs_at":       dep.DepartsAt,
        "capacity":         dep.Capacity,
        "remaining":        remaining,
        "cutoff_minutes":   dep.CutoffMinutes,
        "unit_price_cents": dep.UnitPriceCents,
        "status":           dep.Status,
    })
}
