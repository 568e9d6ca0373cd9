package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4" // import the Echo web framework to handle routing

    "github.com/vinetrail/tour-booking/internal/handler"    // import the handlers that implement business logic
    "github.com/vinetrail/tour-booking/internal/middleware" // import middleware for JWT authentication and role enforcement
    "github.com/vinetrail/tour-booking/internal/model"
)

// Handlers bundles every handler the router wires up.
type Handlers struct {
    Auth         *handler.AuthHandler
    Reservations *handler.ReservationHandler
    Sales        *handler.SaleHandler
    Payments     *handler.PaymentHandler
    Reminders    *handler.ReminderHandler
    Availability *handler.AvailabilityHandler
}

// RegisterRoutes registers all routes on the provided Echo instance.
//
// Public routes: the health check, the payment processor webhook (it
// authenticates by knowing intent IDs, not by JWT), and the advisory
// availability search and departure views used by the storefront.
//
// Protected routes live under /v1 behind JWTAuth; booking and sale writes
// are open to both roles, while fleet maintenance and reminder operations
// are OPS only.
func RegisterRoutes(e *echo.Echo, h Handlers, jwtSecret string) {
    e.GET("/healthz", handler.Health)
    e.POST("/webhooks/payments", h.Payments.Webhook)

    // Storefront browse endpoints, no authentication.
    e.GET("/v1/availability", h.Availability.Search)
    e.GET("/v1/departures/:id", h.Sales.GetDeparture)

    // Account registration and login.
    auth := e.Group("/v1/auth")
    auth.POST("/register", h.Auth.Register)
    auth.POST("/login", h.Auth.Login)

    // Booking and sale writes: any authenticated portal account.
    v1 := e.Group("/v1")
    v1.Use(middleware.JWTAuth(jwtSecret))
    v1.Use(middleware.RequireRole(model.RoleOps, model.RolePartner))

    v1.POST("/reservations", h.Reservations.Create)
    v1.GET("/reservations/:id", h.Reservations.Get)
    v1.DELETE("/reservations/:id", h.Reservations.Cancel)
    v1.GET("/reservations/:id/reminders", h.Reminders.List)

    v1.POST("/departures/:id/sales", h.Sales.Purchase)
    v1.DELETE("/sales/:id", h.Sales.CancelSale)

    v1.POST("/payments/intents", h.Payments.CreateIntent)

    // Fleet and reminder administration: internal staff only.
    ops := e.Group("/v1")
    ops.Use(middleware.JWTAuth(jwtSecret))
    ops.Use(middleware.RequireRole(model.RoleOps))

    ops.GET("/vehicles/:id/availability", h.Availability.Calendar)
    ops.POST("/vehicles/:id/maintenance", h.Availability.PlaceMaintenance)
    ops.DELETE("/maintenance/:block_id", h.Availability.RemoveMaintenance)

    ops.POST("/reservations/:id/reminders", h.Reminders.Create)
    ops.POST("/reservations/:id/reminders/schedule", h.Reminders.GenerateSchedule)
    ops.PATCH("/reminders/:id/pause", h.Reminders.Pause)
    ops.POST("/reminders/run", h.Reminders.Run)
}
