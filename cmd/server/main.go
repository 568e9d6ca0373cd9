package main // Entry point package

import (
    "context"
    "log"
    "time"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"

    "github.com/vinetrail/tour-booking/internal/booking"
    "github.com/vinetrail/tour-booking/internal/config"
    "github.com/vinetrail/tour-booking/internal/database"
    "github.com/vinetrail/tour-booking/internal/handler"
    "github.com/vinetrail/tour-booking/internal/middleware"
    "github.com/vinetrail/tour-booking/internal/notify"
    "github.com/vinetrail/tour-booking/internal/payment"
    "github.com/vinetrail/tour-booking/internal/pricing"
    "github.com/vinetrail/tour-booking/internal/queue"
    "github.com/vinetrail/tour-booking/internal/repository"
    "github.com/vinetrail/tour-booking/internal/router"
    "github.com/vinetrail/tour-booking/internal/scheduler"
)

func main() {
    _ = godotenv.Load() // .env is optional; real deployments use the environment
    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer db.Close()

    // Repositories
    bookings := repository.NewBookingStore(db)
    vehicles := repository.NewVehicleRepo(db)
    blocks := repository.NewAvailabilityRepo(db)
    sales := repository.NewSaleStore(db)
    reminders := repository.NewReminderStore(db)
    payments := repository.NewPaymentStore(db)
    users := repository.NewUserRepo(db)

    // Services
    pricer := pricing.NewStandardPricer()
    holds := booking.NewHoldService(vehicles, bookings, pricer, nil)
    desk := booking.NewTicketDesk(sales, pricer, nil)
    processor := payment.NewHTTPProcessor(cfg.ProcessorURL, cfg.ProcessorKey)
    gateway := payment.NewGateway(payments, processor, "usd")
    dispatcher := scheduler.NewDispatcher(reminders, notify.TemplateRenderer{}, notify.LogSender{}, scheduler.Config{
        BatchSize: cfg.DispatchBatchSize,
        ReapAfter: cfg.DispatchReapAfter,
    }, nil)

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    // Reminder dispatcher runs in-process on a fixed cadence.  Manual
    // triggers and cron runs may overlap it; the claim keeps that safe.
    go scheduler.Start(ctx, cfg.DispatchInterval, dispatcher)

    // Leaked holds (process death between hold and release) are swept once
    // their TTL passes.
    go func() {
        ticker := time.NewTicker(time.Minute)
        defer ticker.Stop()
        for {
            select {
            case <-ctx.Done():
                return
            case <-ticker.C:
                if n, err := blocks.SweepExpiredHolds(ctx); err != nil {
                    log.Printf("sweep expired holds: %v", err)
                } else if n > 0 {
                    log.Printf("swept %d expired holds", n)
                }
            }
        }
    }()

    // Booking event consumer writes the audit log; it reconnects forever.
    go func() {
        if err := queue.StartBookingConsumer(); err != nil {
            log.Printf("booking consumer stopped: %v", err)
        }
    }()

    e := echo.New()
    if rdb := config.NewRedisClient(); rdb != nil {
        e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
    } else {
        log.Printf("redis unavailable; rate limiting disabled")
    }

    router.RegisterRoutes(e, router.Handlers{
        Auth:         handler.NewAuthHandler(cfg, users),
        Reservations: handler.NewReservationHandler(holds, bookings, reminders),
        Sales:        handler.NewSaleHandler(desk, sales),
        Payments:     handler.NewPaymentHandler(gateway),
        Reminders:    handler.NewReminderHandler(reminders, bookings, dispatcher),
        Availability: handler.NewAvailabilityHandler(vehicles, blocks),
    }, cfg.JWTSecret)

    addr := ":" + cfg.Port
    log.Printf("listening on %s (env=%s)", addr, cfg.Env)
    if err := e.Start(addr); err != nil {
        log.Fatal(err)
    }
}
