package main // One-shot reminder dispatch, intended to run from cron.

import (
    "context"
    "encoding/json"
    "log"
    "os"

    "github.com/joho/godotenv"

    "github.com/vinetrail/tour-booking/internal/config"
    "github.com/vinetrail/tour-booking/internal/database"
    "github.com/vinetrail/tour-booking/internal/notify"
    "github.com/vinetrail/tour-booking/internal/repository"
    "github.com/vinetrail/tour-booking/internal/scheduler"
)

// main runs exactly one dispatch cycle and prints the summary as JSON.
// Running concurrently with the server's in-process ticker is safe: the
// claim statement guarantees each reminder lands in exactly one run.
func main() {
    _ = godotenv.Load()
    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer db.Close()

    dispatcher := scheduler.NewDispatcher(
        repository.NewReminderStore(db),
        notify.TemplateRenderer{},
        notify.LogSender{},
        scheduler.Config{BatchSize: cfg.DispatchBatchSize, ReapAfter: cfg.DispatchReapAfter},
        nil,
    )

    sum, err := dispatcher.Run(context.Background())
    if err != nil {
        log.Fatalf("dispatch: %v", err)
    }
    enc := json.NewEncoder(os.Stdout)
    enc.SetIndent("", "  ")
    if err := enc.Encode(sum); err != nil {
        log.Fatalf("encode summary: %v", err)
    }
}
