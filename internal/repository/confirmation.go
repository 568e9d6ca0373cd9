package repository

import (
    "context"
    "database/sql"
    "fmt"
    "time"
)

// confirmationPrefix is the human-readable code prefix ("VT-2026-0042").
const confirmationPrefix = "VT"

// nextConfirmationCodeTx atomically increments the per-calendar-year
// counter and formats the confirmation code.  The upsert serializes
// concurrent callers on the year row, which is fine: code assignment is a
// short tail inside transactions that are already serialized on a vehicle
// or departure.
func nextConfirmationCodeTx(ctx context.Context, tx *sql.Tx, at time.Time) (string, error) {
    year := at.UTC().Year()
    const q = `INSERT INTO confirmation_counters (year, last) VALUES ($1, 1)
               ON CONFLICT (year) DO UPDATE SET last = confirmation_counters.last + 1
               RETURNING last`
    var n int
    if err := tx.QueryRowContext(ctx, q, year).Scan(&n); err != nil {
        return "", fmt.Errorf("confirmation counter: %w", err)
    }
    return fmt.Sprintf("%s-%d-%04d", confirmationPrefix, year, n), nil
}
