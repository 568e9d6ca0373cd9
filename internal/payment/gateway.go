// Package payment wraps the external payment processor so that retried
// client requests and retried webhook deliveries never create duplicate
// charges or duplicate state transitions.
package payment

import (
    "context"
    "crypto/sha256"
    "encoding/hex"
    "errors"
    "fmt"
    "log"

    "github.com/vinetrail/tour-booking/internal/model"
)

// Entity kinds an intent can be attached to.
const (
    EntityReservation = "reservation"
    EntitySale        = "sale"
)

// ErrAlreadyPaid is returned when creating an intent for an entity that is
// already fully paid.
var ErrAlreadyPaid = errors.New("entity is already paid")

// EntityRef names the reservation or ticket sale an intent charges for.
type EntityRef struct {
    Kind string
    ID   uint64
}

func (r EntityRef) valid() bool {
    return (r.Kind == EntityReservation || r.Kind == EntitySale) && r.ID != 0
}

// PaymentState is the locally stored payment view of one entity.
type PaymentState struct {
    PaymentStatus string
    TotalCents    int64
    IntentRef     string // empty when no intent has been created yet
    Generation    int    // bumped each time a dead intent is superseded
}

// Store is the persistence contract for the gateway.  SaveIntent records
// the intent reference and generation on the owning row; MarkPaid flips the
// entity to paid and returns false when it already was (the idempotent
// webhook path).
type Store interface {
    PaymentState(ctx context.Context, ref EntityRef) (PaymentState, error)
    SaveIntent(ctx context.Context, ref EntityRef, intentID string, generation int) error
    FindByIntent(ctx context.Context, intentID string) (EntityRef, error)
    MarkPaid(ctx context.Context, ref EntityRef) (bool, error)
    CancelPendingReminders(ctx context.Context, reservationID uint64) (int, error)
}

// CreateIntentResult is returned to the client making a payment.
type CreateIntentResult struct {
    IntentID    string `json:"intent_id"`
    ClientToken string `json:"client_token"`
}

// ConfirmResult reports the outcome of a webhook confirmation.
type ConfirmResult struct {
    Ref                EntityRef
    AlreadyPaid        bool
    RemindersCancelled int
}

// Gateway mediates between local payment state and the external processor.
type Gateway struct {
    store     Store
    processor Processor
    currency  string
}

// NewGateway constructs a Gateway.  Currency defaults to usd when empty.
func NewGateway(store Store, processor Processor, currency string) *Gateway {
    if currency == "" {
        currency = "usd"
    }
    return &Gateway{store: store, processor: processor, currency: currency}
}

// IdempotencyKey derives the processor idempotency key deterministically
// from the entity and amount, so a double-tapped pay button or a retried
// server call lands on the same intent.  The generation is folded in so
// that superseding a canceled intent produces a genuinely new key; within
// one generation the key never changes.
func IdempotencyKey(ref EntityRef, amountCents int64, generation int) string {
    sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%d:%d", ref.Kind, ref.ID, amountCents, generation)))
    return hex.EncodeToString(sum[:])
}

// CreateIntent returns a usable payment intent for the entity's outstanding
// total.  A stored live intent is reused; a stored intent that is canceled,
// or succeeded without the entity being marked paid locally, is
// transparently superseded by a fresh one rather than surfaced as an error.
func (g *Gateway) CreateIntent(ctx context.Context, ref EntityRef, amountCents int64) (CreateIntentResult, error) {
    if !ref.valid() {
        return CreateIntentResult{}, fmt.Errorf("invalid entity reference %q/%d", ref.Kind, ref.ID)
    }
    state, err := g.store.PaymentState(ctx, ref)
    if err != nil {
        return CreateIntentResult{}, err
    }
    if state.PaymentStatus == model.PaymentPaid {
        return CreateIntentResult{}, ErrAlreadyPaid
    }

    generation := state.Generation
    if state.IntentRef != "" {
        intent, err := g.processor.RetrieveIntent(ctx, state.IntentRef)
        if err != nil {
            return CreateIntentResult{}, fmt.Errorf("retrieve intent %s: %w", state.IntentRef, err)
        }
        if intent.Status == IntentRequiresPayment {
            return CreateIntentResult{IntentID: intent.ID, ClientToken: intent.ClientToken}, nil
        }
        // Dead intent (canceled, or succeeded while the webhook never
        // landed locally): supersede it.
        generation++
    }

    intent, err := g.processor.CreateIntent(ctx, amountCents, g.currency, IdempotencyKey(ref, amountCents, generation))
    if err != nil {
        return CreateIntentResult{}, err
    }
    if err := g.store.SaveIntent(ctx, ref, intent.ID, generation); err != nil {
        return CreateIntentResult{}, err
    }
    return CreateIntentResult{IntentID: intent.ID, ClientToken: intent.ClientToken}, nil
}

// Confirm processes a payment-succeeded webhook.  Webhook delivery is not
// exactly once, so the owning entity's payment status is re-read first and
// an already-paid entity acknowledges without re-processing.  On the first
// confirmation the entity is marked paid and, for reservations, any still
// pending payment reminders are cancelled.
func (g *Gateway) Confirm(ctx context.Context, intentID string) (ConfirmResult, error) {
    ref, err := g.store.FindByIntent(ctx, intentID)
    if err != nil {
        return ConfirmResult{}, err
    }
    changed, err := g.store.MarkPaid(ctx, ref)
    if err != nil {
        return ConfirmResult{}, err
    }
    result := ConfirmResult{Ref: ref, AlreadyPaid: !changed}
    if changed && ref.Kind == EntityReservation {
        n, err := g.store.CancelPendingReminders(ctx, ref.ID)
        if err != nil {
            // The payment is recorded; reminder cleanup failing must not
            // undo that.  The dispatcher's fresh read also skips paid rows.
            log.Printf("payment: cancel reminders for reservation %d: %v", ref.ID, err)
            return result, nil
        }
        result.RemindersCancelled = n
    }
    return result, nil
}
