package payment

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "time"
)

// Intent statuses as reported by the external processor.
const (
    IntentRequiresPayment = "requires_payment"
    IntentSucceeded       = "succeeded"
    IntentCanceled        = "canceled"
)

// Intent is the processor's view of one charge attempt.  ClientToken is the
// secret the browser-side payment form needs to complete the charge.
type Intent struct {
    ID          string `json:"id"`
    Status      string `json:"status"`
    ClientToken string `json:"client_token"`
    AmountCents int64  `json:"amount_cents"`
}

// Processor is the external payment processor.  It is a separately
// consistent system reconciled via idempotency keys and webhook-driven
// fresh-state checks; it is never assumed synchronously consistent with
// local state.
type Processor interface {
    // CreateIntent opens a charge attempt.  Calls carrying the same
    // idempotency key must return the same intent instead of opening a
    // second charge.
    CreateIntent(ctx context.Context, amountCents int64, currency, idempotencyKey string) (Intent, error)
    // RetrieveIntent fetches the current state of a stored intent.
    RetrieveIntent(ctx context.Context, intentID string) (Intent, error)
}

// HTTPProcessor talks to the processor's REST API.  The idempotency key
// travels in the Idempotency-Key header on creation calls, which is what
// makes server-side retries after transient network failures safe.
type HTTPProcessor struct {
    BaseURL string
    APIKey  string
    Client  *http.Client
}

// NewHTTPProcessor builds a client with a 10s request timeout.
func NewHTTPProcessor(baseURL, apiKey string) *HTTPProcessor {
    return &HTTPProcessor{
        BaseURL: baseURL,
        APIKey:  apiKey,
        Client:  &http.Client{Timeout: 10 * time.Second},
    }
}

func (p *HTTPProcessor) CreateIntent(ctx context.Context, amountCents int64, currency, idempotencyKey string) (Intent, error) {
    payload, err := json.Marshal(map[string]interface{}{
        "amount_cents": amountCents,
        "currency":     currency,
    })
    if err != nil {
        return Intent{}, err
    }
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/v1/payment_intents", bytes.NewReader(payload))
    if err != nil {
        return Intent{}, err
    }
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("Authorization", "Bearer "+p.APIKey)
    req.Header.Set("Idempotency-Key", idempotencyKey)
    return p.do(req)
}

func (p *HTTPProcessor) RetrieveIntent(ctx context.Context, intentID string) (Intent, error) {
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/v1/payment_intents/"+intentID, nil)
    if err != nil {
        return Intent{}, err
    }
    req.Header.Set("Authorization", "Bearer "+p.APIKey)
    return p.do(req)
}

func (p *HTTPProcessor) do(req *http.Request) (Intent, error) {
    resp, err := p.Client.Do(req)
    if err != nil {
        return Intent{}, err
    }
    defer resp.Body.Close()
    if resp.StatusCode < 200 || resp.StatusCode > 299 {
        return Intent{}, fmt.Errorf("processor returned %s", resp.Status)
    }
    var intent Intent
    if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
        return Intent{}, fmt.Errorf("decode intent: %w", err)
    }
    return intent, nil
}
