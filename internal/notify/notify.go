// Package notify renders and delivers payment reminder messages.  Rendering
// and delivery are the excluded collaborators of the dispatch core: the
// dispatcher only needs "render a message" and "send it", both synchronous.
package notify

import (
    "fmt"
    "log"
    "strings"

    "github.com/vinetrail/tour-booking/internal/model"
)

// Message is a rendered notification ready for delivery.
type Message struct {
    Subject string
    Body    string
}

// ReminderData is the template input for one reminder message.
type ReminderData struct {
    ConfirmationCode string
    ContactName      string
    OutstandingCents int64
    DueOn            string
}

// Renderer renders the urgency-tier-specific reminder message.
type Renderer interface {
    Render(urgency string, data ReminderData) (Message, error)
}

// Sender delivers a rendered message to an address.  Implementations report
// delivery failure via error; the dispatcher records it as a failed outcome
// and never re-queues the row for the same cycle.
type Sender interface {
    Send(address string, msg Message) error
}

// TemplateRenderer renders the four reminder tiers from an in-code template
// table.  HTML email layout lives outside the core; this produces the plain
// text the mailer wraps.
type TemplateRenderer struct{}

var reminderSubjects = map[string]string{
    model.UrgencyFriendly: "A friendly note about your upcoming wine tour",
    model.UrgencyFirm:     "Balance due for your wine tour reservation",
    model.UrgencyUrgent:   "Action needed: wine tour balance outstanding",
    model.UrgencyFinal:    "Final notice: wine tour balance due",
}

var reminderBodies = map[string]string{
    model.UrgencyFriendly: "Hi {name},\n\nJust a heads up that a balance of {amount} on reservation {code} is due on {due}. No rush!\n\nCheers,\nVinetrail Tours",
    model.UrgencyFirm:     "Hi {name},\n\nYour balance of {amount} on reservation {code} is due on {due}. Please settle it at your earliest convenience.\n\nVinetrail Tours",
    model.UrgencyUrgent:   "Hi {name},\n\nThe balance of {amount} on reservation {code} was due {due} and is still outstanding. Please pay today to keep your tour date.\n\nVinetrail Tours",
    model.UrgencyFinal:    "Hi {name},\n\nThis is the final notice for the {amount} balance on reservation {code}, due {due}. Unpaid reservations are released tomorrow.\n\nVinetrail Tours",
}

func (TemplateRenderer) Render(urgency string, data ReminderData) (Message, error) {
    subject, ok := reminderSubjects[urgency]
    if !ok {
        return Message{}, fmt.Errorf("unknown urgency tier %q", urgency)
    }
    name := data.ContactName
    if name == "" {
        name = "there"
    }
    body := reminderBodies[urgency]
    body = strings.ReplaceAll(body, "{name}", name)
    body = strings.ReplaceAll(body, "{amount}", formatCents(data.OutstandingCents))
    body = strings.ReplaceAll(body, "{code}", data.ConfirmationCode)
    body = strings.ReplaceAll(body, "{due}", data.DueOn)
    return Message{Subject: subject, Body: body}, nil
}

func formatCents(cents int64) string {
    return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

// LogSender writes deliveries to the process log.  It stands in for the
// real mail provider in development and in the one-shot dispatcher binary.
type LogSender struct{}

func (LogSender) Send(address string, msg Message) error {
    log.Printf("reminder: send to=%s subject=%q", address, msg.Subject)
    return nil
}
