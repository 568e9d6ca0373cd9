package model

import "time"

// Reminder urgency tiers, mildest first.  The tier selects the message
// template and contributes to claim ordering (most urgent first among
// reminders due the same day).
const (
    UrgencyFriendly = "friendly"
    UrgencyFirm     = "firm"
    UrgencyUrgent   = "urgent"
    UrgencyFinal    = "final"
)

// Reminder statuses.  processing is a transient claim state owned by exactly
// one dispatcher run; sent, skipped, cancelled and failed are terminal.
const (
    ReminderPending    = "pending"
    ReminderProcessing = "processing"
    ReminderSent       = "sent"
    ReminderSkipped    = "skipped"
    ReminderCancelled  = "cancelled"
    ReminderFailed     = "failed"
)

// Reminder is one scheduled payment notification tied to a reservation and
// its balance deadline.
type Reminder struct {
    ID            uint64     // reminders.id
    ReservationID uint64     // reminders.reservation_id
    ScheduledOn   time.Time  // reminders.scheduled_on (date, midnight UTC)
    Urgency       string     // reminders.urgency
    Status        string     // reminders.status
    Paused        bool       // reminders.paused
    SkipReason    string     // reminders.skip_reason
    ClaimedAt     *time.Time // reminders.claimed_at (nullable)
    SentAt        *time.Time // reminders.sent_at (nullable)
    CreatedAt     time.Time  // reminders.created_at
}

// reminderTransitions maps each reminder status to the statuses it may move
// to.  Terminal states map to nothing: a sent or skipped reminder is never
// re-entered into pending.
var reminderTransitions = map[string][]string{
    ReminderPending:    {ReminderProcessing, ReminderCancelled},
    ReminderProcessing: {ReminderSent, ReminderSkipped, ReminderFailed, ReminderPending},
}

// ValidReminderTransition reports whether a reminder may move from one
// status to another.  The single processing -> pending edge exists only for
// the stuck-row reaper; dispatch outcomes never use it.
func ValidReminderTransition(from, to string) bool {
    for _, allowed := range reminderTransitions[from] {
        if allowed == to {
            return true
        }
    }
    return false
}

// ValidUrgency reports whether the given string is one of the four known
// urgency tiers.
func ValidUrgency(u string) bool {
    switch u {
    case UrgencyFriendly, UrgencyFirm, UrgencyUrgent, UrgencyFinal:
        return true
    }
    return false
}

// UrgencyRank orders tiers for claim priority; higher means more urgent.
// Unknown tiers rank lowest.
func UrgencyRank(u string) int {
    switch u {
    case UrgencyFinal:
        return 4
    case UrgencyUrgent:
        return 3
    case UrgencyFirm:
        return 2
    case UrgencyFriendly:
        return 1
    }
    return 0
}
