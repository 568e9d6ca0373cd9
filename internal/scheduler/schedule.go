// Package scheduler generates and dispatches payment reminders.  The
// dispatcher is safe under overlapping invocations: claims are a single
// atomic statement with skip-locked semantics, so two runs can never both
// own the same reminder row.
package scheduler

import (
    "time"

    "github.com/vinetrail/tour-booking/internal/booking"
    "github.com/vinetrail/tour-booking/internal/model"
)

// scheduleOffsets is the fixed day-offset table reminders are generated
// from, relative to the balance deadline.
var scheduleOffsets = []struct {
    DaysBefore int
    Urgency    string
}{
    {14, model.UrgencyFriendly},
    {7, model.UrgencyFirm},
    {3, model.UrgencyUrgent},
    {1, model.UrgencyFinal},
}

// PlannedReminder is one entry of a generated schedule, not yet persisted.
type PlannedReminder struct {
    ScheduledOn time.Time
    Urgency     string
}

// GenerateSchedule builds the reminder plan for a balance deadline.
// Entries whose date has already passed asOf are dropped rather than
// created overdue; the remaining entries are returned soonest first.
func GenerateSchedule(deadline, asOf time.Time) []PlannedReminder {
    today := midnightUTC(asOf)
    due := midnightUTC(deadline)
    plan := make([]PlannedReminder, 0, len(scheduleOffsets))
    for _, off := range scheduleOffsets {
        day := due.AddDate(0, 0, -off.DaysBefore)
        if day.Before(today) {
            continue
        }
        plan = append(plan, PlannedReminder{ScheduledOn: day, Urgency: off.Urgency})
    }
    return plan
}

// ValidateManual checks a manually created reminder: the urgency must be a
// known tier, and the scheduled date must parse as YYYY-MM-DD and not lie
// in the past.  It returns the parsed date on success.
func ValidateManual(urgency, scheduledOn string, asOf time.Time) (time.Time, error) {
    if !model.ValidUrgency(urgency) {
        return time.Time{}, &booking.ValidationError{Field: "urgency", Reason: "must be one of friendly, firm, urgent, final"}
    }
    day, err := time.ParseInLocation("2006-01-02", scheduledOn, time.UTC)
    if err != nil {
        return time.Time{}, &booking.ValidationError{Field: "scheduled_on", Reason: "must be YYYY-MM-DD"}
    }
    if day.Before(midnightUTC(asOf)) {
        return time.Time{}, &booking.ValidationError{Field: "scheduled_on", Reason: "date is in the past"}
    }
    return day, nil
}

func midnightUTC(t time.Time) time.Time {
    y, m, d := t.UTC().Date()
    return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
