package scheduler

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/vinetrail/tour-booking/internal/booking"
    "github.com/vinetrail/tour-booking/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
    return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestGenerateScheduleFullPlan(t *testing.T) {
    deadline := day(2026, 9, 30)
    plan := GenerateSchedule(deadline, day(2026, 9, 1))

    require.Len(t, plan, 4)
    assert.Equal(t, day(2026, 9, 16), plan[0].ScheduledOn)
    assert.Equal(t, model.UrgencyFriendly, plan[0].Urgency)
    assert.Equal(t, day(2026, 9, 23), plan[1].ScheduledOn)
    assert.Equal(t, model.UrgencyFirm, plan[1].Urgency)
    assert.Equal(t, day(2026, 9, 27), plan[2].ScheduledOn)
    assert.Equal(t, model.UrgencyUrgent, plan[2].Urgency)
    assert.Equal(t, day(2026, 9, 29), plan[3].ScheduledOn)
    assert.Equal(t, model.UrgencyFinal, plan[3].Urgency)
}

func TestGenerateScheduleDropsPastEntries(t *testing.T) {
    deadline := day(2026, 9, 30)

    // Booking 5 days before the deadline: only the 3-day and 1-day
    // reminders are still in the future.
    plan := GenerateSchedule(deadline, day(2026, 9, 25))
    require.Len(t, plan, 2)
    assert.Equal(t, model.UrgencyUrgent, plan[0].Urgency)
    assert.Equal(t, model.UrgencyFinal, plan[1].Urgency)

    // An entry landing exactly today is kept, not dropped.
    plan = GenerateSchedule(deadline, day(2026, 9, 27))
    require.Len(t, plan, 2)
    assert.Equal(t, day(2026, 9, 27), plan[0].ScheduledOn)

    // Deadline already passed: nothing to schedule.
    plan = GenerateSchedule(deadline, day(2026, 10, 2))
    assert.Empty(t, plan)
}

func TestValidateManual(t *testing.T) {
    asOf := day(2026, 9, 1)

    got, err := ValidateManual(model.UrgencyFirm, "2026-09-10", asOf)
    require.NoError(t, err)
    assert.Equal(t, day(2026, 9, 10), got)

    // Today is allowed.
    _, err = ValidateManual(model.UrgencyFinal, "2026-09-01", asOf)
    assert.NoError(t, err)

    cases := []struct {
        name        string
        urgency     string
        scheduledOn string
        field       string
    }{
        {"unknown urgency", "shouty", "2026-09-10", "urgency"},
        {"bad date format", model.UrgencyFirm, "10/09/2026", "scheduled_on"},
        {"past date", model.UrgencyFirm, "2026-08-20", "scheduled_on"},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            _, err := ValidateManual(tc.urgency, tc.scheduledOn, asOf)
            var verr *booking.ValidationError
            require.ErrorAs(t, err, &verr)
            assert.Equal(t, tc.field, verr.Field)
        })
    }
}
