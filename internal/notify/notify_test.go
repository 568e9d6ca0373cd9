package notify

import (
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/vinetrail/tour-booking/internal/model"
)

func TestRenderSubstitutesPlaceholders(t *testing.T) {
    msg, err := TemplateRenderer{}.Render(model.UrgencyFirm, ReminderData{
        ConfirmationCode: "VT-2026-0031",
        ContactName:      "Dana",
        OutstandingCents: 130050,
        DueOn:            "2026-09-30",
    })
    require.NoError(t, err)
    assert.Contains(t, msg.Subject, "Balance due")
    assert.Contains(t, msg.Body, "Dana")
    assert.Contains(t, msg.Body, "$1300.50")
    assert.Contains(t, msg.Body, "VT-2026-0031")
    assert.Contains(t, msg.Body, "2026-09-30")
}

func TestRenderUnknownUrgency(t *testing.T) {
    _, err := TemplateRenderer{}.Render("shouty", ReminderData{})
    assert.Error(t, err)
}

func TestRenderTiersDiffer(t *testing.T) {
    tiers := []string{model.UrgencyFriendly, model.UrgencyFirm, model.UrgencyUrgent, model.UrgencyFinal}
    seen := map[string]bool{}
    for _, tier := range tiers {
        msg, err := TemplateRenderer{}.Render(tier, ReminderData{ConfirmationCode: "VT-2026-0001", OutstandingCents: 5000})
        require.NoError(t, err)
        assert.False(t, seen[msg.Subject], "each tier has its own subject")
        seen[msg.Subject] = true
    }
}
