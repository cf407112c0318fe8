package reminders

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		days  int
		score float64
		want  Tier
	}{
		{10, 90, TierFriendly},
		{3, 90, TierApproaching},
		{-10, 90, TierUrgent},
		{6, 85, TierFriendly},
		{5, 85, TierApproaching},
		{10, 80, TierApproaching},
		{1, 75, TierApproaching},
		{10, 74, TierOverdue},
		{0, 99, TierOverdue},
		{-6, 99, TierOverdue},
		{-7, 99, TierUrgent},
		{30, 20, TierOverdue},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.days, tc.score), "days=%d score=%v", tc.days, tc.score)
		assert.Equal(t, Classify(tc.days, tc.score), Classify(tc.days, tc.score))
	}
}

func TestRender(t *testing.T) {
	due := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)
	p := Params{
		RecipientName: "Dana",
		SenderName:    "Ledger & Co",
		Amount:        decimal.RequireFromString("1234.5"),
		DueDate:       due,
		DaysUntilDue:  3,
	}

	msg, err := Render(TierApproaching, p)
	require.NoError(t, err)
	assert.Equal(t, "Payment of 1,234.50 due in 3 days", msg.Subject)
	assert.Contains(t, msg.Body, "Hi Dana,")
	assert.Contains(t, msg.Body, "June 15, 2026")
	assert.Contains(t, msg.Body, "Ledger & Co")

	p.DaysUntilDue = -4
	msg, err = Render(TierOverdue, p)
	require.NoError(t, err)
	assert.Equal(t, "Payment of 1,234.50 is overdue", msg.Subject)
	assert.Contains(t, msg.Body, "4 days late")

	p.DaysUntilDue = 0
	msg, err = Render(TierOverdue, p)
	require.NoError(t, err)
	assert.Contains(t, msg.Subject, "due today")

	for _, tier := range []Tier{TierFriendly, TierUrgent} {
		msg, err := Render(tier, p)
		require.NoError(t, err)
		assert.NotEmpty(t, msg.Subject)
		assert.Contains(t, msg.Body, "1,234.50")
	}

	_, err = Render(Tier("stern"), p)
	assert.Error(t, err)
}

func TestMoneyKeepsEveryCent(t *testing.T) {
	cases := map[string]string{
		"0":                 "0.00",
		"0.1":               "0.10",
		"999.995":           "1,000.00",
		"1234.5":            "1,234.50",
		"12345678901234.56": "12,345,678,901,234.56",
		"90071992547409.93": "90,071,992,547,409.93",
		"-1500.25":          "-1,500.25",
	}
	for in, want := range cases {
		assert.Equal(t, want, money(decimal.RequireFromString(in)), in)
	}
}
