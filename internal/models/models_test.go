package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstallmentAmountSumsToTotal(t *testing.T) {
	p := PaymentPlan{TotalDue: decimal.RequireFromString("1000"), NumPayments: 3}

	assert.Equal(t, "333.33", p.InstallmentAmount(1).StringFixed(2))
	assert.Equal(t, "333.33", p.InstallmentAmount(2).StringFixed(2))
	assert.Equal(t, "333.34", p.InstallmentAmount(3).StringFixed(2))

	sum := decimal.Zero
	for seq := 1; seq <= p.NumPayments; seq++ {
		sum = sum.Add(p.InstallmentAmount(seq))
	}
	assert.True(t, sum.Equal(p.TotalDue))
}

func TestInstallmentScheduleNeverGoesNegative(t *testing.T) {
	cases := []struct {
		total       string
		n           int
		minPositive bool
	}{
		{"1.00", 150, false},
		{"0.02", 3, false},
		{"1.50", 150, true},
		{"0.03", 3, true},
		{"100.00", 7, true},
		{"999999.99", 12, true},
	}
	for _, tc := range cases {
		p := PaymentPlan{TotalDue: decimal.RequireFromString(tc.total), NumPayments: tc.n}
		sum := decimal.Zero
		for seq := 1; seq <= tc.n; seq++ {
			amt := p.InstallmentAmount(seq)
			assert.False(t, amt.IsNegative(), "%s/%d seq %d = %s", tc.total, tc.n, seq, amt)
			if tc.minPositive {
				assert.True(t, amt.GreaterThanOrEqual(Cent), "%s/%d seq %d = %s", tc.total, tc.n, seq, amt)
			}
			sum = sum.Add(amt)
		}
		assert.True(t, sum.Equal(p.TotalDue), "%s/%d sums to %s", tc.total, tc.n, sum)
	}
}

func TestInstallmentAmountEvenSplit(t *testing.T) {
	p := PaymentPlan{TotalDue: decimal.NewFromInt(1200), NumPayments: 4}
	for seq := 1; seq <= 4; seq++ {
		assert.True(t, p.InstallmentAmount(seq).Equal(decimal.NewFromInt(300)), "seq %d", seq)
	}
}

func TestNextObligationIsFirstPendingBySequence(t *testing.T) {
	obs := []Obligation{
		{ID: "c", Sequence: 3, Status: ObligationPending},
		{ID: "a", Sequence: 1, Status: ObligationPaid},
		{ID: "b", Sequence: 2, Status: ObligationOverdue},
	}
	next := NextObligation(obs)
	require.NotNil(t, next)
	assert.Equal(t, "c", next.ID)

	assert.Nil(t, NextObligation(obs[1:]))
}

func TestCounterparty(t *testing.T) {
	r := Relationship{FirmPartyID: "firm", ClientPartyID: "client"}
	assert.Equal(t, "client", r.Counterparty("firm"))
	assert.Equal(t, "firm", r.Counterparty("client"))
	assert.Equal(t, "", r.Counterparty("stranger"))
	assert.False(t, r.IsParty(""))
}

func TestDaysBetween(t *testing.T) {
	due := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	assert.Equal(t, -2, DaysBetween(due, time.Date(2026, 3, 8, 1, 0, 0, 0, time.UTC)))
	assert.Equal(t, 0, DaysBetween(due, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 10, DaysBetween(due, time.Date(2026, 3, 20, 23, 0, 0, 0, time.UTC)))
}

func TestMessageBodyKeepsVariant(t *testing.T) {
	body := ProposalBody(PlanProposal{
		Proposed:       PlanTerms{TotalDue: decimal.NewFromInt(900), NumPayments: 3, IntervalDays: 30},
		ProposedPlanID: "plan-2",
		Reason:         "cash flow",
	})
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"type":"plan_proposal"`)

	var decoded MessageBody
	require.NoError(t, json.Unmarshal(raw, &decoded))
	p, ok := decoded.Proposal()
	require.True(t, ok)
	assert.Equal(t, "plan-2", p.ProposedPlanID)
	_, isText := decoded.Text()
	assert.False(t, isText)
}

func TestMessageBodyDoesNotGuessFromText(t *testing.T) {
	// text that happens to contain JSON stays text
	body := TextBody(`{"type":"plan_proposal"}`)
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	var decoded MessageBody
	require.NoError(t, json.Unmarshal(raw, &decoded))
	text, ok := decoded.Text()
	require.True(t, ok)
	assert.Equal(t, `{"type":"plan_proposal"}`, text)

	assert.Error(t, json.Unmarshal([]byte(`{"type":"sticker"}`), &decoded))
}
