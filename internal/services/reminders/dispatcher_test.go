package reminders

import (
	"context"
	"errors"
	"testing"
	"time"

	"liaison/internal/apperr"
	"liaison/internal/models"
	"liaison/internal/ports"
	"liaison/internal/repository/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type mailerSpy struct {
	sent []ports.Email
	err  error
}

func (m *mailerSpy) Send(_ context.Context, e ports.Email) error {
	m.sent = append(m.sent, e)
	return m.err
}

var now = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

func seedObligation(t *testing.T, score float64, due time.Time) (*memory.Store, string) {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	st.SetContact("client", "Dana", "dana@client.test")
	st.SetContact("firm", "Ledger & Co", "ops@ledger.test")
	require.NoError(t, st.InsertRelationship(ctx, models.Relationship{
		ID: "rel", FirmPartyID: "firm", ClientPartyID: "client", Status: models.RelationshipEstablished, Score: score,
	}))
	require.NoError(t, st.InsertPlan(ctx, models.PaymentPlan{
		ID: "plan", RelationshipID: "rel", TotalDue: decimal.NewFromInt(900), NumPayments: 3, IntervalDays: 30, Status: models.PlanActive,
	}))
	require.NoError(t, st.InsertObligation(ctx, models.Obligation{
		ID: "ob", PlanID: "plan", Sequence: 1, Amount: decimal.NewFromInt(300), DueDate: due, Status: models.ObligationPending,
	}))
	return st, "ob"
}

func TestPreview_TierFollowsDueDateAndScore(t *testing.T) {
	cases := []struct {
		dueIn int
		want  Tier
	}{
		{10, TierFriendly},
		{3, TierApproaching},
		{-10, TierUrgent},
	}
	for _, tc := range cases {
		st, id := seedObligation(t, 90, now.AddDate(0, 0, tc.dueIn))
		d := NewDispatcher(st, st, WithClock(func() time.Time { return now }))

		p, err := d.Preview(context.Background(), "firm", id)
		require.NoError(t, err)
		assert.Equal(t, tc.want, p.Tier)
		assert.Equal(t, tc.dueIn, p.DaysUntilDue)
		assert.Equal(t, "client", p.ReceiverID)
		assert.Contains(t, p.Message.Body, "Hi Dana,")
	}
}

func TestPreview_OutsiderRejected(t *testing.T) {
	st, id := seedObligation(t, 90, now)
	d := NewDispatcher(st, st, WithClock(func() time.Time { return now }))

	_, err := d.Preview(context.Background(), "mallory", id)
	assert.ErrorIs(t, err, apperr.ErrAuthorization)
}

func TestSend_RecordsNoticeAndEmails(t *testing.T) {
	st, id := seedObligation(t, 90, now.AddDate(0, 0, 3))
	mail := &mailerSpy{}
	d := NewDispatcher(st, st, WithMailer(mail), WithClock(func() time.Time { return now }))

	del, err := d.Send(context.Background(), "firm", id)
	require.NoError(t, err)
	assert.True(t, del.EmailSent)
	assert.Equal(t, models.NoticeReminder, del.Notice.Kind)
	assert.Equal(t, int64(1), del.Notice.Seq)

	require.Len(t, mail.sent, 1)
	assert.Equal(t, "dana@client.test", mail.sent[0].To)
	assert.Equal(t, "Ledger & Co", mail.sent[0].SenderName)
	assert.Equal(t, del.Message.Subject, mail.sent[0].Subject)
}

func TestSend_EmailFailureIsLoggedNotFatal(t *testing.T) {
	st, id := seedObligation(t, 60, now.AddDate(0, 0, -2))
	core, logs := observer.New(zap.WarnLevel)
	mail := &mailerSpy{err: apperr.Dependency("email", errors.New("status 502"))}
	d := NewDispatcher(st, st, WithMailer(mail), WithLogger(zap.New(core)), WithClock(func() time.Time { return now }))

	del, err := d.Send(context.Background(), SystemActor, id)
	require.NoError(t, err)
	assert.False(t, del.EmailSent)
	assert.Contains(t, del.EmailErr, "502")
	assert.Equal(t, TierOverdue, del.Tier)

	notices, err := st.ListNotices(context.Background(), "rel", 0, 0)
	require.NoError(t, err)
	assert.Len(t, notices, 1)
	assert.Equal(t, 1, logs.FilterMessage("reminder email failed").Len())
}

func TestDispatchDue(t *testing.T) {
	st, _ := seedObligation(t, 90, now.AddDate(0, 0, 2))
	mail := &mailerSpy{}
	d := NewDispatcher(st, st, WithMailer(mail), WithClock(func() time.Time { return now }))

	out, err := d.DispatchDue(context.Background(), 24*time.Hour, 0)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = d.DispatchDue(context.Background(), 3*24*time.Hour, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, TierApproaching, out[0].Tier)
	assert.Len(t, mail.sent, 1)
}

func TestDispatchDue_IncludesOverdueObligations(t *testing.T) {
	st, id := seedObligation(t, 60, now.AddDate(0, 0, -10))
	ctx := context.Background()
	ob, err := st.GetObligation(ctx, id)
	require.NoError(t, err)
	ob.Status = models.ObligationOverdue
	require.NoError(t, st.UpdateObligation(ctx, ob, models.ObligationPending))

	d := NewDispatcher(st, st, WithMailer(&mailerSpy{}), WithClock(func() time.Time { return now }))
	out, err := d.DispatchDue(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, TierUrgent, out[0].Tier)
}
