package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"liaison/internal/models"
	"liaison/internal/ports"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T) *Store {
	t.Helper()
	s := New()
	require.NoError(t, s.InsertRelationship(context.Background(), models.Relationship{
		ID: "rel", FirmPartyID: "f", ClientPartyID: "c", Status: models.RelationshipEstablished,
	}))
	return s
}

func plan(id string, status models.PlanStatus) models.PaymentPlan {
	return models.PaymentPlan{
		ID: id, RelationshipID: "rel", TotalDue: decimal.NewFromInt(100),
		NumPayments: 1, IntervalDays: 7, Status: status,
	}
}

func TestRelationshipPairIsUnique(t *testing.T) {
	s := seed(t)
	err := s.InsertRelationship(context.Background(), models.Relationship{ID: "other", FirmPartyID: "f", ClientPartyID: "c"})
	assert.ErrorIs(t, err, ports.ErrConflict)
}

func TestSingleActivePlan(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.InsertPlan(ctx, plan("a", models.PlanActive)))
	require.NoError(t, s.InsertPlan(ctx, plan("b", models.PlanPending)))

	assert.ErrorIs(t, s.InsertPlan(ctx, plan("c", models.PlanActive)), ports.ErrConflict)
	assert.ErrorIs(t, s.TransitionPlan(ctx, "b", models.PlanPending, models.PlanActive, "f", now), ports.ErrConflict)

	require.NoError(t, s.TransitionPlan(ctx, "a", models.PlanActive, models.PlanCancelled, "f", now))
	require.NoError(t, s.TransitionPlan(ctx, "b", models.PlanPending, models.PlanActive, "f", now))

	active, err := s.ActivePlan(ctx, "rel")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "b", active.ID)
	assert.NotNil(t, active.ActivatedAt)
}

func TestTransitionPlanChecksCurrentStatus(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	require.NoError(t, s.InsertPlan(ctx, plan("a", models.PlanPending)))

	err := s.TransitionPlan(ctx, "a", models.PlanActive, models.PlanCompleted, "f", time.Now())
	assert.ErrorIs(t, err, ports.ErrConflict)
	assert.ErrorIs(t, s.TransitionPlan(ctx, "missing", models.PlanPending, models.PlanActive, "f", time.Now()), ports.ErrNotFound)
}

func TestObligationSequenceIsUnique(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	require.NoError(t, s.InsertPlan(ctx, plan("a", models.PlanActive)))

	require.NoError(t, s.InsertObligation(ctx, models.Obligation{ID: "o1", PlanID: "a", Sequence: 1, Status: models.ObligationPending}))
	err := s.InsertObligation(ctx, models.Obligation{ID: "o2", PlanID: "a", Sequence: 1, Status: models.ObligationPending})
	assert.ErrorIs(t, err, ports.ErrConflict)

	err = s.InsertObligation(ctx, models.Obligation{ID: "o3", PlanID: "nope", Sequence: 1})
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestInTxRollsBackOnError(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(ctx context.Context, repo ports.Repository) error {
		if err := repo.InsertPlan(ctx, plan("a", models.PlanActive)); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetPlan(ctx, "a")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestNoticeSequenceIsMonotonicPerRelationship(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	require.NoError(t, s.InsertRelationship(ctx, models.Relationship{ID: "rel2", FirmPartyID: "f", ClientPartyID: "c2"}))

	for i, rel := range []string{"rel", "rel", "rel2", "rel"} {
		n := &models.Notice{ID: string(rune('a' + i)), RelationshipID: rel, ReceiverID: "c", Kind: models.NoticeText, Body: models.TextBody("hi")}
		require.NoError(t, s.InsertNotice(ctx, n))
	}

	list, err := s.ListNotices(ctx, "rel", 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, n := range list {
		assert.Equal(t, int64(i+1), n.Seq)
	}

	after, err := s.ListNotices(ctx, "rel", 2, 10)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "d", after[0].ID)
}

func TestTransitionProposalUsesVersion(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	n := &models.Notice{ID: "req", RelationshipID: "rel", Kind: models.NoticePlanRequest, ProposalState: models.ProposalOpen}
	require.NoError(t, s.InsertNotice(ctx, n))

	require.NoError(t, s.TransitionProposal(ctx, "req", 0, models.ProposalOpen, models.ProposalAccepted))
	err := s.TransitionProposal(ctx, "req", 0, models.ProposalOpen, models.ProposalRejected)
	assert.ErrorIs(t, err, ports.ErrConflict)

	got, err := s.GetNotice(ctx, "req")
	require.NoError(t, err)
	assert.Equal(t, models.ProposalAccepted, got.ProposalState)
	assert.Equal(t, 1, got.Version)
}

func TestMarkNoticeReadOnlyByReceiver(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	require.NoError(t, s.InsertNotice(ctx, &models.Notice{ID: "n", RelationshipID: "rel", SenderID: "f", ReceiverID: "c"}))

	assert.ErrorIs(t, s.MarkNoticeRead(ctx, "n", "f"), ports.ErrNotFound)
	require.NoError(t, s.MarkNoticeRead(ctx, "n", "c"))
	got, _ := s.GetNotice(ctx, "n")
	assert.True(t, got.Read)
}

func TestListDueBeforeFiltersStatusAndInactivePlans(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	cutoff := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.InsertPlan(ctx, plan("a", models.PlanActive)))
	require.NoError(t, s.InsertPlan(ctx, plan("b", models.PlanCancelled)))

	require.NoError(t, s.InsertObligation(ctx, models.Obligation{ID: "due", PlanID: "a", Sequence: 1, Status: models.ObligationPending, DueDate: cutoff.AddDate(0, 0, -1)}))
	require.NoError(t, s.InsertObligation(ctx, models.Obligation{ID: "later", PlanID: "a", Sequence: 2, Status: models.ObligationPending, DueDate: cutoff.AddDate(0, 0, 1)}))
	require.NoError(t, s.InsertObligation(ctx, models.Obligation{ID: "cancelled", PlanID: "b", Sequence: 1, Status: models.ObligationPending, DueDate: cutoff.AddDate(0, 0, -3)}))

	require.NoError(t, s.InsertObligation(ctx, models.Obligation{ID: "late", PlanID: "a", Sequence: 3, Status: models.ObligationOverdue, DueDate: cutoff.AddDate(0, 0, -5)}))

	out, err := s.ListDueBefore(ctx, cutoff, []models.ObligationStatus{models.ObligationPending}, 10)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "due", out[0].ID)

	out, err = s.ListDueBefore(ctx, cutoff, []models.ObligationStatus{models.ObligationPending, models.ObligationOverdue}, 10)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "late", out[0].ID)
	assert.Equal(t, "due", out[1].ID)
}

func TestContact(t *testing.T) {
	s := New()
	s.SetContact("c", "Acme Ltd", "billing@acme.test")

	name, email, err := s.Contact(context.Background(), "c")
	require.NoError(t, err)
	assert.Equal(t, "Acme Ltd", name)
	assert.Equal(t, "billing@acme.test", email)

	_, _, err = s.Contact(context.Background(), "x")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}
