package negotiation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"liaison/internal/apperr"
	"liaison/internal/models"
	"liaison/internal/repository/memory"
	"liaison/internal/services/plans"
	"liaison/internal/services/scoring"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	partyA = "firm-a"
	partyB = "client-b"
	relID  = "rel-ab"
)

type publisherSpy struct {
	mu      sync.Mutex
	notices []models.Notice
	err     error
}

func (p *publisherSpy) PublishNotice(_ context.Context, n models.Notice) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, n)
	return p.err
}

func setup(t *testing.T) (*Service, *memory.Store, *publisherSpy) {
	t.Helper()
	st := memory.New()
	require.NoError(t, st.InsertRelationship(context.Background(), models.Relationship{
		ID: relID, FirmPartyID: partyA, ClientPartyID: partyB, Status: models.RelationshipEstablished, Score: 90,
	}))
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	planSvc := plans.NewService(st, scoring.New(scoring.DefaultPolicy()), plans.WithClock(func() time.Time { return now }))
	pub := &publisherSpy{}
	svc := NewService(st, planSvc, WithPublisher(pub), WithLogger(zaptest.NewLogger(t)))
	return svc, st, pub
}

func terms(total string, n, interval int) models.PlanTerms {
	return models.PlanTerms{TotalDue: decimal.RequireFromString(total), NumPayments: n, IntervalDays: interval}
}

func noticeCount(t *testing.T, st *memory.Store) int {
	t.Helper()
	list, err := st.ListNotices(context.Background(), relID, 0, 0)
	require.NoError(t, err)
	return len(list)
}

func TestRequestChange_CreatesPendingPlanAndRequest(t *testing.T) {
	svc, st, pub := setup(t)

	p, err := svc.RequestChange(context.Background(), partyA, relID, terms("1200", 4, 30), "quarterly")
	require.NoError(t, err)

	assert.Equal(t, models.PlanPending, p.Plan.Status)
	assert.Equal(t, models.NoticePlanRequest, p.Request.Kind)
	assert.Equal(t, partyA, p.Request.SenderID)
	assert.Equal(t, partyB, p.Request.ReceiverID)
	assert.Equal(t, models.ProposalOpen, p.Request.ProposalState)
	assert.Equal(t, int64(1), p.Request.Seq)

	prop, ok := p.Request.Body.Proposal()
	require.True(t, ok)
	assert.Equal(t, p.Plan.ID, prop.ProposedPlanID)
	assert.Nil(t, prop.Current)
	assert.Equal(t, "quarterly", prop.Reason)

	assert.Equal(t, 1, noticeCount(t, st))
	require.Len(t, pub.notices, 1)
}

func TestRequestChange_InvalidTermsCreateNoNotice(t *testing.T) {
	svc, st, _ := setup(t)

	_, err := svc.RequestChange(context.Background(), partyA, relID, terms("-5", 2, 30), "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, 0, noticeCount(t, st))
}

func TestRequestChange_OutsiderRejected(t *testing.T) {
	svc, _, _ := setup(t)

	_, err := svc.RequestChange(context.Background(), "mallory", relID, terms("100", 1, 30), "")
	assert.ErrorIs(t, err, apperr.ErrAuthorization)
}

func TestCounter_OwnProposalIsUnauthorized(t *testing.T) {
	svc, st, _ := setup(t)
	ctx := context.Background()
	p, err := svc.RequestChange(ctx, partyA, relID, terms("1200", 4, 30), "")
	require.NoError(t, err)

	_, err = svc.Counter(ctx, partyA, p.Request.ID, terms("1200", 6, 30), "")
	assert.ErrorIs(t, err, apperr.ErrAuthorization)

	assert.Equal(t, 1, noticeCount(t, st))
	req, err := st.GetNotice(ctx, p.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalOpen, req.ProposalState)
	plan, err := st.GetPlan(ctx, p.Plan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanPending, plan.Status)
}

func TestCounter_ReplacesRequest(t *testing.T) {
	svc, st, _ := setup(t)
	ctx := context.Background()
	p, err := svc.RequestChange(ctx, partyA, relID, terms("1200", 4, 30), "")
	require.NoError(t, err)

	c, err := svc.Counter(ctx, partyB, p.Request.ID, terms("1200", 6, 30), "smaller installments")
	require.NoError(t, err)

	assert.Equal(t, partyB, c.Request.SenderID)
	assert.Equal(t, partyA, c.Request.ReceiverID)
	prop, ok := c.Request.Body.Proposal()
	require.True(t, ok)
	require.NotNil(t, prop.PreviousRequestID)
	assert.Equal(t, p.Request.ID, *prop.PreviousRequestID)

	old, err := st.GetNotice(ctx, p.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProposalCountered, old.ProposalState)
	oldPlan, err := st.GetPlan(ctx, p.Plan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanRejected, oldPlan.Status)

	// the original sender answers the counter
	acc, err := svc.Accept(ctx, partyA, c.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Plan.ID, acc.Result.Plan.ID)
	assert.Equal(t, 6, acc.Result.Plan.NumPayments)
}

func TestCounter_InvalidTermsRejectedBeforeAnyWrite(t *testing.T) {
	svc, st, _ := setup(t)
	ctx := context.Background()
	p, err := svc.RequestChange(ctx, partyA, relID, terms("1200", 4, 30), "")
	require.NoError(t, err)

	_, err = svc.Counter(ctx, partyB, p.Request.ID, terms("0", 4, 30), "")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, 1, noticeCount(t, st))
}

func TestAccept_ActivatesPlanAndConfirms(t *testing.T) {
	svc, st, pub := setup(t)
	ctx := context.Background()
	p, err := svc.RequestChange(ctx, partyA, relID, terms("1200", 4, 30), "")
	require.NoError(t, err)

	acc, err := svc.Accept(ctx, partyB, p.Request.ID)
	require.NoError(t, err)

	assert.Equal(t, models.PlanActive, acc.Result.Plan.Status)
	assert.Equal(t, 1, acc.Result.First.Sequence)
	assert.Equal(t, models.NoticeConfirmation, acc.Confirmation.Kind)
	assert.Equal(t, partyA, acc.Confirmation.ReceiverID)
	assert.Equal(t, models.ProposalAccepted, acc.Request.ProposalState)

	active, err := st.ActivePlan(ctx, relID)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, p.Plan.ID, active.ID)
	assert.Len(t, pub.notices, 2)

	_, err = svc.Accept(ctx, partyB, p.Request.ID)
	assert.ErrorIs(t, err, apperr.ErrInvariant)
}

func TestAccept_SenderCannotAccept(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()
	p, err := svc.RequestChange(ctx, partyA, relID, terms("1200", 4, 30), "")
	require.NoError(t, err)

	_, err = svc.Accept(ctx, partyA, p.Request.ID)
	var ae *apperr.AuthorizationError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, partyA, ae.Actor)

	_, err = svc.Reject(ctx, partyA, p.Request.ID, "")
	assert.ErrorIs(t, err, apperr.ErrAuthorization)
}

func TestRequestChange_SnapshotsActivePlan(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()
	first, err := svc.RequestChange(ctx, partyA, relID, terms("1200", 4, 30), "")
	require.NoError(t, err)
	_, err = svc.Accept(ctx, partyB, first.Request.ID)
	require.NoError(t, err)

	second, err := svc.RequestChange(ctx, partyB, relID, terms("1200", 8, 30), "hardship")
	require.NoError(t, err)
	prop, _ := second.Request.Body.Proposal()
	require.NotNil(t, prop.CurrentPlanID)
	assert.Equal(t, first.Plan.ID, *prop.CurrentPlanID)
	require.NotNil(t, prop.Current)
	assert.Equal(t, 4, prop.Current.NumPayments)
	require.NotNil(t, second.Plan.ParentPlanID)
	assert.Equal(t, first.Plan.ID, *second.Plan.ParentPlanID)
}

func TestReject_ClosesRequestAndPlan(t *testing.T) {
	svc, st, _ := setup(t)
	ctx := context.Background()
	p, err := svc.RequestChange(ctx, partyA, relID, terms("500", 2, 14), "")
	require.NoError(t, err)

	rej, err := svc.Reject(ctx, partyB, p.Request.ID, "too fast")
	require.NoError(t, err)
	assert.Equal(t, models.PlanRejected, rej.Plan.Status)
	assert.Equal(t, models.NoticeRejection, rej.Notice.Kind)
	text, ok := rej.Notice.Body.Text()
	require.True(t, ok)
	assert.Contains(t, text, "too fast")

	active, err := st.ActivePlan(ctx, relID)
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestConcurrentAnswersHaveOneWinner(t *testing.T) {
	svc, st, _ := setup(t)
	ctx := context.Background()
	p, err := svc.RequestChange(ctx, partyA, relID, terms("900", 3, 30), "")
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	answer := []func() error{
		func() error { _, err := svc.Accept(ctx, partyB, p.Request.ID); return err },
		func() error { _, err := svc.Reject(ctx, partyB, p.Request.ID, ""); return err },
		func() error { _, err := svc.Counter(ctx, partyB, p.Request.ID, terms("900", 6, 30), ""); return err },
	}
	for _, fn := range answer {
		wg.Add(1)
		go func(fn func() error) {
			defer wg.Done()
			err := fn()
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}(fn)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, apperr.IsRetryable(err), err.Error())
	}
	assert.Equal(t, 1, wins)

	req, err := st.GetNotice(ctx, p.Request.ID)
	require.NoError(t, err)
	assert.NotEqual(t, models.ProposalOpen, req.ProposalState)
	assert.Equal(t, 1, req.Version)
}

func TestPublishFailureIsNotFatal(t *testing.T) {
	svc, _, pub := setup(t)
	pub.err = errors.New("redis down")

	_, err := svc.RequestChange(context.Background(), partyA, relID, terms("100", 1, 7), "")
	assert.NoError(t, err)
}
