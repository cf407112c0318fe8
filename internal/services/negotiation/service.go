package negotiation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"liaison/internal/apperr"
	"liaison/internal/models"
	"liaison/internal/observability/metrics"
	"liaison/internal/ports"
	"liaison/internal/services/plans"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service struct {
	store     ports.Store
	plans     *plans.Service
	publisher ports.NoticePublisher
	metrics   *metrics.DomainMetrics
	log       *zap.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithPublisher(p ports.NoticePublisher) Option { return func(s *Service) { s.publisher = p } }

func WithMetrics(m *metrics.DomainMetrics) Option { return func(s *Service) { s.metrics = m } }

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.log = l } }

// NewService shares the plan service's clock so plan and notice timestamps agree.
func NewService(store ports.Store, planSvc *plans.Service, opts ...Option) *Service {
	s := &Service{
		store: store,
		plans: planSvc,
		log:   zap.NewNop(),
		now:   planSvc.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Proposal is a plan request notice together with the pending plan it carries.
type Proposal struct {
	Request models.Notice      `json:"request"`
	Plan    models.PaymentPlan `json:"plan"`
	// Countered is the request this one replaces, if any.
	Countered *models.Notice `json:"countered,omitempty"`
}

type Acceptance struct {
	Request      models.Notice      `json:"request"`
	Confirmation models.Notice      `json:"confirmation"`
	Result       plans.AcceptResult `json:"result"`
}

type Rejection struct {
	Request models.Notice      `json:"request"`
	Notice  models.Notice      `json:"notice"`
	Plan    models.PaymentPlan `json:"plan"`
}

// RequestChange opens a negotiation: it proposes a pending plan and sends a
// payment plan request to the other party, snapshotting the active plan.
func (s *Service) RequestChange(ctx context.Context, actor, relationshipID string, proposed models.PlanTerms, reason string) (Proposal, error) {
	if err := plans.ValidateTerms(proposed); err != nil {
		s.metrics.Negotiation("request", err)
		return Proposal{}, err
	}
	var out Proposal
	err := s.store.InTx(ctx, func(ctx context.Context, repo ports.Repository) error {
		rel, err := repo.GetRelationship(ctx, relationshipID)
		if err != nil {
			return ports.MapError("request_change", "relationship", relationshipID, err)
		}
		if !rel.IsParty(actor) {
			return apperr.Unauthorized(actor, "not a party to relationship "+rel.ID)
		}
		payload := models.PlanProposal{Proposed: proposed, Reason: reason}
		active, err := repo.ActivePlan(ctx, rel.ID)
		if err != nil {
			return ports.MapError("request_change", "plan", rel.ID, err)
		}
		if active != nil {
			id, current := active.ID, active.Terms()
			payload.CurrentPlanID = &id
			payload.Current = &current
		}
		plan, err := s.plans.ProposeTx(ctx, repo, actor, rel.ID, proposed, reason)
		if err != nil {
			return err
		}
		payload.ProposedPlanID = plan.ID

		n := s.requestNotice(rel.ID, actor, rel.Counterparty(actor), payload)
		if err := repo.InsertNotice(ctx, &n); err != nil {
			return ports.MapError("request_change", "notice", n.ID, err)
		}
		out = Proposal{Request: n, Plan: plan}
		return nil
	})
	s.metrics.Negotiation("request", err)
	if err != nil {
		return Proposal{}, err
	}
	s.plans.RecordProposed(out.Plan, actor)
	s.publish(ctx, out.Request)
	s.log.Info("plan change requested",
		zap.String("notice_id", out.Request.ID),
		zap.String("relationship_id", relationshipID),
		zap.String("plan_id", out.Plan.ID),
		zap.String("actor", actor),
	)
	return out, nil
}

// Counter replaces an open request with a revised proposal. Only the
// recipient of the original request may counter; the original pending
// plan is rejected.
func (s *Service) Counter(ctx context.Context, actor, requestID string, revised models.PlanTerms, reason string) (Proposal, error) {
	if err := plans.ValidateTerms(revised); err != nil {
		s.metrics.Negotiation("counter", err)
		return Proposal{}, err
	}
	var (
		out      Proposal
		rejected models.PaymentPlan
	)
	err := s.store.InTx(ctx, func(ctx context.Context, repo ports.Repository) error {
		req, prop, err := s.openRequest(ctx, repo, actor, requestID, "counter")
		if err != nil {
			return err
		}
		if err := s.closeRequest(ctx, repo, req, models.ProposalCountered); err != nil {
			return err
		}
		rejected, err = s.plans.RejectTx(ctx, repo, actor, prop.ProposedPlanID)
		if err != nil {
			return err
		}

		plan, err := s.plans.ProposeTx(ctx, repo, actor, req.RelationshipID, revised, reason)
		if err != nil {
			return err
		}
		prevID := req.ID
		payload := models.PlanProposal{
			CurrentPlanID:     prop.CurrentPlanID,
			Current:           prop.Current,
			Proposed:          revised,
			ProposedPlanID:    plan.ID,
			Reason:            reason,
			PreviousRequestID: &prevID,
		}
		n := s.requestNotice(req.RelationshipID, actor, req.SenderID, payload)
		if err := repo.InsertNotice(ctx, &n); err != nil {
			return ports.MapError("counter", "notice", n.ID, err)
		}
		req.ProposalState = models.ProposalCountered
		req.Version++
		out = Proposal{Request: n, Plan: plan, Countered: &req}
		return nil
	})
	s.metrics.Negotiation("counter", err)
	if err != nil {
		return Proposal{}, err
	}
	s.plans.RecordRejected(rejected, actor)
	s.plans.RecordProposed(out.Plan, actor)
	s.publish(ctx, out.Request)
	s.log.Info("plan request countered",
		zap.String("notice_id", out.Request.ID),
		zap.String("previous_request_id", requestID),
		zap.String("plan_id", out.Plan.ID),
		zap.String("actor", actor),
	)
	return out, nil
}

// Accept activates the proposed plan and confirms to the sender.
func (s *Service) Accept(ctx context.Context, actor, requestID string) (Acceptance, error) {
	var out Acceptance
	err := s.store.InTx(ctx, func(ctx context.Context, repo ports.Repository) error {
		req, prop, err := s.openRequest(ctx, repo, actor, requestID, "accept")
		if err != nil {
			return err
		}
		if err := s.closeRequest(ctx, repo, req, models.ProposalAccepted); err != nil {
			return err
		}
		res, err := s.plans.AcceptTx(ctx, repo, actor, prop.ProposedPlanID)
		if err != nil {
			return err
		}
		body := fmt.Sprintf("Payment plan accepted: %s in %d installment(s) every %d day(s). First payment due %s.",
			res.Plan.TotalDue.StringFixed(2), res.Plan.NumPayments, res.Plan.IntervalDays, res.First.DueDate.Format("2006-01-02"))
		n := s.notice(req.RelationshipID, actor, req.SenderID, models.NoticeConfirmation, models.TextBody(body))
		if err := repo.InsertNotice(ctx, &n); err != nil {
			return ports.MapError("accept", "notice", n.ID, err)
		}
		req.ProposalState = models.ProposalAccepted
		req.Version++
		out = Acceptance{Request: req, Confirmation: n, Result: res}
		return nil
	})
	s.metrics.Negotiation("accept", err)
	if err != nil {
		return Acceptance{}, err
	}
	s.plans.RecordAccepted(out.Result, actor)
	s.publish(ctx, out.Confirmation)
	s.log.Info("plan request accepted",
		zap.String("notice_id", requestID),
		zap.String("plan_id", out.Result.Plan.ID),
		zap.String("actor", actor),
	)
	return out, nil
}

// Reject declines an open request and rejects its pending plan.
func (s *Service) Reject(ctx context.Context, actor, requestID, reason string) (Rejection, error) {
	var out Rejection
	err := s.store.InTx(ctx, func(ctx context.Context, repo ports.Repository) error {
		req, prop, err := s.openRequest(ctx, repo, actor, requestID, "reject")
		if err != nil {
			return err
		}
		if err := s.closeRequest(ctx, repo, req, models.ProposalRejected); err != nil {
			return err
		}
		plan, err := s.plans.RejectTx(ctx, repo, actor, prop.ProposedPlanID)
		if err != nil {
			return err
		}
		text := "Payment plan request declined."
		if reason != "" {
			text += " Reason: " + reason
		}
		n := s.notice(req.RelationshipID, actor, req.SenderID, models.NoticeRejection, models.TextBody(text))
		if err := repo.InsertNotice(ctx, &n); err != nil {
			return ports.MapError("reject", "notice", n.ID, err)
		}
		req.ProposalState = models.ProposalRejected
		req.Version++
		out = Rejection{Request: req, Notice: n, Plan: plan}
		return nil
	})
	s.metrics.Negotiation("reject", err)
	if err != nil {
		return Rejection{}, err
	}
	s.plans.RecordRejected(out.Plan, actor)
	s.publish(ctx, out.Notice)
	s.log.Info("plan request rejected", zap.String("notice_id", requestID), zap.String("actor", actor))
	return out, nil
}

// openRequest loads a plan request and checks that actor is its recipient
// and that it is still open.
func (s *Service) openRequest(ctx context.Context, repo ports.Repository, actor, requestID, op string) (models.Notice, models.PlanProposal, error) {
	req, err := repo.GetNotice(ctx, requestID)
	if err != nil {
		return models.Notice{}, models.PlanProposal{}, ports.MapError(op, "notice", requestID, err)
	}
	prop, ok := req.Body.Proposal()
	if req.Kind != models.NoticePlanRequest || !ok {
		return models.Notice{}, models.PlanProposal{}, apperr.Validation("request_id", "notice "+requestID+" is not a payment plan request")
	}
	switch actor {
	case req.SenderID:
		return models.Notice{}, models.PlanProposal{}, apperr.Unauthorized(actor, "cannot "+op+" your own proposal")
	case req.ReceiverID:
	default:
		return models.Notice{}, models.PlanProposal{}, apperr.Unauthorized(actor, "not the recipient of request "+requestID)
	}
	if req.ProposalState != models.ProposalOpen {
		return models.Notice{}, models.PlanProposal{}, apperr.Invariant("proposal_state",
			fmt.Sprintf("request %s is %s", req.ID, req.ProposalState))
	}
	return req, prop, nil
}

func (s *Service) closeRequest(ctx context.Context, repo ports.Repository, req models.Notice, to models.ProposalState) error {
	err := repo.TransitionProposal(ctx, req.ID, req.Version, models.ProposalOpen, to)
	if errors.Is(err, ports.ErrConflict) {
		return apperr.InvariantWrap("proposal_state", "request "+req.ID+" was answered concurrently", err)
	}
	return ports.MapError("close_request", "notice", req.ID, err)
}

func (s *Service) requestNotice(relationshipID, sender, receiver string, p models.PlanProposal) models.Notice {
	n := s.notice(relationshipID, sender, receiver, models.NoticePlanRequest, models.ProposalBody(p))
	n.ProposalState = models.ProposalOpen
	return n
}

func (s *Service) notice(relationshipID, sender, receiver string, kind models.NoticeKind, body models.MessageBody) models.Notice {
	return models.Notice{
		ID:             uuid.NewString(),
		RelationshipID: relationshipID,
		SenderID:       sender,
		ReceiverID:     receiver,
		Kind:           kind,
		Body:           body,
		CreatedAt:      s.now(),
	}
}

func (s *Service) publish(ctx context.Context, n models.Notice) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishNotice(ctx, n); err != nil {
		s.log.Warn("notice publish failed",
			zap.String("notice_id", n.ID),
			zap.String("relationship_id", n.RelationshipID),
			zap.Error(err),
		)
	}
}
