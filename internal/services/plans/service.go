package plans

import (
	"context"
	"errors"
	"fmt"
	"time"

	"liaison/internal/apperr"
	"liaison/internal/models"
	"liaison/internal/observability/metrics"
	"liaison/internal/ports"
	"liaison/internal/services/scoring"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SystemActor is used by sweeps and statement imports; it bypasses the
// party check but never the state rules.
const SystemActor = models.SystemPartyID

type Service struct {
	store   ports.Store
	engine  *scoring.Engine
	audit   ports.ScoreAudit
	metrics *metrics.DomainMetrics
	log     *zap.Logger
	now     func() time.Time
}

type Option func(*Service)

func WithAudit(a ports.ScoreAudit) Option { return func(s *Service) { s.audit = a } }

func WithMetrics(m *metrics.DomainMetrics) Option { return func(s *Service) { s.metrics = m } }

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.log = l } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(store ports.Store, engine *scoring.Engine, opts ...Option) *Service {
	s := &Service{
		store:  store,
		engine: engine,
		log:    zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Engine() *scoring.Engine { return s.engine }

func (s *Service) Now() time.Time { return s.now() }

// ValidateTerms rejects non-positive amounts, counts and intervals, and
// totals that cannot give every installment at least one cent.
func ValidateTerms(t models.PlanTerms) error {
	switch {
	case !t.TotalDue.IsPositive():
		return apperr.Validation("total_due", "must be greater than zero")
	case !t.TotalDue.Equal(t.TotalDue.Round(2)):
		return apperr.Validation("total_due", "must have at most two decimal places")
	case t.NumPayments < 1:
		return apperr.Validation("num_payments", "must be at least 1")
	case t.TotalDue.LessThan(models.Cent.Mul(decimal.NewFromInt(int64(t.NumPayments)))):
		return apperr.Validation("num_payments", "leaves an installment below one cent")
	case t.IntervalDays <= 0:
		return apperr.Validation("interval_days", "must be greater than zero")
	}
	return nil
}

type AcceptResult struct {
	Plan       models.PaymentPlan  `json:"plan"`
	Superseded *models.PaymentPlan `json:"superseded,omitempty"`
	First      models.Obligation   `json:"first_obligation"`
}

type AdvanceResult struct {
	Obligation   models.Obligation   `json:"obligation"`
	Next         *models.Obligation  `json:"next,omitempty"`
	Plan         models.PaymentPlan  `json:"plan"`
	Relationship models.Relationship `json:"relationship"`
	At           time.Time           `json:"at"`
	Change       *scoring.Change     `json:"-"`
}

type Schedule struct {
	Plan        models.PaymentPlan  `json:"plan"`
	Obligations []models.Obligation `json:"obligations"`
	Next        *models.Obligation  `json:"next,omitempty"`
}

// Propose creates a pending plan. The relationship's active plan, if any,
// becomes the parent of the proposal.
func (s *Service) Propose(ctx context.Context, actor, relationshipID string, terms models.PlanTerms, reason string) (models.PaymentPlan, error) {
	if err := ValidateTerms(terms); err != nil {
		return models.PaymentPlan{}, err
	}
	var out models.PaymentPlan
	err := s.store.InTx(ctx, func(ctx context.Context, repo ports.Repository) error {
		p, err := s.ProposeTx(ctx, repo, actor, relationshipID, terms, reason)
		out = p
		return err
	})
	if err != nil {
		return models.PaymentPlan{}, err
	}
	s.RecordProposed(out, actor)
	return out, nil
}

// RecordProposed logs and counts a committed proposal. Callers that use
// ProposeTx invoke it after their transaction commits.
func (s *Service) RecordProposed(p models.PaymentPlan, actor string) {
	s.metrics.PlanTransition("", string(models.PlanPending))
	s.log.Info("plan proposed",
		zap.String("plan_id", p.ID),
		zap.String("relationship_id", p.RelationshipID),
		zap.String("actor", actor),
		zap.String("total_due", p.TotalDue.String()),
		zap.Int("num_payments", p.NumPayments),
	)
}

func (s *Service) ProposeTx(ctx context.Context, repo ports.Repository, actor, relationshipID string, terms models.PlanTerms, reason string) (models.PaymentPlan, error) {
	if err := ValidateTerms(terms); err != nil {
		return models.PaymentPlan{}, err
	}
	rel, err := repo.GetRelationship(ctx, relationshipID)
	if err != nil {
		return models.PaymentPlan{}, ports.MapError("propose", "relationship", relationshipID, err)
	}
	if err := authorize(rel, actor); err != nil {
		return models.PaymentPlan{}, err
	}

	now := s.now()
	plan := models.PaymentPlan{
		ID:             uuid.NewString(),
		RelationshipID: rel.ID,
		TotalDue:       terms.TotalDue,
		NumPayments:    terms.NumPayments,
		IntervalDays:   terms.IntervalDays,
		Status:         models.PlanPending,
		Reason:         reason,
		ModifiedBy:     actor,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	active, err := repo.ActivePlan(ctx, rel.ID)
	if err != nil {
		return models.PaymentPlan{}, ports.MapError("propose", "plan", rel.ID, err)
	}
	if active != nil {
		parent := active.ID
		plan.ParentPlanID = &parent
	}
	if err := repo.InsertPlan(ctx, plan); err != nil {
		return models.PaymentPlan{}, ports.MapError("propose", "plan", plan.ID, err)
	}
	return plan, nil
}

// Accept activates a pending plan, cancels the previously active plan of the
// same relationship and creates the first obligation, all in one transaction.
func (s *Service) Accept(ctx context.Context, actor, planID string) (AcceptResult, error) {
	var out AcceptResult
	err := s.store.InTx(ctx, func(ctx context.Context, repo ports.Repository) error {
		res, err := s.AcceptTx(ctx, repo, actor, planID)
		out = res
		return err
	})
	if err != nil {
		return AcceptResult{}, err
	}
	s.RecordAccepted(out, actor)
	return out, nil
}

func (s *Service) RecordAccepted(res AcceptResult, actor string) {
	if res.Superseded != nil {
		s.metrics.PlanTransition(string(models.PlanActive), string(models.PlanCancelled))
	}
	s.metrics.PlanTransition(string(models.PlanPending), string(models.PlanActive))
	fields := []zap.Field{
		zap.String("plan_id", res.Plan.ID),
		zap.String("relationship_id", res.Plan.RelationshipID),
		zap.String("actor", actor),
		zap.String("first_obligation_id", res.First.ID),
		zap.Time("first_due", res.First.DueDate),
	}
	if res.Superseded != nil {
		fields = append(fields, zap.String("superseded_plan_id", res.Superseded.ID))
	}
	s.log.Info("plan accepted", fields...)
}

// AcceptTx is Accept against an already open transaction.
func (s *Service) AcceptTx(ctx context.Context, repo ports.Repository, actor, planID string) (AcceptResult, error) {
	plan, rel, err := s.loadPlan(ctx, repo, "accept", planID)
	if err != nil {
		return AcceptResult{}, err
	}
	if err := authorize(rel, actor); err != nil {
		return AcceptResult{}, err
	}
	if plan.Status != models.PlanPending {
		return AcceptResult{}, apperr.Invariant("plan_state", fmt.Sprintf("plan %s is %s, expected pending", plan.ID, plan.Status))
	}
	if actor != SystemActor && actor == plan.ModifiedBy {
		return AcceptResult{}, apperr.Unauthorized(actor, "cannot accept a plan you proposed")
	}

	now := s.now()
	var res AcceptResult

	active, err := repo.ActivePlan(ctx, rel.ID)
	if err != nil {
		return AcceptResult{}, ports.MapError("accept", "plan", rel.ID, err)
	}
	if active != nil && active.ID != plan.ID {
		if err := s.supersede(ctx, repo, *active, actor, now); err != nil {
			return AcceptResult{}, err
		}
		sup := *active
		sup.Status = models.PlanCancelled
		sup.ModifiedBy = actor
		sup.UpdatedAt = now
		res.Superseded = &sup
	}

	if err := repo.TransitionPlan(ctx, plan.ID, models.PlanPending, models.PlanActive, actor, now); err != nil {
		if errors.Is(err, ports.ErrConflict) {
			return AcceptResult{}, apperr.InvariantWrap("single_active_plan", "another plan became active for relationship "+rel.ID, err)
		}
		return AcceptResult{}, ports.MapError("accept", "plan", plan.ID, err)
	}
	plan.Status = models.PlanActive
	plan.ModifiedBy = actor
	plan.UpdatedAt = now
	plan.ActivatedAt = &now

	first := models.Obligation{
		ID:        uuid.NewString(),
		PlanID:    plan.ID,
		Sequence:  1,
		Amount:    plan.InstallmentAmount(1),
		DueDate:   now.AddDate(0, 0, plan.IntervalDays),
		Status:    models.ObligationPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.InsertObligation(ctx, first); err != nil {
		return AcceptResult{}, ports.MapError("obligation_sequence", "obligation", first.ID, err)
	}

	res.Plan = plan
	res.First = first
	return res, nil
}

// supersede cancels an active plan and closes its outstanding obligations.
func (s *Service) supersede(ctx context.Context, repo ports.Repository, old models.PaymentPlan, actor string, now time.Time) error {
	if err := repo.TransitionPlan(ctx, old.ID, models.PlanActive, models.PlanCancelled, actor, now); err != nil {
		return ports.MapError("supersede", "plan", old.ID, err)
	}
	return s.closeOutstanding(ctx, repo, old.ID, "", now)
}

func (s *Service) closeOutstanding(ctx context.Context, repo ports.Repository, planID, skipID string, now time.Time) error {
	obs, err := repo.ListObligations(ctx, planID)
	if err != nil {
		return ports.MapError("close_outstanding", "plan", planID, err)
	}
	for _, ob := range obs {
		if ob.ID == skipID || !ob.Status.Outstanding() {
			continue
		}
		prev := ob.Status
		ob.Status = models.ObligationRenego
		ob.UpdatedAt = now
		if err := repo.UpdateObligation(ctx, ob, prev); err != nil {
			return ports.MapError("close_outstanding", "obligation", ob.ID, err)
		}
	}
	return nil
}

// Reject closes a pending plan without creating obligations.
func (s *Service) Reject(ctx context.Context, actor, planID string) (models.PaymentPlan, error) {
	var out models.PaymentPlan
	err := s.store.InTx(ctx, func(ctx context.Context, repo ports.Repository) error {
		p, err := s.RejectTx(ctx, repo, actor, planID)
		out = p
		return err
	})
	if err != nil {
		return models.PaymentPlan{}, err
	}
	s.RecordRejected(out, actor)
	return out, nil
}

func (s *Service) RecordRejected(p models.PaymentPlan, actor string) {
	s.metrics.PlanTransition(string(models.PlanPending), string(models.PlanRejected))
	s.log.Info("plan rejected", zap.String("plan_id", p.ID), zap.String("actor", actor))
}

func (s *Service) RejectTx(ctx context.Context, repo ports.Repository, actor, planID string) (models.PaymentPlan, error) {
	plan, rel, err := s.loadPlan(ctx, repo, "reject", planID)
	if err != nil {
		return models.PaymentPlan{}, err
	}
	if err := authorize(rel, actor); err != nil {
		return models.PaymentPlan{}, err
	}
	if plan.Status != models.PlanPending {
		return models.PaymentPlan{}, apperr.Invariant("plan_state", fmt.Sprintf("plan %s is %s, expected pending", plan.ID, plan.Status))
	}
	now := s.now()
	if err := repo.TransitionPlan(ctx, plan.ID, models.PlanPending, models.PlanRejected, actor, now); err != nil {
		return models.PaymentPlan{}, ports.MapError("reject", "plan", plan.ID, err)
	}
	plan.Status = models.PlanRejected
	plan.ModifiedBy = actor
	plan.UpdatedAt = now
	return plan, nil
}

// Complete closes an active plan. It fails while any obligation is pending
// or overdue.
func (s *Service) Complete(ctx context.Context, actor, planID string) (models.PaymentPlan, error) {
	var out models.PaymentPlan
	err := s.store.InTx(ctx, func(ctx context.Context, repo ports.Repository) error {
		plan, rel, err := s.loadPlan(ctx, repo, "complete", planID)
		if err != nil {
			return err
		}
		if err := authorize(rel, actor); err != nil {
			return err
		}
		if plan.Status != models.PlanActive {
			return apperr.Invariant("plan_state", fmt.Sprintf("plan %s is %s, expected active", plan.ID, plan.Status))
		}
		obs, err := repo.ListObligations(ctx, plan.ID)
		if err != nil {
			return ports.MapError("complete", "plan", plan.ID, err)
		}
		if n := countOutstanding(obs); n > 0 {
			return apperr.Invariant("completion_guard", fmt.Sprintf("plan %s has %d outstanding obligation(s)", plan.ID, n))
		}
		now := s.now()
		if err := repo.TransitionPlan(ctx, plan.ID, models.PlanActive, models.PlanCompleted, actor, now); err != nil {
			return ports.MapError("complete", "plan", plan.ID, err)
		}
		plan.Status = models.PlanCompleted
		plan.ModifiedBy = actor
		plan.UpdatedAt = now
		out = plan
		return nil
	})
	if err != nil {
		return models.PaymentPlan{}, err
	}
	s.metrics.PlanTransition(string(models.PlanActive), string(models.PlanCompleted))
	s.log.Info("plan completed", zap.String("plan_id", out.ID), zap.String("actor", actor))
	return out, nil
}

// Get returns a plan with its obligations and the derived next obligation.
func (s *Service) Get(ctx context.Context, actor, planID string) (Schedule, error) {
	plan, rel, err := s.loadPlan(ctx, s.store, "get_plan", planID)
	if err != nil {
		return Schedule{}, err
	}
	if err := authorize(rel, actor); err != nil {
		return Schedule{}, err
	}
	obs, err := s.store.ListObligations(ctx, plan.ID)
	if err != nil {
		return Schedule{}, ports.MapError("get_plan", "plan", plan.ID, err)
	}
	return Schedule{Plan: plan, Obligations: obs, Next: models.NextObligation(obs)}, nil
}

// ActiveSchedule returns the active plan of a relationship, or nil.
func (s *Service) ActiveSchedule(ctx context.Context, actor, relationshipID string) (*Schedule, error) {
	rel, err := s.store.GetRelationship(ctx, relationshipID)
	if err != nil {
		return nil, ports.MapError("active_plan", "relationship", relationshipID, err)
	}
	if err := authorize(rel, actor); err != nil {
		return nil, err
	}
	active, err := s.store.ActivePlan(ctx, rel.ID)
	if err != nil {
		return nil, ports.MapError("active_plan", "plan", rel.ID, err)
	}
	if active == nil {
		return nil, nil
	}
	sched, err := s.Get(ctx, actor, active.ID)
	if err != nil {
		return nil, err
	}
	return &sched, nil
}

func (s *Service) loadPlan(ctx context.Context, repo ports.Repository, op, planID string) (models.PaymentPlan, models.Relationship, error) {
	plan, err := repo.GetPlan(ctx, planID)
	if err != nil {
		return models.PaymentPlan{}, models.Relationship{}, ports.MapError(op, "plan", planID, err)
	}
	rel, err := repo.GetRelationship(ctx, plan.RelationshipID)
	if err != nil {
		return models.PaymentPlan{}, models.Relationship{}, ports.MapError(op, "relationship", plan.RelationshipID, err)
	}
	return plan, rel, nil
}

func authorize(rel models.Relationship, actor string) error {
	if actor == SystemActor {
		return nil
	}
	if !rel.IsParty(actor) {
		return apperr.Unauthorized(actor, "not a party to relationship "+rel.ID)
	}
	return nil
}

func countOutstanding(obs []models.Obligation) int {
	n := 0
	for _, ob := range obs {
		if ob.Status.Outstanding() {
			n++
		}
	}
	return n
}
