package plans

import (
	"context"
	"errors"
	"fmt"
	"time"

	"liaison/internal/apperr"
	"liaison/internal/models"
	"liaison/internal/ports"
	"liaison/internal/services/scoring"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Advance applies a resolution to an obligation.
//
//   - paid: records completion, feeds the score engine and synthesizes the
//     next obligation, or completes the plan after the last installment.
//   - overdue: marks the obligation overdue and records a miss.
//   - renego: closes the plan without finishing its schedule.
//
// at is the payment or event time; the zero value means now. Only the firm
// party and SystemActor may supply one, and it must fall between the
// obligation's creation and now.
func (s *Service) Advance(ctx context.Context, actor, obligationID string, resolution models.Resolution, at time.Time) (AdvanceResult, error) {
	if !resolution.Valid() {
		return AdvanceResult{}, apperr.Validation("resolution", fmt.Sprintf("unknown resolution %q", resolution))
	}
	var out AdvanceResult
	err := s.store.InTx(ctx, func(ctx context.Context, repo ports.Repository) error {
		res, err := s.advanceTx(ctx, repo, actor, obligationID, resolution, at)
		out = res
		return err
	})
	if err != nil {
		return AdvanceResult{}, err
	}
	s.afterAdvance(ctx, out, resolution, actor)
	return out, nil
}

// AdvanceBySequence resolves the obligation identified by plan and sequence.
func (s *Service) AdvanceBySequence(ctx context.Context, actor, planID string, seq int, resolution models.Resolution, at time.Time) (AdvanceResult, error) {
	ob, err := s.store.GetObligationBySequence(ctx, planID, seq)
	if err != nil {
		return AdvanceResult{}, ports.MapError("advance", "obligation", fmt.Sprintf("%s#%d", planID, seq), err)
	}
	return s.Advance(ctx, actor, ob.ID, resolution, at)
}

func (s *Service) advanceTx(ctx context.Context, repo ports.Repository, actor, obligationID string, resolution models.Resolution, at time.Time) (AdvanceResult, error) {
	ob, err := repo.GetObligation(ctx, obligationID)
	if err != nil {
		return AdvanceResult{}, ports.MapError("advance", "obligation", obligationID, err)
	}
	plan, rel, err := s.loadPlan(ctx, repo, "advance", ob.PlanID)
	if err != nil {
		return AdvanceResult{}, err
	}
	if err := authorize(rel, actor); err != nil {
		return AdvanceResult{}, err
	}
	if plan.Status != models.PlanActive {
		return AdvanceResult{}, apperr.Invariant("plan_state", fmt.Sprintf("plan %s is %s, expected active", plan.ID, plan.Status))
	}

	now := s.now()
	at, err = eventTime(actor, rel, ob, at, now)
	if err != nil {
		return AdvanceResult{}, err
	}
	res := AdvanceResult{Plan: plan, Relationship: rel, At: at}

	switch resolution {
	case models.ResolvePaid:
		if !ob.Status.Outstanding() {
			return AdvanceResult{}, apperr.Invariant("obligation_state", fmt.Sprintf("obligation %s is %s", ob.ID, ob.Status))
		}
		prev := ob.Status
		days := models.DaysBetween(ob.DueDate, at)

		// An overdue obligation was already penalised when it was marked.
		var outcome models.Outcome
		switch {
		case prev == models.ObligationOverdue:
		case days <= 0:
			outcome = models.OutcomeOnTime
		default:
			outcome = models.OutcomeMiss
		}
		if outcome != "" {
			if err := s.score(ctx, repo, &res, outcome, at); err != nil {
				return AdvanceResult{}, err
			}
		}

		completed := at
		streak := res.Relationship.OnTimeStreak
		consistency := scoring.Consistency(res.Relationship)
		tier := s.engine.ClassifyRisk(res.Relationship.Score)
		ob.Status = models.ObligationPaid
		ob.CompletedAt = &completed
		ob.DaysToPayment = &days
		ob.StreakAtPayment = &streak
		ob.ConsistencyScore = &consistency
		ob.RiskTier = &tier
		ob.UpdatedAt = now
		if err := repo.UpdateObligation(ctx, ob, prev); err != nil {
			return AdvanceResult{}, ports.MapError("advance_paid", "obligation", ob.ID, err)
		}

		if ob.Sequence < plan.NumPayments {
			next := models.Obligation{
				ID:        uuid.NewString(),
				PlanID:    plan.ID,
				Sequence:  ob.Sequence + 1,
				Amount:    plan.InstallmentAmount(ob.Sequence + 1),
				DueDate:   ob.DueDate.AddDate(0, 0, plan.IntervalDays),
				Status:    models.ObligationPending,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := repo.InsertObligation(ctx, next); err != nil {
				if errors.Is(err, ports.ErrConflict) {
					return AdvanceResult{}, apperr.InvariantWrap("obligation_sequence",
						fmt.Sprintf("obligation %d of plan %s already exists", next.Sequence, plan.ID), err)
				}
				return AdvanceResult{}, ports.MapError("advance_paid", "obligation", next.ID, err)
			}
			res.Next = &next
		} else {
			obs, err := repo.ListObligations(ctx, plan.ID)
			if err != nil {
				return AdvanceResult{}, ports.MapError("advance_paid", "plan", plan.ID, err)
			}
			if countOutstanding(obs) == 0 {
				if err := repo.TransitionPlan(ctx, plan.ID, models.PlanActive, models.PlanCompleted, actor, now); err != nil {
					return AdvanceResult{}, ports.MapError("advance_paid", "plan", plan.ID, err)
				}
				res.Plan.Status = models.PlanCompleted
				res.Plan.ModifiedBy = actor
				res.Plan.UpdatedAt = now
			}
		}

	case models.ResolveOverdue:
		if ob.Status != models.ObligationPending {
			return AdvanceResult{}, apperr.Invariant("obligation_state", fmt.Sprintf("obligation %s is %s, expected pending", ob.ID, ob.Status))
		}
		if err := s.score(ctx, repo, &res, models.OutcomeMiss, at); err != nil {
			return AdvanceResult{}, err
		}
		tier := s.engine.ClassifyRisk(res.Relationship.Score)
		ob.Status = models.ObligationOverdue
		ob.RiskTier = &tier
		ob.UpdatedAt = now
		if err := repo.UpdateObligation(ctx, ob, models.ObligationPending); err != nil {
			return AdvanceResult{}, ports.MapError("advance_overdue", "obligation", ob.ID, err)
		}

	case models.ResolveRenego:
		if !ob.Status.Outstanding() {
			return AdvanceResult{}, apperr.Invariant("obligation_state", fmt.Sprintf("obligation %s is %s", ob.ID, ob.Status))
		}
		prev := ob.Status
		ob.Status = models.ObligationRenego
		ob.UpdatedAt = now
		if err := repo.UpdateObligation(ctx, ob, prev); err != nil {
			return AdvanceResult{}, ports.MapError("advance_renego", "obligation", ob.ID, err)
		}
		if err := s.closeOutstanding(ctx, repo, plan.ID, ob.ID, now); err != nil {
			return AdvanceResult{}, err
		}
		if err := repo.TransitionPlan(ctx, plan.ID, models.PlanActive, models.PlanCompleted, actor, now); err != nil {
			return AdvanceResult{}, ports.MapError("advance_renego", "plan", plan.ID, err)
		}
		res.Plan.Status = models.PlanCompleted
		res.Plan.ModifiedBy = actor
		res.Plan.UpdatedAt = now
	}

	res.Obligation = ob
	return res, nil
}

// eventTime resolves the time a resolution takes effect. A client cannot
// backdate its own payments, and nobody may record a time outside the
// obligation's lifetime.
func eventTime(actor string, rel models.Relationship, ob models.Obligation, at, now time.Time) (time.Time, error) {
	if at.IsZero() {
		return now, nil
	}
	if actor != SystemActor && actor != rel.FirmPartyID {
		return time.Time{}, apperr.Unauthorized(actor, "only the firm party may record the payment time")
	}
	switch {
	case at.After(now):
		return time.Time{}, apperr.Validation("at", "must not be in the future")
	case !ob.CreatedAt.IsZero() && at.Before(ob.CreatedAt):
		return time.Time{}, apperr.Validation("at", "must not precede the obligation's creation")
	}
	return at, nil
}

func (s *Service) score(ctx context.Context, repo ports.Repository, res *AdvanceResult, outcome models.Outcome, at time.Time) error {
	rel, change := s.engine.Record(res.Relationship, outcome, at)
	rel.UpdatedAt = s.now()
	if err := repo.SaveReputation(ctx, rel); err != nil {
		return ports.MapError("save_reputation", "relationship", rel.ID, err)
	}
	res.Relationship = rel
	res.Change = &change
	return nil
}

func (s *Service) afterAdvance(ctx context.Context, res AdvanceResult, resolution models.Resolution, actor string) {
	fields := []zap.Field{
		zap.String("obligation_id", res.Obligation.ID),
		zap.String("plan_id", res.Plan.ID),
		zap.Int("sequence", res.Obligation.Sequence),
		zap.String("resolution", string(resolution)),
		zap.String("actor", actor),
	}
	if res.Next != nil {
		fields = append(fields, zap.String("next_obligation_id", res.Next.ID), zap.Time("next_due", res.Next.DueDate))
	}
	if res.Plan.Status == models.PlanCompleted {
		s.metrics.PlanTransition(string(models.PlanActive), string(models.PlanCompleted))
		fields = append(fields, zap.Bool("plan_completed", true))
	}

	if ch := res.Change; ch != nil {
		fields = append(fields, zap.Float64("score_before", ch.Before), zap.Float64("score_after", ch.After))
		s.metrics.ScoreChange(string(ch.Outcome), string(ch.Tier), ch.Delta())
		if s.audit != nil {
			ev := models.ScoreEvent{
				RelationshipID:    res.Relationship.ID,
				ObligationID:      res.Obligation.ID,
				PlanID:            res.Plan.ID,
				Outcome:           ch.Outcome,
				Before:            ch.Before,
				After:             ch.After,
				Delta:             ch.Delta(),
				ConsecutiveMisses: ch.ConsecutiveMisses,
				OnTimeStreak:      ch.OnTimeStreak,
				RiskTier:          ch.Tier,
				Actor:             actor,
				At:                res.At,
			}
			if err := s.audit.RecordScoreEvent(ctx, ev); err != nil {
				s.log.Warn("score audit write failed", zap.String("relationship_id", ev.RelationshipID), zap.Error(err))
			}
		}
	}
	s.log.Info("obligation advanced", fields...)
}

// SweepOverdue marks every pending obligation due before cutoff as overdue.
// Each obligation is resolved in its own transaction; failures are logged
// and reported together.
func (s *Service) SweepOverdue(ctx context.Context, cutoff time.Time, limit int) ([]AdvanceResult, error) {
	due, err := s.store.ListDueBefore(ctx, cutoff, []models.ObligationStatus{models.ObligationPending}, limit)
	if err != nil {
		return nil, ports.MapError("sweep_overdue", "obligation", "", err)
	}
	var (
		out  []AdvanceResult
		errs []error
	)
	for _, ob := range due {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := s.Advance(ctx, SystemActor, ob.ID, models.ResolveOverdue, s.now())
		if err != nil {
			s.log.Warn("overdue sweep skipped obligation", zap.String("obligation_id", ob.ID), zap.Error(err))
			errs = append(errs, fmt.Errorf("obligation %s: %w", ob.ID, err))
			continue
		}
		out = append(out, res)
	}
	s.log.Info("overdue sweep finished", zap.Time("cutoff", cutoff), zap.Int("marked", len(out)), zap.Int("failed", len(errs)))
	return out, errors.Join(errs...)
}
