package negotiation

import (
	"context"

	"liaison/internal/apperr"
	"liaison/internal/models"
	"liaison/internal/ports"
	"liaison/internal/services/plans"
	"liaison/internal/services/scoring"
)

const (
	tightMaxPayments = 3
	tightMaxInterval = 14
	looseMaxPayments = 6
	looseMaxInterval = 30

	trustedReliability    = 80
	unreliableReliability = 50
)

// Suggestion is advisory only. It never changes plan or proposal state.
type Suggestion struct {
	Requested   models.PlanTerms `json:"requested"`
	Suggested   models.PlanTerms `json:"suggested"`
	Score       float64          `json:"score"`
	Reliability float64          `json:"reliability"`
	Tier        models.RiskTier  `json:"risk_tier"`
	Adjusted    bool             `json:"adjusted"`
}

// Suggest caps installment count and interval by risk tier and the
// on-time percentage of recent outcomes.
func Suggest(engine *scoring.Engine, score float64, recent []models.Outcome, requested models.PlanTerms) Suggestion {
	tier := engine.ClassifyRisk(score)
	reliability := scoring.Reliability(recent)
	out := requested

	switch {
	case tier == models.RiskLow && reliability >= trustedReliability:
	case tier == models.RiskHigh || reliability < unreliableReliability:
		out.NumPayments = min(out.NumPayments, tightMaxPayments)
		out.IntervalDays = min(out.IntervalDays, tightMaxInterval)
	default:
		out.NumPayments = min(out.NumPayments, looseMaxPayments)
		out.IntervalDays = min(out.IntervalDays, looseMaxInterval)
	}

	return Suggestion{
		Requested:   requested,
		Suggested:   out,
		Score:       score,
		Reliability: reliability,
		Tier:        tier,
		Adjusted:    out != requested,
	}
}

// SuggestFor evaluates requested terms against the relationship's current
// score and the resolved obligations of its active plan.
func (s *Service) SuggestFor(ctx context.Context, actor, relationshipID string, requested models.PlanTerms) (Suggestion, error) {
	if err := plans.ValidateTerms(requested); err != nil {
		return Suggestion{}, err
	}
	rel, err := s.store.GetRelationship(ctx, relationshipID)
	if err != nil {
		return Suggestion{}, ports.MapError("suggest", "relationship", relationshipID, err)
	}
	if !rel.IsParty(actor) {
		return Suggestion{}, apperr.Unauthorized(actor, "not a party to relationship "+rel.ID)
	}
	var recent []models.Outcome
	active, err := s.store.ActivePlan(ctx, rel.ID)
	if err != nil {
		return Suggestion{}, ports.MapError("suggest", "plan", rel.ID, err)
	}
	if active != nil {
		obs, err := s.store.ListObligations(ctx, active.ID)
		if err != nil {
			return Suggestion{}, ports.MapError("suggest", "plan", active.ID, err)
		}
		recent = Outcomes(obs)
	}
	return Suggest(s.plans.Engine(), rel.Score, recent, requested), nil
}

// Outcomes derives on-time/miss outcomes from resolved obligations.
func Outcomes(obs []models.Obligation) []models.Outcome {
	out := make([]models.Outcome, 0, len(obs))
	for _, o := range obs {
		switch o.Status {
		case models.ObligationPaid:
			if o.DaysToPayment != nil && *o.DaysToPayment <= 0 {
				out = append(out, models.OutcomeOnTime)
			} else {
				out = append(out, models.OutcomeMiss)
			}
		case models.ObligationOverdue:
			out = append(out, models.OutcomeMiss)
		}
	}
	return out
}
