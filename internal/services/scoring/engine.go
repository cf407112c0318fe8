package scoring

import (
	"math"
	"time"

	"liaison/internal/models"
)

const (
	MinScore = 0
	MaxScore = 100
)

type Engine struct {
	Policy Policy
}

func New(p Policy) *Engine {
	return &Engine{Policy: p}
}

// Penalty is base × multiplier^(misses-1).
func (e *Engine) Penalty(consecutiveMisses int) float64 {
	if consecutiveMisses < 1 {
		consecutiveMisses = 1
	}
	return e.Policy.BasePenalty * math.Pow(e.Policy.Multiplier, float64(consecutiveMisses-1))
}

// Bonus is a flat increment plus a step bonus for every full recovery period
// of consecutive on-time payments.
func (e *Engine) Bonus(onTimeStreak int) float64 {
	period := e.Policy.RecoveryPeriod
	if period < 1 {
		period = 1
	}
	steps := 0
	if onTimeStreak > 0 {
		steps = onTimeStreak / period
	}
	return e.Policy.RecoveryIncrement + e.Policy.RecoveryBonus*float64(steps)
}

// ApplyOutcome returns the new score, always within [0,100].
func (e *Engine) ApplyOutcome(current float64, outcome models.Outcome, consecutiveMisses, onTimeStreak int) float64 {
	current = clamp(current)
	switch outcome {
	case models.OutcomeMiss:
		return clamp(current - e.Penalty(consecutiveMisses))
	case models.OutcomeOnTime:
		return clamp(current + e.Bonus(onTimeStreak))
	}
	return current
}

func (e *Engine) ClassifyRisk(score float64) models.RiskTier {
	switch {
	case score >= e.Policy.LowRiskMin:
		return models.RiskLow
	case score >= e.Policy.MediumRiskMin:
		return models.RiskMedium
	}
	return models.RiskHigh
}

// Change describes one application of an outcome to a relationship.
type Change struct {
	Outcome           models.Outcome
	Before            float64
	After             float64
	ConsecutiveMisses int
	OnTimeStreak      int
	Tier              models.RiskTier
}

func (c Change) Delta() float64 { return c.After - c.Before }

// Record applies outcome to the relationship's persisted reputation state
// and returns the updated relationship together with the change.
func (e *Engine) Record(rel models.Relationship, outcome models.Outcome, at time.Time) (models.Relationship, Change) {
	before := clamp(rel.Score)
	switch outcome {
	case models.OutcomeMiss:
		misses := 1
		if rel.LastMissAt != nil && rel.ConsecutiveMisses > 0 && withinDays(*rel.LastMissAt, at, e.Policy.MissWindowDays) {
			misses = rel.ConsecutiveMisses + 1
		}
		rel.ConsecutiveMisses = misses
		rel.OnTimeStreak = 0
		t := at
		rel.LastMissAt = &t
	case models.OutcomeOnTime:
		rel.OnTimeStreak++
		rel.ConsecutiveMisses = 0
		rel.OnTimeCount++
	}
	rel.ResolvedCount++
	rel.Score = e.ApplyOutcome(before, outcome, rel.ConsecutiveMisses, rel.OnTimeStreak)

	return rel, Change{
		Outcome:           outcome,
		Before:            before,
		After:             rel.Score,
		ConsecutiveMisses: rel.ConsecutiveMisses,
		OnTimeStreak:      rel.OnTimeStreak,
		Tier:              e.ClassifyRisk(rel.Score),
	}
}

// Consistency is the share of on-time resolutions, 0–100. A relationship
// with no history is fully consistent.
func Consistency(rel models.Relationship) int {
	if rel.ResolvedCount <= 0 {
		return 100
	}
	return int(math.Round(100 * float64(rel.OnTimeCount) / float64(rel.ResolvedCount)))
}

// Reliability is the percentage of on-time outcomes. No history counts as
// fully reliable.
func Reliability(outcomes []models.Outcome) float64 {
	if len(outcomes) == 0 {
		return 100
	}
	onTime := 0
	for _, o := range outcomes {
		if o == models.OutcomeOnTime {
			onTime++
		}
	}
	return 100 * float64(onTime) / float64(len(outcomes))
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return MinScore
	}
	return math.Max(MinScore, math.Min(MaxScore, v))
}

func withinDays(from, to time.Time, days int) bool {
	if days <= 0 {
		return true
	}
	return to.Sub(from) <= time.Duration(days)*24*time.Hour
}
