package scoring

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"liaison/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyOutcome_OnTimePaymentAddsIncrement(t *testing.T) {
	e := New(DefaultPolicy())

	// paid early with a streak of one: 85 + 5
	assert.Equal(t, 90.0, e.ApplyOutcome(85, models.OutcomeOnTime, 0, 1))
}

func TestApplyOutcome_StepBonusEveryRecoveryPeriod(t *testing.T) {
	e := New(DefaultPolicy())

	assert.Equal(t, 55.0, e.ApplyOutcome(50, models.OutcomeOnTime, 0, 5))
	assert.Equal(t, 65.0, e.ApplyOutcome(50, models.OutcomeOnTime, 0, 6))
	assert.Equal(t, 75.0, e.ApplyOutcome(50, models.OutcomeOnTime, 0, 12))
	assert.Equal(t, 100.0, e.ApplyOutcome(98, models.OutcomeOnTime, 0, 6))
}

func TestApplyOutcome_RepeatedMissesEscalate(t *testing.T) {
	e := New(DefaultPolicy())

	first := e.ApplyOutcome(90, models.OutcomeMiss, 1, 0)
	assert.Equal(t, 80.0, first)
	second := e.ApplyOutcome(first, models.OutcomeMiss, 2, 0)
	assert.Equal(t, 65.0, second)
	third := e.ApplyOutcome(second, models.OutcomeMiss, 3, 0)
	assert.Equal(t, 42.5, third)
	assert.Equal(t, 0.0, e.ApplyOutcome(5, models.OutcomeMiss, 4, 0))
}

func TestClassifyRisk(t *testing.T) {
	e := New(DefaultPolicy())

	assert.Equal(t, models.RiskLow, e.ClassifyRisk(85))
	assert.Equal(t, models.RiskLow, e.ClassifyRisk(100))
	assert.Equal(t, models.RiskMedium, e.ClassifyRisk(84.9))
	assert.Equal(t, models.RiskMedium, e.ClassifyRisk(70))
	assert.Equal(t, models.RiskHigh, e.ClassifyRisk(69.99))

	custom := DefaultPolicy()
	custom.LowRiskMin, custom.MediumRiskMin = 90, 60
	assert.Equal(t, models.RiskMedium, New(custom).ClassifyRisk(85))
	assert.Equal(t, models.RiskMedium, New(custom).ClassifyRisk(60))
}

func TestRecord_TwoConsecutiveMisses(t *testing.T) {
	e := New(DefaultPolicy())
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	rel := models.Relationship{Score: 90}

	rel, ch := e.Record(rel, models.OutcomeMiss, now)
	assert.Equal(t, 80.0, ch.After)
	assert.Equal(t, 1, rel.ConsecutiveMisses)

	rel, ch = e.Record(rel, models.OutcomeMiss, now.AddDate(0, 1, 0))
	assert.Equal(t, 65.0, rel.Score)
	assert.Equal(t, 2, ch.ConsecutiveMisses)
	assert.Equal(t, -15.0, ch.Delta())
	assert.Equal(t, models.RiskHigh, ch.Tier)
	assert.Equal(t, 2, rel.ResolvedCount)
}

func TestRecord_MissOutsideWindowRestartsEscalation(t *testing.T) {
	e := New(DefaultPolicy())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rel := models.Relationship{Score: 90}

	rel, _ = e.Record(rel, models.OutcomeMiss, now)
	rel, ch := e.Record(rel, models.OutcomeMiss, now.AddDate(0, 0, 120))

	assert.Equal(t, 1, ch.ConsecutiveMisses)
	assert.Equal(t, 70.0, rel.Score)
}

func TestRecord_OnTimeResetsMissesAndBuildsStreak(t *testing.T) {
	e := New(DefaultPolicy())
	now := time.Now()
	rel := models.Relationship{Score: 60, ConsecutiveMisses: 2, LastMissAt: &now}

	rel, ch := e.Record(rel, models.OutcomeOnTime, now)
	assert.Equal(t, 0, rel.ConsecutiveMisses)
	assert.Equal(t, 1, rel.OnTimeStreak)
	assert.Equal(t, 65.0, ch.After)
	assert.Equal(t, 1, rel.OnTimeCount)
}

func TestConsistencyAndReliability(t *testing.T) {
	assert.Equal(t, 100, Consistency(models.Relationship{}))
	assert.Equal(t, 67, Consistency(models.Relationship{OnTimeCount: 2, ResolvedCount: 3}))

	assert.Equal(t, 100.0, Reliability(nil))
	assert.Equal(t, 75.0, Reliability([]models.Outcome{
		models.OutcomeOnTime, models.OutcomeOnTime, models.OutcomeMiss, models.OutcomeOnTime,
	}))
}

func TestLoadPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_penalty: 20\nmultiplier: 2\n"), 0o600))

	p, err := LoadPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, 20.0, p.BasePenalty)
	assert.Equal(t, 2.0, p.Multiplier)
	assert.Equal(t, 5.0, p.RecoveryIncrement)
	assert.Equal(t, 6, p.RecoveryPeriod)

	def, err := LoadPolicy("")
	require.NoError(t, err)
	assert.Equal(t, DefaultPolicy(), def)
}

func TestLoadPolicyRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("multiplier: 0.5\nrecovery_period: 0\n"), 0o600))

	_, err := LoadPolicy(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiplier")
	assert.Contains(t, err.Error(), "recovery_period")
}
