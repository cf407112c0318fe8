package scoring

import (
	"testing"
	"time"

	"liaison/internal/models"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestScoreStaysBounded verifies any outcome sequence keeps the score in [0,100].
func TestScoreStaysBounded(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	e := New(DefaultPolicy())

	properties.Property("score within bounds after any outcome sequence", prop.ForAll(
		func(start float64, misses []bool) bool {
			rel := models.Relationship{Score: start}
			at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			for _, miss := range misses {
				outcome := models.OutcomeOnTime
				if miss {
					outcome = models.OutcomeMiss
				}
				rel, _ = e.Record(rel, outcome, at)
				if rel.Score < MinScore || rel.Score > MaxScore {
					return false
				}
				at = at.AddDate(0, 0, 30)
			}
			return true
		},
		gen.Float64Range(-50, 150),
		gen.SliceOf(gen.Bool()),
	))

	properties.Property("ApplyOutcome is bounded for arbitrary inputs", prop.ForAll(
		func(current float64, misses, streak int, miss bool) bool {
			outcome := models.OutcomeOnTime
			if miss {
				outcome = models.OutcomeMiss
			}
			s := e.ApplyOutcome(current, outcome, misses, streak)
			return s >= MinScore && s <= MaxScore
		},
		gen.Float64Range(-1000, 1000),
		gen.IntRange(0, 40),
		gen.IntRange(0, 500),
		gen.Bool(),
	))

	properties.Property("ClassifyRisk is deterministic", prop.ForAll(
		func(score float64) bool {
			return e.ClassifyRisk(score) == e.ClassifyRisk(score)
		},
		gen.Float64Range(0, 100),
	))

	properties.TestingRun(t)
}
