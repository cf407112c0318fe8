package models

import "time"

type Outcome string

const (
	OutcomeOnTime Outcome = "on_time"
	OutcomeMiss   Outcome = "miss"
)

// ScoreEvent is one append-only entry of the reputation audit trail.
type ScoreEvent struct {
	RelationshipID    string    `bson:"relationship_id" json:"relationship_id"`
	ObligationID      string    `bson:"obligation_id" json:"obligation_id"`
	PlanID            string    `bson:"plan_id" json:"plan_id"`
	Outcome           Outcome   `bson:"outcome" json:"outcome"`
	Before            float64   `bson:"before" json:"before"`
	After             float64   `bson:"after" json:"after"`
	Delta             float64   `bson:"delta" json:"delta"`
	ConsecutiveMisses int       `bson:"consecutive_misses" json:"consecutive_misses"`
	OnTimeStreak      int       `bson:"on_time_streak" json:"on_time_streak"`
	RiskTier          RiskTier  `bson:"risk_tier" json:"risk_tier"`
	Actor             string    `bson:"actor" json:"actor"`
	At                time.Time `bson:"at" json:"at"`
}
