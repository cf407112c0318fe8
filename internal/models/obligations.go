package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ObligationStatus string

const (
	ObligationPending ObligationStatus = "pending"
	ObligationPaid    ObligationStatus = "paid"
	ObligationOverdue ObligationStatus = "overdue"
	ObligationRenego  ObligationStatus = "renego"
)

// Outstanding reports whether the obligation still blocks plan completion.
func (s ObligationStatus) Outstanding() bool {
	return s == ObligationPending || s == ObligationOverdue
}

type RiskTier string

const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

type Obligation struct {
	ID          string           `json:"id"`
	PlanID      string           `json:"plan_id"`
	Sequence    int              `json:"sequence"`
	Amount      decimal.Decimal  `json:"amount"`
	DueDate     time.Time        `json:"due_date"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Status      ObligationStatus `json:"status"`

	DaysToPayment    *int      `json:"days_to_payment,omitempty"`
	StreakAtPayment  *int      `json:"streak_at_payment,omitempty"`
	ConsistencyScore *int      `json:"consistency_score,omitempty"`
	RiskTier         *RiskTier `json:"risk_tier,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Resolution is the event applied to an obligation by PlanRules.Advance.
type Resolution string

const (
	ResolvePaid    Resolution = "paid"
	ResolveOverdue Resolution = "overdue"
	ResolveRenego  Resolution = "renego"
)

func (r Resolution) Valid() bool {
	return r == ResolvePaid || r == ResolveOverdue || r == ResolveRenego
}

// NextObligation is the first pending obligation by sequence. It is derived
// from the schedule, never stored on the plan.
func NextObligation(obs []Obligation) *Obligation {
	var next *Obligation
	for i := range obs {
		if obs[i].Status != ObligationPending {
			continue
		}
		if next == nil || obs[i].Sequence < next.Sequence {
			next = &obs[i]
		}
	}
	return next
}

// DaysBetween counts whole calendar days from a to b (UTC dates), negative
// when b is before a.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
