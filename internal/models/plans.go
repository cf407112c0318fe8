package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PlanStatus string

const (
	PlanPending   PlanStatus = "pending"
	PlanActive    PlanStatus = "active"
	PlanRejected  PlanStatus = "rejected"
	PlanCompleted PlanStatus = "completed"
	PlanCancelled PlanStatus = "cancelled"
)

func (s PlanStatus) Terminal() bool {
	return s == PlanRejected || s == PlanCompleted || s == PlanCancelled
}

type PaymentPlan struct {
	ID             string          `json:"id"`
	RelationshipID string          `json:"relationship_id"`
	TotalDue       decimal.Decimal `json:"total_due"`
	NumPayments    int             `json:"num_payments"`
	IntervalDays   int             `json:"interval_days"`
	Status         PlanStatus      `json:"status"`
	ParentPlanID   *string         `json:"parent_plan_id,omitempty"`
	Reason         string          `json:"reason,omitempty"`
	ModifiedBy     string          `json:"modified_by"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	ActivatedAt    *time.Time      `json:"activated_at,omitempty"`
}

// PlanTerms is the negotiable part of a plan.
type PlanTerms struct {
	TotalDue     decimal.Decimal `json:"total_due"`
	NumPayments  int             `json:"num_payments"`
	IntervalDays int             `json:"interval_days"`
}

func (p PaymentPlan) Terms() PlanTerms {
	return PlanTerms{TotalDue: p.TotalDue, NumPayments: p.NumPayments, IntervalDays: p.IntervalDays}
}

// Cent is the smallest installment amount.
var Cent = decimal.New(1, -2)

// NominalInstallment is total_due / num_payments truncated to cents, so the
// remainder left for the last installment is never negative.
func (p PaymentPlan) NominalInstallment() decimal.Decimal {
	if p.NumPayments <= 0 {
		return decimal.Zero
	}
	return p.TotalDue.Div(decimal.NewFromInt(int64(p.NumPayments))).RoundDown(2)
}

// InstallmentAmount returns the amount due for the given sequence. The last
// installment absorbs the rounding remainder so the schedule sums to TotalDue.
func (p PaymentPlan) InstallmentAmount(seq int) decimal.Decimal {
	if p.NumPayments <= 1 {
		return p.TotalDue
	}
	nominal := p.NominalInstallment()
	if seq < p.NumPayments {
		return nominal
	}
	return p.TotalDue.Sub(nominal.Mul(decimal.NewFromInt(int64(p.NumPayments - 1))))
}
