package database

import (
	"context"
	"errors"
	"time"

	"liaison/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const planColumns = `
	id::text, relationship_id::text, total_due::text, num_payments, interval_days,
	status, parent_plan_id::text, reason, modified_by,
	created_at, updated_at, activated_at`

func scanPlan(row interface{ Scan(...any) error }) (models.PaymentPlan, error) {
	var (
		p     models.PaymentPlan
		total string
	)
	err := row.Scan(
		&p.ID, &p.RelationshipID, &total, &p.NumPayments, &p.IntervalDays,
		&p.Status, &p.ParentPlanID, &p.Reason, &p.ModifiedBy,
		&p.CreatedAt, &p.UpdatedAt, &p.ActivatedAt,
	)
	if err != nil {
		return models.PaymentPlan{}, err
	}
	p.TotalDue, err = decimal.NewFromString(total)
	return p, err
}

const insertPlanQuery = `
	INSERT INTO payment_plans (
		id, relationship_id, total_due, num_payments, interval_days,
		status, parent_plan_id, reason, modified_by,
		created_at, updated_at, activated_at
	)
	VALUES (
		$1::uuid, $2::uuid, $3::numeric, $4, $5,
		$6, $7::uuid, $8, $9,
		$10, $11, $12
	);
`

func (r *repo) InsertPlan(ctx context.Context, p models.PaymentPlan) error {
	_, err := r.q.Exec(ctx, insertPlanQuery,
		p.ID, p.RelationshipID, p.TotalDue.String(), p.NumPayments, p.IntervalDays,
		p.Status, p.ParentPlanID, p.Reason, p.ModifiedBy,
		p.CreatedAt, p.UpdatedAt, p.ActivatedAt,
	)
	return mapErr(err)
}

func (r *repo) GetPlan(ctx context.Context, id string) (models.PaymentPlan, error) {
	p, err := scanPlan(r.q.QueryRow(ctx,
		`SELECT `+planColumns+` FROM payment_plans WHERE id = $1::uuid`, id))
	return p, mapErr(err)
}

// ActivePlan locks the active plan row when called inside a transaction.
func (r *repo) ActivePlan(ctx context.Context, relationshipID string) (*models.PaymentPlan, error) {
	p, err := scanPlan(r.q.QueryRow(ctx,
		`SELECT `+planColumns+` FROM payment_plans
		WHERE relationship_id = $1::uuid AND status = 'active'
		FOR UPDATE`, relationshipID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (r *repo) TransitionPlan(ctx context.Context, id string, from, to models.PlanStatus, modifiedBy string, at time.Time) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE payment_plans SET
			status = $3,
			modified_by = $4,
			updated_at = $5,
			activated_at = CASE WHEN $3 = 'active' THEN $5 ELSE activated_at END
		WHERE id = $1::uuid AND status = $2`,
		id, from, to, modifiedBy, at,
	)
	if err != nil {
		return mapErr(err)
	}
	return r.conditional(ctx, tag, "payment_plans", id)
}
