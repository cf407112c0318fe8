package database

import (
	"context"
	"time"

	"liaison/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const obligationColumns = `
	id::text, plan_id::text, sequence, amount::text, due_date, completed_at, status,
	days_to_payment, streak_at_payment, consistency_score, risk_tier,
	created_at, updated_at`

func scanObligation(row interface{ Scan(...any) error }) (models.Obligation, error) {
	var (
		o      models.Obligation
		amount string
	)
	err := row.Scan(
		&o.ID, &o.PlanID, &o.Sequence, &amount, &o.DueDate, &o.CompletedAt, &o.Status,
		&o.DaysToPayment, &o.StreakAtPayment, &o.ConsistencyScore, &o.RiskTier,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return models.Obligation{}, err
	}
	o.Amount, err = decimal.NewFromString(amount)
	return o, err
}

func collectObligations(rows pgx.Rows) ([]models.Obligation, error) {
	defer rows.Close()
	out := make([]models.Obligation, 0)
	for rows.Next() {
		o, err := scanObligation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

const insertObligationQuery = `
	INSERT INTO obligations (
		id, plan_id, sequence, amount, due_date, completed_at, status,
		days_to_payment, streak_at_payment, consistency_score, risk_tier,
		created_at, updated_at
	)
	VALUES (
		$1::uuid, $2::uuid, $3, $4::numeric, $5, $6, $7,
		$8, $9, $10, $11,
		$12, $13
	);
`

func (r *repo) InsertObligation(ctx context.Context, o models.Obligation) error {
	_, err := r.q.Exec(ctx, insertObligationQuery,
		o.ID, o.PlanID, o.Sequence, o.Amount.String(), o.DueDate, o.CompletedAt, o.Status,
		o.DaysToPayment, o.StreakAtPayment, o.ConsistencyScore, o.RiskTier,
		o.CreatedAt, o.UpdatedAt,
	)
	return mapErr(err)
}

func (r *repo) GetObligation(ctx context.Context, id string) (models.Obligation, error) {
	o, err := scanObligation(r.q.QueryRow(ctx,
		`SELECT `+obligationColumns+` FROM obligations WHERE id = $1::uuid`, id))
	return o, mapErr(err)
}

func (r *repo) GetObligationBySequence(ctx context.Context, planID string, seq int) (models.Obligation, error) {
	o, err := scanObligation(r.q.QueryRow(ctx,
		`SELECT `+obligationColumns+` FROM obligations WHERE plan_id = $1::uuid AND sequence = $2`, planID, seq))
	return o, mapErr(err)
}

func (r *repo) ListObligations(ctx context.Context, planID string) ([]models.Obligation, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+obligationColumns+` FROM obligations WHERE plan_id = $1::uuid ORDER BY sequence`, planID)
	if err != nil {
		return nil, mapErr(err)
	}
	out, err := collectObligations(rows)
	return out, mapErr(err)
}

func (r *repo) UpdateObligation(ctx context.Context, o models.Obligation, from models.ObligationStatus) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE obligations SET
			status = $3, completed_at = $4,
			days_to_payment = $5, streak_at_payment = $6, consistency_score = $7, risk_tier = $8,
			updated_at = $9
		WHERE id = $1::uuid AND status = $2`,
		o.ID, from, o.Status, o.CompletedAt,
		o.DaysToPayment, o.StreakAtPayment, o.ConsistencyScore, o.RiskTier,
		o.UpdatedAt,
	)
	if err != nil {
		return mapErr(err)
	}
	return r.conditional(ctx, tag, "obligations", o.ID)
}

func (r *repo) ListDueBefore(ctx context.Context, cutoff time.Time, statuses []models.ObligationStatus, limit int) ([]models.Obligation, error) {
	if limit <= 0 {
		limit = 1000
	}
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	rows, err := r.q.Query(ctx, `
		SELECT `+prefixed("o", obligationColumns)+`
		FROM obligations o
		JOIN payment_plans p ON p.id = o.plan_id
		WHERE o.status = ANY($1) AND o.due_date < $2 AND p.status = 'active'
		ORDER BY o.due_date
		LIMIT $3`, names, cutoff, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	out, err := collectObligations(rows)
	return out, mapErr(err)
}
