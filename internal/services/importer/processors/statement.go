package processors

import (
	"context"
	"errors"
	"strings"
	"time"

	"liaison/internal/apperr"
	"liaison/internal/models"
	"liaison/internal/observability/metrics"
	"liaison/internal/ports"
	importitems "liaison/internal/repository/imports"
	"liaison/internal/services/plans"

	"go.uber.org/zap"
)

const StatementType = "payment_statement"

// Advancer is the part of plans.Service a statement import drives.
type Advancer interface {
	Advance(ctx context.Context, actor, obligationID string, resolution models.Resolution, at time.Time) (plans.AdvanceResult, error)
	AdvanceBySequence(ctx context.Context, actor, planID string, seq int, resolution models.Resolution, at time.Time) (plans.AdvanceResult, error)
}

// RowJournal stores the outcome of each statement row.
type RowJournal interface {
	Record(ctx context.Context, item importitems.Item, payload map[string]string)
}

// StatementProcessor applies bank or ledger statement rows to obligations.
// Columns: obligation_id, or plan_id with sequence; paid_at; and an
// optional resolution that defaults to paid.
type StatementProcessor struct {
	Plans   Advancer
	Journal RowJournal
	Metrics *metrics.DomainMetrics
	Log     *zap.Logger
}

func (p *StatementProcessor) Type() string { return StatementType }

func (p *StatementProcessor) ProcessBatch(ctx context.Context, firstRow int, batch []map[string]string) (ports.BatchResult, error) {
	var out ports.BatchResult
	if p.Plans == nil {
		return out, errors.New("statement processor: plans service not configured")
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	recordID := ports.ImportRecordID(ctx)

	for i, m := range batch {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		row := firstRow + i
		item := importitems.Item{
			ImportRecordID: recordID,
			Row:            row,
			ObligationID:   strings.TrimSpace(m["obligation_id"]),
			PlanID:         strings.TrimSpace(m["plan_id"]),
			Resolution:     strings.ToLower(firstNonEmpty(m["resolution"], string(models.ResolvePaid))),
		}

		res, err := p.apply(ctx, item, m)
		switch {
		case err == nil:
			item.Status = importitems.ItemApplied
			item.ObligationID = res.Obligation.ID
			item.PlanID = res.Obligation.PlanID
			out.Applied++
			p.Metrics.ImportRow("applied")
		case errors.Is(err, apperr.ErrInvariant):
			// already resolved, typically a re-imported statement
			item.Status = importitems.ItemFailed
			item.Errors = err.Error()
			out.Skipped++
			p.Metrics.ImportRow("skipped")
		default:
			item.Status = importitems.ItemFailed
			item.Errors = err.Error()
			out.Failed++
			p.Metrics.ImportRow("failed")
			log.Warn("statement row failed",
				zap.String("import_record_id", recordID),
				zap.Int("row", row),
				zap.Error(err),
			)
		}
		if p.Journal != nil {
			p.Journal.Record(ctx, item, m)
		}
	}
	return out, nil
}

func (p *StatementProcessor) apply(ctx context.Context, item importitems.Item, m map[string]string) (plans.AdvanceResult, error) {
	resolution := models.Resolution(item.Resolution)
	if !resolution.Valid() {
		return plans.AdvanceResult{}, apperr.Validation("resolution", "unknown resolution "+item.Resolution)
	}

	var at time.Time
	if raw := strings.TrimSpace(m["paid_at"]); raw != "" {
		t := parseTimeLoose(raw)
		if t == nil {
			return plans.AdvanceResult{}, apperr.Validation("paid_at", "unparseable date "+raw)
		}
		at = *t
	} else if resolution == models.ResolvePaid {
		return plans.AdvanceResult{}, apperr.Validation("paid_at", "required for paid rows")
	}

	if item.ObligationID != "" {
		return p.Plans.Advance(ctx, plans.SystemActor, item.ObligationID, resolution, at)
	}
	if item.PlanID == "" {
		return plans.AdvanceResult{}, apperr.Validation("obligation_id", "obligation_id or plan_id with sequence is required")
	}
	seq, ok := parseSequence(m["sequence"])
	if !ok {
		return plans.AdvanceResult{}, apperr.Validation("sequence", "positive integer required with plan_id")
	}
	return p.Plans.AdvanceBySequence(ctx, plans.SystemActor, item.PlanID, seq, resolution, at)
}
