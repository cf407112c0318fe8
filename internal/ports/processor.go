package ports

import "context"

type ctxKey string

const CtxImportRecordID ctxKey = "import_record_id"

// BatchResult counts the per-row outcomes of one processed batch.
type BatchResult struct {
	Applied int
	Skipped int
	Failed  int
}

func (r *BatchResult) Add(o BatchResult) {
	r.Applied += o.Applied
	r.Skipped += o.Skipped
	r.Failed += o.Failed
}

// Processor handles rows of one import type. firstRow is the 1-based
// source row number of batch[0]. A returned error aborts the import; row
// level problems are reported through BatchResult.
type Processor interface {
	Type() string
	ProcessBatch(ctx context.Context, firstRow int, batch []map[string]string) (BatchResult, error)
}

func ImportRecordID(ctx context.Context) string {
	if v, ok := ctx.Value(CtxImportRecordID).(string); ok {
		return v
	}
	return ""
}
