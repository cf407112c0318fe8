package processors

import (
	"context"

	"liaison/internal/ports"
)

type NoopProcessor struct{}

func (NoopProcessor) Type() string { return "noop" }

func (NoopProcessor) ProcessBatch(_ context.Context, _ int, batch []map[string]string) (ports.BatchResult, error) {
	return ports.BatchResult{Skipped: len(batch)}, nil
}

func DefaultRegistry() map[string]ports.Processor {
	return map[string]ports.Processor{
		"noop": NoopProcessor{},
	}
}

// Register adds p under its own type name.
func Register(reg map[string]ports.Processor, p ports.Processor) map[string]ports.Processor {
	reg[p.Type()] = p
	return reg
}
