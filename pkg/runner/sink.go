package runner

import (
	"context"

	"digital.vasic.netprobe/pkg/scenario"
)

// Sink persists the batch of one iteration. Implementations must be
// safe for concurrent use across scenarios.
type Sink interface {
	Name() string
	Write(ctx context.Context, batch *scenario.Batch) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc struct {
	SinkName string
	Fn       func(ctx context.Context, batch *scenario.Batch) error
}

// Name returns the sink name used in logs and metrics.
func (s SinkFunc) Name() string { return s.SinkName }

// Write calls Fn.
func (s SinkFunc) Write(
	ctx context.Context, batch *scenario.Batch,
) error {
	return s.Fn(ctx, batch)
}
