// Package worker runs a blocking poll loop until its context ends.
package worker

import (
	"context"
	"log/slog"
)

type Config struct {
	Name      string
	Processor Processor
}

// Processor handles one unit of work per call. A processor that hits a
// terminal condition cancels the context it was given.
type Processor interface {
	ProcessBlock(ctx context.Context)
}

type Worker struct {
	name      string
	processor Processor
}

func New(cfg Config) *Worker {
	return &Worker{
		name:      cfg.Name,
		processor: cfg.Processor,
	}
}

func (w *Worker) Run(ctx context.Context) {
	slog.InfoContext(ctx, "Worker started...", "worker", w.name)
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Worker stopped...", "worker", w.name)
			return
		default:
			w.processor.ProcessBlock(ctx)
		}
	}
}
