package propagation

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/varun-un/AetherConnect/internal/bodies"
	"github.com/varun-un/AetherConnect/internal/metrics"
	"github.com/varun-un/AetherConnect/internal/orbit"
)

// WorkerPool bounds how many paths are sampled at once.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// ComputeBatch computes a path for every body, at most workers at a time.
// Results are in dataset order and include failures; the counts are of
// successes and errors. Bodies not started before ctx is cancelled are
// omitted.
func (wp *WorkerPool) ComputeBatch(ctx context.Context, defs []bodies.Body) ([]Result, int, int) {
	if len(defs) == 0 {
		return nil, 0, 0
	}

	results := make([]Result, len(defs))
	started := make([]bool, len(defs))

	// Per-body failures are results, not group errors, so one bad body
	// does not cancel the rest.
	var g errgroup.Group
	g.SetLimit(wp.workers)
	for i, def := range defs {
		if ctx.Err() != nil {
			break
		}
		started[i] = true
		g.Go(func() error {
			results[i] = computeSingle(ctx, def)
			return nil
		})
	}
	g.Wait()

	out := results[:0]
	var successCount, errorCount int
	for i, result := range results {
		if !started[i] {
			continue
		}
		if result.Err != nil {
			errorCount++
			wp.logger.Warn("path computation failed",
				"body", result.Name,
				"elements", result.Elements.String(),
				"error", result.Err,
			)
		} else {
			successCount++
		}
		out = append(out, result)
	}
	return out, successCount, errorCount
}

// computeSingle samples one body's orbit.
func computeSingle(ctx context.Context, def bodies.Body) Result {
	path, stats, err := orbit.ComputePath(ctx, def.Elements)
	metrics.RecordPathComputation(stats.Duration, stats.Samples, err)
	return Result{
		Name:     def.Name,
		Elements: def.Elements,
		Path:     path,
		Stats:    stats,
		Err:      err,
	}
}
