// Package propagation computes orbit paths for the body dataset, fanning
// the work out over a bounded worker pool.
package propagation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/varun-un/AetherConnect/internal/bodies"
	"github.com/varun-un/AetherConnect/internal/metrics"
	"github.com/varun-un/AetherConnect/internal/orbit"
)

// ErrNoDataset is returned when the body store is empty.
var ErrNoDataset = errors.New("no body dataset loaded")

// Propagator orchestrates path computation for body datasets.
type Propagator struct {
	store  *bodies.Store
	pool   *WorkerPool
	config PropConfig
	logger *slog.Logger
}

// NewPropagator creates a new path computation orchestrator.
func NewPropagator(store *bodies.Store, config PropConfig, logger *slog.Logger) *Propagator {
	pool := NewWorkerPool(config.Workers, logger)
	metrics.SetPathWorkers(pool.workers)
	return &Propagator{
		store:  store,
		pool:   pool,
		config: config,
		logger: logger,
	}
}

// Compute samples a single orbit on the calling goroutine.
func (p *Propagator) Compute(ctx context.Context, el orbit.Elements) (orbit.Path, orbit.Stats, error) {
	path, stats, err := orbit.ComputePath(ctx, el)
	metrics.RecordPathComputation(stats.Duration, stats.Samples, err)
	if err == nil {
		p.logger.Debug("path computed",
			"elements", el.String(),
			"samples", stats.Samples,
			"max_iterations", stats.MaxIterations,
			"duration_ms", stats.Duration.Milliseconds(),
		)
	}
	return path, stats, err
}

// ComputeDataset computes paths for the bodies of the current dataset that
// keep selects (all bodies when keep is nil).
func (p *Propagator) ComputeDataset(ctx context.Context, keep func(bodies.Body) bool) ([]Result, error) {
	ds := p.store.Get()
	if ds == nil {
		return nil, ErrNoDataset
	}

	defs := ds.Bodies
	if keep != nil {
		defs = ds.Filter(keep)
	}

	p.logger.Debug("computing dataset paths",
		"body_count", len(defs),
		"workers", p.pool.workers,
	)

	start := time.Now()
	results, successCount, errorCount := p.pool.ComputeBatch(ctx, defs)
	duration := time.Since(start)

	p.logger.Info("dataset paths computed",
		"success", successCount,
		"errors", errorCount,
		"duration_ms", duration.Milliseconds(),
	)

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}
