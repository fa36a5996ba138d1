package cache

import (
	"context"
	"time"

	"github.com/varun-un/AetherConnect/internal/bodies"
	"github.com/varun-un/AetherConnect/internal/metrics"
)

// Start begins the background cache maintenance loop. It performs an initial
// warmup of the bodies shown from the start of the lesson, then watches the
// body dataset and rebuilds the cache when it changes.
//
// Blocks until ctx is cancelled.
func (c *PathCache) Start(ctx context.Context) {
	// Wait for body data to be available before warmup.
	if !c.waitForDataset(ctx) {
		return
	}

	c.Warmup(ctx)

	interval := c.config.CheckInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("cache maintenance stopped")
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// waitForDataset blocks until a body dataset is available in the store,
// checking every second. Returns false if ctx is cancelled.
func (c *PathCache) waitForDataset(ctx context.Context) bool {
	if c.store.Get() != nil {
		return true
	}

	c.logger.Info("cache waiting for body dataset...")
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if c.store.Get() != nil {
				c.logger.Info("body dataset available, starting cache warmup")
				return true
			}
		}
	}
}

// warmSet selects the bodies computed ahead of demand.
func warmSet(b bodies.Body) bool {
	return !b.Deferred
}

// Warmup computes and caches the paths of every non-deferred body in the
// current dataset. Deferred bodies are computed on first request.
func (c *PathCache) Warmup(ctx context.Context) {
	ds := c.store.Get()
	if ds == nil {
		return
	}
	c.currentLoadedAt = ds.LoadedAt

	c.logger.Info("cache warmup starting", "source", ds.Source)

	start := time.Now()
	results, err := c.prop.ComputeDataset(ctx, warmSet)
	if err != nil {
		c.logger.Warn("cache warmup interrupted", "error", err)
	}

	generated := 0
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		c.put(r.Elements, r.Path)
		generated++
	}

	c.logger.Info("cache warmup complete",
		"generated", generated,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// tick runs one iteration of the maintenance loop.
func (c *PathCache) tick(ctx context.Context) {
	metrics.SetBodyDatasetAge(c.store.AgeSeconds())

	if c.datasetChanged() {
		c.performCutover(ctx)
	}
}
