package cache

import (
	"context"
	"time"

	"github.com/varun-un/AetherConnect/internal/metrics"
)

// datasetChanged checks if the body dataset has been replaced since the
// cache was last built.
func (c *PathCache) datasetChanged() bool {
	ds := c.store.Get()
	if ds == nil {
		return false
	}
	return !ds.LoadedAt.Equal(c.currentLoadedAt)
}

// performCutover rebuilds the warm set from the new body dataset.
//
// Strategy:
//  1. Set cutover flag (old entries continue serving reads)
//  2. Compute the new warm set
//  3. Atomic swap: replace old entries with new
//  4. Clear cutover flag
//
// Paths requested on demand after the swap are recomputed against the new
// dataset's elements.
func (c *PathCache) performCutover(ctx context.Context) {
	ds := c.store.Get()
	if ds == nil {
		return
	}

	c.logger.Info("dataset cutover starting",
		"old_dataset_loaded_at", c.currentLoadedAt.UTC().Format(time.RFC3339),
		"new_dataset_loaded_at", ds.LoadedAt.UTC().Format(time.RFC3339),
		"source", ds.Source,
	)

	c.inCutover.Store(true)
	metrics.SetCacheCutoverActive(true)
	defer func() {
		c.inCutover.Store(false)
		metrics.SetCacheCutoverActive(false)
	}()

	start := time.Now()
	results, err := c.prop.ComputeDataset(ctx, warmSet)
	if err != nil {
		c.logger.Warn("cutover cancelled", "error", err)
		return
	}

	// Atomic swap.
	c.replaceAll(results)
	c.currentLoadedAt = ds.LoadedAt
	metrics.SetBodyDatasetCount(len(ds.Bodies))

	c.logger.Info("dataset cutover complete",
		"duration_ms", time.Since(start).Milliseconds(),
		"entries_replaced", len(results),
	)
}
