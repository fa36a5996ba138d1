// Package cache provides a bounded in-memory cache of orbit paths keyed by
// orbital elements.
//
// Paths are immutable once computed, so every session animating the same
// orbit shares one slice. Concurrent misses for the same elements collapse
// into a single computation. The warm set (bodies present from the start
// of the lesson) is computed up front and rebuilt when the body dataset
// changes, without interrupting reads.
package cache

import (
	"container/list"
	"context"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sync/singleflight"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/varun-un/AetherConnect/internal/bodies"
	"github.com/varun-un/AetherConnect/internal/metrics"
	"github.com/varun-un/AetherConnect/internal/orbit"
	"github.com/varun-un/AetherConnect/internal/propagation"
)

// Config holds cache configuration.
type Config struct {
	MaxEntries    int           `mapstructure:"max_entries"`    // Paths kept before evicting (default: 64)
	MaxBytes      int64         `mapstructure:"max_bytes"`      // Estimated memory bound (default: 1 GiB)
	CheckInterval time.Duration `mapstructure:"check_interval"` // Dataset change poll (default: 5s)
}

// CacheEntry wraps a path with generation metadata.
type CacheEntry struct {
	Elements    orbit.Elements
	Path        orbit.Path
	SizeBytes   int64
	GeneratedAt time.Time
}

// PathCache is a least-recently-used cache of orbit paths.
// Safe for concurrent use by multiple goroutines.
type PathCache struct {
	mu      sync.Mutex
	entries map[orbit.Elements]*list.Element
	order   *list.List // front is most recently used
	size    int64

	config Config
	prop   *propagation.Propagator
	store  *bodies.Store
	logger *slog.Logger
	group  singleflight.Group

	// Track current body dataset for change detection.
	currentLoadedAt time.Time

	// Counters (lock-free).
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	// Cutover state.
	inCutover atomic.Bool
}

// NewPathCache creates a new path cache.
func NewPathCache(config Config, prop *propagation.Propagator, store *bodies.Store, logger *slog.Logger) *PathCache {
	logger.Info("cache initialized",
		"max_entries", config.MaxEntries,
		"max_bytes", config.MaxBytes,
		"check_interval_seconds", config.CheckInterval.Seconds(),
	)

	return &PathCache{
		entries: make(map[orbit.Elements]*list.Element),
		order:   list.New(),
		config:  config,
		prop:    prop,
		store:   store,
		logger:  logger,
	}
}

// Peek returns the cached path for el without computing on a miss.
func (c *PathCache) Peek(el orbit.Elements) (orbit.Path, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[el]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(e)
	return e.Value.(*CacheEntry).Path, true
}

// Get returns the path for el, computing and caching it on a miss.
// Concurrent misses for the same elements share one computation.
func (c *PathCache) Get(ctx context.Context, el orbit.Elements) (orbit.Path, error) {
	if err := el.Validate(); err != nil {
		return nil, err
	}

	if path, ok := c.Peek(el); ok {
		c.hits.Add(1)
		metrics.IncCacheHits()
		return path, nil
	}

	c.misses.Add(1)
	metrics.IncCacheMisses()

	v, err, _ := c.group.Do(elementsKey(el), func() (any, error) {
		// Another caller may have filled the entry while we waited.
		if path, ok := c.Peek(el); ok {
			return path, nil
		}
		path, _, err := c.prop.Compute(ctx, el)
		if err != nil {
			return nil, err
		}
		c.put(el, path)
		return path, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(orbit.Path), nil
}

// elementsKey renders el exactly, for single-flight deduplication.
func elementsKey(el orbit.Elements) string {
	b := make([]byte, 0, 64)
	b = strconv.AppendFloat(b, el.Eccentricity, 'g', -1, 64)
	b = append(b, '/')
	b = strconv.AppendFloat(b, el.PeriodDays, 'g', -1, 64)
	b = append(b, '/')
	b = strconv.AppendFloat(b, el.SemiMajorAxis, 'g', -1, 64)
	return string(b)
}

// put stores a path in the cache and evicts down to the configured bounds.
// Caller must not hold mu.
func (c *PathCache) put(el orbit.Elements, path orbit.Path) {
	entry := &CacheEntry{
		Elements:    el,
		Path:        path,
		SizeBytes:   estimateSizeBytes(path),
		GeneratedAt: time.Now(),
	}

	if c.config.MaxBytes > 0 && entry.SizeBytes > c.config.MaxBytes {
		c.logger.Debug("path larger than cache, not stored",
			"elements", el.String(),
			"size_bytes", entry.SizeBytes,
		)
		return
	}

	c.mu.Lock()
	if old, ok := c.entries[el]; ok {
		c.size -= old.Value.(*CacheEntry).SizeBytes
		c.order.Remove(old)
	}
	c.entries[el] = c.order.PushFront(entry)
	c.size += entry.SizeBytes
	removed := c.evictLocked()
	c.mu.Unlock()

	c.recordEvictions(removed)
	c.updateMetrics()
}

// evictLocked removes least recently used entries until the cache is
// within bounds. Caller must hold mu.
func (c *PathCache) evictLocked() int {
	var removed int
	for c.order.Len() > 0 && c.overLimitLocked() {
		back := c.order.Back()
		entry := back.Value.(*CacheEntry)
		c.order.Remove(back)
		delete(c.entries, entry.Elements)
		c.size -= entry.SizeBytes
		removed++
	}
	return removed
}

func (c *PathCache) overLimitLocked() bool {
	if c.config.MaxEntries > 0 && c.order.Len() > c.config.MaxEntries {
		return true
	}
	return c.config.MaxBytes > 0 && c.size > c.config.MaxBytes
}

func (c *PathCache) recordEvictions(removed int) {
	if removed == 0 {
		return
	}
	c.evictions.Add(int64(removed))
	metrics.AddCacheEvictions(removed)
	c.logger.Debug("cache eviction", "entries_removed", removed)
}

// replaceAll atomically replaces all cache entries (used during dataset cutover).
func (c *PathCache) replaceAll(results []propagation.Result) {
	entries := make(map[orbit.Elements]*list.Element, len(results))
	order := list.New()
	var size int64
	now := time.Now()
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		if _, dup := entries[r.Elements]; dup {
			continue
		}
		entry := &CacheEntry{
			Elements:    r.Elements,
			Path:        r.Path,
			SizeBytes:   estimateSizeBytes(r.Path),
			GeneratedAt: now,
		}
		entries[r.Elements] = order.PushBack(entry)
		size += entry.SizeBytes
	}

	c.mu.Lock()
	c.entries = entries
	c.order = order
	c.size = size
	removed := c.evictLocked()
	c.mu.Unlock()

	c.recordEvictions(removed)
	c.updateMetrics()
}

// Stats returns current cache statistics.
func (c *PathCache) Stats() CacheStats {
	c.mu.Lock()
	count := len(c.entries)
	size := c.size
	var oldest, newest time.Time
	for e := c.order.Front(); e != nil; e = e.Next() {
		ts := e.Value.(*CacheEntry).GeneratedAt
		if oldest.IsZero() || ts.Before(oldest) {
			oldest = ts
		}
		if newest.IsZero() || ts.After(newest) {
			newest = ts
		}
	}
	c.mu.Unlock()

	return CacheStats{
		Entries:         count,
		SizeBytes:       size,
		OldestGenerated: oldest,
		NewestGenerated: newest,
		Hits:            c.hits.Load(),
		Misses:          c.misses.Load(),
		Evictions:       c.evictions.Load(),
		InCutover:       c.inCutover.Load(),
	}
}

// CacheStats holds cache statistics for the stats endpoint.
type CacheStats struct {
	Entries         int
	SizeBytes       int64
	OldestGenerated time.Time
	NewestGenerated time.Time
	Hits            int64
	Misses          int64
	Evictions       int64
	InCutover       bool
}

// estimateSizeBytes returns a rough estimate of the memory held by a path.
func estimateSizeBytes(path orbit.Path) int64 {
	// Per sample: X, Y, Z float64 = 24 bytes.
	points := int64(len(path)) * int64(unsafe.Sizeof(r3.Vec{}))
	// CacheEntry overhead: elements(24) + slice header(24) + size(8) + GeneratedAt(24),
	// plus the list element and map slot.
	overhead := int64(80 + 48 + 16)
	return points + overhead
}

// updateMetrics publishes current cache size to Prometheus.
func (c *PathCache) updateMetrics() {
	c.mu.Lock()
	count := len(c.entries)
	size := c.size
	c.mu.Unlock()

	metrics.SetCacheEntries(count)
	metrics.SetCacheSizeBytes(size)
}
