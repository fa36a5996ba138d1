package propagation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/varun-un/AetherConnect/internal/bodies"
	"github.com/varun-un/AetherConnect/internal/orbit"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// innerBodies keeps test paths small: the outer planets' periods run to
// millions of samples.
func innerBodies(b bodies.Body) bool {
	return b.Elements.PeriodDays < 1000
}

func testStore(t *testing.T) *bodies.Store {
	t.Helper()
	store := bodies.NewStore()
	if err := store.Set(bodies.SolarSystem()); err != nil {
		t.Fatal(err)
	}
	return store
}

// TestWorkerPoolBatch verifies the worker pool processes multiple bodies correctly.
func TestWorkerPoolBatch(t *testing.T) {
	pool := NewWorkerPool(4, testLogger())
	defs := bodies.SolarSystem().Filter(innerBodies)

	results, successCount, errorCount := pool.ComputeBatch(context.Background(), defs)
	if errorCount != 0 {
		t.Fatalf("errors: %d", errorCount)
	}
	if successCount != len(defs) || len(results) != len(defs) {
		t.Fatalf("got %d results (%d ok), want %d", len(results), successCount, len(defs))
	}

	for i, r := range results {
		if r.Name != defs[i].Name {
			t.Errorf("result %d is %s, want dataset order (%s)", i, r.Name, defs[i].Name)
		}
		if want := r.Elements.Samples(); len(r.Path) != want {
			t.Errorf("%s: %d samples, want %d", r.Name, len(r.Path), want)
		}
		if r.Stats.MaxIterations == 0 {
			t.Errorf("%s: stats not populated", r.Name)
		}
	}
}

// TestWorkerPoolErrors verifies invalid elements are reported per body
// without failing the batch.
func TestWorkerPoolErrors(t *testing.T) {
	pool := NewWorkerPool(2, testLogger())
	defs := []bodies.Body{
		{Name: "ok", Elements: orbit.Elements{Eccentricity: 0.1, PeriodDays: 1, SemiMajorAxis: 1}},
		{Name: "bad", Elements: orbit.Elements{Eccentricity: 2, PeriodDays: 1, SemiMajorAxis: 1}},
	}

	results, successCount, errorCount := pool.ComputeBatch(context.Background(), defs)
	if successCount != 1 || errorCount != 1 {
		t.Fatalf("success=%d errors=%d, want 1 and 1", successCount, errorCount)
	}
	for _, r := range results {
		if r.Name == "bad" && !errors.Is(r.Err, orbit.ErrInvalidElements) {
			t.Errorf("bad: err = %v, want ErrInvalidElements", r.Err)
		}
	}
}

// TestWorkerPoolCancellation verifies the worker pool respects context cancellation.
func TestWorkerPoolCancellation(t *testing.T) {
	pool := NewWorkerPool(2, testLogger())

	defs := make([]bodies.Body, 100)
	for i := range defs {
		defs[i] = bodies.Body{Name: "test", Elements: orbit.Elements{Eccentricity: 0.2, PeriodDays: 500, SemiMajorAxis: 10}}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately.

	results, successCount, _ := pool.ComputeBatch(ctx, defs)
	if successCount >= len(defs) {
		t.Errorf("expected fewer results with cancelled context, got %d/%d", len(results), len(defs))
	}
}

func TestPropagatorComputeDataset(t *testing.T) {
	prop := NewPropagator(testStore(t), PropConfig{Workers: 2}, testLogger())

	results, err := prop.ComputeDataset(context.Background(), innerBodies)
	if err != nil {
		t.Fatal(err)
	}
	names := make(map[string]bool)
	for _, r := range results {
		names[r.Name] = true
	}
	for _, want := range []string{bodies.Earth, bodies.Mercury, bodies.Venus, bodies.Mars} {
		if !names[want] {
			t.Errorf("missing %s", want)
		}
	}
	if names[bodies.Jupiter] {
		t.Error("filter not applied")
	}
}

func TestPropagatorCompute(t *testing.T) {
	prop := NewPropagator(bodies.NewStore(), PropConfig{Workers: 1}, testLogger())
	el := orbit.Elements{Eccentricity: 0.0167, PeriodDays: 365.25, SemiMajorAxis: 10}

	start := time.Now()
	path, stats, err := prop.Compute(context.Background(), el)
	if err != nil {
		t.Fatal(err)
	}
	if len(path) != 87660 || stats.Samples != 87660 {
		t.Errorf("samples = %d/%d, want 87660", len(path), stats.Samples)
	}
	if stats.Duration <= 0 || stats.Duration > time.Since(start) {
		t.Errorf("duration = %v", stats.Duration)
	}
}

// TestPropagatorNoDataset verifies error when no body data is loaded.
func TestPropagatorNoDataset(t *testing.T) {
	prop := NewPropagator(bodies.NewStore(), PropConfig{Workers: 2}, testLogger())

	_, err := prop.ComputeDataset(context.Background(), nil)
	if !errors.Is(err, ErrNoDataset) {
		t.Fatalf("err = %v, want ErrNoDataset", err)
	}
}

// BenchmarkComputeEarthPath benchmarks sampling one Earth year.
func BenchmarkComputeEarthPath(b *testing.B) {
	el := orbit.Elements{Eccentricity: 0.41671, PeriodDays: 365.25, SemiMajorAxis: 10}
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := orbit.ComputePath(ctx, el); err != nil {
			b.Fatal(err)
		}
	}
}
