package lesson

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varun-un/AetherConnect/internal/orbit"
	"github.com/varun-un/AetherConnect/internal/timeline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// fakeScene records what the script draws.
type fakeScene struct {
	mu       sync.Mutex
	path     orbit.Path
	el       orbit.Elements
	shown    map[string][]Shape
	control  *Control
	deferred int
	replaced []float64
	stopping bool
	wg       sync.WaitGroup
}

func newFakeScene(t *testing.T, el orbit.Elements) *fakeScene {
	t.Helper()
	path, _, err := orbit.ComputePath(context.Background(), el)
	require.NoError(t, err)
	return &fakeScene{path: path, el: el, shown: make(map[string][]Shape)}
}

func (f *fakeScene) Focus() (orbit.Path, orbit.Elements) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.path, f.el
}

func (f *fakeScene) Show(id string, shapes []Shape) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shown[id] = shapes
	return nil
}

func (f *fakeScene) Hide(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.shown, id)
	return nil
}

func (f *fakeScene) SetControl(c Control) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.control = &c
	return nil
}

func (f *fakeScene) ReplaceFocusOrbit(el orbit.Elements) error {
	path, _, err := orbit.ComputePath(context.Background(), el)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.path, f.el = path, el
	f.replaced = append(f.replaced, el.Eccentricity)
	return nil
}

func (f *fakeScene) AddDeferredBodies() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deferred++
	return nil
}

func (f *fakeScene) Go(fn func()) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopping {
		return false
	}
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		fn()
	}()
	return true
}

func (f *fakeScene) visible() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, id := range AnnotationIDs {
		if _, ok := f.shown[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

var lessonEarth = orbit.Elements{Eccentricity: 0.41671, PeriodDays: 365.25, SemiMajorAxis: 10}

func install(t *testing.T, cfg Config) (*Script, *timeline.Driver, *fakeScene) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	d := timeline.NewDriver(testLogger())
	scene := newFakeScene(t, lessonEarth)
	s, err := Install(ctx, d, scene, cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(s.Stop)
	return s, d, scene
}

func TestLessonWindows(t *testing.T) {
	_, d, scene := install(t, DefaultConfig())

	tests := []struct {
		t    float64
		want []string
	}{
		{0, nil},
		{43, []string{Axes}},
		{47, []string{Axes, AxisLabels}},
		{55, []string{Axes, AxisLabels, FocusPoint}},
		{71, []string{Axes, AxisLabels}},
		{82, []string{Axes, AxisLabels, ApsisLabels}},
		{90, []string{Axes, AxisLabels, ApsisLabels, AreaSectors}},
		{91, []string{Axes, ApsisLabels, AreaSectors}},
		{170, []string{Axes, ApsisLabels, AreaSectors, CircularVelocityEq}},
		{195, []string{Axes, ApsisLabels, AreaSectors}},
		{210, []string{Axes, ApsisLabels, AreaSectors, VisVivaEq}},
		{226, []string{Axes, VisVivaEq}},
		{228, []string{Axes}},
		{300, nil},
		// Backward seek restores the earlier scene.
		{60, []string{Axes, AxisLabels, FocusPoint}},
	}
	for _, tt := range tests {
		_, err := d.Poll(tt.t)
		require.NoError(t, err, "t=%g", tt.t)
		assert.Equal(t, tt.want, scene.visible(), "t=%g", tt.t)
		assert.Equal(t, tt.want, d.Active(), "t=%g", tt.t)
	}
}

func TestLessonGeometry(t *testing.T) {
	_, d, scene := install(t, DefaultConfig())

	_, err := d.Poll(100)
	require.NoError(t, err)

	axes := scene.shown[Axes]
	require.Len(t, axes, 2)
	assert.InDelta(t, lessonEarth.Periapsis(), axes[0].Points[0][2], 1e-9)
	assert.InDelta(t, -lessonEarth.Apoapsis(), axes[0].Points[1][2], 1e-3)

	sectors := scene.shown[AreaSectors]
	require.Len(t, sectors, 2)
	assert.InEpsilon(t, sectors[0].Value, sectors[1].Value, 0.01, "equal areas in equal times")
}

func TestEccentricityControlLatch(t *testing.T) {
	s, d, scene := install(t, DefaultConfig())

	require.ErrorIs(t, s.SetEccentricity(0.3), ErrControlLocked)

	_, err := d.Poll(246)
	require.NoError(t, err)
	require.NotNil(t, scene.control)
	assert.Equal(t, "Earth's eccentricity: 0.4167", scene.control.Label)
	assert.Equal(t, 0.75, scene.control.Max)

	// Seeking back does not retract the control.
	_, err = d.Poll(100)
	require.NoError(t, err)
	assert.True(t, d.Fired(EccentricityControl))

	require.NoError(t, s.SetEccentricity(0.2))
	_, el := scene.Focus()
	assert.Equal(t, DefaultConfig().SliderElements(0.2), el)
	assert.Equal(t, "Earth's eccentricity: 0.2", scene.control.Label)

	// The axes were redrawn for the new orbit.
	minor := scene.shown[Axes][1]
	assert.InDelta(t, -2.0, minor.Points[0][2], 1e-9)
	assert.InDelta(t, math.Sqrt(100-4), minor.Points[0][0], 1e-9)

	require.ErrorIs(t, s.SetEccentricity(0.8), ErrEccentricityRange)
	require.ErrorIs(t, s.SetEccentricity(math.NaN()), ErrEccentricityRange)
}

func TestEccentricityConverges(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConvergeInterval = time.Millisecond
	_, d, scene := install(t, cfg)

	_, err := d.Poll(299.2)
	require.NoError(t, err)
	assert.True(t, d.Fired(EccentricityControl))

	require.Eventually(t, func() bool {
		_, el := scene.Focus()
		return el.Eccentricity == cfg.ConvergeTarget
	}, 5*time.Second, 5*time.Millisecond)

	scene.mu.Lock()
	steps := len(scene.replaced)
	scene.mu.Unlock()
	assert.Equal(t, cfg.ConvergeSteps, steps)
}

func TestConvergenceSkippedWhenSceneStopping(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConvergeInterval = time.Millisecond
	_, d, scene := install(t, cfg)
	scene.mu.Lock()
	scene.stopping = true
	scene.mu.Unlock()

	_, err := d.Poll(299.2)
	require.NoError(t, err)
	scene.wg.Wait()

	_, el := scene.Focus()
	assert.Equal(t, lessonEarth.Eccentricity, el.Eccentricity)
	assert.Empty(t, scene.replaced)
}

func TestDeferredBodiesLatch(t *testing.T) {
	_, d, scene := install(t, DefaultConfig())

	for _, at := range []float64{306, 10, 310} {
		_, err := d.Poll(at)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, scene.deferred)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	delete(cfg.Windows, FocusPoint)
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.SliderMax = 1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.ConvergeTarget = 0.9
	assert.Error(t, cfg.Validate())
}

func TestVelocityShape(t *testing.T) {
	path, _, err := orbit.ComputePath(context.Background(), lessonEarth)
	require.NoError(t, err)

	peri := VelocityShape(path, 0, lessonEarth)
	aph := VelocityShape(path, float64(len(path)/2), lessonEarth)

	assert.Greater(t, peri.Value, aph.Value, "fastest at perihelion")
	want := orbit.VisViva(10*orbit.KmPerSceneUnit, lessonEarth.Periapsis()*orbit.KmPerSceneUnit)
	assert.InDelta(t, want, peri.Value, 1e-9)
	assert.InDelta(t, want/10, peri.Size, 1e-9)
	// At perihelion the body moves in −x.
	assert.Less(t, peri.Points[2][0], peri.Points[0][0])
}
