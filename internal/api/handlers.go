package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/varun-un/AetherConnect/internal/animation"
	"github.com/varun-un/AetherConnect/internal/catalog"
	"github.com/varun-un/AetherConnect/internal/lesson"
	"github.com/varun-un/AetherConnect/internal/orbit"
	"github.com/varun-un/AetherConnect/internal/session"
	"github.com/varun-un/AetherConnect/internal/transform"
)

const (
	// defaultMaxPathPoints bounds a path response when unconfigured.
	defaultMaxPathPoints = 100_000

	maxBodyBytes = 1 << 16
)

type handlers struct {
	deps          Deps
	maxPathPoints int
	logger        *slog.Logger
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// queryFloat parses a float query parameter, returning def when absent.
func queryFloat(r *http.Request, name string, def float64) (float64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid %s parameter %q", name, v)
	}
	return f, nil
}

func (h *handlers) listSimulations(w http.ResponseWriter, r *http.Request) {
	sims, err := h.deps.Catalog.List(r.Context())
	if err != nil {
		h.logger.Error("list simulations failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"simulations": sims})
}

func (h *handlers) getSimulation(w http.ResponseWriter, r *http.Request) {
	sim, err := h.deps.Catalog.Get(r.Context(), r.PathValue("slug"))
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case err != nil:
		h.logger.Error("get simulation failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, sim)
	}
}

func (h *handlers) createSimulation(w http.ResponseWriter, r *http.Request) {
	var sim catalog.Simulation
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&sim); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid simulation json: %w", err))
		return
	}
	sim.ID = 0

	err := h.deps.Catalog.Create(r.Context(), &sim)
	switch {
	case errors.Is(err, catalog.ErrInvalid):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, catalog.ErrDuplicate):
		writeError(w, http.StatusConflict, err)
	case err != nil:
		h.logger.Error("create simulation failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusCreated, sim)
	}
}

func (h *handlers) listBodies(w http.ResponseWriter, r *http.Request) {
	ds := h.deps.Bodies.Get()
	if ds == nil {
		writeError(w, http.StatusServiceUnavailable, session.ErrNoDataset)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"source":    ds.Source,
		"loaded_at": ds.LoadedAt.UTC().Format(time.RFC3339),
		"bodies":    ds.Bodies,
	})
}

type pathResponse struct {
	Elements    orbit.Elements `json:"elements"`
	Samples     int            `json:"samples"`
	Stride      int            `json:"stride"`
	Periapsis   float64        `json:"periapsis"`
	Apoapsis    float64        `json:"apoapsis"`
	PeriapsisAU float64        `json:"periapsis_au"`
	ApoapsisAU  float64        `json:"apoapsis_au"`
	Points      [][3]float64   `json:"points"`
}

// orbitPath serves a sampled path.
// GET /api/v1/orbit/path?e=0.0167&period=365.25&a=10&stride=240
//
// Without stride the path is thinned to fit the point budget; an explicit
// stride that exceeds the budget is rejected.
func (h *handlers) orbitPath(w http.ResponseWriter, r *http.Request) {
	var el orbit.Elements
	var err error
	if el.Eccentricity, err = queryFloat(r, "e", 0); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if el.PeriodDays, err = queryFloat(r, "period", 365.25); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if el.SemiMajorAxis, err = queryFloat(r, "a", 10); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := el.Validate(); err != nil {
		if errors.Is(err, orbit.ErrTooManySamples) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":       err.Error(),
				"max_samples": orbit.MaxSamples,
			})
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}

	samples := el.Samples()

	stride := (samples + h.maxPathPoints - 1) / h.maxPathPoints
	if v := r.URL.Query().Get("stride"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid stride parameter %q, must be a positive integer", v))
			return
		}
		if points := (samples + n - 1) / n; points > h.maxPathPoints {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":      fmt.Sprintf("stride %d yields %d points", n, points),
				"max_points": h.maxPathPoints,
			})
			return
		}
		stride = n
	}
	stride = max(stride, 1)

	path, err := h.deps.Paths.Get(r.Context(), el)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		h.logger.Error("path computation failed", "elements", el.String(), "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	down := path.Downsample(stride)
	points := make([][3]float64, len(down))
	for i, p := range down {
		points[i] = [3]float64{p.X, p.Y, p.Z}
	}
	writeJSON(w, http.StatusOK, pathResponse{
		Elements:    el,
		Samples:     len(path),
		Stride:      stride,
		Periapsis:   el.Periapsis(),
		Apoapsis:    el.Apoapsis(),
		PeriapsisAU: transform.SceneToAU(el.Periapsis()),
		ApoapsisAU:  transform.SceneToAU(el.Apoapsis()),
		Points:      points,
	})
}

// visViva serves the vis-viva speed.
// GET /api/v1/orbit/visviva?a_km=149600000&r_km=147100000
func (h *handlers) visViva(w http.ResponseWriter, r *http.Request) {
	aKm, err := queryFloat(r, "a_km", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rKm, err := queryFloat(r, "r_km", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if aKm <= 0 || rKm <= 0 {
		writeError(w, http.StatusBadRequest, errors.New("a_km and r_km must be positive"))
		return
	}
	if rKm > 2*aKm {
		writeError(w, http.StatusBadRequest, fmt.Errorf("r_km %g beyond 2·a_km is unreachable on a bound orbit", rKm))
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{
		"a_km":                   aKm,
		"r_km":                   rKm,
		"a_scene":                transform.KmToScene(aKm),
		"r_scene":                transform.KmToScene(rKm),
		"velocity_km_s":          orbit.VisViva(aKm, rKm),
		"circular_velocity_km_s": orbit.CircularVelocity(rKm),
	})
}

// speedLabel renders the speed control caption.
// GET /api/v1/orbit/speed-label?value=14
func (h *handlers) speedLabel(w http.ResponseWriter, r *http.Request) {
	value, err := queryFloat(r, "value", 1)
	if err != nil || value < 0 {
		writeError(w, http.StatusBadRequest, errors.New("value must be a non-negative number"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"value": value, "label": animation.SpeedLabel(value)})
}

func (h *handlers) cacheStats(w http.ResponseWriter, r *http.Request) {
	st := h.deps.Paths.Stats()
	resp := map[string]any{
		"entries":    st.Entries,
		"size_bytes": st.SizeBytes,
		"hits":       st.Hits,
		"misses":     st.Misses,
		"evictions":  st.Evictions,
		"in_cutover": st.InCutover,
	}
	if !st.OldestGenerated.IsZero() {
		resp["oldest_generated"] = st.OldestGenerated.UTC().Format(time.RFC3339)
		resp["newest_generated"] = st.NewestGenerated.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) createSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.deps.Sessions.Create()
	switch {
	case errors.Is(err, session.ErrTooManySessions):
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusServiceUnavailable, err)
	case errors.Is(err, session.ErrNoDataset):
		writeError(w, http.StatusServiceUnavailable, err)
	case err != nil:
		h.logger.Error("create session failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
	default:
		w.Header().Set("Location", "/api/v1/sessions/"+s.ID)
		writeJSON(w, http.StatusCreated, s.Info())
	}
}

func (h *handlers) lookupSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, ok := h.deps.Sessions.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, session.ErrNotFound)
	}
	return s, ok
}

func (h *handlers) getSession(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.lookupSession(w, r); ok {
		writeJSON(w, http.StatusOK, s.Info())
	}
}

func (h *handlers) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Sessions.Remove(r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) sessionCommand(w http.ResponseWriter, r *http.Request) {
	s, ok := h.lookupSession(w, r)
	if !ok {
		return
	}

	var cmd session.Command
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid command json: %w", err))
		return
	}

	if err := s.Apply(cmd); err != nil {
		writeError(w, commandStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, s.Info())
}

// commandStatus maps a rejected command onto an HTTP status.
func commandStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrStopped):
		return http.StatusGone
	case errors.Is(err, lesson.ErrControlLocked):
		return http.StatusConflict
	case errors.Is(err, session.ErrUnknownCommand),
		errors.Is(err, session.ErrInvalidCommand),
		errors.Is(err, lesson.ErrEccentricityRange),
		errors.Is(err, animation.ErrInvalidSpeed),
		errors.Is(err, animation.ErrUnknownBody),
		errors.Is(err, orbit.ErrInvalidElements):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
