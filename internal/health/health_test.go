package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	Healthz(w, httptest.NewRequest("GET", "/healthz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok\n" {
		t.Errorf("got %d %q", w.Code, w.Body.String())
	}
}

func TestReadyz(t *testing.T) {
	var datasetErr error
	handler := Readyz(map[string]Check{
		"catalog": func(context.Context) error { return nil },
		"dataset": func(context.Context) error { return datasetErr },
	})

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest("GET", "/readyz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ready\n" {
		t.Errorf("got %d %q", w.Code, w.Body.String())
	}

	datasetErr = errors.New("no body dataset loaded")
	w = httptest.NewRecorder()
	handler(w, httptest.NewRequest("GET", "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
	if !strings.Contains(w.Body.String(), "dataset: no body dataset loaded") {
		t.Errorf("body = %q", w.Body.String())
	}
}
