package bodies

import (
	"errors"
	"testing"
	"time"

	"github.com/varun-un/AetherConnect/internal/orbit"
)

func TestSolarSystemValid(t *testing.T) {
	ds := SolarSystem()
	if err := ds.Validate(); err != nil {
		t.Fatalf("builtin dataset invalid: %v", err)
	}
	earth, ok := ds.Lookup(Earth)
	if !ok {
		t.Fatal("earth missing")
	}
	if earth.Deferred {
		t.Error("earth must be present from the start")
	}
	if got := len(ds.Filter(func(b Body) bool { return b.Deferred })); got != 7 {
		t.Errorf("deferred bodies = %d, want 7", got)
	}
}

func TestStoreSetGet(t *testing.T) {
	s := NewStore()
	if s.Get() != nil {
		t.Fatal("new store should be empty")
	}
	if age := s.AgeSeconds(); age != -1 {
		t.Errorf("AgeSeconds on empty store = %v, want -1", age)
	}

	ds := SolarSystem()
	ds.LoadedAt = time.Now().Add(-time.Minute)
	if err := s.Set(ds); err != nil {
		t.Fatal(err)
	}
	if s.Get() != ds {
		t.Error("Get did not return the stored dataset")
	}
	if age := s.AgeSeconds(); age < 59 || age > 120 {
		t.Errorf("AgeSeconds = %v, want ~60", age)
	}
}

func TestStoreRejectsInvalid(t *testing.T) {
	s := NewStore()
	tests := []struct {
		name string
		ds   *Dataset
	}{
		{"empty", &Dataset{Source: "test"}},
		{"duplicate", &Dataset{Source: "test", Bodies: []Body{
			{Name: "a", DayLength: 1, Elements: orbit.Elements{PeriodDays: 1, SemiMajorAxis: 1}},
			{Name: "a", DayLength: 1, Elements: orbit.Elements{PeriodDays: 1, SemiMajorAxis: 1}},
		}}},
		{"bad day", &Dataset{Source: "test", Bodies: []Body{
			{Name: "a", Elements: orbit.Elements{PeriodDays: 1, SemiMajorAxis: 1}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Set(tt.ds); err == nil {
				t.Error("expected error")
			}
		})
	}

	bad := &Dataset{Source: "test", Bodies: []Body{
		{Name: "a", DayLength: 1, Elements: orbit.Elements{Eccentricity: 1.2, PeriodDays: 1, SemiMajorAxis: 1}},
	}}
	if err := s.Set(bad); !errors.Is(err, orbit.ErrInvalidElements) {
		t.Errorf("err = %v, want ErrInvalidElements", err)
	}
	if s.Get() != nil {
		t.Error("invalid dataset must not be stored")
	}
}
