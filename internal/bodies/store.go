package bodies

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Store provides thread-safe access to the current body dataset.
type Store struct {
	dataset atomic.Pointer[Dataset]
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current dataset, or nil if none has been loaded.
func (s *Store) Get() *Dataset {
	return s.dataset.Load()
}

// Set validates ds and atomically replaces the current dataset.
func (s *Store) Set(ds *Dataset) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	s.dataset.Store(ds)
	return nil
}

// AgeSeconds returns the age of the current dataset in seconds.
// Returns -1 if no dataset is loaded.
func (s *Store) AgeSeconds() float64 {
	ds := s.dataset.Load()
	if ds == nil {
		return -1
	}
	return time.Since(ds.LoadedAt).Seconds()
}

// Validate rejects empty, duplicate or out-of-range body definitions.
func (ds *Dataset) Validate() error {
	if len(ds.Bodies) == 0 {
		return fmt.Errorf("dataset %q has no bodies", ds.Source)
	}
	seen := make(map[string]bool, len(ds.Bodies))
	for _, b := range ds.Bodies {
		if b.Name == "" {
			return fmt.Errorf("dataset %q: body with empty name", ds.Source)
		}
		if seen[b.Name] {
			return fmt.Errorf("dataset %q: duplicate body %q", ds.Source, b.Name)
		}
		seen[b.Name] = true
		if err := b.Elements.Validate(); err != nil {
			return fmt.Errorf("body %q: %w", b.Name, err)
		}
		if b.DayLength <= 0 {
			return fmt.Errorf("body %q: day length %g must be positive", b.Name, b.DayLength)
		}
	}
	return nil
}
