package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/varun-un/AetherConnect/internal/bodies"
	"github.com/varun-un/AetherConnect/internal/metrics"
)

var (
	// ErrNotFound is returned for unknown session ids.
	ErrNotFound = errors.New("session not found")

	// ErrTooManySessions is returned when MaxSessions are running.
	ErrTooManySessions = errors.New("too many sessions")

	// ErrNoDataset is returned when no body dataset is loaded.
	ErrNoDataset = errors.New("no body dataset loaded")
)

// Manager owns the running sessions.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	cfg    Config
	paths  PathSource
	store  *bodies.Store
	logger *slog.Logger
}

// NewManager creates an empty session manager.
func NewManager(cfg Config, paths PathSource, store *bodies.Store, logger *slog.Logger) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		paths:    paths,
		store:    store,
		logger:   logger,
	}
}

// Create starts a new session on the current body dataset.
func (m *Manager) Create() (*Session, error) {
	ds := m.store.Get()
	if ds == nil {
		return nil, ErrNoDataset
	}

	m.mu.Lock()
	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: limit %d", ErrTooManySessions, m.cfg.MaxSessions)
	}
	m.mu.Unlock()

	s, err := New(uuid.NewString(), ds, m.paths, m.cfg, m.logger)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		s.Stop()
		return nil, fmt.Errorf("%w: limit %d", ErrTooManySessions, m.cfg.MaxSessions)
	}
	m.sessions[s.ID] = s
	count := len(m.sessions)
	m.mu.Unlock()

	s.Start()
	metrics.SetSessionsActive(count)
	return s, nil
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove stops and forgets a session.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	count := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.Stop()
	metrics.SetSessionsActive(count)
	return nil
}

// Len returns the number of running sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Run reaps idle sessions until ctx is cancelled, then stops them all.
func (m *Manager) Run(ctx context.Context) {
	interval := m.cfg.IdleTimeout / 4
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.StopAll()
			return
		case now := <-ticker.C:
			m.reap(now)
		}
	}
}

// reap removes sessions without subscribers that have been idle longer
// than IdleTimeout.
func (m *Manager) reap(now time.Time) int {
	if m.cfg.IdleTimeout <= 0 {
		return 0
	}

	m.mu.Lock()
	var idle []string
	for id, s := range m.sessions {
		since := s.idleSince()
		if !since.IsZero() && now.Sub(since) > m.cfg.IdleTimeout {
			idle = append(idle, id)
		}
	}
	m.mu.Unlock()

	for _, id := range idle {
		if err := m.Remove(id); err == nil {
			m.logger.Info("idle session reaped", "component", "session", "session_id", id)
		}
	}
	return len(idle)
}

// StopAll stops every session.
func (m *Manager) StopAll() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Stop()
	}
	metrics.SetSessionsActive(0)
}
