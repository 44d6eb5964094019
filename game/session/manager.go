package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/wricardo/drivesim/game/engine"
	"github.com/wricardo/drivesim/game/service"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrInvalidSessionID     = errors.New("invalid session ID")
)

// FrameListener receives the snapshots a session's runner publishes
type FrameListener func(sessionID string, st engine.State)

// Manager handles driving session lifecycle. Every session owns a simulation
// driven by its own runner goroutine.
type Manager struct {
	sessions map[string]*service.Session
	sink     engine.ResultSink
	catalog  []engine.Scenario
	listener FrameListener
	mu       sync.RWMutex
}

// Option configures a Manager
type Option func(*Manager)

// WithResultSink sets where finished runs are handed off
func WithResultSink(sink engine.ResultSink) Option {
	return func(m *Manager) { m.sink = sink }
}

// WithCatalog replaces the built-in scenario catalog
func WithCatalog(catalog []engine.Scenario) Option {
	return func(m *Manager) { m.catalog = catalog }
}

// WithFrameListener receives snapshots from every session
func WithFrameListener(fn FrameListener) Option {
	return func(m *Manager) { m.listener = fn }
}

// NewManager creates a new session manager
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[string]*service.Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create creates and starts a session with the given ID and tuning profile
func (m *Manager) Create(id string, tuning *engine.Tuning) (*service.Session, error) {
	if strings.ContainsAny(id, " /\t\n") {
		return nil, ErrInvalidSessionID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		id = m.generateSessionID()
		for m.sessionExists(id) {
			id = m.generateSessionID()
		}
	} else if m.sessionExists(id) {
		// Check if session already exists (case-insensitive)
		return nil, ErrSessionAlreadyExists
	}

	opts := []engine.Option{}
	if m.sink != nil {
		opts = append(opts, engine.WithSink(m.sink))
	}
	sim, err := engine.NewSimulation(tuning, m.catalog, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create simulation: %w", err)
	}

	logger := log.WithField("session_id", id)
	runID := sim.Stats().RunID
	loop := engine.NewRenderLoop(sim).WithLogger(logger)
	hooks := engine.RunnerHooks{}
	if m.listener != nil {
		listener := m.listener
		hooks.AfterFrame = func(st engine.State) { listener(id, st) }
	}
	runner := engine.NewRunner(loop, hooks)
	runner.Start()

	session := &service.Session{
		ID:             id,
		Runner:         runner,
		Tuning:         tuning,
		CreatedAt:      time.Now(),
		LastAccessedAt: time.Now(),
	}
	m.sessions[strings.ToLower(id)] = session

	logger.WithFields(log.Fields{
		"config": tuning.Name,
		"run_id": runID,
	}).Info("session created")
	return session, nil
}

// Get retrieves a session by ID (case-insensitive)
func (m *Manager) Get(id string) (*service.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if session, exists := m.sessions[strings.ToLower(id)]; exists {
		return session, nil
	}
	return nil, ErrSessionNotFound
}

// List returns all active sessions
func (m *Manager) List() []*service.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*service.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}

// Delete stops and removes a session
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	session, exists := m.sessions[strings.ToLower(id)]
	if exists {
		delete(m.sessions, strings.ToLower(id))
	}
	m.mu.Unlock()

	if !exists {
		return ErrSessionNotFound
	}
	session.Runner.Stop()
	log.WithField("session_id", session.ID).Info("session deleted")
	return nil
}

// UpdateLastAccessed updates the last accessed time for a session
func (m *Manager) UpdateLastAccessed(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[strings.ToLower(id)]
	if !exists {
		return ErrSessionNotFound
	}
	session.LastAccessedAt = time.Now()
	return nil
}

// CleanupExpiredSessions stops and removes sessions that haven't been accessed in the given duration
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) int {
	m.mu.Lock()
	cutoff := time.Now().Add(-maxAge)
	var expired []*service.Session
	for id, session := range m.sessions {
		if session.LastAccessedAt.Before(cutoff) {
			delete(m.sessions, id)
			expired = append(expired, session)
		}
	}
	m.mu.Unlock()

	for _, session := range expired {
		session.Runner.Stop()
	}
	if len(expired) > 0 {
		log.WithField("removed", len(expired)).Info("expired sessions cleaned up")
	}
	return len(expired)
}

// StopAll stops every session, for shutdown
func (m *Manager) StopAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*service.Session)
	m.mu.Unlock()

	for _, session := range sessions {
		session.Runner.Stop()
	}
}

// Count returns the number of active sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// generateSessionID generates a random 4-character session ID
func (m *Manager) generateSessionID() string {
	// Generate 2 random bytes (4 hex characters)
	bytes := make([]byte, 2)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// sessionExists checks if a session exists (case-insensitive)
func (m *Manager) sessionExists(id string) bool {
	_, exists := m.sessions[strings.ToLower(id)]
	return exists
}
