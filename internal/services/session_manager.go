package services

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/markdave123-py/docbundle/internal/core/ingestion_engine"
	"go.uber.org/zap"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("session not found")

type sessionEntry struct {
	session  *Session
	lastSeen time.Time
}

// SessionManager keeps in-memory sessions that all share one extraction pool.
type SessionManager struct {
	pool    ingestion_engine.Submitter
	log     *zap.Logger
	metrics *ingestion_engine.Metrics
	ttl     time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

func NewSessionManager(pool ingestion_engine.Submitter, ttl time.Duration, log *zap.Logger, metrics *ingestion_engine.Metrics) *SessionManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionManager{
		pool:     pool,
		log:      log,
		metrics:  metrics,
		ttl:      ttl,
		now:      time.Now,
		sessions: map[string]*sessionEntry{},
	}
}

// Create starts a new empty session.
func (m *SessionManager) Create() *Session {
	id := uuid.NewString()
	s := NewSession(id, m.pool, m.log, m.metrics)

	m.mu.Lock()
	m.sessions[id] = &sessionEntry{session: s, lastSeen: m.now()}
	m.mu.Unlock()

	m.log.Info("session created", zap.String("session_id", id))
	return s
}

// Get returns a live session and refreshes its idle timer.
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if m.expired(e) {
		delete(m.sessions, id)
		return nil, ErrSessionNotFound
	}
	e.lastSeen = m.now()
	return e.session, nil
}

// Delete drops a session and everything it tracked.
func (m *SessionManager) Delete(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Sweep removes idle sessions and returns how many were dropped.
func (m *SessionManager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, e := range m.sessions {
		if m.expired(e) {
			delete(m.sessions, id)
			n++
		}
	}
	if n > 0 {
		m.log.Info("expired sessions removed", zap.Int("count", n))
	}
	return n
}

func (m *SessionManager) expired(e *sessionEntry) bool {
	return m.ttl > 0 && m.now().Sub(e.lastSeen) > m.ttl
}
