package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store owns the lifecycle of all live sessions, keyed by the session
// ID carried in the browser cookie. Expired sessions are reaped by a
// background janitor.
type Store struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	ttl      time.Duration
	logger   *slog.Logger
	done     chan struct{}
	stopOnce sync.Once
}

// NewStore creates a session store with the given idle TTL and starts
// its janitor.
func NewStore(ttl time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	s := &Store{
		sessions: make(map[uuid.UUID]*Session),
		ttl:      ttl,
		logger:   logger,
		done:     make(chan struct{}),
	}
	go s.janitor()
	return s
}

// Create allocates a new empty session.
func (s *Store) Create() *Session {
	sess := &Session{
		ID:           uuid.New(),
		lastActivity: time.Now(),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return sess
}

// Get returns the session with the given ID and refreshes its activity
// timestamp. The second return is false if the session does not exist
// or has expired.
func (s *Store) Get(id uuid.UUID) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}

	sess.mu.Lock()
	sess.lastActivity = time.Now()
	sess.mu.Unlock()

	return sess, true
}

// Stop terminates the janitor.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
}

func (s *Store) janitor() {
	ticker := time.NewTicker(s.ttl / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reap()
		case <-s.done:
			return
		}
	}
}

func (s *Store) reap() {
	cutoff := time.Now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, sess := range s.sessions {
		sess.mu.Lock()
		stale := sess.lastActivity.Before(cutoff) && !sess.generating
		sess.mu.Unlock()
		if stale {
			delete(s.sessions, id)
			s.logger.Debug("reaped idle session", "session_id", id)
		}
	}
}
