package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNotFound is returned for an unknown session id.
var ErrNotFound = errors.New("session not found")

// Factory builds a new idle session with the given id.
type Factory func(id string) *Session

// Store keeps live sessions in memory. Nothing survives a restart.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	factory  Factory
	logger   *zap.Logger
}

// NewStore creates an empty store.
func NewStore(factory Factory, logger *zap.Logger) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		factory:  factory,
		logger:   logger,
	}
}

// Create starts a new session under a random UUID.
func (st *Store) Create() *Session {
	s := st.factory(uuid.NewString())

	st.mu.Lock()
	st.sessions[s.ID()] = s
	st.mu.Unlock()

	st.logger.Debug("session created", zap.String("session", s.ID()))
	return s
}

// GetOrCreate returns the session with id, creating it if needed. Surfaces
// with their own stable ids (a Telegram chat) use it instead of Create.
func (st *Store) GetOrCreate(id string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.sessions[id]; ok {
		return s
	}
	s := st.factory(id)
	st.sessions[id] = s
	return s
}

// Get looks a session up by id.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Delete closes and forgets a session, releasing its camera if it holds one.
func (st *Store) Delete(id string) error {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	s.Close()
	st.logger.Debug("session deleted", zap.String("session", id))
	return nil
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep closes sessions untouched for longer than idle and returns how many
// were removed. Sessions waiting on a classification are kept.
// A session can hold its own lock across a camera read, so sessions are
// inspected outside the store lock.
func (st *Store) Sweep(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	st.mu.RLock()
	candidates := make([]*Session, 0, len(st.sessions))
	for _, s := range st.sessions {
		candidates = append(candidates, s)
	}
	st.mu.RUnlock()

	var expired []*Session
	for _, s := range candidates {
		if !s.UpdatedAt().Before(cutoff) || s.Snapshot().State == StateLoading {
			continue
		}
		st.mu.Lock()
		// Deleted or replaced while we looked.
		if cur, ok := st.sessions[s.ID()]; ok && cur == s {
			delete(st.sessions, s.ID())
			expired = append(expired, s)
		}
		st.mu.Unlock()
	}

	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		st.logger.Info("expired idle sessions", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// RunJanitor sweeps every interval until ctx is done.
func (st *Store) RunJanitor(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.Sweep(idle)
		}
	}
}

// Close closes every session. Called on shutdown so no camera stays open.
func (st *Store) Close() {
	st.mu.Lock()
	all := make([]*Session, 0, len(st.sessions))
	for id, s := range st.sessions {
		all = append(all, s)
		delete(st.sessions, id)
	}
	st.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}
