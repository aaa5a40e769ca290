package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dharmasatrya/storefront/internal/metrics"
)

const DefaultIdleTTL = 30 * time.Minute

type Registry struct {
	deps   Deps
	ttl    time.Duration
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(deps Deps, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	deps.Logger = logger
	return &Registry{
		deps:     deps,
		ttl:      ttl,
		logger:   logger.Named("session"),
		sessions: make(map[string]*Session),
	}
}

// Acquire returns the session for id, creating and mounting it when needed. An id that
// is not a UUID gets a fresh session with a new one; the returned session carries it.
func (r *Registry) Acquire(ctx context.Context, id string) *Session {
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}

	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		s = New(id, r.deps)
		r.sessions[id] = s
		metrics.ActiveSessions.Inc()
		r.logger.Debug("session created", zap.String("session", id))
	}
	r.mu.Unlock()

	s.Touch(time.Now())
	s.Mount(ctx)
	return s
}

// Get never creates a session.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Sweep closes sessions idle for longer than the TTL and returns how many it removed.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if now.Sub(s.LastSeen()) > r.ttl {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.Close()
		metrics.ActiveSessions.Dec()
	}
	if len(expired) > 0 {
		r.logger.Info("evicted idle sessions", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Sweep(now)
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close closes every session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
		metrics.ActiveSessions.Dec()
	}
}
