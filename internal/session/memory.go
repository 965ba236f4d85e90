package session

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/khanglvm/torque-advisor/internal/turn"
)

// entry holds one session. busy is held for the duration of a turn; mu guards data.
type entry struct {
	busy sync.Mutex
	mu   sync.Mutex
	data Session
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*entry
	timeout  time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithTimeout sets the idle timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *MemoryStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *MemoryStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]*entry),
		timeout:  DefaultTimeout,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) fresh(id string) Session {
	now := s.now()
	return Session{ID: id, History: []Turn{}, CreatedAt: now, LastAccessed: now}
}

func (s *MemoryStore) expired(e *entry, now time.Time) bool {
	return now.Sub(e.data.LastAccessed) > s.timeout
}

// Create starts a fresh session.
func (s *MemoryStore) Create(id string) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		e = &entry{}
		s.sessions[id] = e
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data = s.fresh(id)
	return e.data.clone()
}

// GetOrCreate returns the live session for id, creating it when needed.
func (s *MemoryStore) GetOrCreate(id string) Session {
	s.EvictExpired()

	s.mu.Lock()
	e, ok := s.sessions[id]
	if !ok {
		e = &entry{data: s.fresh(id)}
		s.sessions[id] = e
	}
	s.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	now := s.now()
	// An expired session held by the caller's own turn lock survives the
	// sweep above; it still must not leak old context.
	if s.expired(e, now) {
		e.data = s.fresh(id)
	}
	e.data.LastAccessed = now
	return e.data.clone()
}

// Get returns the session for id, or ErrNotFound.
func (s *MemoryStore) Get(id string) (Session, error) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return Session{}, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if s.expired(e, s.now()) {
		return Session{}, ErrNotFound
	}
	return e.data.clone(), nil
}

// Lock acquires the turn lock for id, creating the session entry if needed.
func (s *MemoryStore) Lock(id string) func() {
	for {
		s.mu.Lock()
		e, ok := s.sessions[id]
		if !ok {
			e = &entry{data: s.fresh(id)}
			s.sessions[id] = e
		}
		s.mu.Unlock()

		e.busy.Lock()

		// The entry may have been evicted or replaced while we waited.
		s.mu.Lock()
		current := s.sessions[id]
		s.mu.Unlock()
		if current == e {
			return e.busy.Unlock
		}
		e.busy.Unlock()
	}
}

// RecordTurn appends the exchange, updates the last query, counts
// clarifications and merges the response's filters into the session.
func (s *MemoryStore) RecordTurn(id, query string, resp turn.Response) Session {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if !ok {
		e = &entry{data: s.fresh(id)}
		s.sessions[id] = e
	}
	s.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	now := s.now()
	e.data.History = append(e.data.History, Turn{Timestamp: now, Query: query, Response: resp})
	e.data.LastQuery = query
	if resp.IsClarification() {
		e.data.ClarificationCount++
		e.data.Filters = e.data.Filters.Merge(resp.Filters())
	}
	e.data.LastAccessed = now
	return e.data.clone()
}

// EvictExpired removes sessions idle for longer than the timeout. Sessions
// whose turn lock is held are skipped.
func (s *MemoryStore) EvictExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, e := range s.sessions {
		if !e.busy.TryLock() {
			continue
		}
		e.mu.Lock()
		stale := s.expired(e, now)
		e.mu.Unlock()
		if stale {
			delete(s.sessions, id)
			removed++
		}
		e.busy.Unlock()
	}

	if removed > 0 {
		s.logger.Debug("evicted expired sessions", zap.Int("count", removed))
	}
	return removed
}

// Delete removes a session.
func (s *MemoryStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// Stats returns counts over sessions currently held.
func (s *MemoryStore) Stats() Stats {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	st := Stats{ActiveSessions: len(entries)}
	for _, e := range entries {
		e.mu.Lock()
		st.TotalConversations += len(e.data.History)
		if e.data.ClarificationCount > 0 {
			st.SessionsNeedingClarification++
		}
		e.mu.Unlock()
	}
	return st
}

var _ Store = (*MemoryStore)(nil)
