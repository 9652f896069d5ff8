package usecase

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"bistro-ai/internal/domain"
)

// Session is one conversation: an ordered message history bound to a session id.
type Session struct {
	mu        sync.RWMutex
	ID        string
	Msgs      []domain.Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSession creates an empty session with a generated ULID.
func NewSession() *Session {
	now := time.Now()
	return &Session{
		ID:        GenerateSessionID(),
		Msgs:      make([]domain.Message, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// GenerateSessionID returns a fresh ULID string.
func GenerateSessionID() string {
	now := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(now.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(now), entropy).String()
}

// AddMessage appends a single message (thread-safe).
func (s *Session) AddMessage(msg domain.Message) {
	s.AddMessages(msg)
}

// AddMessages appends a batch of messages in one critical section, so a
// loop step (assistant turn plus its tool results) lands in history as a
// unit or not at all.
func (s *Session) AddMessages(msgs ...domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, msg := range msgs {
		if msg.Timestamp.IsZero() {
			msg.Timestamp = now
		}
		s.Msgs = append(s.Msgs, msg)
	}
	s.UpdatedAt = now
}

// Messages returns a copy of the message history (thread-safe).
func (s *Session) Messages() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]domain.Message, len(s.Msgs))
	copy(cp, s.Msgs)
	return cp
}

// Reset empties the history but keeps the session id.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Msgs = s.Msgs[:0]
	s.UpdatedAt = time.Now()
}

// Len returns the number of messages in the history.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Msgs)
}

// SessionRegistry manages in-memory sessions keyed by id.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *slog.Logger
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry(logger *slog.Logger) *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// GetOrCreate returns the session for id, creating it when absent.
// An empty id always creates a fresh session with a generated id.
func (r *SessionRegistry) GetOrCreate(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id != "" {
		if s, ok := r.sessions[id]; ok {
			return s
		}
	}

	s := NewSession()
	if id != "" {
		s.ID = id
	}
	r.sessions[s.ID] = s
	return s
}

// Get returns an existing session or ErrSessionNotFound.
func (r *SessionRegistry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, domain.NewDomainError("SessionRegistry.Get", domain.ErrSessionNotFound, id)
	}
	return s, nil
}

// Reset empties an existing session's history.
func (r *SessionRegistry) Reset(id string) error {
	s, err := r.Get(id)
	if err != nil {
		return domain.NewDomainError("SessionRegistry.Reset", domain.ErrSessionNotFound, id)
	}
	s.Reset()
	return nil
}

// Delete removes a session.
func (r *SessionRegistry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return domain.NewDomainError("SessionRegistry.Delete", domain.ErrSessionNotFound, id)
	}
	delete(r.sessions, id)
	return nil
}

// List returns all active session ids.
func (r *SessionRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// ReapStale deletes sessions idle longer than maxAge and returns the count.
func (r *SessionRegistry) ReapStale(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()

	reaped := 0
	for id, s := range r.sessions {
		s.mu.RLock()
		stale := s.UpdatedAt.Before(cutoff)
		s.mu.RUnlock()
		if stale {
			delete(r.sessions, id)
			reaped++
		}
	}
	return reaped
}

// StartReaper runs ReapStale on a ticker until ctx is canceled.
func (r *SessionRegistry) StartReaper(ctx context.Context, maxAge, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := r.ReapStale(maxAge); n > 0 {
					r.logger.Info("stale sessions reaped", "count", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
