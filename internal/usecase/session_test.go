package usecase

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bistro-ai/internal/domain"
)

func newTestRegistry() *SessionRegistry {
	return NewSessionRegistry(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSessionAddAndReset(t *testing.T) {
	s := NewSession()
	assert.NotEmpty(t, s.ID)

	s.AddMessage(domain.Message{Role: domain.RoleUser, Content: "hi"})
	s.AddMessages(
		domain.Message{Role: domain.RoleAssistant, Content: "hello"},
		domain.Message{Role: domain.RoleTool, Content: "{}"},
	)
	require.Equal(t, 3, s.Len())

	msgs := s.Messages()
	assert.False(t, msgs[0].Timestamp.IsZero())

	// Mutating the copy must not touch the session.
	msgs[0].Content = "mutated"
	assert.Equal(t, "hi", s.Messages()[0].Content)

	s.Reset()
	assert.Equal(t, 0, s.Len())
	assert.NotEmpty(t, s.ID)
}

func TestRegistryGetOrCreate(t *testing.T) {
	r := newTestRegistry()

	a := r.GetOrCreate("my-session")
	b := r.GetOrCreate("my-session")
	assert.Same(t, a, b)

	// Empty id gets a generated ULID.
	c := r.GetOrCreate("")
	assert.NotEmpty(t, c.ID)
	assert.NotEqual(t, "my-session", c.ID)
}

func TestRegistryGetMissing(t *testing.T) {
	r := newTestRegistry()
	_, err := r.Get("nope")
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))

	err = r.Reset("nope")
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))

	err = r.Delete("nope")
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
}

func TestRegistryResetKeepsSession(t *testing.T) {
	r := newTestRegistry()
	s := r.GetOrCreate("sess")
	s.AddMessage(domain.Message{Role: domain.RoleUser, Content: "hi"})

	require.NoError(t, r.Reset("sess"))

	got, err := r.Get("sess")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
}

func TestRegistryReapStale(t *testing.T) {
	r := newTestRegistry()
	stale := r.GetOrCreate("stale")
	stale.mu.Lock()
	stale.UpdatedAt = time.Now().Add(-time.Hour)
	stale.mu.Unlock()
	r.GetOrCreate("fresh")

	reaped := r.ReapStale(30 * time.Minute)
	assert.Equal(t, 1, reaped)

	_, err := r.Get("stale")
	assert.Error(t, err)
	_, err = r.Get("fresh")
	assert.NoError(t, err)
}

func TestGenerateSessionIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateSessionID()
		assert.Len(t, id, 26)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
