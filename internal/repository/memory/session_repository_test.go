package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-pdfchat/pkg/rag/conversation"
	"ai-pdfchat/pkg/store"
)

func TestSessionRepository_CreateGetDelete(t *testing.T) {
	repo := NewSessionRepository(time.Minute)

	s := repo.Create()
	require.NotEmpty(t, s.ID)

	got, ok := repo.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, repo.Count())

	repo.Delete(s.ID)
	_, ok = repo.Get(s.ID)
	assert.False(t, ok)
}

func TestSessionRepository_GetOrCreate(t *testing.T) {
	repo := NewSessionRepository(time.Minute)

	s := repo.GetOrCreate("abc")
	assert.Equal(t, "abc", s.ID)
	assert.Equal(t, store.StateEmpty, s.State())
	assert.Same(t, s, repo.GetOrCreate("abc"))
}

func TestSessionRepository_Expiry(t *testing.T) {
	repo := NewSessionRepository(20 * time.Millisecond)
	s := repo.Create()

	time.Sleep(50 * time.Millisecond)

	_, ok := repo.Get(s.ID)
	assert.False(t, ok)
}

type countingConversation struct {
	mu       sync.Mutex
	released int
}

func (c *countingConversation) Ask(context.Context, string) (*conversation.AnswerTurn, error) {
	return &conversation.AnswerTurn{}, nil
}

func (c *countingConversation) Release(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released++
	return nil
}

func (c *countingConversation) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}

func TestSessionRepository_OnEvictedReleasesConversation(t *testing.T) {
	t.Run("delete", func(t *testing.T) {
		repo := NewSessionRepository(time.Minute)
		engine := &countingConversation{}
		repo.OnEvicted(func(s *store.Session) { _ = store.Release(context.Background(), s.Engine()) })

		s := repo.GetOrCreate("abc")
		s.Install(engine, &store.Summary{}, nil)
		repo.Delete("abc")

		assert.Equal(t, 1, engine.count())
	})

	t.Run("expired session recreated under the same id", func(t *testing.T) {
		repo := NewSessionRepository(20 * time.Millisecond)
		engine := &countingConversation{}
		repo.OnEvicted(func(s *store.Session) { _ = store.Release(context.Background(), s.Engine()) })

		old := repo.GetOrCreate("abc")
		old.Install(engine, &store.Summary{}, nil)
		time.Sleep(50 * time.Millisecond)

		fresh := repo.GetOrCreate("abc")

		assert.NotSame(t, old, fresh)
		assert.Eventually(t, func() bool { return engine.count() == 1 }, time.Second, 10*time.Millisecond)
	})
}
