package memory

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"ai-pdfchat/pkg/store"
)

// SessionRepository keeps sessions in process memory. A session idle for
// longer than the TTL is dropped along with its conversation.
type SessionRepository struct {
	cache *cache.Cache
}

func NewSessionRepository(ttl time.Duration) *SessionRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	cleanup := ttl / 6
	if cleanup < time.Second {
		cleanup = time.Second
	}
	return &SessionRepository{
		cache: cache.New(ttl, cleanup),
	}
}

// Create starts a new empty session.
func (r *SessionRepository) Create() *store.Session {
	session := store.NewSession(uuid.NewString())
	r.Save(session)
	return session
}

// Save stores session and restarts its TTL.
func (r *SessionRepository) Save(session *store.Session) {
	r.cache.Set(session.ID, session, cache.DefaultExpiration)
}

func (r *SessionRepository) Get(sessionID string) (*store.Session, bool) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*store.Session), true
	}
	return nil, false
}

// OnEvicted registers fn to run for every session that expires or is deleted.
func (r *SessionRepository) OnEvicted(fn func(*store.Session)) {
	r.cache.OnEvicted(func(_ string, x interface{}) {
		fn(x.(*store.Session))
	})
}

// GetOrCreate returns the session for sessionID, or a new empty one under
// that id when it expired or never existed.
func (r *SessionRepository) GetOrCreate(sessionID string) *store.Session {
	if session, ok := r.Get(sessionID); ok {
		r.Save(session)
		return session
	}
	// evict an expired session of the same id before it is overwritten
	r.cache.DeleteExpired()
	session := store.NewSession(sessionID)
	r.Save(session)
	return session
}

func (r *SessionRepository) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}

func (r *SessionRepository) Count() int {
	return r.cache.ItemCount()
}
