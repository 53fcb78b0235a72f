package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stagecrafthq/stagecraft/pkg/models"
)

// ErrNotFound is returned when a session id is unknown or expired.
var ErrNotFound = errors.New("session not found")

// MemoryStore provides an in-memory Store implementation for testing and
// single-process runs.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[string]*models.Session{}}
}

func (m *MemoryStore) Create(ctx context.Context, sess *models.Session) error {
	if sess == nil || sess.ID == "" {
		return errors.New("session with id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = cloneSession(sess)
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(sess), nil
}

func (m *MemoryStore) Touch(ctx context.Context, id string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	sess.LastActiveAt = now
	if ttl > 0 {
		sess.ExpiresAt = now.Add(ttl)
	}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, sess := range m.sessions {
		if sess.Expired(now) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed, nil
}

func cloneSession(sess *models.Session) *models.Session {
	clone := *sess
	if len(sess.Facts) > 0 {
		clone.Facts = make(map[string]any, len(sess.Facts))
		for k, v := range sess.Facts {
			clone.Facts[k] = v
		}
	}
	if len(sess.ForbiddenSlots) > 0 {
		clone.ForbiddenSlots = make(map[string]struct{}, len(sess.ForbiddenSlots))
		for k := range sess.ForbiddenSlots {
			clone.ForbiddenSlots[k] = struct{}{}
		}
	}
	return &clone
}
