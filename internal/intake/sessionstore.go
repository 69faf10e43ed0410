package intake

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	apperrors "claimsflow/internal/common/errors"
	"claimsflow/internal/models"

	"github.com/redis/go-redis/v9"
)

// SessionStore persists intake sessions. Expired sessions read as not found.
type SessionStore interface {
	Get(ctx context.Context, id string) (*models.FNOLSession, error)
	Save(ctx context.Context, s *models.FNOLSession) error
	Delete(ctx context.Context, id string) error
}

func sessionNotFound(id string) error {
	return apperrors.NewNotFoundError("session", id)
}

// ==========================
// Memory
// ==========================

type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*models.FNOLSession
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore keeps sessions in process. A zero ttl never expires them.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*models.FNOLSession),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*models.FNOLSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()

	s, ok := m.sessions[id]
	if !ok {
		return nil, sessionNotFound(id)
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, s *models.FNOLSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return sessionNotFound(id)
	}
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) sweepLocked() {
	if m.ttl <= 0 {
		return
	}
	now := m.now()
	for id, s := range m.sessions {
		if s.IsExpired(now, m.ttl) {
			delete(m.sessions, id)
		}
	}
}

// ==========================
// Redis
// ==========================

type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore stores sessions as JSON. Every write refreshes the key TTL,
// so ttl acts as an idle timeout.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "fnol:session:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

func (r *RedisStore) Get(ctx context.Context, id string) (*models.FNOLSession, error) {
	val, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sessionNotFound(id)
		}
		return nil, apperrors.NewDependencyUnavailableError("redis", err)
	}

	var s models.FNOLSession
	if err := json.Unmarshal(val, &s); err != nil {
		return nil, apperrors.NewInternalError(err).WithMetadata("sessionId", id)
	}
	return &s, nil
}

func (r *RedisStore) Save(ctx context.Context, s *models.FNOLSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := r.client.Set(ctx, r.key(s.ID), data, r.ttl).Err(); err != nil {
		return apperrors.NewDependencyUnavailableError("redis", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, r.key(id)).Result()
	if err != nil {
		return apperrors.NewDependencyUnavailableError("redis", err)
	}
	if n == 0 {
		return sessionNotFound(id)
	}
	return nil
}
