package cart

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	pkgerrors "github.com/smesmis/pos-checkout/pkg/errors"
	redisclient "github.com/smesmis/pos-checkout/pkg/redis"
)

// Store persists one snapshot per operator. Load returns nil, nil when the
// operator has no stored cart.
type Store interface {
	Load(ctx context.Context, userID string) (*Snapshot, error)
	Save(ctx context.Context, userID string, snap *Snapshot) error
	Delete(ctx context.Context, userID string) error
}

type redisBackend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartKey(userID string) string
}

// RedisStore keeps snapshots as JSON under a per-operator key with a sliding
// session TTL.
type RedisStore struct {
	client redisBackend
	ttl    time.Duration
}

// NewRedisStore builds a Redis-backed cart store. A zero ttl keeps carts
// until they are cleared.
func NewRedisStore(client *redisclient.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, userID string) (*Snapshot, error) {
	key := s.client.CartKey(userID)
	raw, err := s.client.Get(ctx, key)
	if err != nil {
		if redisclient.IsNil(err) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode stored cart")
	}
	if s.ttl > 0 {
		if err := s.client.Expire(ctx, key, s.ttl); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh cart ttl")
		}
	}
	return &snap, nil
}

func (s *RedisStore) Save(ctx context.Context, userID string, snap *Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart")
	}
	if err := s.client.Set(ctx, s.client.CartKey(userID), payload, s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.client.CartKey(userID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart")
	}
	return nil
}

// MemoryStore keeps snapshots in process memory. Used when Redis is disabled.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[string]*Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string]*Snapshot)}
}

func (s *MemoryStore) Load(_ context.Context, userID string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.carts[userID].Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, userID string, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[userID] = snap.Clone()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userID)
	return nil
}
