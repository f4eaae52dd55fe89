package snapshotRepo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"pagoda/models"

	"github.com/go-redis/redis/v8"
)

const pageSnapshotPrefix = "page:snap:"

// ErrNotFound is returned when no snapshot is stored for a page.
var ErrNotFound = errors.New("page snapshot not found")

// SnapshotStore mirrors page snapshots so any instance can answer read-only polls.
type SnapshotStore interface {
	Save(ctx context.Context, snap models.PageSnapshot) error
	Load(ctx context.Context, pageID string) (*models.PageSnapshot, error)
	Delete(ctx context.Context, pageID string) error
}

// kv is the subset of the redis client the store uses.
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type RedisSnapshotStore struct {
	client kv
	ttl    time.Duration
}

func NewRedisSnapshotStore(client *redis.Client, ttl time.Duration) *RedisSnapshotStore {
	return &RedisSnapshotStore{client: client, ttl: ttl}
}

func (s *RedisSnapshotStore) Load(ctx context.Context, pageID string) (*models.PageSnapshot, error) {
	data, err := s.client.Get(ctx, pageSnapshotPrefix+pageID).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var snap models.PageSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *RedisSnapshotStore) Save(ctx context.Context, snap models.PageSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, pageSnapshotPrefix+snap.PageID, b, s.ttl).Err()
}

func (s *RedisSnapshotStore) Delete(ctx context.Context, pageID string) error {
	return s.client.Del(ctx, pageSnapshotPrefix+pageID).Err()
}
