package state

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agentmesh/agentmesh/types"
)

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// KeyPrefix namespaces this engine's keys; defaults to "agentmesh".
	KeyPrefix string
}

// RedisStore persists snapshots in Redis so multiple engine replicas
// can share load history and cursors.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, types.Errorf(types.ErrTransport, "connect to redis: %v", err).WithRetryable(true)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "agentmesh"
	}

	return &RedisStore{client: client, keyPrefix: prefix}, nil
}

// NewRedisStoreFromClient wraps an existing client, mainly for tests.
func NewRedisStoreFromClient(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "agentmesh"
	}
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisStore) snapshotKey() string {
	return s.keyPrefix + ":state:snapshot"
}

func (s *RedisStore) Save(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.snapshotKey(), data, 0).Err(); err != nil {
		return types.Errorf(types.ErrTransport, "save snapshot: %v", err).WithRetryable(true)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context) (Snapshot, bool, error) {
	data, err := s.client.Get(ctx, s.snapshotKey()).Bytes()
	if err == redis.Nil {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, types.Errorf(types.ErrTransport, "load snapshot: %v", err).WithRetryable(true)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.snapshotKey()).Err(); err != nil {
		return types.Errorf(types.ErrTransport, "clear snapshot: %v", err).WithRetryable(true)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks store health.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

var _ Store = (*RedisStore)(nil)
