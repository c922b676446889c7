package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/daimoniac/swaudit/internal/errors"
	"github.com/daimoniac/swaudit/internal/observability"
	"github.com/daimoniac/swaudit/internal/types"
)

// DefaultKeyPrefix namespaces session keys in a shared Redis.
const DefaultKeyPrefix = "swaudit:session:"

// RedisConfig configures a RedisStore
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	Lifetime time.Duration
}

// RedisStore keeps sessions in Redis so several API replicas can share them.
// Expiry is enforced by the key TTL.
type RedisStore struct {
	client   *redis.Client
	prefix   string
	lifetime time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.ClassifyStoreError(fmt.Errorf("failed to ping redis: %w", err))
	}

	return newRedisStore(client, cfg), nil
}

func newRedisStore(client *redis.Client, cfg RedisConfig) *RedisStore {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultKeyPrefix
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = DefaultLifetime
	}
	return &RedisStore{client: client, prefix: cfg.Prefix, lifetime: cfg.Lifetime}
}

func (r *RedisStore) redisKey(key string) string {
	return r.prefix + key
}

// Create implements Store.
func (r *RedisStore) Create(ctx context.Context, userID string, inventory []types.SoftwareRecord) (*Session, error) {
	now := time.Now().UTC()
	s := &Session{
		Key:       NewKey(),
		UserID:    userID,
		Inventory: inventory,
		Created:   now,
		Expiry:    now.Add(r.lifetime),
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.client.Set(ctx, r.redisKey(s.Key), data, r.lifetime).Err(); err != nil {
		return nil, errors.ClassifyStoreError(fmt.Errorf("failed to store session: %w", err))
	}

	observability.GetMetrics().SessionsCreated.Inc()
	return s, nil
}

// Get implements Store.
func (r *RedisStore) Get(ctx context.Context, key string) (*Session, error) {
	data, err := r.client.Get(ctx, r.redisKey(key)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.ErrSessionNotFound
		}
		return nil, errors.ClassifyStoreError(fmt.Errorf("failed to get session: %w", err))
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.NewPermanentf("failed to unmarshal session: %w", err)
	}
	// TTL granularity can leave a key alive for a moment past its expiry
	if s.Expired(time.Now()) {
		return nil, errors.ErrSessionExpired
	}
	return &s, nil
}

// Delete implements Store.
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.redisKey(key)).Err(); err != nil {
		return errors.ClassifyStoreError(fmt.Errorf("failed to delete session: %w", err))
	}
	return nil
}

// Len implements Store.
func (r *RedisStore) Len(ctx context.Context) (int, error) {
	n := 0
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, errors.ClassifyStoreError(fmt.Errorf("failed to count sessions: %w", err))
	}
	return n, nil
}

// Ping implements Store.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close implements Store.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
