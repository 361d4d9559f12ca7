package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"authpool-go/internal/profile"
)

const (
	redisLockTTL   = 10 * time.Second
	redisLockRetry = 25 * time.Millisecond
)

// releaseLockScript deletes the lock key only when it still carries our
// owner token, so an expired-and-reacquired lock is never released by the
// previous holder.
const releaseLockScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`

// RedisStore keeps the pool snapshot in a single Redis key. The exclusive
// write lock is a SET NX key carrying a per-acquisition owner token, mirroring
// the flock contract of FileStore for deployments without a shared filesystem.
type RedisStore struct {
	client  *redis.Client
	key     string
	lockKey string
}

// NewRedisStore creates a store under prefix (defaults to "authpool").
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "authpool"
	}
	return &RedisStore{
		client:  client,
		key:     prefix + ":store",
		lockKey: prefix + ":store:lock",
	}
}

func (r *RedisStore) Load(ctx context.Context) (*profile.AuthProfileStore, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err == redis.Nil {
		return &profile.AuthProfileStore{
			Version:  1,
			Profiles: make(map[string]json.RawMessage),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read profile store: %w", err)
	}
	var store profile.AuthProfileStore
	if err := json.Unmarshal(data, &store); err != nil {
		return nil, fmt.Errorf("parse profile store: %w", err)
	}
	return &store, nil
}

func (r *RedisStore) Save(ctx context.Context, store *profile.AuthProfileStore) error {
	data, err := json.Marshal(store)
	if err != nil {
		return fmt.Errorf("marshal profile store: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("persist profile store: %w", err)
	}
	return nil
}

func (r *RedisStore) WithLock(ctx context.Context, mutate func(*profile.AuthProfileStore) (*profile.AuthProfileStore, error)) error {
	token := uuid.NewString()
	if err := r.acquireLock(ctx, token); err != nil {
		return err
	}
	defer r.releaseLock(token)

	store, err := r.Load(ctx)
	if err != nil {
		return err
	}
	next, err := mutate(store)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}
	return r.Save(ctx, next)
}

func (r *RedisStore) acquireLock(ctx context.Context, token string) error {
	for {
		ok, err := r.client.SetNX(ctx, r.lockKey, token, redisLockTTL).Result()
		if err != nil {
			return fmt.Errorf("acquire store lock: %w", err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("acquire store lock: %w", ctx.Err())
		case <-time.After(redisLockRetry):
		}
	}
}

func (r *RedisStore) releaseLock(token string) {
	// Release must not be skipped on caller cancellation.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = r.client.Eval(ctx, releaseLockScript, []string{r.lockKey}, token).Err()
}

func (r *RedisStore) Raw(ctx context.Context) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read profile store: %w", err)
	}
	return data, nil
}
