package storage

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authpool-go/internal/profile"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "authpool-test"), mr
}

func TestRedisStoreLoadMissingKeyIsEmptyPool(t *testing.T) {
	rs, _ := newTestRedisStore(t)

	store, err := rs.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, store.Version)
	assert.Empty(t, store.Profiles)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	rs, _ := newTestRedisStore(t)
	ctx := context.Background()

	until := 98765.0
	in := &profile.AuthProfileStore{
		Version:  1,
		Profiles: map[string]json.RawMessage{"openai:prod": json.RawMessage(`{}`)},
		UsageStats: map[string]*profile.UsageStat{
			"openai:prod": {DisabledUntil: &until, DisabledReason: "billing"},
		},
	}
	require.NoError(t, rs.Save(ctx, in))

	out, err := rs.Load(ctx)
	require.NoError(t, err)
	stat, ok := out.Stat("openai:prod")
	require.True(t, ok)
	require.NotNil(t, stat.DisabledUntil)
	assert.Equal(t, until, *stat.DisabledUntil)
	assert.Equal(t, "billing", stat.DisabledReason)
}

func TestRedisStoreWithLockPersistsAndReleasesLock(t *testing.T) {
	rs, mr := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, profile.MarkAuthProfileFailure(ctx, rs, "openai:prod", "rate_limit"))
	assert.False(t, mr.Exists("authpool-test:store:lock"))

	// A second mutation acquires the lock again without contention.
	require.NoError(t, profile.MarkAuthProfileFailure(ctx, rs, "openai:prod", "rate_limit"))

	store, err := rs.Load(ctx)
	require.NoError(t, err)
	stat, ok := store.Stat("openai:prod")
	require.True(t, ok)
	assert.Equal(t, 2, stat.ErrorCount)
}

func TestRedisStoreWithLockNoWriteSkipsPersist(t *testing.T) {
	rs, mr := newTestRedisStore(t)

	require.NoError(t, profile.ClearAuthProfileCooldown(context.Background(), rs, "openai:missing"))
	assert.False(t, mr.Exists("authpool-test:store"))
}

func TestRedisStoreLockBlocksUntilReleased(t *testing.T) {
	rs, mr := newTestRedisStore(t)

	require.NoError(t, mr.Set("authpool-test:store:lock", "someone-else"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := rs.WithLock(ctx, func(s *profile.AuthProfileStore) (*profile.AuthProfileStore, error) {
		return s, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
