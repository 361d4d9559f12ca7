package profile

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore satisfies LockedStore over an in-memory snapshot, counting how
// many mutations actually persisted.
type memStore struct {
	store *AuthProfileStore
	saves int
}

func newMemStore() *memStore {
	return &memStore{store: &AuthProfileStore{
		Version:  1,
		Profiles: map[string]json.RawMessage{"gemini:alpha": json.RawMessage(`{}`)},
	}}
}

func (m *memStore) WithLock(_ context.Context, mutate func(*AuthProfileStore) (*AuthProfileStore, error)) error {
	next, err := mutate(m.store)
	if err != nil {
		return err
	}
	if next != nil {
		m.store = next
		m.saves++
	}
	return nil
}

func minutesFromNow(m float64) float64 {
	return NowMillis() + m*60_000
}

func TestMarkFailureCreatesStatLazily(t *testing.T) {
	ms := newMemStore()
	before := NowMillis()

	require.NoError(t, MarkAuthProfileFailure(context.Background(), ms, "gemini:alpha", "rate_limit"))

	stat, ok := ms.store.Stat("gemini:alpha")
	require.True(t, ok)
	assert.Equal(t, 1, stat.ErrorCount)
	assert.Equal(t, map[string]int{"rate_limit": 1}, stat.FailureCounts)
	require.NotNil(t, stat.LastFailureAt)
	assert.GreaterOrEqual(t, *stat.LastFailureAt, before)
	require.NotNil(t, stat.CooldownUntil)
	// Tier 1 is one minute.
	assert.InDelta(t, before+60_000, *stat.CooldownUntil, 5_000)
	assert.Nil(t, stat.DisabledUntil)
	assert.Empty(t, stat.DisabledReason)
	assert.Equal(t, 1, ms.saves)
}

func TestMarkFailureNeverShortensDeadline(t *testing.T) {
	// Saturated profile: the existing window outlives the next tier, so the
	// merge must keep it.
	ms := newMemStore()
	existing := minutesFromNow(50)
	ms.store.UsageStats = map[string]*UsageStat{
		"gemini:alpha": {CooldownUntil: fptr(existing), ErrorCount: 3},
	}

	require.NoError(t, MarkAuthProfileFailure(context.Background(), ms, "gemini:alpha", "rate_limit"))

	stat := ms.store.UsageStats["gemini:alpha"]
	assert.Equal(t, 4, stat.ErrorCount)
	require.NotNil(t, stat.CooldownUntil)
	assert.GreaterOrEqual(t, *stat.CooldownUntil, existing)
}

func TestMarkFailureExtendsWhenNextTierIsLonger(t *testing.T) {
	ms := newMemStore()
	existing := minutesFromNow(5)
	ms.store.UsageStats = map[string]*UsageStat{
		"gemini:alpha": {CooldownUntil: fptr(existing), ErrorCount: 2},
	}

	require.NoError(t, MarkAuthProfileFailure(context.Background(), ms, "gemini:alpha", "rate_limit"))

	stat := ms.store.UsageStats["gemini:alpha"]
	assert.Equal(t, 3, stat.ErrorCount)
	require.NotNil(t, stat.CooldownUntil)
	// Post-increment tier 3 is fifteen minutes, well past the remaining five.
	assert.Greater(t, *stat.CooldownUntil, existing)
}

func TestMarkFailureMonotonicAcrossSequence(t *testing.T) {
	ms := newMemStore()
	prev := 0.0
	for i := 0; i < 8; i++ {
		require.NoError(t, MarkAuthProfileFailure(context.Background(), ms, "gemini:alpha", "timeout"))
		stat := ms.store.UsageStats["gemini:alpha"]
		require.NotNil(t, stat.CooldownUntil)
		assert.GreaterOrEqual(t, *stat.CooldownUntil, prev)
		prev = *stat.CooldownUntil
	}
	assert.Equal(t, 8, ms.store.UsageStats["gemini:alpha"].ErrorCount)
	assert.Equal(t, map[string]int{"timeout": 8}, ms.store.UsageStats["gemini:alpha"].FailureCounts)
}

func TestMarkFailureBillingTargetsDisable(t *testing.T) {
	ms := newMemStore()
	cooldown := minutesFromNow(5)
	ms.store.UsageStats = map[string]*UsageStat{
		"gemini:alpha": {CooldownUntil: fptr(cooldown), ErrorCount: 1},
	}

	require.NoError(t, MarkAuthProfileFailure(context.Background(), ms, "gemini:alpha", "billing"))

	stat := ms.store.UsageStats["gemini:alpha"]
	require.NotNil(t, stat.DisabledUntil)
	assert.Equal(t, "billing", stat.DisabledReason)
	assert.Equal(t, map[string]int{"billing": 1}, stat.FailureCounts)
	// The transient deadline is not the target and stays untouched.
	require.NotNil(t, stat.CooldownUntil)
	assert.Equal(t, cooldown, *stat.CooldownUntil)
}

func TestMarkFailureInvalidExistingDeadlineIsOverwritten(t *testing.T) {
	// An out-of-range stored value does not participate in the merge.
	ms := newMemStore()
	ms.store.UsageStats = map[string]*UsageStat{
		"gemini:alpha": {CooldownUntil: fptr(-1)},
	}
	before := NowMillis()

	require.NoError(t, MarkAuthProfileFailure(context.Background(), ms, "gemini:alpha", "timeout"))

	stat := ms.store.UsageStats["gemini:alpha"]
	require.NotNil(t, stat.CooldownUntil)
	assert.Greater(t, *stat.CooldownUntil, before)
}

func TestMarkUsedStampsLastUsedOnly(t *testing.T) {
	ms := newMemStore()
	deadline := minutesFromNow(10)
	ms.store.UsageStats = map[string]*UsageStat{
		"gemini:alpha": {CooldownUntil: fptr(deadline), ErrorCount: 2},
	}
	before := NowMillis()

	require.NoError(t, MarkAuthProfileUsed(context.Background(), ms, "gemini:alpha"))

	stat := ms.store.UsageStats["gemini:alpha"]
	require.NotNil(t, stat.LastUsed)
	assert.GreaterOrEqual(t, *stat.LastUsed, before)
	assert.Equal(t, 2, stat.ErrorCount)
	require.NotNil(t, stat.CooldownUntil)
	assert.Equal(t, deadline, *stat.CooldownUntil)
	assert.Equal(t, 1, ms.saves)
}

func TestBackoffCandidateMatchesSchedule(t *testing.T) {
	// Recording n failures back to back lands the deadline on the nth tier
	// from the last recording's clock.
	ms := newMemStore()
	start := NowMillis()
	for i := 0; i < 5; i++ {
		require.NoError(t, MarkAuthProfileFailure(context.Background(), ms, "gemini:alpha", "rate_limit"))
	}
	stat := ms.store.UsageStats["gemini:alpha"]
	require.NotNil(t, stat.CooldownUntil)
	assert.InDelta(t, start+float64((60*time.Minute).Milliseconds()), *stat.CooldownUntil, 10_000)
}
