package profile

import (
	"context"

	log "github.com/sirupsen/logrus"

	"authpool-go/internal/monitoring"
)

// LockedStore is the sole write path for pool mutations: an exclusive lock
// around reload-mutate-persist. The mutate callback receives the freshly
// loaded store, never the caller's possibly stale snapshot; returning a nil
// store signals "no write" and skips the persist.
type LockedStore interface {
	WithLock(ctx context.Context, mutate func(*AuthProfileStore) (*AuthProfileStore, error)) error
}

// MarkAuthProfileFailure records a failed request against profileID and
// extends its unavailability window along the backoff schedule. The targeted
// deadline is merged with max() rather than assigned, so a retry racing a
// concurrent recording can never shorten a window already in force.
func MarkAuthProfileFailure(ctx context.Context, store LockedStore, profileID, reason string) error {
	return store.WithLock(ctx, func(s *AuthProfileStore) (*AuthProfileStore, error) {
		stat := s.ensureStat(profileID)
		stat.ErrorCount++
		if stat.FailureCounts == nil {
			stat.FailureCounts = make(map[string]int)
		}
		stat.FailureCounts[reason]++

		now := NowMillis()
		failedAt := now
		stat.LastFailureAt = &failedAt

		candidate := now + float64(backoffDuration(stat.ErrorCount).Milliseconds())
		class := "cooldown"
		if isPersistentReason(reason) {
			class = "disable"
			stat.DisabledUntil = mergeDeadline(stat.DisabledUntil, candidate)
			stat.DisabledReason = reason
		} else {
			stat.CooldownUntil = mergeDeadline(stat.CooldownUntil, candidate)
		}
		monitoring.ProfileFailuresTotal.WithLabelValues(class, reason).Inc()
		log.WithFields(log.Fields{
			"profile":     profileID,
			"reason":      reason,
			"error_count": stat.ErrorCount,
		}).Warnf("profile pool: recorded %s failure", class)
		return s, nil
	})
}

// MarkAuthProfileUsed stamps a successful use of profileID. Deadlines and
// failure counters are left alone; the sweeper owns their lifecycle.
func MarkAuthProfileUsed(ctx context.Context, store LockedStore, profileID string) error {
	return store.WithLock(ctx, func(s *AuthProfileStore) (*AuthProfileStore, error) {
		stat := s.ensureStat(profileID)
		usedAt := NowMillis()
		stat.LastUsed = &usedAt
		return s, nil
	})
}

// mergeDeadline keeps the later of the existing valid deadline and the fresh
// candidate, making deadlines monotonic non-decreasing across recordings.
func mergeDeadline(existing *float64, candidate float64) *float64 {
	if deadlineValid(existing) && *existing > candidate {
		return existing
	}
	return &candidate
}
