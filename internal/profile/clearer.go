package profile

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// ClearAuthProfileCooldown wipes profileID's error state immediately:
// both deadlines, the disable reason and the failure counters go; lastUsed
// and lastFailureAt stay. Clearing a profile with no usage record is a
// benign no-op that creates nothing and skips the persist.
func ClearAuthProfileCooldown(ctx context.Context, store LockedStore, profileID string) error {
	return store.WithLock(ctx, func(s *AuthProfileStore) (*AuthProfileStore, error) {
		stat, ok := s.Stat(profileID)
		if !ok {
			return nil, nil
		}
		stat.CooldownUntil = nil
		stat.DisabledUntil = nil
		stat.DisabledReason = ""
		stat.ErrorCount = 0
		stat.FailureCounts = nil
		log.Infof("profile pool: cleared error state for %s", profileID)
		return s, nil
	})
}
