package profile

import (
	log "github.com/sirupsen/logrus"

	"authpool-go/internal/monitoring"
)

// ClearExpiredCooldowns removes unavailability windows whose deadline has
// passed and reports whether anything changed.
func ClearExpiredCooldowns(store *AuthProfileStore) bool {
	return ClearExpiredCooldownsAt(store, NowMillis())
}

// ClearExpiredCooldownsAt sweeps store in place against an explicit clock.
// Per profile: an expired cooldownUntil is deleted, an expired disabledUntil
// is deleted together with disabledReason, and when a deletion leaves no
// valid deadline behind the failure counters are reset as well. Invalid
// deadline values are not expired, not repaired, and never count as a
// change on their own. lastUsed and lastFailureAt are untouched. Running the
// sweep twice with the same now yields no second change.
func ClearExpiredCooldownsAt(store *AuthProfileStore, now float64) bool {
	if store == nil || len(store.UsageStats) == 0 {
		return false
	}
	changed := false
	for id, stat := range store.UsageStats {
		if stat == nil {
			continue
		}
		modified := false
		if deadlineValid(stat.CooldownUntil) && now >= *stat.CooldownUntil {
			stat.CooldownUntil = nil
			monitoring.CooldownsClearedTotal.WithLabelValues("cooldown").Inc()
			modified = true
		}
		if deadlineValid(stat.DisabledUntil) && now >= *stat.DisabledUntil {
			stat.DisabledUntil = nil
			stat.DisabledReason = ""
			monitoring.CooldownsClearedTotal.WithLabelValues("disable").Inc()
			modified = true
		}
		if !modified {
			continue
		}
		// Counters reset only once no window remains at all, so an expired
		// cooldown under a still-active disable keeps its backoff tier.
		if _, ok := ResolveUnusableUntil(stat); !ok {
			stat.ErrorCount = 0
			stat.FailureCounts = nil
		}
		log.Debugf("profile pool: cleared expired window for %s", id)
		changed = true
	}
	return changed
}
