package profile

import "math"

// deadlineValid reports whether an epoch-ms timestamp can drive deadline
// logic: present, finite and strictly positive. Anything else counts as
// never set and is neither compared against now nor cleared.
func deadlineValid(ts *float64) bool {
	if ts == nil {
		return false
	}
	v := *ts
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

// ResolveUnusableUntil returns the later of the valid cooldown/disable
// deadlines on stat, or ok=false when neither is valid. The comparison is
// time-independent; callers bring their own notion of now.
func ResolveUnusableUntil(stat *UsageStat) (float64, bool) {
	if stat == nil {
		return 0, false
	}
	until := math.Inf(-1)
	found := false
	if deadlineValid(stat.CooldownUntil) {
		until = *stat.CooldownUntil
		found = true
	}
	if deadlineValid(stat.DisabledUntil) && *stat.DisabledUntil > until {
		until = *stat.DisabledUntil
		found = true
	}
	if !found {
		return 0, false
	}
	return until, true
}

// IsProfileInCooldown reports whether profileID is currently inside an
// unavailability window, transient or persistent.
func IsProfileInCooldown(store *AuthProfileStore, profileID string) bool {
	return IsProfileInCooldownAt(store, profileID, NowMillis())
}

// IsProfileInCooldownAt is IsProfileInCooldown against an explicit clock.
// A deadline equal to now is already expired, not blocking.
func IsProfileInCooldownAt(store *AuthProfileStore, profileID string, now float64) bool {
	stat, ok := store.Stat(profileID)
	if !ok {
		return false
	}
	until, ok := ResolveUnusableUntil(stat)
	return ok && until > now
}
