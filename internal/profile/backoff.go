package profile

import "time"

// backoffTiers maps the cumulative failure count to the unavailability window
// assigned to that failure. The schedule grows monotonically and plateaus at
// one hour; the same count always yields the same duration.
var backoffTiers = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	30 * time.Minute,
	60 * time.Minute,
}

func backoffDuration(errorCount int) time.Duration {
	if errorCount < 1 {
		errorCount = 1
	}
	if errorCount > len(backoffTiers) {
		errorCount = len(backoffTiers)
	}
	return backoffTiers[errorCount-1]
}

// persistentReasons are failure causes that disable a profile outright
// (structural failures an elapsed cooldown will not fix) instead of cooling
// it down. Everything else is treated as transient.
var persistentReasons = map[string]struct{}{
	"billing":      {},
	"unauthorized": {},
}

func isPersistentReason(reason string) bool {
	_, ok := persistentReasons[reason]
	return ok
}
