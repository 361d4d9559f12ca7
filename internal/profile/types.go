package profile

import (
	"encoding/json"
	"time"
)

// AuthProfileStore is the persisted snapshot of the shared profile pool.
// Profile definitions (key material, endpoints) are opaque to this package;
// only the usage lifecycle recorded alongside them is managed here.
type AuthProfileStore struct {
	Version    int                        `json:"version"`
	Profiles   map[string]json.RawMessage `json:"profiles"`
	UsageStats map[string]*UsageStat      `json:"usageStats,omitempty"`
}

// UsageStat tracks the failure history and unavailability windows of a single
// profile. Timestamps are epoch milliseconds. A nil pointer means the field
// was never set, which is distinct from a stored invalid value: malformed
// numbers (NaN, infinities, zero, negatives) are ignored by deadline logic
// but left in place so external inspection can still see them.
type UsageStat struct {
	CooldownUntil  *float64       `json:"cooldownUntil,omitempty"`
	DisabledUntil  *float64       `json:"disabledUntil,omitempty"`
	DisabledReason string         `json:"disabledReason,omitempty"`
	ErrorCount     int            `json:"errorCount,omitempty"`
	FailureCounts  map[string]int `json:"failureCounts,omitempty"`
	LastUsed       *float64       `json:"lastUsed,omitempty"`
	LastFailureAt  *float64       `json:"lastFailureAt,omitempty"`
}

// Stat returns the usage record for profileID when one exists.
func (s *AuthProfileStore) Stat(profileID string) (*UsageStat, bool) {
	if s == nil || s.UsageStats == nil {
		return nil, false
	}
	stat, ok := s.UsageStats[profileID]
	if !ok || stat == nil {
		return nil, false
	}
	return stat, true
}

// ensureStat returns the usage record for profileID, creating the map and the
// entry on first failure. Entries are never deleted afterwards, only mutated.
func (s *AuthProfileStore) ensureStat(profileID string) *UsageStat {
	if s.UsageStats == nil {
		s.UsageStats = make(map[string]*UsageStat)
	}
	stat, ok := s.UsageStats[profileID]
	if !ok || stat == nil {
		stat = &UsageStat{}
		s.UsageStats[profileID] = stat
	}
	return stat
}

// NowMillis returns the current wall clock as epoch milliseconds, the unit
// every deadline in the store is expressed in.
func NowMillis() float64 {
	return float64(time.Now().UnixMilli())
}
