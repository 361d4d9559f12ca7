package storage

import (
	"strings"

	"github.com/tidwall/gjson"
)

// RawUsageStat carries the persisted usage fields for one profile exactly as
// stored, as raw JSON fragments. Deadline values the typed model treats as
// invalid (zero, negatives, out-of-range numbers) are still visible here.
type RawUsageStat struct {
	Present        bool   `json:"present"`
	CooldownUntil  string `json:"cooldownUntil,omitempty"`
	DisabledUntil  string `json:"disabledUntil,omitempty"`
	DisabledReason string `json:"disabledReason,omitempty"`
	ErrorCount     string `json:"errorCount,omitempty"`
	FailureCounts  string `json:"failureCounts,omitempty"`
	LastUsed       string `json:"lastUsed,omitempty"`
	LastFailureAt  string `json:"lastFailureAt,omitempty"`
}

// InspectUsageStat reads profileID's usage record straight out of the raw
// snapshot bytes, bypassing numeric decoding.
func InspectUsageStat(raw []byte, profileID string) RawUsageStat {
	if len(raw) == 0 {
		return RawUsageStat{}
	}
	stat := gjson.GetBytes(raw, "usageStats."+escapePathKey(profileID))
	if !stat.Exists() {
		return RawUsageStat{}
	}
	return RawUsageStat{
		Present:        true,
		CooldownUntil:  stat.Get("cooldownUntil").Raw,
		DisabledUntil:  stat.Get("disabledUntil").Raw,
		DisabledReason: stat.Get("disabledReason").Raw,
		ErrorCount:     stat.Get("errorCount").Raw,
		FailureCounts:  stat.Get("failureCounts").Raw,
		LastUsed:       stat.Get("lastUsed").Raw,
		LastFailureAt:  stat.Get("lastFailureAt").Raw,
	}
}

// escapePathKey guards profile ids against gjson path syntax. Ids follow
// "<provider>:<label>" and colons are safe, but labels are caller-supplied.
func escapePathKey(key string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`)
	return r.Replace(key)
}
