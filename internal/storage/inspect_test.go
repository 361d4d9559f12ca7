package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInspectUsageStatShowsMalformedValues(t *testing.T) {
	raw := []byte(`{
		"version": 1,
		"profiles": {"gemini:alpha": {}},
		"usageStats": {
			"gemini:alpha": {
				"cooldownUntil": 0,
				"disabledUntil": -17,
				"disabledReason": "billing",
				"errorCount": 3,
				"failureCounts": {"billing": 3},
				"lastFailureAt": 1700000000000
			}
		}
	}`)

	got := InspectUsageStat(raw, "gemini:alpha")
	assert.True(t, got.Present)
	assert.Equal(t, "0", got.CooldownUntil)
	assert.Equal(t, "-17", got.DisabledUntil)
	assert.Equal(t, `"billing"`, got.DisabledReason)
	assert.Equal(t, "3", got.ErrorCount)
	assert.Equal(t, `{"billing": 3}`, got.FailureCounts)
	assert.Equal(t, "1700000000000", got.LastFailureAt)
	assert.Empty(t, got.LastUsed)
}

func TestInspectUsageStatMissingProfile(t *testing.T) {
	raw := []byte(`{"version":1,"profiles":{},"usageStats":{"a:b":{}}}`)

	assert.False(t, InspectUsageStat(raw, "a:c").Present)
	assert.False(t, InspectUsageStat(nil, "a:b").Present)
}

func TestInspectUsageStatEscapesPathCharacters(t *testing.T) {
	raw := []byte(`{"usageStats":{"prov:v1.5": {"errorCount": 2}}}`)

	got := InspectUsageStat(raw, "prov:v1.5")
	assert.True(t, got.Present)
	assert.Equal(t, "2", got.ErrorCount)
}
