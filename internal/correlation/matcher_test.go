package correlation

import (
	"testing"

	"github.com/netalarm/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		pattern string
		want    bool
	}{
		{"exact literal", "OLT", "OLT", true},
		{"prefix match", "EQUIPMENT_DOWN", "EQUIPMENT_", true},
		{"prefix only anchors at start", "MY_EQUIPMENT_DOWN", "EQUIPMENT_", false},
		{"alternation", "EQUIPMENT_UNREACHABLE", "EQUIPMENT_(DOWN|UNREACHABLE)", true},
		{"alternation miss", "EQUIPMENT_FLAKY", "EQUIPMENT_(DOWN|UNREACHABLE)", false},
		{"character class", "olt-17", "olt-[0-9]+", true},
		{"empty pattern matches anything", "whatever", "", true},
		{"invalid regex falls back to literal", "a(b", "a(b", true},
		{"invalid regex literal miss", "a(bc", "a(b", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchPattern(tt.value, tt.pattern))
		})
	}
}

func TestMatchConditions(t *testing.T) {
	alarm := &models.Alarm{
		TenantID:     "acme",
		AlarmID:      "ONU-1-LOS",
		AlarmType:    "LOS",
		ResourceType: "ONU",
		ResourceID:   "onu-1",
		Severity:     models.SeverityMajor,
		Status:       models.AlarmStatusActive,
	}

	t.Run("all entries must match", func(t *testing.T) {
		assert.True(t, matchConditions(alarm, models.FieldMatchMap{
			"resource_type": "ONU",
			"alarm_type":    "LOS",
		}))
		assert.False(t, matchConditions(alarm, models.FieldMatchMap{
			"resource_type": "ONU",
			"alarm_type":    "LINK_DOWN",
		}))
	})

	t.Run("unknown field never matches", func(t *testing.T) {
		assert.False(t, matchConditions(alarm, models.FieldMatchMap{
			"vendor": "acme-networks",
		}))
	})

	t.Run("empty field value never matches", func(t *testing.T) {
		bare := &models.Alarm{TenantID: "acme"}
		assert.False(t, matchConditions(bare, models.FieldMatchMap{
			"resource_type": ".*",
		}))
	})

	t.Run("empty map matches", func(t *testing.T) {
		assert.True(t, matchConditions(alarm, models.FieldMatchMap{}))
	})
}
