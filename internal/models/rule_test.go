package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A malformed conditions blob must load as an empty map so the engine
// can skip the rule instead of failing the whole rule query.
func TestRuleConditionsScanTolerant(t *testing.T) {
	var c RuleConditions
	require.NoError(t, c.Scan([]byte(`{not json`)))
	assert.Empty(t, c.Parent)
	assert.Empty(t, c.Child)

	require.NoError(t, c.Scan(nil))
	assert.Empty(t, c.Child)

	require.NoError(t, c.Scan(`{"parent":{"resource_type":"OLT"},"child":{"resource_type":"ONU"}}`))
	assert.Equal(t, "OLT", c.Parent["resource_type"])
	assert.Equal(t, "ONU", c.Child["resource_type"])

	err := c.Scan(42)
	require.Error(t, err)
}

func TestRuleActionsScanTolerant(t *testing.T) {
	var a RuleActions
	require.NoError(t, a.Scan([]byte(`broken`)))
	assert.False(t, a.SuppressChildAlarms)

	require.NoError(t, a.Scan([]byte(`{"suppress_child_alarms":true,"notify":true}`)))
	assert.True(t, a.SuppressChildAlarms)
	assert.True(t, a.Notify)
}
