package correlation

import (
	"testing"
	"time"

	"github.com/netalarm/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Clearing a root cause cascades to every non-cleared member of its
// group with an identical cleared_at.
func TestClearRootCauseCascades(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db, DefaultConfig())
	createRule(t, db, oltCascadeRule(false))

	parent := createAlarm(t, db, models.Alarm{
		AlarmID: "OLT-1-DOWN", AlarmType: "EQUIPMENT_DOWN",
		ResourceType: "OLT", ResourceID: "olt-1",
		FirstOccurrence: testNow.Add(-120 * time.Second),
	})
	childA := createAlarm(t, db, models.Alarm{
		AlarmID: "ONU-1-LOS", AlarmType: "LOS",
		ResourceType: "ONU", ResourceID: "onu-1",
		FirstOccurrence: testNow.Add(-60 * time.Second),
	})
	childB := createAlarm(t, db, models.Alarm{
		AlarmID: "ONU-2-LOS", AlarmType: "LOS",
		ResourceType: "ONU", ResourceID: "onu-2",
		FirstOccurrence: testNow.Add(-30 * time.Second),
	})
	require.NoError(t, engine.Correlate(childA))
	require.NoError(t, engine.Correlate(childB))

	require.NoError(t, engine.ClearCorrelation(parent.ID))

	parent = reload(t, db, parent.ID)
	childA = reload(t, db, childA.ID)
	childB = reload(t, db, childB.ID)

	assert.Equal(t, models.AlarmStatusCleared, parent.Status)
	assert.Equal(t, models.AlarmStatusCleared, childA.Status)
	assert.Equal(t, models.AlarmStatusCleared, childB.Status)

	require.NotNil(t, parent.ClearedAt)
	require.NotNil(t, childA.ClearedAt)
	require.NotNil(t, childB.ClearedAt)
	assert.True(t, parent.ClearedAt.Equal(*childA.ClearedAt))
	assert.True(t, parent.ClearedAt.Equal(*childB.ClearedAt))
}

// Clearing a non-root member never cascades.
func TestClearChildClearsOnlyItself(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db, DefaultConfig())
	createRule(t, db, oltCascadeRule(false))

	parent := createAlarm(t, db, models.Alarm{
		AlarmID: "OLT-1-DOWN", AlarmType: "EQUIPMENT_DOWN",
		ResourceType: "OLT", ResourceID: "olt-1",
		FirstOccurrence: testNow.Add(-60 * time.Second),
	})
	child := createAlarm(t, db, models.Alarm{
		AlarmID: "ONU-1-LOS", AlarmType: "LOS",
		ResourceType: "ONU", ResourceID: "onu-1",
		FirstOccurrence: testNow,
	})
	require.NoError(t, engine.Correlate(child))

	require.NoError(t, engine.ClearCorrelation(child.ID))

	parent = reload(t, db, parent.ID)
	child = reload(t, db, child.ID)

	assert.Equal(t, models.AlarmStatusCleared, child.Status)
	assert.NotNil(t, child.ClearedAt)
	assert.Equal(t, models.AlarmStatusActive, parent.Status)
	assert.Nil(t, parent.ClearedAt)
}

func TestClearUnknownAlarmIsNoOp(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db, DefaultConfig())

	require.NoError(t, engine.ClearCorrelation(99999))
}

// An alarm that was cleared before the cascade keeps its original
// cleared_at.
func TestClearCascadeSkipsAlreadyCleared(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db, DefaultConfig())
	createRule(t, db, oltCascadeRule(false))

	parent := createAlarm(t, db, models.Alarm{
		AlarmID: "OLT-1-DOWN", AlarmType: "EQUIPMENT_DOWN",
		ResourceType: "OLT", ResourceID: "olt-1",
		FirstOccurrence: testNow.Add(-120 * time.Second),
	})
	child := createAlarm(t, db, models.Alarm{
		AlarmID: "ONU-1-LOS", AlarmType: "LOS",
		ResourceType: "ONU", ResourceID: "onu-1",
		FirstOccurrence: testNow.Add(-60 * time.Second),
	})
	require.NoError(t, engine.Correlate(child))

	earlier := testNow.Add(-10 * time.Second)
	require.NoError(t, db.Model(&models.Alarm{}).Where("id = ?", child.ID).
		Updates(map[string]interface{}{
			"status":     models.AlarmStatusCleared,
			"cleared_at": earlier,
		}).Error)

	require.NoError(t, engine.ClearCorrelation(parent.ID))

	child = reload(t, db, child.ID)
	require.NotNil(t, child.ClearedAt)
	assert.True(t, child.ClearedAt.Equal(earlier))
}
