package correlation

import (
	"fmt"
	"testing"
	"time"

	"github.com/netalarm/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pairing struct {
	child  uint
	parent uint
}

func collectPairings(t *testing.T, alarms []models.Alarm) []pairing {
	t.Helper()
	var pairs []pairing
	for _, a := range alarms {
		if a.ParentAlarmID != nil {
			pairs = append(pairs, pairing{child: a.ID, parent: *a.ParentAlarmID})
		}
	}
	return pairs
}

// Recorrelation resets every correlation field and reproduces the
// original pairing set when replayed in chronological order.
func TestRecorrelateReproducesPairings(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db, DefaultConfig())
	createRule(t, db, oltCascadeRule(false))

	createAlarm(t, db, models.Alarm{
		AlarmID: "OLT-1-DOWN", AlarmType: "EQUIPMENT_DOWN",
		ResourceType: "OLT", ResourceID: "olt-1",
		FirstOccurrence: testNow.Add(-240 * time.Second),
	})
	for i := 0; i < 4; i++ {
		a := createAlarm(t, db, models.Alarm{
			AlarmID:   fmt.Sprintf("ONU-%d-LOS", i),
			AlarmType: "LOS", ResourceType: "ONU", ResourceID: fmt.Sprintf("onu-%d", i),
			FirstOccurrence: testNow.Add(time.Duration(-200+40*i) * time.Second),
		})
		require.NoError(t, engine.Correlate(a))
	}

	var before []models.Alarm
	require.NoError(t, db.Order("id asc").Find(&before).Error)
	originalPairs := collectPairings(t, before)
	require.NotEmpty(t, originalPairs)

	count, err := engine.RecorrelateAll("acme")
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	var after []models.Alarm
	require.NoError(t, db.Order("id asc").Find(&after).Error)
	assert.Equal(t, originalPairs, collectPairings(t, after))

	// The replay minted a fresh group id but kept exactly one root.
	var roots int64
	require.NoError(t, db.Model(&models.Alarm{}).Where("is_root_cause = ?", true).Count(&roots).Error)
	assert.EqualValues(t, 1, roots)
}

// Stale correlation state is wiped by the reset pass even for alarms
// the replay no longer correlates.
func TestRecorrelateResetsStaleState(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db, DefaultConfig())

	bogusGroup := "stale-group"
	bogusParent := uint(12345)
	a := createAlarm(t, db, models.Alarm{
		AlarmID: "LONELY-1", AlarmType: "EQUIPMENT_DOWN",
		ResourceType: "OLT", ResourceID: "olt-9",
		FirstOccurrence:   testNow.Add(-60 * time.Second),
		CorrelationID:     &bogusGroup,
		ParentAlarmID:     &bogusParent,
		IsRootCause:       true,
		CorrelationAction: models.ActionChildAlarm,
	})

	count, err := engine.RecorrelateAll("acme")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	a = reload(t, db, a.ID)
	assert.Nil(t, a.CorrelationID)
	assert.Nil(t, a.ParentAlarmID)
	assert.False(t, a.IsRootCause)
	assert.Equal(t, models.ActionNone, a.CorrelationAction)
}

// Suppressed and cleared alarms are outside the recorrelation load set.
func TestRecorrelateOnlyTouchesOpenAlarms(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db, DefaultConfig())

	keep := "frozen-group"
	suppressed := createAlarm(t, db, models.Alarm{
		AlarmID: "DUP-1", AlarmType: "LOS",
		ResourceType: "ONU", ResourceID: "onu-1",
		Status:            models.AlarmStatusSuppressed,
		FirstOccurrence:   testNow.Add(-60 * time.Second),
		CorrelationID:     &keep,
		CorrelationAction: models.ActionDuplicate,
	})
	createAlarm(t, db, models.Alarm{
		AlarmID: "ACT-1", AlarmType: "LOS",
		ResourceType: "ONU", ResourceID: "onu-2",
		FirstOccurrence: testNow.Add(-30 * time.Second),
	})

	count, err := engine.RecorrelateAll("acme")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	suppressed = reload(t, db, suppressed.ID)
	require.NotNil(t, suppressed.CorrelationID)
	assert.Equal(t, keep, *suppressed.CorrelationID)
	assert.Equal(t, models.ActionDuplicate, suppressed.CorrelationAction)
}

func TestRecorrelateEmptyTenant(t *testing.T) {
	db := newTestDB(t)
	engine := newTestEngine(t, db, DefaultConfig())

	count, err := engine.RecorrelateAll("nobody")
	require.NoError(t, err)
	assert.Zero(t, count)
}
