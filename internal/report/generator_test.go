package report

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/netalarm/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Alarm{}))
	return db
}

func seedAlarm(t *testing.T, db *gorm.DB, a models.Alarm) {
	t.Helper()
	if a.TenantID == "" {
		a.TenantID = "acme"
	}
	if a.Status == "" {
		a.Status = models.AlarmStatusActive
	}
	if a.CorrelationAction == "" {
		a.CorrelationAction = models.ActionNone
	}
	require.NoError(t, db.Create(&a).Error)
}

func TestCorrelationSummary(t *testing.T) {
	db := newTestDB(t)
	g := NewGenerator(db)

	group := "grp-1"
	seedAlarm(t, db, models.Alarm{
		AlarmID: "OLT-1-DOWN", AlarmType: "EQUIPMENT_DOWN", ResourceID: "olt-1",
		FirstOccurrence: testNow.Add(-30 * time.Minute),
		CorrelationID:   &group, IsRootCause: true,
		CorrelationAction: models.ActionRootCause,
	})
	for i := 0; i < 3; i++ {
		seedAlarm(t, db, models.Alarm{
			AlarmID: fmt.Sprintf("ONU-%d-LOS", i), AlarmType: "LOS",
			ResourceID:      fmt.Sprintf("onu-%d", i),
			FirstOccurrence: testNow.Add(-25 * time.Minute),
			CorrelationID:   &group, CorrelationAction: models.ActionChildAlarm,
		})
	}
	for i := 0; i < 6; i++ {
		seedAlarm(t, db, models.Alarm{
			AlarmID: "CPE-9-FLAP", AlarmType: "LINK_FLAP", ResourceID: "cpe-9",
			Status:          models.AlarmStatusSuppressed,
			FirstOccurrence: testNow.Add(time.Duration(-20+i) * time.Minute),
			CorrelationAction: models.ActionFlapping,
		})
	}
	seedAlarm(t, db, models.Alarm{
		AlarmID: "MISC-1", AlarmType: "FAN_FAILURE", ResourceID: "sw-3",
		FirstOccurrence: testNow.Add(-10 * time.Minute),
	})
	// Outside the reporting window.
	seedAlarm(t, db, models.Alarm{
		AlarmID: "OLD-1", AlarmType: "LOS", ResourceID: "onu-old",
		FirstOccurrence: testNow.Add(-3 * time.Hour),
	})
	// Another tenant.
	seedAlarm(t, db, models.Alarm{
		TenantID: "other", AlarmID: "X-1", AlarmType: "LOS", ResourceID: "x-1",
		FirstOccurrence: testNow.Add(-10 * time.Minute),
	})

	data, err := g.CorrelationSummary("acme", testNow.Add(-time.Hour), testNow)
	require.NoError(t, err)

	assert.EqualValues(t, 11, data.TotalAlarms)
	assert.EqualValues(t, 1, data.RootCauses)
	assert.EqualValues(t, 3, data.ChildAlarms)
	assert.EqualValues(t, 6, data.Flapping)
	assert.EqualValues(t, 1, data.Uncorrelated)

	require.NotEmpty(t, data.TopFlappingResources)
	assert.Equal(t, "cpe-9", data.TopFlappingResources[0].ResourceID)
	assert.EqualValues(t, 6, data.TopFlappingResources[0].Count)

	require.NotEmpty(t, data.LargestGroups)
	assert.Equal(t, "grp-1", data.LargestGroups[0].CorrelationID)
	assert.Equal(t, "EQUIPMENT_DOWN", data.LargestGroups[0].RootCauseType)
	assert.EqualValues(t, 4, data.LargestGroups[0].Members)
}

func TestRenderHTML(t *testing.T) {
	g := NewGenerator(nil)
	data := &SummaryData{
		TenantID:    "acme",
		StartTime:   testNow.Add(-time.Hour),
		EndTime:     testNow,
		TotalAlarms: 42,
		RootCauses:  3,
		LargestGroups: []GroupSummary{
			{CorrelationID: "grp-1", RootCauseType: "EQUIPMENT_DOWN", Members: 4},
		},
	}

	html, err := g.RenderHTML(data)
	require.NoError(t, err)
	assert.Contains(t, html, "acme")
	assert.Contains(t, html, "42")
	assert.Contains(t, html, "EQUIPMENT_DOWN")
}
