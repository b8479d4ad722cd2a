package correlation

import (
	"fmt"

	"github.com/netalarm/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RecorrelateAll resets the correlation fields of every open alarm of a
// tenant in one committed pass, then replays Correlate for each alarm in
// (first_occurrence, id) order so the replay is reproducible across
// runs. Returns the number of alarms processed.
//
// The reset commits before the replay starts: a caller aborting between
// alarms leaves the processed prefix correctly correlated and the rest
// in the reset state, which is a valid partial result.
func (e *Engine) RecorrelateAll(tenantID string) (int, error) {
	openStatuses := []models.AlarmStatus{models.AlarmStatusActive, models.AlarmStatusAcknowledged}

	var alarms []models.Alarm
	err := e.db.
		Where("tenant_id = ? AND status IN ?", tenantID, openStatuses).
		Order("first_occurrence asc, id asc").
		Find(&alarms).Error
	if err != nil {
		return 0, fmt.Errorf("failed to load alarms for recorrelation: %w", err)
	}

	err = e.db.Transaction(func(tx *gorm.DB) error {
		return tx.Model(&models.Alarm{}).
			Where("tenant_id = ? AND status IN ?", tenantID, openStatuses).
			Updates(map[string]interface{}{
				"correlation_id":     nil,
				"parent_alarm_id":    nil,
				"is_root_cause":      false,
				"correlation_action": models.ActionNone,
			}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to reset correlation state: %w", err)
	}

	for i := range alarms {
		// Reload before replay: an earlier iteration may already have
		// suppressed or re-linked this alarm.
		var alarm models.Alarm
		if err := e.db.First(&alarm, alarms[i].ID).Error; err != nil {
			return i, fmt.Errorf("failed to reload alarm %d: %w", alarms[i].ID, err)
		}
		if err := e.Correlate(&alarm); err != nil {
			return i, fmt.Errorf("recorrelation stopped at alarm %d: %w", alarm.ID, err)
		}
	}

	e.logger.Info("tenant recorrelated",
		zap.String("tenant_id", tenantID),
		zap.Int("alarms", len(alarms)),
	)
	return len(alarms), nil
}
