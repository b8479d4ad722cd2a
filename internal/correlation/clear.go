package correlation

import (
	"errors"
	"fmt"

	"github.com/netalarm/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ClearCorrelation clears the target alarm and, when the target is the
// root cause of a group, cascades the clear to every non-cleared member
// of its group with an identical cleared_at. Clearing a non-root alarm
// affects only itself. Clearing an unknown alarm id is a no-op.
func (e *Engine) ClearCorrelation(alarmID uint) error {
	return e.db.Transaction(func(tx *gorm.DB) error {
		var alarm models.Alarm
		err := tx.First(&alarm, alarmID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load alarm %d: %w", alarmID, err)
		}

		now := e.now()
		alarm.Status = models.AlarmStatusCleared
		alarm.ClearedAt = &now
		if err := tx.Save(&alarm).Error; err != nil {
			return fmt.Errorf("failed to clear alarm %d: %w", alarmID, err)
		}

		if !alarm.IsRootCause || alarm.CorrelationID == nil {
			return nil
		}

		res := tx.Model(&models.Alarm{}).
			Where("tenant_id = ? AND correlation_id = ?", alarm.TenantID, *alarm.CorrelationID).
			Where("id <> ?", alarm.ID).
			Where("status <> ?", models.AlarmStatusCleared).
			Updates(map[string]interface{}{
				"status":     models.AlarmStatusCleared,
				"cleared_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to cascade clear for group %s: %w", *alarm.CorrelationID, res.Error)
		}

		e.logger.Info("root cause cleared with cascade",
			zap.Uint("alarm_id", alarm.ID),
			zap.String("correlation_id", *alarm.CorrelationID),
			zap.Int64("cascaded", res.RowsAffected),
		)
		return nil
	})
}

// CorrelationGroup returns the alarms sharing a correlation id, root
// cause first, then members ordered by first occurrence.
func (e *Engine) CorrelationGroup(correlationID string) ([]models.Alarm, error) {
	var group []models.Alarm
	err := e.db.
		Where("correlation_id = ?", correlationID).
		Order("is_root_cause desc, first_occurrence asc, id asc").
		Find(&group).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load correlation group %s: %w", correlationID, err)
	}
	return group, nil
}
