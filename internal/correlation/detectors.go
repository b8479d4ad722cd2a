package correlation

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/netalarm/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// detectDuplicate runs when no correlation rule matched. It searches for
// an earlier open alarm with the same external alarm id; if one exists
// the original's occurrence count is bumped and the new arrival is
// suppressed as a duplicate, anchored on the original's group when it
// has one or on the original itself when it does not.
func (e *Engine) detectDuplicate(tx *gorm.DB, alarm *models.Alarm) error {
	if alarm.AlarmID == "" {
		return nil
	}

	var existing models.Alarm
	err := tx.
		Where("tenant_id = ? AND alarm_id = ?", alarm.TenantID, alarm.AlarmID).
		Where("id <> ?", alarm.ID).
		Where("status IN ?", []models.AlarmStatus{models.AlarmStatusActive, models.AlarmStatusAcknowledged}).
		Order("first_occurrence asc, id asc").
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("duplicate detection failed: %w", err)
	}

	existing.OccurrenceCount++
	existing.LastOccurrence = e.now()
	if err := tx.Save(&existing).Error; err != nil {
		return fmt.Errorf("failed to bump occurrence count on alarm %d: %w", existing.ID, err)
	}

	alarm.CorrelationAction = models.ActionDuplicate
	alarm.Status = models.AlarmStatusSuppressed
	alarm.ParentAlarmID = &existing.ID
	alarm.IsRootCause = false
	if existing.CorrelationID != nil {
		alarm.CorrelationID = existing.CorrelationID
	} else {
		// The original has no formal group yet; anchor on its row id
		// until recorrelation or a later rule match forms one.
		anchor := strconv.FormatUint(uint64(existing.ID), 10)
		alarm.CorrelationID = &anchor
	}
	if err := tx.Save(alarm).Error; err != nil {
		return fmt.Errorf("failed to mark alarm %d as duplicate: %w", alarm.ID, err)
	}

	e.logger.Debug("duplicate alarm suppressed",
		zap.Uint("alarm_id", alarm.ID),
		zap.Uint("original_id", existing.ID),
		zap.String("external_id", alarm.AlarmID),
	)
	return nil
}

// detectFlapping always runs last, independent of prior outcomes. It
// counts occurrences of the same alarm type on the same resource within
// the trailing flapping window; at or above the threshold the alarm is
// suppressed as noise. With FlappingOverride set
// (the default, matching historical behavior) this overwrites a
// parent/child action established earlier in the same call.
func (e *Engine) detectFlapping(tx *gorm.DB, alarm *models.Alarm) error {
	if alarm.AlarmType == "" || alarm.ResourceID == "" {
		return nil
	}

	now := e.now()
	var count int64
	err := tx.Model(&models.Alarm{}).
		Where("tenant_id = ? AND alarm_type = ? AND resource_id = ?",
			alarm.TenantID, alarm.AlarmType, alarm.ResourceID).
		Where("first_occurrence BETWEEN ? AND ?", now.Add(-e.cfg.FlappingWindow), now).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("flapping detection failed: %w", err)
	}

	if count < int64(e.cfg.FlappingThreshold) {
		return nil
	}
	if alarm.CorrelationAction != models.ActionNone && !e.cfg.FlappingOverride {
		e.logger.Debug("flapping threshold reached but override disabled",
			zap.Uint("alarm_id", alarm.ID),
			zap.String("action", string(alarm.CorrelationAction)),
		)
		return nil
	}
	if alarm.CorrelationAction == models.ActionFlapping && alarm.Status == models.AlarmStatusSuppressed {
		return nil
	}

	alarm.CorrelationAction = models.ActionFlapping
	alarm.Status = models.AlarmStatusSuppressed
	alarm.IsRootCause = false
	if err := tx.Save(alarm).Error; err != nil {
		return fmt.Errorf("failed to mark alarm %d as flapping: %w", alarm.ID, err)
	}

	e.logger.Debug("flapping alarm suppressed",
		zap.Uint("alarm_id", alarm.ID),
		zap.String("alarm_type", alarm.AlarmType),
		zap.String("resource_id", alarm.ResourceID),
		zap.Int64("occurrences", count),
	)
	return nil
}
