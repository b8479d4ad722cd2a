package correlation

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/netalarm/internal/models"
	"gorm.io/gorm"
)

// linkToParent attaches the alarm to an already-active root cause. The
// parent's existing correlation id is reused when present; otherwise a
// new group id is minted and the parent is promoted to root cause. A
// group's correlation id, once assigned, is never re-minted: new joiners
// always reuse it.
func (e *Engine) linkToParent(tx *gorm.DB, alarm, parent *models.Alarm, rule *models.AlarmRule) error {
	if parent.CorrelationID == nil {
		id := uuid.NewString()
		parent.CorrelationID = &id
		// Promotion only applies to alarms that are nobody's child; an
		// alarm with a parent link already carries its group's id and
		// never reaches this branch. Keeps root-cause and parent link
		// mutually exclusive so the graph stays acyclic.
		if parent.ParentAlarmID == nil {
			parent.IsRootCause = true
		}
		if err := tx.Save(parent).Error; err != nil {
			return fmt.Errorf("failed to promote parent alarm %d: %w", parent.ID, err)
		}
	}

	alarm.CorrelationID = parent.CorrelationID
	alarm.ParentAlarmID = &parent.ID
	alarm.IsRootCause = false
	alarm.CorrelationAction = models.ActionChildAlarm
	if rule.Actions.SuppressChildAlarms {
		alarm.Status = models.AlarmStatusSuppressed
	}
	if err := tx.Save(alarm).Error; err != nil {
		return fmt.Errorf("failed to link alarm %d to parent %d: %w", alarm.ID, parent.ID, err)
	}
	return nil
}

// markRootCause makes the alarm the root cause of the resolved children.
// If the alarm already roots a group its id is reused, otherwise a new
// one is minted. Children that are themselves root causes of another
// group are left alone so no group ever ends up with two roots.
func (e *Engine) markRootCause(tx *gorm.DB, alarm *models.Alarm, children []models.Alarm, rule *models.AlarmRule) error {
	var groupID string
	if alarm.CorrelationID != nil && alarm.IsRootCause {
		groupID = *alarm.CorrelationID
	} else {
		groupID = uuid.NewString()
	}

	alarm.CorrelationID = &groupID
	alarm.ParentAlarmID = nil
	alarm.IsRootCause = true
	alarm.CorrelationAction = models.ActionRootCause
	if err := tx.Save(alarm).Error; err != nil {
		return fmt.Errorf("failed to mark alarm %d as root cause: %w", alarm.ID, err)
	}

	for i := range children {
		child := &children[i]
		if child.IsRootCause {
			continue
		}
		child.CorrelationID = &groupID
		child.ParentAlarmID = &alarm.ID
		child.CorrelationAction = models.ActionChildAlarm
		if rule.Actions.SuppressChildAlarms {
			child.Status = models.AlarmStatusSuppressed
		}
		if err := tx.Save(child).Error; err != nil {
			return fmt.Errorf("failed to attach child alarm %d: %w", child.ID, err)
		}
	}
	return nil
}
