package correlation

import (
	"errors"
	"fmt"
	"time"

	"github.com/netalarm/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// conditionColumns whitelists the alarm fields a parent/child condition
// map may reference, keyed by condition field name. Unknown fields make a
// rule unresolvable rather than leaking into the query.
var conditionColumns = map[string]string{
	"alarm_id":      "alarm_id",
	"alarm_type":    "alarm_type",
	"resource_type": "resource_type",
	"resource_id":   "resource_id",
	"severity":      "severity",
	"status":        "status",
}

// findParent searches for the alarm's root cause: the earliest open alarm
// of the same tenant whose first occurrence falls within the rule's time
// window looking back from now, matching every parent condition field by
// exact equality. A rule with no parent conditions is purely
// child-detecting and resolves no parent. Ties on first occurrence break
// by id.
func (e *Engine) findParent(tx *gorm.DB, alarm *models.Alarm, rule *models.AlarmRule) (*models.Alarm, error) {
	if len(rule.Conditions.Parent) == 0 {
		return nil, nil
	}

	now := e.now()
	window := time.Duration(rule.TimeWindow) * time.Second
	q := tx.
		Where("tenant_id = ?", alarm.TenantID).
		Where("id <> ?", alarm.ID).
		Where("status IN ?", []models.AlarmStatus{models.AlarmStatusActive, models.AlarmStatusAcknowledged}).
		Where("first_occurrence BETWEEN ? AND ?", now.Add(-window), now)

	q, ok := applyExactConditions(q, rule.Conditions.Parent)
	if !ok {
		e.logger.Warn("skipping rule with unknown parent condition field",
			zap.Uint("rule_id", rule.ID),
			zap.String("rule", rule.Name),
		)
		return nil, nil
	}

	var parent models.Alarm
	err := q.Order("first_occurrence asc, id asc").First(&parent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parent resolution failed for rule %q: %w", rule.Name, err)
	}
	return &parent, nil
}

// findChildren mirrors findParent looking forward: open alarms of the
// same tenant, excluding self, whose first occurrence falls within the
// rule's time window after this alarm's first occurrence, matching every
// child condition field by exact equality. Results are ordered by
// (first_occurrence, id) for deterministic downstream processing.
func (e *Engine) findChildren(tx *gorm.DB, alarm *models.Alarm, rule *models.AlarmRule) ([]models.Alarm, error) {
	window := time.Duration(rule.TimeWindow) * time.Second
	q := tx.
		Where("tenant_id = ?", alarm.TenantID).
		Where("id <> ?", alarm.ID).
		Where("status IN ?", []models.AlarmStatus{models.AlarmStatusActive, models.AlarmStatusAcknowledged}).
		Where("first_occurrence BETWEEN ? AND ?", alarm.FirstOccurrence, alarm.FirstOccurrence.Add(window))

	q, ok := applyExactConditions(q, rule.Conditions.Child)
	if !ok {
		e.logger.Warn("skipping rule with unknown child condition field",
			zap.Uint("rule_id", rule.ID),
			zap.String("rule", rule.Name),
		)
		return nil, nil
	}

	var children []models.Alarm
	err := q.Order("first_occurrence asc, id asc").Find(&children).Error
	if err != nil {
		return nil, fmt.Errorf("child resolution failed for rule %q: %w", rule.Name, err)
	}
	return children, nil
}

// applyExactConditions adds an exact-equality predicate per condition
// entry. Returns false if any field is not a known alarm column.
func applyExactConditions(q *gorm.DB, conds models.FieldMatchMap) (*gorm.DB, bool) {
	for field, want := range conds {
		column, ok := conditionColumns[field]
		if !ok {
			return q, false
		}
		q = q.Where(column+" = ?", want)
	}
	return q, true
}
