package models

import (
	"time"

	"gorm.io/gorm"
)

type AlarmStatus string

const (
	AlarmStatusActive       AlarmStatus = "ACTIVE"
	AlarmStatusAcknowledged AlarmStatus = "ACKNOWLEDGED"
	AlarmStatusSuppressed   AlarmStatus = "SUPPRESSED"
	AlarmStatusCleared      AlarmStatus = "CLEARED"
)

type AlarmSeverity string

const (
	SeverityCritical AlarmSeverity = "CRITICAL"
	SeverityMajor    AlarmSeverity = "MAJOR"
	SeverityMinor    AlarmSeverity = "MINOR"
	SeverityWarning  AlarmSeverity = "WARNING"
	SeverityInfo     AlarmSeverity = "INFO"
)

type CorrelationAction string

const (
	ActionNone       CorrelationAction = "NONE"
	ActionRootCause  CorrelationAction = "ROOT_CAUSE"
	ActionChildAlarm CorrelationAction = "CHILD_ALARM"
	ActionDuplicate  CorrelationAction = "DUPLICATE"
	ActionFlapping   CorrelationAction = "FLAPPING"
)

// Alarm is a normalized fault record surfaced by a network-monitoring
// collaborator (optical-network manager, CPE manager, SNMP poller).
// AlarmID is the vendor-side identifier and repeats across occurrences
// of the same condition; ID is the database key.
type Alarm struct {
	gorm.Model
	TenantID        string        `json:"tenant_id" gorm:"index;not null"`
	AlarmID         string        `json:"alarm_id" gorm:"index"`
	AlarmType       string        `json:"alarm_type"`
	ResourceType    string        `json:"resource_type"`
	ResourceID      string        `json:"resource_id" gorm:"index"`
	Severity        AlarmSeverity `json:"severity"`
	Description     string        `json:"description"`
	Status          AlarmStatus   `json:"status" gorm:"index;default:ACTIVE"`
	FirstOccurrence time.Time     `json:"first_occurrence" gorm:"index"`
	LastOccurrence  time.Time     `json:"last_occurrence"`
	OccurrenceCount int           `json:"occurrence_count" gorm:"default:1"`

	// Correlation fields, owned by the correlation engine. A group of
	// related alarms shares one CorrelationID; exactly one member of a
	// group carries IsRootCause.
	CorrelationID     *string           `json:"correlation_id,omitempty" gorm:"index"`
	ParentAlarmID     *uint             `json:"parent_alarm_id,omitempty"`
	IsRootCause       bool              `json:"is_root_cause" gorm:"default:false"`
	CorrelationAction CorrelationAction `json:"correlation_action" gorm:"default:NONE"`

	ClearedAt      *time.Time `json:"cleared_at,omitempty"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
}

// IsOpen reports whether the alarm still participates in correlation.
func (a *Alarm) IsOpen() bool {
	return a.Status == AlarmStatusActive || a.Status == AlarmStatusAcknowledged
}

// MatchValue returns the alarm's value for a rule condition field name.
// The second return is false for unknown fields and for empty values:
// missing data never wildcards a match.
func (a *Alarm) MatchValue(field string) (string, bool) {
	var v string
	switch field {
	case "tenant_id":
		v = a.TenantID
	case "alarm_id":
		v = a.AlarmID
	case "alarm_type":
		v = a.AlarmType
	case "resource_type":
		v = a.ResourceType
	case "resource_id":
		v = a.ResourceID
	case "severity":
		v = string(a.Severity)
	case "status":
		v = string(a.Status)
	case "description":
		v = a.Description
	default:
		return "", false
	}
	if v == "" {
		return "", false
	}
	return v, true
}
