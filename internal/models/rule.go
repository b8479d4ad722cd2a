package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
)

// RuleTypeCorrelation is the only rule type the correlation engine
// processes; other values are reserved for future rule families
// (thresholding, enrichment) and are skipped.
const RuleTypeCorrelation = "correlation"

// FieldMatchMap maps an Alarm field name to either a literal value or a
// prefix-anchored regular expression, depending on where it is used:
// rule gates match by regex prefix, parent/child resolution matches by
// exact equality.
type FieldMatchMap map[string]string

// RuleConditions describes which alarms a correlation rule applies to.
// Child gates rule applicability for an incoming alarm; Parent describes
// the root-cause alarm the rule tries to attach it to.
type RuleConditions struct {
	Parent FieldMatchMap `json:"parent,omitempty"`
	Child  FieldMatchMap `json:"child,omitempty"`
}

// RuleActions describes what to do with alarms matched by a rule.
type RuleActions struct {
	SuppressChildAlarms bool `json:"suppress_child_alarms"`
	Notify              bool `json:"notify"`
}

func (c RuleConditions) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan tolerates malformed condition blobs: a rule with an unreadable
// condition map loads empty and is skipped by the engine instead of
// failing the whole rule load.
func (c *RuleConditions) Scan(value interface{}) error {
	b, err := blobBytes(value)
	if err != nil {
		return err
	}
	if len(b) == 0 || json.Unmarshal(b, c) != nil {
		*c = RuleConditions{}
	}
	return nil
}

func (a RuleActions) Value() (driver.Value, error) {
	return json.Marshal(a)
}

func (a *RuleActions) Scan(value interface{}) error {
	b, err := blobBytes(value)
	if err != nil {
		return err
	}
	if len(b) == 0 || json.Unmarshal(b, a) != nil {
		*a = RuleActions{}
	}
	return nil
}

func blobBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported column type %T", value)
	}
}

// AlarmRule is a tenant-scoped correlation rule. Rules are evaluated in
// ascending Priority order; the first rule that establishes a
// relationship wins.
type AlarmRule struct {
	gorm.Model
	TenantID    string         `json:"tenant_id" gorm:"index;not null"`
	Name        string         `json:"name" gorm:"not null"`
	Description string         `json:"description"`
	RuleType    string         `json:"rule_type" gorm:"default:correlation"`
	Enabled     bool           `json:"enabled" gorm:"default:true"`
	Priority    int            `json:"priority" gorm:"not null;default:100"`
	Conditions  RuleConditions `json:"conditions" gorm:"type:text"`
	Actions     RuleActions    `json:"actions" gorm:"type:text"`
	TimeWindow  int            `json:"time_window" gorm:"not null;default:300"` // seconds
}
