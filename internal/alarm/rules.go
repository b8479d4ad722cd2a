package alarm

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"

	"github.com/netalarm/internal/models"
	"gorm.io/gorm"
)

// RuleManager is the rule-administration surface: CRUD, enable/disable,
// validation, default seeding and JSON import/export, all tenant-scoped.
type RuleManager struct {
	db *gorm.DB
}

func NewRuleManager(db *gorm.DB) *RuleManager {
	return &RuleManager{db: db}
}

func (rm *RuleManager) CreateRule(rule *models.AlarmRule) error {
	if err := ValidateRule(rule); err != nil {
		return err
	}
	return rm.db.Create(rule).Error
}

func (rm *RuleManager) UpdateRule(rule *models.AlarmRule) error {
	if err := ValidateRule(rule); err != nil {
		return err
	}
	return rm.db.Save(rule).Error
}

func (rm *RuleManager) DeleteRule(id uint) error {
	return rm.db.Delete(&models.AlarmRule{}, id).Error
}

func (rm *RuleManager) GetRule(id uint) (*models.AlarmRule, error) {
	var rule models.AlarmRule
	if err := rm.db.First(&rule, id).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

func (rm *RuleManager) ListRules(tenantID string, enabled *bool) ([]models.AlarmRule, error) {
	query := rm.db.Where("tenant_id = ?", tenantID)
	if enabled != nil {
		query = query.Where("enabled = ?", *enabled)
	}
	var rules []models.AlarmRule
	if err := query.Order("priority asc, id asc").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

func (rm *RuleManager) EnableRule(id uint) error {
	return rm.db.Model(&models.AlarmRule{}).Where("id = ?", id).Update("enabled", true).Error
}

func (rm *RuleManager) DisableRule(id uint) error {
	return rm.db.Model(&models.AlarmRule{}).Where("id = ?", id).Update("enabled", false).Error
}

// ValidateRule rejects rules the engine would silently skip, so defects
// surface at authoring time instead of correlation time.
func ValidateRule(rule *models.AlarmRule) error {
	if rule.TenantID == "" {
		return fmt.Errorf("rule requires a tenant id")
	}
	if rule.Name == "" {
		return fmt.Errorf("rule requires a name")
	}
	if rule.RuleType == "" {
		rule.RuleType = models.RuleTypeCorrelation
	}
	if rule.RuleType == models.RuleTypeCorrelation {
		if rule.TimeWindow <= 0 {
			return fmt.Errorf("rule %q: time window must be positive, got %d", rule.Name, rule.TimeWindow)
		}
		if len(rule.Conditions.Child) == 0 {
			return fmt.Errorf("rule %q: correlation rules require child conditions", rule.Name)
		}
	}
	for _, conds := range []models.FieldMatchMap{rule.Conditions.Parent, rule.Conditions.Child} {
		for field, pattern := range conds {
			if !knownConditionFields[field] {
				return fmt.Errorf("rule %q: unknown condition field %q", rule.Name, field)
			}
			if _, err := regexp.Compile(pattern); err != nil {
				return fmt.Errorf("rule %q: pattern %q for field %q does not compile: %v", rule.Name, pattern, field, err)
			}
		}
	}
	return nil
}

var knownConditionFields = map[string]bool{
	"tenant_id":     true,
	"alarm_id":      true,
	"alarm_type":    true,
	"resource_type": true,
	"resource_id":   true,
	"severity":      true,
	"status":        true,
	"description":   true,
}

// CreateDefaultRules seeds a new tenant with the stock access-network
// cascade rules.
func (rm *RuleManager) CreateDefaultRules(tenantID string) error {
	rules := []models.AlarmRule{
		{
			TenantID:    tenantID,
			Name:        "OLT outage cascade",
			Description: "ONU loss-of-signal alarms under a failed OLT are symptoms, not causes",
			RuleType:    models.RuleTypeCorrelation,
			Priority:    10,
			Enabled:     true,
			Conditions: models.RuleConditions{
				Parent: models.FieldMatchMap{"resource_type": "OLT"},
				Child:  models.FieldMatchMap{"resource_type": "ONU"},
			},
			Actions:    models.RuleActions{SuppressChildAlarms: true, Notify: true},
			TimeWindow: 300,
		},
		{
			TenantID:    tenantID,
			Name:        "Uplink loss cascade",
			Description: "CPE alarms behind a router uplink failure group under the uplink alarm",
			RuleType:    models.RuleTypeCorrelation,
			Priority:    20,
			Enabled:     true,
			Conditions: models.RuleConditions{
				Parent: models.FieldMatchMap{"alarm_type": "LINK_DOWN", "resource_type": "ROUTER"},
				Child:  models.FieldMatchMap{"resource_type": "CPE"},
			},
			Actions:    models.RuleActions{SuppressChildAlarms: true, Notify: true},
			TimeWindow: 180,
		},
		{
			TenantID:    tenantID,
			Name:        "Power failure cascade",
			Description: "Equipment alarms during a site power failure are symptoms of the outage",
			RuleType:    models.RuleTypeCorrelation,
			Priority:    30,
			Enabled:     true,
			Conditions: models.RuleConditions{
				Parent: models.FieldMatchMap{"alarm_type": "POWER_FAILURE"},
				Child:  models.FieldMatchMap{"alarm_type": "EQUIPMENT_(DOWN|UNREACHABLE)"},
			},
			Actions:    models.RuleActions{SuppressChildAlarms: false, Notify: true},
			TimeWindow: 600,
		},
	}

	for i := range rules {
		if err := rm.CreateRule(&rules[i]); err != nil {
			return fmt.Errorf("failed to create default rule %s: %w", rules[i].Name, err)
		}
	}
	return nil
}

// ImportRules loads a batch of rules in one transaction; either every
// rule imports or none does.
func (rm *RuleManager) ImportRules(tenantID string, rules []models.AlarmRule) error {
	return rm.db.Transaction(func(tx *gorm.DB) error {
		for i := range rules {
			rule := &rules[i]
			// Clear ID so new records are created; imports always land
			// in the caller's tenant regardless of what the file says.
			rule.ID = 0
			rule.TenantID = tenantID
			if err := ValidateRule(rule); err != nil {
				return fmt.Errorf("failed to import rule %q: %w", rule.Name, err)
			}
			if err := tx.Create(rule).Error; err != nil {
				return fmt.Errorf("failed to import rule %q: %w", rule.Name, err)
			}
		}
		return nil
	})
}

// ImportRulesFromFile loads rules from a JSON file.
func (rm *RuleManager) ImportRulesFromFile(tenantID, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var rules []models.AlarmRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return fmt.Errorf("failed to parse rules: %w", err)
	}
	return rm.ImportRules(tenantID, rules)
}

// ExportRulesToFile writes a tenant's rules to a JSON file.
func (rm *RuleManager) ExportRulesToFile(tenantID, filename string) error {
	rules, err := rm.ListRules(tenantID, nil)
	if err != nil {
		return fmt.Errorf("failed to fetch rules: %w", err)
	}

	data, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal rules: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
