package alarm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/netalarm/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRule(tenantID string) *models.AlarmRule {
	return &models.AlarmRule{
		TenantID: tenantID,
		Name:     "OLT outage cascade",
		RuleType: models.RuleTypeCorrelation,
		Enabled:  true,
		Priority: 10,
		Conditions: models.RuleConditions{
			Parent: models.FieldMatchMap{"resource_type": "OLT"},
			Child:  models.FieldMatchMap{"resource_type": "ONU"},
		},
		Actions:    models.RuleActions{SuppressChildAlarms: true},
		TimeWindow: 300,
	}
}

func TestRuleCRUD(t *testing.T) {
	db := newTestDB(t)
	rm := NewRuleManager(db)

	rule := validRule("acme")
	require.NoError(t, rm.CreateRule(rule))
	require.NotZero(t, rule.ID)

	got, err := rm.GetRule(rule.ID)
	require.NoError(t, err)
	assert.Equal(t, "OLT outage cascade", got.Name)
	assert.Equal(t, "OLT", got.Conditions.Parent["resource_type"])

	got.TimeWindow = 600
	require.NoError(t, rm.UpdateRule(got))
	got, err = rm.GetRule(rule.ID)
	require.NoError(t, err)
	assert.Equal(t, 600, got.TimeWindow)

	require.NoError(t, rm.DisableRule(rule.ID))
	enabled := false
	disabled, err := rm.ListRules("acme", &enabled)
	require.NoError(t, err)
	assert.Len(t, disabled, 1)

	require.NoError(t, rm.EnableRule(rule.ID))
	require.NoError(t, rm.DeleteRule(rule.ID))
	_, err = rm.GetRule(rule.ID)
	require.Error(t, err)
}

func TestListRulesOrdersByPriority(t *testing.T) {
	db := newTestDB(t)
	rm := NewRuleManager(db)

	second := validRule("acme")
	second.Name = "later"
	second.Priority = 20
	require.NoError(t, rm.CreateRule(second))

	first := validRule("acme")
	first.Name = "earlier"
	first.Priority = 5
	require.NoError(t, rm.CreateRule(first))

	rules, err := rm.ListRules("acme", nil)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "earlier", rules[0].Name)
	assert.Equal(t, "later", rules[1].Name)
}

func TestValidateRule(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*models.AlarmRule)
		wantErr string
	}{
		{"valid", func(r *models.AlarmRule) {}, ""},
		{"missing tenant", func(r *models.AlarmRule) { r.TenantID = "" }, "tenant"},
		{"missing name", func(r *models.AlarmRule) { r.Name = "" }, "name"},
		{"zero window", func(r *models.AlarmRule) { r.TimeWindow = 0 }, "time window"},
		{"negative window", func(r *models.AlarmRule) { r.TimeWindow = -60 }, "time window"},
		{"no child conditions", func(r *models.AlarmRule) {
			r.Conditions.Child = nil
		}, "child conditions"},
		{"unknown field", func(r *models.AlarmRule) {
			r.Conditions.Child = models.FieldMatchMap{"vendor": "acme-networks"}
		}, "unknown condition field"},
		{"broken pattern", func(r *models.AlarmRule) {
			r.Conditions.Child = models.FieldMatchMap{"alarm_type": "EQUIPMENT_("}
		}, "does not compile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := validRule("acme")
			tt.mutate(rule)
			err := ValidateRule(rule)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateRuleDefaultsRuleType(t *testing.T) {
	rule := validRule("acme")
	rule.RuleType = ""
	require.NoError(t, ValidateRule(rule))
	assert.Equal(t, models.RuleTypeCorrelation, rule.RuleType)
}

func TestCreateDefaultRules(t *testing.T) {
	db := newTestDB(t)
	rm := NewRuleManager(db)

	require.NoError(t, rm.CreateDefaultRules("acme"))

	rules, err := rm.ListRules("acme", nil)
	require.NoError(t, err)
	require.Len(t, rules, 3)
	assert.Equal(t, "OLT outage cascade", rules[0].Name)
	for _, r := range rules {
		assert.True(t, r.Enabled)
		assert.NoError(t, ValidateRule(&r))
	}
}

func TestImportExportRoundTrip(t *testing.T) {
	db := newTestDB(t)
	rm := NewRuleManager(db)
	require.NoError(t, rm.CreateDefaultRules("acme"))

	path := filepath.Join(t.TempDir(), "rules.json")
	require.NoError(t, rm.ExportRulesToFile("acme", path))

	// Imports land in the importing tenant regardless of the file.
	require.NoError(t, rm.ImportRulesFromFile("newco", path))

	imported, err := rm.ListRules("newco", nil)
	require.NoError(t, err)
	require.Len(t, imported, 3)
	assert.Equal(t, "newco", imported[0].TenantID)
	assert.Equal(t, "ONU", imported[0].Conditions.Child["resource_type"])
}

func TestImportIsAtomic(t *testing.T) {
	db := newTestDB(t)
	rm := NewRuleManager(db)

	path := filepath.Join(t.TempDir(), "rules.json")
	bad := `[
	  {"tenant_id":"x","name":"ok","rule_type":"correlation","time_window":60,
	   "conditions":{"child":{"resource_type":"ONU"}}},
	  {"tenant_id":"x","name":"broken","rule_type":"correlation","time_window":0,
	   "conditions":{"child":{"resource_type":"ONU"}}}
	]`
	require.NoError(t, os.WriteFile(path, []byte(bad), 0644))

	require.Error(t, rm.ImportRulesFromFile("acme", path))

	rules, err := rm.ListRules("acme", nil)
	require.NoError(t, err)
	assert.Empty(t, rules)
}
