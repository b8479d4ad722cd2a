// Package correlation implements the alarm correlation engine. For each
// incoming alarm it decides whether the alarm is a new independent
// condition, a symptom of an already-active root cause, the root cause
// of already-active symptoms, a duplicate of an unresolved alarm, or
// transient flapping noise, and persists the resulting relationship
// mutations atomically.
//
// The engine performs no internal locking. Callers must serialize
// Correlate invocations per tenant (see alarm.Service); calls for
// different tenants are independent.
package correlation

import (
	"fmt"
	"time"

	"github.com/netalarm/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Default flapping detection parameters.
const (
	DefaultFlappingWindow    = 15 * time.Minute
	DefaultFlappingThreshold = 5
)

// Config holds the engine's tunables. FlappingOverride preserves the
// historical behavior where flapping detection, which always runs last,
// may overwrite a parent/child relationship established earlier in the
// same call.
type Config struct {
	FlappingWindow    time.Duration
	FlappingThreshold int
	FlappingOverride  bool
}

// DefaultConfig returns the engine defaults: a 15-minute flapping window,
// threshold of 5 occurrences, override enabled.
func DefaultConfig() Config {
	return Config{
		FlappingWindow:    DefaultFlappingWindow,
		FlappingThreshold: DefaultFlappingThreshold,
		FlappingOverride:  true,
	}
}

// Option configures the Engine. Used primarily for testing.
type Option func(*Engine)

// WithNowFunc overrides the time source for testing.
func WithNowFunc(fn func() time.Time) Option {
	return func(e *Engine) {
		e.now = fn
	}
}

type Engine struct {
	db     *gorm.DB
	logger *zap.Logger
	cfg    Config
	now    func() time.Time
}

func New(db *gorm.DB, logger *zap.Logger, cfg Config, opts ...Option) *Engine {
	if cfg.FlappingWindow <= 0 {
		cfg.FlappingWindow = DefaultFlappingWindow
	}
	if cfg.FlappingThreshold <= 0 {
		cfg.FlappingThreshold = DefaultFlappingThreshold
	}
	e := &Engine{
		db:     db,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Correlate establishes the correlation relationships for a persisted
// alarm in status ACTIVE or ACKNOWLEDGED. Rules are evaluated in
// ascending priority order and the first rule that establishes a
// relationship wins; duplicate detection runs only when no rule matched;
// flapping detection always runs last. All mutations of this call are
// committed in one transaction.
//
// Correlate is idempotent: re-running it on an alarm whose relationships
// are already established, with no new siblings arrived, produces no
// further mutation.
func (e *Engine) Correlate(alarm *models.Alarm) error {
	if alarm == nil || alarm.ID == 0 {
		return fmt.Errorf("correlate: alarm must be persisted before correlation")
	}

	return e.db.Transaction(func(tx *gorm.DB) error {
		rules, err := e.loadRules(tx, alarm.TenantID)
		if err != nil {
			return err
		}

		for i := range rules {
			rule := &rules[i]
			if !e.ruleApplies(rule, alarm) {
				continue
			}

			parent, err := e.findParent(tx, alarm, rule)
			if err != nil {
				return err
			}
			if parent != nil {
				if err := e.linkToParent(tx, alarm, parent, rule); err != nil {
					return err
				}
				e.logger.Debug("alarm linked to parent",
					zap.Uint("alarm_id", alarm.ID),
					zap.Uint("parent_id", parent.ID),
					zap.String("rule", rule.Name),
				)
				break
			}

			children, err := e.findChildren(tx, alarm, rule)
			if err != nil {
				return err
			}
			if len(children) > 0 {
				if err := e.markRootCause(tx, alarm, children, rule); err != nil {
					return err
				}
				e.logger.Debug("alarm marked as root cause",
					zap.Uint("alarm_id", alarm.ID),
					zap.Int("children", len(children)),
					zap.String("rule", rule.Name),
				)
				break
			}
		}

		if alarm.CorrelationAction == models.ActionNone {
			if err := e.detectDuplicate(tx, alarm); err != nil {
				return err
			}
		}

		return e.detectFlapping(tx, alarm)
	})
}

// loadRules returns the tenant's enabled correlation rules in ascending
// priority order. Ties on priority break by id so evaluation order is
// deterministic.
func (e *Engine) loadRules(tx *gorm.DB, tenantID string) ([]models.AlarmRule, error) {
	var rules []models.AlarmRule
	err := tx.
		Where("tenant_id = ? AND enabled = ?", tenantID, true).
		Order("priority asc, id asc").
		Find(&rules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load correlation rules: %w", err)
	}
	return rules, nil
}

// ruleApplies gates rule applicability: the rule must be a correlation
// rule with a sane time window and the alarm must satisfy its child
// condition map. Malformed rules are skipped, never fatal.
func (e *Engine) ruleApplies(rule *models.AlarmRule, alarm *models.Alarm) bool {
	if rule.RuleType != models.RuleTypeCorrelation {
		return false
	}
	if rule.TimeWindow <= 0 {
		e.logger.Warn("skipping rule with invalid time window",
			zap.Uint("rule_id", rule.ID),
			zap.String("rule", rule.Name),
			zap.Int("time_window", rule.TimeWindow),
		)
		return false
	}
	if len(rule.Conditions.Child) == 0 {
		return false
	}
	return matchConditions(alarm, rule.Conditions.Child)
}
