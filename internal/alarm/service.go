// Package alarm provides the alarm lifecycle service and the rule
// administration surface around the correlation engine.
package alarm

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/netalarm/internal/correlation"
	"github.com/netalarm/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Notifier dispatches operator-facing notifications for newly formed
// root-cause groups. Implemented by notify.Notifier.
type Notifier interface {
	RootCauseDetected(root *models.Alarm, group []models.Alarm) error
}

// Service owns the alarm lifecycle: ingestion, correlation, acknowledge,
// clear, group lookup and recorrelation. It serializes correlation per
// tenant with a keyed mutex: the engine's read-then-mutate sequence has
// no optimistic-concurrency guard, so unserialized calls for one tenant
// could mint two correlation ids for what should be one group. Calls for
// different tenants run in parallel.
type Service struct {
	db       *gorm.DB
	engine   *correlation.Engine
	notifier Notifier
	logger   *zap.Logger

	mu          sync.Mutex
	tenantLocks map[string]*sync.Mutex
}

func NewService(db *gorm.DB, engine *correlation.Engine, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{
		db:          db,
		engine:      engine,
		notifier:    notifier,
		logger:      logger,
		tenantLocks: make(map[string]*sync.Mutex),
	}
}

func (s *Service) tenantLock(tenantID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.tenantLocks[tenantID]
	if !ok {
		lock = &sync.Mutex{}
		s.tenantLocks[tenantID] = lock
	}
	return lock
}

// Ingest persists a normalized alarm and runs correlation for it. The
// ingestion collaborators have already normalized vendor fields; this
// only fills lifecycle defaults. Notification failures are logged, never
// surfaced: losing a Slack message must not fail ingestion.
func (s *Service) Ingest(alarm *models.Alarm) error {
	if alarm.TenantID == "" {
		return fmt.Errorf("ingest: alarm requires a tenant id")
	}
	now := time.Now()
	if alarm.FirstOccurrence.IsZero() {
		alarm.FirstOccurrence = now
	}
	if alarm.LastOccurrence.IsZero() {
		alarm.LastOccurrence = alarm.FirstOccurrence
	}
	if alarm.OccurrenceCount == 0 {
		alarm.OccurrenceCount = 1
	}
	if alarm.Status == "" {
		alarm.Status = models.AlarmStatusActive
	}

	if err := s.db.Create(alarm).Error; err != nil {
		return fmt.Errorf("failed to create alarm: %w", err)
	}

	lock := s.tenantLock(alarm.TenantID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.engine.Correlate(alarm); err != nil {
		return fmt.Errorf("failed to correlate alarm %d: %w", alarm.ID, err)
	}

	s.notifyRootCause(alarm)
	return nil
}

func (s *Service) notifyRootCause(alarm *models.Alarm) {
	if s.notifier == nil || alarm.CorrelationAction != models.ActionRootCause || alarm.CorrelationID == nil {
		return
	}
	group, err := s.engine.CorrelationGroup(*alarm.CorrelationID)
	if err != nil {
		s.logger.Warn("failed to load group for notification",
			zap.Uint("alarm_id", alarm.ID), zap.Error(err))
		return
	}
	if err := s.notifier.RootCauseDetected(alarm, group); err != nil {
		s.logger.Warn("root cause notification failed",
			zap.Uint("alarm_id", alarm.ID), zap.Error(err))
	}
}

// Get returns a single alarm by database id.
func (s *Service) Get(id uint) (*models.Alarm, error) {
	var alarm models.Alarm
	if err := s.db.First(&alarm, id).Error; err != nil {
		return nil, err
	}
	return &alarm, nil
}

// ListFilter narrows List results. Zero values mean no filtering.
type ListFilter struct {
	Status        models.AlarmStatus
	Action        models.CorrelationAction
	ResourceType  string
	CorrelationID string
	Since         time.Time
	Limit         int
}

// List returns a tenant's alarms, newest first.
func (s *Service) List(tenantID string, filter ListFilter) ([]models.Alarm, error) {
	q := s.db.Where("tenant_id = ?", tenantID)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Action != "" {
		q = q.Where("correlation_action = ?", filter.Action)
	}
	if filter.ResourceType != "" {
		q = q.Where("resource_type = ?", filter.ResourceType)
	}
	if filter.CorrelationID != "" {
		q = q.Where("correlation_id = ?", filter.CorrelationID)
	}
	if !filter.Since.IsZero() {
		q = q.Where("first_occurrence >= ?", filter.Since)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var alarms []models.Alarm
	if err := q.Order("first_occurrence desc, id desc").Find(&alarms).Error; err != nil {
		return nil, fmt.Errorf("failed to list alarms: %w", err)
	}
	return alarms, nil
}

// Acknowledge marks an open alarm as acknowledged by an operator.
func (s *Service) Acknowledge(id uint, userID string) error {
	var alarm models.Alarm
	if err := s.db.First(&alarm, id).Error; err != nil {
		return fmt.Errorf("failed to find alarm: %w", err)
	}
	if alarm.Status == models.AlarmStatusCleared {
		return fmt.Errorf("alarm %d is already cleared", id)
	}

	now := time.Now()
	alarm.Status = models.AlarmStatusAcknowledged
	alarm.AcknowledgedBy = userID
	alarm.AcknowledgedAt = &now
	if err := s.db.Save(&alarm).Error; err != nil {
		return fmt.Errorf("failed to update alarm: %w", err)
	}
	return nil
}

// Clear clears an alarm, cascading to its group when it is a root
// cause. Clearing an unknown id is a no-op.
func (s *Service) Clear(id uint) error {
	var alarm models.Alarm
	err := s.db.First(&alarm, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to find alarm: %w", err)
	}

	lock := s.tenantLock(alarm.TenantID)
	lock.Lock()
	defer lock.Unlock()
	return s.engine.ClearCorrelation(id)
}

// Group returns a correlation group, root cause first.
func (s *Service) Group(correlationID string) ([]models.Alarm, error) {
	return s.engine.CorrelationGroup(correlationID)
}

// RecorrelateAll resets and replays correlation for a tenant's open
// alarms, returning the number processed.
func (s *Service) RecorrelateAll(tenantID string) (int, error) {
	lock := s.tenantLock(tenantID)
	lock.Lock()
	defer lock.Unlock()
	return s.engine.RecorrelateAll(tenantID)
}
