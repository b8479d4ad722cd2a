// Package report builds per-tenant correlation summaries for operations
// review: how much of the alarm volume the engine folded into groups,
// suppressed as duplicates, or wrote off as flapping noise.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/netalarm/internal/models"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"
)

type Generator struct {
	db *gorm.DB
}

func NewGenerator(db *gorm.DB) *Generator {
	return &Generator{db: db}
}

type SummaryData struct {
	TenantID  string
	StartTime time.Time
	EndTime   time.Time

	TotalAlarms  int64
	RootCauses   int64
	ChildAlarms  int64
	Duplicates   int64
	Flapping     int64
	Uncorrelated int64

	TopFlappingResources []ResourceSummary
	LargestGroups        []GroupSummary
}

type ResourceSummary struct {
	AlarmType  string
	ResourceID string
	Count      int64
}

type GroupSummary struct {
	CorrelationID string
	RootCauseType string
	Members       int64
}

// CorrelationSummary aggregates correlation outcomes for alarms whose
// first occurrence falls within [start, end].
func (g *Generator) CorrelationSummary(tenantID string, start, end time.Time) (*SummaryData, error) {
	data := &SummaryData{
		TenantID:  tenantID,
		StartTime: start,
		EndTime:   end,
	}

	base := func() *gorm.DB {
		return g.db.Model(&models.Alarm{}).
			Where("tenant_id = ?", tenantID).
			Where("first_occurrence BETWEEN ? AND ?", start, end)
	}

	if err := base().Count(&data.TotalAlarms).Error; err != nil {
		return nil, fmt.Errorf("failed to count alarms: %w", err)
	}

	counts := map[models.CorrelationAction]*int64{
		models.ActionRootCause:  &data.RootCauses,
		models.ActionChildAlarm: &data.ChildAlarms,
		models.ActionDuplicate:  &data.Duplicates,
		models.ActionFlapping:   &data.Flapping,
		models.ActionNone:       &data.Uncorrelated,
	}
	for action, dst := range counts {
		if err := base().Where("correlation_action = ?", action).Count(dst).Error; err != nil {
			return nil, fmt.Errorf("failed to count %s alarms: %w", action, err)
		}
	}

	err := base().
		Select("alarm_type, resource_id, COUNT(*) as count").
		Where("correlation_action = ?", models.ActionFlapping).
		Group("alarm_type, resource_id").
		Order("count desc").
		Limit(5).
		Scan(&data.TopFlappingResources).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rank flapping resources: %w", err)
	}

	err = g.db.Model(&models.Alarm{}).
		Select("correlation_id, MAX(CASE WHEN is_root_cause THEN alarm_type ELSE '' END) as root_cause_type, COUNT(*) as members").
		Where("tenant_id = ? AND correlation_id IS NOT NULL", tenantID).
		Where("first_occurrence BETWEEN ? AND ?", start, end).
		Group("correlation_id").
		Order("members desc").
		Limit(5).
		Scan(&data.LargestGroups).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rank correlation groups: %w", err)
	}

	return data, nil
}

var summaryTemplate = template.Must(template.New("summary").Parse(`
<h2>Alarm correlation summary for {{.TenantID}}</h2>
<p>{{.StartTime.Format "2006-01-02 15:04"}} &mdash; {{.EndTime.Format "2006-01-02 15:04"}}</p>
<table border="1" cellpadding="4">
  <tr><td>Total alarms</td><td>{{.TotalAlarms}}</td></tr>
  <tr><td>Root causes</td><td>{{.RootCauses}}</td></tr>
  <tr><td>Child alarms</td><td>{{.ChildAlarms}}</td></tr>
  <tr><td>Duplicates</td><td>{{.Duplicates}}</td></tr>
  <tr><td>Flapping</td><td>{{.Flapping}}</td></tr>
  <tr><td>Uncorrelated</td><td>{{.Uncorrelated}}</td></tr>
</table>
{{if .TopFlappingResources}}
<h3>Top flapping resources</h3>
<table border="1" cellpadding="4">
  <tr><th>Alarm type</th><th>Resource</th><th>Occurrences</th></tr>
  {{range .TopFlappingResources}}
  <tr><td>{{.AlarmType}}</td><td>{{.ResourceID}}</td><td>{{.Count}}</td></tr>
  {{end}}
</table>
{{end}}
{{if .LargestGroups}}
<h3>Largest correlation groups</h3>
<table border="1" cellpadding="4">
  <tr><th>Group</th><th>Root cause</th><th>Members</th></tr>
  {{range .LargestGroups}}
  <tr><td>{{.CorrelationID}}</td><td>{{.RootCauseType}}</td><td>{{.Members}}</td></tr>
  {{end}}
</table>
{{end}}
`))

// RenderHTML renders the summary for email delivery or the API.
func (g *Generator) RenderHTML(data *SummaryData) (string, error) {
	var buf bytes.Buffer
	if err := summaryTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render summary: %w", err)
	}
	return buf.String(), nil
}

// EmailSummary renders and sends the summary to the given receivers.
func (g *Generator) EmailSummary(dialer *gomail.Dialer, from string, to []string, data *SummaryData) error {
	html, err := g.RenderHTML(data)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", fmt.Sprintf("NetAlarm correlation summary: %s", data.TenantID))
	m.SetBody("text/html", html)

	return dialer.DialAndSend(m)
}
