// Package notify dispatches operator notifications for newly detected
// root-cause groups over Slack and email.
package notify

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/netalarm/internal/models"
	"github.com/slack-go/slack"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type Config struct {
	SlackToken     string
	SlackChannel   string
	SMTPHost       string
	SMTPPort       int
	EmailFrom      string
	EmailPassword  string
	EmailReceivers []string
}

type Notifier struct {
	slackClient *slack.Client
	emailDialer *gomail.Dialer
	config      *Config
	logger      *zap.Logger
}

func NewNotifier(config *Config, logger *zap.Logger) *Notifier {
	return &Notifier{
		slackClient: slack.New(config.SlackToken),
		emailDialer: gomail.NewDialer(config.SMTPHost, config.SMTPPort, config.EmailFrom, config.EmailPassword),
		config:      config,
		logger:      logger,
	}
}

// RootCauseDetected sends a notification for a newly formed correlation
// group through every configured channel. Channels are independent: a
// Slack failure does not stop the email.
func (n *Notifier) RootCauseDetected(root *models.Alarm, group []models.Alarm) error {
	var firstErr error
	if n.config.SlackChannel != "" {
		if err := n.sendSlack(root, group); err != nil {
			n.logger.Warn("slack notification failed", zap.Uint("alarm_id", root.ID), zap.Error(err))
			firstErr = err
		}
	}
	if len(n.config.EmailReceivers) > 0 {
		if err := n.sendEmail(root, group); err != nil {
			n.logger.Warn("email notification failed", zap.Uint("alarm_id", root.ID), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (n *Notifier) sendSlack(root *models.Alarm, group []models.Alarm) error {
	attachment := slack.Attachment{
		Color: severityColor(root.Severity),
		Title: fmt.Sprintf("Root cause detected: %s on %s", root.AlarmType, root.ResourceID),
		Fields: []slack.AttachmentField{
			{
				Title: "Tenant",
				Value: root.TenantID,
				Short: true,
			},
			{
				Title: "Resource",
				Value: fmt.Sprintf("%s/%s", root.ResourceType, root.ResourceID),
				Short: true,
			},
			{
				Title: "Severity",
				Value: string(root.Severity),
				Short: true,
			},
			{
				Title: "Correlated alarms",
				Value: strconv.Itoa(len(group)),
				Short: true,
			},
		},
		Footer: "NetAlarm Correlation Engine",
		Ts:     json.Number(strconv.FormatInt(time.Now().Unix(), 10)),
	}

	_, _, err := n.slackClient.PostMessage(
		n.config.SlackChannel,
		slack.MsgOptionAttachments(attachment),
	)
	return err
}

func (n *Notifier) sendEmail(root *models.Alarm, group []models.Alarm) error {
	m := gomail.NewMessage()
	m.SetHeader("From", n.config.EmailFrom)
	m.SetHeader("To", n.config.EmailReceivers...)
	m.SetHeader("Subject", fmt.Sprintf("NetAlarm root cause: %s (%s)", root.AlarmType, root.Severity))

	body := fmt.Sprintf(`
		Tenant: %s
		Root cause: %s on %s/%s
		Severity: %s
		First occurrence: %s
		Correlated alarms in group: %d
		Description: %s
	`, root.TenantID, root.AlarmType, root.ResourceType, root.ResourceID,
		root.Severity, root.FirstOccurrence.Format(time.RFC3339),
		len(group), root.Description)

	m.SetBody("text/plain", body)

	return n.emailDialer.DialAndSend(m)
}

func severityColor(severity models.AlarmSeverity) string {
	switch severity {
	case models.SeverityCritical:
		return "#ff0000"
	case models.SeverityMajor:
		return "#ff6600"
	case models.SeverityMinor:
		return "#ffcc00"
	case models.SeverityWarning:
		return "#36a64f"
	default:
		return "#808080"
	}
}
