package main

import (
	"log"
	"time"

	"github.com/netalarm/internal/alarm"
	"github.com/netalarm/internal/api"
	"github.com/netalarm/internal/auth"
	"github.com/netalarm/internal/config"
	"github.com/netalarm/internal/correlation"
	"github.com/netalarm/internal/database"
	"github.com/netalarm/internal/models"
	"github.com/netalarm/internal/notify"
	"github.com/netalarm/internal/report"

	"go.uber.org/zap"
)

const defaultTenant = "default"

func main() {
	// Initialize configuration
	cfg := config.LoadConfig()
	auth.SetSecret(cfg.Server.JWTSecret)

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Initialize database
	if err := database.Initialize(cfg.Database.Path); err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer database.Close()

	db := database.GetDB()

	// Initialize the correlation engine
	engineCfg := correlation.Config{
		FlappingWindow:    time.Duration(cfg.Correlation.FlappingWindowSeconds) * time.Second,
		FlappingThreshold: cfg.Correlation.FlappingThreshold,
		FlappingOverride:  cfg.Correlation.FlappingOverride,
	}
	engine := correlation.New(db, logger, engineCfg)

	// Initialize notifier
	notifier := notify.NewNotifier(&notify.Config{
		SlackToken:     cfg.Notify.Slack.Token,
		SlackChannel:   cfg.Notify.Slack.Channel,
		SMTPHost:       cfg.Notify.Email.SMTPHost,
		SMTPPort:       cfg.Notify.Email.SMTPPort,
		EmailFrom:      cfg.Notify.Email.From,
		EmailPassword:  cfg.Notify.Email.Password,
		EmailReceivers: cfg.Notify.Email.ToReceivers,
	}, logger)

	service := alarm.NewService(db, engine, notifier, logger)
	ruleManager := alarm.NewRuleManager(db)
	reports := report.NewGenerator(db)

	// Seed stock rules for the default tenant on first run
	var ruleCount int64
	if err := db.Model(&models.AlarmRule{}).Where("tenant_id = ?", defaultTenant).Count(&ruleCount).Error; err != nil {
		logger.Warn("failed to count rules", zap.Error(err))
	} else if ruleCount == 0 {
		if err := ruleManager.CreateDefaultRules(defaultTenant); err != nil {
			logger.Warn("failed to create default rules", zap.Error(err))
		}
	}

	// Initialize and start API server
	server := api.NewServer(service, ruleManager, reports)
	logger.Info("starting server", zap.Int("port", cfg.Server.Port))
	if err := server.Start(cfg.Server.Port); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
