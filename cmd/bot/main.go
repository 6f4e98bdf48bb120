package main

import (
	"github.com/xaenox/support-bot/internal/assistant"
	"github.com/xaenox/support-bot/internal/bot"
	"github.com/xaenox/support-bot/internal/escalation"
	"github.com/xaenox/support-bot/internal/faq"
	"github.com/xaenox/support-bot/internal/filter"
	"github.com/xaenox/support-bot/internal/processor"
	"github.com/xaenox/support-bot/internal/ratelimit"
	"github.com/xaenox/support-bot/internal/storage"
	"github.com/xaenox/support-bot/pkg/config"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		store, err = storage.NewPostgresStorage(storage.DatabaseConfig{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			DBName:      cfg.Database.DBName,
			SSLMode:     cfg.Database.SSLMode,
			UseInMemory: cfg.Database.UseInMemory,
		})
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Assemble the message-resolution pipeline
	limiterCfg := ratelimit.DefaultConfig()
	limiterCfg.MinuteMax = cfg.Limits.MinuteMax
	limiterCfg.HourlyMax = cfg.Limits.HourlyMax
	limiter := ratelimit.New(limiterCfg, store, logger)
	defer limiter.Stop()

	llm := assistant.NewGPTAssistant(
		cfg.OpenAI.APIKey,
		cfg.OpenAI.Model,
		cfg.OpenAI.MaxTokens,
		cfg.OpenAI.Temperature,
		logger,
	)
	transcriber := assistant.NewWhisperTranscriber(cfg.OpenAI.APIKey, cfg.OpenAI.WhisperModel, logger)

	proc := processor.New(
		store,
		limiter,
		filter.New(logger),
		faq.NewMatcher(store, logger),
		llm,
		escalation.NewDecider(store, logger),
		cfg.Limits.ContextHistory,
		logger,
	)

	// Initialize the support bot
	b, err := bot.New(cfg.Telegram.Token, store, proc, transcriber, logger)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	// Start the admin bot when a token is configured
	if cfg.Admin.Token != "" {
		admin, err := bot.NewAdmin(cfg.Admin.Token, cfg.Admin.IDs, store, logger)
		if err != nil {
			logger.Fatal("Failed to create admin bot", zap.Error(err))
		}
		go func() {
			if err := admin.Start(); err != nil {
				logger.Error("Admin bot error", zap.Error(err))
			}
		}()
	} else {
		logger.Warn("Admin bot not started: admin token is not set")
	}

	// Start the support bot
	if err := b.Start(); err != nil {
		logger.Fatal("Bot error", zap.Error(err))
	}
}
