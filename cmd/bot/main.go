package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/TANANUNKUB/clip-booking-core/internal/api"
	"github.com/TANANUNKUB/clip-booking-core/internal/app"
	"github.com/TANANUNKUB/clip-booking-core/internal/config"
	"github.com/TANANUNKUB/clip-booking-core/internal/controller"
	"github.com/TANANUNKUB/clip-booking-core/internal/model"
	"github.com/TANANUNKUB/clip-booking-core/internal/promptpay"
	"github.com/TANANUNKUB/clip-booking-core/internal/repository"
	"github.com/TANANUNKUB/clip-booking-core/internal/service"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)

	defer logger.Sync()

	logger.Sugar().Infow("Starting clip booking bot",
		"environment", cfg.Environment,
		"api_base_url", cfg.APIBaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Подключаемся к базе
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Fatal("Failed to create database pool", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}

	// Применяем миграции
	migrator, err := app.NewMigrator(pool, "migrations")
	if err != nil {
		logger.Fatal("Failed to create migrator", zap.Error(err))
	}
	if err := migrator.Run(ctx); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}
	migrator.Close()

	// Бэкенд бронирований и кэш занятых дат
	client := api.NewClient(cfg.APIBaseURL, logger)
	cache := service.NewAvailabilityCache(client, logger)
	if err := cache.Refresh(ctx); err != nil {
		// Кэш подтянется при первом /start
		logger.Warn("Failed to preload booked dates", zap.Error(err))
	}

	snapshots := repository.NewSnapshotRepository(pool)

	// Поток бронирования создаётся отдельно на каждый чат
	factory := func(chatID int64) *service.FlowController {
		return service.NewFlowController(
			client,
			snapshots,
			cache,
			service.SystemClock{},
			service.FlowConfig{
				StorageKey:       fmt.Sprintf("%s:%d", model.SnapshotKey, chatID),
				DepositAmount:    cfg.DepositAmount,
				PromptPayAccount: cfg.PromptPayAccount,
				EncodePayload:    promptpay.BuildPayload,
				TickInterval:     time.Second,
			},
			logger,
		)
	}
	registry := controller.NewFlowRegistry(factory, logger)

	botInstance, err := bot.New(cfg.TelegramToken)
	if err != nil {
		logger.Fatal("Failed to create bot", zap.Error(err))
	}

	botController := controller.NewBotController(botInstance, registry, cache, logger)
	if err := botController.RegisterHandlers(ctx); err != nil {
		logger.Fatal("Failed to register handlers", zap.Error(err))
	}

	logger.Info("🚀 Bot is running")
	if err := botController.Start(ctx); err != nil {
		logger.Fatal("Bot stopped with error", zap.Error(err))
	}

	logger.Info("Bot stopped gracefully")
}
