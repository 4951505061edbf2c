package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/inboxwrap/inboxwrap-backend/internal/api"
	"github.com/inboxwrap/inboxwrap-backend/internal/config"
	"github.com/inboxwrap/inboxwrap-backend/internal/database"
	"github.com/inboxwrap/inboxwrap-backend/internal/normalizer"
	"github.com/inboxwrap/inboxwrap-backend/internal/postmark"
	"github.com/inboxwrap/inboxwrap-backend/internal/provider"
	"github.com/inboxwrap/inboxwrap-backend/internal/queue"
	"github.com/inboxwrap/inboxwrap-backend/internal/ratelimit"
	"github.com/inboxwrap/inboxwrap-backend/internal/repository"
	"github.com/inboxwrap/inboxwrap-backend/internal/services"
	"github.com/inboxwrap/inboxwrap-backend/internal/summarizer"
)

func main() {
	cfg, err := config.LoadWithValidation()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("starting inboxwrap backend",
		slog.String("env", cfg.AppEnv),
		slog.Int("port", cfg.APIPort))

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	userRepo := repository.NewUserRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	summaryRepo := repository.NewSummaryRepository(db)

	microsoft := provider.NewMicrosoft(provider.MicrosoftConfig{
		ClientID:     cfg.MicrosoftClientID,
		ClientSecret: cfg.MicrosoftClientSecret,
		RedirectURI:  cfg.MicrosoftRedirectURI,
	}, nil, logger)
	providers := provider.NewRegistry(microsoft)

	limiter := ratelimit.New(cfg.GroqRPM, cfg.GroqTPM)
	jobQueue := queue.New(cfg.QueueCapacity)

	summarizeClient := summarizer.NewClient(summarizer.Config{
		APIKey: cfg.GroqAPIKey,
		Model:  cfg.GroqModel,
	}, limiter, nil, logger)

	mailer := postmark.NewClient(cfg.PostmarkServerToken, "", nil)

	fetchService := services.NewFetchService(
		accountRepo, providers, normalizer.Default(), jobQueue,
		services.FetchConfig{}, logger)
	dispatchService := services.NewDispatchService(
		userRepo, accountRepo, summaryRepo, mailer,
		services.DispatchConfig{
			TemplateID:    cfg.PostmarkTemplateID,
			FromAddress:   cfg.DigestFromAddress,
			PromotionsCap: cfg.PromotionsCap,
		}, logger)

	workers := services.NewWorkerPool(jobQueue, summarizeClient, summaryRepo, cfg.WorkerCount, logger)
	fetchLoop := services.NewIntervalRunner("fetch", cfg.FetchInterval, fetchService.FetchDue, logger)
	dispatchLoop := services.NewIntervalRunner("dispatch", cfg.DispatchInterval, dispatchService.DispatchDue, logger)

	workers.Start()
	fetchLoop.Start()
	dispatchLoop.Start()

	e := api.NewRouter(&api.RouterConfig{
		DB:        db,
		Microsoft: microsoft,
		Users:     userRepo,
		Accounts:  accountRepo,
		Fetch:     fetchLoop,
		Dispatch:  dispatchLoop,
		Logger:    logger,
	})

	go func() {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Error("http server stopped", slog.Any("error", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	// Stop producing new work before draining the workers.
	fetchLoop.Stop()
	dispatchLoop.Stop()
	workers.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", slog.Any("error", err))
	}

	logger.Info("server stopped")
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
