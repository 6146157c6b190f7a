package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dosada05/pong-tournaments/config"
	"github.com/Dosada05/pong-tournaments/db"
	"github.com/Dosada05/pong-tournaments/handlers"
	"github.com/Dosada05/pong-tournaments/hub"
	"github.com/Dosada05/pong-tournaments/middleware"
	"github.com/Dosada05/pong-tournaments/repositories"
	api "github.com/Dosada05/pong-tournaments/routes"
	"github.com/Dosada05/pong-tournaments/services"
	"github.com/Dosada05/pong-tournaments/storage"
	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 15 * time.Second

// @title Pong Tournaments API
// @version 1.0
// @description Турниры по Pong: регистрация, сетка на выбывание, результаты матчей и WebSocket-события.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Настройка логгера
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.Int("elo_k_factor", cfg.EloKFactor))

	if cfg.RunMigrations {
		if err := db.Migrate(cfg.DatabaseURL, logger); err != nil {
			logger.Error("failed to apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()

	// Хранилище: аватары и архив сетки. Без R2 ключи аватаров резолвятся по базовому URL.
	var avatars storage.PublicURLResolver = storage.StaticURLResolver{BaseURL: cfg.R2PublicBaseURL}
	var archiver services.BracketArchiver
	if cfg.R2Configured() {
		uploader, err := storage.NewCloudflareR2Uploader(context.Background(), storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		avatars = uploader
		archiver = storage.NewBracketArchiver(uploader)
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Warn("R2 is not configured, bracket archiving disabled")
	}

	registry := hub.NewRegistry(logger)

	// Инициализация репозиториев
	txManager := repositories.NewSQLTxManager(dbConn, logger)
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)

	// Инициализация сервисов
	resultService := services.NewMatchResultService(txManager, matchRepo, userRepo, services.EloRating(cfg.EloKFactor), logger)
	tournamentService := services.NewTournamentService(
		txManager,
		tournamentRepo,
		matchRepo,
		userRepo,
		resultService,
		nil,
		avatars,
		logger,
	)

	scheduler, err := services.NewGocronScheduler(nil, logger)
	if err != nil {
		logger.Error("failed to start scheduler", slog.Any("error", err))
		os.Exit(1)
	}

	dispatcher := services.NewDispatcher(registry, tournamentService, scheduler, services.DispatcherConfig{
		NotifyDelay: cfg.NextRoundNotifyDelay,
		Archiver:    archiver,
	}, logger)
	acceptance := services.NewAcceptanceCoordinator(tournamentService, logger)
	orchestrator := services.NewOrchestrator(tournamentService, acceptance, dispatcher, registry, logger)
	logger.Info("services initialized")

	// Инициализация обработчиков
	verifier := middleware.NewTokenVerifier(cfg.JWTSecretKey)
	messageRouter := handlers.NewMessageRouter(orchestrator, registry, logger)
	webSocketHandler := handlers.NewWebSocketHandler(registry, messageRouter, orchestrator, verifier, cfg.CORSAllowedOrigins, logger)
	tournamentHandler := handlers.NewTournamentHandler(orchestrator)

	router := chi.NewRouter()
	api.SetupRoutes(router, verifier, cfg.CORSAllowedOrigins, tournamentHandler, webSocketHandler)

	// Настройка и запуск HTTP-сервера
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			exitCode = 1
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			exitCode = 1
		} else {
			logger.Info("server shutdown complete")
		}
	}

	if err := scheduler.Shutdown(); err != nil {
		logger.Error("failed to stop scheduler", slog.Any("error", err))
	}
	// Отложенные уведомления остановлены, теперь можно закрыть сокеты.
	registry.Close()

	logger.Info("application exited")
	if exitCode != 0 {
		dbConn.Close()
		os.Exit(exitCode)
	}
}
