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

	"github.com/go-chi/chi/v5"
	"github.com/go-co-op/gocron/v2"
	"github.com/playgrid/arena/brackets"
	"github.com/playgrid/arena/cache"
	"github.com/playgrid/arena/config"
	"github.com/playgrid/arena/db"
	"github.com/playgrid/arena/handlers"
	"github.com/playgrid/arena/middleware"
	"github.com/playgrid/arena/repositories"
	api "github.com/playgrid/arena/routes"
	"github.com/playgrid/arena/services"
	"github.com/playgrid/arena/storage"
	"github.com/playgrid/arena/utils"
)

const (
	statusSweepInterval = 30 * time.Second
	reRankInterval      = 5 * time.Minute
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	var rankCache *cache.RankCache
	if cfg.RedisAddr != "" {
		rankCache, err = cache.NewRankCache(cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer rankCache.Close()
		logger.Info("rank cache connected", slog.String("addr", cfg.RedisAddr))
	} else {
		logger.Info("rank cache disabled, REDIS_ADDR not set")
	}

	var uploader storage.FileUploader
	if cfg.MediaUploadsEnabled() {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("media uploads enabled")
	} else {
		logger.Info("media uploads disabled, R2 credentials not set")
	}

	wsHub := brackets.NewHub()
	go wsHub.Run()

	userRepo := repositories.NewPostgresUserRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	chatRepo := repositories.NewPostgresChatRepository(dbConn)
	txManager := repositories.NewTxManager(dbConn)

	locks := &utils.KeyedMutex{}

	authService := services.NewAuthService(userRepo, logger)
	userService := services.NewUserService(userRepo, rankCache, uploader, logger)
	rankingService := services.NewRankingService(userRepo, rankCache, uploader, logger)
	chatService := services.NewChatService(chatRepo, tournamentRepo, teamRepo, userRepo, wsHub, locks, logger)
	tournamentService := services.NewTournamentService(tournamentRepo, teamRepo, matchRepo, userRepo, uploader, wsHub, locks, logger)
	registrationService := services.NewRegistrationService(txManager, tournamentRepo, teamRepo, userRepo, wsHub, locks, logger)
	bracketService := services.NewBracketService(txManager, tournamentRepo, teamRepo, matchRepo,
		brackets.NewSingleEliminationGenerator(), chatService, wsHub, locks, logger)
	matchService := services.NewMatchService(tournamentRepo, matchRepo, chatService, wsHub, locks, logger)
	logger.Info("services initialized")

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		logger.Error("failed to create scheduler", slog.Any("error", err))
		os.Exit(1)
	}
	if _, err := scheduler.NewJob(
		gocron.DurationJob(statusSweepInterval),
		gocron.NewTask(func() {
			if err := tournamentService.SweepStatuses(context.Background()); err != nil {
				logger.Error("status sweep failed", slog.Any("error", err))
			}
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	); err != nil {
		logger.Error("failed to schedule status sweep", slog.Any("error", err))
		os.Exit(1)
	}
	if _, err := scheduler.NewJob(
		gocron.DurationJob(reRankInterval),
		gocron.NewTask(func() {
			if err := rankingService.RecalculateRanks(context.Background()); err != nil {
				logger.Error("rank recalculation failed", slog.Any("error", err))
			}
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	); err != nil {
		logger.Error("failed to schedule rank recalculation", slog.Any("error", err))
		os.Exit(1)
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Shutdown(); err != nil {
			logger.Error("scheduler shutdown failed", slog.Any("error", err))
		}
	}()
	logger.Info("background jobs scheduled",
		slog.Duration("status_sweep", statusSweepInterval),
		slog.Duration("re_rank", reRankInterval))

	authenticator := middleware.NewAuthenticator(cfg.JWTSecretKey)
	authHandler := handlers.NewAuthHandler(authService, cfg.JWTSecretKey)
	userHandler := handlers.NewUserHandler(userService)
	tournamentHandler := handlers.NewTournamentHandler(tournamentService, registrationService, bracketService, matchService)
	leaderboardHandler := handlers.NewLeaderboardHandler(rankingService)
	chatHandler := handlers.NewChatHandler(chatService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, tournamentService, logger)

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		authenticator,
		authHandler,
		userHandler,
		tournamentHandler,
		leaderboardHandler,
		chatHandler,
		webSocketHandler,
	)
	logger.Info("routes configured")

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

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
}
