package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/credpoints-api/internal/repository"
	"github.com/noah-isme/credpoints-api/internal/service"
	"github.com/noah-isme/credpoints-api/pkg/cache"
	"github.com/noah-isme/credpoints-api/pkg/config"
	"github.com/noah-isme/credpoints-api/pkg/database"
	"github.com/noah-isme/credpoints-api/pkg/jobs"
	"github.com/noah-isme/credpoints-api/pkg/logger"
)

// @title CredPoints API
// @version 1.0.0
// @description Staff CredPoints requests, advisor review and the points ledger.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database, logr)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db, logr); err != nil {
			logr.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching and badges disabled", zap.Error(err))
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metrics := service.NewMetricsService()

	requestRepo := repository.NewRequestRepository(db)
	classRepo := repository.NewClassRepository(db)
	userRepo := repository.NewUserRepository(db)

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Stats.CacheTTL, logr, cfg.Stats.CacheEnabled && redisClient != nil)
	ledgerSvc := service.NewLedgerService(repository.NewLedgerRepository(db), logr)
	activitySvc := service.NewActivityService(repository.NewActivityRepository(db), logr)
	notificationSvc := service.NewNotificationService(repository.NewNotificationRepository(db), logr)
	querySvc := service.NewQueryService(requestRepo, cacheSvc, cfg.Stats.CacheTTL, logr)
	badgeSvc := service.NewBadgeService(repository.NewBadgeRepository(redisClient), querySvc, cfg.Badges.Enabled && redisClient != nil, logr)
	exportSvc := service.NewExportService(activitySvc, ledgerSvc, logr, nil, nil)
	authSvc := service.NewAuthService(userRepo, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	fanout := service.NewFanoutRunner(ledgerSvc, activitySvc, notificationSvc, metrics, logr)
	repairSvc := service.NewRepairService(requestRepo, fanout, metrics, service.RepairConfig{
		BatchSize: cfg.Workflow.RepairBatch,
		Grace:     cfg.Workflow.RepairGrace,
	}, logr)
	repairQueue := jobs.NewQueue("workflow-repair", repairSvc.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Workflow.RepairWorkers,
		MaxRetries: cfg.Workflow.RepairRetries,
		RetryDelay: cfg.Workflow.RepairDelay,
		Logger:     logr,
	})
	repairSvc.AttachQueue(repairQueue)

	requestSvc := service.NewRequestService(requestRepo, classRepo, fanout, logr,
		service.WithRequestObservers(badgeSvc, querySvc, metrics),
		service.WithRepairScheduler(repairSvc),
	)

	repairQueue.Start(ctx)

	scheduler := jobs.NewScheduler(logr, 5*time.Minute)
	if err := scheduler.Register("workflow-repair-sweep", cfg.Workflow.RepairSchedule, repairSvc.RunScheduledSweep); err != nil {
		logr.Fatal("invalid repair schedule", zap.String("schedule", cfg.Workflow.RepairSchedule), zap.Error(err))
	}
	scheduler.Start()

	router := newRouter(cfg, logr, routeDeps{
		auth:          authSvc,
		metrics:       metrics,
		db:            db,
		requests:      requestSvc,
		queries:       querySvc,
		activities:    activitySvc,
		notifications: notificationSvc,
		ledger:        ledgerSvc,
		exports:       exportSvc,
		badges:        badgeSvc,
		repairs:       repairSvc,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", server.Addr), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
	scheduler.Stop()
	repairQueue.Stop()
}
