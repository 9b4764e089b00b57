// Package app is the composition root. Bootstrap stays orchestration-only.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/riverqueue/river"

	"dealpipe.io/dealpipe/internal/api/handlers"
	"dealpipe.io/dealpipe/internal/api/middleware"
	"dealpipe.io/dealpipe/internal/board"
	"dealpipe.io/dealpipe/internal/config"
	"dealpipe.io/dealpipe/internal/governance/audit"
	"dealpipe.io/dealpipe/internal/infrastructure"
	"dealpipe.io/dealpipe/internal/jobs"
	"dealpipe.io/dealpipe/internal/metrics"
	"dealpipe.io/dealpipe/internal/notification"
	"dealpipe.io/dealpipe/internal/pipeline"
	"dealpipe.io/dealpipe/internal/pkg/worker"
	"dealpipe.io/dealpipe/internal/repository"
	"dealpipe.io/dealpipe/internal/usecase"
)

// Application holds composed application dependencies.
type Application struct {
	Config   *config.Config
	Router   *gin.Engine
	DB       *infrastructure.DatabaseClients
	Pools    *worker.Pools
	Registry *pipeline.Registry
}

// Bootstrap initializes all dependencies with manual DI.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("auto-migrate: %w", err)
		}
	}

	registry, err := pipeline.NewRegistry(cfg.Pipeline.SettingsPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("load pipeline settings: %w", err)
	}

	pools, err := worker.NewPools(ctx, worker.PoolConfig{
		GeneralPoolSize: cfg.Worker.GeneralPoolSize,
		NotifyPoolSize:  cfg.Worker.NotifyPoolSize,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init worker pools: %w", err)
	}

	dealRepo := repository.NewDealRepo(db.Pool)
	historyRepo := repository.NewHistoryRepo(db.Pool)
	metricRepo := repository.NewMetricRepo(db.Pool)
	notificationRepo := repository.NewNotificationRepo(db.Pool)
	auditor := audit.NewLogger(db.Pool)

	calculator := metrics.NewCalculator(metricRepo)
	dispatcher := notification.NewDispatcher(
		notification.NewInboxSender(notificationRepo),
		notification.LogDeliverer{},
		pools.Notify,
	)

	workers := river.NewWorkers()
	river.AddWorker(workers, jobs.NewTransitionEffectsWorker(registry, calculator, dispatcher))
	river.AddWorker(workers, jobs.NewStaleSweepWorker(registry, dealRepo, notificationRepo,
		notification.NewInboxSender(notificationRepo)))
	river.AddWorker(workers, jobs.NewNotificationCleanupWorker(notificationRepo, cfg.Pipeline.NotificationRetention))

	periodic := []*river.PeriodicJob{
		river.NewPeriodicJob(
			river.PeriodicInterval(cfg.Pipeline.StaleSweepInterval),
			func() (river.JobArgs, *river.InsertOpts) {
				return jobs.StaleSweepArgs{}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		),
		river.NewPeriodicJob(
			river.PeriodicInterval(24*time.Hour),
			func() (river.JobArgs, *river.InsertOpts) {
				return jobs.NotificationCleanupArgs{}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		),
	}

	if err := db.InitRiverClient(workers, cfg.River, periodic); err != nil {
		pools.Shutdown()
		db.Close()
		return nil, fmt.Errorf("init river: %w", err)
	}

	coordinator := usecase.NewTransitionCoordinator(
		db.Pool, db.RiverClient, registry, pipeline.NewValidator(time.Now),
		dealRepo, historyRepo, auditor, usecase.DefaultTransitionTimeout,
	)

	jwtCfg := middleware.JWTConfig{
		SigningKey: []byte(cfg.Security.JWTSecret),
		Issuer:     "dealpipe",
		ExpiresIn:  cfg.Security.TokenLifetime,
	}

	server := handlers.NewServer(handlers.ServerDeps{
		Pool:          db.Pool,
		JWTCfg:        jwtCfg,
		Registry:      registry,
		Coordinator:   coordinator,
		BoardSvc:      board.NewService(registry, dealRepo, time.Now),
		Calculator:    calculator,
		Deals:         dealRepo,
		History:       historyRepo,
		Notifications: notificationRepo,
		Audit:         auditor,
	})

	return &Application{
		Config:   cfg,
		Router:   newRouter(cfg, server, jwtCfg),
		DB:       db,
		Pools:    pools,
		Registry: registry,
	}, nil
}
