package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/comedorlabs/comedor-backend/internal/cron"
	"github.com/comedorlabs/comedor-backend/internal/notifications"
	"github.com/comedorlabs/comedor-backend/internal/push"
	"github.com/comedorlabs/comedor-backend/pkg/config"
	"github.com/comedorlabs/comedor-backend/pkg/db"
	"github.com/comedorlabs/comedor-backend/pkg/instance"
	"github.com/comedorlabs/comedor-backend/pkg/logger"
	"github.com/comedorlabs/comedor-backend/pkg/metrics"
	"github.com/comedorlabs/comedor-backend/pkg/migrate"
	"github.com/comedorlabs/comedor-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	broker := notifications.NewBroker(cfg.Notifications.FeedBuffer)
	notificationsService, err := notifications.NewService(
		notifications.NewRepository(dbClient.DB()),
		broker,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}
	notificationsService = notifications.NewCountCachingService(notificationsService, redisClient, logg)

	pruner, err := push.NewPruner(push.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create push pruner", err)
		os.Exit(1)
	}

	cleanupJob, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:        logg,
		Notifications: notificationsService,
		RetentionDays: cfg.Notifications.RetentionDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification cleanup job", err)
		os.Exit(1)
	}

	pruneJob, err := cron.NewPushPruneJob(cron.PushPruneJobParams{
		Logger: logg,
		Push:   pruner,
		MaxAge: cfg.Notifications.SubscriptionMaxAge,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create push prune job", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker"), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(cleanupJob, pruneJob),
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Notifications.CronInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
