package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/comedorlabs/comedor-backend/internal/notifications"
	"github.com/comedorlabs/comedor-backend/internal/push"
	"github.com/comedorlabs/comedor-backend/pkg/config"
	"github.com/comedorlabs/comedor-backend/pkg/db"
	"github.com/comedorlabs/comedor-backend/pkg/events"
	"github.com/comedorlabs/comedor-backend/pkg/instance"
	"github.com/comedorlabs/comedor-backend/pkg/logger"
	"github.com/comedorlabs/comedor-backend/pkg/migrate"
	"github.com/comedorlabs/comedor-backend/pkg/pubsub"
	"github.com/comedorlabs/comedor-backend/pkg/redis"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "notifications-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "notifications-worker"

	logg = logger.New(logger.Options{
		ServiceName: "notifications-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer redisClient.Close()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer pubsubClient.Close()

	guard, err := events.NewManager(redisClient, cfg.Eventing.IdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	broker := notifications.NewBroker(cfg.Notifications.FeedBuffer)
	notificationsService, err := notifications.NewService(
		notifications.NewRepository(dbClient.DB()),
		broker,
		logg,
	)
	requireResource(ctx, logg, "notifications service", err)
	notificationsService = notifications.NewCountCachingService(notificationsService, redisClient, logg)

	pusher := buildPusher(ctx, cfg, dbClient, logg)

	consumer, err := notifications.NewConsumer(
		notificationsService,
		pusher,
		pubsubClient.DomainSubscription(),
		guard,
		logg,
	)
	requireResource(ctx, logg, "domain event consumer", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"serviceKind": cfg.Service.Kind,
		"env":         cfg.App.Env,
		"instance":    instance.GetID(),
	})
	logg.Info(runCtx, "notifications worker ready")

	if err := consumer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "notifications worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(runCtx, "notifications worker shutting down gracefully")
}

// buildPusher wires the web-push sender when VAPID keys are configured.
// Without keys the worker still writes notification records, it just skips
// the push leg.
func buildPusher(ctx context.Context, cfg *config.Config, dbClient *db.Client, logg *logger.Logger) push.Service {
	if !cfg.WebPush.Enabled() {
		logg.Warn(ctx, "web push keys not configured, push delivery disabled")
		return nil
	}

	dispatcher, err := push.NewWebPushDispatcher(cfg.WebPush)
	requireResource(ctx, logg, "web push dispatcher", err)

	pushRepo := push.NewRepository(dbClient.DB())
	transport, err := push.NewGatewayTransport(cfg.WebPush, dispatcher, pushRepo, logg)
	requireResource(ctx, logg, "push transport", err)

	pushService, err := push.NewService(transport, dispatcher, pushRepo, logg, nil)
	requireResource(ctx, logg, "push service", err)
	return pushService
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
