package main

import (
	"context"
	"net/http"
	"os"

	"github.com/comedorlabs/comedor-backend/api/routes"
	"github.com/comedorlabs/comedor-backend/internal/notifications"
	"github.com/comedorlabs/comedor-backend/internal/push"
	"github.com/comedorlabs/comedor-backend/pkg/config"
	"github.com/comedorlabs/comedor-backend/pkg/db"
	"github.com/comedorlabs/comedor-backend/pkg/env"
	"github.com/comedorlabs/comedor-backend/pkg/logger"
	"github.com/comedorlabs/comedor-backend/pkg/metrics"
	"github.com/comedorlabs/comedor-backend/pkg/migrate"
	"github.com/comedorlabs/comedor-backend/pkg/redis"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	pushService := buildPushService(cfg, dbClient, logg)

	addr := ":" + env.Get("PORT", cfg.App.Port)
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, notificationsService, pushService),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

// buildPushService wires web push when VAPID keys are configured. Without
// keys the API still serves notifications, it just leaves the push routes
// unmounted.
func buildPushService(cfg *config.Config, dbClient *db.Client, logg *logger.Logger) push.Service {
	if !cfg.WebPush.Enabled() {
		logg.Warn(context.Background(), "web push keys not configured, push endpoints disabled")
		return nil
	}

	dispatcher, err := push.NewWebPushDispatcher(cfg.WebPush)
	if err != nil {
		logg.Error(context.Background(), "failed to create web push dispatcher", err)
		os.Exit(1)
	}
	pushRepo := push.NewRepository(dbClient.DB())
	transport, err := push.NewGatewayTransport(cfg.WebPush, dispatcher, pushRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create push transport", err)
		os.Exit(1)
	}
	pushService, err := push.NewService(transport, dispatcher, pushRepo, logg, metrics.NewPushMetrics(prometheus.DefaultRegisterer))
	if err != nil {
		logg.Error(context.Background(), "failed to create push service", err)
		os.Exit(1)
	}
	return pushService
}
