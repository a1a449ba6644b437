package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/comedorlabs/comedor-backend/api/controllers"
	"github.com/comedorlabs/comedor-backend/api/middleware"
	"github.com/comedorlabs/comedor-backend/internal/notifications"
	"github.com/comedorlabs/comedor-backend/internal/push"
	"github.com/comedorlabs/comedor-backend/pkg/config"
	"github.com/comedorlabs/comedor-backend/pkg/db"
	"github.com/comedorlabs/comedor-backend/pkg/logger"
	"github.com/comedorlabs/comedor-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	notificationsService notifications.Service,
	pushService push.Service,
) http.Handler {
	var redisP redis.Pinger
	if redisClient != nil {
		redisP = redisClient
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
		if pushService != nil {
			r.Get("/v1/push/vapid-key", controllers.PushVAPIDKey(pushService, logg))
		}
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		if redisClient != nil {
			r.Use(middleware.Idempotency(redisClient, logg))
		}

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Get("/unread-count", controllers.UnreadNotificationCount(notificationsService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
			r.Delete("/{notificationId}", controllers.DeleteNotification(notificationsService, logg))
			r.Post("/clear", controllers.ClearNotifications(notificationsService, logg))
		})

		// Push routes only exist when web push is configured; the rest of
		// the API works without it.
		if pushService != nil {
			r.Route("/v1/push", func(r chi.Router) {
				r.Get("/vapid-key", controllers.PushVAPIDKey(pushService, logg))
				r.Post("/subscriptions", controllers.PushSubscribe(pushService, logg))
				r.Delete("/subscriptions", controllers.PushUnsubscribe(pushService, logg))
				r.Post("/test", controllers.PushTestSend(pushService, logg))
			})
		}
	})

	return r
}
