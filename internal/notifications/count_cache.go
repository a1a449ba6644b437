package notifications

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/comedorlabs/comedor-backend/pkg/db/models"
	"github.com/comedorlabs/comedor-backend/pkg/enums"
	"github.com/comedorlabs/comedor-backend/pkg/logger"
)

const unreadCacheTTL = 60 * time.Second

// countStore is the slice of the Redis client the cache needs.
type countStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CounterKey(name string) string
}

// NewCountCachingService wraps svc so that unread counts are served from
// Redis for the cache TTL. Every mutation drops the affected user's entry.
// Cache failures are logged and fall back to the store.
func NewCountCachingService(svc Service, store countStore, logg *logger.Logger) Service {
	return &countCachingService{Service: svc, store: store, logg: logg}
}

type countCachingService struct {
	Service
	store countStore
	logg  *logger.Logger
}

func (c *countCachingService) key(userID uuid.UUID) string {
	return c.store.CounterKey("unread:" + userID.String())
}

func (c *countCachingService) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	key := c.key(userID)
	if cached, err := c.store.Get(ctx, key); err == nil {
		if count, parseErr := strconv.ParseInt(cached, 10, 64); parseErr == nil {
			return count, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logg.Warn(ctx, "unread count cache read failed")
	}

	count, err := c.Service.CountUnread(ctx, userID)
	if err != nil {
		return 0, err
	}
	if setErr := c.store.Set(ctx, key, strconv.FormatInt(count, 10), unreadCacheTTL); setErr != nil {
		c.logg.Warn(ctx, "unread count cache write failed")
	}
	return count, nil
}

func (c *countCachingService) invalidate(ctx context.Context, userIDs ...uuid.UUID) {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, c.key(id))
	}
	if len(keys) == 0 {
		return
	}
	if err := c.store.Del(ctx, keys...); err != nil {
		c.logg.Warn(ctx, "unread count cache invalidation failed")
	}
}

func (c *countCachingService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	err := c.Service.MarkRead(ctx, userID, notificationID)
	if err == nil {
		c.invalidate(ctx, userID)
	}
	return err
}

func (c *countCachingService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	count, err := c.Service.MarkAllRead(ctx, userID)
	if err == nil {
		c.invalidate(ctx, userID)
	}
	return count, err
}

func (c *countCachingService) Delete(ctx context.Context, userID, notificationID uuid.UUID) (bool, error) {
	wasUnread, err := c.Service.Delete(ctx, userID, notificationID)
	if err == nil && wasUnread {
		c.invalidate(ctx, userID)
	}
	return wasUnread, err
}

func (c *countCachingService) ClearAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	count, err := c.Service.ClearAll(ctx, userID)
	if err == nil {
		c.invalidate(ctx, userID)
	}
	return count, err
}

func (c *countCachingService) CreateOrderStatus(ctx context.Context, userID, orderID uuid.UUID, status enums.OrderStatus, extra string) (*models.Notification, error) {
	record, err := c.Service.CreateOrderStatus(ctx, userID, orderID, status, extra)
	if err == nil {
		c.invalidate(ctx, userID)
	}
	return record, err
}

func (c *countCachingService) CreateDelivery(ctx context.Context, userID, deliveryID uuid.UUID, status enums.DeliveryStatus, etaMinutes *int) (*models.Notification, error) {
	record, err := c.Service.CreateDelivery(ctx, userID, deliveryID, status, etaMinutes)
	if err == nil {
		c.invalidate(ctx, userID)
	}
	return record, err
}

func (c *countCachingService) CreatePromotion(ctx context.Context, userID uuid.UUID, title, message string, promotionID uuid.UUID) (*models.Notification, error) {
	record, err := c.Service.CreatePromotion(ctx, userID, title, message, promotionID)
	if err == nil {
		c.invalidate(ctx, userID)
	}
	return record, err
}

func (c *countCachingService) CreateSystem(ctx context.Context, userID uuid.UUID, title, message string) (*models.Notification, error) {
	record, err := c.Service.CreateSystem(ctx, userID, title, message)
	if err == nil {
		c.invalidate(ctx, userID)
	}
	return record, err
}

func (c *countCachingService) SendBulk(ctx context.Context, userIDs []uuid.UUID, notificationType enums.NotificationType, title, message string) ([]models.Notification, error) {
	created, err := c.Service.SendBulk(ctx, userIDs, notificationType, title, message)
	if len(created) > 0 {
		touched := make([]uuid.UUID, 0, len(created))
		for i := range created {
			touched = append(touched, created[i].UserID)
		}
		c.invalidate(ctx, touched...)
	}
	return created, err
}
