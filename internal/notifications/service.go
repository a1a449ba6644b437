package notifications

import (
	"context"
	"time"

	"github.com/comedorlabs/comedor-backend/pkg/db/models"
	dbtypes "github.com/comedorlabs/comedor-backend/pkg/db/types"
	"github.com/comedorlabs/comedor-backend/pkg/enums"
	pkgerrors "github.com/comedorlabs/comedor-backend/pkg/errors"
	"github.com/comedorlabs/comedor-backend/pkg/logger"
	"github.com/comedorlabs/comedor-backend/pkg/pagination"
	"github.com/google/uuid"
)

// Service defines notification creation, listing and read-state operations.
// Write failures come back as coded errors; callers that treat notifications
// as best-effort (push, consumers) log and move on.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	ListLatest(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	Delete(ctx context.Context, userID, notificationID uuid.UUID) (bool, error)
	ClearAll(ctx context.Context, userID uuid.UUID) (int64, error)
	CreateOrderStatus(ctx context.Context, userID, orderID uuid.UUID, status enums.OrderStatus, extra string) (*models.Notification, error)
	CreateDelivery(ctx context.Context, userID, deliveryID uuid.UUID, status enums.DeliveryStatus, etaMinutes *int) (*models.Notification, error)
	CreatePromotion(ctx context.Context, userID uuid.UUID, title, message string, promotionID uuid.UUID) (*models.Notification, error)
	CreateSystem(ctx context.Context, userID uuid.UUID, title, message string) (*models.Notification, error)
	SendBulk(ctx context.Context, userIDs []uuid.UUID, notificationType enums.NotificationType, title, message string) ([]models.Notification, error)
	CleanupOld(ctx context.Context, daysOld int) (int64, error)
}

type service struct {
	repo   Repository
	broker *Broker
	logg   *logger.Logger
}

// ListParams configures pagination for notifications.
type ListParams struct {
	UserID     uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

// NewService wires notification dependencies. The broker may be nil in
// contexts that never serve live views (cron worker).
func NewService(repo Repository, broker *Broker, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{repo: repo, broker: broker, logg: logg}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	query := listNotificationsParams{
		UserID:     params.UserID,
		Limit:      params.Limit,
		UnreadOnly: params.UnreadOnly,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}

	return &ListResult{
		Items:  rows,
		Cursor: cursor,
	}, nil
}

func (s *service) ListLatest(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	rows, err := s.repo.ListLatest(ctx, userID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list latest notifications")
	}
	return rows, nil
}

func (s *service) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}
	return count, nil
}

func (s *service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.MarkRead(ctx, userID, notificationID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	if result.Updated {
		s.publish(Event{
			Kind:   EventUpdate,
			UserID: userID,
			Notification: &models.Notification{
				ID:     notificationID,
				UserID: userID,
				Read:   true,
			},
		})
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	count, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	if count > 0 {
		s.publish(Event{Kind: EventAllRead, UserID: userID})
	}
	return count, nil
}

// Delete removes one record and reports whether it was still unread.
func (s *service) Delete(ctx context.Context, userID, notificationID uuid.UUID) (bool, error) {
	if userID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if notificationID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.Delete(ctx, userID, notificationID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete notification")
	}
	if !result.Found {
		return false, pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	s.publish(Event{
		Kind:   EventDelete,
		UserID: userID,
		Notification: &models.Notification{
			ID:     notificationID,
			UserID: userID,
			Read:   !result.WasUnread,
		},
	})
	return result.WasUnread, nil
}

func (s *service) ClearAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	count, err := s.repo.DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear notifications")
	}
	if count > 0 {
		s.publish(Event{Kind: EventCleared, UserID: userID})
	}
	return count, nil
}

func (s *service) CreateOrderStatus(ctx context.Context, userID, orderID uuid.UUID, status enums.OrderStatus, extra string) (*models.Notification, error) {
	content := orderStatusContent(status, extra)
	return s.create(ctx, &models.Notification{
		UserID:  userID,
		Type:    enums.NotificationTypeOrderStatus,
		Title:   content.Title,
		Message: content.Message,
		Metadata: dbtypes.JSONMap{
			"order_id": orderID.String(),
			"status":   string(status),
		},
	})
}

func (s *service) CreateDelivery(ctx context.Context, userID, deliveryID uuid.UUID, status enums.DeliveryStatus, etaMinutes *int) (*models.Notification, error) {
	content := deliveryContent(status, etaMinutes)
	metadata := dbtypes.JSONMap{
		"delivery_id": deliveryID.String(),
		"status":      string(status),
	}
	if etaMinutes != nil {
		metadata["eta_minutes"] = *etaMinutes
	}
	return s.create(ctx, &models.Notification{
		UserID:   userID,
		Type:     enums.NotificationTypeDelivery,
		Title:    content.Title,
		Message:  content.Message,
		Metadata: metadata,
	})
}

func (s *service) CreatePromotion(ctx context.Context, userID uuid.UUID, title, message string, promotionID uuid.UUID) (*models.Notification, error) {
	notification := &models.Notification{
		UserID:  userID,
		Type:    enums.NotificationTypePromotion,
		Title:   title,
		Message: message,
	}
	if promotionID != uuid.Nil {
		notification.Metadata = dbtypes.JSONMap{"promotion_id": promotionID.String()}
	}
	return s.create(ctx, notification)
}

func (s *service) CreateSystem(ctx context.Context, userID uuid.UUID, title, message string) (*models.Notification, error) {
	return s.create(ctx, &models.Notification{
		UserID:  userID,
		Type:    enums.NotificationTypeSystem,
		Title:   title,
		Message: message,
	})
}

// SendBulk creates the same notification for each user sequentially. A
// failure for one user is logged and skipped; the returned slice holds the
// records that were persisted, so callers only fan out for those users.
func (s *service) SendBulk(ctx context.Context, userIDs []uuid.UUID, notificationType enums.NotificationType, title, message string) ([]models.Notification, error) {
	if !notificationType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid notification type")
	}
	if title == "" || message == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title and message required")
	}

	created := make([]models.Notification, 0, len(userIDs))
	for _, userID := range userIDs {
		if userID == uuid.Nil {
			continue
		}
		notification, err := s.create(ctx, &models.Notification{
			UserID:  userID,
			Type:    notificationType,
			Title:   title,
			Message: message,
		})
		if err != nil {
			s.logg.Error(s.logg.WithUserID(ctx, userID.String()), "bulk notification failed", err)
			continue
		}
		created = append(created, *notification)
	}
	return created, nil
}

func (s *service) CleanupOld(ctx context.Context, daysOld int) (int64, error) {
	if daysOld <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "daysOld must be positive")
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -daysOld)
	count, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cleanup old notifications")
	}
	return count, nil
}

func (s *service) create(ctx context.Context, notification *models.Notification) (*models.Notification, error) {
	if notification.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if notification.Title == "" || notification.Message == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title and message required")
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}
	s.publish(Event{Kind: EventInsert, UserID: notification.UserID, Notification: notification})
	return notification, nil
}

func (s *service) publish(event Event) {
	if s.broker == nil {
		return
	}
	s.broker.Publish(event)
}
