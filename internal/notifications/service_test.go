package notifications

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/comedorlabs/comedor-backend/pkg/db/models"
	"github.com/comedorlabs/comedor-backend/pkg/enums"
	pkgerrors "github.com/comedorlabs/comedor-backend/pkg/errors"
	"github.com/comedorlabs/comedor-backend/pkg/logger"
	paginationpkg "github.com/comedorlabs/comedor-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fakeRepository struct {
	created       []*models.Notification
	createErr     error
	listFn        func(ctx context.Context, params listNotificationsParams) ([]models.Notification, *paginationpkg.Cursor, error)
	listLatestFn  func(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error)
	markReadFn    func(ctx context.Context, userID, notificationID uuid.UUID) (notificationMarkResult, error)
	markAllReadFn func(ctx context.Context, userID uuid.UUID) (int64, error)
	deleteFn      func(ctx context.Context, userID, notificationID uuid.UUID) (notificationDeleteResult, error)
	deleteAllFn   func(ctx context.Context, userID uuid.UUID) (int64, error)
	deleteOlderFn func(ctx context.Context, cutoff time.Time) (int64, error)
	countUnreadFn func(ctx context.Context, userID uuid.UUID) (int64, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) Create(ctx context.Context, notification *models.Notification) error {
	if f.createErr != nil {
		return f.createErr
	}
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	f.created = append(f.created, notification)
	return nil
}

func (f *fakeRepository) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *paginationpkg.Cursor, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, nil, nil
}

func (f *fakeRepository) ListLatest(ctx context.Context, userID uuid.UUID, limit int) ([]models.Notification, error) {
	if f.listLatestFn != nil {
		return f.listLatestFn(ctx, userID, limit)
	}
	return nil, nil
}

func (f *fakeRepository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) (notificationMarkResult, error) {
	if f.markReadFn != nil {
		return f.markReadFn(ctx, userID, notificationID)
	}
	return notificationMarkResult{}, nil
}

func (f *fakeRepository) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if f.markAllReadFn != nil {
		return f.markAllReadFn(ctx, userID)
	}
	return 0, nil
}

func (f *fakeRepository) Delete(ctx context.Context, userID, notificationID uuid.UUID) (notificationDeleteResult, error) {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, userID, notificationID)
	}
	return notificationDeleteResult{}, nil
}

func (f *fakeRepository) DeleteAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	if f.deleteAllFn != nil {
		return f.deleteAllFn(ctx, userID)
	}
	return 0, nil
}

func (f *fakeRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if f.deleteOlderFn != nil {
		return f.deleteOlderFn(ctx, cutoff)
	}
	return 0, nil
}

func (f *fakeRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	if f.countUnreadFn != nil {
		return f.countUnreadFn(ctx, userID)
	}
	return 0, nil
}

func newTestLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newServiceWithRepo(repo Repository, broker *Broker) Service {
	svc, _ := NewService(repo, broker, newTestLogger())
	return svc
}

func drainEvents(sub *Subscription) []Event {
	var out []Event
	for {
		select {
		case event := <-sub.Events():
			out = append(out, event)
		default:
			return out
		}
	}
}

func TestService_ListNotifications(t *testing.T) {
	first := models.Notification{ID: uuid.New(), CreatedAt: time.Now().Add(-time.Hour)}
	second := models.Notification{ID: uuid.New(), CreatedAt: time.Now()}

	repo := &fakeRepository{
		listFn: func(ctx context.Context, params listNotificationsParams) ([]models.Notification, *paginationpkg.Cursor, error) {
			if params.Limit != 1 {
				t.Fatalf("unexpected limit %d", params.Limit)
			}
			return []models.Notification{first}, &paginationpkg.Cursor{CreatedAt: second.CreatedAt, ID: second.ID}, nil
		},
	}

	svc := newServiceWithRepo(repo, nil)
	result, err := svc.List(context.Background(), ListParams{UserID: uuid.New(), Limit: 1})
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(result.Items))
	}
	if result.Cursor == "" {
		t.Fatal("expected cursor for next page")
	}
	decoded, err := paginationpkg.ParseCursor(result.Cursor)
	if err != nil {
		t.Fatalf("invalid cursor %q: %v", result.Cursor, err)
	}
	if decoded.ID != second.ID {
		t.Fatalf("expected cursor id %s got %s", second.ID, decoded.ID)
	}
}

func TestService_ListNotificationsInvalidCursor(t *testing.T) {
	svc := newServiceWithRepo(&fakeRepository{}, nil)
	_, err := svc.List(context.Background(), ListParams{UserID: uuid.New(), Cursor: "bad"})
	if err == nil {
		t.Fatal("expected error for invalid cursor")
	}
	if code := pkgerrors.As(err).Code(); code != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %s", code)
	}
}

func TestService_MarkReadPublishesUpdate(t *testing.T) {
	userID := uuid.New()
	notificationID := uuid.New()
	repo := &fakeRepository{
		markReadFn: func(ctx context.Context, gotUser, gotID uuid.UUID) (notificationMarkResult, error) {
			return notificationMarkResult{Found: true, Updated: true}, nil
		},
	}
	broker := NewBroker(8)
	sub := broker.Subscribe(userID)
	defer sub.Unsubscribe()

	svc := newServiceWithRepo(repo, broker)
	if err := svc.MarkRead(context.Background(), userID, notificationID); err != nil {
		t.Fatalf("unexpected mark read error: %v", err)
	}

	published := drainEvents(sub)
	if len(published) != 1 {
		t.Fatalf("expected 1 event, got %d", len(published))
	}
	if published[0].Kind != EventUpdate {
		t.Fatalf("expected update event, got %s", published[0].Kind)
	}
	if published[0].Notification == nil || !published[0].Notification.Read {
		t.Fatal("expected read flag on update event")
	}
}

func TestService_MarkReadAlreadyReadStaysQuiet(t *testing.T) {
	repo := &fakeRepository{
		markReadFn: func(ctx context.Context, userID, notificationID uuid.UUID) (notificationMarkResult, error) {
			return notificationMarkResult{Found: true, Updated: false}, nil
		},
	}
	broker := NewBroker(8)
	userID := uuid.New()
	sub := broker.Subscribe(userID)
	defer sub.Unsubscribe()

	svc := newServiceWithRepo(repo, broker)
	if err := svc.MarkRead(context.Background(), userID, uuid.New()); err != nil {
		t.Fatalf("unexpected mark read error: %v", err)
	}
	if events := drainEvents(sub); len(events) != 0 {
		t.Fatalf("expected no events for a no-op mark, got %d", len(events))
	}
}

func TestService_MarkReadNotFound(t *testing.T) {
	repo := &fakeRepository{
		markReadFn: func(ctx context.Context, userID, notificationID uuid.UUID) (notificationMarkResult, error) {
			return notificationMarkResult{Found: false}, nil
		},
	}
	svc := newServiceWithRepo(repo, nil)
	err := svc.MarkRead(context.Background(), uuid.New(), uuid.New())
	if err == nil {
		t.Fatal("expected not found error")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestService_DeleteReportsUnread(t *testing.T) {
	userID := uuid.New()
	repo := &fakeRepository{
		deleteFn: func(ctx context.Context, gotUser, gotID uuid.UUID) (notificationDeleteResult, error) {
			return notificationDeleteResult{Found: true, WasUnread: true}, nil
		},
	}
	broker := NewBroker(8)
	sub := broker.Subscribe(userID)
	defer sub.Unsubscribe()

	svc := newServiceWithRepo(repo, broker)
	wasUnread, err := svc.Delete(context.Background(), userID, uuid.New())
	if err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if !wasUnread {
		t.Fatal("expected unread report")
	}

	published := drainEvents(sub)
	if len(published) != 1 || published[0].Kind != EventDelete {
		t.Fatalf("expected delete event, got %+v", published)
	}
}

func TestService_ClearAllPublishesCleared(t *testing.T) {
	userID := uuid.New()
	repo := &fakeRepository{
		deleteAllFn: func(ctx context.Context, gotUser uuid.UUID) (int64, error) {
			return 4, nil
		},
	}
	broker := NewBroker(8)
	sub := broker.Subscribe(userID)
	defer sub.Unsubscribe()

	svc := newServiceWithRepo(repo, broker)
	count, err := svc.ClearAll(context.Background(), userID)
	if err != nil {
		t.Fatalf("unexpected clear error: %v", err)
	}
	if count != 4 {
		t.Fatalf("expected 4 deleted rows, got %d", count)
	}
	published := drainEvents(sub)
	if len(published) != 1 || published[0].Kind != EventCleared {
		t.Fatalf("expected cleared event, got %+v", published)
	}
}

func TestService_CreateOrderStatusCannedCopy(t *testing.T) {
	repo := &fakeRepository{}
	svc := newServiceWithRepo(repo, nil)

	notification, err := svc.CreateOrderStatus(context.Background(), uuid.New(), uuid.New(), enums.OrderStatusReady, "")
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if notification.Type != enums.NotificationTypeOrderStatus {
		t.Fatalf("unexpected type %s", notification.Type)
	}
	if notification.Title != "Order ready" {
		t.Fatalf("unexpected title %q", notification.Title)
	}
	if got := notification.Metadata.String("order_id"); got == "" {
		t.Fatal("expected order_id metadata")
	}
}

func TestService_CreateOrderStatusExtraSuffix(t *testing.T) {
	repo := &fakeRepository{}
	svc := newServiceWithRepo(repo, nil)

	notification, err := svc.CreateOrderStatus(context.Background(), uuid.New(), uuid.New(), enums.OrderStatusPreparing, "Running about 10 min behind.")
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if !strings.HasSuffix(notification.Message, "Running about 10 min behind.") {
		t.Fatalf("expected extra suffix, got %q", notification.Message)
	}

	unknown, err := svc.CreateOrderStatus(context.Background(), uuid.New(), uuid.New(), enums.OrderStatus("vaporized"), "Running about 10 min behind.")
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if strings.Contains(unknown.Message, "Running about") {
		t.Fatalf("generic message must not carry the extra, got %q", unknown.Message)
	}
}

func TestService_CreateOrderStatusUnknownFallsBack(t *testing.T) {
	repo := &fakeRepository{}
	svc := newServiceWithRepo(repo, nil)

	notification, err := svc.CreateOrderStatus(context.Background(), uuid.New(), uuid.New(), enums.OrderStatus("vaporized"), "")
	if err != nil {
		t.Fatalf("creation must not fail on unknown status: %v", err)
	}
	if !strings.Contains(notification.Message, "vaporized") {
		t.Fatalf("expected generic message naming the status, got %q", notification.Message)
	}
}

func TestService_CreateDeliveryETASuffix(t *testing.T) {
	repo := &fakeRepository{}
	svc := newServiceWithRepo(repo, nil)
	eta := 12

	notification, err := svc.CreateDelivery(context.Background(), uuid.New(), uuid.New(), enums.DeliveryStatusOnTheWay, &eta)
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if !strings.Contains(notification.Message, "12 min") {
		t.Fatalf("expected ETA suffix, got %q", notification.Message)
	}

	unknown, err := svc.CreateDelivery(context.Background(), uuid.New(), uuid.New(), enums.DeliveryStatus("lost"), &eta)
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if strings.Contains(unknown.Message, "12 min") {
		t.Fatalf("generic message must not carry an ETA, got %q", unknown.Message)
	}
}

func TestService_SendBulkSkipsFailures(t *testing.T) {
	users := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	seq := 0
	repo := &sequencedRepo{
		fakeRepository: &fakeRepository{},
		createFn: func(ctx context.Context, notification *models.Notification) error {
			seq++
			if seq == 2 {
				return errors.New("boom")
			}
			return nil
		},
	}
	svc := newServiceWithRepo(repo, nil)

	created, err := svc.SendBulk(context.Background(), users, enums.NotificationTypeSystem, "Maintenance", "Back at noon")
	if err != nil {
		t.Fatalf("unexpected bulk error: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("expected 2 persisted records, got %d", len(created))
	}
	for _, record := range created {
		if record.UserID == users[1] {
			t.Fatalf("record for failed user %s must not be returned", users[1])
		}
	}
}

type sequencedRepo struct {
	*fakeRepository
	createFn func(ctx context.Context, notification *models.Notification) error
}

func (s *sequencedRepo) Create(ctx context.Context, notification *models.Notification) error {
	if s.createFn != nil {
		return s.createFn(ctx, notification)
	}
	return s.fakeRepository.Create(ctx, notification)
}

func TestService_SendBulkRejectsInvalidType(t *testing.T) {
	svc := newServiceWithRepo(&fakeRepository{}, nil)
	_, err := svc.SendBulk(context.Background(), []uuid.UUID{uuid.New()}, enums.NotificationType("junk"), "t", "m")
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestService_CleanupOldValidatesDays(t *testing.T) {
	svc := newServiceWithRepo(&fakeRepository{}, nil)
	if _, err := svc.CleanupOld(context.Background(), 0); err == nil {
		t.Fatal("expected validation error for daysOld=0")
	}

	var gotCutoff time.Time
	repo := &fakeRepository{
		deleteOlderFn: func(ctx context.Context, cutoff time.Time) (int64, error) {
			gotCutoff = cutoff
			return 7, nil
		},
	}
	svc = newServiceWithRepo(repo, nil)
	count, err := svc.CleanupOld(context.Background(), 30)
	if err != nil {
		t.Fatalf("unexpected cleanup error: %v", err)
	}
	if count != 7 {
		t.Fatalf("expected 7 deleted rows, got %d", count)
	}
	expected := time.Now().UTC().AddDate(0, 0, -30)
	if gotCutoff.After(expected.Add(time.Minute)) || gotCutoff.Before(expected.Add(-time.Minute)) {
		t.Fatalf("cutoff %v not near %v", gotCutoff, expected)
	}
}
