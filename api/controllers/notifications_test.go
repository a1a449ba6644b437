package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/comedorlabs/comedor-backend/api/middleware"
	"github.com/comedorlabs/comedor-backend/internal/notifications"
	"github.com/comedorlabs/comedor-backend/pkg/logger"
)

type testNotificationsService struct {
	notifications.Service

	listFn        func(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error)
	countUnreadFn func(ctx context.Context, userID uuid.UUID) (int64, error)
	markReadFn    func(ctx context.Context, userID, notificationID uuid.UUID) error
	markAllReadFn func(ctx context.Context, userID uuid.UUID) (int64, error)
	deleteFn      func(ctx context.Context, userID, notificationID uuid.UUID) (bool, error)
	clearAllFn    func(ctx context.Context, userID uuid.UUID) (int64, error)
}

func (s *testNotificationsService) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	if s.listFn != nil {
		return s.listFn(ctx, params)
	}
	return &notifications.ListResult{}, nil
}

func (s *testNotificationsService) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	if s.countUnreadFn != nil {
		return s.countUnreadFn(ctx, userID)
	}
	return 0, nil
}

func (s *testNotificationsService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if s.markReadFn != nil {
		return s.markReadFn(ctx, userID, notificationID)
	}
	return nil
}

func (s *testNotificationsService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if s.markAllReadFn != nil {
		return s.markAllReadFn(ctx, userID)
	}
	return 0, nil
}

func (s *testNotificationsService) Delete(ctx context.Context, userID, notificationID uuid.UUID) (bool, error) {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, userID, notificationID)
	}
	return false, nil
}

func (s *testNotificationsService) ClearAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	if s.clearAllFn != nil {
		return s.clearAllFn(ctx, userID)
	}
	return 0, nil
}

func controllerTestLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func authedRequest(method, target string, userID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	return req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
}

func addRouteParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestListNotificationsPassesQueryParams(t *testing.T) {
	userID := uuid.New()
	var got notifications.ListParams
	svc := &testNotificationsService{
		listFn: func(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
			got = params
			return &notifications.ListResult{Cursor: "next"}, nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/v1/notifications?limit=10&cursor=abc&unreadOnly=true", userID)
	resp := httptest.NewRecorder()
	ListNotifications(svc, controllerTestLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if got.UserID != userID {
		t.Fatalf("unexpected user %s", got.UserID)
	}
	if got.Limit != 10 || got.Cursor != "abc" || !got.UnreadOnly {
		t.Fatalf("unexpected params %+v", got)
	}
}

func TestListNotificationsRejectsMissingUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	resp := httptest.NewRecorder()
	ListNotifications(&testNotificationsService{}, controllerTestLogger())(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestListNotificationsRejectsBadLimit(t *testing.T) {
	req := authedRequest(http.MethodGet, "/api/v1/notifications?limit=zero", uuid.New())
	resp := httptest.NewRecorder()
	ListNotifications(&testNotificationsService{}, controllerTestLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestUnreadNotificationCount(t *testing.T) {
	svc := &testNotificationsService{
		countUnreadFn: func(ctx context.Context, userID uuid.UUID) (int64, error) {
			return 7, nil
		},
	}

	req := authedRequest(http.MethodGet, "/api/v1/notifications/unread-count", uuid.New())
	resp := httptest.NewRecorder()
	UnreadNotificationCount(svc, controllerTestLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data map[string]int64 `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data["unread"] != 7 {
		t.Fatalf("expected unread=7 got %d", envelope.Data["unread"])
	}
}

func TestMarkNotificationReadSuccess(t *testing.T) {
	userID := uuid.New()
	notificationID := uuid.New()
	called := false
	svc := &testNotificationsService{
		markReadFn: func(ctx context.Context, uid, nid uuid.UUID) error {
			called = true
			if uid != userID {
				t.Fatalf("unexpected user %s", uid)
			}
			if nid != notificationID {
				t.Fatalf("unexpected notification %s", nid)
			}
			return nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/notifications/"+notificationID.String()+"/read", userID)
	req = addRouteParam(req, "notificationId", notificationID.String())
	resp := httptest.NewRecorder()
	MarkNotificationRead(svc, controllerTestLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if !called {
		t.Fatal("expected service called")
	}
	var envelope struct {
		Data map[string]bool `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !envelope.Data["read"] {
		t.Fatal("response missing read flag")
	}
}

func TestMarkNotificationReadInvalidID(t *testing.T) {
	req := authedRequest(http.MethodPost, "/api/v1/notifications/invalid/read", uuid.New())
	req = addRouteParam(req, "notificationId", "invalid")
	resp := httptest.NewRecorder()
	MarkNotificationRead(&testNotificationsService{}, controllerTestLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestMarkAllNotificationsReadSuccess(t *testing.T) {
	userID := uuid.New()
	svc := &testNotificationsService{
		markAllReadFn: func(ctx context.Context, uid uuid.UUID) (int64, error) {
			if uid != userID {
				t.Fatalf("unexpected user %s", uid)
			}
			return 5, nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/notifications/read-all", userID)
	resp := httptest.NewRecorder()
	MarkAllNotificationsRead(svc, controllerTestLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data map[string]float64 `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data["updated"] != 5 {
		t.Fatalf("expected updated=5 got %v", envelope.Data["updated"])
	}
}

func TestDeleteNotificationSuccess(t *testing.T) {
	notificationID := uuid.New()
	svc := &testNotificationsService{
		deleteFn: func(ctx context.Context, uid, nid uuid.UUID) (bool, error) {
			return true, nil
		},
	}

	req := authedRequest(http.MethodDelete, "/api/v1/notifications/"+notificationID.String(), uuid.New())
	req = addRouteParam(req, "notificationId", notificationID.String())
	resp := httptest.NewRecorder()
	DeleteNotification(svc, controllerTestLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}

func TestClearNotificationsSuccess(t *testing.T) {
	svc := &testNotificationsService{
		clearAllFn: func(ctx context.Context, uid uuid.UUID) (int64, error) {
			return 9, nil
		},
	}

	req := authedRequest(http.MethodPost, "/api/v1/notifications/clear", uuid.New())
	resp := httptest.NewRecorder()
	ClearNotifications(svc, controllerTestLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data map[string]float64 `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data["cleared"] != 9 {
		t.Fatalf("expected cleared=9 got %v", envelope.Data["cleared"])
	}
}
