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

	"github.com/angelmondragon/vendorflow-backend/api/middleware"
	"github.com/angelmondragon/vendorflow-backend/internal/notifications"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	"github.com/angelmondragon/vendorflow-backend/pkg/logger"
)

type testNotificationsService struct {
	markReadFn    func(ctx context.Context, userID, notificationID uuid.UUID) error
	markAllReadFn func(ctx context.Context, userID uuid.UUID) (int64, error)
	listFn        func(ctx context.Context, query notifications.Query) (*notifications.Page, error)
	unread        int64
}

func (s *testNotificationsService) List(ctx context.Context, query notifications.Query) (*notifications.Page, error) {
	if s.listFn != nil {
		return s.listFn(ctx, query)
	}
	return &notifications.Page{}, nil
}

func (s *testNotificationsService) UnreadCount(context.Context, uuid.UUID) (int64, error) {
	return s.unread, nil
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

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func withCaller(req *http.Request, userID uuid.UUID) *http.Request {
	return req.WithContext(middleware.WithIdentity(req.Context(), middleware.Identity{
		UserID: userID,
		Roles:  []enums.Role{enums.RoleOperations},
	}))
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

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/"+notificationID.String()+"/read", nil)
	req = withCaller(req, userID)
	req = addRouteParam(req, "notificationId", notificationID.String())

	resp := httptest.NewRecorder()
	MarkNotificationRead(svc, testLogger())(resp, req)

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

func TestMarkNotificationReadRequiresIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/"+uuid.NewString()+"/read", nil)
	req = addRouteParam(req, "notificationId", uuid.NewString())
	resp := httptest.NewRecorder()
	MarkNotificationRead(&testNotificationsService{}, testLogger())(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestMarkNotificationReadInvalidID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/invalid/read", nil)
	req = withCaller(req, uuid.New())
	req = addRouteParam(req, "notificationId", "invalid")
	resp := httptest.NewRecorder()
	MarkNotificationRead(&testNotificationsService{}, testLogger())(resp, req)
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

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/read-all", nil)
	req = withCaller(req, userID)
	resp := httptest.NewRecorder()
	MarkAllNotificationsRead(svc, testLogger())(resp, req)
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

func TestListNotificationsParsesQuery(t *testing.T) {
	userID := uuid.New()
	var got notifications.Query
	svc := &testNotificationsService{
		listFn: func(ctx context.Context, query notifications.Query) (*notifications.Page, error) {
			got = query
			return &notifications.Page{NextCursor: "next"}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications?limit=5&unreadOnly=true&cursor=abc&type=receipt_mismatch&priority=urgent", nil)
	req = withCaller(req, userID)
	resp := httptest.NewRecorder()
	ListNotifications(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d body=%s", resp.Code, resp.Body.String())
	}
	if got.UserID != userID || got.Limit != 5 || !got.UnreadOnly || got.Cursor != "abc" {
		t.Fatalf("unexpected query %+v", got)
	}
	if got.Type == nil || *got.Type != enums.NotificationTypeReceiptMismatch {
		t.Fatalf("expected type filter, got %v", got.Type)
	}
	if got.Priority == nil || *got.Priority != enums.NotificationPriorityUrgent {
		t.Fatalf("expected priority filter, got %v", got.Priority)
	}
}

func TestListNotificationsRejectsBadFilters(t *testing.T) {
	for _, raw := range []string{"limit=0", "limit=abc", "unreadOnly=maybe", "type=party", "priority=low"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications?"+raw, nil)
		req = withCaller(req, uuid.New())
		resp := httptest.NewRecorder()
		ListNotifications(&testNotificationsService{}, testLogger())(resp, req)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", raw, resp.Code)
		}
	}
}

func TestUnreadNotificationCount(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications/unread-count", nil)
	req = withCaller(req, uuid.New())
	resp := httptest.NewRecorder()
	UnreadNotificationCount(&testNotificationsService{unread: 7}, testLogger())(resp, req)

	var envelope struct {
		Data map[string]int64 `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Code != http.StatusOK || envelope.Data["unread"] != 7 {
		t.Fatalf("unexpected response %d %s", resp.Code, resp.Body.String())
	}
}

func addRouteParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}
