package routes

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/vendorflow-backend/api/controllers"
	"github.com/angelmondragon/vendorflow-backend/internal/audit"
	"github.com/angelmondragon/vendorflow-backend/internal/dispatches"
	"github.com/angelmondragon/vendorflow-backend/internal/grn"
	"github.com/angelmondragon/vendorflow-backend/internal/orders"
	pkgAuth "github.com/angelmondragon/vendorflow-backend/pkg/auth"
	"github.com/angelmondragon/vendorflow-backend/pkg/config"
	"github.com/angelmondragon/vendorflow-backend/pkg/db/models"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	"github.com/angelmondragon/vendorflow-backend/pkg/logger"
	"github.com/angelmondragon/vendorflow-backend/pkg/pagination"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubOrders struct {
	orders.Service
	listed *orders.ListFilters
}

func (s *stubOrders) ListOrders(_ context.Context, filters orders.ListFilters, page pagination.Page) (pagination.PageResult[models.Order], error) {
	s.listed = &filters
	return pagination.NewPageResult([]models.Order{}, 0, page), nil
}

type stubDispatches struct {
	dispatches.Service
	filters *dispatches.ListFilters
}

func (s *stubDispatches) ListDispatches(_ context.Context, filters dispatches.ListFilters, page pagination.Page) (pagination.PageResult[models.Dispatch], error) {
	s.filters = &filters
	return pagination.NewPageResult([]models.Dispatch{}, 0, page), nil
}

type stubGRN struct{ grn.Service }

type stubAudit struct{ audit.Service }

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0", ImportsPerHour: 5},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "vendorflow-test",
			ExpirationMinutes: 60,
		},
	}
}

type testRouter struct {
	handler    http.Handler
	orders     *stubOrders
	dispatches *stubDispatches
}

func newTestRouter(t *testing.T, cfg *config.Config, ready map[string]controllers.Pinger) testRouter {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	o := &stubOrders{}
	d := &stubDispatches{}
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "vendorflow_test_total"}))
	h := NewRouter(cfg, logg, Services{
		Orders:     o,
		Dispatches: d,
		GRN:        stubGRN{},
		Audit:      stubAudit{},
	}, Infra{Ready: ready, Gatherer: reg})
	return testRouter{handler: h, orders: o, dispatches: d}
}

func buildToken(t *testing.T, cfg *config.Config, vendorID *uuid.UUID, roles ...enums.Role) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID:   uuid.New(),
		Roles:    roles,
		VendorID: vendorID,
		JTI:      uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func serve(h http.Handler, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func TestHealthLiveIsPublic(t *testing.T) {
	tr := newTestRouter(t, testConfig(), nil)
	resp := serve(tr.handler, http.MethodGet, "/health/live", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestHealthReadyReportsFailingDependency(t *testing.T) {
	tr := newTestRouter(t, testConfig(), map[string]controllers.Pinger{
		"db":    stubPinger{},
		"redis": stubPinger{err: errors.New("connection refused")},
	})
	resp := serve(tr.handler, http.MethodGet, "/health/ready", "")
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestMetricsEndpointServesRegistry(t *testing.T) {
	tr := newTestRouter(t, testConfig(), nil)
	resp := serve(tr.handler, http.MethodGet, "/metrics", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if body := resp.Body.String(); !strings.Contains(body, "vendorflow_test_total") {
		t.Fatalf("expected registered metric in body, got %q", body)
	}
}

func TestPrivateGroupRejectsMissingJWT(t *testing.T) {
	tr := newTestRouter(t, testConfig(), nil)
	resp := serve(tr.handler, http.MethodGet, "/api/v1/me", "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}
}

func TestOrdersRequireStaffRole(t *testing.T) {
	cfg := testConfig()
	tr := newTestRouter(t, cfg, nil)
	vendorID := uuid.New()

	resp := serve(tr.handler, http.MethodGet, "/api/v1/orders", buildToken(t, cfg, &vendorID, enums.RoleVendor))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for vendor got %d", resp.Code)
	}
	if tr.orders.listed != nil {
		t.Fatalf("service must not be reached for forbidden callers")
	}

	resp = serve(tr.handler, http.MethodGet, "/api/v1/orders?status=received", buildToken(t, cfg, nil, enums.RoleAccounts))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for accounts got %d: %s", resp.Code, resp.Body.String())
	}
	if tr.orders.listed == nil || tr.orders.listed.Status == nil || *tr.orders.listed.Status != enums.OrderStatusReceived {
		t.Fatalf("expected received status filter, got %+v", tr.orders.listed)
	}
}

func TestOrderMutationsExcludeAccounts(t *testing.T) {
	cfg := testConfig()
	tr := newTestRouter(t, cfg, nil)
	resp := serve(tr.handler, http.MethodPost, "/api/v1/orders/"+uuid.NewString()+"/close", buildToken(t, cfg, nil, enums.RoleAccounts))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestVendorDispatchListIsScopedToCaller(t *testing.T) {
	cfg := testConfig()
	tr := newTestRouter(t, cfg, nil)
	vendorID := uuid.New()

	resp := serve(tr.handler, http.MethodGet, "/api/v1/vendor/dispatches?vendorId="+uuid.NewString(), buildToken(t, cfg, &vendorID, enums.RoleVendor))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if tr.dispatches.filters == nil || tr.dispatches.filters.VendorID == nil || *tr.dispatches.filters.VendorID != vendorID {
		t.Fatalf("expected vendor scope %s, got %+v", vendorID, tr.dispatches.filters)
	}
}

func TestVendorRoutesRejectStaff(t *testing.T) {
	cfg := testConfig()
	tr := newTestRouter(t, cfg, nil)
	resp := serve(tr.handler, http.MethodGet, "/api/v1/vendor/assignments", buildToken(t, cfg, nil, enums.RoleAdmin))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestAuditRequiresAdmin(t *testing.T) {
	cfg := testConfig()
	tr := newTestRouter(t, cfg, nil)
	resp := serve(tr.handler, http.MethodGet, "/api/v1/audit?actorUserId="+uuid.NewString(), buildToken(t, cfg, nil, enums.RoleOperations))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}
