package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"retailops/internal/database"
	"retailops/internal/events"
	"retailops/internal/middleware"
	"retailops/internal/model"
	"retailops/internal/repository"
	"retailops/internal/service"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const secret = "handler-test-secret"

type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
}

type listEnvelope struct {
	Data  json.RawMessage `json:"data"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Pages int             `json:"pages"`
}

type testApp struct {
	router   *gin.Engine
	db       *gorm.DB
	bus      *events.EventBus
	clock    *clock.Mock
	products repository.ProductRepository

	mu       sync.Mutex
	received []events.Event
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	mock := clock.NewMock()
	mock.Set(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))

	app := &testApp{db: db, bus: events.NewEventBus(nil), clock: mock}
	record := func(_ context.Context, e events.Event) error {
		app.mu.Lock()
		defer app.mu.Unlock()
		app.received = append(app.received, e)
		return nil
	}
	app.bus.Subscribe(events.TopicDirectiveHighlight, record)
	app.bus.Subscribe(events.TopicSaleNavigate, record)

	txm := repository.NewTransactionManager(db)
	auditRepo := repository.NewAuditRepository(db)
	accountRepo := repository.NewAccountRequestRepository(db)
	inventoryRepo := repository.NewInventoryRequestRepository(db)
	saleRepo := repository.NewSaleRepository(db)
	invTx := repository.NewInventoryTxRepository(db)
	app.products = repository.NewProductRepository(db)

	accounts := service.NewAccountService(accountRepo, auditRepo, txm, app.bus, nil)
	inventory := service.NewInventoryRequestService(inventoryRepo, app.products, invTx, auditRepo, txm, app.bus, nil)
	sales := service.NewSalesService(saleRepo, app.products, invTx, auditRepo, txm, app.bus, nil)
	validity := service.NewValidityService(app.products, app.bus, mock, nil)
	analytics := service.NewAnalyticsService(repository.NewAnalyticsRepository(db), saleRepo, accountRepo, inventoryRepo, nil, nil)

	auth := middleware.NewAuthenticator(secret)
	r := gin.New()
	api := r.Group("")
	NewAccountHandler(accounts, auth).RegisterRoutes(api)
	NewInventoryRequestHandler(inventory, auth).RegisterRoutes(api)
	NewSalesHandler(sales, auth).RegisterRoutes(api)
	NewValidityHandler(validity, auth).RegisterRoutes(api)
	NewInventoryHandler(service.NewInventoryService(app.products, invTx), auth).RegisterRoutes(api)
	NewAnalyticsHandler(analytics, auth, mock).RegisterRoutes(api)
	NewAuditHandler(service.NewAuditService(auditRepo), auth).RegisterRoutes(api)
	NewDirectiveHandler(app.bus, auth, mock).RegisterRoutes(api)
	app.router = r
	return app
}

func token(t *testing.T, role, name string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  name,
		"name": name,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func (a *testApp) do(t *testing.T, method, path, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, role, role+"-user"))
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, dst), w.Body.String())
}

func decodeList(t *testing.T, w *httptest.ResponseRecorder, dst any) listEnvelope {
	t.Helper()
	var env listEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, dst))
	return env
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(fmt.Errorf("x: %w", service.ErrValidation)))
	assert.Equal(t, http.StatusNotFound, statusFor(fmt.Errorf("x: %w", service.ErrNotFound)))
	assert.Equal(t, http.StatusConflict, statusFor(service.ErrInvalidState))
	assert.Equal(t, http.StatusConflict, statusFor(service.ErrConflict))
	assert.Equal(t, http.StatusConflict, statusFor(service.ErrInsufficientStock))
	assert.Equal(t, http.StatusForbidden, statusFor(fmt.Errorf("x: %w", service.ErrForbidden)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(fmt.Errorf("boom")))
}

func TestAccountHandler_Flow(t *testing.T) {
	app := newTestApp(t)

	body := map[string]any{
		"full_name": "Ann Lee",
		"username":  "ann",
		"email":     "ann@example.com",
		"password":  "secret1",
		"branch":    "North",
		"role":      []string{"staff"},
	}
	w := app.do(t, http.MethodPost, "/api/accounts/register", middleware.RoleManager, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created service.AccountRequestResponse
	decodeData(t, w, &created)
	assert.Equal(t, "manager-user", created.CreatedByName)

	assert.Equal(t, http.StatusConflict, app.do(t, http.MethodPost, "/api/accounts/register", middleware.RoleManager, body).Code)
	assert.Equal(t, http.StatusBadRequest, app.do(t, http.MethodPost, "/api/accounts/register", middleware.RoleManager, map[string]any{"username": "x"}).Code)
	assert.Equal(t, http.StatusUnauthorized, app.do(t, http.MethodGet, "/api/accounts/requests", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, app.do(t, http.MethodGet, "/api/accounts/requests", middleware.RoleManager, nil).Code)

	w = app.do(t, http.MethodGet, "/api/accounts/requests?status=pending", middleware.RoleOwner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []service.AccountRequestResponse
	env := decodeList(t, w, &list)
	assert.EqualValues(t, 1, env.Total)
	assert.Equal(t, 1, env.Pages)
	require.Len(t, list, 1)

	path := fmt.Sprintf("/api/accounts/requests/%d/approve", created.UserID)
	w = app.do(t, http.MethodPut, path, middleware.RoleOwner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var approved service.AccountRequestResponse
	decodeData(t, w, &approved)
	assert.Equal(t, model.RequestApproved, approved.RequestStatus)
	assert.Equal(t, "owner-user", approved.DecidedBy)

	assert.Equal(t, http.StatusConflict, app.do(t, http.MethodPut, path, middleware.RoleOwner, nil).Code)
	assert.Equal(t, http.StatusNotFound, app.do(t, http.MethodPut, "/api/accounts/requests/99/reject", middleware.RoleOwner, nil).Code)
	assert.Equal(t, http.StatusBadRequest, app.do(t, http.MethodPut, "/api/accounts/requests/abc/approve", middleware.RoleOwner, nil).Code)
}

func TestInventoryRequestHandler_StagedApproval(t *testing.T) {
	app := newTestApp(t)

	body := map[string]any{
		"action_type": "add",
		"productData": map[string]any{"name": "Green Tea", "sku": "GT-1", "quantity": 5, "unit_price": "2.00"},
		"branch_name": "North",
	}
	body["requires_admin_review"] = true
	w := app.do(t, http.MethodPost, "/api/items/pending", middleware.RoleStaff, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var submitted service.InventoryRequestResponse
	decodeData(t, w, &submitted)
	base := fmt.Sprintf("/api/items/pending/%d", submitted.PendingID)

	assert.Equal(t, http.StatusForbidden, app.do(t, http.MethodPut, base+"/approve", middleware.RoleStaff, nil).Code)

	w = app.do(t, http.MethodPut, base+"/approve", middleware.RoleManager, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var staged service.InventoryRequestResponse
	decodeData(t, w, &staged)
	assert.Equal(t, model.StageAdminReview, staged.CurrentStage)

	w = app.do(t, http.MethodPut, base+"/approve", middleware.RoleManager, nil)
	assert.Equal(t, http.StatusForbidden, w.Code, "managers cannot decide the admin stage")

	w = app.do(t, http.MethodPut, base+"/approve", middleware.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var done service.InventoryRequestResponse
	decodeData(t, w, &done)
	assert.Equal(t, model.RequestApproved, done.Status)
	assert.Equal(t, model.StageCompleted, done.CurrentStage)

	w = app.do(t, http.MethodGet, base+"/history", middleware.RoleStaff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []service.HistoryEntry
	decodeData(t, w, &history)
	assert.Len(t, history, 3)

	w = app.do(t, http.MethodGet, "/api/items/request-status", middleware.RoleStaff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary service.RequestStatusSummary
	decodeData(t, w, &summary)
	assert.EqualValues(t, 1, summary.Approved)

	assert.Equal(t, http.StatusNotFound, app.do(t, http.MethodGet, "/api/items/pending/42", middleware.RoleStaff, nil).Code)
}

func TestInventoryRequestHandler_RequestChanges(t *testing.T) {
	app := newTestApp(t)
	p := &model.Product{SKU: "RC-1", Name: "Rice", BranchName: "North", Quantity: 3, UnitPrice: decimal.NewFromInt(1)}
	require.NoError(t, app.products.Create(context.Background(), p))

	w := app.do(t, http.MethodPost, "/api/items/pending", middleware.RoleStaff, map[string]any{
		"action_type": "update",
		"product_id":  p.ID,
		"productData": map[string]any{"quantity": 9},
		"branch_name": "North",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var submitted service.InventoryRequestResponse
	decodeData(t, w, &submitted)
	base := fmt.Sprintf("/api/items/pending/%d", submitted.PendingID)

	assert.Equal(t, http.StatusBadRequest, app.do(t, http.MethodPut, base+"/request-changes", middleware.RoleManager, map[string]any{}).Code)

	w = app.do(t, http.MethodPut, base+"/request-changes", middleware.RoleManager, map[string]any{"change_type": "quantity", "comment": "count again"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var changed service.InventoryRequestResponse
	decodeData(t, w, &changed)
	assert.Equal(t, model.RequestChangesRequested, changed.Status)

	assert.Equal(t, http.StatusConflict, app.do(t, http.MethodPut, base+"/approve", middleware.RoleOwner, nil).Code)

	w = app.do(t, http.MethodPut, base+"/resubmit", middleware.RoleStaff, map[string]any{"productData": map[string]any{"quantity": 8}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = app.do(t, http.MethodPut, base+"/reject", middleware.RoleOwner, map[string]any{"reason": "duplicate"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rejected service.InventoryRequestResponse
	decodeData(t, w, &rejected)
	assert.Equal(t, "duplicate", rejected.RejectionReason)
}

func TestSalesHandler_RecordAndDeliver(t *testing.T) {
	app := newTestApp(t)
	p := &model.Product{SKU: "SL-1", Name: "Soap", BranchName: "North", Quantity: 4, UnitPrice: decimal.RequireFromString("2.25")}
	require.NoError(t, app.products.Create(context.Background(), p))

	sale := map[string]any{"branch_name": "North", "items": []map[string]any{{"product_id": p.ID, "quantity": 2}}}
	w := app.do(t, http.MethodPost, "/api/sales", middleware.RoleStaff, sale)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var recorded service.SaleResponse
	decodeData(t, w, &recorded)
	assert.Equal(t, "4.50", recorded.Total)
	assert.Equal(t, "staff-user", recorded.CashierName)

	big := map[string]any{"branch_name": "North", "items": []map[string]any{{"product_id": p.ID, "quantity": 10}}}
	assert.Equal(t, http.StatusConflict, app.do(t, http.MethodPost, "/api/sales", middleware.RoleStaff, big).Code)
	empty := map[string]any{"branch_name": "North", "items": []map[string]any{}}
	assert.Equal(t, http.StatusBadRequest, app.do(t, http.MethodPost, "/api/sales", middleware.RoleStaff, empty).Code)

	w = app.do(t, http.MethodGet, "/api/sales?search="+fmt.Sprint(recorded.ID), middleware.RoleStaff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []service.SaleResponse
	env := decodeList(t, w, &list)
	assert.EqualValues(t, 1, env.Total)

	path := fmt.Sprintf("/api/sales/%d/deliver", recorded.ID)
	require.Equal(t, http.StatusOK, app.do(t, http.MethodPut, path, middleware.RoleStaff, nil).Code)
	assert.Equal(t, http.StatusConflict, app.do(t, http.MethodPut, path, middleware.RoleStaff, nil).Code)

}

func TestInventoryHandler_StockReads(t *testing.T) {
	app := newTestApp(t)
	p := &model.Product{SKU: "SL-2", Name: "Shampoo", BranchName: "North", Quantity: 5, UnitPrice: decimal.RequireFromString("3.10")}
	require.NoError(t, app.products.Create(context.Background(), p))

	sale := map[string]any{"branch_name": "North", "items": []map[string]any{{"product_id": p.ID, "quantity": 3}}}
	require.Equal(t, http.StatusCreated, app.do(t, http.MethodPost, "/api/sales", middleware.RoleStaff, sale).Code)

	w := app.do(t, http.MethodGet, "/api/products?search=shamp", middleware.RoleStaff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var products []service.ProductResponse
	env := decodeList(t, w, &products)
	assert.EqualValues(t, 1, env.Total)
	require.Len(t, products, 1)
	assert.Equal(t, 2, products[0].Quantity)

	w = app.do(t, http.MethodGet, fmt.Sprintf("/api/products/%d/movements", p.ID), middleware.RoleStaff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var movements []service.StockMovement
	decodeData(t, w, &movements)
	require.Len(t, movements, 1)
	assert.Equal(t, model.TxTypeOut, movements[0].TransactionType)
	assert.Equal(t, 2, movements[0].StockAfter)

	assert.Equal(t, http.StatusNotFound, app.do(t, http.MethodGet, "/api/products/99", middleware.RoleStaff, nil).Code)
	assert.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/api/products/validity", middleware.RoleStaff, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, app.do(t, http.MethodGet, "/api/products", "", nil).Code)
}

func TestAnalyticsHandler_Ranges(t *testing.T) {
	app := newTestApp(t)

	assert.Equal(t, http.StatusForbidden, app.do(t, http.MethodGet, "/api/analytics/kpis", middleware.RoleStaff, nil).Code)
	assert.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/api/analytics/kpis", middleware.RoleManager, nil).Code)
	assert.Equal(t, http.StatusBadRequest, app.do(t, http.MethodGet, "/api/analytics/kpis?from=yesterday", middleware.RoleManager, nil).Code)
	assert.Equal(t, http.StatusBadRequest, app.do(t, http.MethodGet, "/api/analytics/kpis?from=2025-03-10&to=2025-03-01", middleware.RoleManager, nil).Code)

	w := app.do(t, http.MethodGet, "/api/analytics/sales-series?from=2025-03-01&to=2025-03-07", middleware.RoleOwner, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var series []model.SeriesPoint
	decodeData(t, w, &series)
	assert.Len(t, series, 7, "to is inclusive for bare dates")

	w = app.do(t, http.MethodGet, "/api/analytics/forecast?from=2025-03-01&to=2025-03-07&horizon=3", middleware.RoleOwner, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var forecast []model.ForecastPoint
	decodeData(t, w, &forecast)
	assert.Len(t, forecast, 3)

	assert.Equal(t, http.StatusBadRequest, app.do(t, http.MethodGet, "/api/analytics/delivery?threshold=abc", middleware.RoleOwner, nil).Code)
	assert.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/api/analytics/branches", middleware.RoleOwner, nil).Code)
}

func TestValidityAndAuditHandlers(t *testing.T) {
	app := newTestApp(t)
	expired := app.clock.Now().AddDate(0, 0, -1)
	p := &model.Product{SKU: "MK-1", Name: "Milk", BranchName: "North", Quantity: 1, UnitPrice: decimal.NewFromInt(1), ExpiryDate: &expired}
	require.NoError(t, app.products.Create(context.Background(), p))

	w := app.do(t, http.MethodGet, "/api/products/validity/summary?branch=North", middleware.RoleStaff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sum service.ValiditySummary
	decodeData(t, w, &sum)
	assert.EqualValues(t, 1, sum.Expired)
	assert.Equal(t, service.DefaultExpiringWithinDays, sum.WithinDays)

	_ = app.do(t, http.MethodPost, "/api/accounts/register", middleware.RoleOwner, map[string]any{
		"full_name": "Bo", "username": "bo", "email": "bo@example.com", "password": "secret1", "branch": "South", "role": []string{"staff"},
	})
	assert.Equal(t, http.StatusForbidden, app.do(t, http.MethodGet, "/api/audit-logs", middleware.RoleManager, nil).Code)
	w = app.do(t, http.MethodGet, "/api/audit-logs?entity_type=account_request", middleware.RoleOwner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var logs []service.AuditLogResponse
	env := decodeList(t, w, &logs)
	assert.EqualValues(t, 1, env.Total)
	require.Len(t, logs, 1)
	assert.Equal(t, model.EntityAccountRequest, logs[0].EntityType)
}

func TestDirectiveHandler_Publishes(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/api/directives", middleware.RoleOwner, map[string]any{
		"focusKind": "USER",
		"targetIds": []any{3, "4"},
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	assert.Equal(t, http.StatusBadRequest, app.do(t, http.MethodPost, "/api/directives", middleware.RoleOwner, map[string]any{"focusKind": "sale"}).Code)
	assert.Equal(t, http.StatusForbidden, app.do(t, http.MethodPost, "/api/directives", middleware.RoleStaff, map[string]any{"focusKind": "user"}).Code)
	require.Equal(t, http.StatusAccepted, app.do(t, http.MethodPost, "/api/directives/sales/7", middleware.RoleManager, nil).Code)

	app.bus.Wait()
	app.mu.Lock()
	defer app.mu.Unlock()
	require.Len(t, app.received, 2)

	byType := map[string]events.Event{}
	for _, e := range app.received {
		byType[e.EventType()] = e
	}
	d := byType[events.TopicDirectiveHighlight].Payload().(events.DirectiveEvent).Directive
	assert.Equal(t, "approval-highlight", d.Type)
	assert.Equal(t, "user", string(d.FocusKind))
	assert.Equal(t, app.clock.Now().UnixMilli(), d.TriggeredAt)
	assert.Len(t, d.TargetIDs, 2)

	nav := byType[events.TopicSaleNavigate].Payload().(events.SaleNavigateEvent)
	assert.EqualValues(t, 7, nav.SaleID)
}
