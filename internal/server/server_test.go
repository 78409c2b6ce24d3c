package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smallbiznis/flashsale/internal/config"
	coupondomain "github.com/smallbiznis/flashsale/internal/coupon/domain"
	inventorydomain "github.com/smallbiznis/flashsale/internal/inventory/domain"
	"github.com/smallbiznis/flashsale/internal/issuance"
	queuedomain "github.com/smallbiznis/flashsale/internal/queue/domain"
	timedealdomain "github.com/smallbiznis/flashsale/internal/timedeal/domain"
)

type fakeCouponService struct {
	issueResp *coupondomain.IssueResponse
	issueErr  error
}

func (f *fakeCouponService) Create(context.Context, coupondomain.CreateRequest) (*coupondomain.Coupon, error) {
	return &coupondomain.Coupon{ID: 1}, nil
}
func (f *fakeCouponService) Get(_ context.Context, id int64) (*coupondomain.Coupon, error) {
	if id == 404 {
		return nil, coupondomain.ErrCouponNotFound
	}
	return &coupondomain.Coupon{ID: id}, nil
}
func (f *fakeCouponService) ListAvailable(context.Context) ([]coupondomain.Coupon, error) {
	return []coupondomain.Coupon{}, nil
}
func (f *fakeCouponService) Issue(context.Context, int64, string) (*coupondomain.IssueResponse, error) {
	if f.issueErr != nil {
		return nil, f.issueErr
	}
	return f.issueResp, nil
}
func (f *fakeCouponService) UserCoupons(context.Context, string) ([]coupondomain.UserCoupon, error) {
	return []coupondomain.UserCoupon{}, nil
}
func (f *fakeCouponService) Use(context.Context, int64, string, string) error { return nil }
func (f *fakeCouponService) Deactivate(context.Context, int64) error          { return nil }
func (f *fakeCouponService) ExpireDue(context.Context) (int, error)           { return 0, nil }
func (f *fakeCouponService) ReseedLedger(context.Context) error               { return nil }

type fakeTimeDealService struct {
	purchaseResp *timedealdomain.PurchaseResponse
	purchaseErr  error
}

func (f *fakeTimeDealService) Create(context.Context, timedealdomain.CreateRequest) (*timedealdomain.DealDetail, error) {
	return &timedealdomain.DealDetail{}, nil
}
func (f *fakeTimeDealService) Get(context.Context, int64) (*timedealdomain.DealDetail, error) {
	return &timedealdomain.DealDetail{}, nil
}
func (f *fakeTimeDealService) ListActive(context.Context) ([]timedealdomain.DealDetail, error) {
	return []timedealdomain.DealDetail{}, nil
}
func (f *fakeTimeDealService) Purchase(context.Context, timedealdomain.PurchaseRequest) (*timedealdomain.PurchaseResponse, error) {
	if f.purchaseErr != nil {
		return nil, f.purchaseErr
	}
	return f.purchaseResp, nil
}
func (f *fakeTimeDealService) UserPurchases(context.Context, string) ([]timedealdomain.TimeDealPurchase, error) {
	return []timedealdomain.TimeDealPurchase{}, nil
}
func (f *fakeTimeDealService) RollbackPurchase(context.Context, int64) error { return nil }
func (f *fakeTimeDealService) Cancel(context.Context, int64) error           { return nil }
func (f *fakeTimeDealService) ActivateDue(context.Context) (int, error)      { return 0, nil }
func (f *fakeTimeDealService) EndDue(context.Context) (int, error)           { return 0, nil }
func (f *fakeTimeDealService) ReseedLedger(context.Context) error            { return nil }

type fakeQueueService struct {
	statusErr error
}

func (f *fakeQueueService) Configure(context.Context, queuedomain.ConfigureRequest) (*queuedomain.QueueConfig, error) {
	return &queuedomain.QueueConfig{}, nil
}
func (f *fakeQueueService) Deactivate(context.Context, string, string) error { return nil }
func (f *fakeQueueService) ActiveQueues(context.Context) ([]queuedomain.QueueConfig, error) {
	return nil, nil
}
func (f *fakeQueueService) Enter(_ context.Context, eventType, eventID, _ string) (*queuedomain.EntryStatusResponse, error) {
	return &queuedomain.EntryStatusResponse{
		Token:     "tok-1",
		EventType: eventType,
		EventID:   eventID,
		Status:    queuedomain.StatusWaiting,
		Position:  1,
	}, nil
}
func (f *fakeQueueService) Status(context.Context, string) (*queuedomain.EntryStatusResponse, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return &queuedomain.EntryStatusResponse{Token: "tok-1"}, nil
}
func (f *fakeQueueService) Leave(context.Context, string) error { return nil }
func (f *fakeQueueService) ReleaseBatch(context.Context, string, string) (int, error) {
	return 0, nil
}
func (f *fakeQueueService) ExpireOverdue(context.Context, string, string) (int, error) {
	return 0, nil
}
func (f *fakeQueueService) ValidateAdmission(context.Context, string, string, string) (bool, error) {
	return true, nil
}

type fakeInventoryService struct {
	mutateErr error
}

func (f *fakeInventoryService) snapshot() (*inventorydomain.Snapshot, error) {
	if f.mutateErr != nil {
		return nil, f.mutateErr
	}
	return &inventorydomain.Snapshot{ProductID: 7, Available: 10, Total: 10}, nil
}
func (f *fakeInventoryService) Initialize(context.Context, inventorydomain.InitializeRequest) (*inventorydomain.Snapshot, error) {
	return f.snapshot()
}
func (f *fakeInventoryService) Get(context.Context, int64) (*inventorydomain.Snapshot, error) {
	return f.snapshot()
}
func (f *fakeInventoryService) Reserve(context.Context, inventorydomain.MutationRequest) (*inventorydomain.Snapshot, error) {
	return f.snapshot()
}
func (f *fakeInventoryService) Deduct(context.Context, inventorydomain.MutationRequest) (*inventorydomain.Snapshot, error) {
	return f.snapshot()
}
func (f *fakeInventoryService) Release(context.Context, inventorydomain.MutationRequest) (*inventorydomain.Snapshot, error) {
	return f.snapshot()
}
func (f *fakeInventoryService) AddStock(context.Context, inventorydomain.MutationRequest) (*inventorydomain.Snapshot, error) {
	return f.snapshot()
}
func (f *fakeInventoryService) ReserveBatch(context.Context, []inventorydomain.MutationRequest) ([]inventorydomain.Snapshot, error) {
	return nil, nil
}
func (f *fakeInventoryService) DeductBatch(context.Context, []inventorydomain.MutationRequest) ([]inventorydomain.Snapshot, error) {
	return nil, nil
}
func (f *fakeInventoryService) ReleaseBatch(context.Context, []inventorydomain.MutationRequest) ([]inventorydomain.Snapshot, error) {
	return nil, nil
}
func (f *fakeInventoryService) Movements(context.Context, int64, int) ([]inventorydomain.StockMovement, error) {
	return []inventorydomain.StockMovement{}, nil
}

type testServer struct {
	engine    *gin.Engine
	coupons   *fakeCouponService
	timedeals *fakeTimeDealService
	queues    *fakeQueueService
	inventory *fakeInventoryService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	coupons := &fakeCouponService{
		issueResp: &coupondomain.IssueResponse{
			Result:     issuance.Issued,
			ResultText: issuance.Issued.String(),
		},
	}
	timedeals := &fakeTimeDealService{
		purchaseResp: &timedealdomain.PurchaseResponse{
			Result:     issuance.Issued,
			ResultText: issuance.Issued.String(),
		},
	}
	queues := &fakeQueueService{}
	inventory := &fakeInventoryService{}

	engine := NewEngine(zap.NewNop())
	srv := NewServer(ServerParams{
		Gin:          engine,
		Cfg:          config.Config{},
		CouponSvc:    coupons,
		TimeDealSvc:  timedeals,
		QueueSvc:     queues,
		InventorySvc: inventory,
	})
	srv.RegisterRoutes()

	return &testServer{
		engine:    engine,
		coupons:   coupons,
		timedeals: timedeals,
		queues:    queues,
		inventory: inventory,
	}
}

func (ts *testServer) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(userIDHeader, userID)
	}
	w := httptest.NewRecorder()
	ts.engine.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIssueCoupon(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/v1/coupons/1/issue", "user-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Missing requester header.
	w = ts.do(t, http.MethodPost, "/v1/coupons/1/issue", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	ts.coupons.issueResp = &coupondomain.IssueResponse{
		Result:     issuance.Exhausted,
		ResultText: issuance.Exhausted.String(),
	}
	w = ts.do(t, http.MethodPost, "/v1/coupons/1/issue", "user-1", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	ts.coupons.issueErr = coupondomain.ErrAdmissionRequired
	w = ts.do(t, http.MethodPost, "/v1/coupons/1/issue", "user-1", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	ts.coupons.issueErr = coupondomain.ErrCouponExpired
	w = ts.do(t, http.MethodPost, "/v1/coupons/1/issue", "user-1", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRetryableErrorsMapToServiceUnavailable(t *testing.T) {
	ts := newTestServer(t)

	// Ledger counter missing mid-flight; startup recovery reseeds it.
	ts.coupons.issueErr = fmt.Errorf("coupon: ledger unavailable: %w", issuance.ErrNotInitialized)
	w := ts.do(t, http.MethodPost, "/v1/coupons/1/issue", "user-1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var parsed struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	assert.Equal(t, "temporarily_unavailable", parsed.Error.Type)

	// Lock-wait timeout on an inventory row.
	ts.inventory.mutateErr = context.DeadlineExceeded
	w = ts.do(t, http.MethodPost, "/v1/admin/inventory/reserve", "", map[string]any{"product_id": 7, "quantity": 2})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetCouponNotFound(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/v1/coupons/404", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPurchaseTimeDeal(t *testing.T) {
	ts := newTestServer(t)
	body := map[string]any{"time_deal_product_id": 10, "quantity": 1}

	w := ts.do(t, http.MethodPost, "/v1/timedeals/purchase", "user-1", body)
	assert.Equal(t, http.StatusOK, w.Code)

	ts.timedeals.purchaseResp = &timedealdomain.PurchaseResponse{
		Result:     issuance.AlreadyClaimed,
		ResultText: issuance.AlreadyClaimed.String(),
	}
	w = ts.do(t, http.MethodPost, "/v1/timedeals/purchase", "user-1", body)
	assert.Equal(t, http.StatusConflict, w.Code)

	ts.timedeals.purchaseErr = timedealdomain.ErrDealEnded
	w = ts.do(t, http.MethodPost, "/v1/timedeals/purchase", "user-1", body)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestQueueRoutes(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/v1/queues/timedeal/9/enter", "user-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var parsed struct {
		Data queuedomain.EntryStatusResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &parsed))
	assert.Equal(t, "tok-1", parsed.Data.Token)
	assert.Equal(t, queuedomain.StatusWaiting, parsed.Data.Status)

	w = ts.do(t, http.MethodGet, "/v1/queue-entries/tok-1", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	ts.queues.statusErr = queuedomain.ErrEntryNotFound
	w = ts.do(t, http.MethodGet, "/v1/queue-entries/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodDelete, "/v1/queue-entries/tok-1", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInventoryRoutes(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/v1/admin/inventory", "", map[string]any{"product_id": 7, "quantity": 10})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(t, http.MethodPost, "/v1/admin/inventory/reserve", "", map[string]any{"product_id": 7, "quantity": 2})
	assert.Equal(t, http.StatusOK, w.Code)

	ts.inventory.mutateErr = inventorydomain.ErrInsufficientStock
	w = ts.do(t, http.MethodPost, "/v1/admin/inventory/reserve", "", map[string]any{"product_id": 7, "quantity": 100})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = ts.do(t, http.MethodGet, "/v1/admin/inventory/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
