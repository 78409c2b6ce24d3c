package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smallbiznis/flashsale/internal/clock"
	"github.com/smallbiznis/flashsale/internal/issuance"
	queuedomain "github.com/smallbiznis/flashsale/internal/queue/domain"
	"github.com/smallbiznis/flashsale/internal/timedeal/domain"
	"github.com/smallbiznis/flashsale/internal/timedeal/repository"
)

type queueGate struct {
	admitted bool
}

func (g *queueGate) Configure(context.Context, queuedomain.ConfigureRequest) (*queuedomain.QueueConfig, error) {
	return nil, nil
}
func (g *queueGate) Deactivate(context.Context, string, string) error { return nil }
func (g *queueGate) ActiveQueues(context.Context) ([]queuedomain.QueueConfig, error) {
	return nil, nil
}
func (g *queueGate) Enter(context.Context, string, string, string) (*queuedomain.EntryStatusResponse, error) {
	return nil, nil
}
func (g *queueGate) Status(context.Context, string) (*queuedomain.EntryStatusResponse, error) {
	return nil, nil
}
func (g *queueGate) Leave(context.Context, string) error { return nil }
func (g *queueGate) ReleaseBatch(context.Context, string, string) (int, error) {
	return 0, nil
}
func (g *queueGate) ExpireOverdue(context.Context, string, string) (int, error) {
	return 0, nil
}
func (g *queueGate) ValidateAdmission(context.Context, string, string, string) (bool, error) {
	return g.admitted, nil
}

type fixture struct {
	svc   domain.Service
	store *issuance.FakeStore
	gate  *queueGate
	clock *clock.FakeClock
	db    *gorm.DB
}

func setup(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&domain.TimeDeal{},
		&domain.TimeDealProduct{},
		&domain.TimeDealPurchase{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	store := issuance.NewFakeStore()
	gate := &queueGate{admitted: true}
	fc := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fc,
		Repo:     repository.Provide(),
		Store:    store,
		QueueSvc: gate,
	})
	return &fixture{svc: svc, store: store, gate: gate, clock: fc, db: db}
}

// activeDeal creates a deal whose window opened an hour ago and runs the
// activation pass so its ledger is seeded.
func (f *fixture) activeDeal(t *testing.T, dealQty, maxPerUser int64, queueRequired bool) *domain.DealDetail {
	t.Helper()
	ctx := context.Background()

	deal, err := f.svc.Create(ctx, domain.CreateRequest{
		Name:          "lunch rush",
		QueueRequired: queueRequired,
		StartsAt:      f.clock.Now().Add(-time.Hour),
		EndsAt:        f.clock.Now().Add(6 * time.Hour),
		Products: []domain.ProductRequest{
			{ProductID: 1001, DealPrice: 4900, DealQuantity: dealQty, MaxPerUser: maxPerUser},
		},
	})
	require.NoError(t, err)

	activated, err := f.svc.ActivateDue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, activated)

	detail, err := f.svc.Get(ctx, deal.ID)
	require.NoError(t, err)
	return detail
}

func ledgerID(productRowID int64) string {
	return strconv.FormatInt(productRowID, 10)
}

func TestCreateValidations(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, domain.CreateRequest{
		Name:     "backwards",
		StartsAt: f.clock.Now().Add(time.Hour),
		EndsAt:   f.clock.Now(),
		Products: []domain.ProductRequest{{ProductID: 1, DealQuantity: 5}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidWindow)

	_, err = f.svc.Create(ctx, domain.CreateRequest{
		Name:     "empty",
		StartsAt: f.clock.Now(),
		EndsAt:   f.clock.Now().Add(time.Hour),
	})
	assert.Error(t, err)

	_, err = f.svc.Create(ctx, domain.CreateRequest{
		Name:     "zero stock",
		StartsAt: f.clock.Now(),
		EndsAt:   f.clock.Now().Add(time.Hour),
		Products: []domain.ProductRequest{{ProductID: 1, DealQuantity: 0}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestActivateDueSeedsLedger(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	deal, err := f.svc.Create(ctx, domain.CreateRequest{
		Name:     "evening drop",
		StartsAt: f.clock.Now().Add(30 * time.Minute),
		EndsAt:   f.clock.Now().Add(2 * time.Hour),
		Products: []domain.ProductRequest{{ProductID: 7, DealQuantity: 25, MaxPerUser: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DealScheduled, deal.Status)

	// Nothing due yet.
	activated, err := f.svc.ActivateDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, activated)

	f.clock.Advance(time.Hour)
	activated, err = f.svc.ActivateDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, activated)

	detail, err := f.svc.Get(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DealActive, detail.Status)

	remaining, err := f.store.Remaining(ctx, "timedeal", ledgerID(detail.Products[0].ID))
	require.NoError(t, err)
	assert.Equal(t, int64(25), remaining)

	// Second run in immediate succession finds nothing newly due.
	activated, err = f.svc.ActivateDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, activated)
}

func TestPurchaseFlow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	deal := f.activeDeal(t, 10, 3, false)
	productID := deal.Products[0].ID

	resp, err := f.svc.Purchase(ctx, domain.PurchaseRequest{
		TimeDealProductID: productID,
		UserID:            "user-1",
		Quantity:          2,
	})
	require.NoError(t, err)
	assert.Equal(t, issuance.Issued, resp.Result)
	require.NotNil(t, resp.Purchase)
	assert.Equal(t, domain.PurchaseConfirmed, resp.Purchase.Status)

	detail, err := f.svc.Get(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), detail.Products[0].SoldQuantity)

	// Two more would exceed the per-user cap of 3.
	resp, err = f.svc.Purchase(ctx, domain.PurchaseRequest{
		TimeDealProductID: productID,
		UserID:            "user-1",
		Quantity:          2,
	})
	require.NoError(t, err)
	assert.Equal(t, issuance.AlreadyClaimed, resp.Result)
	assert.Nil(t, resp.Purchase)
}

func TestPurchaseExhausted(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	deal := f.activeDeal(t, 2, 5, false)
	productID := deal.Products[0].ID

	resp, err := f.svc.Purchase(ctx, domain.PurchaseRequest{TimeDealProductID: productID, UserID: "user-1", Quantity: 2})
	require.NoError(t, err)
	require.Equal(t, issuance.Issued, resp.Result)

	resp, err = f.svc.Purchase(ctx, domain.PurchaseRequest{TimeDealProductID: productID, UserID: "user-2", Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, issuance.Exhausted, resp.Result)
}

func TestPurchaseLifecycleChecks(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	scheduled, err := f.svc.Create(ctx, domain.CreateRequest{
		Name:     "future",
		StartsAt: f.clock.Now().Add(time.Hour),
		EndsAt:   f.clock.Now().Add(2 * time.Hour),
		Products: []domain.ProductRequest{{ProductID: 1, DealQuantity: 5}},
	})
	require.NoError(t, err)

	_, err = f.svc.Purchase(ctx, domain.PurchaseRequest{
		TimeDealProductID: scheduled.Products[0].ID,
		UserID:            "user-1",
		Quantity:          1,
	})
	assert.ErrorIs(t, err, domain.ErrDealNotActive)

	deal := f.activeDeal(t, 5, 1, false)
	f.clock.Advance(12 * time.Hour)
	_, err = f.svc.Purchase(ctx, domain.PurchaseRequest{
		TimeDealProductID: deal.Products[0].ID,
		UserID:            "user-1",
		Quantity:          1,
	})
	assert.ErrorIs(t, err, domain.ErrDealEnded)

	_, err = f.svc.Purchase(ctx, domain.PurchaseRequest{TimeDealProductID: 424242, UserID: "user-1", Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestPurchaseQueueGate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	deal := f.activeDeal(t, 5, 1, true)

	f.gate.admitted = false
	_, err := f.svc.Purchase(ctx, domain.PurchaseRequest{
		TimeDealProductID: deal.Products[0].ID,
		UserID:            "user-1",
		Quantity:          1,
	})
	assert.ErrorIs(t, err, domain.ErrAdmissionRequired)

	f.gate.admitted = true
	resp, err := f.svc.Purchase(ctx, domain.PurchaseRequest{
		TimeDealProductID: deal.Products[0].ID,
		UserID:            "user-1",
		Quantity:          1,
	})
	require.NoError(t, err)
	assert.Equal(t, issuance.Issued, resp.Result)
}

func TestPurchaseFailsClosedWhenLedgerDown(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	deal := f.activeDeal(t, 5, 1, false)

	f.store.Err = fmt.Errorf("connection refused")

	resp, err := f.svc.Purchase(ctx, domain.PurchaseRequest{
		TimeDealProductID: deal.Products[0].ID,
		UserID:            "user-1",
		Quantity:          1,
	})
	require.Error(t, err)
	assert.Nil(t, resp)
}

func TestRollbackPurchase(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	deal := f.activeDeal(t, 10, 5, false)
	productID := deal.Products[0].ID

	resp, err := f.svc.Purchase(ctx, domain.PurchaseRequest{TimeDealProductID: productID, UserID: "user-1", Quantity: 3})
	require.NoError(t, err)
	require.Equal(t, issuance.Issued, resp.Result)

	require.NoError(t, f.svc.RollbackPurchase(ctx, resp.Purchase.ID))

	remaining, err := f.store.Remaining(ctx, "timedeal", ledgerID(productID))
	require.NoError(t, err)
	assert.Equal(t, int64(10), remaining)

	detail, err := f.svc.Get(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), detail.Products[0].SoldQuantity)

	purchases, err := f.svc.UserPurchases(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	assert.Equal(t, domain.PurchaseCancelled, purchases[0].Status)
	require.NotNil(t, purchases[0].CancelledAt)

	// A cancelled purchase cannot be rolled back again.
	assert.ErrorIs(t, f.svc.RollbackPurchase(ctx, resp.Purchase.ID), domain.ErrPurchaseNotRevocable)
}

func TestEndDue(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	deal := f.activeDeal(t, 5, 1, false)

	ended, err := f.svc.EndDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, ended)

	f.clock.Advance(12 * time.Hour)
	ended, err = f.svc.EndDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ended)

	detail, err := f.svc.Get(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DealEnded, detail.Status)
	assert.False(t, f.store.Initialized("timedeal", ledgerID(deal.Products[0].ID)))

	// Second pass finds nothing newly due.
	ended, err = f.svc.EndDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, ended)
}

func TestCancel(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	deal := f.activeDeal(t, 5, 1, false)

	require.NoError(t, f.svc.Cancel(ctx, deal.ID))
	assert.False(t, f.store.Initialized("timedeal", ledgerID(deal.Products[0].ID)))

	detail, err := f.svc.Get(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DealCancelled, detail.Status)

	assert.ErrorIs(t, f.svc.Cancel(ctx, deal.ID), domain.ErrInvalidTransition)
}

func TestReseedLedger(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	deal := f.activeDeal(t, 50, 5, false)
	productID := deal.Products[0].ID

	// 20 sold, then the cache is wiped.
	require.NoError(t, f.db.Exec(`UPDATE time_deal_products SET sold_quantity = 20 WHERE id = ?`, productID).Error)
	require.NoError(t, f.store.Clear(ctx, "timedeal", ledgerID(productID)))

	require.NoError(t, f.svc.ReseedLedger(ctx))

	remaining, err := f.store.Remaining(ctx, "timedeal", ledgerID(productID))
	require.NoError(t, err)
	assert.Equal(t, int64(30), remaining)
}
