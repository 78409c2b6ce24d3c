package scheduler

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
	"github.com/smallbiznis/flashsale/internal/config"
	coupondomain "github.com/smallbiznis/flashsale/internal/coupon/domain"
	couponrepo "github.com/smallbiznis/flashsale/internal/coupon/repository"
	couponservice "github.com/smallbiznis/flashsale/internal/coupon/service"
	"github.com/smallbiznis/flashsale/internal/issuance"
	"github.com/smallbiznis/flashsale/internal/lock"
	queuedomain "github.com/smallbiznis/flashsale/internal/queue/domain"
	queuerepo "github.com/smallbiznis/flashsale/internal/queue/repository"
	queueservice "github.com/smallbiznis/flashsale/internal/queue/service"
	timedealdomain "github.com/smallbiznis/flashsale/internal/timedeal/domain"
	timedealrepo "github.com/smallbiznis/flashsale/internal/timedeal/repository"
	timedealservice "github.com/smallbiznis/flashsale/internal/timedeal/service"
)

type fixture struct {
	sched  *Scheduler
	store  *issuance.FakeStore
	locker *lock.FakeLocker
	clock  *clock.FakeClock

	couponSvc   coupondomain.Service
	timeDealSvc timedealdomain.Service
	queueSvc    queuedomain.Service
	line        *queueservice.FakeLine
	db          *gorm.DB
}

func setup(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&coupondomain.Coupon{},
		&coupondomain.UserCoupon{},
		&timedealdomain.TimeDeal{},
		&timedealdomain.TimeDealProduct{},
		&timedealdomain.TimeDealPurchase{},
		&queuedomain.QueueConfig{},
		&queuedomain.QueueEntry{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	fc := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	store := issuance.NewFakeStore()
	locker := lock.NewFakeLocker()
	line := queueservice.NewFakeLine()

	cfg := config.Config{
		Queue: config.QueueConfig{
			DefaultMaxCapacity: 100,
			DefaultBatchSize:   10,
			DefaultInterval:    5 * time.Second,
			EntryTTL:           10 * time.Minute,
		},
	}

	queueSvc := queueservice.New(queueservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fc,
		Cfg:   cfg,
		Repo:  queuerepo.Provide(),
		Line:  line,
	})
	couponSvc := couponservice.New(couponservice.Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fc,
		Repo:     couponrepo.Provide(),
		Store:    store,
		QueueSvc: queueSvc,
	})
	timeDealSvc := timedealservice.New(timedealservice.Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    fc,
		Repo:     timedealrepo.Provide(),
		Store:    store,
		QueueSvc: queueSvc,
	})

	sched, err := New(Params{
		DB:          db,
		Log:         log,
		Clock:       fc,
		Locker:      locker,
		CouponSvc:   couponSvc,
		TimeDealSvc: timeDealSvc,
		QueueSvc:    queueSvc,
		Config:      Config{TickInterval: time.Second},
	})
	require.NoError(t, err)

	return &fixture{
		sched:       sched,
		store:       store,
		locker:      locker,
		clock:       fc,
		couponSvc:   couponSvc,
		timeDealSvc: timeDealSvc,
		queueSvc:    queueSvc,
		line:        line,
		db:          db,
	}
}

func (f *fixture) scheduledDeal(t *testing.T, startIn, runFor time.Duration, qty int64) *timedealdomain.DealDetail {
	t.Helper()
	deal, err := f.timeDealSvc.Create(context.Background(), timedealdomain.CreateRequest{
		Name:     "tick deal",
		StartsAt: f.clock.Now().Add(startIn),
		EndsAt:   f.clock.Now().Add(startIn + runFor),
		Products: []timedealdomain.ProductRequest{
			{ProductID: 555, DealPrice: 1900, DealQuantity: qty, MaxPerUser: 1},
		},
	})
	require.NoError(t, err)
	return deal
}

func TestTickActivatesAndEndsDeals(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	deal := f.scheduledDeal(t, 30*time.Minute, time.Hour, 20)

	require.NoError(t, f.sched.RunOnce(ctx))
	detail, err := f.timeDealSvc.Get(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, timedealdomain.DealScheduled, detail.Status)

	f.clock.Advance(time.Hour)
	require.NoError(t, f.sched.RunOnce(ctx))
	detail, err = f.timeDealSvc.Get(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, timedealdomain.DealActive, detail.Status)

	remaining, err := f.store.Remaining(ctx, "timedeal", strconv.FormatInt(detail.Products[0].ID, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(20), remaining)

	f.clock.Advance(2 * time.Hour)
	require.NoError(t, f.sched.RunOnce(ctx))
	detail, err = f.timeDealSvc.Get(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, timedealdomain.DealEnded, detail.Status)
}

func TestTickExpiresCoupons(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	coupon, err := f.couponSvc.Create(ctx, coupondomain.CreateRequest{
		Code:          "TICK10",
		Name:          "ten off",
		DiscountType:  coupondomain.DiscountFixed,
		DiscountValue: 1000,
		TotalQuantity: 5,
		MaxPerUser:    1,
		StartsAt:      f.clock.Now().Add(-time.Hour),
		ExpiresAt:     f.clock.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	require.NoError(t, f.sched.RunOnce(ctx))

	got, err := f.couponSvc.Get(ctx, coupon.ID)
	require.NoError(t, err)
	assert.Equal(t, coupondomain.CouponExpired, got.Status)
}

func TestTickReleasesQueues(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.queueSvc.Configure(ctx, queuedomain.ConfigureRequest{
		EventType:       "timedeal",
		EventID:         "77",
		MaxCapacity:     10,
		BatchSize:       2,
		IntervalSeconds: 5,
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := f.queueSvc.Enter(ctx, "timedeal", "77", fmt.Sprintf("user-%d", i))
		require.NoError(t, err)
	}

	require.NoError(t, f.sched.RunOnce(ctx))

	entered, err := f.line.EnteredCount(ctx, "timedeal", "77")
	require.NoError(t, err)
	assert.Equal(t, int64(2), entered)
	waiting, err := f.line.WaitingCount(ctx, "timedeal", "77")
	require.NoError(t, err)
	assert.Equal(t, int64(1), waiting)
}

func TestTickSkipsWhenLockHeld(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.scheduledDeal(t, -time.Minute, time.Hour, 5)

	_, ok, err := f.locker.TryAcquire(ctx, lifecycleLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, f.sched.RunOnce(ctx))
	deals, err := f.timeDealSvc.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, deals)

	f.locker.ForceRelease(lifecycleLockKey)
	require.NoError(t, f.sched.RunOnce(ctx))
	deals, err = f.timeDealSvc.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, deals, 1)
}

func TestTickReleasesLock(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.sched.RunOnce(ctx))
	assert.False(t, f.locker.Held(lifecycleLockKey))
}

func TestEnabledJobsFilter(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	deal := f.scheduledDeal(t, -time.Minute, time.Hour, 5)

	f.sched.cfg.EnabledJobs = []string{"expire_coupons"}
	require.NoError(t, f.sched.RunOnce(ctx))

	detail, err := f.timeDealSvc.Get(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, timedealdomain.DealScheduled, detail.Status)

	f.sched.cfg.EnabledJobs = nil
	require.NoError(t, f.sched.RunOnce(ctx))
	detail, err = f.timeDealSvc.Get(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, timedealdomain.DealActive, detail.Status)
}

func TestRecoverLedgersSeedsFromDurableRows(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	deal := f.scheduledDeal(t, -time.Minute, time.Hour, 50)
	require.NoError(t, f.sched.RunOnce(ctx))

	detail, err := f.timeDealSvc.Get(ctx, deal.ID)
	require.NoError(t, err)
	productID := detail.Products[0].ID

	// 20 already sold when the cache is lost.
	require.NoError(t, f.db.Exec(`UPDATE time_deal_products SET sold_quantity = 20 WHERE id = ?`, productID).Error)
	require.NoError(t, f.store.Clear(ctx, "timedeal", strconv.FormatInt(productID, 10)))

	require.NoError(t, f.sched.RecoverLedgers(ctx))

	remaining, err := f.store.Remaining(ctx, "timedeal", strconv.FormatInt(productID, 10))
	require.NoError(t, err)
	assert.Equal(t, int64(30), remaining)
}
