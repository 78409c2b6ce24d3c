package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/flashsale/internal/config"
	coupondomain "github.com/smallbiznis/flashsale/internal/coupon/domain"
	inventorydomain "github.com/smallbiznis/flashsale/internal/inventory/domain"
	queuedomain "github.com/smallbiznis/flashsale/internal/queue/domain"
	"github.com/smallbiznis/flashsale/internal/ratelimit"
	timedealdomain "github.com/smallbiznis/flashsale/internal/timedeal/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	couponSvc    coupondomain.Service
	timeDealSvc  timedealdomain.Service
	queueSvc     queuedomain.Service
	inventorySvc inventorydomain.Service
	issueLimiter *ratelimit.IssueLimiter
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	CouponSvc    coupondomain.Service
	TimeDealSvc  timedealdomain.Service
	QueueSvc     queuedomain.Service
	InventorySvc inventorydomain.Service
	IssueLimiter *ratelimit.IssueLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		couponSvc:    p.CouponSvc,
		timeDealSvc:  p.TimeDealSvc,
		queueSvc:     p.QueueSvc,
		inventorySvc: p.InventorySvc,
		issueLimiter: p.IssueLimiter,
	}
}

func (s *Server) RegisterRoutes() {
	v1 := s.engine.Group("/v1")

	coupons := v1.Group("/coupons")
	coupons.GET("", s.ListCoupons)
	coupons.GET("/:id", s.GetCoupon)
	coupons.POST("/:id/issue", s.IssueCoupon)
	coupons.POST("/:id/use", s.UseCoupon)

	v1.GET("/user-coupons", s.ListUserCoupons)

	timedeals := v1.Group("/timedeals")
	timedeals.GET("", s.ListTimeDeals)
	timedeals.GET("/:id", s.GetTimeDeal)
	timedeals.POST("/purchase", s.PurchaseTimeDeal)

	v1.GET("/purchases", s.ListUserPurchases)
	v1.POST("/purchases/:id/rollback", s.RollbackPurchase)

	queues := v1.Group("/queues")
	queues.POST("/:type/:id/enter", s.EnterQueue)

	v1.GET("/queue-entries/:token", s.QueueEntryStatus)
	v1.DELETE("/queue-entries/:token", s.LeaveQueue)

	admin := v1.Group("/admin")
	admin.POST("/coupons", s.CreateCoupon)
	admin.POST("/coupons/:id/deactivate", s.DeactivateCoupon)
	admin.POST("/timedeals", s.CreateTimeDeal)
	admin.POST("/timedeals/:id/cancel", s.CancelTimeDeal)
	admin.POST("/queues", s.ConfigureQueue)
	admin.DELETE("/queues/:type/:id", s.DeactivateQueue)

	inventory := admin.Group("/inventory")
	inventory.POST("", s.InitializeInventory)
	inventory.GET("/:productId", s.GetInventory)
	inventory.GET("/:productId/movements", s.ListMovements)
	inventory.POST("/reserve", s.ReserveStock)
	inventory.POST("/deduct", s.DeductStock)
	inventory.POST("/release", s.ReleaseStock)
	inventory.POST("/add", s.AddStock)
}
