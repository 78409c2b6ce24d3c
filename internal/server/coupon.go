package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	coupondomain "github.com/smallbiznis/flashsale/internal/coupon/domain"
	"github.com/smallbiznis/flashsale/internal/issuance"
)

type createCouponRequest struct {
	Code              string    `json:"code"`
	Name              string    `json:"name"`
	DiscountType      string    `json:"discount_type"`
	DiscountValue     int64     `json:"discount_value"`
	MinOrderAmount    int64     `json:"min_order_amount"`
	MaxDiscountAmount int64     `json:"max_discount_amount"`
	TotalQuantity     int64     `json:"total_quantity"`
	MaxPerUser        int64     `json:"max_per_user"`
	QueueRequired     bool      `json:"queue_required"`
	StartsAt          time.Time `json:"starts_at"`
	ExpiresAt         time.Time `json:"expires_at"`
}

func (s *Server) CreateCoupon(c *gin.Context) {
	var req createCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.couponSvc.Create(c.Request.Context(), coupondomain.CreateRequest{
		Code:              strings.TrimSpace(req.Code),
		Name:              strings.TrimSpace(req.Name),
		DiscountType:      coupondomain.DiscountType(req.DiscountType),
		DiscountValue:     req.DiscountValue,
		MinOrderAmount:    req.MinOrderAmount,
		MaxDiscountAmount: req.MaxDiscountAmount,
		TotalQuantity:     req.TotalQuantity,
		MaxPerUser:        req.MaxPerUser,
		QueueRequired:     req.QueueRequired,
		StartsAt:          req.StartsAt,
		ExpiresAt:         req.ExpiresAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListCoupons(c *gin.Context) {
	resp, err := s.couponSvc.ListAvailable(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCoupon(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.couponSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) IssueCoupon(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	userID := requesterID(c)
	if userID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if !s.allowClaim(c, userID) {
		return
	}

	resp, err := s.couponSvc.Issue(c.Request.Context(), id, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	status := http.StatusOK
	if resp.Result != issuance.Issued {
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"data": resp})
}

type useCouponRequest struct {
	OrderID string `json:"order_id"`
}

func (s *Server) UseCoupon(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	userID := requesterID(c)
	if userID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req useCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.couponSvc.Use(c.Request.Context(), id, userID, strings.TrimSpace(req.OrderID)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "used"}})
}

func (s *Server) ListUserCoupons(c *gin.Context) {
	userID := requesterID(c)
	if userID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.couponSvc.UserCoupons(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeactivateCoupon(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.couponSvc.Deactivate(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "deactivated"}})
}
