package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/smallbiznis/flashsale/internal/issuance"
	timedealdomain "github.com/smallbiznis/flashsale/internal/timedeal/domain"
)

type createTimeDealRequest struct {
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	QueueRequired bool      `json:"queue_required"`
	StartsAt      time.Time `json:"starts_at"`
	EndsAt        time.Time `json:"ends_at"`
	Products      []struct {
		ProductID    int64 `json:"product_id"`
		DealPrice    int64 `json:"deal_price"`
		DealQuantity int64 `json:"deal_quantity"`
		MaxPerUser   int64 `json:"max_per_user"`
	} `json:"products"`
}

func (s *Server) CreateTimeDeal(c *gin.Context) {
	var req createTimeDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	products := make([]timedealdomain.ProductRequest, 0, len(req.Products))
	for _, p := range req.Products {
		products = append(products, timedealdomain.ProductRequest{
			ProductID:    p.ProductID,
			DealPrice:    p.DealPrice,
			DealQuantity: p.DealQuantity,
			MaxPerUser:   p.MaxPerUser,
		})
	}

	resp, err := s.timeDealSvc.Create(c.Request.Context(), timedealdomain.CreateRequest{
		Name:          strings.TrimSpace(req.Name),
		Description:   strings.TrimSpace(req.Description),
		QueueRequired: req.QueueRequired,
		StartsAt:      req.StartsAt,
		EndsAt:        req.EndsAt,
		Products:      products,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListTimeDeals(c *gin.Context) {
	resp, err := s.timeDealSvc.ListActive(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTimeDeal(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.timeDealSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type purchaseTimeDealRequest struct {
	TimeDealProductID int64 `json:"time_deal_product_id"`
	Quantity          int64 `json:"quantity"`
}

func (s *Server) PurchaseTimeDeal(c *gin.Context) {
	userID := requesterID(c)
	if userID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if !s.allowClaim(c, userID) {
		return
	}

	var req purchaseTimeDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.timeDealSvc.Purchase(c.Request.Context(), timedealdomain.PurchaseRequest{
		TimeDealProductID: req.TimeDealProductID,
		UserID:            userID,
		Quantity:          req.Quantity,
	})
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

func (s *Server) ListUserPurchases(c *gin.Context) {
	userID := requesterID(c)
	if userID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.timeDealSvc.UserPurchases(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RollbackPurchase(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.timeDealSvc.RollbackPurchase(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "cancelled"}})
}

func (s *Server) CancelTimeDeal(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.timeDealSvc.Cancel(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "cancelled"}})
}
