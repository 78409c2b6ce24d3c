package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	inventorydomain "github.com/smallbiznis/flashsale/internal/inventory/domain"
)

type initializeInventoryRequest struct {
	ProductID int64  `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	Actor     string `json:"actor"`
}

func (s *Server) InitializeInventory(c *gin.Context) {
	var req initializeInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.inventorySvc.Initialize(c.Request.Context(), inventorydomain.InitializeRequest{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Actor:     strings.TrimSpace(req.Actor),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetInventory(c *gin.Context) {
	productID, ok := pathID(c, "productId")
	if !ok {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.inventorySvc.Get(c.Request.Context(), productID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type mutateInventoryRequest struct {
	ProductID     int64  `json:"product_id"`
	Quantity      int64  `json:"quantity"`
	ReferenceType string `json:"reference_type"`
	ReferenceID   string `json:"reference_id"`
	Actor         string `json:"actor"`
	Reason        string `json:"reason"`
}

func (r mutateInventoryRequest) toDomain() inventorydomain.MutationRequest {
	return inventorydomain.MutationRequest{
		ProductID:     r.ProductID,
		Quantity:      r.Quantity,
		ReferenceType: strings.TrimSpace(r.ReferenceType),
		ReferenceID:   strings.TrimSpace(r.ReferenceID),
		Actor:         strings.TrimSpace(r.Actor),
		Reason:        strings.TrimSpace(r.Reason),
	}
}

func (s *Server) mutateInventory(c *gin.Context, apply func(*gin.Context, inventorydomain.MutationRequest) (*inventorydomain.Snapshot, error)) {
	var req mutateInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := apply(c, req.toDomain())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ReserveStock(c *gin.Context) {
	s.mutateInventory(c, func(c *gin.Context, req inventorydomain.MutationRequest) (*inventorydomain.Snapshot, error) {
		return s.inventorySvc.Reserve(c.Request.Context(), req)
	})
}

func (s *Server) DeductStock(c *gin.Context) {
	s.mutateInventory(c, func(c *gin.Context, req inventorydomain.MutationRequest) (*inventorydomain.Snapshot, error) {
		return s.inventorySvc.Deduct(c.Request.Context(), req)
	})
}

func (s *Server) ReleaseStock(c *gin.Context) {
	s.mutateInventory(c, func(c *gin.Context, req inventorydomain.MutationRequest) (*inventorydomain.Snapshot, error) {
		return s.inventorySvc.Release(c.Request.Context(), req)
	})
}

func (s *Server) AddStock(c *gin.Context) {
	s.mutateInventory(c, func(c *gin.Context, req inventorydomain.MutationRequest) (*inventorydomain.Snapshot, error) {
		return s.inventorySvc.AddStock(c.Request.Context(), req)
	})
}

func (s *Server) ListMovements(c *gin.Context) {
	productID, ok := pathID(c, "productId")
	if !ok {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	limit := 50
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		limit = parsed
	}

	resp, err := s.inventorySvc.Movements(c.Request.Context(), productID, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
