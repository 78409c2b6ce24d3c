package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	queuedomain "github.com/smallbiznis/flashsale/internal/queue/domain"
)

type configureQueueRequest struct {
	EventType       string `json:"event_type"`
	EventID         string `json:"event_id"`
	MaxCapacity     int    `json:"max_capacity"`
	BatchSize       int    `json:"batch_size"`
	IntervalSeconds int64  `json:"interval_seconds"`
	EntryTTLSeconds int64  `json:"entry_ttl_seconds"`
}

func (s *Server) ConfigureQueue(c *gin.Context) {
	var req configureQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	eventType := strings.TrimSpace(req.EventType)
	eventID := strings.TrimSpace(req.EventID)
	if eventType == "" || eventID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.queueSvc.Configure(c.Request.Context(), queuedomain.ConfigureRequest{
		EventType:       eventType,
		EventID:         eventID,
		MaxCapacity:     req.MaxCapacity,
		BatchSize:       req.BatchSize,
		IntervalSeconds: req.IntervalSeconds,
		EntryTTLSeconds: req.EntryTTLSeconds,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) DeactivateQueue(c *gin.Context) {
	eventType := strings.TrimSpace(c.Param("type"))
	eventID := strings.TrimSpace(c.Param("id"))
	if eventType == "" || eventID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.queueSvc.Deactivate(c.Request.Context(), eventType, eventID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "deactivated"}})
}

func (s *Server) EnterQueue(c *gin.Context) {
	eventType := strings.TrimSpace(c.Param("type"))
	eventID := strings.TrimSpace(c.Param("id"))
	userID := requesterID(c)
	if eventType == "" || eventID == "" || userID == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.queueSvc.Enter(c.Request.Context(), eventType, eventID, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) QueueEntryStatus(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.queueSvc.Status(c.Request.Context(), token)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) LeaveQueue(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.queueSvc.Leave(c.Request.Context(), token); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "left"}})
}
