package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	coupondomain "github.com/smallbiznis/flashsale/internal/coupon/domain"
	inventorydomain "github.com/smallbiznis/flashsale/internal/inventory/domain"
	"github.com/smallbiznis/flashsale/internal/issuance"
	queuedomain "github.com/smallbiznis/flashsale/internal/queue/domain"
	timedealdomain "github.com/smallbiznis/flashsale/internal/timedeal/domain"
)

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: err.Error(),
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, coupondomain.ErrAdmissionRequired),
		errors.Is(err, timedealdomain.ErrAdmissionRequired):
		return http.StatusForbidden, errorPayload{
			Type:    "queue_admission_required",
			Message: err.Error(),
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: err.Error(),
		}
	case isPreconditionError(err):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "precondition_failed",
			Message: err.Error(),
		}
	case isRetryableError(err):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "temporarily_unavailable",
			Message: "temporarily unavailable, retry later",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// isRetryableError matches transient infrastructure failures: a ledger
// counter missing mid-flight (reseeded shortly by recovery) and a lock-wait
// deadline. Neither is a client mistake nor a bug.
func isRetryableError(err error) bool {
	switch {
	case errors.Is(err, issuance.ErrNotInitialized),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return false
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, coupondomain.ErrInvalidWindow),
		errors.Is(err, timedealdomain.ErrInvalidWindow),
		errors.Is(err, timedealdomain.ErrInvalidQuantity),
		errors.Is(err, inventorydomain.ErrInvalidQuantity):
		return true
	}
	return false
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, coupondomain.ErrCouponNotFound),
		errors.Is(err, coupondomain.ErrUserCouponNotFound),
		errors.Is(err, timedealdomain.ErrDealNotFound),
		errors.Is(err, timedealdomain.ErrProductNotFound),
		errors.Is(err, timedealdomain.ErrPurchaseNotFound),
		errors.Is(err, queuedomain.ErrQueueNotFound),
		errors.Is(err, queuedomain.ErrEntryNotFound),
		errors.Is(err, inventorydomain.ErrNotFound):
		return true
	}
	return false
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, coupondomain.ErrCouponCodeTaken),
		errors.Is(err, queuedomain.ErrQueueActive),
		errors.Is(err, inventorydomain.ErrAlreadyExists):
		return true
	}
	return false
}

func isPreconditionError(err error) bool {
	switch {
	case errors.Is(err, coupondomain.ErrCouponNotActive),
		errors.Is(err, coupondomain.ErrCouponNotStarted),
		errors.Is(err, coupondomain.ErrCouponExpired),
		errors.Is(err, coupondomain.ErrUserCouponNotAvailable),
		errors.Is(err, coupondomain.ErrInvalidTransition),
		errors.Is(err, timedealdomain.ErrDealNotActive),
		errors.Is(err, timedealdomain.ErrDealNotStarted),
		errors.Is(err, timedealdomain.ErrDealEnded),
		errors.Is(err, timedealdomain.ErrInvalidTransition),
		errors.Is(err, timedealdomain.ErrPurchaseNotRevocable),
		errors.Is(err, inventorydomain.ErrInsufficientStock),
		errors.Is(err, inventorydomain.ErrDeductionFailed),
		errors.Is(err, inventorydomain.ErrReleaseFailed):
		return true
	}
	return false
}
