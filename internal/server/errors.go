package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	buyerdomain "github.com/sharenet/packetpool/internal/buyer/domain"
	pooldomain "github.com/sharenet/packetpool/internal/pool/domain"
	"gorm.io/gorm"
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
	case errors.Is(err, pooldomain.ErrInvalidMaxCount),
		errors.Is(err, pooldomain.ErrInvalidStatus),
		errors.Is(err, pooldomain.ErrInvalidPackage),
		errors.Is(err, pooldomain.ErrBytesRegression),
		errors.Is(err, buyerdomain.ErrInvalidName):
		return http.StatusUnprocessableEntity, errorPayload{Type: "validation_error", Message: err.Error()}
	case errors.Is(err, pooldomain.ErrPackageNotFound),
		errors.Is(err, buyerdomain.ErrBuyerNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{Type: "not_found", Message: err.Error()}
	case errors.Is(err, pooldomain.ErrIllegalTransition):
		return http.StatusConflict, errorPayload{Type: "conflict", Message: err.Error()}
	case errors.Is(err, pooldomain.ErrStoreBusy):
		return http.StatusServiceUnavailable, errorPayload{Type: "store_busy", Message: err.Error()}
	case errors.Is(err, buyerdomain.ErrInvalidAPIKey),
		errors.Is(err, buyerdomain.ErrBuyerInactive):
		return http.StatusUnauthorized, errorPayload{Type: "unauthorized", Message: err.Error()}
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests, errorPayload{Type: "rate_limited", Message: err.Error()}
	default:
		return http.StatusInternalServerError, errorPayload{Type: "internal_error", Message: "internal error"}
	}
}
