package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	buyerdomain "github.com/sharenet/packetpool/internal/buyer/domain"
	pooldomain "github.com/sharenet/packetpool/internal/pool/domain"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		err        error
		wantStatus int
		wantType   string
	}{
		{pooldomain.ErrInvalidMaxCount, http.StatusUnprocessableEntity, "validation_error"},
		{pooldomain.ErrInvalidStatus, http.StatusUnprocessableEntity, "validation_error"},
		{pooldomain.ErrInvalidPackage, http.StatusUnprocessableEntity, "validation_error"},
		{pooldomain.ErrBytesRegression, http.StatusUnprocessableEntity, "validation_error"},
		{buyerdomain.ErrInvalidName, http.StatusUnprocessableEntity, "validation_error"},
		{pooldomain.ErrPackageNotFound, http.StatusNotFound, "not_found"},
		{buyerdomain.ErrBuyerNotFound, http.StatusNotFound, "not_found"},
		{gorm.ErrRecordNotFound, http.StatusNotFound, "not_found"},
		{pooldomain.ErrIllegalTransition, http.StatusConflict, "conflict"},
		{pooldomain.ErrStoreBusy, http.StatusServiceUnavailable, "store_busy"},
		{buyerdomain.ErrInvalidAPIKey, http.StatusUnauthorized, "unauthorized"},
		{buyerdomain.ErrBuyerInactive, http.StatusUnauthorized, "unauthorized"},
		{errRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{errors.New("driver melted"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		status, payload := mapError(tc.err)
		assert.Equal(t, tc.wantStatus, status, "error %v", tc.err)
		assert.Equal(t, tc.wantType, payload.Type, "error %v", tc.err)
	}
}

func TestMapError_HidesInternalDetails(t *testing.T) {
	_, payload := mapError(errors.New("pq: connection reset at 10.1.2.3"))
	assert.Equal(t, "internal error", payload.Message)
}

func TestErrorHandlingMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())
	engine.GET("/conflict", func(c *gin.Context) {
		AbortWithError(c, pooldomain.ErrIllegalTransition)
	})
	engine.GET("/ok", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conflict", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":{"type":"conflict","message":"illegal_status_transition"}}`, rec.Body.String())

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
