package server

import (
	"errors"

	"github.com/gin-gonic/gin"
	buyerdomain "github.com/sharenet/packetpool/internal/buyer/domain"
)

const buyerContextKey = "packetpool.buyer"

var errRateLimited = errors.New("claim_rate_limited")

// BuyerAuthMiddleware resolves the calling buyer from X-API-Key. Token
// issuance and rotation live outside this service; the engine only needs an
// active buyer identity.
func (s *Server) BuyerAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("X-API-Key")
		buyer, err := s.buyerSvc.FindByAPIKey(c.Request.Context(), key)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.Set(buyerContextKey, buyer)
		c.Next()
	}
}

func buyerFromContext(c *gin.Context) (*buyerdomain.Buyer, bool) {
	value, ok := c.Get(buyerContextKey)
	if !ok {
		return nil, false
	}
	buyer, ok := value.(*buyerdomain.Buyer)
	return buyer, ok
}
