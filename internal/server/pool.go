package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	pooldomain "github.com/sharenet/packetpool/internal/pool/domain"
	"go.uber.org/zap"
)

type pullPacketsRequest struct {
	MaxCount int    `json:"max_count" binding:"required"`
	Region   string `json:"region"`
}

type pullPacketsResponse struct {
	Packages []pooldomain.ClaimedPackage `json:"packages"`
}

func (s *Server) pullPackets(c *gin.Context) {
	buyer, ok := buyerFromContext(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	var req pullPacketsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, pooldomain.ErrInvalidMaxCount)
		return
	}

	if s.claimLimiter != nil {
		allowed, err := s.claimLimiter.Allow(c.Request.Context(), buyer.ID)
		if err != nil {
			s.log.Warn("claim limiter unavailable", zap.Error(err))
		}
		if !allowed {
			AbortWithError(c, errRateLimited)
			return
		}
	}

	claimed, err := s.poolSvc.Claim(c.Request.Context(), pooldomain.ClaimRequest{
		BuyerID:  buyer.ID,
		MaxCount: req.MaxCount,
		Region:   req.Region,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if claimed == nil {
		claimed = []pooldomain.ClaimedPackage{}
	}
	c.JSON(http.StatusOK, pullPacketsResponse{Packages: claimed})
}

type updatePacketStatusRequest struct {
	Status    pooldomain.PackageStatus `json:"status" binding:"required"`
	BytesSent *int64                   `json:"bytes_sent"`
}

func (s *Server) updatePacketStatus(c *gin.Context) {
	buyer, ok := buyerFromContext(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	var req updatePacketStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, pooldomain.ErrInvalidStatus)
		return
	}

	err := s.poolSvc.ReportStatus(c.Request.Context(), pooldomain.ReportStatusRequest{
		BuyerID:   buyer.ID,
		UUID:      c.Param("uuid"),
		Status:    req.Status,
		BytesSent: req.BytesSent,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) buyerUsage(c *gin.Context) {
	buyer, ok := buyerFromContext(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	usage, err := s.poolSvc.Usage(c.Request.Context(), buyer.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, usage)
}

func (s *Server) activePackets(c *gin.Context) {
	buyer, ok := buyerFromContext(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	allocations, err := s.poolSvc.ActiveAllocations(c.Request.Context(), buyer.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"packages": allocations})
}

type provisionRequest struct {
	Packages []pooldomain.NewPackage `json:"packages" binding:"required"`
}

func (s *Server) provisionPackages(c *gin.Context) {
	var req provisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, pooldomain.ErrInvalidPackage)
		return
	}

	uuids, err := s.poolSvc.Provision(c.Request.Context(), req.Packages)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"uuids": uuids})
}

func (s *Server) revokePackage(c *gin.Context) {
	if err := s.poolSvc.Revoke(c.Request.Context(), c.Param("uuid")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
