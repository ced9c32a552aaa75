package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	buyerdomain "github.com/sharenet/packetpool/internal/buyer/domain"
)

func (s *Server) createBuyer(c *gin.Context) {
	var req buyerdomain.CreateBuyerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, buyerdomain.ErrInvalidName)
		return
	}

	buyer, err := s.buyerSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, buyer)
}

func (s *Server) listBuyers(c *gin.Context) {
	buyers, err := s.buyerSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"buyers": buyers})
}

type setBuyerActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

func (s *Server) setBuyerActive(c *gin.Context) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, buyerdomain.ErrBuyerNotFound)
		return
	}

	var req setBuyerActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, buyerdomain.ErrInvalidName)
		return
	}

	if err := s.buyerSvc.SetActive(c.Request.Context(), id, *req.Active); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
