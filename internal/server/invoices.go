package server

import (
	"net/http"

	invoicedomain "github.com/adlens/campledger/internal/invoice/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListInvoices(c *gin.Context) {
	var req invoicedomain.ListRequest
	if err := c.ShouldBindQuery(&req.Pagination); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetInvoiceByID(c *gin.Context) {
	detail, err := s.invoiceSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

type batchAdjustmentsRequest struct {
	Updates []invoicedomain.AdjustmentUpdate `json:"updates" binding:"required"`
}

func (s *Server) BatchUpdateAdjustments(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req batchAdjustmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	views, err := s.invoiceSvc.BatchUpdateAdjustments(c.Request.Context(), c.Param("id"), req.Updates, actorID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"line_items": views})
}
