package server

import (
	"net/http"

	campaigndomain "github.com/adlens/campledger/internal/campaign/domain"
	commentdomain "github.com/adlens/campledger/internal/comment/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListCampaigns(c *gin.Context) {
	var req campaigndomain.ListCampaignRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.campaignSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetCampaignByID(c *gin.Context) {
	campaign, err := s.campaignSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, campaign)
}

func (s *Server) ListCampaignLineItems(c *gin.Context) {
	lineItems, err := s.campaignSvc.ListLineItems(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"line_items": lineItems})
}

func (s *Server) ListCampaignComments(c *gin.Context) {
	req := commentdomain.ListRequest{CampaignID: c.Param("id")}
	if err := c.ShouldBindQuery(&req.Pagination); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.commentSvc.ListForCampaign(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
