package server

import (
	"net/http"
	"strings"

	historydomain "github.com/adlens/campledger/internal/history/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListEntityHistory(c *gin.Context) {
	entityType := historydomain.EntityType(strings.TrimSpace(c.Param("entity_type")))
	if !entityType.Valid() {
		AbortWithError(c, historydomain.ErrInvalidEntity)
		return
	}

	entityID, err := snowflake.ParseString(strings.TrimSpace(c.Param("entity_id")))
	if err != nil || entityID == 0 {
		AbortWithError(c, historydomain.ErrInvalidEntity)
		return
	}

	req := historydomain.ListRequest{
		EntityType: entityType,
		EntityID:   entityID,
	}
	if err := c.ShouldBindQuery(&req.Pagination); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.historySvc.ListForEntity(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
