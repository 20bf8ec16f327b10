package server

import (
	"net/http"

	commentdomain "github.com/adlens/campledger/internal/comment/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) CreateComment(c *gin.Context) {
	authorID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req commentdomain.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	view, err := s.commentSvc.Create(c.Request.Context(), req, authorID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

func (s *Server) UpdateComment(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req commentdomain.UpdateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	view, err := s.commentSvc.Update(c.Request.Context(), c.Param("id"), req, actorID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (s *Server) DeleteComment(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if err := s.commentSvc.Delete(c.Request.Context(), c.Param("id"), actorID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
