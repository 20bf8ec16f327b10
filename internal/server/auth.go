package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	tokens, err := s.authSvc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, tokens)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (s *Server) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	tokens, err := s.authSvc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, tokens)
}

func (s *Server) Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	c.JSON(http.StatusOK, user)
}
