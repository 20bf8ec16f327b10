package server

import (
	"strings"

	obscontext "github.com/adlens/campledger/internal/observability/context"
	userdomain "github.com/adlens/campledger/internal/user/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

const contextUserKey = "current_user"

// AuthRequired validates the bearer token and stores the subject user on the
// request context.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		user, err := s.authSvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextUserKey, user)
		ctx := obscontext.WithActorID(c.Request.Context(), user.ID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func currentUser(c *gin.Context) (userdomain.User, bool) {
	value, ok := c.Get(contextUserKey)
	if !ok {
		return userdomain.User{}, false
	}
	user, ok := value.(userdomain.User)
	return user, ok
}

func currentUserID(c *gin.Context) (snowflake.ID, bool) {
	user, ok := currentUser(c)
	if !ok {
		return 0, false
	}
	return user.ID, true
}
