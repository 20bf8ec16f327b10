package server

import (
	"fmt"
	"io"
	"net/http"
	"time"

	notificationdomain "github.com/adlens/campledger/internal/notification/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListNotifications(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	req := notificationdomain.ListRequest{UserID: userID}
	if err := c.ShouldBindQuery(&req.Pagination); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.notificationSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) MarkNotificationRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	notification, err := s.notificationSvc.MarkRead(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, notification)
}

func (s *Server) MarkAllNotificationsRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	updated, err := s.notificationSvc.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// StreamNotifications pushes the caller's notifications over server-sent
// events as they are created.
func (s *Server) StreamNotifications(c *gin.Context) {
	if s.stream == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	subscription, err := s.stream.Subscribe(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	defer subscription.Close()

	writer := c.Writer
	headers := writer.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	flusher, ok := writer.(http.Flusher)
	if !ok {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	if _, err := io.WriteString(writer, "retry: 2000\n\n"); err != nil {
		return
	}
	flusher.Flush()

	heartbeatPeriod := s.cfg.Worker.HeartbeatPeriod
	if heartbeatPeriod <= 0 {
		heartbeatPeriod = 30 * time.Second
	}

	ctx := c.Request.Context()
	heartbeat := time.NewTicker(heartbeatPeriod)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, open := <-subscription.Events():
			if !open {
				return
			}
			if _, err := fmt.Fprintf(writer, "data: %s\n\n", event); err != nil {
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := io.WriteString(writer, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
