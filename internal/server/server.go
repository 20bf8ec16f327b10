package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/adlens/campledger/internal/campaign"
	campaigndomain "github.com/adlens/campledger/internal/campaign/domain"
	"github.com/adlens/campledger/internal/comment"
	commentdomain "github.com/adlens/campledger/internal/comment/domain"
	"github.com/adlens/campledger/internal/config"
	"github.com/adlens/campledger/internal/history"
	historydomain "github.com/adlens/campledger/internal/history/domain"
	"github.com/adlens/campledger/internal/invoice"
	invoicedomain "github.com/adlens/campledger/internal/invoice/domain"
	"github.com/adlens/campledger/internal/notification"
	"github.com/adlens/campledger/internal/notification/broadcast"
	notificationdomain "github.com/adlens/campledger/internal/notification/domain"
	obsmiddleware "github.com/adlens/campledger/internal/observability/logger"
	obsmetrics "github.com/adlens/campledger/internal/observability/metrics"
	"github.com/adlens/campledger/internal/taskqueue"
	"github.com/adlens/campledger/internal/user"
	userdomain "github.com/adlens/campledger/internal/user/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	user.Module,
	campaign.Module,
	invoice.Module,
	history.Module,
	taskqueue.Module,
	comment.Module,
	notification.Module,
	fx.Provide(func(b *broadcast.Broadcaster) StreamSubscriber { return broadcastStream{b} }),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// StreamSubscription is one live event stream consumed by the SSE handler.
type StreamSubscription interface {
	Events() <-chan json.RawMessage
	Close()
}

// StreamSubscriber opens per-user live notification streams.
type StreamSubscriber interface {
	Subscribe(ctx context.Context, userID snowflake.ID) (StreamSubscription, error)
}

type broadcastStream struct {
	b *broadcast.Broadcaster
}

func (s broadcastStream) Subscribe(ctx context.Context, userID snowflake.ID) (StreamSubscription, error) {
	sub, err := s.b.Subscribe(ctx, userID)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func NewEngine(cfg config.Config, reg *prometheus.Registry) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           cfg.Environment != "production",
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(obsmetrics.Handler(reg)))

	return r
}

func registerGin(cfg config.Config, reg *prometheus.Registry) *gin.Engine {
	return NewEngine(cfg, reg)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	authSvc         userdomain.AuthService
	userSvc         userdomain.Service
	campaignSvc     campaigndomain.Service
	invoiceSvc      invoicedomain.Service
	historySvc      historydomain.Service
	commentSvc      commentdomain.Service
	notificationSvc notificationdomain.Service
	stream          StreamSubscriber
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	AuthSvc         userdomain.AuthService
	UserSvc         userdomain.Service
	CampaignSvc     campaigndomain.Service
	InvoiceSvc      invoicedomain.Service
	HistorySvc      historydomain.Service
	CommentSvc      commentdomain.Service
	NotificationSvc notificationdomain.Service
	Stream          StreamSubscriber `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		authSvc:         p.AuthSvc,
		userSvc:         p.UserSvc,
		campaignSvc:     p.CampaignSvc,
		invoiceSvc:      p.InvoiceSvc,
		historySvc:      p.HistorySvc,
		commentSvc:      p.CommentSvc,
		notificationSvc: p.NotificationSvc,
		stream:          p.Stream,
	}

	svc.registerAuthRoutes()
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/login", s.Login)
	auth.POST("/refresh", s.Refresh)
	auth.GET("/me", s.AuthRequired(), s.Me)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	// -------- Campaigns --------
	api.GET("/campaigns", s.ListCampaigns)
	api.GET("/campaigns/:id", s.GetCampaignByID)
	api.GET("/campaigns/:id/line-items", s.ListCampaignLineItems)
	api.GET("/campaigns/:id/comments", s.ListCampaignComments)

	// -------- Invoices --------
	api.GET("/invoices", s.ListInvoices)
	api.GET("/invoices/:id", s.GetInvoiceByID)
	api.PATCH("/invoices/:id/adjustments", s.BatchUpdateAdjustments)

	// -------- Change History --------
	api.GET("/history/:entity_type/:entity_id", s.ListEntityHistory)

	// -------- Comments --------
	api.POST("/comments", s.CreateComment)
	api.PATCH("/comments/:id", s.UpdateComment)
	api.DELETE("/comments/:id", s.DeleteComment)

	// -------- Notifications --------
	api.GET("/notifications", s.ListNotifications)
	api.POST("/notifications/:id/read", s.MarkNotificationRead)
	api.POST("/notifications/read-all", s.MarkAllNotificationsRead)
	api.GET("/notifications/stream", s.StreamNotifications)
}
