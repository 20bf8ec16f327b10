package service

import (
	"context"
	"strings"
	"time"

	"github.com/adlens/campledger/internal/config"
	"github.com/adlens/campledger/internal/observability/metrics"
	"github.com/adlens/campledger/internal/taskqueue/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const queueName = "taskqueue"

// Enqueuer accepts durable background work. Callers treat a returned error as
// a degrade signal and must not surface it on their own request path.
type Enqueuer interface {
	Enqueue(ctx context.Context, name, lockKey string, payload map[string]interface{}) error
}

type Params struct {
	fx.In

	Config  config.Config
	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Metrics *metrics.Queue `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        domain.Repository
	metrics     *metrics.Queue
	maxAttempts int
}

func New(p Params) Enqueuer {
	maxAttempts := p.Config.Worker.MaxTaskAttempts
	if maxAttempts <= 0 {
		maxAttempts = domain.DefaultMaxAttempts
	}

	return &Service{
		db:          p.DB,
		log:         p.Log.Named("taskqueue.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		metrics:     p.Metrics,
		maxAttempts: maxAttempts,
	}
}

func (s *Service) Enqueue(ctx context.Context, name, lockKey string, payload map[string]interface{}) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ErrInvalidTask
	}

	if payload == nil {
		payload = map[string]interface{}{}
	}

	now := time.Now().UTC()
	task := domain.Task{
		ID:          s.genID.Generate(),
		Name:        name,
		LockKey:     strings.TrimSpace(lockKey),
		Payload:     datatypes.JSONMap(payload),
		Status:      domain.TaskStatusPending,
		MaxAttempts: s.maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, s.db, &task); err != nil {
		s.log.Error("task enqueue failed",
			zap.String("task", name),
			zap.String("lock_key", task.LockKey),
			zap.Error(err))
		return err
	}

	s.metrics.IncEnqueued(queueName, name)
	return nil
}
