package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adlens/campledger/internal/config"
	"github.com/adlens/campledger/internal/observability/metrics"
	"github.com/adlens/campledger/internal/taskqueue/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const queueName = "taskqueue"

// Handler executes one task. A returned error triggers a retry until the
// task's attempt budget is exhausted.
type Handler func(ctx context.Context, task domain.Task) error

type Params struct {
	fx.In

	Config  config.Config
	DB      *gorm.DB
	Log     *zap.Logger
	Repo    domain.Repository
	Metrics *metrics.Queue `optional:"true"`
}

// Worker claims pending tasks and dispatches them to registered handlers.
// Tasks sharing a lock key never run concurrently; the claim query only ever
// yields the oldest live task of a key, so a key with work in flight is
// skipped until that task reaches a terminal status.
type Worker struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    domain.Repository
	metrics *metrics.Queue

	concurrency   int
	pollInterval  time.Duration
	shutdownGrace time.Duration

	mu       sync.RWMutex
	handlers map[string]Handler

	wg sync.WaitGroup
}

func New(p Params) *Worker {
	concurrency := p.Config.Worker.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	pollInterval := p.Config.Worker.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	shutdownGrace := p.Config.Worker.ShutdownGrace
	if shutdownGrace <= 0 {
		shutdownGrace = 30 * time.Second
	}

	return &Worker{
		db:            p.DB,
		log:           p.Log.Named("taskqueue.worker"),
		repo:          p.Repo,
		metrics:       p.Metrics,
		concurrency:   concurrency,
		pollInterval:  pollInterval,
		shutdownGrace: shutdownGrace,
		handlers:      make(map[string]Handler),
	}
}

// Register binds a handler to a task name. Later registrations win.
func (w *Worker) Register(name string, handler Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[name] = handler
}

// Run claims and executes tasks until ctx is cancelled, then drains in-flight
// work within the shutdown grace period.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("task worker starting",
		zap.Int("concurrency", w.concurrency),
		zap.Duration("poll_interval", w.pollInterval))

	// Tasks still marked running but untouched for a full shutdown grace were
	// abandoned by a dead process; anything younger may be a peer's work.
	staleCutoff := time.Now().UTC().Add(-w.shutdownGrace)
	if requeued, err := w.repo.RequeueStaleRunning(ctx, w.db, staleCutoff); err != nil {
		w.log.Warn("stale task recovery failed", zap.Error(err))
	} else if requeued > 0 {
		w.log.Info("requeued stale running tasks", zap.Int64("count", requeued))
	}

	slots := make(chan struct{}, w.concurrency)
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.drain()
			return
		default:
		}

		task, err := w.claim(ctx)
		if err != nil {
			w.log.Error("task claim failed", zap.Error(err))
		}
		if task == nil {
			w.observeDepth(ctx)
			select {
			case <-ctx.Done():
				w.drain()
				return
			case <-ticker.C:
			}
			continue
		}

		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			// Claimed but out of time. Put the task back for the next run.
			if err := w.repo.Requeue(context.Background(), w.db, int64(task.ID)); err != nil {
				w.log.Warn("failed to requeue claimed task on shutdown", zap.Int64("task_id", int64(task.ID)), zap.Error(err))
			}
			w.drain()
			return
		}

		w.wg.Add(1)
		go func(task domain.Task) {
			defer w.wg.Done()
			defer func() { <-slots }()
			w.execute(task)
		}(*task)
	}
}

func (w *Worker) claim(ctx context.Context) (*domain.Task, error) {
	var task *domain.Task
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		task, err = w.repo.ClaimNext(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (w *Worker) execute(task domain.Task) {
	// Handlers run against a fresh context so cancellation of the claim loop
	// does not abort work already started.
	ctx := context.Background()
	log := w.log.With(
		zap.Int64("task_id", int64(task.ID)),
		zap.String("task", task.Name),
		zap.String("lock_key", task.LockKey),
		zap.Int("attempt", task.Attempts))

	handler := w.handlerFor(task.Name)
	if handler == nil {
		log.Error("no handler registered for task")
		task.Attempts = task.MaxAttempts
		if _, err := w.repo.MarkFailed(ctx, w.db, &task, domain.ErrUnknownTask); err != nil {
			log.Error("failed to park unknown task", zap.Error(err))
		}
		w.metrics.IncFailed(queueName, task.Name)
		return
	}

	err := w.runHandler(ctx, handler, task)
	if err == nil {
		if markErr := w.repo.MarkDone(ctx, w.db, int64(task.ID)); markErr != nil {
			log.Error("failed to mark task done", zap.Error(markErr))
		}
		w.metrics.IncProcessed(queueName, task.Name)
		return
	}

	retry, markErr := w.repo.MarkFailed(ctx, w.db, &task, err)
	if markErr != nil {
		log.Error("failed to record task failure", zap.Error(markErr))
	}
	if retry {
		log.Warn("task failed, will retry", zap.Error(err))
		w.metrics.IncRetried(queueName, task.Name)
		return
	}
	log.Error("task failed permanently", zap.Error(err))
	w.metrics.IncFailed(queueName, task.Name)
}

func (w *Worker) runHandler(ctx context.Context, handler Handler, task domain.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task handler panic: %v", r)
		}
	}()
	return handler(ctx, task)
}

func (w *Worker) handlerFor(name string) Handler {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.handlers[name]
}

func (w *Worker) observeDepth(ctx context.Context) {
	if w.metrics == nil {
		return
	}
	depth, err := w.repo.CountPending(ctx, w.db)
	if err != nil {
		return
	}
	w.metrics.SetDepth(queueName, float64(depth))
}

func (w *Worker) drain() {
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.log.Info("task worker drained")
	case <-time.After(w.shutdownGrace):
		w.log.Warn("task worker shutdown grace expired with work in flight",
			zap.Duration("grace", w.shutdownGrace))
	}
}
