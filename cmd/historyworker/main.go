package main

import (
	"context"

	"github.com/adlens/campledger/internal/clock"
	"github.com/adlens/campledger/internal/config"
	"github.com/adlens/campledger/internal/history"
	historydomain "github.com/adlens/campledger/internal/history/domain"
	"github.com/adlens/campledger/internal/observability"
	"github.com/adlens/campledger/internal/taskqueue"
	"github.com/adlens/campledger/internal/taskqueue/worker"
	userrepo "github.com/adlens/campledger/internal/user/repository"
	"github.com/adlens/campledger/pkg/db"
	"go.uber.org/fx"
)

// historyworker drains the database task queue, persisting change history
// records serially per entity.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		db.Module,
		clock.Module,
		fx.Provide(userrepo.Provide),
		history.Module,
		taskqueue.WorkerModule,
		fx.Invoke(runWorker),
	)
	app.Run()
}

func runWorker(lc fx.Lifecycle, w *worker.Worker, historySvc historydomain.Service) {
	w.Register(history.TaskRecordChange, history.NewTaskHandler(historySvc))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				w.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
