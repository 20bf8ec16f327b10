package main

import (
	"context"

	"github.com/adlens/campledger/internal/clock"
	commentrepo "github.com/adlens/campledger/internal/comment/repository"
	"github.com/adlens/campledger/internal/config"
	"github.com/adlens/campledger/internal/notification"
	"github.com/adlens/campledger/internal/notification/worker"
	"github.com/adlens/campledger/internal/observability"
	userrepo "github.com/adlens/campledger/internal/user/repository"
	"github.com/adlens/campledger/pkg/db"
	"github.com/adlens/campledger/pkg/redisconn"
	"go.uber.org/fx"
)

// notificationworker consumes the redis notification queue and fans stored
// notifications out to live subscribers.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		db.Module,
		redisconn.Module,
		clock.Module,
		fx.Provide(commentrepo.Provide),
		fx.Provide(userrepo.Provide),
		notification.WorkerModule,
		fx.Invoke(runWorker),
	)
	app.Run()
}

func runWorker(lc fx.Lifecycle, w *worker.Worker) {
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
