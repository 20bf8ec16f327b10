package notification

import (
	"github.com/adlens/campledger/internal/notification/broadcast"
	"github.com/adlens/campledger/internal/notification/queue"
	"github.com/adlens/campledger/internal/notification/repository"
	"github.com/adlens/campledger/internal/notification/service"
	"github.com/adlens/campledger/internal/notification/worker"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.service",
	fx.Provide(queue.New),
	fx.Provide(broadcast.New),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

// WorkerModule additionally wires the queue consumer for worker processes.
var WorkerModule = fx.Module("notification.worker",
	fx.Provide(queue.New),
	fx.Provide(broadcast.New),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(func(q *queue.Queue) worker.Dequeuer { return q }),
	fx.Provide(func(b *broadcast.Broadcaster) worker.Publisher { return b }),
	fx.Provide(worker.New),
)
