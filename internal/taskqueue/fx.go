package taskqueue

import (
	"github.com/adlens/campledger/internal/taskqueue/repository"
	"github.com/adlens/campledger/internal/taskqueue/service"
	"github.com/adlens/campledger/internal/taskqueue/worker"
	"go.uber.org/fx"
)

var Module = fx.Module("taskqueue.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

// WorkerModule additionally wires the claim loop for worker processes.
var WorkerModule = fx.Module("taskqueue.worker",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(worker.New),
)
