package comment

import (
	"github.com/adlens/campledger/internal/comment/repository"
	"github.com/adlens/campledger/internal/comment/service"
	"github.com/adlens/campledger/internal/notification/queue"
	"go.uber.org/fx"
)

var Module = fx.Module("comment.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(q *queue.Queue) service.NotificationEnqueuer { return q }),
	fx.Provide(service.New),
)
