package history

import (
	"github.com/adlens/campledger/internal/history/repository"
	"github.com/adlens/campledger/internal/history/service"
	"go.uber.org/fx"
)

var Module = fx.Module("history.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
