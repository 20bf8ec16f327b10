package user

import (
	"github.com/adlens/campledger/internal/user/repository"
	"github.com/adlens/campledger/internal/user/service"
	"go.uber.org/fx"
)

var Module = fx.Module("user.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(service.NewAuthService),
)
