package campaign

import (
	"github.com/adlens/campledger/internal/campaign/repository"
	"github.com/adlens/campledger/internal/campaign/service"
	"go.uber.org/fx"
)

var Module = fx.Module("campaign.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
