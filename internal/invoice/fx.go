package invoice

import (
	"github.com/adlens/campledger/internal/invoice/repository"
	"github.com/adlens/campledger/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
