package main

import (
	"github.com/adlens/campledger/internal/clock"
	"github.com/adlens/campledger/internal/config"
	"github.com/adlens/campledger/internal/migration"
	"github.com/adlens/campledger/internal/observability"
	"github.com/adlens/campledger/internal/server"
	"github.com/adlens/campledger/pkg/db"
	"github.com/adlens/campledger/pkg/redisconn"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		db.Module,
		redisconn.Module,
		clock.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}
