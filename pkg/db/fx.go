package db

import (
	"github.com/adlens/campledger/internal/config"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

var Module = fx.Module("db",
	fx.Provide(
		provideConfig,
		Open,
		provideSnowflakeNode,
	),
)

func provideConfig(cfg config.Config) Config {
	return Config{
		Type:            cfg.DBType,
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		Name:            cfg.DBName,
		User:            cfg.DBUser,
		Password:        cfg.DBPassword,
		SSLMode:         cfg.DBSSLMode,
		MaxIdleConn:     cfg.DBMaxIdleConn,
		MaxOpenConn:     cfg.DBMaxOpenConn,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	}
}

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
