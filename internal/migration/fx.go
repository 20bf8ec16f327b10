package migration

import (
	campaigndomain "github.com/adlens/campledger/internal/campaign/domain"
	commentdomain "github.com/adlens/campledger/internal/comment/domain"
	"github.com/adlens/campledger/internal/config"
	historydomain "github.com/adlens/campledger/internal/history/domain"
	invoicedomain "github.com/adlens/campledger/internal/invoice/domain"
	notificationdomain "github.com/adlens/campledger/internal/notification/domain"
	"github.com/adlens/campledger/internal/seed"
	taskdomain "github.com/adlens/campledger/internal/taskqueue/domain"
	userdomain "github.com/adlens/campledger/internal/user/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// Versioned migrations target postgres; other dialects are for
			// local development and tests.
			if err := conn.AutoMigrate(
				&userdomain.User{},
				&campaigndomain.Campaign{},
				&campaigndomain.LineItem{},
				&invoicedomain.Invoice{},
				&invoicedomain.InvoiceLineItem{},
				&historydomain.ChangeHistory{},
				&taskdomain.Task{},
				&commentdomain.Comment{},
				&commentdomain.CommentMention{},
				&notificationdomain.Notification{},
			); err != nil {
				return err
			}
		}

		if cfg.SeedDemoData {
			return seed.EnsureDemoData(conn)
		}
		return nil
	}),
)
