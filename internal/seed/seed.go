package seed

import (
	"context"
	"errors"
	"time"

	campaigndomain "github.com/adlens/campledger/internal/campaign/domain"
	invoicedomain "github.com/adlens/campledger/internal/invoice/domain"
	userdomain "github.com/adlens/campledger/internal/user/domain"
	userservice "github.com/adlens/campledger/internal/user/service"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const demoPassword = "password"

var demoUsernames = []string{"alice", "bob", "carol"}

// EnsureDemoData seeds a small working dataset for local development: three
// users, one campaign with line items and its invoice. Safe to run on every
// startup; an existing demo user short-circuits the seed.
func EnsureDemoData(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing userdomain.User
		err := tx.WithContext(ctx).Where("username = ?", demoUsernames[0]).First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := seedUsers(ctx, tx, node); err != nil {
			return err
		}
		return seedCampaign(ctx, tx, node)
	})
}

func seedUsers(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	hash, err := userservice.HashPassword(demoPassword)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, username := range demoUsernames {
		user := userdomain.User{
			ID:           node.Generate(),
			Username:     username,
			Email:        username + "@campledger.local",
			PasswordHash: hash,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.WithContext(ctx).Create(&user).Error; err != nil {
			return err
		}
	}
	return nil
}

func seedCampaign(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	now := time.Now().UTC()
	campaign := campaigndomain.Campaign{
		ID:        node.Generate(),
		Name:      "Spring Launch",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&campaign).Error; err != nil {
		return err
	}

	invoice := invoicedomain.Invoice{
		ID:         node.Generate(),
		CampaignID: campaign.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := tx.WithContext(ctx).Create(&invoice).Error; err != nil {
		return err
	}

	lineItems := []struct {
		name   string
		booked string
		actual string
	}{
		{"Display Banners", "12000", "11384.557"},
		{"Video Preroll", "30000", "29155.02"},
		{"Sponsored Newsletter", "4500", "4500"},
	}
	for _, li := range lineItems {
		lineItem := campaigndomain.LineItem{
			ID:           node.Generate(),
			CampaignID:   campaign.ID,
			Name:         li.name,
			BookedAmount: decimal.RequireFromString(li.booked),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.WithContext(ctx).Create(&lineItem).Error; err != nil {
			return err
		}

		invoiceLine := invoicedomain.InvoiceLineItem{
			ID:           node.Generate(),
			InvoiceID:    invoice.ID,
			LineItemID:   lineItem.ID,
			ActualAmount: decimal.RequireFromString(li.actual),
			Adjustments:  decimal.Zero,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.WithContext(ctx).Create(&invoiceLine).Error; err != nil {
			return err
		}
	}
	return nil
}
