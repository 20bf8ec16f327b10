package service

import (
	"context"
	"strings"
	"time"

	historypkg "github.com/adlens/campledger/internal/history"
	historydomain "github.com/adlens/campledger/internal/history/domain"
	"github.com/adlens/campledger/internal/invoice/domain"
	"github.com/adlens/campledger/internal/money"
	taskservice "github.com/adlens/campledger/internal/taskqueue/service"
	"github.com/adlens/campledger/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Repo     domain.Repository
	History  historydomain.Service
	Enqueuer taskservice.Enqueuer
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     domain.Repository
	history  historydomain.Service
	enqueuer taskservice.Enqueuer
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("invoice.service"),
		repo:     p.Repo,
		history:  p.History,
		enqueuer: p.Enqueuer,
	}
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.InvoiceDetail, error) {
	invoiceID, err := parseID(id)
	if err != nil {
		return domain.InvoiceDetail{}, err
	}

	invoice, err := s.repo.FindByID(ctx, s.db, invoiceID)
	if err != nil {
		return domain.InvoiceDetail{}, err
	}
	if invoice == nil {
		return domain.InvoiceDetail{}, domain.ErrNotFound
	}

	items, err := s.repo.ListLineItems(ctx, s.db, invoiceID)
	if err != nil {
		return domain.InvoiceDetail{}, err
	}

	views := make([]domain.LineItemView, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		views = append(views, toView(*item))
	}

	return domain.InvoiceDetail{Invoice: *invoice, LineItems: views}, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	page := req.Pagination.Normalize()
	rows, total, err := s.repo.List(ctx, s.db, page)
	if err != nil {
		return domain.ListResponse{}, err
	}

	invoices := make([]domain.ListRow, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		invoices = append(invoices, *row)
	}

	return domain.ListResponse{
		Invoices: invoices,
		PageInfo: pagination.PageInfo{
			Limit:  page.Limit,
			Offset: page.Offset,
			Total:  total,
		},
	}, nil
}

func (s *Service) BatchUpdateAdjustments(ctx context.Context, invoiceID string, updates []domain.AdjustmentUpdate, actorID snowflake.ID) ([]domain.LineItemView, error) {
	id, err := parseID(invoiceID)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return nil, domain.ErrEmptyBatch
	}

	normalized, ids, invalid := normalizeBatch(updates)
	if len(invalid) > 0 {
		return nil, &domain.BatchValidationError{Invalid: invalid}
	}

	invoice, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, domain.ErrNotFound
	}

	var (
		updated []domain.InvoiceLineItem
		changes []historydomain.Change
	)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := s.repo.LockLineItems(ctx, tx, id, ids)
		if err != nil {
			return err
		}
		if len(rows) != len(ids) {
			return domain.ErrBatchOwnership
		}

		now := time.Now().UTC()
		for _, row := range rows {
			newValue := normalized[row.ID]
			if !row.Adjustments.Equal(newValue) {
				changes = append(changes, historydomain.Change{
					EntityType: historydomain.EntityInvoiceLineItem,
					EntityID:   row.ID,
					OldValue:   map[string]interface{}{"adjustments": money.String2dp(row.Adjustments)},
					NewValue:   map[string]interface{}{"adjustments": money.String2dp(newValue)},
					ChangedBy:  actorID,
				})
			}

			// Every submitted row is written, so updated_at always bumps.
			if err := s.repo.UpdateAdjustments(ctx, tx, row.ID, newValue, now); err != nil {
				return err
			}
			row.Adjustments = newValue
			row.UpdatedAt = now
			updated = append(updated, *row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordChanges(ctx, changes)

	views := make([]domain.LineItemView, 0, len(updated))
	for _, item := range updated {
		views = append(views, toView(item))
	}
	return views, nil
}

// recordChanges hands history off to the durable queue. When the queue is
// unavailable the changes are written synchronously instead; the adjustment
// write itself has already committed either way.
func (s *Service) recordChanges(ctx context.Context, changes []historydomain.Change) {
	var fallback []historydomain.Change
	for _, change := range changes {
		err := s.enqueuer.Enqueue(ctx,
			historypkg.TaskRecordChange,
			historypkg.LockKey(change.EntityType, change.EntityID),
			historypkg.TaskPayload(change),
		)
		if err != nil {
			fallback = append(fallback, change)
		}
	}
	if len(fallback) == 0 {
		return
	}

	s.log.Warn("history enqueue degraded, recording synchronously",
		zap.Int("changes", len(fallback)))
	if err := s.history.RecordBatch(ctx, fallback); err != nil {
		s.log.Error("synchronous history record failed", zap.Error(err))
	}
}

func normalizeBatch(updates []domain.AdjustmentUpdate) (map[snowflake.ID]decimal.Decimal, []snowflake.ID, []domain.InvalidAdjustment) {
	normalized := make(map[snowflake.ID]decimal.Decimal, len(updates))
	ids := make([]snowflake.ID, 0, len(updates))
	var invalid []domain.InvalidAdjustment

	for _, update := range updates {
		itemID, idErr := snowflake.ParseString(strings.TrimSpace(update.InvoiceLineItemID))
		value, valErr := money.Normalize(update.Adjustments)
		if idErr != nil || itemID == 0 || valErr != nil {
			invalid = append(invalid, domain.InvalidAdjustment{
				InvoiceLineItemID: update.InvoiceLineItemID,
				Adjustments:       update.Adjustments,
			})
			continue
		}
		if _, exists := normalized[itemID]; !exists {
			ids = append(ids, itemID)
		}
		normalized[itemID] = value
	}
	return normalized, ids, invalid
}

func toView(item domain.InvoiceLineItem) domain.LineItemView {
	return domain.LineItemView{
		ID:             item.ID,
		InvoiceID:      item.InvoiceID,
		LineItemID:     item.LineItemID,
		ActualAmount:   money.String2dp(item.ActualAmount),
		Adjustments:    money.String2dp(item.Adjustments),
		BillableAmount: money.String2dp(item.BillableAmount()),
		UpdatedAt:      item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
