package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	historydomain "github.com/adlens/campledger/internal/history/domain"
	historyrepo "github.com/adlens/campledger/internal/history/repository"
	historyservice "github.com/adlens/campledger/internal/history/service"
	"github.com/adlens/campledger/internal/invoice/domain"
	invoicerepo "github.com/adlens/campledger/internal/invoice/repository"
	taskdomain "github.com/adlens/campledger/internal/taskqueue/domain"
	taskrepo "github.com/adlens/campledger/internal/taskqueue/repository"
	taskservice "github.com/adlens/campledger/internal/taskqueue/service"
	userdomain "github.com/adlens/campledger/internal/user/domain"
	userrepo "github.com/adlens/campledger/internal/user/repository"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	node    *snowflake.Node
	svc     domain.Service
	history historydomain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	// SQLite support hack: remove FOR UPDATE clauses
	stripLocks := func(d *gorm.DB) {
		sql := d.Statement.SQL.String()
		if strings.Contains(sql, "FOR UPDATE") {
			newSQL := strings.ReplaceAll(sql, "FOR UPDATE SKIP LOCKED", "")
			newSQL = strings.ReplaceAll(newSQL, "FOR UPDATE", "")
			d.Statement.SQL.Reset()
			d.Statement.SQL.WriteString(newSQL)
		}
	}
	db.Callback().Query().Before("gorm:query").Register("sqlite_skip_locked", stripLocks)
	db.Callback().Row().Before("gorm:row").Register("sqlite_skip_locked_row", stripLocks)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&domain.Invoice{},
		&domain.InvoiceLineItem{},
		&historydomain.ChangeHistory{},
		&taskdomain.Task{},
		&userdomain.User{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	history := historyservice.New(historyservice.Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Repo:     historyrepo.Provide(),
		UserRepo: userrepo.Provide(),
	})
	enqueuer := taskservice.New(taskservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  taskrepo.Provide(),
	})
	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		Repo:     invoicerepo.Provide(),
		History:  history,
		Enqueuer: enqueuer,
	})

	return &fixture{db: db, node: node, svc: svc, history: history}
}

func (f *fixture) seedInvoice(t *testing.T, adjustments ...string) (domain.Invoice, []domain.InvoiceLineItem) {
	t.Helper()

	invoice := domain.Invoice{
		ID:         f.node.Generate(),
		CampaignID: f.node.Generate(),
	}
	require.NoError(t, f.db.Create(&invoice).Error)

	items := make([]domain.InvoiceLineItem, 0, len(adjustments))
	for _, adj := range adjustments {
		item := domain.InvoiceLineItem{
			ID:           f.node.Generate(),
			InvoiceID:    invoice.ID,
			LineItemID:   f.node.Generate(),
			ActualAmount: decimal.RequireFromString("100"),
			Adjustments:  decimal.RequireFromString(adj),
			UpdatedAt:    time.Now().UTC().Add(-time.Hour),
		}
		require.NoError(t, f.db.Create(&item).Error)
		items = append(items, item)
	}
	return invoice, items
}

func TestBatchUpdateAdjustments_AppliesAndEnqueuesHistory(t *testing.T) {
	f := newFixture(t)
	invoice, items := f.seedInvoice(t, "10", "5")
	actorID := f.node.Generate()

	views, err := f.svc.BatchUpdateAdjustments(context.Background(), invoice.ID.String(), []domain.AdjustmentUpdate{
		{InvoiceLineItemID: items[0].ID.String(), Adjustments: "12.345"},
		{InvoiceLineItemID: items[1].ID.String(), Adjustments: "5"},
	}, actorID)
	require.NoError(t, err)
	require.Len(t, views, 2)

	assert.Equal(t, "12.35", views[0].Adjustments)
	assert.Equal(t, "112.35", views[0].BillableAmount)
	assert.Equal(t, "5.00", views[1].Adjustments)

	// Only the changed row produced a queue task.
	var tasks []taskdomain.Task
	require.NoError(t, f.db.Find(&tasks).Error)
	require.Len(t, tasks, 1)
	assert.Equal(t, "history.record_change", tasks[0].Name)
	assert.Equal(t, "invoice_line_item-"+items[0].ID.String(), tasks[0].LockKey)
	assert.Equal(t, "12.35", tasks[0].Payload["new_value"].(map[string]interface{})["adjustments"])

	// The no-op row still got its updated_at bumped.
	var reloaded domain.InvoiceLineItem
	require.NoError(t, f.db.First(&reloaded, "id = ?", items[1].ID).Error)
	assert.True(t, reloaded.UpdatedAt.After(items[1].UpdatedAt))
}

func TestBatchUpdateAdjustments_RejectsInvalidValues(t *testing.T) {
	f := newFixture(t)
	invoice, items := f.seedInvoice(t, "10", "5")
	actorID := f.node.Generate()

	_, err := f.svc.BatchUpdateAdjustments(context.Background(), invoice.ID.String(), []domain.AdjustmentUpdate{
		{InvoiceLineItemID: items[0].ID.String(), Adjustments: "12.50"},
		{InvoiceLineItemID: items[1].ID.String(), Adjustments: "not-a-number"},
	}, actorID)

	var vErr *domain.BatchValidationError
	require.ErrorAs(t, err, &vErr)
	require.Len(t, vErr.Invalid, 1)
	assert.Equal(t, items[1].ID.String(), vErr.Invalid[0].InvoiceLineItemID)

	// Whole batch rejected: the valid row is untouched.
	var reloaded domain.InvoiceLineItem
	require.NoError(t, f.db.First(&reloaded, "id = ?", items[0].ID).Error)
	assert.True(t, reloaded.Adjustments.Equal(decimal.RequireFromString("10")))
}

func TestBatchUpdateAdjustments_RejectsForeignLineItems(t *testing.T) {
	f := newFixture(t)
	invoice, items := f.seedInvoice(t, "10")
	_, otherItems := f.seedInvoice(t, "7")
	actorID := f.node.Generate()

	_, err := f.svc.BatchUpdateAdjustments(context.Background(), invoice.ID.String(), []domain.AdjustmentUpdate{
		{InvoiceLineItemID: items[0].ID.String(), Adjustments: "20"},
		{InvoiceLineItemID: otherItems[0].ID.String(), Adjustments: "30"},
	}, actorID)
	require.ErrorIs(t, err, domain.ErrBatchOwnership)

	// All-or-nothing: the owned row was not mutated.
	var reloaded domain.InvoiceLineItem
	require.NoError(t, f.db.First(&reloaded, "id = ?", items[0].ID).Error)
	assert.True(t, reloaded.Adjustments.Equal(decimal.RequireFromString("10")))

	var taskCount int64
	f.db.Model(&taskdomain.Task{}).Count(&taskCount)
	assert.Equal(t, int64(0), taskCount)
}

func TestBatchUpdateAdjustments_EmptyBatchRejected(t *testing.T) {
	f := newFixture(t)
	invoice, _ := f.seedInvoice(t, "10")

	_, err := f.svc.BatchUpdateAdjustments(context.Background(), invoice.ID.String(), nil, f.node.Generate())
	require.ErrorIs(t, err, domain.ErrEmptyBatch)
}

func TestBatchUpdateAdjustments_UnknownInvoice(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.BatchUpdateAdjustments(context.Background(), f.node.Generate().String(), []domain.AdjustmentUpdate{
		{InvoiceLineItemID: f.node.Generate().String(), Adjustments: "1"},
	}, f.node.Generate())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

type failingEnqueuer struct{}

func (failingEnqueuer) Enqueue(ctx context.Context, name, lockKey string, payload map[string]interface{}) error {
	return errors.New("queue down")
}

func TestBatchUpdateAdjustments_EnqueueFailureFallsBackToSyncHistory(t *testing.T) {
	f := newFixture(t)
	invoice, items := f.seedInvoice(t, "10")
	actorID := f.node.Generate()

	svc := New(Params{
		DB:       f.db,
		Log:      zap.NewNop(),
		Repo:     invoicerepo.Provide(),
		History:  f.history,
		Enqueuer: failingEnqueuer{},
	})

	views, err := svc.BatchUpdateAdjustments(context.Background(), invoice.ID.String(), []domain.AdjustmentUpdate{
		{InvoiceLineItemID: items[0].ID.String(), Adjustments: "11"},
	}, actorID)
	require.NoError(t, err, "edit must commit even when the queue is down")
	require.Len(t, views, 1)
	assert.Equal(t, "11.00", views[0].Adjustments)

	var records []historydomain.ChangeHistory
	require.NoError(t, f.db.Find(&records).Error)
	require.Len(t, records, 1)
	assert.Equal(t, historydomain.EntityInvoiceLineItem, records[0].EntityType)
	assert.Equal(t, items[0].ID, records[0].EntityID)
	assert.Equal(t, "11.00", records[0].NewValue["adjustments"])
	assert.Equal(t, "10.00", records[0].OldValue["adjustments"])
}
