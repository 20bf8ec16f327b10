package service

import (
	"context"
	"testing"

	"github.com/adlens/campledger/internal/history/domain"
	historyrepo "github.com/adlens/campledger/internal/history/repository"
	userdomain "github.com/adlens/campledger/internal/user/domain"
	userrepo "github.com/adlens/campledger/internal/user/repository"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.ChangeHistory{}, &userdomain.User{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Repo:     historyrepo.Provide(),
		UserRepo: userrepo.Provide(),
	}).(*Service)

	return svc, db, node
}

func TestRecord_SkipsNoOp(t *testing.T) {
	svc, db, node := newTestService(t)
	entityID := node.Generate()
	actorID := node.Generate()

	err := svc.Record(context.Background(), domain.Change{
		EntityType: domain.EntityInvoiceLineItem,
		EntityID:   entityID,
		OldValue:   map[string]interface{}{"adjustments": "10.00"},
		NewValue:   map[string]interface{}{"adjustments": "10.00"},
		ChangedBy:  actorID,
	})
	require.NoError(t, err)

	var count int64
	db.Model(&domain.ChangeHistory{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestRecord_CreationHasNilOldValue(t *testing.T) {
	svc, db, node := newTestService(t)
	entityID := node.Generate()

	err := svc.Record(context.Background(), domain.Change{
		EntityType: domain.EntityComment,
		EntityID:   entityID,
		OldValue:   nil,
		NewValue:   map[string]interface{}{"content": "hello"},
		ChangedBy:  node.Generate(),
	})
	require.NoError(t, err)

	var record domain.ChangeHistory
	require.NoError(t, db.First(&record, "entity_id = ?", entityID).Error)
	assert.Nil(t, record.OldValue)
	assert.Equal(t, "hello", record.NewValue["content"])
}

func TestRecordBatch_FiltersNoOpsKeepsChanges(t *testing.T) {
	svc, db, node := newTestService(t)
	actorID := node.Generate()
	changedID := node.Generate()
	unchangedID := node.Generate()

	err := svc.RecordBatch(context.Background(), []domain.Change{
		{
			EntityType: domain.EntityInvoiceLineItem,
			EntityID:   changedID,
			OldValue:   map[string]interface{}{"adjustments": "10.00"},
			NewValue:   map[string]interface{}{"adjustments": "12.50"},
			ChangedBy:  actorID,
		},
		{
			EntityType: domain.EntityInvoiceLineItem,
			EntityID:   unchangedID,
			OldValue:   map[string]interface{}{"adjustments": "7.00"},
			NewValue:   map[string]interface{}{"adjustments": "7.00"},
			ChangedBy:  actorID,
		},
	})
	require.NoError(t, err)

	var records []domain.ChangeHistory
	require.NoError(t, db.Find(&records).Error)
	require.Len(t, records, 1)
	assert.Equal(t, changedID, records[0].EntityID)
	assert.Equal(t, "12.50", records[0].NewValue["adjustments"])
}

func TestRecordBatch_EmptyAfterFilteringWritesNothing(t *testing.T) {
	svc, db, node := newTestService(t)
	actorID := node.Generate()

	err := svc.RecordBatch(context.Background(), []domain.Change{
		{
			EntityType: domain.EntityLineItem,
			EntityID:   node.Generate(),
			OldValue:   map[string]interface{}{"name": "a"},
			NewValue:   map[string]interface{}{"name": "a"},
			ChangedBy:  actorID,
		},
	})
	require.NoError(t, err)

	var count int64
	db.Model(&domain.ChangeHistory{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestListForEntity_NewestFirstWithActor(t *testing.T) {
	svc, db, node := newTestService(t)
	entityID := node.Generate()
	actor := userdomain.User{
		ID:           node.Generate(),
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "x",
		IsActive:     true,
	}
	require.NoError(t, db.Create(&actor).Error)

	for _, value := range []string{"1.00", "2.00", "3.00"} {
		require.NoError(t, svc.Record(context.Background(), domain.Change{
			EntityType: domain.EntityInvoiceLineItem,
			EntityID:   entityID,
			OldValue:   map[string]interface{}{"adjustments": "0.00"},
			NewValue:   map[string]interface{}{"adjustments": value},
			ChangedBy:  actor.ID,
		}))
	}

	resp, err := svc.ListForEntity(context.Background(), domain.ListRequest{
		EntityType: domain.EntityInvoiceLineItem,
		EntityID:   entityID,
	})
	require.NoError(t, err)
	require.Len(t, resp.Entries, 3)
	assert.Equal(t, int64(3), resp.PageInfo.Total)
	assert.Equal(t, "3.00", resp.Entries[0].NewValue["adjustments"])
	assert.Equal(t, "alice", resp.Entries[0].ChangedByUsername)
}
