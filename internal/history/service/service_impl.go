package service

import (
	"context"
	"reflect"
	"time"

	"github.com/adlens/campledger/internal/history/domain"
	userdomain "github.com/adlens/campledger/internal/user/domain"
	"github.com/adlens/campledger/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	UserRepo userdomain.Repository
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	userRepo userdomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("history.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		userRepo: p.UserRepo,
	}
}

func (s *Service) Record(ctx context.Context, change domain.Change) error {
	return s.RecordBatch(ctx, []domain.Change{change})
}

func (s *Service) RecordBatch(ctx context.Context, changes []domain.Change) error {
	records := s.buildRecords(changes)
	if len(records) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.InsertBatch(ctx, tx, records)
	})
}

func (s *Service) buildRecords(changes []domain.Change) []*domain.ChangeHistory {
	now := time.Now().UTC()
	records := make([]*domain.ChangeHistory, 0, len(changes))
	for _, change := range changes {
		if change.EntityType == "" || change.EntityID == 0 {
			s.log.Warn("dropping change with missing entity",
				zap.String("entity_type", string(change.EntityType)))
			continue
		}
		if isNoOp(change) {
			continue
		}
		records = append(records, &domain.ChangeHistory{
			ID:              s.genID.Generate(),
			EntityType:      change.EntityType,
			EntityID:        change.EntityID,
			OldValue:        toJSONMap(change.OldValue),
			NewValue:        toJSONMap(change.NewValue),
			ChangedByUserID: change.ChangedBy,
			CreatedAt:       now,
		})
	}
	return records
}

// isNoOp reports whether old and new payloads carry the same values. A nil
// old payload marks a creation and is always recorded.
func isNoOp(change domain.Change) bool {
	if change.OldValue == nil {
		return false
	}
	return reflect.DeepEqual(change.OldValue, change.NewValue)
}

func toJSONMap(value map[string]interface{}) datatypes.JSONMap {
	if value == nil {
		return nil
	}
	return datatypes.JSONMap(value)
}

func (s *Service) ListForEntity(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	if req.EntityType == "" || req.EntityID == 0 {
		return domain.ListResponse{}, domain.ErrInvalidEntity
	}

	page := req.Pagination.Normalize()
	records, total, err := s.repo.ListForEntity(ctx, s.db, req.EntityType, req.EntityID, page)
	if err != nil {
		return domain.ListResponse{}, err
	}

	entries, err := s.resolveActors(ctx, records)
	if err != nil {
		return domain.ListResponse{}, err
	}

	return domain.ListResponse{
		Entries: entries,
		PageInfo: pagination.PageInfo{
			Limit:  page.Limit,
			Offset: page.Offset,
			Total:  total,
		},
	}, nil
}

func (s *Service) ListForEntities(ctx context.Context, entityType domain.EntityType, entityIDs []snowflake.ID, limit int) ([]domain.Entry, error) {
	if entityType == "" {
		return nil, domain.ErrInvalidEntity
	}
	records, err := s.repo.ListForEntities(ctx, s.db, entityType, entityIDs, limit)
	if err != nil {
		return nil, err
	}
	return s.resolveActors(ctx, records)
}

func (s *Service) resolveActors(ctx context.Context, records []*domain.ChangeHistory) ([]domain.Entry, error) {
	actorIDs := make([]snowflake.ID, 0, len(records))
	seen := make(map[snowflake.ID]struct{}, len(records))
	for _, record := range records {
		if record == nil || record.ChangedByUserID == 0 {
			continue
		}
		if _, ok := seen[record.ChangedByUserID]; ok {
			continue
		}
		seen[record.ChangedByUserID] = struct{}{}
		actorIDs = append(actorIDs, record.ChangedByUserID)
	}

	usernames := make(map[snowflake.ID]string, len(actorIDs))
	if len(actorIDs) > 0 {
		users, err := s.userRepo.FindByIDs(ctx, s.db, actorIDs)
		if err != nil {
			return nil, err
		}
		for _, user := range users {
			if user == nil {
				continue
			}
			usernames[user.ID] = user.Username
		}
	}

	entries := make([]domain.Entry, 0, len(records))
	for _, record := range records {
		if record == nil {
			continue
		}
		entries = append(entries, domain.Entry{
			ChangeHistory:     *record,
			ChangedByUsername: usernames[record.ChangedByUserID],
		})
	}
	return entries, nil
}
