package service

import (
	"context"
	"strings"
	"time"

	campaigndomain "github.com/adlens/campledger/internal/campaign/domain"
	"github.com/adlens/campledger/internal/comment/domain"
	historydomain "github.com/adlens/campledger/internal/history/domain"
	"github.com/adlens/campledger/internal/notification/queue"
	userdomain "github.com/adlens/campledger/internal/user/domain"
	"github.com/adlens/campledger/pkg/db/pagination"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NotificationEnqueuer hands tasks to the notification queue. Enqueue errors
// are a degrade signal only; comment writes never fail on them.
type NotificationEnqueuer interface {
	Enqueue(ctx context.Context, task queue.Task) error
}

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Repo          domain.Repository
	CampaignRepo  campaigndomain.Repository
	UserRepo      userdomain.Repository
	History       historydomain.Service
	Notifications NotificationEnqueuer
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	repo          domain.Repository
	campaignRepo  campaigndomain.Repository
	userRepo      userdomain.Repository
	history       historydomain.Service
	notifications NotificationEnqueuer
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("comment.service"),
		genID:         p.GenID,
		repo:          p.Repo,
		campaignRepo:  p.CampaignRepo,
		userRepo:      p.UserRepo,
		history:       p.History,
		notifications: p.Notifications,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCommentRequest, authorID snowflake.ID) (domain.View, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return domain.View{}, domain.ErrEmptyContent
	}

	campaignID, err := snowflake.ParseString(strings.TrimSpace(req.CampaignID))
	if err != nil || campaignID == 0 {
		return domain.View{}, campaigndomain.ErrInvalidID
	}
	campaign, err := s.campaignRepo.FindByID(ctx, s.db, campaignID)
	if err != nil {
		return domain.View{}, err
	}
	if campaign == nil {
		return domain.View{}, campaigndomain.ErrNotFound
	}

	var parentID *snowflake.ID
	if req.ParentID != nil && strings.TrimSpace(*req.ParentID) != "" {
		parent, err := s.loadParent(ctx, *req.ParentID, campaignID)
		if err != nil {
			return domain.View{}, err
		}
		parentID = &parent.ID
	}

	mentioned, err := s.resolveMentions(ctx, content)
	if err != nil {
		return domain.View{}, err
	}

	now := time.Now().UTC()
	comment := domain.Comment{
		ID:         s.genID.Generate(),
		CampaignID: campaignID,
		AuthorID:   authorID,
		ParentID:   parentID,
		Content:    content,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	mentions := s.buildMentions(comment.ID, mentioned, now)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, &comment); err != nil {
			return err
		}
		return s.repo.InsertMentions(ctx, tx, mentions)
	})
	if err != nil {
		return domain.View{}, err
	}

	s.enqueueNotifications(ctx, comment, mentioned)

	return s.buildView(ctx, comment, mentions)
}

func (s *Service) Update(ctx context.Context, commentID string, req domain.UpdateCommentRequest, actorID snowflake.ID) (domain.View, error) {
	id, err := parseID(commentID)
	if err != nil {
		return domain.View{}, err
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return domain.View{}, domain.ErrEmptyContent
	}

	comment, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.View{}, err
	}
	if comment == nil {
		return domain.View{}, domain.ErrNotFound
	}
	if comment.AuthorID != actorID {
		return domain.View{}, domain.ErrForbidden
	}

	oldContent := comment.Content
	mentioned, err := s.resolveMentions(ctx, content)
	if err != nil {
		return domain.View{}, err
	}

	current, err := s.repo.ListMentions(ctx, s.db, id)
	if err != nil {
		return domain.View{}, err
	}
	toAdd, toRemove := diffMentions(current, mentioned)

	now := time.Now().UTC()
	added := s.buildMentions(id, toAdd, now)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.UpdateContent(ctx, tx, id, content, now); err != nil {
			return err
		}
		if err := s.repo.DeleteMentions(ctx, tx, id, toRemove); err != nil {
			return err
		}
		return s.repo.InsertMentions(ctx, tx, added)
	})
	if err != nil {
		return domain.View{}, err
	}

	if oldContent != content {
		if err := s.history.Record(ctx, historydomain.Change{
			EntityType: historydomain.EntityComment,
			EntityID:   id,
			OldValue:   map[string]interface{}{"content": oldContent},
			NewValue:   map[string]interface{}{"content": content},
			ChangedBy:  actorID,
		}); err != nil {
			s.log.Error("comment history record failed",
				zap.String("comment_id", id.String()),
				zap.Error(err))
		}
	}

	comment.Content = content
	comment.UpdatedAt = now
	mentions, err := s.repo.ListMentions(ctx, s.db, id)
	if err != nil {
		return domain.View{}, err
	}
	return s.buildView(ctx, *comment, mentions)
}

func (s *Service) Delete(ctx context.Context, commentID string, actorID snowflake.ID) error {
	id, err := parseID(commentID)
	if err != nil {
		return err
	}

	comment, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if comment == nil {
		return domain.ErrNotFound
	}
	if comment.AuthorID != actorID {
		return domain.ErrForbidden
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.Delete(ctx, tx, id)
	})
}

func (s *Service) ListForCampaign(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	campaignID, err := snowflake.ParseString(strings.TrimSpace(req.CampaignID))
	if err != nil || campaignID == 0 {
		return domain.ListResponse{}, campaigndomain.ErrInvalidID
	}

	page := req.Pagination.Normalize()
	comments, total, err := s.repo.ListTopLevel(ctx, s.db, campaignID, page)
	if err != nil {
		return domain.ListResponse{}, err
	}

	usernames, err := s.usernamesFor(ctx, comments)
	if err != nil {
		return domain.ListResponse{}, err
	}

	views := make([]domain.View, 0, len(comments))
	for _, comment := range comments {
		if comment == nil {
			continue
		}
		view := toView(*comment, usernames)
		view.Replies = make([]domain.View, 0, len(comment.Replies))
		for _, reply := range comment.Replies {
			view.Replies = append(view.Replies, toView(reply, usernames))
		}
		views = append(views, view)
	}

	return domain.ListResponse{
		Comments: views,
		PageInfo: pagination.PageInfo{
			Limit:  page.Limit,
			Offset: page.Offset,
			Total:  total,
		},
	}, nil
}

func (s *Service) loadParent(ctx context.Context, rawParentID string, campaignID snowflake.ID) (*domain.Comment, error) {
	parentID, err := parseID(rawParentID)
	if err != nil {
		return nil, err
	}
	parent, err := s.repo.FindByID(ctx, s.db, parentID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, domain.ErrNotFound
	}
	if parent.CampaignID != campaignID {
		return nil, domain.ErrParentMismatch
	}
	if parent.ParentID != nil {
		return nil, domain.ErrNestedReply
	}
	return parent, nil
}

// resolveMentions maps @usernames in content to users. Unknown names are
// ignored.
func (s *Service) resolveMentions(ctx context.Context, content string) ([]snowflake.ID, error) {
	usernames := domain.ParseMentions(content)
	if len(usernames) == 0 {
		return nil, nil
	}
	users, err := s.userRepo.FindByUsernames(ctx, s.db, usernames)
	if err != nil {
		return nil, err
	}
	ids := make([]snowflake.ID, 0, len(users))
	for _, user := range users {
		if user == nil {
			continue
		}
		ids = append(ids, user.ID)
	}
	return ids, nil
}

func (s *Service) buildMentions(commentID snowflake.ID, userIDs []snowflake.ID, now time.Time) []*domain.CommentMention {
	mentions := make([]*domain.CommentMention, 0, len(userIDs))
	for _, userID := range userIDs {
		mentions = append(mentions, &domain.CommentMention{
			ID:        s.genID.Generate(),
			CommentID: commentID,
			UserID:    userID,
			CreatedAt: now,
		})
	}
	return mentions
}

// enqueueNotifications is best effort; the queue logs failures and comment
// creation has already committed.
func (s *Service) enqueueNotifications(ctx context.Context, comment domain.Comment, mentioned []snowflake.ID) {
	if len(mentioned) > 0 {
		ids := make([]string, 0, len(mentioned))
		for _, id := range mentioned {
			ids = append(ids, id.String())
		}
		_ = s.notifications.Enqueue(ctx, queue.Task{
			Type: queue.TaskTypeMention,
			Mention: &queue.MentionTask{
				CommentID:        comment.ID.String(),
				MentionedUserIDs: ids,
			},
		})
	}

	if comment.ParentID != nil {
		_ = s.notifications.Enqueue(ctx, queue.Task{
			Type: queue.TaskTypeReply,
			Reply: &queue.ReplyTask{
				CommentID: comment.ID.String(),
			},
		})
	}
}

func (s *Service) buildView(ctx context.Context, comment domain.Comment, mentions []*domain.CommentMention) (domain.View, error) {
	author, err := s.userRepo.FindByID(ctx, s.db, comment.AuthorID)
	if err != nil {
		return domain.View{}, err
	}

	usernames := map[snowflake.ID]string{}
	if author != nil {
		usernames[author.ID] = author.Username
	}

	comment.Mentions = make([]domain.CommentMention, 0, len(mentions))
	for _, mention := range mentions {
		if mention == nil {
			continue
		}
		comment.Mentions = append(comment.Mentions, *mention)
	}
	return toView(comment, usernames), nil
}

func (s *Service) usernamesFor(ctx context.Context, comments []*domain.Comment) (map[snowflake.ID]string, error) {
	seen := map[snowflake.ID]struct{}{}
	var ids []snowflake.ID
	add := func(id snowflake.ID) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, comment := range comments {
		if comment == nil {
			continue
		}
		add(comment.AuthorID)
		for _, reply := range comment.Replies {
			add(reply.AuthorID)
		}
	}

	usernames := make(map[snowflake.ID]string, len(ids))
	if len(ids) == 0 {
		return usernames, nil
	}
	users, err := s.userRepo.FindByIDs(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	for _, user := range users {
		if user == nil {
			continue
		}
		usernames[user.ID] = user.Username
	}
	return usernames, nil
}

// diffMentions compares stored mention rows against the freshly parsed set
// and returns which user IDs to insert and which to delete. Unchanged
// mentions keep their original rows.
func diffMentions(current []*domain.CommentMention, wanted []snowflake.ID) (toAdd, toRemove []snowflake.ID) {
	have := make(map[snowflake.ID]struct{}, len(current))
	for _, mention := range current {
		if mention == nil {
			continue
		}
		have[mention.UserID] = struct{}{}
	}
	want := make(map[snowflake.ID]struct{}, len(wanted))
	for _, id := range wanted {
		want[id] = struct{}{}
		if _, ok := have[id]; !ok {
			toAdd = append(toAdd, id)
		}
	}
	for _, mention := range current {
		if mention == nil {
			continue
		}
		if _, ok := want[mention.UserID]; !ok {
			toRemove = append(toRemove, mention.UserID)
		}
	}
	return toAdd, toRemove
}

func toView(comment domain.Comment, usernames map[snowflake.ID]string) domain.View {
	mentionIDs := make([]snowflake.ID, 0, len(comment.Mentions))
	for _, mention := range comment.Mentions {
		mentionIDs = append(mentionIDs, mention.UserID)
	}
	return domain.View{
		ID:             comment.ID,
		CampaignID:     comment.CampaignID,
		AuthorID:       comment.AuthorID,
		AuthorUsername: usernames[comment.AuthorID],
		ParentID:       comment.ParentID,
		Content:        comment.Content,
		MentionUserIDs: mentionIDs,
		CreatedAt:      comment.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      comment.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
