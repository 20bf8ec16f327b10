package worker

import (
	"context"
	"testing"
	"time"

	"github.com/adlens/campledger/internal/clock"
	commentdomain "github.com/adlens/campledger/internal/comment/domain"
	commentrepo "github.com/adlens/campledger/internal/comment/repository"
	"github.com/adlens/campledger/internal/config"
	"github.com/adlens/campledger/internal/notification/domain"
	"github.com/adlens/campledger/internal/notification/queue"
	notificationrepo "github.com/adlens/campledger/internal/notification/repository"
	userdomain "github.com/adlens/campledger/internal/user/domain"
	userrepo "github.com/adlens/campledger/internal/user/repository"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type published struct {
	userID  snowflake.ID
	payload interface{}
}

type recordingPublisher struct {
	events []published
}

func (p *recordingPublisher) Publish(ctx context.Context, userID snowflake.ID, payload interface{}) {
	p.events = append(p.events, published{userID: userID, payload: payload})
}

type stubDequeuer struct{}

func (stubDequeuer) Dequeue(ctx context.Context, timeout time.Duration) (*queue.Task, error) {
	return nil, nil
}

type fixture struct {
	db        *gorm.DB
	node      *snowflake.Node
	worker    *Worker
	publisher *recordingPublisher
	clock     *clock.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&commentdomain.Comment{},
		&commentdomain.CommentMention{},
		&domain.Notification{},
		&userdomain.User{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	publisher := &recordingPublisher{}
	clk := clock.NewFakeClock(time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC))
	w := New(Params{
		Config:      config.Config{},
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Queue:       stubDequeuer{},
		Repo:        notificationrepo.Provide(),
		CommentRepo: commentrepo.Provide(),
		UserRepo:    userrepo.Provide(),
		Broadcaster: publisher,
		Clock:       clk,
	})

	return &fixture{db: db, node: node, worker: w, publisher: publisher, clock: clk}
}

func (f *fixture) seedUser(t *testing.T, username string) userdomain.User {
	t.Helper()
	user := userdomain.User{
		ID:           f.node.Generate(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
		IsActive:     true,
	}
	require.NoError(t, f.db.Create(&user).Error)
	return user
}

func (f *fixture) seedComment(t *testing.T, authorID snowflake.ID, parentID *snowflake.ID) commentdomain.Comment {
	t.Helper()
	now := time.Now().UTC()
	comment := commentdomain.Comment{
		ID:         f.node.Generate(),
		CampaignID: f.node.Generate(),
		AuthorID:   authorID,
		ParentID:   parentID,
		Content:    "hello",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, f.db.Create(&comment).Error)
	return comment
}

func TestProcessMention_CreatesAndBroadcastsNotifications(t *testing.T) {
	f := newFixture(t)
	author := f.seedUser(t, "alice")
	bob := f.seedUser(t, "bob")
	carol := f.seedUser(t, "carol")
	comment := f.seedComment(t, author.ID, nil)

	err := f.worker.process(context.Background(), queue.Task{
		ID:   "task-1",
		Type: queue.TaskTypeMention,
		Mention: &queue.MentionTask{
			CommentID:        comment.ID.String(),
			MentionedUserIDs: []string{bob.ID.String(), carol.ID.String()},
		},
	})
	require.NoError(t, err)

	var notifications []domain.Notification
	require.NoError(t, f.db.Order("user_id").Find(&notifications).Error)
	require.Len(t, notifications, 2)
	for _, n := range notifications {
		assert.Equal(t, domain.TypeMention, n.Type)
		assert.Equal(t, "@alice mentioned you in a comment", n.Message)
		assert.False(t, n.IsRead)
		require.NotNil(t, n.CommentID)
		assert.Equal(t, comment.ID, *n.CommentID)
		require.NotNil(t, n.ActorID)
		assert.Equal(t, author.ID, *n.ActorID)
		assert.True(t, n.CreatedAt.Equal(f.clock.Now()), "created_at comes from the injected clock")
	}

	require.Len(t, f.publisher.events, 2)
	recipients := []snowflake.ID{f.publisher.events[0].userID, f.publisher.events[1].userID}
	assert.ElementsMatch(t, []snowflake.ID{bob.ID, carol.ID}, recipients)
}

func TestProcessMention_SkipsSelfMention(t *testing.T) {
	f := newFixture(t)
	author := f.seedUser(t, "alice")
	comment := f.seedComment(t, author.ID, nil)

	err := f.worker.process(context.Background(), queue.Task{
		ID:   "task-1",
		Type: queue.TaskTypeMention,
		Mention: &queue.MentionTask{
			CommentID:        comment.ID.String(),
			MentionedUserIDs: []string{author.ID.String()},
		},
	})
	require.NoError(t, err)

	var count int64
	f.db.Model(&domain.Notification{}).Count(&count)
	assert.Equal(t, int64(0), count)
	assert.Empty(t, f.publisher.events)
}

func TestProcessMention_DeletedCommentDropsTask(t *testing.T) {
	f := newFixture(t)
	bob := f.seedUser(t, "bob")

	err := f.worker.process(context.Background(), queue.Task{
		ID:   "task-1",
		Type: queue.TaskTypeMention,
		Mention: &queue.MentionTask{
			CommentID:        f.node.Generate().String(),
			MentionedUserIDs: []string{bob.ID.String()},
		},
	})
	require.NoError(t, err, "a deleted comment is not a retryable failure")

	var count int64
	f.db.Model(&domain.Notification{}).Count(&count)
	assert.Equal(t, int64(0), count)
}

func TestProcessMention_SkipsUnknownRecipients(t *testing.T) {
	f := newFixture(t)
	author := f.seedUser(t, "alice")
	bob := f.seedUser(t, "bob")
	comment := f.seedComment(t, author.ID, nil)

	err := f.worker.process(context.Background(), queue.Task{
		ID:   "task-1",
		Type: queue.TaskTypeMention,
		Mention: &queue.MentionTask{
			CommentID:        comment.ID.String(),
			MentionedUserIDs: []string{bob.ID.String(), f.node.Generate().String(), "not-a-number"},
		},
	})
	require.NoError(t, err)

	var notifications []domain.Notification
	require.NoError(t, f.db.Find(&notifications).Error)
	require.Len(t, notifications, 1)
	assert.Equal(t, bob.ID, notifications[0].UserID)
}

func TestProcessReply_NotifiesParentAuthor(t *testing.T) {
	f := newFixture(t)
	alice := f.seedUser(t, "alice")
	bob := f.seedUser(t, "bob")
	parent := f.seedComment(t, alice.ID, nil)
	reply := f.seedComment(t, bob.ID, &parent.ID)

	err := f.worker.process(context.Background(), queue.Task{
		ID:    "task-1",
		Type:  queue.TaskTypeReply,
		Reply: &queue.ReplyTask{CommentID: reply.ID.String()},
	})
	require.NoError(t, err)

	var notifications []domain.Notification
	require.NoError(t, f.db.Find(&notifications).Error)
	require.Len(t, notifications, 1)
	assert.Equal(t, alice.ID, notifications[0].UserID)
	assert.Equal(t, domain.TypeReply, notifications[0].Type)
	assert.Equal(t, "@bob replied to your comment", notifications[0].Message)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, alice.ID, f.publisher.events[0].userID)
}

func TestProcessReply_SelfReplyDoesNotNotify(t *testing.T) {
	f := newFixture(t)
	alice := f.seedUser(t, "alice")
	parent := f.seedComment(t, alice.ID, nil)
	reply := f.seedComment(t, alice.ID, &parent.ID)

	err := f.worker.process(context.Background(), queue.Task{
		ID:    "task-1",
		Type:  queue.TaskTypeReply,
		Reply: &queue.ReplyTask{CommentID: reply.ID.String()},
	})
	require.NoError(t, err)

	var count int64
	f.db.Model(&domain.Notification{}).Count(&count)
	assert.Equal(t, int64(0), count)
}
