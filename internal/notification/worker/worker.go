package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/adlens/campledger/internal/clock"
	commentdomain "github.com/adlens/campledger/internal/comment/domain"
	"github.com/adlens/campledger/internal/config"
	"github.com/adlens/campledger/internal/notification/domain"
	"github.com/adlens/campledger/internal/notification/queue"
	"github.com/adlens/campledger/internal/observability/metrics"
	userdomain "github.com/adlens/campledger/internal/user/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const queueName = "notification"

// Dequeuer yields the next pending notification task.
type Dequeuer interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Task, error)
}

// Publisher pushes a created notification to the recipient's live stream.
type Publisher interface {
	Publish(ctx context.Context, userID snowflake.ID, payload interface{})
}

type Params struct {
	fx.In

	Config      config.Config
	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Queue       Dequeuer
	Repo        domain.Repository
	CommentRepo commentdomain.Repository
	UserRepo    userdomain.Repository
	Broadcaster Publisher
	Clock       clock.Clock    `optional:"true"`
	Metrics     *metrics.Queue `optional:"true"`
}

// Worker is the single consumer of the notification queue. It turns mention
// and reply tasks into stored notifications and broadcasts each one.
type Worker struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	queue       Dequeuer
	repo        domain.Repository
	commentRepo commentdomain.Repository
	userRepo    userdomain.Repository
	broadcaster Publisher
	clock       clock.Clock
	metrics     *metrics.Queue

	dequeueTimeout time.Duration
}

func New(p Params) *Worker {
	timeout := p.Config.Worker.DequeueTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.System()
	}

	return &Worker{
		db:             p.DB,
		log:            p.Log.Named("notification.worker"),
		genID:          p.GenID,
		queue:          p.Queue,
		repo:           p.Repo,
		commentRepo:    p.CommentRepo,
		userRepo:       p.UserRepo,
		broadcaster:    p.Broadcaster,
		clock:          clk,
		metrics:        p.Metrics,
		dequeueTimeout: timeout,
	}
}

// Run consumes tasks until ctx is cancelled. A failing task is logged and
// dropped; the redis list carries no attempt bookkeeping to retry with.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("notification worker starting",
		zap.Duration("dequeue_timeout", w.dequeueTimeout))

	for {
		select {
		case <-ctx.Done():
			w.log.Info("notification worker stopping")
			return
		default:
		}

		task, err := w.queue.Dequeue(ctx, w.dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				w.log.Info("notification worker stopping")
				return
			}
			w.log.Error("notification dequeue failed", zap.Error(err))
			continue
		}
		if task == nil {
			continue
		}

		w.handle(ctx, *task)
	}
}

func (w *Worker) handle(ctx context.Context, task queue.Task) {
	log := w.log.With(
		zap.String("task_id", task.ID),
		zap.String("type", string(task.Type)))

	err := w.process(ctx, task)
	if err != nil {
		log.Error("notification task failed", zap.Error(err))
		w.metrics.IncFailed(queueName, string(task.Type))
		return
	}
	w.metrics.IncProcessed(queueName, string(task.Type))
}

func (w *Worker) process(ctx context.Context, task queue.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notification task panic: %v", r)
		}
	}()

	if err := task.Validate(); err != nil {
		return err
	}

	switch task.Type {
	case queue.TaskTypeMention:
		return w.processMention(ctx, *task.Mention)
	case queue.TaskTypeReply:
		return w.processReply(ctx, *task.Reply)
	default:
		return fmt.Errorf("unknown notification task type %q", task.Type)
	}
}

func (w *Worker) processMention(ctx context.Context, task queue.MentionTask) error {
	comment, author, err := w.loadComment(ctx, task.CommentID)
	if err != nil || comment == nil {
		return err
	}

	recipients := make([]snowflake.ID, 0, len(task.MentionedUserIDs))
	for _, raw := range task.MentionedUserIDs {
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			w.log.Warn("skipping malformed mentioned user id", zap.String("user_id", raw))
			continue
		}
		// Mentioning yourself does not notify.
		if id == comment.AuthorID {
			continue
		}
		recipients = append(recipients, id)
	}
	if len(recipients) == 0 {
		return nil
	}

	users, err := w.userRepo.FindByIDs(ctx, w.db, recipients)
	if err != nil {
		return err
	}

	message := fmt.Sprintf("@%s mentioned you in a comment", author.Username)
	return w.deliver(ctx, users, domain.TypeMention, message, comment)
}

func (w *Worker) processReply(ctx context.Context, task queue.ReplyTask) error {
	comment, author, err := w.loadComment(ctx, task.CommentID)
	if err != nil || comment == nil {
		return err
	}
	if comment.ParentID == nil {
		w.log.Warn("reply task for a top level comment, dropping",
			zap.String("comment_id", comment.ID.String()))
		return nil
	}

	parent, err := w.commentRepo.FindByID(ctx, w.db, *comment.ParentID)
	if err != nil {
		return err
	}
	if parent == nil {
		w.log.Warn("parent comment gone, dropping reply task",
			zap.String("comment_id", comment.ID.String()))
		return nil
	}
	// Replying to yourself does not notify.
	if parent.AuthorID == comment.AuthorID {
		return nil
	}

	recipient, err := w.userRepo.FindByID(ctx, w.db, parent.AuthorID)
	if err != nil {
		return err
	}
	if recipient == nil {
		w.log.Warn("reply recipient gone, dropping reply task",
			zap.String("user_id", parent.AuthorID.String()))
		return nil
	}

	message := fmt.Sprintf("@%s replied to your comment", author.Username)
	return w.deliver(ctx, []*userdomain.User{recipient}, domain.TypeReply, message, comment)
}

// loadComment resolves the comment and its author. A missing comment or
// author means the source was deleted after enqueue; both return nil to drop
// the task without an error.
func (w *Worker) loadComment(ctx context.Context, rawCommentID string) (*commentdomain.Comment, *userdomain.User, error) {
	commentID, err := snowflake.ParseString(rawCommentID)
	if err != nil || commentID == 0 {
		return nil, nil, fmt.Errorf("malformed comment id %q", rawCommentID)
	}

	comment, err := w.commentRepo.FindByID(ctx, w.db, commentID)
	if err != nil {
		return nil, nil, err
	}
	if comment == nil {
		w.log.Warn("comment gone, dropping notification task",
			zap.String("comment_id", rawCommentID))
		return nil, nil, nil
	}

	author, err := w.userRepo.FindByID(ctx, w.db, comment.AuthorID)
	if err != nil {
		return nil, nil, err
	}
	if author == nil {
		w.log.Warn("comment author gone, dropping notification task",
			zap.String("comment_id", rawCommentID))
		return nil, nil, nil
	}
	return comment, author, nil
}

func (w *Worker) deliver(ctx context.Context, recipients []*userdomain.User, kind domain.Type, message string, comment *commentdomain.Comment) error {
	now := w.clock.Now()
	commentID := comment.ID
	actorID := comment.AuthorID

	notifications := make([]*domain.Notification, 0, len(recipients))
	for _, recipient := range recipients {
		if recipient == nil {
			continue
		}
		notifications = append(notifications, &domain.Notification{
			ID:        w.genID.Generate(),
			UserID:    recipient.ID,
			Type:      kind,
			Message:   message,
			CommentID: &commentID,
			ActorID:   &actorID,
			CreatedAt: now,
		})
	}
	if len(notifications) == 0 {
		return nil
	}

	if err := w.repo.InsertBatch(ctx, w.db, notifications); err != nil {
		return err
	}

	for _, notification := range notifications {
		w.broadcaster.Publish(ctx, notification.UserID, notification)
	}
	return nil
}
