package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/adlens/campledger/internal/observability/metrics"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	// QueueKey is the redis list holding pending notification tasks.
	QueueKey = "notification_queue"

	queueName = "notification"
)

type TaskType string

const (
	TaskTypeMention TaskType = "mention"
	TaskTypeReply   TaskType = "reply"
)

// MentionTask fans a comment out to the users it mentions.
type MentionTask struct {
	CommentID        string   `json:"comment_id"`
	MentionedUserIDs []string `json:"mentioned_user_ids"`
}

// ReplyTask notifies the parent comment's author about a reply.
type ReplyTask struct {
	CommentID string `json:"comment_id"`
}

// Task is the queue envelope. Exactly one variant matching Type is set.
type Task struct {
	ID      string       `json:"id"`
	Type    TaskType     `json:"type"`
	Mention *MentionTask `json:"mention,omitempty"`
	Reply   *ReplyTask   `json:"reply,omitempty"`
}

// Validate checks that the envelope carries the variant its type names.
func (t Task) Validate() error {
	switch t.Type {
	case TaskTypeMention:
		if t.Mention == nil || t.Mention.CommentID == "" || len(t.Mention.MentionedUserIDs) == 0 {
			return fmt.Errorf("mention task missing required fields")
		}
	case TaskTypeReply:
		if t.Reply == nil || t.Reply.CommentID == "" {
			return fmt.Errorf("reply task missing required fields")
		}
	default:
		return fmt.Errorf("unknown notification task type %q", t.Type)
	}
	return nil
}

type Params struct {
	fx.In

	Redis   *redis.Client
	Log     *zap.Logger
	Metrics *metrics.Queue `optional:"true"`
}

// Queue is a redis-list backed task queue with a single blocking consumer.
type Queue struct {
	redis   *redis.Client
	log     *zap.Logger
	metrics *metrics.Queue
}

func New(p Params) *Queue {
	return &Queue{
		redis:   p.Redis,
		log:     p.Log.Named("notification.queue"),
		metrics: p.Metrics,
	}
}

// Enqueue pushes a task onto the queue. Delivery is best effort: callers log
// and move on when this fails.
func (q *Queue) Enqueue(ctx context.Context, task Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if err := task.Validate(); err != nil {
		q.log.Error("refusing to enqueue malformed notification task", zap.Error(err))
		return err
	}

	data, err := json.Marshal(task)
	if err != nil {
		return err
	}

	if err := q.redis.LPush(ctx, QueueKey, data).Err(); err != nil {
		q.log.Error("notification enqueue failed",
			zap.String("task_id", task.ID),
			zap.String("type", string(task.Type)),
			zap.Error(err))
		return err
	}

	q.metrics.IncEnqueued(queueName, string(task.Type))
	return nil
}

// Dequeue blocks up to timeout for the next task. Returns (nil, nil) when the
// queue stays empty.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Task, error) {
	result, err := q.redis.BRPop(ctx, timeout, QueueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of length %d", len(result))
	}

	var task Task
	if err := json.Unmarshal([]byte(result[1]), &task); err != nil {
		return nil, fmt.Errorf("decode notification task: %w", err)
	}
	return &task, nil
}

// Depth reports the number of tasks waiting on the queue.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.redis.LLen(ctx, QueueKey).Result()
}
