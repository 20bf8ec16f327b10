package repository

import (
	"context"
	"time"

	"github.com/adlens/campledger/internal/taskqueue/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, task *domain.Task) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO tasks (id, name, lock_key, payload, status, attempts, max_attempts, last_error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID,
		task.Name,
		task.LockKey,
		task.Payload,
		task.Status,
		task.Attempts,
		task.MaxAttempts,
		task.LastError,
		task.CreatedAt,
		task.UpdatedAt,
	).Error
}

// ClaimNext claims a pending task only when it is the oldest live (pending or
// running) task for its lock key. A concurrent claimer holding the older row's
// lock makes the whole key ineligible, so two workers can never mark two tasks
// of one key running: the younger task is filtered out by the oldest-per-key
// predicate rather than by the (read-committed, racy) status of its sibling.
// Tasks with an empty lock key carry no ordering and are always eligible.
func (r *repo) ClaimNext(ctx context.Context, tx *gorm.DB) (*domain.Task, error) {
	var task domain.Task
	err := tx.WithContext(ctx).Raw(
		`SELECT t.id, t.name, t.lock_key, t.payload, t.status, t.attempts, t.max_attempts, t.last_error, t.created_at, t.updated_at
		 FROM tasks t
		 WHERE t.status = ?
		   AND (t.lock_key = '' OR t.id = (
		       SELECT t2.id FROM tasks t2
		        WHERE t2.lock_key = t.lock_key
		          AND t2.status IN (?, ?)
		        ORDER BY t2.created_at ASC, t2.id ASC
		        LIMIT 1
		   ))
		 ORDER BY t.created_at ASC, t.id ASC
		 LIMIT 1
		 FOR UPDATE SKIP LOCKED`,
		domain.TaskStatusPending,
		domain.TaskStatusPending,
		domain.TaskStatusRunning,
	).Scan(&task).Error
	if err != nil {
		return nil, err
	}
	if task.ID == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	result := tx.WithContext(ctx).Exec(
		`UPDATE tasks SET status = ?, attempts = attempts + 1, updated_at = ? WHERE id = ? AND status = ?`,
		domain.TaskStatusRunning,
		now,
		task.ID,
		domain.TaskStatusPending,
	)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	task.Status = domain.TaskStatusRunning
	task.Attempts++
	task.UpdatedAt = now
	return &task, nil
}

func (r *repo) MarkDone(ctx context.Context, db *gorm.DB, taskID int64) error {
	return db.WithContext(ctx).Exec(
		`UPDATE tasks SET status = ?, last_error = '', updated_at = ? WHERE id = ?`,
		domain.TaskStatusDone,
		time.Now().UTC(),
		taskID,
	).Error
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, task *domain.Task, taskErr error) (bool, error) {
	message := ""
	if taskErr != nil {
		message = taskErr.Error()
	}

	retry := task.Attempts < task.MaxAttempts
	status := domain.TaskStatusPending
	if !retry {
		status = domain.TaskStatusFailed
	}

	err := db.WithContext(ctx).Exec(
		`UPDATE tasks SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		status,
		message,
		time.Now().UTC(),
		task.ID,
	).Error
	if err != nil {
		return false, err
	}
	return retry, nil
}

func (r *repo) Requeue(ctx context.Context, db *gorm.DB, taskID int64) error {
	return db.WithContext(ctx).Exec(
		`UPDATE tasks SET status = ?, attempts = attempts - 1, updated_at = ? WHERE id = ? AND status = ?`,
		domain.TaskStatusPending,
		time.Now().UTC(),
		taskID,
		domain.TaskStatusRunning,
	).Error
}

func (r *repo) CountPending(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM tasks WHERE status = ?`,
		domain.TaskStatusPending,
	).Scan(&count).Error
	return count, err
}

func (r *repo) RequeueStaleRunning(ctx context.Context, db *gorm.DB, olderThan time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE tasks SET status = ?, updated_at = ? WHERE status = ? AND updated_at < ?`,
		domain.TaskStatusPending,
		time.Now().UTC(),
		domain.TaskStatusRunning,
		olderThan.UTC(),
	)
	return result.RowsAffected, result.Error
}
