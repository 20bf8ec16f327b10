package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, task *Task) error
	// ClaimNext locks and marks running the oldest claimable pending task. A
	// task is claimable only while it is the oldest pending-or-running task
	// for its lock key, which keeps one key on one worker at a time even
	// across concurrent claim transactions. Returns nil when nothing is
	// claimable.
	ClaimNext(ctx context.Context, tx *gorm.DB) (*Task, error)
	MarkDone(ctx context.Context, db *gorm.DB, taskID int64) error
	// MarkFailed bumps the attempt counter and either requeues the task or,
	// once attempts are exhausted, parks it as failed. Reports whether the
	// task will be retried.
	MarkFailed(ctx context.Context, db *gorm.DB, task *Task, taskErr error) (bool, error)
	// Requeue returns a claimed but unexecuted task to pending without
	// consuming an attempt.
	Requeue(ctx context.Context, db *gorm.DB, taskID int64) error
	CountPending(ctx context.Context, db *gorm.DB) (int64, error)
	// RequeueStaleRunning returns running tasks last touched before olderThan
	// to pending. The threshold keeps a freshly started replica from stealing
	// work a peer still has in flight.
	RequeueStaleRunning(ctx context.Context, db *gorm.DB, olderThan time.Time) (int64, error)
}
