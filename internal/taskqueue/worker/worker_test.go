package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/adlens/campledger/internal/config"
	"github.com/adlens/campledger/internal/taskqueue/domain"
	"github.com/adlens/campledger/internal/taskqueue/repository"
	"github.com/adlens/campledger/internal/taskqueue/service"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
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

	require.NoError(t, db.AutoMigrate(&domain.Task{}))
	return db
}

func newEnqueuer(t *testing.T, db *gorm.DB) service.Enqueuer {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return service.New(service.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
	})
}

func newWorker(db *gorm.DB) *Worker {
	cfg := config.Config{}
	cfg.Worker.Concurrency = 5
	cfg.Worker.PollInterval = 10 * time.Millisecond
	cfg.Worker.ShutdownGrace = 5 * time.Second
	return New(Params{
		Config: cfg,
		DB:     db,
		Log:    zap.NewNop(),
		Repo:   repository.Provide(),
	})
}

func TestClaimNext_SerializesSameLockKey(t *testing.T) {
	db := newTestDB(t)
	enq := newEnqueuer(t, db)
	repo := repository.Provide()
	ctx := context.Background()

	require.NoError(t, enq.Enqueue(ctx, "history.record_changes", "invoice_line_item-1", map[string]interface{}{"seq": 1}))
	require.NoError(t, enq.Enqueue(ctx, "history.record_changes", "invoice_line_item-1", map[string]interface{}{"seq": 2}))
	require.NoError(t, enq.Enqueue(ctx, "history.record_changes", "invoice_line_item-2", map[string]interface{}{"seq": 3}))

	first, err := repo.ClaimNext(ctx, db)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "invoice_line_item-1", first.LockKey)

	// Second task on the same key is blocked while the first is running.
	second, err := repo.ClaimNext(ctx, db)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, "invoice_line_item-2", second.LockKey)

	blocked, err := repo.ClaimNext(ctx, db)
	require.NoError(t, err)
	assert.Nil(t, blocked)

	require.NoError(t, repo.MarkDone(ctx, db, int64(first.ID)))

	next, err := repo.ClaimNext(ctx, db)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "invoice_line_item-1", next.LockKey)
	assert.EqualValues(t, json.Number("2"), next.Payload["seq"])
}

func TestClaimNext_OnlyOldestTaskPerKeyIsEligible(t *testing.T) {
	db := newTestDB(t)
	enq := newEnqueuer(t, db)
	repo := repository.Provide()
	ctx := context.Background()

	require.NoError(t, enq.Enqueue(ctx, "record", "campaign-7", map[string]interface{}{"seq": 1}))
	require.NoError(t, enq.Enqueue(ctx, "record", "campaign-7", map[string]interface{}{"seq": 2}))

	// The younger task is never a claim candidate while an older task of the
	// same key is live, whatever the older task's status reads as.
	first, err := repo.ClaimNext(ctx, db)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.EqualValues(t, json.Number("1"), first.Payload["seq"])

	blocked, err := repo.ClaimNext(ctx, db)
	require.NoError(t, err)
	assert.Nil(t, blocked)
}

func TestClaimNext_FailedTaskReleasesLockKey(t *testing.T) {
	db := newTestDB(t)
	enq := newEnqueuer(t, db)
	repo := repository.Provide()
	ctx := context.Background()

	require.NoError(t, enq.Enqueue(ctx, "record", "campaign-3", map[string]interface{}{"seq": 1}))
	require.NoError(t, enq.Enqueue(ctx, "record", "campaign-3", map[string]interface{}{"seq": 2}))

	handlerErr := errors.New("boom")
	for attempt := 1; attempt <= domain.DefaultMaxAttempts; attempt++ {
		task, err := repo.ClaimNext(ctx, db)
		require.NoError(t, err)
		require.NotNil(t, task, "attempt %d", attempt)
		assert.EqualValues(t, json.Number("1"), task.Payload["seq"], "retries stay on the older task")

		_, err = repo.MarkFailed(ctx, db, task, handlerErr)
		require.NoError(t, err)
	}

	// Permanently failed is terminal; the key moves on.
	next, err := repo.ClaimNext(ctx, db)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.EqualValues(t, json.Number("2"), next.Payload["seq"])
}

func TestClaimNext_EmptyLockKeysDoNotSerialize(t *testing.T) {
	db := newTestDB(t)
	enq := newEnqueuer(t, db)
	repo := repository.Provide()
	ctx := context.Background()

	require.NoError(t, enq.Enqueue(ctx, "record", "", nil))
	require.NoError(t, enq.Enqueue(ctx, "record", "", nil))

	first, err := repo.ClaimNext(ctx, db)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := repo.ClaimNext(ctx, db)
	require.NoError(t, err)
	require.NotNil(t, second)
}

func TestRequeueStaleRunning_LeavesFreshTasksAlone(t *testing.T) {
	db := newTestDB(t)
	enq := newEnqueuer(t, db)
	repo := repository.Provide()
	ctx := context.Background()

	require.NoError(t, enq.Enqueue(ctx, "record", "campaign-5", nil))
	task, err := repo.ClaimNext(ctx, db)
	require.NoError(t, err)
	require.NotNil(t, task)

	cutoff := time.Now().UTC().Add(-30 * time.Second)

	// Just claimed by a (possibly other) live process: not stale.
	requeued, err := repo.RequeueStaleRunning(ctx, db, cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 0, requeued)

	require.NoError(t, db.Model(&domain.Task{}).
		Where("id = ?", task.ID).
		Update("updated_at", time.Now().UTC().Add(-2*time.Minute)).Error)

	requeued, err = repo.RequeueStaleRunning(ctx, db, cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 1, requeued)

	var recovered domain.Task
	require.NoError(t, db.First(&recovered, "id = ?", task.ID).Error)
	assert.Equal(t, domain.TaskStatusPending, recovered.Status)
}

func TestEnqueue_UsesConfiguredMaxAttempts(t *testing.T) {
	db := newTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := config.Config{}
	cfg.Worker.MaxTaskAttempts = 5
	enq := service.New(service.Params{
		Config: cfg,
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Repo:   repository.Provide(),
	})

	require.NoError(t, enq.Enqueue(context.Background(), "record", "campaign-1", nil))

	var task domain.Task
	require.NoError(t, db.First(&task).Error)
	assert.Equal(t, 5, task.MaxAttempts)
}

func TestMarkFailed_RetriesUntilAttemptsExhausted(t *testing.T) {
	db := newTestDB(t)
	enq := newEnqueuer(t, db)
	repo := repository.Provide()
	ctx := context.Background()

	require.NoError(t, enq.Enqueue(ctx, "history.record_changes", "campaign-9", nil))

	handlerErr := errors.New("boom")
	for attempt := 1; attempt <= domain.DefaultMaxAttempts; attempt++ {
		task, err := repo.ClaimNext(ctx, db)
		require.NoError(t, err)
		require.NotNil(t, task, "attempt %d", attempt)
		assert.Equal(t, attempt, task.Attempts)

		retry, err := repo.MarkFailed(ctx, db, task, handlerErr)
		require.NoError(t, err)
		assert.Equal(t, attempt < domain.DefaultMaxAttempts, retry)
	}

	var final domain.Task
	require.NoError(t, db.First(&final).Error)
	assert.Equal(t, domain.TaskStatusFailed, final.Status)
	assert.Equal(t, "boom", final.LastError)

	none, err := repo.ClaimNext(ctx, db)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestWorker_ExecutesInLockKeyOrder(t *testing.T) {
	db := newTestDB(t)
	enq := newEnqueuer(t, db)
	ctx := context.Background()

	require.NoError(t, enq.Enqueue(ctx, "record", "entity-1", map[string]interface{}{"seq": float64(1)}))
	require.NoError(t, enq.Enqueue(ctx, "record", "entity-1", map[string]interface{}{"seq": float64(2)}))
	require.NoError(t, enq.Enqueue(ctx, "record", "entity-1", map[string]interface{}{"seq": float64(3)}))

	var mu sync.Mutex
	var seen []float64
	w := newWorker(db)
	w.Register("record", func(ctx context.Context, task domain.Task) error {
		mu.Lock()
		defer mu.Unlock()
		seq, err := task.Payload["seq"].(json.Number).Float64()
		if err != nil {
			return err
		}
		seen = append(seen, seq)
		return nil
	})

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(runCtx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	assert.Equal(t, []float64{1, 2, 3}, seen)
}

func TestWorker_ParksUnknownTask(t *testing.T) {
	db := newTestDB(t)
	enq := newEnqueuer(t, db)
	ctx := context.Background()

	require.NoError(t, enq.Enqueue(ctx, "no.such.task", "entity-1", nil))

	w := newWorker(db)
	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(runCtx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		var count int64
		db.Model(&domain.Task{}).Where("status = ?", domain.TaskStatusFailed).Count(&count)
		return count == 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestWorker_RecoversFromHandlerPanic(t *testing.T) {
	db := newTestDB(t)
	enq := newEnqueuer(t, db)
	ctx := context.Background()

	require.NoError(t, enq.Enqueue(ctx, "panics", "entity-1", nil))
	require.NoError(t, enq.Enqueue(ctx, "works", "entity-2", nil))

	var mu sync.Mutex
	processed := false
	w := newWorker(db)
	w.Register("panics", func(ctx context.Context, task domain.Task) error {
		panic("handler exploded")
	})
	w.Register("works", func(ctx context.Context, task domain.Task) error {
		mu.Lock()
		defer mu.Unlock()
		processed = true
		return nil
	})

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(runCtx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		if !processed {
			return false
		}
		var count int64
		db.Model(&domain.Task{}).Where("name = ? AND status = ?", "panics", domain.TaskStatusFailed).Count(&count)
		return count == 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
