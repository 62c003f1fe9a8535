package services

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
	"github.com/ruma-go/homeserver/internal/config"
	"github.com/ruma-go/homeserver/pkg/logger"
)

const (
	TaskTypeMembershipRefresh = "membership:refresh"
)

// RefreshTask asks for a user's joins to be re-announced with the current
// profile.
type RefreshTask struct {
	UserID string `json:"user_id"`
}

// RefreshProcessor handles one refresh task.
type RefreshProcessor func(context.Context, *RefreshTask) error

// TaskQueue defines the interface for membership refresh processing
type TaskQueue interface {
	// Enqueue adds a task to the queue
	Enqueue(ctx context.Context, task *RefreshTask) error
	// IsAsync returns true if queue processes tasks out of process
	IsAsync() bool
	// Close gracefully shuts down the queue
	Close() error
}

// NewTaskQueue returns a Redis-backed queue when Redis is enabled and
// reachable, and an in-process queue running processor otherwise.
func NewTaskQueue(cfg *config.RedisConfig, processor RefreshProcessor) TaskQueue {
	if cfg.Enabled {
		queue, err := NewAsyncQueue(cfg)
		if err == nil {
			logger.Info().Str("addr", cfg.Addr).Msg("task queue: async queue initialized")
			return queue
		}
		logger.Warn().Err(err).Msg("task queue: Redis unavailable, falling back to in-process mode")
	} else {
		logger.Info().Msg("task queue: in-process queue initialized (Redis disabled)")
	}

	queue := NewSyncQueue()
	queue.SetProcessor(processor)
	return queue
}

func redisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

// NewAsyncQueue creates a Redis-based queue and checks the connection.
func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	opt := redisOpt(cfg)

	inspector := asynq.NewInspector(opt)
	defer inspector.Close()
	if _, err := inspector.Queues(); err != nil {
		return nil, err
	}

	return &AsyncQueue{client: asynq.NewClient(opt)}, nil
}

// NewRefreshTask encodes task for asynq.
func NewRefreshTask(task *RefreshTask) (*asynq.Task, error) {
	payload, err := json.Marshal(task)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeMembershipRefresh, payload), nil
}

func (q *AsyncQueue) Enqueue(ctx context.Context, task *RefreshTask) error {
	t, err := NewRefreshTask(task)
	if err != nil {
		return err
	}

	info, err := q.client.EnqueueContext(ctx, t,
		asynq.Queue("default"),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return err
	}

	logger.Debug().Str("task_id", info.ID).Str("user_id", task.UserID).Msg("task queue: refresh enqueued")
	return nil
}

func (q *AsyncQueue) IsAsync() bool {
	return true
}

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue implements TaskQueue in process, without Redis.
type SyncQueue struct {
	processor RefreshProcessor
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

// SetProcessor sets the function that handles tasks
func (q *SyncQueue) SetProcessor(processor RefreshProcessor) {
	q.processor = processor
}

// Enqueue processes the task on its own goroutine so the request that
// enqueued it is not held up.
func (q *SyncQueue) Enqueue(_ context.Context, task *RefreshTask) error {
	if q.processor == nil {
		logger.Warn().Str("user_id", task.UserID).Msg("task queue: no processor set, task dropped")
		return nil
	}

	go func() {
		if err := q.processor(context.Background(), task); err != nil {
			logger.Error().Err(err).Str("user_id", task.UserID).Msg("task queue: refresh failed")
		}
	}()

	return nil
}

func (q *SyncQueue) IsAsync() bool {
	return false
}

func (q *SyncQueue) Close() error {
	return nil
}
