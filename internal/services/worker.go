package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hibiken/asynq"
	"github.com/ruma-go/homeserver/internal/config"
	"github.com/ruma-go/homeserver/pkg/logger"
)

// Worker processes membership refresh tasks from Redis.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor RefreshProcessor
	wg        sync.WaitGroup
	running   bool
	mu        sync.Mutex
}

// NewWorker returns nil when Redis is disabled.
func NewWorker(cfg *config.RedisConfig, processor RefreshProcessor) *Worker {
	if !cfg.Enabled {
		return nil
	}

	server := asynq.NewServer(
		redisOpt(cfg),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error().Err(err).Str("type", task.Type()).Msg("worker: task failed")
			}),
		},
	)

	return &Worker{
		server:    server,
		mux:       asynq.NewServeMux(),
		processor: processor,
	}
}

// Start begins processing tasks
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	w.mux.HandleFunc(TaskTypeMembershipRefresh, w.handleRefreshTask)

	w.running = true
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		logger.Info().Msg("worker: starting")
		if err := w.server.Run(w.mux); err != nil {
			logger.Error().Err(err).Msg("worker: server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	logger.Info().Msg("worker: shutting down")
	w.server.Shutdown()
	w.running = false
	w.wg.Wait()
	logger.Info().Msg("worker: shutdown complete")
}

func (w *Worker) handleRefreshTask(ctx context.Context, t *asynq.Task) error {
	var task RefreshTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		return fmt.Errorf("decode refresh task: %v: %w", err, asynq.SkipRetry)
	}
	if task.UserID == "" {
		return fmt.Errorf("refresh task without user: %w", asynq.SkipRetry)
	}

	logger.Debug().Str("user_id", task.UserID).Msg("worker: processing refresh task")

	if w.processor == nil {
		logger.Warn().Msg("worker: no processor set")
		return nil
	}
	return w.processor(ctx, &task)
}
