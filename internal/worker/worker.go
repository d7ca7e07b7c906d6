// Package worker runs the background poller that moves tasks through
// their lifecycle: accepted rows are promoted to queued, queued rows are
// scored and finished as ready or error.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sentiq/sentiq-api/internal/analyzer"
	"github.com/sentiq/sentiq-api/internal/config"
	"github.com/sentiq/sentiq-api/internal/domain"
	"github.com/sentiq/sentiq-api/internal/fileparse"
	"github.com/sentiq/sentiq-api/internal/observability"
	"github.com/sentiq/sentiq-api/internal/redact"
	"github.com/sentiq/sentiq-api/internal/store"
)

// FileLoader reads back a batch file spooled at submission time.
type FileLoader interface {
	Load(ctx context.Context, path string) ([]byte, error)

	// Remove deletes a spooled file that is no longer needed.
	Remove(ctx context.Context, path string) error
}

// CacheInvalidator drops cached latest-task views when a task changes.
// May be backed by a no-op when caching is disabled.
type CacheInvalidator interface {
	InvalidateLast(ctx context.Context, userID string, taskType domain.TaskType) error
}

// Poller is the background worker. One Poller owns one goroutine; the
// store's conditional updates keep multiple processes safe should more
// than one run against the same database.
type Poller struct {
	taskStore store.TaskStore
	analyzer  analyzer.Analyzer
	files     FileLoader
	cache     CacheInvalidator // may be nil
	metrics   *observability.Metrics
	logger    *slog.Logger

	pollInterval time.Duration
	errorBackoff time.Duration
	dwellSeconds int
	batchSize    int

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewPoller creates a Poller from its dependencies and the worker
// configuration. The cache is optional; everything else is required.
func NewPoller(
	taskStore store.TaskStore,
	an analyzer.Analyzer,
	files FileLoader,
	cache CacheInvalidator,
	metrics *observability.Metrics,
	cfg config.WorkerConfig,
	logger *slog.Logger,
) (*Poller, error) {
	if taskStore == nil {
		return nil, fmt.Errorf("taskStore cannot be nil")
	}
	if an == nil {
		return nil, fmt.Errorf("analyzer cannot be nil")
	}
	if files == nil {
		return nil, fmt.Errorf("files cannot be nil")
	}
	if cfg.PollInterval <= 0 || cfg.ErrorBackoff <= 0 || cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("invalid worker configuration: %+v", cfg)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Poller{
		taskStore:    taskStore,
		analyzer:     an,
		files:        files,
		cache:        cache,
		metrics:      metrics,
		logger:       logger.With("component", "worker"),
		pollInterval: time.Duration(cfg.PollInterval) * time.Second,
		errorBackoff: time.Duration(cfg.ErrorBackoff) * time.Second,
		dwellSeconds: cfg.DwellSeconds,
		batchSize:    cfg.BatchSize,
	}, nil
}

// Start launches the polling loop. It returns immediately; the loop runs
// until the context is cancelled or Stop is called.
func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.loop(ctx)
	}()

	p.logger.Info("worker started",
		"poll_interval", p.pollInterval,
		"dwell_seconds", p.dwellSeconds,
		"batch_size", p.batchSize)
}

// Stop cancels the loop and blocks until the in-flight pass finishes.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.logger.Info("worker stopped")
}

func (p *Poller) loop(ctx context.Context) {
	timer := time.NewTimer(p.pollInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		next := p.pollInterval
		if err := p.runPasses(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			p.logger.Error("worker pass failed", "error", err)
			next = p.errorBackoff
		}

		timer.Reset(next)
	}
}

// runPasses executes one promotion pass followed by one execution pass.
// A failing pass aborts the tick so the error backoff applies; per-task
// failures inside a pass are contained and do not bubble up here.
func (p *Poller) runPasses(ctx context.Context) error {
	if err := p.timedPass(ctx, "promotion", p.promotionPass); err != nil {
		return fmt.Errorf("promotion pass: %w", err)
	}
	if err := p.timedPass(ctx, "execution", p.executionPass); err != nil {
		return fmt.Errorf("execution pass: %w", err)
	}
	return nil
}

func (p *Poller) timedPass(ctx context.Context, name string, pass func(context.Context) error) error {
	start := time.Now()
	err := pass(ctx)
	if p.metrics != nil {
		p.metrics.WorkerPassDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		if err != nil {
			p.metrics.WorkerPassErrors.WithLabelValues(name).Inc()
		}
	}
	return err
}

// promotionPass moves accepted tasks to queued in insertion order. Losing
// the conditional update means another worker already promoted the row,
// which is not an error.
func (p *Poller) promotionPass(ctx context.Context) error {
	tasks, err := p.taskStore.ListByStatus(ctx, domain.TaskStatusAccepted, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to list accepted tasks: %w", err)
	}

	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return err
		}

		queued := domain.TaskStatusQueued
		_, err := p.taskStore.UpdateStatusIf(ctx, task.ID, domain.TaskStatusAccepted,
			store.TaskUpdate{Status: &queued})
		if err != nil {
			if errors.Is(err, store.ErrStaleStatus) || errors.Is(err, store.ErrTaskNotFound) {
				continue
			}
			p.logger.Error("failed to promote task",
				"error", err,
				"task_id", task.TaskID)
			continue
		}

		p.logger.Debug("task promoted", "task_id", task.TaskID)
	}

	return nil
}

// executionPass scores queued tasks that have dwelled long enough and
// finishes them as ready or error. Each task is isolated: one bad task
// never stalls the rest of the batch.
func (p *Poller) executionPass(ctx context.Context) error {
	tasks, err := p.taskStore.ListByStatusOlderThan(ctx, domain.TaskStatusQueued, p.dwellSeconds, p.batchSize)
	if err != nil {
		return fmt.Errorf("failed to list queued tasks: %w", err)
	}

	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.executeTask(ctx, task)
	}

	return nil
}

// executeTask scores one task and applies the terminal transition. The
// queued-status guard on the update means a concurrent worker that scored
// the same task first wins and this attempt is discarded.
func (p *Poller) executeTask(ctx context.Context, task *domain.Task) {
	log := p.logger.With("task_id", task.TaskID, "type", task.Type)

	update, procErr := p.scoreTask(ctx, task)
	if procErr != nil {
		if errors.Is(procErr, context.Canceled) {
			return
		}
		log.Warn("task execution failed", "error", procErr)
		update = failureUpdate(procErr)
	}

	end := time.Now().Unix()
	update.End = &end

	updated, err := p.taskStore.UpdateStatusIf(ctx, task.ID, domain.TaskStatusQueued, update)
	if err != nil {
		if errors.Is(err, store.ErrStaleStatus) || errors.Is(err, store.ErrTaskNotFound) {
			log.Debug("task already finished elsewhere")
			return
		}
		log.Error("failed to record task outcome", "error", err)
		return
	}

	p.finishTask(ctx, updated, log)
}

// scoreTask produces the terminal update for a task, dispatching on type.
func (p *Poller) scoreTask(ctx context.Context, task *domain.Task) (store.TaskUpdate, error) {
	ready := domain.TaskStatusReady

	switch task.Type {
	case domain.TaskTypeSingle:
		score, err := p.analyzer.ScoreText(ctx, task.Text)
		if err != nil {
			return store.TaskUpdate{}, err
		}
		return store.TaskUpdate{
			Status: &ready,
			SingleResult: &domain.SingleResult{
				Sentiment:  score.Sentiment,
				Confidence: score.Confidence,
			},
		}, nil

	case domain.TaskTypeBatch:
		result, err := p.scoreBatchFile(ctx, task)
		if err != nil {
			return store.TaskUpdate{}, err
		}
		return store.TaskUpdate{Status: &ready, BatchResult: &result}, nil

	default:
		return store.TaskUpdate{}, fmt.Errorf("%w: unknown task type %q",
			domain.ErrInvalidTaskType, task.Type)
	}
}

// errSpoolRead marks infrastructure failures reading the spooled file,
// so they surface with the system error code rather than processing.
var errSpoolRead = errors.New("spool read failed")

func (p *Poller) scoreBatchFile(ctx context.Context, task *domain.Task) (domain.BatchResult, error) {
	content, err := p.files.Load(ctx, task.FilePath)
	if err != nil {
		return domain.BatchResult{}, fmt.Errorf("%w: %v", errSpoolRead, err)
	}

	texts, err := fileparse.Parse(content, fileparse.Extension(task.FileName))
	if err != nil {
		return domain.BatchResult{}, fmt.Errorf("failed to parse batch file: %w", err)
	}

	return p.analyzer.ScoreBatch(ctx, texts)
}

// finishTask handles the bookkeeping after a terminal transition landed:
// metrics, cache invalidation, and spool cleanup for batch tasks.
func (p *Poller) finishTask(ctx context.Context, task *domain.Task, log *slog.Logger) {
	if p.metrics != nil {
		p.metrics.TasksCompleted.WithLabelValues(string(task.Type), string(task.Status)).Inc()
		if task.End > 0 && task.End >= task.Start {
			p.metrics.TaskDuration.WithLabelValues(string(task.Type)).
				Observe(float64(task.End - task.Start))
		}
	}

	if p.cache != nil {
		if err := p.cache.InvalidateLast(ctx, task.UserID, task.Type); err != nil {
			log.Warn("cache invalidation failed", "error", err)
		}
	}

	if task.Type == domain.TaskTypeBatch && task.FilePath != "" {
		if err := p.files.Remove(ctx, task.FilePath); err != nil {
			log.Warn("failed to remove spooled file", "error", err, "path", task.FilePath)
		}
	}

	log.Info("task finished", "status", task.Status)
}

// failureUpdate builds the error transition for a failed execution,
// mapping the cause to the stable code recorded on the task.
func failureUpdate(procErr error) store.TaskUpdate {
	errStatus := domain.TaskStatusError

	code := domain.ErrorCodeProcessing
	switch {
	case errors.Is(procErr, errSpoolRead):
		code = domain.ErrorCodeSystem
	case errors.Is(procErr, domain.ErrValidation),
		errors.Is(procErr, domain.ErrInvalidFormat),
		errors.Is(procErr, domain.ErrEmptyContent),
		errors.Is(procErr, analyzer.ErrEmptyText),
		errors.Is(procErr, analyzer.ErrEmptyBatch):
		code = domain.ErrorCodeInvalidInput
	}

	return store.TaskUpdate{
		Status: &errStatus,
		Error: &domain.TaskError{
			Code:        code,
			Description: redact.Error(procErr),
		},
	}
}
