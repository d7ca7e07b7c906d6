package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sentiq/sentiq-api/internal/domain"
	"github.com/sentiq/sentiq-api/internal/fileparse"
	"github.com/sentiq/sentiq-api/internal/observability"
	"github.com/sentiq/sentiq-api/internal/store"
)

// MaxTextLength is the upper bound, in characters, on single-task text.
const MaxTextLength = 512

// FileSpooler persists uploaded batch file content so the worker can read
// it back when the task executes.
type FileSpooler interface {
	// Save writes the content and returns the path recorded on the task.
	Save(ctx context.Context, name string, content []byte) (string, error)
}

// TaskViewCache is the optional read-through cache for latest-task polls.
// Implementations must treat misses as (nil, nil).
type TaskViewCache interface {
	GetLast(ctx context.Context, userID string, taskType domain.TaskType) (*domain.Task, error)
	SetLast(ctx context.Context, task *domain.Task) error
	InvalidateLast(ctx context.Context, userID string, taskType domain.TaskType) error
}

// TaskService provides task submission and result retrieval operations.
type TaskService interface {
	// CreateSingle validates the text and creates an accepted single task.
	CreateSingle(ctx context.Context, userID, text string) (*domain.Task, error)

	// CreateBatch validates the uploaded file and creates an accepted batch task.
	CreateBatch(ctx context.Context, userID string, content []byte, filename string) (*domain.Task, error)

	// GetLast returns the most recently created task of the given type
	// for the user. Returns ErrTaskNotFound when none exists.
	GetLast(ctx context.Context, userID string, taskType domain.TaskType) (*domain.Task, error)

	// UpdateStatus applies a status transition if the state machine
	// permits it, stamping the end timestamp on terminal transitions and
	// recording the error payload when transitioning to error.
	UpdateStatus(ctx context.Context, taskID string, status domain.TaskStatus, taskErr *domain.TaskError) (*domain.Task, error)
}

// taskServiceImpl implements the TaskService interface.
type taskServiceImpl struct {
	taskStore store.TaskStore
	db        *sql.DB
	spooler   FileSpooler
	cache     TaskViewCache // may be nil
	metrics   *observability.Metrics
	maxBytes  int64
	logger    *slog.Logger
}

// NewTaskService creates a new TaskService.
// It returns an error if any of the required dependencies are nil.
// The cache is optional and may be nil.
func NewTaskService(
	taskStore store.TaskStore,
	db *sql.DB,
	spooler FileSpooler,
	cache TaskViewCache,
	metrics *observability.Metrics,
	maxFileBytes int64,
	logger *slog.Logger,
) (TaskService, error) {
	if taskStore == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "taskStore cannot be nil"}
	}
	if db == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "db cannot be nil"}
	}
	if spooler == nil {
		return nil, &TaskServiceError{Operation: "create_service", Message: "spooler cannot be nil"}
	}
	if maxFileBytes <= 0 {
		return nil, &TaskServiceError{Operation: "create_service", Message: "maxFileBytes must be positive"}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &taskServiceImpl{
		taskStore: taskStore,
		db:        db,
		spooler:   spooler,
		cache:     cache,
		metrics:   metrics,
		maxBytes:  maxFileBytes,
		logger:    logger.With("component", "task_service"),
	}, nil
}

// CreateSingle validates the text synchronously and persists an accepted
// task. No result is attached here: scoring happens asynchronously in the
// worker, and the caller learns the outcome by polling GetLast.
func (s *taskServiceImpl) CreateSingle(
	ctx context.Context,
	userID, text string,
) (*domain.Task, error) {
	if err := validateSubmissionText(text); err != nil {
		s.logger.Warn("single task rejected",
			"error", err,
			"user_id", userID,
			"text_length", utf8.RuneCountInString(text))
		return nil, err
	}

	task, err := domain.NewSingleTask(userID, text)
	if err != nil {
		return nil, NewTaskServiceError("create_single", "failed to construct task", err)
	}

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return s.taskStore.WithTx(tx).Create(ctx, task)
	})
	if err != nil {
		s.logger.Error("failed to create single task",
			"error", err,
			"user_id", userID)
		return nil, NewTaskServiceError("create_single", "failed to save task", err)
	}

	s.invalidateCache(ctx, userID, domain.TaskTypeSingle)
	if s.metrics != nil {
		s.metrics.TasksCreated.WithLabelValues(string(domain.TaskTypeSingle)).Inc()
	}

	s.logger.Info("single task created",
		"task_id", task.TaskID,
		"user_id", userID)
	return task, nil
}

// CreateBatch validates the file synchronously (size, extension, content)
// and persists an accepted batch task pointing at the spooled file.
func (s *taskServiceImpl) CreateBatch(
	ctx context.Context,
	userID string,
	content []byte,
	filename string,
) (*domain.Task, error) {
	log := s.logger.With("user_id", userID, "file_name", filename)

	// Size boundary is exclusive: a file exactly at the limit is rejected.
	if int64(len(content)) >= s.maxBytes {
		log.Warn("batch task rejected: file too large",
			"file_size", len(content),
			"max_bytes", s.maxBytes)
		return nil, fmt.Errorf("%w: %d bytes (limit %d)",
			domain.ErrFileTooLarge, len(content), s.maxBytes)
	}

	ext := fileparse.Extension(filename)
	if !fileparse.SupportedExtension(ext) {
		log.Warn("batch task rejected: unsupported format", "extension", ext)
		return nil, fmt.Errorf("%w: %q (supported: csv, txt, json)",
			domain.ErrUnsupportedFormat, ext)
	}

	if err := fileparse.Validate(content, ext); err != nil {
		log.Warn("batch task rejected: content validation failed", "error", err)
		return nil, err
	}

	path, err := s.spooler.Save(ctx, filename, content)
	if err != nil {
		log.Error("failed to spool batch file", "error", err)
		return nil, NewTaskServiceError("create_batch", "failed to store file", err)
	}

	task, err := domain.NewBatchTask(userID, filename, path, int64(len(content)))
	if err != nil {
		return nil, NewTaskServiceError("create_batch", "failed to construct task", err)
	}

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return s.taskStore.WithTx(tx).Create(ctx, task)
	})
	if err != nil {
		log.Error("failed to create batch task", "error", err)
		return nil, NewTaskServiceError("create_batch", "failed to save task", err)
	}

	s.invalidateCache(ctx, userID, domain.TaskTypeBatch)
	if s.metrics != nil {
		s.metrics.TasksCreated.WithLabelValues(string(domain.TaskTypeBatch)).Inc()
	}

	log.Info("batch task created",
		"task_id", task.TaskID,
		"file_size", task.FileSize)
	return task, nil
}

// GetLast returns the newest task of the given type for the user,
// consulting the cache first when one is configured. Only terminal tasks
// are cached; in-flight statuses change too fast to be worth it.
func (s *taskServiceImpl) GetLast(
	ctx context.Context,
	userID string,
	taskType domain.TaskType,
) (*domain.Task, error) {
	if !domain.IsValidTaskType(taskType) {
		return nil, fmt.Errorf("%w: unknown task type %q", domain.ErrValidation, taskType)
	}

	if s.cache != nil {
		if cached, err := s.cache.GetLast(ctx, userID, taskType); err != nil {
			// A broken cache never blocks reads; fall through to the store.
			s.logger.Warn("task view cache read failed", "error", err, "user_id", userID)
		} else if cached != nil {
			return cached, nil
		}
	}

	task, err := s.taskStore.GetLatestForUser(ctx, userID, taskType)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			return nil, ErrTaskNotFound
		}
		s.logger.Error("failed to get latest task",
			"error", err,
			"user_id", userID,
			"type", taskType)
		return nil, NewTaskServiceError("get_last", "failed to query latest task", err)
	}

	if s.cache != nil && task.IsTerminal() {
		if err := s.cache.SetLast(ctx, task); err != nil {
			s.logger.Warn("task view cache write failed", "error", err, "user_id", userID)
		}
	}

	return task, nil
}

// UpdateStatus applies a state-machine-guarded transition. The store
// update is conditional on the current status, so concurrent callers
// cannot double-apply a transition.
func (s *taskServiceImpl) UpdateStatus(
	ctx context.Context,
	taskID string,
	status domain.TaskStatus,
	taskErr *domain.TaskError,
) (*domain.Task, error) {
	parsed, err := parseTaskID(taskID)
	if err != nil {
		return nil, err
	}

	var updated *domain.Task
	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		txStore := s.taskStore.WithTx(tx)

		task, err := txStore.GetByTaskID(ctx, parsed)
		if err != nil {
			return err
		}

		if !domain.CanTransition(task.Status, status) {
			// State-machine violations indicate a bug somewhere upstream.
			s.logger.Error("illegal status transition requested",
				"task_id", taskID,
				"current_status", task.Status,
				"requested_status", status)
			return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, task.Status, status)
		}

		update := store.TaskUpdate{Status: &status, Error: taskErr}
		if status == domain.TaskStatusReady || status == domain.TaskStatusError {
			end := nowUnix()
			update.End = &end
		}

		updated, err = txStore.UpdateStatusIf(ctx, task.ID, task.Status, update)
		return err
	})
	if err != nil {
		return nil, NewTaskServiceError("update_status", "failed to apply transition", err)
	}

	s.invalidateCache(ctx, updated.UserID, updated.Type)

	s.logger.Info("task status updated",
		"task_id", taskID,
		"status", status)
	return updated, nil
}

func (s *taskServiceImpl) invalidateCache(ctx context.Context, userID string, taskType domain.TaskType) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateLast(ctx, userID, taskType); err != nil {
		s.logger.Warn("task view cache invalidation failed",
			"error", err,
			"user_id", userID,
			"type", taskType)
	}
}

// parseTaskID converts an external task identifier into a UUID, mapping
// malformed input to a validation error rather than leaking parse details.
func parseTaskID(taskID string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(taskID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid task identifier %q", domain.ErrValidation, taskID)
	}
	return parsed, nil
}

func nowUnix() int64 {
	return time.Now().Unix()
}

// validateSubmissionText enforces the single-task input rules: non-empty,
// at most MaxTextLength characters, no null bytes, no forbidden patterns.
func validateSubmissionText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: text cannot be empty", domain.ErrValidation)
	}

	if n := utf8.RuneCountInString(text); n > MaxTextLength {
		return fmt.Errorf("%w: text exceeds maximum length of %d characters (got %d)",
			domain.ErrValidation, MaxTextLength, n)
	}

	if strings.ContainsRune(text, 0) {
		return fmt.Errorf("%w: text contains null bytes", domain.ErrValidation)
	}

	if pattern := fileparse.FindForbiddenPattern(text); pattern != "" {
		return fmt.Errorf("%w: text contains forbidden content: %q", domain.ErrValidation, pattern)
	}

	return nil
}
