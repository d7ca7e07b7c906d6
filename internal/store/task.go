package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/sentiq/sentiq-api/internal/domain"
)

// TaskUpdate is a partial update applied to a task row. Nil fields are
// left untouched; UpdatedAt is refreshed by the store on every write.
type TaskUpdate struct {
	Status       *domain.TaskStatus
	End          *int64
	SingleResult *domain.SingleResult
	BatchResult  *domain.BatchResult
	Error        *domain.TaskError
}

// TaskStore defines the interface for task data persistence.
type TaskStore interface {
	// Create inserts a new task row and fills in the store-assigned ID.
	// Returns ErrDuplicate if the task_id already exists and validation
	// errors from the domain Task if data is invalid.
	Create(ctx context.Context, task *domain.Task) error

	// GetByTaskID retrieves a task by its external identifier.
	// Returns ErrTaskNotFound if the task does not exist.
	GetByTaskID(ctx context.Context, taskID uuid.UUID) (*domain.Task, error)

	// GetLatestForUser retrieves the most recently created task of the
	// given type for the user, ties broken by insertion order.
	// Returns ErrTaskNotFound if the user has no task of that type.
	GetLatestForUser(ctx context.Context, userID string, taskType domain.TaskType) (*domain.Task, error)

	// UpdateFields applies a partial update to the task with the given
	// surrogate ID and returns the updated row.
	// Returns ErrTaskNotFound if the row vanished.
	UpdateFields(ctx context.Context, id int64, update TaskUpdate) (*domain.Task, error)

	// UpdateStatusIf applies a partial update only while the row is still
	// in fromStatus, as a single conditional statement. This is the
	// compare-and-swap used by workers to claim tasks: when the guard
	// fails, ErrStaleStatus is returned and the row is untouched.
	UpdateStatusIf(ctx context.Context, id int64, fromStatus domain.TaskStatus, update TaskUpdate) (*domain.Task, error)

	// ListByStatus retrieves up to limit tasks in the given status,
	// oldest first, so workers drain the backlog in FIFO order.
	ListByStatus(ctx context.Context, status domain.TaskStatus, limit int) ([]*domain.Task, error)

	// ListByStatusOlderThan is ListByStatus restricted to rows whose
	// updated_at is at or before the given cutoff (unix-independent,
	// compared in the store). Used by the worker's dwell check.
	ListByStatusOlderThan(ctx context.Context, status domain.TaskStatus, cutoffSeconds int, limit int) ([]*domain.Task, error)

	// WithTx returns a new TaskStore instance that uses the provided
	// transaction. The transaction should be created and managed by the
	// caller (typically a service).
	WithTx(tx *sql.Tx) TaskStore
}

// SessionStore defines the interface for user session persistence.
type SessionStore interface {
	// Upsert creates the session if it does not exist, otherwise
	// refreshes its last-activity timestamp and metadata.
	Upsert(ctx context.Context, session *domain.UserSession) error

	// GetBySessionID retrieves a session by its identifier.
	// Returns ErrSessionNotFound if the session does not exist.
	GetBySessionID(ctx context.Context, sessionID string) (*domain.UserSession, error)

	// WithTx returns a new SessionStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) SessionStore
}
