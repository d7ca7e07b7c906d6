package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sentiq/sentiq-api/internal/domain"
	"github.com/sentiq/sentiq-api/internal/platform/logger"
	"github.com/sentiq/sentiq-api/internal/store"
)

// PostgreSQL error codes
const pgUniqueViolationCode = "23505"

// taskColumns is the select list shared by every task query, kept in one
// place so scanTask stays in sync with it. The trailing newline matters:
// queries concatenate a FROM clause directly after it.
const taskColumns = `
	id, task_id, type, status, user_id, start_ts, end_ts,
	text, file_name, file_size, file_path,
	sentiment, confidence,
	total_reviews, positive, negative, neutral,
	positive_pct, negative_pct, neutral_pct,
	error_code, error_description,
	created_at, updated_at
`

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the
// TaskStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// WithTx returns a new TaskStore that runs on the given transaction.
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &PostgresTaskStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.TaskStore.Create.
// It saves a new task to the database, handling domain validation.
// Returns store.ErrDuplicate if the task_id already exists.
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.Task) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task_id", task.TaskID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO tasks (
			task_id, type, status, user_id, start_ts,
			text, file_name, file_size, file_path,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	err := s.db.QueryRowContext(
		ctx,
		query,
		task.TaskID,
		task.Type,
		task.Status,
		task.UserID,
		task.Start,
		nullString(task.Text),
		nullString(task.FileName),
		nullInt64(task.FileSize),
		nullString(task.FilePath),
		task.CreatedAt,
		task.UpdatedAt,
	).Scan(&task.ID)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			log.Warn("duplicate task_id during task creation",
				slog.String("task_id", task.TaskID.String()))
			return fmt.Errorf("%w: task_id %s", store.ErrDuplicate, task.TaskID)
		}

		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task_id", task.TaskID.String()),
			slog.String("user_id", task.UserID))
		return err
	}

	log.Info("task created",
		slog.String("task_id", task.TaskID.String()),
		slog.String("type", string(task.Type)),
		slog.String("user_id", task.UserID))
	return nil
}

// GetByTaskID implements store.TaskStore.GetByTaskID.
// Returns store.ErrTaskNotFound if the task does not exist.
func (s *PostgresTaskStore) GetByTaskID(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT` + taskColumns + `FROM tasks WHERE task_id = $1`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, taskID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found", slog.String("task_id", taskID.String()))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get task by task_id",
			slog.String("error", err.Error()),
			slog.String("task_id", taskID.String()))
		return nil, err
	}

	return task, nil
}

// GetLatestForUser implements store.TaskStore.GetLatestForUser.
// Ordering is newest created_at first with the surrogate id as tiebreak,
// so "latest" is stable even for tasks created in the same instant.
func (s *PostgresTaskStore) GetLatestForUser(
	ctx context.Context,
	userID string,
	taskType domain.TaskType,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT` + taskColumns + `
		FROM tasks
		WHERE user_id = $1 AND type = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, userID, taskType))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("no task found for user",
				slog.String("user_id", userID),
				slog.String("type", string(taskType)))
			return nil, store.ErrTaskNotFound
		}
		log.Error("failed to get latest task for user",
			slog.String("error", err.Error()),
			slog.String("user_id", userID))
		return nil, err
	}

	return task, nil
}

// UpdateFields implements store.TaskStore.UpdateFields.
// Builds a partial SET clause from the non-nil update fields; updated_at
// is always refreshed. Returns store.ErrTaskNotFound if the row vanished.
func (s *PostgresTaskStore) UpdateFields(
	ctx context.Context,
	id int64,
	update store.TaskUpdate,
) (*domain.Task, error) {
	return s.update(ctx, id, nil, update)
}

// UpdateStatusIf implements store.TaskStore.UpdateStatusIf.
// The update only applies while the row is still in fromStatus; a lost
// race returns store.ErrStaleStatus with the row untouched. This is the
// compare-and-swap that keeps concurrent workers from scoring a task twice.
func (s *PostgresTaskStore) UpdateStatusIf(
	ctx context.Context,
	id int64,
	fromStatus domain.TaskStatus,
	update store.TaskUpdate,
) (*domain.Task, error) {
	return s.update(ctx, id, &fromStatus, update)
}

func (s *PostgresTaskStore) update(
	ctx context.Context,
	id int64,
	guardStatus *domain.TaskStatus,
	update store.TaskUpdate,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	set := []string{"updated_at = $1"}
	args := []any{time.Now().UTC()}

	appendSet := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Status != nil {
		if !domain.IsValidTaskStatus(*update.Status) {
			return nil, fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrInvalidTaskStatus)
		}
		appendSet("status", *update.Status)
	}
	if update.End != nil {
		appendSet("end_ts", *update.End)
	}
	if update.SingleResult != nil {
		appendSet("sentiment", update.SingleResult.Sentiment)
		appendSet("confidence", update.SingleResult.Confidence)
	}
	if update.BatchResult != nil {
		appendSet("total_reviews", update.BatchResult.TotalReviews)
		appendSet("positive", update.BatchResult.Positive)
		appendSet("negative", update.BatchResult.Negative)
		appendSet("neutral", update.BatchResult.Neutral)
		appendSet("positive_pct", update.BatchResult.PositivePct)
		appendSet("negative_pct", update.BatchResult.NegativePct)
		appendSet("neutral_pct", update.BatchResult.NeutralPct)
	}
	if update.Error != nil {
		appendSet("error_code", update.Error.Code)
		appendSet("error_description", update.Error.Description)
	}

	args = append(args, id)
	where := fmt.Sprintf("id = $%d", len(args))
	if guardStatus != nil {
		args = append(args, *guardStatus)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	query := fmt.Sprintf(
		"UPDATE tasks SET %s WHERE %s RETURNING %s",
		strings.Join(set, ", "), where, taskColumns,
	)

	task, err := scanTask(s.db.QueryRowContext(ctx, query, args...))
	if err == nil {
		return task, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		log.Error("failed to update task",
			slog.String("error", err.Error()),
			slog.Int64("id", id))
		return nil, err
	}

	if guardStatus == nil {
		return nil, store.ErrTaskNotFound
	}

	// Guarded update matched nothing: distinguish a vanished row from a
	// row another worker already moved past fromStatus.
	var current domain.TaskStatus
	checkErr := s.db.QueryRowContext(ctx, `SELECT status FROM tasks WHERE id = $1`, id).
		Scan(&current)
	if errors.Is(checkErr, sql.ErrNoRows) {
		return nil, store.ErrTaskNotFound
	}
	if checkErr != nil {
		return nil, checkErr
	}

	log.Debug("lost status claim race",
		slog.Int64("id", id),
		slog.String("expected_status", string(*guardStatus)),
		slog.String("current_status", string(current)))
	return nil, fmt.Errorf("%w: expected %s, found %s",
		store.ErrStaleStatus, *guardStatus, current)
}

// ListByStatus implements store.TaskStore.ListByStatus.
func (s *PostgresTaskStore) ListByStatus(
	ctx context.Context,
	status domain.TaskStatus,
	limit int,
) ([]*domain.Task, error) {
	return s.listByStatus(ctx, status, 0, limit)
}

// ListByStatusOlderThan implements store.TaskStore.ListByStatusOlderThan.
func (s *PostgresTaskStore) ListByStatusOlderThan(
	ctx context.Context,
	status domain.TaskStatus,
	cutoffSeconds int,
	limit int,
) ([]*domain.Task, error) {
	return s.listByStatus(ctx, status, cutoffSeconds, limit)
}

func (s *PostgresTaskStore) listByStatus(
	ctx context.Context,
	status domain.TaskStatus,
	olderThanSeconds int,
	limit int,
) ([]*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var rows *sql.Rows
	var err error

	if olderThanSeconds > 0 {
		query := `SELECT` + taskColumns + `
			FROM tasks
			WHERE status = $1 AND updated_at <= $2
			ORDER BY created_at ASC, id ASC
			LIMIT $3`
		cutoff := time.Now().UTC().Add(-time.Duration(olderThanSeconds) * time.Second)
		rows, err = s.db.QueryContext(ctx, query, status, cutoff, limit)
	} else {
		query := `SELECT` + taskColumns + `
			FROM tasks
			WHERE status = $1
			ORDER BY created_at ASC, id ASC
			LIMIT $2`
		rows, err = s.db.QueryContext(ctx, query, status, limit)
	}

	if err != nil {
		log.Error("failed to query tasks by status",
			slog.String("error", err.Error()),
			slog.String("status", string(status)))
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Error("failed to scan task row",
				slog.String("error", err.Error()),
				slog.String("status", string(status)))
			return nil, err
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		log.Error("error iterating task rows",
			slog.String("error", err.Error()),
			slog.String("status", string(status)))
		return nil, err
	}

	return tasks, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanTask maps one row of taskColumns into a domain.Task, folding the
// nullable result and error columns back into their tagged-union form.
func scanTask(row rowScanner) (*domain.Task, error) {
	var task domain.Task
	var (
		endTS        sql.NullInt64
		text         sql.NullString
		fileName     sql.NullString
		fileSize     sql.NullInt64
		filePath     sql.NullString
		sentiment    sql.NullString
		confidence   sql.NullFloat64
		totalReviews sql.NullInt64
		positive     sql.NullInt64
		negative     sql.NullInt64
		neutral      sql.NullInt64
		positivePct  sql.NullFloat64
		negativePct  sql.NullFloat64
		neutralPct   sql.NullFloat64
		errorCode    sql.NullString
		errorDesc    sql.NullString
	)

	err := row.Scan(
		&task.ID,
		&task.TaskID,
		&task.Type,
		&task.Status,
		&task.UserID,
		&task.Start,
		&endTS,
		&text,
		&fileName,
		&fileSize,
		&filePath,
		&sentiment,
		&confidence,
		&totalReviews,
		&positive,
		&negative,
		&neutral,
		&positivePct,
		&negativePct,
		&neutralPct,
		&errorCode,
		&errorDesc,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.End = endTS.Int64
	task.Text = text.String
	task.FileName = fileName.String
	task.FileSize = fileSize.Int64
	task.FilePath = filePath.String

	if sentiment.Valid {
		task.SingleResult = &domain.SingleResult{
			Sentiment:  domain.Sentiment(sentiment.String),
			Confidence: confidence.Float64,
		}
	}

	if totalReviews.Valid {
		task.BatchResult = &domain.BatchResult{
			TotalReviews: int(totalReviews.Int64),
			Positive:     int(positive.Int64),
			Negative:     int(negative.Int64),
			Neutral:      int(neutral.Int64),
			PositivePct:  positivePct.Float64,
			NegativePct:  negativePct.Float64,
			NeutralPct:   neutralPct.Float64,
		}
	}

	if errorCode.Valid {
		task.Error = &domain.TaskError{
			Code:        domain.ErrorCode(errorCode.String),
			Description: errorDesc.String,
		}
	}

	return &task, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}
