package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskType identifies the kind of analysis a task carries.
type TaskType string

// Possible task type values
const (
	TaskTypeSingle TaskType = "single"
	TaskTypeBatch  TaskType = "batch"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

// Possible task status values
const (
	TaskStatusAccepted TaskStatus = "accepted"
	TaskStatusQueued   TaskStatus = "queued"
	TaskStatusReady    TaskStatus = "ready"
	TaskStatusError    TaskStatus = "error"
)

// Sentiment is the classification outcome for a single text.
type Sentiment string

// Possible sentiment values
const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// ErrorCode is the small stable code recorded on failed tasks.
type ErrorCode string

// Task error codes
const (
	// ErrorCodeProcessing indicates the scoring step failed.
	ErrorCodeProcessing ErrorCode = "01"

	// ErrorCodeInvalidInput indicates the task payload turned out to be
	// unusable after acceptance.
	ErrorCodeInvalidInput ErrorCode = "02"

	// ErrorCodeSystem indicates an infrastructure failure.
	ErrorCodeSystem ErrorCode = "03"
)

// Common validation errors for Task
var (
	ErrEmptyTaskID            = errors.New("task ID cannot be empty")
	ErrEmptyTaskUserID        = errors.New("task user ID cannot be empty")
	ErrInvalidTaskType        = errors.New("invalid task type")
	ErrInvalidTaskStatus      = errors.New("invalid task status")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrResultTypeMismatch     = errors.New("result does not match task type")
)

// SingleResult is the output payload of a single-text task.
type SingleResult struct {
	Sentiment  Sentiment `json:"sentiment"`
	Confidence float64   `json:"confidence"`
}

// BatchResult is the aggregate output payload of a batch task.
type BatchResult struct {
	TotalReviews  int     `json:"total_reviews"`
	Positive      int     `json:"positive"`
	Negative      int     `json:"negative"`
	Neutral       int     `json:"neutral"`
	PositivePct   float64 `json:"positive_percentage"`
	NegativePct   float64 `json:"negative_percentage"`
	NeutralPct    float64 `json:"neutral_percentage"`
}

// TaskError is the structured error payload recorded on failed tasks.
type TaskError struct {
	Code        ErrorCode `json:"code"`
	Description string    `json:"description"`
}

// Task represents one submitted analysis request tracked through the
// accepted -> queued -> ready|error lifecycle. The input payload (Text for
// single tasks, the File* fields for batch tasks) is set once at creation
// and never mutated; exactly one of SingleResult/BatchResult/TaskError is
// populated once the task reaches a terminal status.
type Task struct {
	// ID is the store-assigned surrogate key. Zero until persisted.
	ID int64 `json:"-"`

	// TaskID is the externally visible identifier.
	TaskID uuid.UUID `json:"task_id"`

	Type   TaskType   `json:"type"`
	Status TaskStatus `json:"status"`
	UserID string     `json:"user_id"`

	// Start and End are task-domain timestamps in unix seconds, distinct
	// from the audit timestamps below. End is zero until terminal.
	Start int64 `json:"start"`
	End   int64 `json:"end,omitempty"`

	// Input payload.
	Text     string `json:"text,omitempty"`
	FileName string `json:"file_name,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
	FilePath string `json:"file_path,omitempty"`

	// Output payload, keyed by Type.
	SingleResult *SingleResult `json:"single_result,omitempty"`
	BatchResult  *BatchResult  `json:"batch_result,omitempty"`

	// Error payload, populated only when Status is error.
	Error *TaskError `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSingleTask creates a Task carrying one text for individual scoring.
// Status starts at accepted and Start is stamped with the current time.
func NewSingleTask(userID, text string) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		TaskID:    uuid.New(),
		Type:      TaskTypeSingle,
		Status:    TaskStatusAccepted,
		UserID:    userID,
		Start:     now.Unix(),
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// NewBatchTask creates a Task for a file containing many review texts.
func NewBatchTask(userID, fileName, filePath string, fileSize int64) (*Task, error) {
	now := time.Now().UTC()
	task := &Task{
		TaskID:    uuid.New(),
		Type:      TaskTypeBatch,
		Status:    TaskStatusAccepted,
		UserID:    userID,
		Start:     now.Unix(),
		FileName:  fileName,
		FileSize:  fileSize,
		FilePath:  filePath,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks the Task fields for internal consistency.
func (t *Task) Validate() error {
	if t.TaskID == uuid.Nil {
		return ErrEmptyTaskID
	}

	if t.UserID == "" {
		return ErrEmptyTaskUserID
	}

	if !IsValidTaskType(t.Type) {
		return ErrInvalidTaskType
	}

	if !IsValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}

	if t.SingleResult != nil && t.Type != TaskTypeSingle {
		return ErrResultTypeMismatch
	}

	if t.BatchResult != nil && t.Type != TaskTypeBatch {
		return ErrResultTypeMismatch
	}

	return nil
}

// IsTerminal reports whether the task has reached a final status.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskStatusReady || t.Status == TaskStatusError
}

// TransitionTo moves the task to the given status if the state machine
// permits it, stamping End and UpdatedAt on terminal transitions.
// Returns ErrInvalidStatusTransition otherwise, leaving the task unchanged.
func (t *Task) TransitionTo(status TaskStatus) error {
	if !CanTransition(t.Status, status) {
		return ErrInvalidStatusTransition
	}

	now := time.Now().UTC()
	t.Status = status
	t.UpdatedAt = now
	if t.IsTerminal() {
		t.End = now.Unix()
	}
	return nil
}

// CanTransition reports whether the status state machine permits moving
// from one status to another. The accepted state may fail directly to
// error for problems discovered after acceptance; ready and error are
// terminal.
func CanTransition(from, to TaskStatus) bool {
	switch from {
	case TaskStatusAccepted:
		return to == TaskStatusQueued || to == TaskStatusError
	case TaskStatusQueued:
		return to == TaskStatusReady || to == TaskStatusError
	default:
		return false
	}
}

// IsValidTaskType checks if the given type is a known TaskType.
func IsValidTaskType(t TaskType) bool {
	switch t {
	case TaskTypeSingle, TaskTypeBatch:
		return true
	default:
		return false
	}
}

// IsValidTaskStatus checks if the given status is a known TaskStatus.
func IsValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskStatusAccepted, TaskStatusQueued, TaskStatusReady, TaskStatusError:
		return true
	default:
		return false
	}
}

// IsValidSentiment checks if the given sentiment is a known value.
func IsValidSentiment(s Sentiment) bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	default:
		return false
	}
}
