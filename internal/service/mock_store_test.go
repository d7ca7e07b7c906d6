package service

import (
	"context"
	"database/sql"
	"sync"

	"github.com/google/uuid"

	"github.com/sentiq/sentiq-api/internal/domain"
	"github.com/sentiq/sentiq-api/internal/store"
)

// mockTaskStore implements store.TaskStore for service tests. Individual
// methods can be overridden through the Fn fields.
type mockTaskStore struct {
	GetLatestForUserFn func(ctx context.Context, userID string, taskType domain.TaskType) (*domain.Task, error)
	GetByTaskIDFn      func(ctx context.Context, taskID uuid.UUID) (*domain.Task, error)
	CreateFn           func(ctx context.Context, task *domain.Task) error
	UpdateStatusIfFn   func(ctx context.Context, id int64, fromStatus domain.TaskStatus, update store.TaskUpdate) (*domain.Task, error)

	mu                sync.Mutex
	getLatestCalls    int
	updateStatusCalls int
}

func (m *mockTaskStore) Create(ctx context.Context, task *domain.Task) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, task)
	}
	task.ID = 1
	return nil
}

func (m *mockTaskStore) GetByTaskID(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	if m.GetByTaskIDFn != nil {
		return m.GetByTaskIDFn(ctx, taskID)
	}
	return nil, store.ErrTaskNotFound
}

func (m *mockTaskStore) GetLatestForUser(
	ctx context.Context,
	userID string,
	taskType domain.TaskType,
) (*domain.Task, error) {
	m.mu.Lock()
	m.getLatestCalls++
	m.mu.Unlock()

	if m.GetLatestForUserFn != nil {
		return m.GetLatestForUserFn(ctx, userID, taskType)
	}
	return nil, store.ErrTaskNotFound
}

func (m *mockTaskStore) UpdateFields(
	ctx context.Context,
	id int64,
	update store.TaskUpdate,
) (*domain.Task, error) {
	return nil, store.ErrTaskNotFound
}

func (m *mockTaskStore) UpdateStatusIf(
	ctx context.Context,
	id int64,
	fromStatus domain.TaskStatus,
	update store.TaskUpdate,
) (*domain.Task, error) {
	m.mu.Lock()
	m.updateStatusCalls++
	m.mu.Unlock()

	if m.UpdateStatusIfFn != nil {
		return m.UpdateStatusIfFn(ctx, id, fromStatus, update)
	}
	return nil, store.ErrTaskNotFound
}

func (m *mockTaskStore) ListByStatus(
	ctx context.Context,
	status domain.TaskStatus,
	limit int,
) ([]*domain.Task, error) {
	return nil, nil
}

func (m *mockTaskStore) ListByStatusOlderThan(
	ctx context.Context,
	status domain.TaskStatus,
	cutoffSeconds int,
	limit int,
) ([]*domain.Task, error) {
	return nil, nil
}

func (m *mockTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return m
}

var _ store.TaskStore = (*mockTaskStore)(nil)

// mockSpooler records saves without touching the filesystem.
type mockSpooler struct {
	SaveFn func(ctx context.Context, name string, content []byte) (string, error)
	saved  []string
}

func (m *mockSpooler) Save(ctx context.Context, name string, content []byte) (string, error) {
	m.saved = append(m.saved, name)
	if m.SaveFn != nil {
		return m.SaveFn(ctx, name, content)
	}
	return "/spool/" + name, nil
}

// mockCache is an in-memory TaskViewCache with call tracking.
type mockCache struct {
	mu          sync.Mutex
	entries     map[string]*domain.Task
	getErr      error
	invalidated []string
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string]*domain.Task)}
}

func cacheKey(userID string, taskType domain.TaskType) string {
	return userID + ":" + string(taskType)
}

func (m *mockCache) GetLast(ctx context.Context, userID string, taskType domain.TaskType) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.entries[cacheKey(userID, taskType)], nil
}

func (m *mockCache) SetLast(ctx context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[cacheKey(task.UserID, task.Type)] = task
	return nil
}

func (m *mockCache) InvalidateLast(ctx context.Context, userID string, taskType domain.TaskType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := cacheKey(userID, taskType)
	delete(m.entries, key)
	m.invalidated = append(m.invalidated, key)
	return nil
}

var _ TaskViewCache = (*mockCache)(nil)
