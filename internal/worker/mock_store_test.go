package worker

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sentiq/sentiq-api/internal/domain"
	"github.com/sentiq/sentiq-api/internal/store"
)

// mockTaskStore is an in-memory store.TaskStore with real conditional
// update semantics, so worker claim behavior can be exercised without a
// database.
type mockTaskStore struct {
	mu     sync.Mutex
	nextID int64
	tasks  map[int64]*domain.Task

	// Optional overrides for failure injection
	ListByStatusFn   func(ctx context.Context, status domain.TaskStatus, limit int) ([]*domain.Task, error)
	UpdateStatusIfFn func(ctx context.Context, id int64, fromStatus domain.TaskStatus, update store.TaskUpdate) (*domain.Task, error)

	// Call tracking
	updateOrder []int64
}

func newMockTaskStore() *mockTaskStore {
	return &mockTaskStore{tasks: make(map[int64]*domain.Task)}
}

func (m *mockTaskStore) add(task *domain.Task) *domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	task.ID = m.nextID
	cp := *task
	m.tasks[task.ID] = &cp
	return task
}

func (m *mockTaskStore) get(id int64) *domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	if task, ok := m.tasks[id]; ok {
		cp := *task
		return &cp
	}
	return nil
}

func (m *mockTaskStore) Create(ctx context.Context, task *domain.Task) error {
	m.add(task)
	return nil
}

func (m *mockTaskStore) GetByTaskID(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, task := range m.tasks {
		if task.TaskID == taskID {
			cp := *task
			return &cp, nil
		}
	}
	return nil, store.ErrTaskNotFound
}

func (m *mockTaskStore) GetLatestForUser(
	ctx context.Context,
	userID string,
	taskType domain.TaskType,
) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *domain.Task
	for _, task := range m.tasks {
		if task.UserID != userID || task.Type != taskType {
			continue
		}
		if latest == nil || task.ID > latest.ID {
			latest = task
		}
	}
	if latest == nil {
		return nil, store.ErrTaskNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *mockTaskStore) UpdateFields(
	ctx context.Context,
	id int64,
	update store.TaskUpdate,
) (*domain.Task, error) {
	return m.applyUpdate(id, nil, update)
}

func (m *mockTaskStore) UpdateStatusIf(
	ctx context.Context,
	id int64,
	fromStatus domain.TaskStatus,
	update store.TaskUpdate,
) (*domain.Task, error) {
	if m.UpdateStatusIfFn != nil {
		return m.UpdateStatusIfFn(ctx, id, fromStatus, update)
	}
	return m.applyUpdate(id, &fromStatus, update)
}

func (m *mockTaskStore) applyUpdate(
	id int64,
	guard *domain.TaskStatus,
	update store.TaskUpdate,
) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	task, ok := m.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	if guard != nil && task.Status != *guard {
		return nil, fmt.Errorf("%w: expected %s, found %s", store.ErrStaleStatus, *guard, task.Status)
	}

	if update.Status != nil {
		task.Status = *update.Status
	}
	if update.End != nil {
		task.End = *update.End
	}
	if update.SingleResult != nil {
		task.SingleResult = update.SingleResult
	}
	if update.BatchResult != nil {
		task.BatchResult = update.BatchResult
	}
	if update.Error != nil {
		task.Error = update.Error
	}
	task.UpdatedAt = time.Now().UTC()

	m.updateOrder = append(m.updateOrder, id)

	cp := *task
	return &cp, nil
}

func (m *mockTaskStore) ListByStatus(
	ctx context.Context,
	status domain.TaskStatus,
	limit int,
) ([]*domain.Task, error) {
	if m.ListByStatusFn != nil {
		return m.ListByStatusFn(ctx, status, limit)
	}
	return m.listByStatus(status, limit)
}

func (m *mockTaskStore) ListByStatusOlderThan(
	ctx context.Context,
	status domain.TaskStatus,
	cutoffSeconds int,
	limit int,
) ([]*domain.Task, error) {
	// Dwell filtering is a store concern; the mock returns everything in
	// the status so worker behavior stays observable.
	return m.listByStatus(status, limit)
}

func (m *mockTaskStore) listByStatus(status domain.TaskStatus, limit int) ([]*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.Task
	for _, task := range m.tasks {
		if task.Status == status {
			cp := *task
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockTaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return m
}

var _ store.TaskStore = (*mockTaskStore)(nil)
