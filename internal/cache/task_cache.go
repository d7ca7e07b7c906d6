// Package cache provides a Redis-backed read-through cache for
// latest-task poll responses.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/sentiq/sentiq-api/internal/domain"
)

// DefaultTTL bounds how stale a cached terminal task view can get. Views
// are invalidated on every write anyway; the TTL is a backstop.
const DefaultTTL = 5 * time.Minute

// TaskViewCache caches the newest task per user and type. Only terminal
// tasks should be stored; callers decide that.
type TaskViewCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewTaskViewCache creates a cache over the given Redis client.
func NewTaskViewCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) (*TaskViewCache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskViewCache{
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "task_cache"),
	}, nil
}

func lastTaskKey(userID string, taskType domain.TaskType) string {
	return fmt.Sprintf("task:last:%s:%s", userID, taskType)
}

// GetLast returns the cached latest task, or (nil, nil) on a miss.
func (c *TaskViewCache) GetLast(ctx context.Context, userID string, taskType domain.TaskType) (*domain.Task, error) {
	data, err := c.client.Get(ctx, lastTaskKey(userID, taskType)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache get failed: %w", err)
	}

	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		// A corrupt entry behaves like a miss; the next store read
		// overwrites it.
		c.logger.Warn("dropping corrupt cache entry",
			"error", err,
			"user_id", userID,
			"type", taskType)
		return nil, nil
	}

	return &task, nil
}

// SetLast stores the task as the user's latest view of its type.
func (c *TaskViewCache) SetLast(ctx context.Context, task *domain.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	if err := c.client.Set(ctx, lastTaskKey(task.UserID, task.Type), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// InvalidateLast removes the cached view after any task mutation.
func (c *TaskViewCache) InvalidateLast(ctx context.Context, userID string, taskType domain.TaskType) error {
	if err := c.client.Del(ctx, lastTaskKey(userID, taskType)).Err(); err != nil {
		return fmt.Errorf("cache delete failed: %w", err)
	}
	return nil
}
