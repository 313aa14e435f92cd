package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/absenin/absenin-api/internal/models"
)

const taskHashKey = "tasks"

// TaskRepository stores demo tasks in a Redis hash keyed by task ID.
type TaskRepository struct {
	client *redis.Client
}

// NewTaskRepository constructs the repository.
func NewTaskRepository(client *redis.Client) *TaskRepository {
	return &TaskRepository{client: client}
}

// Save upserts a task.
func (r *TaskRepository) Save(ctx context.Context, task *models.Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", task.ID, err)
	}
	if err := r.client.HSet(ctx, taskHashKey, task.ID, payload).Err(); err != nil {
		return fmt.Errorf("save task %s: %w", task.ID, err)
	}
	return nil
}

// Get returns a task by id; nil when missing.
func (r *TaskRepository) Get(ctx context.Context, id string) (*models.Task, error) {
	raw, err := r.client.HGet(ctx, taskHashKey, id).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	var task models.Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, fmt.Errorf("unmarshal task %s: %w", id, err)
	}
	return &task, nil
}

// List returns all tasks ordered by creation time.
func (r *TaskRepository) List(ctx context.Context) ([]models.Task, error) {
	raw, err := r.client.HGetAll(ctx, taskHashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	tasks := make([]models.Task, 0, len(raw))
	for id, value := range raw {
		var task models.Task
		if err := json.Unmarshal([]byte(value), &task); err != nil {
			return nil, fmt.Errorf("unmarshal task %s: %w", id, err)
		}
		tasks = append(tasks, task)
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// Delete removes a task; returns false when it did not exist.
func (r *TaskRepository) Delete(ctx context.Context, id string) (bool, error) {
	removed, err := r.client.HDel(ctx, taskHashKey, id).Result()
	if err != nil {
		return false, fmt.Errorf("delete task %s: %w", id, err)
	}
	return removed > 0, nil
}
