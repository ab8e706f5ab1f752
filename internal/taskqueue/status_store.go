package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"coursequiz/internal/cache"
	"coursequiz/internal/domain"
)

// StatusStore keeps task statuses where other processes can read them.
type StatusStore interface {
	Save(ctx context.Context, info domain.TaskInfo) error
	// Load returns nil, nil for an unknown task.
	Load(ctx context.Context, taskID string) (*domain.TaskInfo, error)
	// Status reads only the current status. ok is false for an unknown task.
	Status(ctx context.Context, taskID string) (status domain.TaskStatus, ok bool, err error)
	// ListByQuiz returns task id -> status for a quiz.
	ListByQuiz(ctx context.Context, quizID string) (map[string]domain.TaskStatus, error)
}

// CacheStatusStore stores each task as a hash and indexes task ids per quiz.
type CacheStatusStore struct {
	cache domain.Cache
	ttl   time.Duration
}

func NewCacheStatusStore(c domain.Cache, ttl time.Duration) *CacheStatusStore {
	return &CacheStatusStore{cache: c, ttl: ttl}
}

func (s *CacheStatusStore) Save(ctx context.Context, info domain.TaskInfo) error {
	key := cache.TaskKey(info.ID)
	fields := map[string]string{
		"id":          info.ID,
		"name":        info.Name,
		"quiz_id":     info.QuizID,
		"status":      string(info.Status),
		"attempts":    strconv.Itoa(info.Attempts),
		"last_error":  info.LastError,
		"enqueued_at": info.EnqueuedAt.UTC().Format(time.RFC3339Nano),
		"updated_at":  info.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if err := s.cache.HSetFields(ctx, key, fields); err != nil {
		return fmt.Errorf("failed to save task %s: %w", info.ID, err)
	}
	if err := s.cache.Expire(ctx, key, s.ttl); err != nil {
		return fmt.Errorf("failed to set expiry of task %s: %w", info.ID, err)
	}
	if info.QuizID == "" {
		return nil
	}
	quizKey := cache.QuizTasksKey(info.QuizID)
	if err := s.cache.HSet(ctx, quizKey, info.ID, string(info.Status)); err != nil {
		return fmt.Errorf("failed to index task %s: %w", info.ID, err)
	}
	return s.cache.Expire(ctx, quizKey, s.ttl)
}

func (s *CacheStatusStore) Load(ctx context.Context, taskID string) (*domain.TaskInfo, error) {
	fields, err := s.cache.HGetAll(ctx, cache.TaskKey(taskID))
	if err != nil {
		if errors.Is(err, domain.ErrCacheMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load task %s: %w", taskID, err)
	}
	attempts, _ := strconv.Atoi(fields["attempts"])
	enqueuedAt, _ := time.Parse(time.RFC3339Nano, fields["enqueued_at"])
	updatedAt, _ := time.Parse(time.RFC3339Nano, fields["updated_at"])
	return &domain.TaskInfo{
		ID:         fields["id"],
		Name:       fields["name"],
		QuizID:     fields["quiz_id"],
		Status:     domain.TaskStatus(fields["status"]),
		Attempts:   attempts,
		LastError:  fields["last_error"],
		EnqueuedAt: enqueuedAt,
		UpdatedAt:  updatedAt,
	}, nil
}

func (s *CacheStatusStore) Status(ctx context.Context, taskID string) (domain.TaskStatus, bool, error) {
	status, err := s.cache.HGet(ctx, cache.TaskKey(taskID), "status")
	if err != nil {
		if errors.Is(err, domain.ErrCacheMiss) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read status of task %s: %w", taskID, err)
	}
	return domain.TaskStatus(status), true, nil
}

func (s *CacheStatusStore) ListByQuiz(ctx context.Context, quizID string) (map[string]domain.TaskStatus, error) {
	fields, err := s.cache.HGetAll(ctx, cache.QuizTasksKey(quizID))
	if err != nil {
		if errors.Is(err, domain.ErrCacheMiss) {
			return map[string]domain.TaskStatus{}, nil
		}
		return nil, fmt.Errorf("failed to list tasks of quiz %s: %w", quizID, err)
	}
	out := make(map[string]domain.TaskStatus, len(fields))
	for id, status := range fields {
		out[id] = domain.TaskStatus(status)
	}
	return out, nil
}
