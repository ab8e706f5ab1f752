package taskqueue

import (
	"context"
	"sync"
	"time"

	"coursequiz/internal/domain"
)

// TaskHandle tracks one enqueued task. It is safe for concurrent use.
type TaskHandle struct {
	id         string
	name       string
	quizID     string
	enqueuedAt time.Time

	mu        sync.RWMutex
	status    domain.TaskStatus
	attempts  int
	lastErr   error
	updatedAt time.Time

	done chan struct{}
}

func newHandle(id, name, quizID string) *TaskHandle {
	now := time.Now()
	return &TaskHandle{
		id:         id,
		name:       name,
		quizID:     quizID,
		enqueuedAt: now,
		status:     domain.TaskPending,
		updatedAt:  now,
		done:       make(chan struct{}),
	}
}

func (h *TaskHandle) ID() string     { return h.id }
func (h *TaskHandle) Name() string   { return h.name }
func (h *TaskHandle) QuizID() string { return h.quizID }

func (h *TaskHandle) Status() domain.TaskStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

func (h *TaskHandle) Attempts() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.attempts
}

// Err returns the error of the most recent failed attempt.
func (h *TaskHandle) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastErr
}

// Done is closed when the task succeeds or fails for good.
func (h *TaskHandle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the task finishes or ctx ends, and returns the final error.
func (h *TaskHandle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Info returns a snapshot of the handle.
func (h *TaskHandle) Info() domain.TaskInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	info := domain.TaskInfo{
		ID:         h.id,
		Name:       h.name,
		QuizID:     h.quizID,
		Status:     h.status,
		Attempts:   h.attempts,
		EnqueuedAt: h.enqueuedAt,
		UpdatedAt:  h.updatedAt,
	}
	if h.lastErr != nil {
		info.LastError = h.lastErr.Error()
	}
	return info
}

func (h *TaskHandle) set(status domain.TaskStatus, attempts int, err error) domain.TaskInfo {
	h.mu.Lock()
	h.status = status
	h.attempts = attempts
	if err != nil {
		h.lastErr = err
	} else if status == domain.TaskSucceeded {
		h.lastErr = nil
	}
	h.updatedAt = time.Now()
	h.mu.Unlock()
	if status.Finished() {
		close(h.done)
	}
	return h.Info()
}

// Infos snapshots a list of handles.
func Infos(handles []*TaskHandle) []domain.TaskInfo {
	out := make([]domain.TaskInfo, 0, len(handles))
	for _, h := range handles {
		out = append(out, h.Info())
	}
	return out
}
