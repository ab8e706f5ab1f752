// Package taskqueue runs fire-and-forget tasks on a bounded in-process worker pool
// with retries, and mirrors each task's status into a StatusStore.
package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"coursequiz/internal/config"
	"coursequiz/internal/domain"
	"coursequiz/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ErrQueueClosed is recorded on tasks enqueued after Shutdown.
var ErrQueueClosed = errors.New("task queue is shut down")

// Func is the body of a task. ctx is cancelled when the queue shuts down.
type Func func(ctx context.Context) error

// Task is a unit of work for the queue.
type Task struct {
	Name   string
	QuizID string
	Run    Func
}

type taskOptions struct {
	maxAttempts int
	retryIf     func(error) bool
}

// Option customizes how a single task is retried.
type Option func(*taskOptions)

// WithMaxAttempts caps the total number of attempts, first run included.
func WithMaxAttempts(n int) Option {
	return func(o *taskOptions) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithRetryIf limits retries to errors for which fn returns true.
func WithRetryIf(fn func(error) bool) Option {
	return func(o *taskOptions) {
		if fn != nil {
			o.retryIf = fn
		}
	}
}

// Queue is a bounded worker pool. Enqueue never blocks the caller.
type Queue struct {
	cfg    config.QueueConfig
	sem    *semaphore.Weighted
	store  StatusStore
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
	active map[string]*TaskHandle

	// sleep waits out a retry delay; tests replace it.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a queue. store may be nil when statuses need not outlive the process.
func New(cfg config.QueueConfig, store StatusStore, logger *zap.Logger) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		cfg:    cfg,
		sem:    semaphore.NewWeighted(int64(cfg.Workers)),
		store:  store,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		active: make(map[string]*TaskHandle),
		sleep:  sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue schedules task and returns its handle immediately. ctx only scopes the
// initial status write; the task itself runs under the queue's lifetime.
func (q *Queue) Enqueue(ctx context.Context, task Task, opts ...Option) *TaskHandle {
	o := taskOptions{
		maxAttempts: q.cfg.MaxAttempts,
		retryIf:     func(err error) bool { return !errors.Is(err, context.Canceled) },
	}
	for _, opt := range opts {
		opt(&o)
	}

	h := newHandle(util.NewULID(), task.Name, task.QuizID)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.persist(ctx, h.set(domain.TaskFailed, 0, ErrQueueClosed))
		return h
	}
	q.active[h.id] = h
	q.wg.Add(1)
	q.mu.Unlock()

	q.persist(ctx, h.Info())
	q.logger.Debug("Task enqueued", zap.String("task_id", h.id), zap.String("task", h.name), zap.String("quiz_id", h.quizID))

	go q.run(h, task, o)
	return h
}

func (q *Queue) run(h *TaskHandle, task Task, o taskOptions) {
	defer q.wg.Done()
	defer q.forget(h)

	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		if err := q.sem.Acquire(q.ctx, 1); err != nil {
			q.finish(h, domain.TaskFailed, attempt-1, fmt.Errorf("%w: %v", ErrQueueClosed, err))
			return
		}
		q.persist(q.ctx, h.set(domain.TaskRunning, attempt, nil))
		err := q.invoke(task)
		q.sem.Release(1)

		if err == nil {
			q.finish(h, domain.TaskSucceeded, attempt, nil)
			return
		}
		if attempt == o.maxAttempts || !o.retryIf(err) {
			q.finish(h, domain.TaskFailed, attempt, err)
			return
		}

		delay := util.Backoff(attempt-1, q.cfg.BaseDelay, q.cfg.MaxJitter)
		q.logger.Warn("Task attempt failed, retrying",
			zap.String("task_id", h.id),
			zap.String("task", h.name),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		q.persist(q.ctx, h.set(domain.TaskPending, attempt, err))
		if serr := q.sleep(q.ctx, delay); serr != nil {
			q.finish(h, domain.TaskFailed, attempt, err)
			return
		}
	}
}

// invoke runs the task body, turning a panic into an error.
func (q *Queue) invoke(task Task) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task %s panicked: %v", task.Name, p)
		}
	}()
	return task.Run(q.ctx)
}

func (q *Queue) finish(h *TaskHandle, status domain.TaskStatus, attempts int, err error) {
	info := h.set(status, attempts, err)
	// Final statuses are written even while shutting down.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.persist(ctx, info)

	fields := []zap.Field{
		zap.String("task_id", h.id),
		zap.String("task", h.name),
		zap.String("quiz_id", h.quizID),
		zap.Int("attempts", attempts),
	}
	if status == domain.TaskFailed {
		q.logger.Error("Task failed", append(fields, zap.Error(err))...)
		return
	}
	q.logger.Info("Task succeeded", fields...)
}

func (q *Queue) forget(h *TaskHandle) {
	q.mu.Lock()
	delete(q.active, h.id)
	q.mu.Unlock()
}

func (q *Queue) persist(ctx context.Context, info domain.TaskInfo) {
	if q.store == nil {
		return
	}
	if err := q.store.Save(ctx, info); err != nil {
		q.logger.Warn("Failed to save task status", zap.String("task_id", info.ID), zap.Error(err))
	}
}

// ActiveForQuiz returns the unfinished tasks of a quiz, oldest first.
func (q *Queue) ActiveForQuiz(quizID string) []*TaskHandle {
	q.mu.RLock()
	defer q.mu.RUnlock()
	var out []*TaskHandle
	for _, h := range q.active {
		if h.quizID == quizID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Lookup returns the status of a task, from this process if it is still running
// here and otherwise from the status store. nil, nil means unknown.
func (q *Queue) Lookup(ctx context.Context, taskID string) (*domain.TaskInfo, error) {
	q.mu.RLock()
	h, ok := q.active[taskID]
	q.mu.RUnlock()
	if ok {
		info := h.Info()
		return &info, nil
	}
	if q.store == nil {
		return nil, nil
	}
	return q.store.Load(ctx, taskID)
}

// TasksForQuiz returns every task of a quiz known to this process or recorded in
// the status store, oldest first. Live handles take precedence over stored copies.
func (q *Queue) TasksForQuiz(ctx context.Context, quizID string) ([]domain.TaskInfo, error) {
	byID := make(map[string]domain.TaskInfo)
	for _, h := range q.ActiveForQuiz(quizID) {
		byID[h.id] = h.Info()
	}
	if q.store != nil {
		statuses, err := q.store.ListByQuiz(ctx, quizID)
		if err != nil {
			return nil, err
		}
		for id := range statuses {
			if _, ok := byID[id]; ok {
				continue
			}
			info, err := q.store.Load(ctx, id)
			if err != nil {
				return nil, err
			}
			// The task hash may expire before the quiz index does.
			if info != nil {
				byID[id] = *info
			}
		}
	}
	out := make([]domain.TaskInfo, 0, len(byID))
	for _, info := range byID {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Shutdown stops accepting tasks and waits for running ones. When ctx ends first,
// remaining tasks are cancelled and ctx's error is returned.
// Busy reports whether this or any other process still has a pending or running task
// for the quiz. Index entries whose task record has expired do not count.
func (q *Queue) Busy(ctx context.Context, quizID string) (bool, error) {
	if len(q.ActiveForQuiz(quizID)) > 0 {
		return true, nil
	}
	if q.store == nil {
		return false, nil
	}
	statuses, err := q.store.ListByQuiz(ctx, quizID)
	if err != nil {
		return false, err
	}
	for id, indexed := range statuses {
		if indexed.Finished() {
			continue
		}
		status, ok, err := q.store.Status(ctx, id)
		if err != nil {
			return false, err
		}
		if ok && !status.Finished() {
			return true, nil
		}
	}
	return false, nil
}

func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}
