package service

import (
	"context"

	"coursequiz/internal/domain"
	"coursequiz/internal/taskqueue"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// ChunkSource yields the generation chunks of a quiz.
type ChunkSource interface {
	ChunksForQuiz(ctx context.Context, quizID string) ([]string, error)
}

// TaskDispatcher is the part of the task queue the pipeline uses.
type TaskDispatcher interface {
	Enqueue(ctx context.Context, task taskqueue.Task, opts ...taskqueue.Option) *taskqueue.TaskHandle
	ActiveForQuiz(quizID string) []*taskqueue.TaskHandle
	TasksForQuiz(ctx context.Context, quizID string) ([]domain.TaskInfo, error)
	Busy(ctx context.Context, quizID string) (bool, error)
}

// GenerationCoordinator fans question generation for a quiz out over its chunks,
// one queued task per chunk.
type GenerationCoordinator struct {
	chunks  ChunkSource
	synth   domain.QuestionSynthesizer
	store   domain.QuestionStore
	quizzes domain.QuizRepository
	tasks   TaskDispatcher
	logger  *zap.Logger
}

func NewGenerationCoordinator(
	chunks ChunkSource,
	synth domain.QuestionSynthesizer,
	store domain.QuestionStore,
	quizzes domain.QuizRepository,
	tasks TaskDispatcher,
	logger *zap.Logger,
) *GenerationCoordinator {
	return &GenerationCoordinator{
		chunks:  chunks,
		synth:   synth,
		store:   store,
		quizzes: quizzes,
		tasks:   tasks,
		logger:  logger,
	}
}

// Shares splits total across n chunks: total/n each, with the remainder handed out one
// unit at a time to the first chunks.
func Shares(total, n int) []int {
	if n <= 0 {
		return nil
	}
	return lo.Times(n, func(i int) int {
		share := total / n
		if i < total%n {
			share++
		}
		return share
	})
}

// Generate extracts the quiz's material chunks and dispatches totalItems questions
// across them.
func (c *GenerationCoordinator) Generate(ctx context.Context, quizID string, totalItems int) ([]*taskqueue.TaskHandle, error) {
	chunks, err := c.chunks.ChunksForQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return c.GenerateFromChunks(ctx, quizID, chunks, totalItems)
}

// GenerateFromChunks dispatches one task per chunk with a non-zero share. Tasks run
// independently; a chunk that fails for good leaves the quiz under-populated.
func (c *GenerationCoordinator) GenerateFromChunks(ctx context.Context, quizID string, chunks []string, totalItems int) ([]*taskqueue.TaskHandle, error) {
	if len(chunks) == 0 {
		return nil, domain.NewNoContentError("no material text to generate questions from")
	}
	if totalItems <= 0 {
		return nil, nil
	}

	shares := Shares(totalItems, len(chunks))
	handles := make([]*taskqueue.TaskHandle, 0, len(chunks))
	for i, chunk := range chunks {
		if shares[i] == 0 {
			continue
		}
		req := domain.ChunkGenerationRequest{QuizID: quizID, ChunkIndex: i, Text: chunk, ItemCount: shares[i]}
		h := c.tasks.Enqueue(ctx, taskqueue.Task{
			Name:   req.TaskName(),
			QuizID: quizID,
			Run:    c.chunkTask(req),
		}, taskqueue.WithRetryIf(isRetryable))
		handles = append(handles, h)
	}

	c.logger.Info("Dispatched question generation",
		zap.String("quiz_id", quizID),
		zap.Int("total_items", totalItems),
		zap.Ints("shares", shares),
		zap.Int("tasks", len(handles)))
	return handles, nil
}

func (c *GenerationCoordinator) chunkTask(req domain.ChunkGenerationRequest) taskqueue.Func {
	return func(ctx context.Context) error {
		drafts, err := c.synth.Synthesize(ctx, req.Text, req.ItemCount)
		if err != nil {
			return err
		}
		if len(drafts) == 0 {
			return nil
		}
		return c.store.Persist(ctx, req.QuizID, drafts)
	}
}

// isRetryable limits task retries to provider failures. Anything after a successful
// persist must not run twice.
func isRetryable(err error) bool {
	return domain.HasCode(err, domain.ErrLLMServiceError)
}

// Busy reports whether generation for the quiz is still running anywhere. Tasks
// started by other processes are seen through the shared status store.
func (c *GenerationCoordinator) Busy(ctx context.Context, quizID string) (bool, error) {
	return c.tasks.Busy(ctx, quizID)
}

// State reports how far the quiz is from its requested question count.
func (c *GenerationCoordinator) State(ctx context.Context, quizID string) (*domain.GenerationStatus, error) {
	quiz, err := c.quizzes.GetQuizByID(ctx, quizID)
	if err != nil {
		return nil, domain.NewInternalError("failed to load quiz", err)
	}
	if quiz == nil {
		return nil, domain.NewQuizNotFoundError(quizID)
	}
	active := c.tasks.ActiveForQuiz(quizID)
	tasks, err := c.tasks.TasksForQuiz(ctx, quizID)
	if err != nil {
		c.logger.Warn("Falling back to in-process task list", zap.String("quiz_id", quizID), zap.Error(err))
		tasks = taskqueue.Infos(active)
	}
	return &domain.GenerationStatus{
		QuizID:         quizID,
		State:          domain.DeriveGenerationState(quiz.QuestionCount, quiz.RequestedCount, len(active) > 0),
		QuestionCount:  quiz.QuestionCount,
		RequestedCount: quiz.RequestedCount,
		Tasks:          tasks,
	}, nil
}
