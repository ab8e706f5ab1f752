package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"coursequiz/internal/cache"
	"coursequiz/internal/domain"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// QuizSummary is the cached list view of a quiz. It omits question counts, which
// change while generation runs.
type QuizSummary struct {
	ID               string     `json:"id"`
	CourseID         string     `json:"course_id"`
	Title            string     `json:"title"`
	RequestedCount   int        `json:"requested_count"`
	TimeLimitSeconds int        `json:"time_limit_seconds"`
	BestScore        int        `json:"best_score"`
	LastTakenAt      *time.Time `json:"last_taken_at,omitempty"`
	MaterialIDs      []string   `json:"material_ids"`
	CreatedAt        time.Time  `json:"created_at"`
}

// CreateQuizInput carries the fields of a new user quiz.
type CreateQuizInput struct {
	CourseID         string
	Title            string
	RequestedCount   int
	TimeLimitSeconds int
	MaterialIDs      []string
}

// TaskLookup resolves a task id to its latest status.
type TaskLookup interface {
	Lookup(ctx context.Context, taskID string) (*domain.TaskInfo, error)
}

// QuizService is the application surface used by the HTTP handlers.
type QuizService interface {
	RegisterMaterial(ctx context.Context, m *domain.Material) (*domain.Quiz, []domain.TaskInfo, error)
	RemoveStandby(ctx context.Context, materialID string) error
	CreateQuiz(ctx context.Context, in CreateQuizInput) (*domain.Quiz, error)
	GetQuiz(ctx context.Context, quizID string) (*domain.Quiz, error)
	ListCourseQuizzes(ctx context.Context, courseID string) ([]QuizSummary, error)
	SupplyQuestions(ctx context.Context, quizID string) (*domain.SupplyResult, error)
	GenerationStatus(ctx context.Context, quizID string) (*domain.GenerationStatus, error)
	CheckAnswers(ctx context.Context, quizID string, answers map[string]string) (*domain.CheckResult, error)
	TaskStatus(ctx context.Context, taskID string) (*domain.TaskInfo, error)
}

type quizService struct {
	quizzes     domain.QuizRepository
	materials   domain.MaterialRepository
	pool        *QuizPool
	coordinator *GenerationCoordinator
	tasks       TaskLookup
	cache       domain.Cache
	listTTL     time.Duration
	logger      *zap.Logger
}

// NewQuizService wires the quiz application service. cache may be nil.
func NewQuizService(
	quizzes domain.QuizRepository,
	materials domain.MaterialRepository,
	pool *QuizPool,
	coordinator *GenerationCoordinator,
	tasks TaskLookup,
	cache domain.Cache,
	listTTL time.Duration,
	logger *zap.Logger,
) QuizService {
	return &quizService{
		quizzes:     quizzes,
		materials:   materials,
		pool:        pool,
		coordinator: coordinator,
		tasks:       tasks,
		cache:       cache,
		listTTL:     listTTL,
		logger:      logger,
	}
}

// RegisterMaterial records a stored material and creates its standby quiz.
func (s *quizService) RegisterMaterial(ctx context.Context, m *domain.Material) (*domain.Quiz, []domain.TaskInfo, error) {
	quiz, tasks, err := s.pool.RegisterMaterial(ctx, m)
	if err != nil && quiz == nil {
		return nil, nil, err
	}
	if err != nil {
		s.logger.Warn("Standby quiz created without generation", zap.String("quiz_id", quiz.ID), zap.Error(err))
	}
	return quiz, tasks, nil
}

func (s *quizService) RemoveStandby(ctx context.Context, materialID string) error {
	return s.pool.RemoveStandby(ctx, materialID)
}

// CreateQuiz creates an empty user quiz over materials of its course.
func (s *quizService) CreateQuiz(ctx context.Context, in CreateQuizInput) (*domain.Quiz, error) {
	if strings.HasPrefix(in.Title, domain.StandbyTitlePrefix) {
		return nil, domain.NewInvalidInputError("title prefix is reserved")
	}
	materialIDs := lo.Uniq(in.MaterialIDs)
	for _, id := range materialIDs {
		m, err := s.materials.GetMaterialByID(ctx, id)
		if err != nil {
			return nil, domain.NewInternalError("failed to load material", err)
		}
		if m == nil || m.CourseID != in.CourseID {
			return nil, domain.NewInvalidInputError(fmt.Sprintf("material %s does not belong to course %s", id, in.CourseID))
		}
	}

	quiz := domain.NewQuiz(in.CourseID, strings.TrimSpace(in.Title), in.RequestedCount, materialIDs)
	quiz.TimeLimitSeconds = in.TimeLimitSeconds
	if err := quiz.Validate(); err != nil {
		return nil, err
	}
	if err := s.quizzes.CreateQuiz(ctx, quiz); err != nil {
		if domain.HasCode(err, domain.ErrConflict) {
			return nil, err
		}
		return nil, domain.NewInternalError("failed to create quiz", err)
	}
	s.invalidateCourse(ctx, in.CourseID)
	return quiz, nil
}

// GetQuiz returns the quiz with its questions.
func (s *quizService) GetQuiz(ctx context.Context, quizID string) (*domain.Quiz, error) {
	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	questions, err := s.quizzes.GetQuestions(ctx, quizID)
	if err != nil {
		return nil, domain.NewInternalError("failed to load questions", err)
	}
	quiz.Questions = questions
	return quiz, nil
}

// ListCourseQuizzes returns the course's user quizzes, served from cache when possible.
func (s *quizService) ListCourseQuizzes(ctx context.Context, courseID string) ([]QuizSummary, error) {
	key := cache.CourseQuizzesKey(courseID)
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, key)
		if err == nil {
			var cached []QuizSummary
			if jsonErr := json.Unmarshal([]byte(raw), &cached); jsonErr == nil {
				return cached, nil
			}
			s.logger.Warn("Discarding corrupt quiz list cache entry", zap.String("key", key))
		} else if !errors.Is(err, domain.ErrCacheMiss) {
			s.logger.Warn("Failed to read quiz list cache", zap.String("key", key), zap.Error(err))
		}
	}

	quizzes, err := s.quizzes.ListQuizzesByCourse(ctx, courseID, false)
	if err != nil {
		return nil, domain.NewInternalError("failed to list quizzes", err)
	}
	summaries := lo.Map(quizzes, func(q *domain.Quiz, _ int) QuizSummary {
		return QuizSummary{
			ID:               q.ID,
			CourseID:         q.CourseID,
			Title:            q.Title,
			RequestedCount:   q.RequestedCount,
			TimeLimitSeconds: q.TimeLimitSeconds,
			BestScore:        q.BestScore,
			LastTakenAt:      q.LastTakenAt,
			MaterialIDs:      q.MaterialIDs,
			CreatedAt:        q.CreatedAt,
		}
	})

	if s.cache != nil {
		if raw, err := json.Marshal(summaries); err == nil {
			if err := s.cache.Set(ctx, key, string(raw), s.listTTL); err != nil {
				s.logger.Warn("Failed to cache quiz list", zap.String("key", key), zap.Error(err))
			}
		}
	}
	return summaries, nil
}

func (s *quizService) SupplyQuestions(ctx context.Context, quizID string) (*domain.SupplyResult, error) {
	return s.pool.Supply(ctx, quizID)
}

func (s *quizService) GenerationStatus(ctx context.Context, quizID string) (*domain.GenerationStatus, error) {
	return s.coordinator.State(ctx, quizID)
}

// CheckAnswers grades an attempt and keeps the best score.
func (s *quizService) CheckAnswers(ctx context.Context, quizID string, answers map[string]string) (*domain.CheckResult, error) {
	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	questions, err := s.quizzes.GetQuestions(ctx, quizID)
	if err != nil {
		return nil, domain.NewInternalError("failed to load questions", err)
	}
	if len(questions) == 0 {
		return nil, domain.NewInvalidInputError("quiz has no questions yet")
	}

	result := &domain.CheckResult{QuizID: quizID, Total: len(questions)}
	for _, q := range questions {
		given := strings.TrimSpace(answers[q.ID])
		correct := given != "" && strings.EqualFold(given, q.CorrectAnswer)
		if correct {
			result.Score++
		}
		result.Results = append(result.Results, domain.AnswerResult{
			QuestionID:    q.ID,
			Given:         given,
			CorrectAnswer: q.CorrectAnswer,
			Correct:       correct,
		})
	}

	if err := s.quizzes.RecordAttempt(ctx, quizID, result.Score, time.Now()); err != nil {
		if domain.HasCode(err, domain.ErrQuizNotFound) {
			return nil, err
		}
		return nil, domain.NewInternalError("failed to record attempt", err)
	}
	result.BestScore = max(quiz.BestScore, result.Score)
	s.invalidateCourse(ctx, quiz.CourseID)
	return result, nil
}

func (s *quizService) TaskStatus(ctx context.Context, taskID string) (*domain.TaskInfo, error) {
	info, err := s.tasks.Lookup(ctx, taskID)
	if err != nil {
		return nil, domain.NewInternalError("failed to load task status", err)
	}
	if info == nil {
		return nil, domain.NewNotFoundError(fmt.Sprintf("task not found with ID: %s", taskID))
	}
	return info, nil
}

func (s *quizService) loadQuiz(ctx context.Context, quizID string) (*domain.Quiz, error) {
	quiz, err := s.quizzes.GetQuizByID(ctx, quizID)
	if err != nil {
		return nil, domain.NewInternalError("failed to load quiz", err)
	}
	if quiz == nil {
		return nil, domain.NewQuizNotFoundError(quizID)
	}
	return quiz, nil
}

func (s *quizService) invalidateCourse(ctx context.Context, courseID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.CourseQuizzesKey(courseID)); err != nil {
		s.logger.Warn("Failed to invalidate quiz list cache", zap.String("course_id", courseID), zap.Error(err))
	}
}
