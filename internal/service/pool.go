package service

import (
	"context"
	"fmt"

	"coursequiz/internal/domain"
	"coursequiz/internal/taskqueue"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Generator dispatches question generation for a quiz.
type Generator interface {
	Generate(ctx context.Context, quizID string, totalItems int) ([]*taskqueue.TaskHandle, error)
	// Busy reports whether any process still has unfinished generation tasks for the quiz.
	Busy(ctx context.Context, quizID string) (bool, error)
}

// QuizPool keeps a standby quiz per material and supplies user quizzes from it.
type QuizPool struct {
	quizzes      domain.QuizRepository
	materials    domain.MaterialRepository
	tm           domain.TransactionManager
	generator    Generator
	standbyCount int
	logger       *zap.Logger
}

func NewQuizPool(
	quizzes domain.QuizRepository,
	materials domain.MaterialRepository,
	tm domain.TransactionManager,
	generator Generator,
	standbyCount int,
	logger *zap.Logger,
) *QuizPool {
	return &QuizPool{
		quizzes:      quizzes,
		materials:    materials,
		tm:           tm,
		generator:    generator,
		standbyCount: standbyCount,
		logger:       logger,
	}
}

// CreateStandby creates the material's standby quiz and starts filling it. When
// dispatch fails the quiz is kept and the reconciler retries later.
func (p *QuizPool) CreateStandby(ctx context.Context, m *domain.Material) (*domain.Quiz, []domain.TaskInfo, error) {
	quiz := domain.NewStandbyQuiz(m, p.standbyCount)
	if err := p.quizzes.CreateQuiz(ctx, quiz); err != nil {
		return nil, nil, err
	}
	return p.fillStandby(ctx, quiz, m)
}

// RegisterMaterial saves a new material and its standby quiz in one transaction and
// starts filling the quiz once both rows are committed.
func (p *QuizPool) RegisterMaterial(ctx context.Context, m *domain.Material) (*domain.Quiz, []domain.TaskInfo, error) {
	var quiz *domain.Quiz
	err := p.tm.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := p.materials.CreateMaterial(txCtx, m); err != nil {
			return domain.NewInternalError("failed to save material", err)
		}
		// The material id is assigned on insert.
		quiz = domain.NewStandbyQuiz(m, p.standbyCount)
		return p.quizzes.CreateQuiz(txCtx, quiz)
	})
	if err != nil {
		return nil, nil, err
	}
	return p.fillStandby(ctx, quiz, m)
}

func (p *QuizPool) fillStandby(ctx context.Context, quiz *domain.Quiz, m *domain.Material) (*domain.Quiz, []domain.TaskInfo, error) {
	handles, err := p.generator.Generate(ctx, quiz.ID, quiz.RequestedCount)
	if err != nil {
		p.logger.Error("Failed to dispatch standby generation",
			zap.String("quiz_id", quiz.ID),
			zap.String("material_id", m.ID),
			zap.Error(err))
		return quiz, nil, err
	}
	return quiz, taskqueue.Infos(handles), nil
}

// Supply fills a user quiz, borrowing from a standby quiz of the same course when
// one exists and generating directly otherwise.
func (p *QuizPool) Supply(ctx context.Context, quizID string) (*domain.SupplyResult, error) {
	quiz, err := p.quizzes.GetQuizByID(ctx, quizID)
	if err != nil {
		return nil, domain.NewInternalError("failed to load quiz", err)
	}
	if quiz == nil {
		return nil, domain.NewQuizNotFoundError(quizID)
	}
	if quiz.IsStandby {
		return nil, domain.NewInvalidInputError("standby quizzes are filled by the pool")
	}
	if quiz.RequestedCount <= 0 {
		return nil, domain.NewInvalidInputError("quiz requests no questions")
	}
	if quiz.QuestionCount >= quiz.RequestedCount {
		return &domain.SupplyResult{Outcome: domain.SupplyAlreadySupplied, QuizID: quiz.ID}, nil
	}
	busy, err := p.generator.Busy(ctx, quiz.ID)
	if err != nil {
		return nil, domain.NewInternalError("failed to read generation tasks", err)
	}
	if busy {
		return &domain.SupplyResult{Outcome: domain.SupplyAlreadySupplied, QuizID: quiz.ID}, nil
	}

	donor, err := p.quizzes.FindStandbyDonor(ctx, quiz.CourseID, quiz.ID, quiz.MaterialIDs)
	if err != nil {
		return nil, domain.NewInternalError("failed to find standby quiz", err)
	}
	if donor == nil {
		handles, err := p.generator.Generate(ctx, quiz.ID, quiz.RequestedCount)
		if err != nil {
			return nil, err
		}
		return &domain.SupplyResult{
			Outcome: domain.SupplyGeneratingDirectly,
			QuizID:  quiz.ID,
			Tasks:   taskqueue.Infos(handles),
		}, nil
	}
	return p.Borrow(ctx, quiz, donor)
}

// Borrow moves the requester's requested count of questions from the donor in one
// transaction and then tops the donor up. A donor that cannot cover the request is
// topped up instead and nothing moves.
func (p *QuizPool) Borrow(ctx context.Context, requester, donor *domain.Quiz) (*domain.SupplyResult, error) {
	r := requester.RequestedCount
	available, err := p.quizzes.CountQuestions(ctx, donor.ID)
	if err != nil {
		return nil, domain.NewInternalError("failed to count standby questions", err)
	}
	if r > available {
		return p.topUpDonor(ctx, requester, donor, r)
	}

	var moved []string
	err = p.tm.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := p.quizzes.GetQuizByID(txCtx, donor.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.NewPoolExhaustedError(donor.ID)
		}
		ids, err := p.quizzes.ListQuestionIDs(txCtx, donor.ID, r)
		if err != nil {
			return err
		}
		if len(ids) < r {
			return domain.NewPoolExhaustedError(donor.ID)
		}
		n, err := p.quizzes.ReassignQuestions(txCtx, ids, donor.ID, requester.ID)
		if err != nil {
			return err
		}
		if n != int64(r) {
			return domain.NewPoolExhaustedError(donor.ID)
		}
		ok, err := p.quizzes.UpdateRequestedCount(txCtx, donor.ID, current.RequestedCount, max(current.RequestedCount-r, 0))
		if err != nil {
			return err
		}
		if !ok {
			return domain.NewPoolExhaustedError(donor.ID)
		}
		moved = ids
		return nil
	})
	if err != nil {
		if domain.HasCode(err, domain.ErrPoolExhausted) {
			p.logger.Warn("Standby quiz drained by a concurrent borrower",
				zap.String("quiz_id", requester.ID),
				zap.String("donor_id", donor.ID))
			return p.topUpDonor(ctx, requester, donor, r)
		}
		return nil, domain.NewInternalError("failed to transfer standby questions", err)
	}

	p.logger.Info("Borrowed standby questions",
		zap.String("quiz_id", requester.ID),
		zap.String("donor_id", donor.ID),
		zap.Int("count", len(moved)))

	result := &domain.SupplyResult{
		Outcome:          domain.SupplyTransferred,
		QuizID:           requester.ID,
		DonorID:          donor.ID,
		MovedQuestionIDs: moved,
	}
	handles, err := p.generator.Generate(ctx, donor.ID, r)
	if err != nil {
		// The transfer already committed; the reconciler refills the donor later.
		p.logger.Error("Failed to dispatch standby replenishment",
			zap.String("donor_id", donor.ID),
			zap.Int("count", r),
			zap.Error(err))
		return result, nil
	}
	result.Tasks = taskqueue.Infos(handles)
	return result, nil
}

func (p *QuizPool) topUpDonor(ctx context.Context, requester, donor *domain.Quiz, r int) (*domain.SupplyResult, error) {
	handles, err := p.generator.Generate(ctx, donor.ID, r)
	if err != nil {
		return nil, err
	}
	return &domain.SupplyResult{
		Outcome: domain.SupplyStillGenerating,
		QuizID:  requester.ID,
		DonorID: donor.ID,
		Tasks:   taskqueue.Infos(handles),
	}, nil
}

// RemoveStandby deletes the standby quiz of a material together with its questions.
func (p *QuizPool) RemoveStandby(ctx context.Context, materialID string) error {
	m, err := p.materials.GetMaterialByID(ctx, materialID)
	if err != nil {
		return domain.NewInternalError("failed to load material", err)
	}
	if m == nil {
		return domain.NewNotFoundError(fmt.Sprintf("material not found with ID: %s", materialID))
	}
	quiz, err := p.quizzes.GetQuizByTitle(ctx, m.CourseID, domain.StandbyTitle(m.ID))
	if err != nil {
		return domain.NewInternalError("failed to load standby quiz", err)
	}
	if quiz == nil {
		return domain.NewNotFoundError(fmt.Sprintf("material %s has no standby quiz", materialID))
	}
	if err := p.quizzes.DeleteQuiz(ctx, quiz.ID); err != nil {
		return domain.NewInternalError("failed to delete standby quiz", err)
	}
	p.logger.Info("Removed standby quiz", zap.String("quiz_id", quiz.ID), zap.String("material_id", materialID))
	return nil
}

// Reconcile dispatches the shortfall of every idle standby quiz holding fewer
// questions than its refill target. It returns the number of quizzes it topped up.
func (p *QuizPool) Reconcile(ctx context.Context) (int, error) {
	standby, err := p.quizzes.ListStandbyQuizzes(ctx)
	if err != nil {
		return 0, domain.NewInternalError("failed to list standby quizzes", err)
	}
	short := lo.Filter(standby, func(q *domain.Quiz, _ int) bool {
		return q.QuestionCount < q.RefillTarget()
	})

	dispatched := 0
	for _, q := range short {
		busy, err := p.generator.Busy(ctx, q.ID)
		if err != nil {
			p.logger.Warn("Skipping standby quiz with unknown task state",
				zap.String("quiz_id", q.ID),
				zap.Error(err))
			continue
		}
		if busy {
			continue
		}
		shortfall := q.RefillTarget() - q.QuestionCount
		if _, err := p.generator.Generate(ctx, q.ID, shortfall); err != nil {
			p.logger.Warn("Failed to refill standby quiz",
				zap.String("quiz_id", q.ID),
				zap.Int("shortfall", shortfall),
				zap.Error(err))
			continue
		}
		dispatched++
	}
	if dispatched > 0 {
		p.logger.Info("Reconciled standby quizzes", zap.Int("refilled", dispatched), zap.Int("checked", len(standby)))
	}
	return dispatched, nil
}
