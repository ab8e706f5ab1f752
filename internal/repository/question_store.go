package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"coursequiz/internal/domain"
	"coursequiz/internal/repository/models"
	"coursequiz/internal/util"

	"github.com/jmoiron/sqlx"
)

// QuestionDatabaseAdapter implements domain.QuestionStore.
type QuestionDatabaseAdapter struct {
	db *sqlx.DB
	tm domain.TransactionManager
}

func NewQuestionDatabaseAdapter(db *sqlx.DB, tm domain.TransactionManager) domain.QuestionStore {
	return &QuestionDatabaseAdapter{db: db, tm: tm}
}

// Persist appends the drafts to the quiz: every question row first, then every option
// row, all in one transaction. There is no dedup key, so persisting the same drafts
// twice stores them twice.
func (a *QuestionDatabaseAdapter) Persist(ctx context.Context, quizID string, drafts []domain.Draft) error {
	if len(drafts) == 0 {
		return nil
	}
	questions, options, err := buildRows(quizID, drafts)
	if err != nil {
		return domain.NewPersistError(err)
	}

	err = a.tm.WithTransaction(ctx, func(txCtx context.Context) error {
		ex := GetExecutor(txCtx, a.db)
		qQuery := ex.Rebind(`INSERT INTO questions (id, quiz_id, question_text, question_type, correct_answer, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
		for _, q := range questions {
			if _, err := ex.ExecContext(txCtx, qQuery, q.ID, q.QuizID, q.QuestionText, q.QuestionType, q.CorrectAnswer, q.CreatedAt); err != nil {
				return fmt.Errorf("failed to insert question: %w", err)
			}
		}
		oQuery := ex.Rebind(`INSERT INTO options (id, question_id, option_text, display_order) VALUES (?, ?, ?, ?)`)
		for _, o := range options {
			if _, err := ex.ExecContext(txCtx, oQuery, o.ID, o.QuestionID, o.OptionText, o.DisplayOrder); err != nil {
				return fmt.Errorf("failed to insert option: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.NewPersistError(err)
	}
	return nil
}

// buildRows assigns monotonic ids so the questions keep the drafts' order.
func buildRows(quizID string, drafts []domain.Draft) ([]models.Question, []models.Option, error) {
	now := time.Now()
	questions := make([]models.Question, 0, len(drafts))
	options := make([]models.Option, 0, len(drafts)*4)

	for _, d := range drafts {
		q := models.Question{
			ID:           util.NewULID(),
			QuizID:       quizID,
			QuestionText: d.QuestionText(),
			CreatedAt:    now,
		}
		switch v := d.(type) {
		case domain.TrueFalseDraft:
			q.QuestionType = string(domain.QuestionTypeTrueFalse)
			q.CorrectAnswer = strings.ToLower(fmt.Sprint(v.Answer))
			options = append(options, models.Option{
				ID: util.NewULID(), QuestionID: q.ID, OptionText: domain.PlaceholderOption, DisplayOrder: 0,
			})
		case domain.MultipleChoiceDraft:
			q.QuestionType = string(domain.QuestionTypeMultipleChoice)
			q.CorrectAnswer = v.AnswerLetter()
			for i, text := range v.Options {
				options = append(options, models.Option{
					ID: util.NewULID(), QuestionID: q.ID, OptionText: text, DisplayOrder: i,
				})
			}
		default:
			return nil, nil, fmt.Errorf("unsupported draft type %T", d)
		}
		questions = append(questions, q)
	}
	return questions, options, nil
}
