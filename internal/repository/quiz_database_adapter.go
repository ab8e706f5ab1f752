package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"coursequiz/internal/domain"
	"coursequiz/internal/repository/models"
	"coursequiz/internal/util"

	"github.com/jmoiron/sqlx"
)

const quizColumns = `id "id",
		course_id "course_id",
		title "title",
		requested_count "requested_count",
		pool_target "pool_target",
		is_standby "is_standby",
		time_limit_seconds "time_limit_seconds",
		best_score "best_score",
		last_taken_at "last_taken_at",
		created_at "created_at",
		updated_at "updated_at"`

// QuizDatabaseAdapter implements domain.QuizRepository using sqlx.DB.
// Queries use ? placeholders and are rebound for the active driver.
type QuizDatabaseAdapter struct {
	db *sqlx.DB
	tm domain.TransactionManager
}

func NewQuizDatabaseAdapter(db *sqlx.DB) domain.QuizRepository {
	return &QuizDatabaseAdapter{db: db, tm: NewTransactionManagerAdapter(db)}
}

func (a *QuizDatabaseAdapter) exec(ctx context.Context) DBTX {
	return GetExecutor(ctx, a.db)
}

// CreateQuiz inserts the quiz and its material links in one transaction.
func (a *QuizDatabaseAdapter) CreateQuiz(ctx context.Context, quiz *domain.Quiz) error {
	if quiz == nil {
		return fmt.Errorf("cannot save nil quiz")
	}
	if quiz.ID == "" {
		quiz.ID = util.NewULID()
	}
	now := time.Now()
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = now
	}
	quiz.UpdatedAt = now
	m := toModelQuiz(quiz)

	err := a.tm.WithTransaction(ctx, func(txCtx context.Context) error {
		ex := a.exec(txCtx)
		query := ex.Rebind(`INSERT INTO quizzes (
			id, course_id, title, requested_count, pool_target, is_standby,
			time_limit_seconds, best_score, last_taken_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if _, err := ex.ExecContext(txCtx, query,
			m.ID, m.CourseID, m.Title, m.RequestedCount, m.PoolTarget, m.IsStandby,
			m.TimeLimitSeconds, m.BestScore, m.LastTakenAt, m.CreatedAt, m.UpdatedAt,
		); err != nil {
			return err
		}
		linkQuery := ex.Rebind(`INSERT INTO quiz_materials (quiz_id, material_id) VALUES (?, ?)`)
		for _, materialID := range quiz.MaterialIDs {
			if _, err := ex.ExecContext(txCtx, linkQuery, m.ID, materialID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domain.NewConflictError(fmt.Sprintf("quiz %q already exists in course %s", quiz.Title, quiz.CourseID), err)
		}
		return fmt.Errorf("failed to save quiz: %w", err)
	}
	return nil
}

// GetQuizByID returns nil, nil when the quiz does not exist.
func (a *QuizDatabaseAdapter) GetQuizByID(ctx context.Context, id string) (*domain.Quiz, error) {
	ex := a.exec(ctx)
	var m models.Quiz
	query := ex.Rebind(`SELECT ` + quizColumns + ` FROM quizzes WHERE id = ?`)
	if err := ex.GetContext(ctx, &m, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get quiz by ID %s: %w", id, err)
	}
	return a.hydrate(ctx, &m)
}

func (a *QuizDatabaseAdapter) GetQuizByTitle(ctx context.Context, courseID, title string) (*domain.Quiz, error) {
	ex := a.exec(ctx)
	var m models.Quiz
	query := ex.Rebind(`SELECT ` + quizColumns + ` FROM quizzes WHERE course_id = ? AND title = ?`)
	if err := ex.GetContext(ctx, &m, query, courseID, title); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get quiz %q: %w", title, err)
	}
	return a.hydrate(ctx, &m)
}

func (a *QuizDatabaseAdapter) hydrate(ctx context.Context, m *models.Quiz) (*domain.Quiz, error) {
	ex := a.exec(ctx)
	var materialIDs []string
	query := ex.Rebind(`SELECT material_id "material_id" FROM quiz_materials WHERE quiz_id = ? ORDER BY material_id`)
	if err := ex.SelectContext(ctx, &materialIDs, query, m.ID); err != nil {
		return nil, fmt.Errorf("failed to get materials of quiz %s: %w", m.ID, err)
	}
	count, err := a.CountQuestions(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	return toDomainQuiz(m, materialIDs, count), nil
}

// DeleteQuiz removes the quiz; questions, options and material links cascade.
func (a *QuizDatabaseAdapter) DeleteQuiz(ctx context.Context, id string) error {
	ex := a.exec(ctx)
	if _, err := ex.ExecContext(ctx, ex.Rebind(`DELETE FROM quizzes WHERE id = ?`), id); err != nil {
		return fmt.Errorf("failed to delete quiz %s: %w", id, err)
	}
	return nil
}

func (a *QuizDatabaseAdapter) ListQuizzesByCourse(ctx context.Context, courseID string, standby bool) ([]*domain.Quiz, error) {
	ex := a.exec(ctx)
	var rows []models.Quiz
	query := ex.Rebind(`SELECT ` + quizColumns + ` FROM quizzes WHERE course_id = ? AND is_standby = ? ORDER BY id`)
	if err := ex.SelectContext(ctx, &rows, query, courseID, boolToInt(standby)); err != nil {
		return nil, fmt.Errorf("failed to list quizzes of course %s: %w", courseID, err)
	}
	return a.hydrateAll(ctx, rows)
}

func (a *QuizDatabaseAdapter) ListStandbyQuizzes(ctx context.Context) ([]*domain.Quiz, error) {
	ex := a.exec(ctx)
	var rows []models.Quiz
	query := ex.Rebind(`SELECT ` + quizColumns + ` FROM quizzes WHERE is_standby = ? ORDER BY id`)
	if err := ex.SelectContext(ctx, &rows, query, 1); err != nil {
		return nil, fmt.Errorf("failed to list standby quizzes: %w", err)
	}
	return a.hydrateAll(ctx, rows)
}

func (a *QuizDatabaseAdapter) hydrateAll(ctx context.Context, rows []models.Quiz) ([]*domain.Quiz, error) {
	out := make([]*domain.Quiz, 0, len(rows))
	for i := range rows {
		q, err := a.hydrate(ctx, &rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

func (a *QuizDatabaseAdapter) FindStandbyDonor(ctx context.Context, courseID, excludeID string, materialIDs []string) (*domain.Quiz, error) {
	ex := a.exec(ctx)
	var ids []string
	if len(materialIDs) > 0 {
		query, args, err := sqlx.In(`SELECT DISTINCT qz.id "id" FROM quizzes qz
			JOIN quiz_materials qm ON qm.quiz_id = qz.id
			WHERE qz.course_id = ? AND qz.is_standby = 1 AND qz.id <> ? AND qm.material_id IN (?)
			ORDER BY qz.id`, courseID, excludeID, materialIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to build donor query: %w", err)
		}
		if err := ex.SelectContext(ctx, &ids, ex.Rebind(query), args...); err != nil {
			return nil, fmt.Errorf("failed to find standby donor: %w", err)
		}
	}
	if len(ids) == 0 {
		query := ex.Rebind(`SELECT id "id" FROM quizzes WHERE course_id = ? AND is_standby = 1 AND id <> ? ORDER BY id`)
		if err := ex.SelectContext(ctx, &ids, query, courseID, excludeID); err != nil {
			return nil, fmt.Errorf("failed to find standby donor: %w", err)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return a.GetQuizByID(ctx, ids[0])
}

func (a *QuizDatabaseAdapter) CountQuestions(ctx context.Context, quizID string) (int, error) {
	ex := a.exec(ctx)
	var count int
	if err := ex.GetContext(ctx, &count, ex.Rebind(`SELECT COUNT(*) FROM questions WHERE quiz_id = ?`), quizID); err != nil {
		return 0, fmt.Errorf("failed to count questions of quiz %s: %w", quizID, err)
	}
	return count, nil
}

// ListQuestionIDs returns the lowest question ids first. The limit is applied in Go
// so the statement stays the same on Oracle and SQLite.
func (a *QuizDatabaseAdapter) ListQuestionIDs(ctx context.Context, quizID string, limit int) ([]string, error) {
	ex := a.exec(ctx)
	var ids []string
	query := ex.Rebind(`SELECT id "id" FROM questions WHERE quiz_id = ? ORDER BY id`)
	if err := ex.SelectContext(ctx, &ids, query, quizID); err != nil {
		return nil, fmt.Errorf("failed to list question ids of quiz %s: %w", quizID, err)
	}
	if limit >= 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (a *QuizDatabaseAdapter) ReassignQuestions(ctx context.Context, questionIDs []string, fromQuizID, toQuizID string) (int64, error) {
	if len(questionIDs) == 0 {
		return 0, nil
	}
	ex := a.exec(ctx)
	query, args, err := sqlx.In(`UPDATE questions SET quiz_id = ? WHERE quiz_id = ? AND id IN (?)`, toQuizID, fromQuizID, questionIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to build reassign query: %w", err)
	}
	res, err := ex.ExecContext(ctx, ex.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("failed to reassign questions from %s to %s: %w", fromQuizID, toQuizID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read reassigned row count: %w", err)
	}
	return n, nil
}

func (a *QuizDatabaseAdapter) UpdateRequestedCount(ctx context.Context, quizID string, expected, newCount int) (bool, error) {
	ex := a.exec(ctx)
	query := ex.Rebind(`UPDATE quizzes SET requested_count = ?, updated_at = ? WHERE id = ? AND requested_count = ?`)
	res, err := ex.ExecContext(ctx, query, newCount, time.Now(), quizID, expected)
	if err != nil {
		return false, fmt.Errorf("failed to update requested count of quiz %s: %w", quizID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read updated row count: %w", err)
	}
	return n == 1, nil
}

// GetQuestions returns the quiz's questions in id order, each with its options in display order.
func (a *QuizDatabaseAdapter) GetQuestions(ctx context.Context, quizID string) ([]*domain.Question, error) {
	ex := a.exec(ctx)
	var rows []models.Question
	query := ex.Rebind(`SELECT
		id "id",
		quiz_id "quiz_id",
		question_text "question_text",
		question_type "question_type",
		correct_answer "correct_answer",
		created_at "created_at"
	FROM questions WHERE quiz_id = ? ORDER BY id`)
	if err := ex.SelectContext(ctx, &rows, query, quizID); err != nil {
		return nil, fmt.Errorf("failed to get questions of quiz %s: %w", quizID, err)
	}
	if len(rows) == 0 {
		return []*domain.Question{}, nil
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	optQuery, args, err := sqlx.In(`SELECT
		id "id",
		question_id "question_id",
		option_text "option_text",
		display_order "display_order"
	FROM options WHERE question_id IN (?) ORDER BY question_id, display_order`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build options query: %w", err)
	}
	var opts []models.Option
	if err := ex.SelectContext(ctx, &opts, ex.Rebind(optQuery), args...); err != nil {
		return nil, fmt.Errorf("failed to get options of quiz %s: %w", quizID, err)
	}
	byQuestion := make(map[string][]models.Option, len(rows))
	for _, o := range opts {
		byQuestion[o.QuestionID] = append(byQuestion[o.QuestionID], o)
	}

	out := make([]*domain.Question, 0, len(rows))
	for i := range rows {
		out = append(out, toDomainQuestion(&rows[i], byQuestion[rows[i].ID]))
	}
	return out, nil
}

// RecordAttempt keeps the higher of the stored and new score and stamps the attempt time.
func (a *QuizDatabaseAdapter) RecordAttempt(ctx context.Context, quizID string, score int, takenAt time.Time) error {
	ex := a.exec(ctx)
	query := ex.Rebind(`UPDATE quizzes SET
		best_score = CASE WHEN best_score < ? THEN ? ELSE best_score END,
		last_taken_at = ?,
		updated_at = ?
	WHERE id = ?`)
	res, err := ex.ExecContext(ctx, query, score, score, takenAt, takenAt, quizID)
	if err != nil {
		return fmt.Errorf("failed to record attempt for quiz %s: %w", quizID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.NewQuizNotFoundError(quizID)
	}
	return nil
}
