package repository

import (
	"coursequiz/internal/domain"
	"coursequiz/internal/repository/models"
	"coursequiz/internal/util"
)

func toDomainQuiz(m *models.Quiz, materialIDs []string, questionCount int) *domain.Quiz {
	if m == nil {
		return nil
	}
	q := &domain.Quiz{
		ID:               m.ID,
		CourseID:         m.CourseID,
		Title:            m.Title,
		RequestedCount:   m.RequestedCount,
		PoolTarget:       m.PoolTarget,
		QuestionCount:    questionCount,
		IsStandby:        m.IsStandby != 0,
		TimeLimitSeconds: m.TimeLimitSeconds,
		BestScore:        m.BestScore,
		LastTakenAt:      util.PtrFromNullTime(m.LastTakenAt),
		MaterialIDs:      materialIDs,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	return q
}

func toModelQuiz(q *domain.Quiz) *models.Quiz {
	if q == nil {
		return nil
	}
	return &models.Quiz{
		ID:               q.ID,
		CourseID:         q.CourseID,
		Title:            q.Title,
		RequestedCount:   q.RequestedCount,
		PoolTarget:       q.PoolTarget,
		IsStandby:        boolToInt(q.IsStandby),
		TimeLimitSeconds: q.TimeLimitSeconds,
		BestScore:        q.BestScore,
		LastTakenAt:      util.NullTimeFromPtr(q.LastTakenAt),
		CreatedAt:        q.CreatedAt,
		UpdatedAt:        q.UpdatedAt,
	}
}

func toDomainQuestion(m *models.Question, opts []models.Option) *domain.Question {
	q := &domain.Question{
		ID:            m.ID,
		QuizID:        m.QuizID,
		Text:          m.QuestionText,
		Type:          domain.QuestionType(m.QuestionType),
		CorrectAnswer: m.CorrectAnswer,
		CreatedAt:     m.CreatedAt,
		Options:       make([]domain.Option, 0, len(opts)),
	}
	for _, o := range opts {
		q.Options = append(q.Options, domain.Option{
			ID:         o.ID,
			QuestionID: o.QuestionID,
			Text:       o.OptionText,
			Order:      o.DisplayOrder,
		})
	}
	return q
}

func toDomainMaterial(m *models.Material) *domain.Material {
	if m == nil {
		return nil
	}
	return &domain.Material{
		ID:        m.ID,
		CourseID:  m.CourseID,
		FilePath:  m.FilePath,
		FileName:  m.FileName,
		CreatedAt: m.CreatedAt,
	}
}
