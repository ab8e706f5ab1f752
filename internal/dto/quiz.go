package dto

import (
	"time"

	"coursequiz/internal/domain"
)

// RegisterMaterialRequest registers a file already uploaded to object storage.
type RegisterMaterialRequest struct {
	FilePath string `json:"file_path" validate:"required,max=1024"`
	FileName string `json:"file_name" validate:"required,max=255"`
}

type MaterialResponse struct {
	ID       string    `json:"id"`
	CourseID string    `json:"course_id"`
	FilePath string    `json:"file_path"`
	FileName string    `json:"file_name"`
	Created  time.Time `json:"created_at"`
}

type RegisterMaterialResponse struct {
	Material      MaterialResponse  `json:"material"`
	StandbyQuizID string            `json:"standby_quiz_id"`
	Tasks         []domain.TaskInfo `json:"tasks"`
}

type CreateQuizRequest struct {
	Title            string   `json:"title" validate:"required,max=100"`
	QuestionCount    int      `json:"question_count" validate:"required,gte=1,lte=100"`
	TimeLimitSeconds int      `json:"time_limit_seconds" validate:"gte=0,lte=86400"`
	MaterialIDs      []string `json:"material_ids" validate:"required,min=1,max=20,dive,ulid"`
}

// QuestionResponse never carries the correct answer.
type QuestionResponse struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Type    string   `json:"type"`
	Options []string `json:"options"`
}

type QuizResponse struct {
	ID               string             `json:"id"`
	CourseID         string             `json:"course_id"`
	Title            string             `json:"title"`
	RequestedCount   int                `json:"requested_count"`
	QuestionCount    int                `json:"question_count"`
	TimeLimitSeconds int                `json:"time_limit_seconds"`
	BestScore        int                `json:"best_score"`
	LastTakenAt      *time.Time         `json:"last_taken_at,omitempty"`
	MaterialIDs      []string           `json:"material_ids"`
	Questions        []QuestionResponse `json:"questions,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

type QuizSummaryResponse struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	RequestedCount   int        `json:"requested_count"`
	TimeLimitSeconds int        `json:"time_limit_seconds"`
	BestScore        int        `json:"best_score"`
	LastTakenAt      *time.Time `json:"last_taken_at,omitempty"`
	MaterialIDs      []string   `json:"material_ids"`
	CreatedAt        time.Time  `json:"created_at"`
}

type QuizListResponse struct {
	CourseID string                `json:"course_id"`
	Quizzes  []QuizSummaryResponse `json:"quizzes"`
}

type SupplyResponse struct {
	Outcome          domain.SupplyOutcome `json:"outcome"`
	QuizID           string               `json:"quiz_id"`
	DonorID          string               `json:"donor_id,omitempty"`
	MovedQuestionIDs []string             `json:"moved_question_ids,omitempty"`
	Tasks            []domain.TaskInfo    `json:"tasks"`
}

type GenerationStatusResponse struct {
	QuizID         string                 `json:"quiz_id"`
	State          domain.GenerationState `json:"state"`
	QuestionCount  int                    `json:"question_count"`
	RequestedCount int                    `json:"requested_count"`
	Tasks          []domain.TaskInfo      `json:"tasks"`
}

type AnswerItem struct {
	QuestionID string `json:"question_id" validate:"required,ulid"`
	Answer     string `json:"answer" validate:"max=200"`
}

type CheckAnswersRequest struct {
	Answers []AnswerItem `json:"answers" validate:"required,min=1,max=200,dive"`
}

type AnswerResultResponse struct {
	QuestionID    string `json:"question_id"`
	Answer        string `json:"answer"`
	CorrectAnswer string `json:"correct_answer"`
	Correct       bool   `json:"correct"`
}

type CheckAnswersResponse struct {
	QuizID    string                 `json:"quiz_id"`
	Score     int                    `json:"score"`
	Total     int                    `json:"total"`
	BestScore int                    `json:"best_score"`
	Results   []AnswerResultResponse `json:"results"`
}

func ToQuizResponse(q *domain.Quiz) QuizResponse {
	resp := QuizResponse{
		ID:               q.ID,
		CourseID:         q.CourseID,
		Title:            q.Title,
		RequestedCount:   q.RequestedCount,
		QuestionCount:    q.QuestionCount,
		TimeLimitSeconds: q.TimeLimitSeconds,
		BestScore:        q.BestScore,
		LastTakenAt:      q.LastTakenAt,
		MaterialIDs:      q.MaterialIDs,
		CreatedAt:        q.CreatedAt,
	}
	for _, question := range q.Questions {
		resp.Questions = append(resp.Questions, QuestionResponse{
			ID:      question.ID,
			Text:    question.Text,
			Type:    string(question.Type),
			Options: question.DisplayOptions(),
		})
	}
	if len(q.Questions) > 0 {
		resp.QuestionCount = len(q.Questions)
	}
	return resp
}
