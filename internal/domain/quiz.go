package domain

import (
	"fmt"
	"strings"
	"time"
)

// StandbyTitlePrefix names the standby quiz kept for each material.
const StandbyTitlePrefix = "pregenerated-quiz-"

// QuestionType distinguishes true/false from multiple-choice questions.
type QuestionType string

const (
	QuestionTypeTrueFalse      QuestionType = "TF"
	QuestionTypeMultipleChoice QuestionType = "MCQ"
)

// PlaceholderOption is stored for questions that carry no options of their own.
const PlaceholderOption = "placeholder"

// Quiz represents a quiz owned by a course.
type Quiz struct {
	ID               string
	CourseID         string
	Title            string
	RequestedCount   int
	// PoolTarget is the size the reconciler keeps a standby quiz at. Zero for user quizzes.
	PoolTarget       int
	QuestionCount    int
	IsStandby        bool
	TimeLimitSeconds int
	BestScore        int
	LastTakenAt      *time.Time
	MaterialIDs      []string
	Questions        []*Question
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewQuiz creates a new Quiz instance
func NewQuiz(courseID, title string, requested int, materialIDs []string) *Quiz {
	now := time.Now()
	return &Quiz{
		CourseID:       courseID,
		Title:          title,
		RequestedCount: requested,
		MaterialIDs:    materialIDs,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewStandbyQuiz creates the standby quiz for a material.
func NewStandbyQuiz(m *Material, requested int) *Quiz {
	q := NewQuiz(m.CourseID, StandbyTitle(m.ID), requested, []string{m.ID})
	q.IsStandby = true
	q.PoolTarget = requested
	return q
}

// RefillTarget is the question count the pool tops a standby quiz up to.
func (q *Quiz) RefillTarget() int {
	return max(q.RequestedCount, q.PoolTarget)
}

// StandbyTitle returns the title of the standby quiz for a material.
func StandbyTitle(materialID string) string {
	return StandbyTitlePrefix + materialID
}

// Validate validates the quiz
func (q *Quiz) Validate() error {
	if strings.TrimSpace(q.CourseID) == "" {
		return NewInvalidInputError("course_id is required")
	}
	if strings.TrimSpace(q.Title) == "" {
		return NewInvalidInputError("title is required")
	}
	if len(q.Title) > 100 {
		return NewInvalidInputError("title must be at most 100 characters")
	}
	if q.RequestedCount < 0 {
		return NewInvalidInputError("requested question count must not be negative")
	}
	if q.TimeLimitSeconds < 0 {
		return NewInvalidInputError("time limit must not be negative")
	}
	return nil
}

// Question represents a single question of a quiz.
type Question struct {
	ID            string
	QuizID        string
	Text          string
	Type          QuestionType
	CorrectAnswer string
	Options       []Option
	CreatedAt     time.Time
}

// DisplayOptions returns the choices shown to a quiz taker. True/false questions
// derive theirs instead of using the stored placeholder.
func (q *Question) DisplayOptions() []string {
	if q.Type == QuestionTypeTrueFalse {
		return []string{"True", "False"}
	}
	out := make([]string, 0, len(q.Options))
	for _, o := range q.Options {
		if o.Text == PlaceholderOption {
			continue
		}
		out = append(out, o.Text)
	}
	return out
}

// Option is one display choice of a question.
type Option struct {
	ID         string
	QuestionID string
	Text       string
	Order      int
}

// Material is an uploaded course file whose text feeds question generation.
type Material struct {
	ID        string
	CourseID  string
	FilePath  string
	FileName  string
	CreatedAt time.Time
}

// Draft is a validated question produced by the synthesizer and not yet stored.
// It is either a TrueFalseDraft or a MultipleChoiceDraft.
type Draft interface {
	QuestionText() string
	isDraft()
}

type TrueFalseDraft struct {
	Question string
	Answer   bool
}

func (d TrueFalseDraft) QuestionText() string { return d.Question }
func (TrueFalseDraft) isDraft()               {}

type MultipleChoiceDraft struct {
	Question    string
	Options     [4]string
	AnswerIndex int
}

func (d MultipleChoiceDraft) QuestionText() string { return d.Question }
func (MultipleChoiceDraft) isDraft()               {}

// AnswerLetter returns the lowercase letter token of the correct option.
func (d MultipleChoiceDraft) AnswerLetter() string {
	return string(rune('a' + d.AnswerIndex))
}

// ChunkGenerationRequest is the payload of one synthesis task.
type ChunkGenerationRequest struct {
	QuizID     string
	ChunkIndex int
	Text       string
	ItemCount  int
}

func (r ChunkGenerationRequest) TaskName() string {
	return fmt.Sprintf("generate-questions:%s:chunk-%d", r.QuizID, r.ChunkIndex)
}
