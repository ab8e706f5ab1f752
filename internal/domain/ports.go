package domain

import (
	"context"
	"time"
)

// Storage reads material binaries from object storage.
type Storage interface {
	Download(ctx context.Context, path string) ([]byte, error)
}

// TextBlock is a positioned run of text on a PDF page. Y grows downwards.
type TextBlock struct {
	X    float64
	Y    float64
	Text string
}

// DocumentParser splits a PDF binary into per-page text blocks.
type DocumentParser interface {
	Pages(data []byte) ([][]TextBlock, error)
}

const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one chat message sent to an LLM provider.
type Message struct {
	Role    string
	Content string
}

// LLMProvider returns the raw text completion for a chat.
type LLMProvider interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// QuestionSynthesizer turns material text into validated drafts.
type QuestionSynthesizer interface {
	Synthesize(ctx context.Context, materialText string, itemCount int) ([]Draft, error)
}

// QuestionStore persists drafts as questions of a quiz.
type QuestionStore interface {
	Persist(ctx context.Context, quizID string, drafts []Draft) error
}

// TransactionManager runs fn inside a single database transaction carried by ctx.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// QuizRepository defines persistence for quizzes and the questions they own.
type QuizRepository interface {
	CreateQuiz(ctx context.Context, quiz *Quiz) error
	// GetQuizByID returns nil, nil when the quiz does not exist.
	GetQuizByID(ctx context.Context, id string) (*Quiz, error)
	GetQuizByTitle(ctx context.Context, courseID, title string) (*Quiz, error)
	DeleteQuiz(ctx context.Context, id string) error
	ListQuizzesByCourse(ctx context.Context, courseID string, standby bool) ([]*Quiz, error)
	ListStandbyQuizzes(ctx context.Context) ([]*Quiz, error)
	// FindStandbyDonor returns the lowest-id standby quiz of the course other than
	// excludeID, preferring one built from any of materialIDs. nil, nil when none exists.
	FindStandbyDonor(ctx context.Context, courseID, excludeID string, materialIDs []string) (*Quiz, error)

	CountQuestions(ctx context.Context, quizID string) (int, error)
	// ListQuestionIDs returns up to limit question ids of the quiz in ascending order.
	ListQuestionIDs(ctx context.Context, quizID string, limit int) ([]string, error)
	ReassignQuestions(ctx context.Context, questionIDs []string, fromQuizID, toQuizID string) (int64, error)
	// UpdateRequestedCount sets the requested count only if it still equals expected.
	UpdateRequestedCount(ctx context.Context, quizID string, expected, newCount int) (bool, error)
	GetQuestions(ctx context.Context, quizID string) ([]*Question, error)
	RecordAttempt(ctx context.Context, quizID string, score int, takenAt time.Time) error
}

// MaterialRepository defines persistence for course materials.
type MaterialRepository interface {
	CreateMaterial(ctx context.Context, m *Material) error
	GetMaterialByID(ctx context.Context, id string) (*Material, error)
	ListMaterialsByQuiz(ctx context.Context, quizID string) ([]*Material, error)
}
