package domain

import "time"

// GenerationState summarizes how far a quiz is from its requested question count.
type GenerationState string

const (
	GenerationEmpty           GenerationState = "EMPTY"
	GenerationGenerating      GenerationState = "GENERATING"
	GenerationPartiallyFilled GenerationState = "PARTIALLY_FILLED"
	GenerationFilled          GenerationState = "FILLED"
)

// DeriveGenerationState computes the state from the current question rows, the
// requested count and whether any generation task is still active.
func DeriveGenerationState(questionCount, requested int, active bool) GenerationState {
	switch {
	case questionCount > 0 && questionCount >= requested:
		return GenerationFilled
	case questionCount > 0:
		return GenerationPartiallyFilled
	case active:
		return GenerationGenerating
	default:
		return GenerationEmpty
	}
}

// TaskStatus is the lifecycle state of a queued task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
)

// Finished reports whether the task reached a terminal state.
func (s TaskStatus) Finished() bool {
	return s == TaskSucceeded || s == TaskFailed
}

// TaskInfo is a point-in-time view of a task handle.
type TaskInfo struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	QuizID     string     `json:"quiz_id"`
	Status     TaskStatus `json:"status"`
	Attempts   int        `json:"attempts"`
	LastError  string     `json:"last_error,omitempty"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// GenerationStatus reports a quiz's generation progress.
type GenerationStatus struct {
	QuizID         string
	State          GenerationState
	QuestionCount  int
	RequestedCount int
	Tasks          []TaskInfo
}

// SupplyOutcome tells the caller how a quiz request was served.
type SupplyOutcome string

const (
	// Questions were moved from a standby quiz.
	SupplyTransferred SupplyOutcome = "TRANSFERRED"
	// The standby quiz was short; it is being topped up and nothing moved.
	SupplyStillGenerating SupplyOutcome = "STILL_GENERATING"
	// No standby quiz was available; questions are generated straight into the quiz.
	SupplyGeneratingDirectly SupplyOutcome = "GENERATING_DIRECTLY"
	// The quiz already holds its questions or is still generating them; nothing was dispatched.
	SupplyAlreadySupplied SupplyOutcome = "ALREADY_SUPPLIED"
)

// SupplyResult describes the result of supplying questions to a quiz.
type SupplyResult struct {
	Outcome          SupplyOutcome
	QuizID           string
	DonorID          string
	MovedQuestionIDs []string
	Tasks            []TaskInfo
}

// AnswerResult is the verdict for one submitted answer.
type AnswerResult struct {
	QuestionID    string
	Given         string
	CorrectAnswer string
	Correct       bool
}

// CheckResult is the outcome of grading a quiz attempt.
type CheckResult struct {
	QuizID    string
	Score     int
	Total     int
	BestScore int
	Results   []AnswerResult
}
