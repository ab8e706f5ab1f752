package models

import (
	"database/sql"
	"time"
)

// Quiz maps the quizzes table. Booleans are stored as NUMBER(1)/INTEGER.
type Quiz struct {
	ID               string       `db:"id"`
	CourseID         string       `db:"course_id"`
	Title            string       `db:"title"`
	RequestedCount   int          `db:"requested_count"`
	PoolTarget       int          `db:"pool_target"`
	IsStandby        int          `db:"is_standby"`
	TimeLimitSeconds int          `db:"time_limit_seconds"`
	BestScore        int          `db:"best_score"`
	LastTakenAt      sql.NullTime `db:"last_taken_at"`
	CreatedAt        time.Time    `db:"created_at"`
	UpdatedAt        time.Time    `db:"updated_at"`
}

// QuizMaterial maps the quiz_materials join table.
type QuizMaterial struct {
	QuizID     string `db:"quiz_id"`
	MaterialID string `db:"material_id"`
}

// Question maps the questions table.
type Question struct {
	ID            string    `db:"id"`
	QuizID        string    `db:"quiz_id"`
	QuestionText  string    `db:"question_text"`
	QuestionType  string    `db:"question_type"`
	CorrectAnswer string    `db:"correct_answer"`
	CreatedAt     time.Time `db:"created_at"`
}

// Option maps the options table.
type Option struct {
	ID           string `db:"id"`
	QuestionID   string `db:"question_id"`
	OptionText   string `db:"option_text"`
	DisplayOrder int    `db:"display_order"`
}

// Material maps the materials table.
type Material struct {
	ID        string    `db:"id"`
	CourseID  string    `db:"course_id"`
	FilePath  string    `db:"file_path"`
	FileName  string    `db:"file_name"`
	CreatedAt time.Time `db:"created_at"`
}
