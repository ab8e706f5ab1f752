package repository

import (
	"context"
	"path/filepath"
	"testing"

	"coursequiz/database"
	internaldb "coursequiz/internal/database"
	"coursequiz/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setupTestDB creates a new sqlx.DB instance and sqlmock for repository testing.
func setupTestDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

// setupSQLiteDB opens a migrated SQLite database in a temp dir.
func setupSQLiteDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "quiz.db") + "?_foreign_keys=on"
	db, err := internaldb.Open("sqlite3", dsn, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, internaldb.RunMigrations(db.DB, "sqlite3", database.Migrations, zap.NewNop()))
	return db
}

func seedQuiz(t *testing.T, repo domain.QuizRepository, materials domain.MaterialRepository, courseID, title string, standby bool, requested int) *domain.Quiz {
	t.Helper()
	ctx := context.Background()
	m := &domain.Material{CourseID: courseID, FilePath: "materials/" + title + ".pdf", FileName: title + ".pdf"}
	require.NoError(t, materials.CreateMaterial(ctx, m))
	q := domain.NewQuiz(courseID, title, requested, []string{m.ID})
	q.IsStandby = standby
	require.NoError(t, repo.CreateQuiz(ctx, q))
	return q
}

func mcqDraft(text string) domain.MultipleChoiceDraft {
	return domain.MultipleChoiceDraft{
		Question:    text,
		Options:     [4]string{"first", "second", "third", "fourth"},
		AnswerIndex: 2,
	}
}
