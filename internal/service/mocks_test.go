package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"coursequiz/database"
	internaldb "coursequiz/internal/database"
	"coursequiz/internal/domain"
	"coursequiz/internal/repository"
	"coursequiz/internal/taskqueue"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- MockStorage ---
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Download(ctx context.Context, path string) ([]byte, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// --- MockDocumentParser ---
type MockDocumentParser struct {
	mock.Mock
}

func (m *MockDocumentParser) Pages(data []byte) ([][]domain.TextBlock, error) {
	args := m.Called(data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]domain.TextBlock), args.Error(1)
}

// --- MockMaterialRepository ---
type MockMaterialRepository struct {
	mock.Mock
}

func (m *MockMaterialRepository) CreateMaterial(ctx context.Context, material *domain.Material) error {
	args := m.Called(ctx, material)
	return args.Error(0)
}

func (m *MockMaterialRepository) GetMaterialByID(ctx context.Context, id string) (*domain.Material, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Material), args.Error(1)
}

func (m *MockMaterialRepository) ListMaterialsByQuiz(ctx context.Context, quizID string) ([]*domain.Material, error) {
	args := m.Called(ctx, quizID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Material), args.Error(1)
}

// --- MockCache ---
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockCache) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	args := m.Called(ctx, key, value, expiration)
	return args.Error(0)
}

func (m *MockCache) Delete(ctx context.Context, keys ...string) error {
	args := m.Called(ctx, keys)
	return args.Error(0)
}

func (m *MockCache) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCache) HGet(ctx context.Context, key, field string) (string, error) {
	args := m.Called(ctx, key, field)
	return args.String(0), args.Error(1)
}

func (m *MockCache) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockCache) HSet(ctx context.Context, key string, field string, value string) error {
	args := m.Called(ctx, key, field, value)
	return args.Error(0)
}

func (m *MockCache) HSetFields(ctx context.Context, key string, fields map[string]string) error {
	args := m.Called(ctx, key, fields)
	return args.Error(0)
}

func (m *MockCache) Expire(ctx context.Context, key string, expiration time.Duration) error {
	args := m.Called(ctx, key, expiration)
	return args.Error(0)
}

// --- MockQuestionSynthesizer ---
type MockQuestionSynthesizer struct {
	mock.Mock
}

func (m *MockQuestionSynthesizer) Synthesize(ctx context.Context, materialText string, itemCount int) ([]domain.Draft, error) {
	args := m.Called(ctx, materialText, itemCount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Draft), args.Error(1)
}

// --- MockQuestionStore ---
type MockQuestionStore struct {
	mock.Mock
}

func (m *MockQuestionStore) Persist(ctx context.Context, quizID string, drafts []domain.Draft) error {
	args := m.Called(ctx, quizID, drafts)
	return args.Error(0)
}

// --- MockChunkSource ---
type MockChunkSource struct {
	mock.Mock
}

func (m *MockChunkSource) ChunksForQuiz(ctx context.Context, quizID string) ([]string, error) {
	args := m.Called(ctx, quizID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// --- MockGenerator ---
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, quizID string, totalItems int) ([]*taskqueue.TaskHandle, error) {
	args := m.Called(ctx, quizID, totalItems)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*taskqueue.TaskHandle), args.Error(1)
}

func (m *MockGenerator) Busy(ctx context.Context, quizID string) (bool, error) {
	args := m.Called(ctx, quizID)
	return args.Bool(0), args.Error(1)
}

// --- SQLite fixtures ---

type sqliteFixture struct {
	db        *sqlx.DB
	quizzes   domain.QuizRepository
	materials domain.MaterialRepository
	store     domain.QuestionStore
	tm        domain.TransactionManager
}

func newSQLiteFixture(t *testing.T) *sqliteFixture {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "service.db") + "?_foreign_keys=on"
	db, err := internaldb.Open("sqlite3", dsn, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, internaldb.RunMigrations(db.DB, "sqlite3", database.Migrations, zap.NewNop()))

	tm := repository.NewTransactionManagerAdapter(db)
	return &sqliteFixture{
		db:        db,
		quizzes:   repository.NewQuizDatabaseAdapter(db),
		materials: repository.NewMaterialDatabaseAdapter(db),
		store:     repository.NewQuestionDatabaseAdapter(db, tm),
		tm:        tm,
	}
}

func (f *sqliteFixture) material(t *testing.T, courseID, name string) *domain.Material {
	t.Helper()
	m := &domain.Material{CourseID: courseID, FilePath: "materials/" + name + ".pdf", FileName: name + ".pdf"}
	require.NoError(t, f.materials.CreateMaterial(context.Background(), m))
	return m
}

// standby creates a standby quiz for m holding n persisted questions.
func (f *sqliteFixture) standby(t *testing.T, m *domain.Material, requested, n int) *domain.Quiz {
	t.Helper()
	q := domain.NewStandbyQuiz(m, requested)
	require.NoError(t, f.quizzes.CreateQuiz(context.Background(), q))
	f.fill(t, q.ID, n)
	return q
}

func (f *sqliteFixture) userQuiz(t *testing.T, courseID, title string, requested int, materialIDs ...string) *domain.Quiz {
	t.Helper()
	q := domain.NewQuiz(courseID, title, requested, materialIDs)
	require.NoError(t, f.quizzes.CreateQuiz(context.Background(), q))
	return q
}

func (f *sqliteFixture) fill(t *testing.T, quizID string, n int) {
	t.Helper()
	if n == 0 {
		return
	}
	drafts := make([]domain.Draft, n)
	for i := range drafts {
		drafts[i] = domain.MultipleChoiceDraft{
			Question:    "Question " + string(rune('A'+i%26)),
			Options:     [4]string{"one", "two", "three", "four"},
			AnswerIndex: i % 4,
		}
	}
	require.NoError(t, f.store.Persist(context.Background(), quizID, drafts))
}

func newTestQueue(t *testing.T) *taskqueue.Queue {
	t.Helper()
	q := taskqueue.New(testQueueConfig(), nil, zap.NewNop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = q.Shutdown(ctx)
	})
	return q
}
