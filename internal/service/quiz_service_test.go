package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"coursequiz/internal/cache"
	"coursequiz/internal/domain"
	"coursequiz/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTaskLookup map[string]*domain.TaskInfo

func (f fakeTaskLookup) Lookup(ctx context.Context, taskID string) (*domain.TaskInfo, error) {
	return f[taskID], nil
}

func newTestQuizService(f *sqliteFixture, gen Generator, c domain.Cache, tasks TaskLookup) QuizService {
	pool := NewQuizPool(f.quizzes, f.materials, f.tm, gen, 20, zap.NewNop())
	coordinator := NewGenerationCoordinator(nil, nil, f.store, f.quizzes, nil, zap.NewNop())
	return NewQuizService(f.quizzes, f.materials, pool, coordinator, tasks, c, 10*time.Minute, zap.NewNop())
}

func TestCheckAnswers(t *testing.T) {
	ctx := context.Background()
	f := newSQLiteFixture(t)
	m := f.material(t, "course-1", "cells")
	quiz := f.userQuiz(t, "course-1", "Quiz 1", 3, m.ID)
	require.NoError(t, f.store.Persist(ctx, quiz.ID, []domain.Draft{
		domain.TrueFalseDraft{Question: "Cells have membranes.", Answer: true},
		domain.MultipleChoiceDraft{Question: "Powerhouse of the cell?", Options: [4]string{"Nucleus", "Mitochondria", "Ribosome", "Golgi"}, AnswerIndex: 1},
		domain.TrueFalseDraft{Question: "Plant cells lack walls.", Answer: false},
	}))
	questions, err := f.quizzes.GetQuestions(ctx, quiz.ID)
	require.NoError(t, err)
	require.Len(t, questions, 3)

	c := new(MockCache)
	c.On("Delete", mock.Anything, []string{cache.CourseQuizzesKey("course-1")}).Return(nil)
	svc := newTestQuizService(f, nil, c, nil)

	result, err := svc.CheckAnswers(ctx, quiz.ID, map[string]string{
		questions[0].ID: "TRUE",
		questions[1].ID: " B ",
		questions[2].ID: "true",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Score)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.BestScore)
	assert.True(t, result.Results[0].Correct)
	assert.True(t, result.Results[1].Correct)
	assert.False(t, result.Results[2].Correct)
	assert.Equal(t, "false", result.Results[2].CorrectAnswer)

	result, err = svc.CheckAnswers(ctx, quiz.ID, map[string]string{questions[0].ID: "true"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Score)
	assert.Equal(t, 2, result.BestScore)

	stored, err := f.quizzes.GetQuizByID(ctx, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.BestScore)
	assert.NotNil(t, stored.LastTakenAt)
	c.AssertNumberOfCalls(t, "Delete", 2)
}

func TestCheckAnswers_EmptyQuiz(t *testing.T) {
	f := newSQLiteFixture(t)
	quiz := f.userQuiz(t, "course-1", "Empty", 5)
	_, err := newTestQuizService(f, nil, nil, nil).CheckAnswers(context.Background(), quiz.ID, nil)
	assert.True(t, domain.HasCode(err, domain.ErrInvalidInput))
}

func TestCreateQuiz_ValidatesMaterials(t *testing.T) {
	ctx := context.Background()
	f := newSQLiteFixture(t)
	own := f.material(t, "course-1", "own")
	foreign := f.material(t, "course-2", "foreign")
	svc := newTestQuizService(f, nil, nil, nil)

	quiz, err := svc.CreateQuiz(ctx, CreateQuizInput{CourseID: "course-1", Title: "Week 1", RequestedCount: 10, MaterialIDs: []string{own.ID, own.ID}})
	require.NoError(t, err)
	assert.Equal(t, []string{own.ID}, quiz.MaterialIDs)

	_, err = svc.CreateQuiz(ctx, CreateQuizInput{CourseID: "course-1", Title: "Week 2", RequestedCount: 10, MaterialIDs: []string{foreign.ID}})
	assert.True(t, domain.HasCode(err, domain.ErrInvalidInput))

	_, err = svc.CreateQuiz(ctx, CreateQuizInput{CourseID: "course-1", Title: "Week 1", RequestedCount: 10})
	assert.True(t, domain.HasCode(err, domain.ErrConflict))

	_, err = svc.CreateQuiz(ctx, CreateQuizInput{CourseID: "course-1", Title: domain.StandbyTitle(own.ID), RequestedCount: 10})
	assert.True(t, domain.HasCode(err, domain.ErrInvalidInput))
}

func TestListCourseQuizzes_CachesUserQuizzes(t *testing.T) {
	ctx := context.Background()
	f := newSQLiteFixture(t)
	m := f.material(t, "course-1", "cells")
	f.standby(t, m, 20, 0)
	user := f.userQuiz(t, "course-1", "Quiz 1", 5, m.ID)

	key := cache.CourseQuizzesKey("course-1")
	c := new(MockCache)
	c.On("Get", mock.Anything, key).Return("", domain.ErrCacheMiss).Once()
	c.On("Set", mock.Anything, key, mock.AnythingOfType("string"), 10*time.Minute).Return(nil).Once()

	list, err := newTestQuizService(f, nil, c, nil).ListCourseQuizzes(ctx, "course-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, user.ID, list[0].ID)

	raw, _ := json.Marshal([]QuizSummary{{ID: "cached", Title: "From cache"}})
	c.On("Get", mock.Anything, key).Return(string(raw), nil).Once()
	list, err = newTestQuizService(f, nil, c, nil).ListCourseQuizzes(ctx, "course-1")
	require.NoError(t, err)
	assert.Equal(t, "cached", list[0].ID)
	c.AssertExpectations(t)
}

func TestRegisterMaterial(t *testing.T) {
	ctx := context.Background()
	f := newSQLiteFixture(t)
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything, 20).Return(nil, domain.NewNoContentError("blank pdf")).Once()

	m := &domain.Material{CourseID: "course-1", FilePath: "uploads/blank.pdf", FileName: "blank.pdf"}
	quiz, _, err := newTestQuizService(f, gen, nil, nil).RegisterMaterial(ctx, m)
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, domain.StandbyTitle(m.ID), quiz.Title)

	stored, err := f.materials.GetMaterialByID(ctx, m.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	gen.AssertExpectations(t)
}

func TestRegisterMaterial_ConflictLeavesNoMaterial(t *testing.T) {
	ctx := context.Background()
	f := newSQLiteFixture(t)
	m := &domain.Material{ID: util.NewULID(), CourseID: "course-1", FilePath: "uploads/a.pdf", FileName: "a.pdf"}
	f.userQuiz(t, "course-1", domain.StandbyTitle(m.ID), 5)

	_, _, err := newTestQuizService(f, new(MockGenerator), nil, nil).RegisterMaterial(ctx, m)
	require.Error(t, err)
	stored, err := f.materials.GetMaterialByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestTaskStatus(t *testing.T) {
	f := newSQLiteFixture(t)
	tasks := fakeTaskLookup{"t1": {ID: "t1", Status: domain.TaskRunning}}
	svc := newTestQuizService(f, nil, nil, tasks)

	info, err := svc.TaskStatus(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskRunning, info.Status)

	_, err = svc.TaskStatus(context.Background(), "t2")
	assert.True(t, domain.HasCode(err, domain.ErrNotFound))
}
