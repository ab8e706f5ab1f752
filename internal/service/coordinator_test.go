package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"coursequiz/internal/config"
	"coursequiz/internal/domain"
	"coursequiz/internal/taskqueue"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testQueueConfig() config.QueueConfig {
	return config.QueueConfig{Workers: 2, MaxAttempts: 3}
}

func waitAll(t *testing.T, handles []*taskqueue.TaskHandle) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, h := range handles {
		select {
		case <-h.Done():
		case <-ctx.Done():
			t.Fatalf("task %s did not finish", h.Name())
		}
	}
}

func TestShares(t *testing.T) {
	tests := []struct {
		total, n int
		want     []int
	}{
		{20, 3, []int{7, 7, 6}},
		{20, 4, []int{5, 5, 5, 5}},
		{5, 1, []int{5}},
		{2, 3, []int{1, 1, 0}},
		{0, 2, []int{0, 0}},
		{10, 0, nil},
	}
	for _, tt := range tests {
		got := Shares(tt.total, tt.n)
		assert.Equal(t, tt.want, got)
		if tt.n > 0 {
			assert.Equal(t, tt.total, lo.Sum(got))
			assert.LessOrEqual(t, lo.Max(got)-lo.Min(got), 1)
		}
	}
}

func TestGenerateFromChunks_DispatchesOneTaskPerChunk(t *testing.T) {
	synth := new(MockQuestionSynthesizer)
	store := new(MockQuestionStore)
	drafts := []domain.Draft{domain.TrueFalseDraft{Question: "q", Answer: true}}
	synth.On("Synthesize", mock.Anything, "chunk-0", 7).Return(drafts, nil).Once()
	synth.On("Synthesize", mock.Anything, "chunk-1", 7).Return(drafts, nil).Once()
	synth.On("Synthesize", mock.Anything, "chunk-2", 6).Return(drafts, nil).Once()
	store.On("Persist", mock.Anything, "quiz-1", drafts).Return(nil).Times(3)

	c := NewGenerationCoordinator(nil, synth, store, nil, newTestQueue(t), zap.NewNop())
	handles, err := c.GenerateFromChunks(context.Background(), "quiz-1", []string{"chunk-0", "chunk-1", "chunk-2"}, 20)
	require.NoError(t, err)
	require.Len(t, handles, 3)
	assert.Equal(t, "generate-questions:quiz-1:chunk-0", handles[0].Name())

	waitAll(t, handles)
	for _, h := range handles {
		assert.Equal(t, domain.TaskSucceeded, h.Status())
	}
	synth.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestGenerateFromChunks_SkipsZeroShares(t *testing.T) {
	synth := new(MockQuestionSynthesizer)
	store := new(MockQuestionStore)
	synth.On("Synthesize", mock.Anything, mock.Anything, 1).Return([]domain.Draft{}, nil)

	c := NewGenerationCoordinator(nil, synth, store, nil, newTestQueue(t), zap.NewNop())
	handles, err := c.GenerateFromChunks(context.Background(), "quiz-1", []string{"a", "b", "c"}, 2)
	require.NoError(t, err)
	assert.Len(t, handles, 2)
	waitAll(t, handles)
	store.AssertNotCalled(t, "Persist", mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateFromChunks_NoChunks(t *testing.T) {
	c := NewGenerationCoordinator(nil, nil, nil, nil, newTestQueue(t), zap.NewNop())
	_, err := c.GenerateFromChunks(context.Background(), "quiz-1", nil, 20)
	assert.True(t, domain.HasCode(err, domain.ErrNoContent))
}

func TestGenerate_RetriesOnlyProviderErrors(t *testing.T) {
	synth := new(MockQuestionSynthesizer)
	store := new(MockQuestionStore)
	chunks := new(MockChunkSource)
	drafts := []domain.Draft{domain.TrueFalseDraft{Question: "q", Answer: false}}

	chunks.On("ChunksForQuiz", mock.Anything, "quiz-1").Return([]string{"flaky", "broken"}, nil)
	synth.On("Synthesize", mock.Anything, "flaky", 2).Return(nil, domain.NewLLMServiceError(errors.New("timeout"))).Once()
	synth.On("Synthesize", mock.Anything, "flaky", 2).Return(drafts, nil).Once()
	synth.On("Synthesize", mock.Anything, "broken", 2).Return(nil, domain.NewGenerationFailedError(3, errors.New("bad json"))).Once()
	store.On("Persist", mock.Anything, "quiz-1", drafts).Return(nil).Once()

	c := NewGenerationCoordinator(chunks, synth, store, nil, newTestQueue(t), zap.NewNop())
	handles, err := c.Generate(context.Background(), "quiz-1", 4)
	require.NoError(t, err)
	require.Len(t, handles, 2)
	waitAll(t, handles)

	assert.Equal(t, domain.TaskSucceeded, handles[0].Status())
	assert.Equal(t, 2, handles[0].Attempts())
	assert.Equal(t, domain.TaskFailed, handles[1].Status())
	assert.Equal(t, 1, handles[1].Attempts())
	assert.True(t, domain.HasCode(handles[1].Err(), domain.ErrGenerationFailed))
	synth.AssertExpectations(t)
}

func TestGenerate_PersistErrorIsNotRetried(t *testing.T) {
	synth := new(MockQuestionSynthesizer)
	store := new(MockQuestionStore)
	drafts := []domain.Draft{domain.TrueFalseDraft{Question: "q", Answer: true}}
	synth.On("Synthesize", mock.Anything, "text", 3).Return(drafts, nil).Once()
	store.On("Persist", mock.Anything, "quiz-1", drafts).Return(domain.NewPersistError(errors.New("disk full"))).Once()

	c := NewGenerationCoordinator(nil, synth, store, nil, newTestQueue(t), zap.NewNop())
	handles, err := c.GenerateFromChunks(context.Background(), "quiz-1", []string{"text"}, 3)
	require.NoError(t, err)
	waitAll(t, handles)
	assert.Equal(t, domain.TaskFailed, handles[0].Status())
	store.AssertNumberOfCalls(t, "Persist", 1)
}

func TestState(t *testing.T) {
	f := newSQLiteFixture(t)
	m := f.material(t, "course-1", "cells")
	quiz := f.standby(t, m, 20, 5)

	release := make(chan struct{})
	queue := newTestQueue(t)
	synth := new(MockQuestionSynthesizer)
	synth.On("Synthesize", mock.Anything, "text", 15).Return(nil, nil).Run(func(args mock.Arguments) {
		select {
		case <-release:
		case <-args.Get(0).(context.Context).Done():
		}
	})

	c := NewGenerationCoordinator(nil, synth, f.store, f.quizzes, queue, zap.NewNop())
	handles, err := c.GenerateFromChunks(context.Background(), quiz.ID, []string{"text"}, 15)
	require.NoError(t, err)

	status, err := c.State(context.Background(), quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GenerationPartiallyFilled, status.State)
	assert.Equal(t, 5, status.QuestionCount)
	assert.Equal(t, 20, status.RequestedCount)
	require.Len(t, status.Tasks, 1)
	assert.Equal(t, handles[0].ID(), status.Tasks[0].ID)

	close(release)
	waitAll(t, handles)

	_, err = c.State(context.Background(), "missing")
	assert.True(t, domain.HasCode(err, domain.ErrQuizNotFound))
}
