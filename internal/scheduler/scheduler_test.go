package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingReconciler struct {
	calls  atomic.Int32
	result int
	err    error
}

func (r *countingReconciler) Reconcile(ctx context.Context) (int, error) {
	r.calls.Add(1)
	return r.result, r.err
}

func TestNew_InvalidSchedule(t *testing.T) {
	_, err := New("every now and then", &countingReconciler{}, time.Minute, zap.NewNop())
	assert.Error(t, err)
}

func TestRunOnce(t *testing.T) {
	r := &countingReconciler{result: 3}
	s, err := New("@every 10m", r, time.Minute, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 3, s.RunOnce(context.Background()))
	assert.EqualValues(t, 1, r.calls.Load())

	r.err = errors.New("database unavailable")
	assert.Equal(t, 0, s.RunOnce(context.Background()))
}

func TestScheduler_RunsOnSchedule(t *testing.T) {
	r := &countingReconciler{}
	s, err := New("@every 1s", r, time.Second, zap.NewNop())
	require.NoError(t, err)

	s.Start()
	assert.Eventually(t, func() bool { return r.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
