package bulk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/hub-transfers/internal/domain"
)

func TestWorkerPool_RunsDispatchedJobs(t *testing.T) {
	runner := new(MockRunner)
	pool := NewWorkerPool(runner, 2, 4, slog.Default())

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	done := make(chan uuid.UUID, len(ids))
	for _, id := range ids {
		runner.On("Run", mock.Anything, id).
			Run(func(args mock.Arguments) { done <- args.Get(1).(uuid.UUID) }).
			Return(&domain.BulkJob{ID: id}, nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- pool.Start(ctx) }()

	for _, id := range ids {
		require.NoError(t, pool.Dispatch(ctx, id))
	}

	seen := map[uuid.UUID]bool{}
	for range ids {
		select {
		case id := <-done:
			seen[id] = true
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for dispatched jobs")
		}
	}
	assert.Len(t, seen, len(ids))

	cancel()
	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker pool did not stop")
	}
}

func TestWorkerPool_DispatchRejectsWhenFull(t *testing.T) {
	pool := NewWorkerPool(new(MockRunner), 1, 1, slog.Default())

	require.NoError(t, pool.Dispatch(context.Background(), uuid.New()))
	err := pool.Dispatch(context.Background(), uuid.New())

	assert.True(t, errors.Is(err, ErrQueueFull))
}

func TestRunDispatched_SwallowsErrors(t *testing.T) {
	runner := new(MockRunner)
	id := uuid.New()
	runner.On("Run", mock.Anything, id).Return(nil, fmt.Errorf("Run: %w", domain.ErrJobNotRunnable))

	assert.NotPanics(t, func() { RunDispatched(context.Background(), runner, id) })
	runner.AssertExpectations(t)
}

func TestWorkerPool_DispatchIgnoresJobAlreadyQueued(t *testing.T) {
	pool := NewWorkerPool(new(MockRunner), 1, 2, slog.Default())
	id := uuid.New()

	require.NoError(t, pool.Dispatch(context.Background(), id))
	require.NoError(t, pool.Dispatch(context.Background(), id))

	assert.Len(t, pool.queue, 1)
	require.NoError(t, pool.Dispatch(context.Background(), uuid.New()))
	assert.Len(t, pool.queue, 2)
}

func TestWorkerPool_JobCanBeQueuedAgainOnceTaken(t *testing.T) {
	runner := new(MockRunner)
	pool := NewWorkerPool(runner, 1, 1, slog.Default())
	id := uuid.New()

	ran := make(chan struct{}, 2)
	runner.On("Run", mock.Anything, id).
		Run(func(mock.Arguments) { ran <- struct{}{} }).
		Return(&domain.BulkJob{ID: id}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = pool.Start(ctx) }()

	for range 2 {
		require.NoError(t, pool.Dispatch(ctx, id))
		select {
		case <-ran:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for run")
		}
	}
	runner.AssertNumberOfCalls(t, "Run", 2)
}
