package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchase-fulfillment/internal/common/logger"
)

func TestDispatcher_RunsSubmittedTasks(t *testing.T) {
	d := New(Config{Workers: 2, QueueSize: 8, TaskTimeout: time.Second}, logger.NewTestLogger(t))

	var ran int32
	for i := 0; i < 5; i++ {
		require.True(t, d.Submit(Task{Name: "count", Run: func(ctx context.Context) error {
			atomic.AddInt32(&ran, 1)
			return nil
		}}))
	}

	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, int32(5), atomic.LoadInt32(&ran))
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	d := New(Config{Workers: 1, QueueSize: 1, TaskTimeout: time.Second}, logger.NewNoOpLogger())

	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	blocker := Task{Name: "block", Run: func(ctx context.Context) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	}}

	require.True(t, d.Submit(blocker))
	<-started
	require.True(t, d.Submit(Task{Name: "queued", Run: func(ctx context.Context) error { return nil }}))
	assert.False(t, d.Submit(Task{Name: "overflow", Run: func(ctx context.Context) error { return nil }}))

	close(release)
	require.NoError(t, d.Close(context.Background()))
}

func TestDispatcher_IsolatesFailuresAndPanics(t *testing.T) {
	d := New(Config{Workers: 1, QueueSize: 4, TaskTimeout: time.Second}, logger.NewNoOpLogger())

	var after int32
	d.Submit(Task{Name: "fails", Run: func(ctx context.Context) error { return errors.New("boom") }})
	d.Submit(Task{Name: "panics", Run: func(ctx context.Context) error { panic("kaboom") }})
	d.Submit(Task{Name: "after", Run: func(ctx context.Context) error {
		atomic.StoreInt32(&after, 1)
		return nil
	}})

	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&after))
}

func TestDispatcher_TaskContextHasDeadline(t *testing.T) {
	d := New(Config{Workers: 1, QueueSize: 1, TaskTimeout: 50 * time.Millisecond}, logger.NewNoOpLogger())

	var hadDeadline atomic.Bool
	d.Submit(Task{Name: "deadline", Run: func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		hadDeadline.Store(ok)
		return nil
	}})

	require.NoError(t, d.Close(context.Background()))
	assert.True(t, hadDeadline.Load())
}

func TestDispatcher_SubmitAfterClose(t *testing.T) {
	d := New(Config{Workers: 1, QueueSize: 1}, logger.NewNoOpLogger())
	require.NoError(t, d.Close(context.Background()))

	assert.False(t, d.Submit(Task{Name: "late", Run: func(ctx context.Context) error { return nil }}))
	assert.NoError(t, d.Close(context.Background()), "close is idempotent")
}

func TestDispatcher_CloseAfterInterruptedDrain(t *testing.T) {
	d := New(Config{Workers: 1, QueueSize: 4, TaskTimeout: time.Second}, logger.NewNoOpLogger())

	release := make(chan struct{})
	started := make(chan struct{})
	var finished atomic.Int32
	require.True(t, d.Submit(Task{Name: "slow", Run: func(ctx context.Context) error {
		close(started)
		<-release
		finished.Add(1)
		return nil
	}}))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := d.Close(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	assert.NotPanics(t, func() {
		assert.NoError(t, d.Close(context.Background()))
	})
	assert.Equal(t, int32(1), finished.Load())
	assert.NoError(t, d.Close(context.Background()))
}
