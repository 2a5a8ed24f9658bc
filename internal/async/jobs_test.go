package async

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qmderrors "github.com/quickmd/qmd/internal/errors"
)

func TestManager_CompletedJobCarriesResult(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	id := m.Start(ctx, "notes", func(_ context.Context, progress func(int, int)) (any, error) {
		progress(3, 3)
		return "all done", nil
	})

	job, err := m.Wait(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, job.State)
	assert.Equal(t, "all done", job.Result)
	assert.Equal(t, 3, job.Done)
	assert.Equal(t, 3, job.Total)
	assert.False(t, job.StartedAt.IsZero())
	assert.False(t, job.FinishedAt.IsZero())
}

func TestManager_FailedJobCarriesError(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	id := m.Start(ctx, "notes", func(context.Context, func(int, int)) (any, error) {
		return nil, errors.New("disk exploded")
	})

	job, err := m.Wait(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, job.State)
	assert.Contains(t, job.Error, "disk exploded")
	assert.Nil(t, job.Result)
}

func TestManager_CancelYieldsCancelledNotFailed(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	started := make(chan struct{})
	id := m.Start(ctx, "notes", func(jobCtx context.Context, _ func(int, int)) (any, error) {
		close(started)
		<-jobCtx.Done()
		return nil, qmderrors.IndexingCancelled("notes")
	})

	<-started
	assert.True(t, m.Cancel(id))

	job, err := m.Wait(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, job.State)
	assert.Empty(t, job.Error, "cancellation is an outcome, not a failure")
}

func TestManager_CancelUnknownOrFinished(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	assert.False(t, m.Cancel("no-such-job"))

	id := m.Start(ctx, "notes", func(context.Context, func(int, int)) (any, error) {
		return nil, nil
	})
	_, err := m.Wait(ctx, id)
	require.NoError(t, err)
	assert.False(t, m.Cancel(id), "terminal jobs cannot be cancelled")
}

func TestManager_ActiveJobs(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	release := make(chan struct{})
	running := make(chan struct{})
	id := m.Start(ctx, "notes", func(context.Context, func(int, int)) (any, error) {
		close(running)
		<-release
		return nil, nil
	})

	<-running
	active := m.ActiveJobs()
	require.Len(t, active, 1)
	assert.Equal(t, id, active[0].ID)

	close(release)
	_, err := m.Wait(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, m.ActiveJobs())
}

func TestManager_ListNewestFirst(t *testing.T) {
	m := NewManager()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	tick := 0
	m.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	ctx := context.Background()

	first := m.Start(ctx, "a", func(context.Context, func(int, int)) (any, error) { return nil, nil })
	_, err := m.Wait(ctx, first)
	require.NoError(t, err)
	second := m.Start(ctx, "b", func(context.Context, func(int, int)) (any, error) { return nil, nil })
	_, err = m.Wait(ctx, second)
	require.NoError(t, err)

	jobs := m.List()
	require.Len(t, jobs, 2)
	assert.Equal(t, second, jobs[0].ID)
	assert.Equal(t, first, jobs[1].ID)
}

func TestManager_CleanupOldJobs(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	id := m.Start(ctx, "notes", func(context.Context, func(int, int)) (any, error) {
		return nil, nil
	})
	_, err := m.Wait(ctx, id)
	require.NoError(t, err)

	// Nothing old enough yet
	assert.Zero(t, m.CleanupOldJobs())

	// Jump the clock past the retention window
	m.now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	assert.Equal(t, 1, m.CleanupOldJobs())
	_, ok := m.Get(id)
	assert.False(t, ok)
}

func TestManager_WaitUnknownJob(t *testing.T) {
	m := NewManager()
	_, err := m.Wait(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, qmderrors.ErrCodeInvalidInput, qmderrors.GetCode(err))
}
