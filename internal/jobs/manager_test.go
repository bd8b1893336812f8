package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunIsolatesFailures(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	ok := m.CreateJob("knn", "grid search")
	bad := m.CreateJob("svc", "fit")
	boom := m.CreateJob("tree", "fit")

	require.NoError(t, m.Run(ctx, ok, func(ctx context.Context, job *Job) (any, error) {
		job.AddLog("fitted")
		return 0.9, nil
	}))
	errFit := errors.New("did not converge")
	assert.ErrorIs(t, m.Run(ctx, bad, func(ctx context.Context, job *Job) (any, error) {
		return nil, errFit
	}), errFit)
	assert.Error(t, m.Run(ctx, boom, func(ctx context.Context, job *Job) (any, error) {
		panic("index out of range")
	}))

	assert.Equal(t, JobCompleted, ok.GetStatus())
	assert.Equal(t, 0.9, ok.GetResult())
	assert.Len(t, ok.GetLogs(), 1)
	assert.Equal(t, JobFailed, bad.GetStatus())
	assert.ErrorIs(t, bad.GetError(), errFit)
	assert.Equal(t, JobFailed, boom.GetStatus())

	failed := m.Failed()
	require.Len(t, failed, 2)
	assert.Equal(t, "svc", failed[0].Type)
	assert.Equal(t, "tree", failed[1].Type)
}

func TestListJobsKeepsCreationOrder(t *testing.T) {
	m := NewManager()
	a := m.CreateJob("a", "")
	b := m.CreateJob("b", "")
	c := m.CreateJob("c", "")

	jobs := m.ListJobs()
	require.Len(t, jobs, 3)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, []string{jobs[0].ID, jobs[1].ID, jobs[2].ID})

	_, err := uuid.Parse(a.ID)
	assert.NoError(t, err)

	got, ok := m.GetJob(b.ID)
	require.True(t, ok)
	assert.Same(t, b, got)
}

func TestRunWithCancelledContext(t *testing.T) {
	m := NewManager()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := m.CreateJob("knn", "")
	called := false
	err := m.Run(ctx, job, func(ctx context.Context, job *Job) (any, error) {
		called = true
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.Equal(t, JobFailed, job.GetStatus())
}

func TestCancelJob(t *testing.T) {
	m := NewManager()
	job := m.CreateJob("forest", "")
	assert.Error(t, m.CancelJob(job.ID))
	assert.Error(t, m.CancelJob("missing"))

	err := m.Run(context.Background(), job, func(ctx context.Context, j *Job) (any, error) {
		require.NoError(t, m.CancelJob(j.ID))
		<-ctx.Done()
		return nil, ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, JobCancelled, job.GetStatus())
	assert.NotNil(t, job.EndTime)
}

func TestRunCancelledByCaller(t *testing.T) {
	m := NewManager()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job := m.CreateJob("svc", "fit")
	err := m.Run(ctx, job, func(ctx context.Context, j *Job) (any, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, JobCancelled, job.GetStatus())
	assert.ErrorIs(t, job.GetError(), context.Canceled)
	assert.Empty(t, m.Failed())
	assert.NotNil(t, job.EndTime)
}
