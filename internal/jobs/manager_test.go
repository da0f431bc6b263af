package jobs

import (
	"archive/zip"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banton/medical-patients-sub001/internal/models"
)

func newTestManager(t *testing.T, maxConcurrent int) *Manager {
	t.Helper()
	governor := NewGovernor(Limits{}, maxConcurrent)
	runner := NewRunner(nil, governor, 0, 0)
	return NewManager(NewMemoryStore(), runner, governor, nil, nil, t.TempDir(), 0, 60)
}

func waitForTerminal(t *testing.T, m *Manager, id string) *models.Job {
	t.Helper()
	var job *models.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = m.Get(context.Background(), id)
		if err != nil {
			return false
		}
		switch job.Status {
		case models.JobCompleted, models.JobFailed, models.JobCancelled:
			return true
		}
		return false
	}, 30*time.Second, 50*time.Millisecond)
	return job
}

func TestValidate(t *testing.T) {
	m := newTestManager(t, 1)

	cases := []struct {
		name    string
		req     SubmitRequest
		wantErr bool
	}{
		{"valid", SubmitRequest{Config: models.GenerationConfig{TotalPatients: 10}, OutputFormats: []string{"json", "csv"}}, false},
		{"zero patients", SubmitRequest{Config: models.GenerationConfig{TotalPatients: 0}}, true},
		{"over the cap", SubmitRequest{Config: models.GenerationConfig{TotalPatients: 50001}}, true},
		{"negative days", SubmitRequest{Config: models.GenerationConfig{TotalPatients: 10, Days: -1}}, true},
		{"bad format", SubmitRequest{Config: models.GenerationConfig{TotalPatients: 10}, OutputFormats: []string{"xml"}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := m.Validate(tc.req)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSubmitAndComplete(t *testing.T) {
	m := newTestManager(t, 1)
	ctx := context.Background()

	job, err := m.Submit(ctx, SubmitRequest{
		Config:        models.GenerationConfig{TotalPatients: 20, Days: 1, Seed: 9},
		OutputFormats: []string{"json"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobRunning, job.Status)

	final := waitForTerminal(t, m, job.ID)
	require.Equal(t, models.JobCompleted, final.Status)
	assert.Equal(t, 100, final.Progress)
	require.NotEmpty(t, final.ResultFiles)
	require.NotNil(t, final.CompletedAt)

	t.Run("archive is a readable zip", func(t *testing.T) {
		path, err := m.ArchivePath(ctx, job.ID)
		require.NoError(t, err)

		zr, err := zip.OpenReader(path)
		require.NoError(t, err)
		defer zr.Close()
		assert.NotEmpty(t, zr.File)
	})

	t.Run("cancel after completion is a no-op", func(t *testing.T) {
		require.NoError(t, m.Cancel(ctx, job.ID))
		got, err := m.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobCompleted, got.Status)
	})

	require.NoError(t, m.Shutdown(ctx))
}

func TestSubmitBusy(t *testing.T) {
	m := newTestManager(t, 1)
	ctx := context.Background()

	job, err := m.Submit(ctx, SubmitRequest{
		Config: models.GenerationConfig{TotalPatients: 2000, Days: 3, Seed: 5},
	})
	require.NoError(t, err)

	_, err = m.Submit(ctx, SubmitRequest{
		Config: models.GenerationConfig{TotalPatients: 10},
	})
	assert.ErrorIs(t, err, ErrBusy)

	require.NoError(t, m.Cancel(ctx, job.ID))
	waitForTerminal(t, m, job.ID)
	require.NoError(t, m.Shutdown(ctx))
}

func TestCancelRunning(t *testing.T) {
	m := newTestManager(t, 1)
	ctx := context.Background()

	job, err := m.Submit(ctx, SubmitRequest{
		Config: models.GenerationConfig{TotalPatients: 5000, Days: 5, Seed: 3},
	})
	require.NoError(t, err)

	require.NoError(t, m.Cancel(ctx, job.ID))
	final := waitForTerminal(t, m, job.ID)
	// A fast run may complete before the cancel lands.
	if final.Status == models.JobCancelled {
		assert.NotEmpty(t, final.Error)
	}
	require.NoError(t, m.Shutdown(ctx))
}

func TestManagerNotFound(t *testing.T) {
	m := newTestManager(t, 1)
	ctx := context.Background()

	_, err := m.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Cancel(ctx, "nope"), ErrNotFound)
	assert.ErrorIs(t, m.Delete(ctx, "nope"), ErrNotFound)
}

func TestDeleteJob(t *testing.T) {
	m := newTestManager(t, 1)
	ctx := context.Background()

	job, err := m.Submit(ctx, SubmitRequest{
		Config:        models.GenerationConfig{TotalPatients: 10, Days: 1, Seed: 2},
		OutputFormats: []string{"json"},
	})
	require.NoError(t, err)
	waitForTerminal(t, m, job.ID)

	require.NoError(t, m.Delete(ctx, job.ID))
	_, err = m.Get(ctx, job.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, m.Shutdown(ctx))
}

func TestArchivePathRequiresCompletion(t *testing.T) {
	m := newTestManager(t, 1)
	ctx := context.Background()

	job := &models.Job{ID: "j1", Status: models.JobRunning, CreatedAt: time.Now()}
	require.NoError(t, m.store.Create(ctx, job))

	_, err := m.ArchivePath(ctx, "j1")
	assert.Error(t, err)
}

func TestEstimateDuration(t *testing.T) {
	assert.Equal(t, 2, EstimateDuration(100))
	assert.Equal(t, 5, EstimateDuration(1000))
	assert.Equal(t, 50, EstimateDuration(10000))
}
