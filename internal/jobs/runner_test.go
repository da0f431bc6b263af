package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banton/medical-patients-sub001/internal/models"
)

func testConfig(total int) models.GenerationConfig {
	return models.GenerationConfig{
		TotalPatients: total,
		Days:          1,
		Seed:          17,
		BaseDate:      time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRun(t *testing.T) {
	r := NewRunner(nil, NewGovernor(Limits{}, 1), 0, 0)

	t.Run("rejects non-positive totals", func(t *testing.T) {
		_, err := r.Run(context.Background(), testConfig(0), nil)
		assert.Error(t, err)
	})

	t.Run("small cohort completes", func(t *testing.T) {
		var lastOverall int
		var phases []string
		result, err := r.Run(context.Background(), testConfig(30), func(overall int, d models.ProgressDetails) {
			lastOverall = overall
			if len(phases) == 0 || phases[len(phases)-1] != d.Phase {
				phases = append(phases, d.Phase)
			}
		})
		require.NoError(t, err)
		require.NotNil(t, result)

		assert.Len(t, result.Patients, 30)
		assert.Equal(t, 30, result.Status.TotalPatients)
		assert.NotEmpty(t, result.Events)
		assert.GreaterOrEqual(t, lastOverall, 95)
		assert.Contains(t, phases, "generating_casualty_stream")
		assert.Contains(t, phases, "simulating_patient_flow")
		assert.Contains(t, phases, "finalizing")
	})

	t.Run("same seed reproduces the cohort", func(t *testing.T) {
		a, err := r.Run(context.Background(), testConfig(25), nil)
		require.NoError(t, err)
		b, err := r.Run(context.Background(), testConfig(25), nil)
		require.NoError(t, err)

		require.Len(t, b.Patients, len(a.Patients))
		for i := range a.Patients {
			assert.Equal(t, a.Patients[i].ID, b.Patients[i].ID)
			assert.Equal(t, a.Patients[i].InitialHealth, b.Patients[i].InitialHealth)
			assert.Equal(t, a.Patients[i].State, b.Patients[i].State)
		}
	})

	t.Run("feature flags off produce a static cohort", func(t *testing.T) {
		static := NewRunner(nil, NewGovernor(Limits{}, 1), 0, 0)
		static.SetFeatures(false, false)

		result, err := static.Run(context.Background(), testConfig(20), nil)
		require.NoError(t, err)
		require.Len(t, result.Patients, 20)
		for _, p := range result.Patients {
			assert.Equal(t, models.StateAtPOI, p.State)
			assert.Empty(t, p.Treatments)
		}
	})

	t.Run("cancelled context stops the run", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := r.Run(ctx, testConfig(50), nil)
		assert.ErrorIs(t, err, ErrCancelled)
	})

	t.Run("runtime cap fails the run", func(t *testing.T) {
		tight := NewRunner(nil, NewGovernor(Limits{MaxRuntimeSeconds: 1, MaxMemoryMB: 100000, MaxCPUSeconds: 100000}, 1), 5, 1100*time.Millisecond)
		_, err := tight.Run(context.Background(), testConfig(20), nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrResourceLimit)
	})
}
