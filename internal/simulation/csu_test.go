package simulation

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banton/medical-patients-sub001/internal/models"
)

func stageAtCSU(fm *FacilityManager, bc *BatchCoordinator, n int) []string {
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = fmt.Sprintf("csu-%02d", i)
		fm.Admit("CSU", ids[i], models.PriorityRoutine)
		bc.Add(ids[i], models.TriageDelayed)
	}
	return ids
}

func TestBatchReady(t *testing.T) {
	t.Run("empty batch never ready", func(t *testing.T) {
		bc := NewBatchCoordinator(NewFacilityManager(), 0, 0, testClock)
		assert.False(t, bc.Ready())
	})

	t.Run("ready at batch size", func(t *testing.T) {
		fm := NewFacilityManager()
		bc := NewBatchCoordinator(fm, 0, 0, testClock)
		for i := 0; i < 9; i++ {
			res := bc.Add(fmt.Sprintf("p%d", i), models.TriageDelayed)
			assert.False(t, res.BatchReady)
		}
		res := bc.Add("p9", models.TriageDelayed)
		assert.True(t, res.BatchReady)
		assert.Equal(t, 10, res.BatchCount)
	})

	t.Run("ready after the hold limit", func(t *testing.T) {
		clock := testClock()
		now := func() time.Time { return clock }
		bc := NewBatchCoordinator(NewFacilityManager(), 0, 0, func() time.Time { return now() })

		bc.Add("p1", models.TriageDelayed)
		assert.False(t, bc.Ready())

		clock = clock.Add(61 * time.Minute)
		assert.True(t, bc.Ready())
	})
}

func TestPrepareTransfer(t *testing.T) {
	t.Run("sorted by triage, Role2 destination", func(t *testing.T) {
		fm := NewFacilityManager()
		bc := NewBatchCoordinator(fm, 0, 0, testClock)
		bc.Add("minimal", models.TriageMinimal)
		bc.Add("immediate", models.TriageImmediate)
		bc.Add("delayed", models.TriageDelayed)

		plan := bc.PrepareTransfer()
		assert.Equal(t, []string{"immediate", "delayed", "minimal"}, plan.PatientIDs)
		assert.Equal(t, "Role2", plan.Destination)
		assert.True(t, plan.TransportRequired)
	})

	t.Run("diverts to Role3 when Role2 is loaded", func(t *testing.T) {
		fm := NewFacilityManager()
		fillFacility(fm, "Role2", 55) // utilization past 0.9
		bc := NewBatchCoordinator(fm, 0, 0, testClock)
		bc.Add("p1", models.TriageDelayed)

		plan := bc.PrepareTransfer()
		assert.Equal(t, "Role3", plan.Destination)
	})
}

func TestExecute(t *testing.T) {
	t.Run("empty batch", func(t *testing.T) {
		bc := NewBatchCoordinator(NewFacilityManager(), 0, 0, testClock)
		res := bc.Execute("Role2", false)
		assert.False(t, res.Success)
		assert.Equal(t, "batch_empty", res.Reason)
	})

	t.Run("not ready without force", func(t *testing.T) {
		fm := NewFacilityManager()
		bc := NewBatchCoordinator(fm, 0, 0, testClock)
		stageAtCSU(fm, bc, 3)

		res := bc.Execute("Role2", false)
		assert.False(t, res.Success)
		assert.Equal(t, "batch_not_ready", res.Reason)
		assert.Equal(t, 3, bc.Count(), "batch stays intact")
	})

	t.Run("insufficient capacity", func(t *testing.T) {
		fm := NewFacilityManager()
		fillFacility(fm, "Role2", 58)
		bc := NewBatchCoordinator(fm, 0, 0, testClock)
		stageAtCSU(fm, bc, 3)

		res := bc.Execute("Role2", true)
		assert.False(t, res.Success)
		assert.Equal(t, "insufficient_capacity", res.Reason)
	})

	t.Run("forced partial batch transfers", func(t *testing.T) {
		fm := NewFacilityManager()
		bc := NewBatchCoordinator(fm, 0, 0, testClock)
		ids := stageAtCSU(fm, bc, 4)

		res := bc.Execute("Role2", true)
		require.True(t, res.Success)
		assert.Equal(t, 4, res.TransferredCount)
		assert.Zero(t, res.FailedCount)
		assert.Zero(t, bc.Count())
		for _, id := range ids {
			assert.True(t, fm.Get("Role2").Has(id))
		}

		m := bc.Metrics()
		assert.Equal(t, 1, m.TotalBatches)
		assert.Equal(t, 1, m.PartialBatches)
		assert.Zero(t, m.FullBatches)
		assert.Equal(t, 4, m.PatientsTransferred)
	})

	t.Run("full batch counted as full", func(t *testing.T) {
		fm := NewFacilityManager()
		bc := NewBatchCoordinator(fm, 0, 0, testClock)
		stageAtCSU(fm, bc, 10)

		res := bc.Execute("Role2", false)
		require.True(t, res.Success)
		assert.Equal(t, 10, res.TransferredCount)
		assert.Equal(t, 1, bc.Metrics().FullBatches)
	})
}
