package simulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banton/medical-patients-sub001/internal/models"
)

func TestCategorize(t *testing.T) {
	tm := &TriageMapper{}

	t.Run("health bands", func(t *testing.T) {
		assert.Equal(t, models.TriageExpectant, tm.Categorize(5, nil, models.BandCritical))
		assert.Equal(t, models.TriageImmediate, tm.Categorize(25, nil, models.BandSevere))
		assert.Equal(t, models.TriageDelayed, tm.Categorize(55, nil, models.BandModerate))
		assert.Equal(t, models.TriageMinimal, tm.Categorize(85, nil, models.BandMild))
	})

	t.Run("immediate tags force T1", func(t *testing.T) {
		got := tm.Categorize(85, []string{"arterial_bleeding"}, models.BandMild)
		assert.Equal(t, models.TriageImmediate, got)

		got = tm.Categorize(60, []string{"Tension_Pneumothorax"}, models.BandModerate)
		assert.Equal(t, models.TriageImmediate, got)
	})

	t.Run("massive head trauma with low health is expectant", func(t *testing.T) {
		got := tm.Categorize(15, []string{"massive_head_trauma"}, models.BandCritical)
		assert.Equal(t, models.TriageExpectant, got)

		// Above the health threshold the tag does not apply.
		got = tm.Categorize(30, []string{"massive_head_trauma"}, models.BandCritical)
		assert.Equal(t, models.TriageImmediate, got)
	})
}

func TestCategorizeMassCasualty(t *testing.T) {
	tm := &TriageMapper{MassCasualty: true}

	t.Run("borderline T1 downgraded to expectant", func(t *testing.T) {
		got := tm.Categorize(12, nil, models.BandSevere)
		assert.Equal(t, models.TriageExpectant, got)
	})

	t.Run("healthy T2 downgraded to minimal", func(t *testing.T) {
		got := tm.Categorize(68, nil, models.BandMild)
		assert.Equal(t, models.TriageMinimal, got)
	})

	t.Run("clear T1 unchanged", func(t *testing.T) {
		got := tm.Categorize(30, nil, models.BandSevere)
		assert.Equal(t, models.TriageImmediate, got)
	})
}

func TestPrioritize(t *testing.T) {
	tm := &TriageMapper{}
	patients := []*models.Patient{
		{ID: "a", Triage: models.TriageMinimal, CurrentHealth: 80},
		{ID: "b", Triage: models.TriageImmediate, CurrentHealth: 30},
		{ID: "c", Triage: models.TriageImmediate, CurrentHealth: 20},
		{ID: "d", Triage: models.TriageDelayed, CurrentHealth: 50},
		{ID: "e", Triage: models.TriageExpectant, CurrentHealth: 5},
	}

	sorted := tm.Prioritize(patients)
	require.Len(t, sorted, 5)

	ids := make([]string, len(sorted))
	for i, p := range sorted {
		ids[i] = p.ID
	}
	assert.Equal(t, []string{"c", "b", "d", "a", "e"}, ids)

	// Input order untouched.
	assert.Equal(t, "a", patients[0].ID)
}
