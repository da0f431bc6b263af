package simulation

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banton/medical-patients-sub001/internal/models"
)

func newSelector(seed int64) *TreatmentSelector {
	cat := DefaultCatalog()
	return NewTreatmentSelector(cat, NewProtocolCatalog(cat), rand.New(rand.NewSource(seed)))
}

func TestScore(t *testing.T) {
	s := newSelector(1)

	t.Run("component weights", func(t *testing.T) {
		// tourniquet for amputation at POI, fresh injury, full supply.
		got := s.Score("tourniquet", "125670008", "POI", models.BandModerate, 0, nil)
		want := 0.35*1.0 + 0.25*1.0 + 0.20*0.9 + 0.15*1.0 + 0.05*1.0
		assert.InDelta(t, want, got, 1e-9)
	})

	t.Run("urgency decays with elapsed time", func(t *testing.T) {
		fresh := s.Score("tourniquet", "125670008", "POI", models.BandModerate, 0, nil)
		late := s.Score("tourniquet", "125670008", "POI", models.BandModerate, 60, nil)
		assert.Greater(t, fresh, late)

		// Half-life equals the golden window.
		atWindow := s.Score("tourniquet", "125670008", "POI", models.BandModerate, 10, nil)
		assert.InDelta(t, fresh-0.25*0.5, atWindow, 1e-9)
	})

	t.Run("critical boost for severe band", func(t *testing.T) {
		moderate := s.Score("blood_transfusion", "125689001", "Role1", models.BandModerate, 0, nil)
		severe := s.Score("blood_transfusion", "125689001", "Role1", models.BandSevere, 0, nil)
		assert.Greater(t, severe, moderate)
	})

	t.Run("scarce resources lower availability", func(t *testing.T) {
		full := s.Score("iv_fluids", "125689001", "Role1", models.BandModerate, 0, map[string]float64{"iv_fluids": 1})
		scarce := s.Score("iv_fluids", "125689001", "Role1", models.BandModerate, 0, map[string]float64{"iv_fluids": 0.2})
		assert.InDelta(t, 0.15*0.8, full-scarce, 1e-9)
	})

	t.Run("capability zero off-echelon", func(t *testing.T) {
		role3 := s.Score("definitive_surgery", "125689001", "Role3", models.BandModerate, 0, nil)
		role1 := s.Score("definitive_surgery", "125689001", "Role1", models.BandModerate, 0, nil)
		assert.InDelta(t, 0.05, role3-role1, 1e-9)
	})
}

func TestSelect(t *testing.T) {
	t.Run("contraindicated never selected", func(t *testing.T) {
		s := newSelector(3)
		for i := 0; i < 20; i++ {
			chosen := s.Select("125670008", models.BandCritical, "Role1", 15, nil, 3)
			for _, c := range chosen {
				assert.NotEqual(t, "observation", c.Name)
				assert.NotEqual(t, "splinting", c.Name)
			}
		}
	})

	t.Run("reproducible with same seed", func(t *testing.T) {
		a := newSelector(42).Select("262525000", models.BandSevere, "Role2", 30, nil, 2)
		b := newSelector(42).Select("262525000", models.BandSevere, "Role2", 30, nil, 2)
		assert.Equal(t, a, b)
	})

	t.Run("respects maxN", func(t *testing.T) {
		s := newSelector(5)
		chosen := s.Select("262525000", models.BandSevere, "Role1", 10, nil, 2)
		assert.LessOrEqual(t, len(chosen), 2)
		assert.NotEmpty(t, chosen)
	})

	t.Run("no duplicates", func(t *testing.T) {
		s := newSelector(7)
		chosen := s.Select("125689001", models.BandSevere, "Role1", 10, nil, 5)
		seen := map[string]bool{}
		for _, c := range chosen {
			assert.False(t, seen[c.Name], "duplicate %s", c.Name)
			seen[c.Name] = true
		}
	})

	t.Run("stress condition falls back to psychological first aid", func(t *testing.T) {
		s := newSelector(1)
		// No protocol entry at all forces the fallback path.
		chosen := s.Select("unknown-code", models.BandMild, "POI", 0, nil, 1)
		require.Len(t, chosen, 1)
		assert.Equal(t, "bandage", chosen[0].Name)

		fb := s.fallback("47505003", "Role2")
		assert.Equal(t, "psychological_first_aid", fb)
	})
}

func TestSelectionProbabilities(t *testing.T) {
	s := newSelector(1)
	candidates := []ScoredTreatment{
		{Name: "a", Utility: 0.9},
		{Name: "b", Utility: 0.5},
	}
	probs := s.SelectionProbabilities(candidates)
	require.Len(t, probs, 2)

	assert.InDelta(t, 1.0, probs["a"]+probs["b"], 1e-9)
	assert.Greater(t, probs["a"], probs["b"])

	// Softmax ratio at T=0.5: e^{(0.9-0.5)/0.5}.
	assert.InDelta(t, math.Exp(0.8), probs["a"]/probs["b"], 1e-9)
}
