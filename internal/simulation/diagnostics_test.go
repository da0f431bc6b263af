package simulation

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banton/medical-patients-sub001/internal/models"
)

func newDiagnosticEngine(seed int64) *DiagnosticEngine {
	return NewDiagnosticEngine(DefaultCatalog(), rand.New(rand.NewSource(seed)))
}

func TestEffectiveAccuracy(t *testing.T) {
	de := newDiagnosticEngine(1)

	t.Run("base accuracy climbs the chain", func(t *testing.T) {
		assert.InDelta(t, 0.65, de.EffectiveAccuracy("POI", models.TriageDelayed, nil, 0, nil), 1e-9)
		assert.InDelta(t, 0.85, de.EffectiveAccuracy("Role2", models.TriageDelayed, nil, 0, nil), 1e-9)
		assert.InDelta(t, 0.98, de.EffectiveAccuracy("Role4", models.TriageDelayed, nil, 0, nil), 1e-9)
	})

	t.Run("facilities without a table entry take the default base", func(t *testing.T) {
		assert.InDelta(t, 0.7, de.EffectiveAccuracy("CSU", models.TriageDelayed, nil, 0, nil), 1e-9)
	})

	t.Run("unmapped facilities fold into Role1", func(t *testing.T) {
		assert.InDelta(t, 0.75, de.EffectiveAccuracy("battalion aid station", models.TriageDelayed, nil, 0, nil), 1e-9)
	})

	t.Run("triage modifiers", func(t *testing.T) {
		assert.InDelta(t, 0.67, de.EffectiveAccuracy("POI", models.TriageImmediate, nil, 0, nil), 1e-9)
		assert.InDelta(t, 0.60, de.EffectiveAccuracy("POI", models.TriageExpectant, nil, 0, nil), 1e-9)
	})

	t.Run("environmental penalty", func(t *testing.T) {
		got := de.EffectiveAccuracy("Role2", models.TriageDelayed, []string{"dust_storm"}, 0, nil)
		assert.InDelta(t, 0.85-0.08, got, 1e-9)
	})

	t.Run("time with patient saturates", func(t *testing.T) {
		short := de.EffectiveAccuracy("Role1", models.TriageDelayed, nil, 10, nil)
		assert.InDelta(t, 0.75+0.10*(1-math.Exp(-0.3)), short, 1e-9)

		long := de.EffectiveAccuracy("Role1", models.TriageDelayed, nil, 10000, nil)
		assert.InDelta(t, 0.85, long, 1e-6)
	})

	t.Run("information sources stack", func(t *testing.T) {
		got := de.EffectiveAccuracy("Role2", models.TriageDelayed, nil, 0, []string{"medevac_report", "prior_imaging"})
		assert.InDelta(t, 0.85+0.05+0.08, got, 1e-9)
	})

	t.Run("clamped to one", func(t *testing.T) {
		got := de.EffectiveAccuracy("Role4", models.TriageImmediate, nil, 10000, []string{"prior_imaging", "medevac_report"})
		assert.Equal(t, 1.0, got)
	})
}

func TestDiagnose(t *testing.T) {
	at := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	t.Run("empty true condition always correct", func(t *testing.T) {
		de := newDiagnosticEngine(1)
		p := &models.Patient{Triage: models.TriageDelayed}
		rec := de.Diagnose(p, "POI", nil, 0, nil, at)
		assert.True(t, rec.Correct)
		assert.Equal(t, "", rec.DiagnosedCode)
		require.Len(t, p.Diagnoses, 1)
	})

	t.Run("misdiagnosis comes from the confusion row", func(t *testing.T) {
		de := newDiagnosticEngine(1)
		row := map[string]bool{"262525000": true, "125689001": true}
		for i := 0; i < 200; i++ {
			p := &models.Patient{TrueCondition: "125670008", Triage: models.TriageDelayed}
			rec := de.Diagnose(p, "POI", nil, 0, nil, at)
			if !rec.Correct {
				assert.True(t, row[rec.DiagnosedCode], "unexpected code %s", rec.DiagnosedCode)
				assert.NotEqual(t, "125670008", rec.DiagnosedCode)
			}
		}
	})

	t.Run("unknown code falls to the generic list", func(t *testing.T) {
		de := newDiagnosticEngine(2)
		generic := map[string]bool{"417163006": true, "125605004": true, "128045006": true}
		sawMiss := false
		for i := 0; i < 200; i++ {
			p := &models.Patient{TrueCondition: "99999999", Triage: models.TriageExpectant}
			rec := de.Diagnose(p, "POI", nil, 0, nil, at)
			if !rec.Correct {
				sawMiss = true
				assert.True(t, generic[rec.DiagnosedCode])
			}
		}
		assert.True(t, sawMiss)
	})

	t.Run("accuracy counter tracks attempts", func(t *testing.T) {
		de := newDiagnosticEngine(3)
		assert.Zero(t, de.Accuracy())
		for i := 0; i < 100; i++ {
			p := &models.Patient{TrueCondition: "125689001", Triage: models.TriageDelayed}
			de.Diagnose(p, "Role3", nil, 0, nil, at)
		}
		acc := de.Accuracy()
		assert.Greater(t, acc, 0.8)
		assert.LessOrEqual(t, acc, 1.0)
	})
}

func TestOnProgression(t *testing.T) {
	at := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	de := newDiagnosticEngine(1)

	p := &models.Patient{TrueCondition: "125689001", Triage: models.TriageDelayed}
	p.Diagnoses = append(p.Diagnoses, models.DiagnosisRecord{
		Facility:      "POI",
		DiagnosedCode: "125689001",
		Correct:       true,
		DiagnosedAt:   at,
	})

	rec := de.OnProgression(p, "Role2", nil, at.Add(time.Hour))
	// field_card + medevac_report bonuses on top of the Role2 base.
	assert.InDelta(t, 0.85+0.03+0.05, rec.Confidence, 1e-9)
	assert.Len(t, p.Diagnoses, 2)
}
