package simulation

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/banton/medical-patients-sub001/internal/models"
)

// Time-with-patient accuracy gain parameters: max * (1 - e^(-k*t)).
const (
	timeGainMax = 0.10
	timeGainK   = 0.03 // per minute
)

// DiagnosticEngine models probabilistic (mis)diagnosis with accuracy that
// improves along the evacuation chain.
type DiagnosticEngine struct {
	cat *Catalog
	rng *rand.Rand

	// Extra information sources and their accuracy bonuses.
	infoBonuses map[string]float64

	attempts int
	correct  int
}

// NewDiagnosticEngine builds an engine over the catalog accuracy tables.
func NewDiagnosticEngine(cat *Catalog, rng *rand.Rand) *DiagnosticEngine {
	return &DiagnosticEngine{
		cat: cat,
		rng: rng,
		infoBonuses: map[string]float64{
			"medevac_report":    0.05,
			"field_card":        0.03,
			"prior_imaging":     0.08,
			"witness_statement": 0.02,
		},
	}
}

// EffectiveAccuracy combines facility base accuracy with triage and
// environmental modifiers plus the exponential time-with-patient gain,
// clamped to [0,1].
func (de *DiagnosticEngine) EffectiveAccuracy(facility string, triage models.TriageCategory, conditions []string, minutesWithPatient float64, infoSources []string) float64 {
	acc, ok := de.cat.DiagnosticAccuracy[facilityEchelon(facility)]
	if !ok {
		acc = 0.7
	}

	// Urgent patients get focused attention; expectant ones get less workup.
	switch triage {
	case models.TriageImmediate:
		acc += 0.02
	case models.TriageExpectant:
		acc -= 0.05
	}

	for _, cond := range conditions {
		if mod, ok := de.cat.Environments[cond]; ok {
			acc += mod.DiagnosticModifier
		}
	}

	acc += timeGainMax * (1 - math.Exp(-timeGainK*minutesWithPatient))

	for _, src := range infoSources {
		acc += de.infoBonuses[src]
	}

	if acc < 0 {
		acc = 0
	}
	if acc > 1 {
		acc = 1
	}
	return acc
}

// Diagnose performs one diagnostic attempt at a facility and appends the
// record to the patient. A failed Bernoulli draw samples a misdiagnosis from
// the confusion matrix for the true code, or the generic fallback list.
func (de *DiagnosticEngine) Diagnose(p *models.Patient, facility string, conditions []string, minutesWithPatient float64, infoSources []string, at time.Time) models.DiagnosisRecord {
	accuracy := de.EffectiveAccuracy(facility, p.Triage, conditions, minutesWithPatient, infoSources)

	record := models.DiagnosisRecord{
		Facility:    facility,
		Confidence:  accuracy,
		DiagnosedAt: at,
	}

	de.attempts++
	if p.TrueCondition == "" || de.rng.Float64() < accuracy {
		record.DiagnosedCode = p.TrueCondition
		record.Correct = true
		de.correct++
	} else {
		record.DiagnosedCode = de.sampleMisdiagnosis(p.TrueCondition)
		record.Correct = false
	}

	p.Diagnoses = append(p.Diagnoses, record)
	return record
}

func (de *DiagnosticEngine) sampleMisdiagnosis(trueCode string) string {
	row, ok := de.cat.ConfusionMatrix[trueCode]
	if ok && len(row) > 0 {
		codes := make([]string, 0, len(row))
		for code := range row {
			codes = append(codes, code)
		}
		sort.Strings(codes) // stable iteration for reproducibility

		var sum float64
		for _, code := range codes {
			sum += row[code]
		}
		r := de.rng.Float64() * sum
		for _, code := range codes {
			r -= row[code]
			if r <= 0 {
				return code
			}
		}
		return codes[len(codes)-1]
	}
	if len(de.cat.GenericMisdiagnoses) > 0 {
		return de.cat.GenericMisdiagnoses[de.rng.Intn(len(de.cat.GenericMisdiagnoses))]
	}
	return trueCode
}

// OnProgression re-runs diagnosis when a patient reaches a higher-capability
// facility, carrying forward prior workup as an information source.
func (de *DiagnosticEngine) OnProgression(p *models.Patient, facility string, conditions []string, at time.Time) models.DiagnosisRecord {
	var sources []string
	if len(p.Diagnoses) > 0 {
		sources = append(sources, "field_card")
		if p.LatestDiagnosis().Correct {
			sources = append(sources, "medevac_report")
		}
	}
	return de.Diagnose(p, facility, conditions, 0, sources, at)
}

// Accuracy returns the fraction of correct diagnoses so far.
func (de *DiagnosticEngine) Accuracy() float64 {
	if de.attempts == 0 {
		return 0
	}
	return float64(de.correct) / float64(de.attempts)
}
