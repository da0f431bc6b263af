package simulation

import (
	"sort"
	"strings"

	"github.com/banton/medical-patients-sub001/internal/models"
)

// immediateTags force T1 regardless of the health band.
var immediateTags = []string{
	"arterial_bleeding",
	"airway_compromise",
	"tension_pneumothorax",
	"hemorrhagic_shock",
	"severe_tbi",
}

// TriageMapper maps health and injury pattern to a triage category.
type TriageMapper struct {
	MassCasualty bool
}

// Categorize maps (health, injury tags, band) to T1-T4. Under mass-casualty
// mode borderline cases are downgraded to conserve resources.
func (t *TriageMapper) Categorize(health float64, injuryTags []string, band models.SeverityBand) models.TriageCategory {
	category := categoryForHealth(health)

	for _, tag := range injuryTags {
		lower := strings.ToLower(tag)
		for _, imm := range immediateTags {
			if strings.Contains(lower, imm) {
				category = models.TriageImmediate
			}
		}
		if strings.Contains(lower, "massive_head_trauma") && health < 20 {
			category = models.TriageExpectant
		}
	}

	if t.MassCasualty {
		if category == models.TriageImmediate && health < 15 && band == models.BandSevere {
			category = models.TriageExpectant
		}
		if category == models.TriageDelayed && health > 65 && band == models.BandMild {
			category = models.TriageMinimal
		}
	}
	return category
}

func categoryForHealth(health float64) models.TriageCategory {
	switch {
	case health < 10:
		return models.TriageExpectant
	case health < 40:
		return models.TriageImmediate
	case health < 70:
		return models.TriageDelayed
	default:
		return models.TriageMinimal
	}
}

// Prioritize stably sorts patients by (triage priority asc, health asc):
// the neediest within the most urgent category comes first.
func (t *TriageMapper) Prioritize(patients []*models.Patient) []*models.Patient {
	out := make([]*models.Patient, len(patients))
	copy(out, patients)
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := out[i].Triage.Priority(), out[j].Triage.Priority()
		if pi != pj {
			return pi < pj
		}
		return out[i].CurrentHealth < out[j].CurrentHealth
	})
	return out
}
