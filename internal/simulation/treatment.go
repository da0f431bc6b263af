package simulation

import (
	"math"
	"math/rand"
	"sort"

	"github.com/banton/medical-patients-sub001/internal/models"
)

// Utility weights for the multi-attribute treatment score.
const (
	weightAppropriateness = 0.35
	weightUrgency         = 0.25
	weightEffectiveness   = 0.20
	weightAvailability    = 0.15
	weightCapability      = 0.05

	utilityFloor       = 0.2
	softmaxTemperature = 0.5
)

// ScoredTreatment pairs a candidate treatment with its utility.
type ScoredTreatment struct {
	Name    string  `json:"name"`
	Utility float64 `json:"utility"`
}

// TreatmentSelector picks treatments by multi-attribute utility with
// softmax sampling. Deterministic given the seeded rand source.
type TreatmentSelector struct {
	cat       *Catalog
	protocols *ProtocolCatalog
	rng       *rand.Rand
}

// NewTreatmentSelector builds a selector.
func NewTreatmentSelector(cat *Catalog, protocols *ProtocolCatalog, rng *rand.Rand) *TreatmentSelector {
	return &TreatmentSelector{cat: cat, protocols: protocols, rng: rng}
}

// Score computes the utility of one treatment for the given context.
// Contraindicated treatments must be filtered before calling.
func (s *TreatmentSelector) Score(treatment, code, facility string, band models.SeverityBand, elapsedMinutes float64, resources map[string]float64) float64 {
	info, known := s.cat.Treatments[treatment]

	appropriateness := 0.3
	if row, ok := s.cat.Appropriateness[code]; ok {
		if v, ok := row[treatment]; ok {
			appropriateness = v
		}
	}

	urgency := 0.8
	if known && info.GoldenWindow > 0 {
		lambda := math.Ln2 / info.GoldenWindow
		urgency = math.Exp(-lambda * elapsedMinutes)
	}

	effectiveness := 0.5
	if known {
		effectiveness = info.Effectiveness
		if info.Critical && (band == models.BandSevere || band == models.BandCritical) {
			effectiveness = math.Min(1, effectiveness*1.2)
		}
	}

	availability := 1.0
	if resources != nil {
		if supply, ok := resources[treatment]; ok {
			availability = math.Max(0, math.Min(1, supply))
		}
	}

	capability := 0.0
	if known && treatmentAvailableAt(info, facility) {
		capability = 1.0
	}

	return weightAppropriateness*appropriateness +
		weightUrgency*urgency +
		weightEffectiveness*effectiveness +
		weightAvailability*availability +
		weightCapability*capability
}

func treatmentAvailableAt(info TreatmentInfo, facility string) bool {
	for _, f := range info.Facilities {
		if f == "all" || f == facilityEchelon(facility) {
			return true
		}
	}
	return false
}

// Select picks up to maxN treatments for (code, band) at a facility.
// Candidates come from the protocol catalog; contraindications are
// hard-filtered before scoring; candidates below the utility floor are
// dropped; selection is softmax sampling without replacement.
func (s *TreatmentSelector) Select(code string, band models.SeverityBand, facility string, elapsedMinutes float64, resources map[string]float64, maxN int) []ScoredTreatment {
	severe := band == models.BandSevere || band == models.BandCritical
	candidates := s.protocols.GetAppropriate(code, facility, severe, elapsedMinutes, "")

	scored := make([]ScoredTreatment, 0, len(candidates))
	for _, t := range candidates {
		if s.protocols.Contraindicated(code, t) {
			continue
		}
		u := s.Score(t, code, facility, band, elapsedMinutes, resources)
		if u >= utilityFloor {
			scored = append(scored, ScoredTreatment{Name: t, Utility: u})
		}
	}

	if len(scored) == 0 {
		if fb := s.fallback(code, facility); fb != "" {
			return []ScoredTreatment{{Name: fb, Utility: utilityFloor}}
		}
		return nil
	}

	// Deterministic candidate order before sampling: utility desc, then name.
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Utility != scored[j].Utility {
			return scored[i].Utility > scored[j].Utility
		}
		return scored[i].Name < scored[j].Name
	})

	if maxN <= 0 || maxN > len(scored) {
		maxN = len(scored)
	}

	selected := make([]ScoredTreatment, 0, maxN)
	remaining := append([]ScoredTreatment(nil), scored...)
	for len(selected) < maxN && len(remaining) > 0 {
		idx := s.softmaxDraw(remaining)
		selected = append(selected, remaining[idx])
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	return selected
}

// softmaxDraw samples an index with probability softmax(utility / T).
func (s *TreatmentSelector) softmaxDraw(candidates []ScoredTreatment) int {
	weights := make([]float64, len(candidates))
	var sum float64
	for i, c := range candidates {
		w := math.Exp(c.Utility / softmaxTemperature)
		weights[i] = w
		sum += w
	}
	r := s.rng.Float64() * sum
	for i, w := range weights {
		r -= w
		if r <= 0 {
			return i
		}
	}
	return len(candidates) - 1
}

// SelectionProbabilities exposes the normalized softmax distribution over
// candidates above the utility floor. Used by reporting and tests.
func (s *TreatmentSelector) SelectionProbabilities(candidates []ScoredTreatment) map[string]float64 {
	probs := make(map[string]float64, len(candidates))
	var sum float64
	for _, c := range candidates {
		sum += math.Exp(c.Utility / softmaxTemperature)
	}
	if sum == 0 {
		return probs
	}
	for _, c := range candidates {
		probs[c.Name] = math.Exp(c.Utility/softmaxTemperature) / sum
	}
	return probs
}

func (s *TreatmentSelector) fallback(code, facility string) string {
	if StressConditionCodes[code] {
		return "psychological_first_aid"
	}
	if fb, ok := s.cat.FallbackTreatments[facilityEchelon(facility)]; ok {
		return fb
	}
	return ""
}
