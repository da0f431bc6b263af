package simulation

import (
	"math"
	"math/rand"

	"github.com/banton/medical-patients-sub001/internal/models"
)

// HealthStatus labels a health value for timeline reporting.
func HealthStatus(health float64) string {
	switch {
	case health <= 0:
		return "dead"
	case health < 10:
		return "critical"
	case health < 40:
		return "unstable"
	case health < 70:
		return "stable"
	default:
		return "good"
	}
}

// TimelineModifier scales the deterioration rate from its start hour onward.
type TimelineModifier struct {
	Name      string
	StartHour float64
	Factor    float64
}

// TimelineEntry is one hour of a projected health timeline.
type TimelineEntry struct {
	Hour          int     `json:"hour"`
	Health        float64 `json:"health"`
	Status        string  `json:"status"`
	EffectiveRate float64 `json:"effective_rate"`
}

// HealthEngine computes initial health and integrates health over time.
type HealthEngine struct {
	cat *Catalog
	det *DeteriorationCalculator
	rng *rand.Rand
}

// NewHealthEngine builds a health engine. The rand source must be the
// per-run seeded generator so results reproduce.
func NewHealthEngine(cat *Catalog, det *DeteriorationCalculator, rng *rand.Rand) *HealthEngine {
	return &HealthEngine{cat: cat, det: det, rng: rng}
}

// InitialHealth samples initial health for (injury, severity), with
// condition-specific overrides taking precedence.
func (h *HealthEngine) InitialHealth(injury models.InjuryType, severity int, trueCondition string) float64 {
	band := models.BandForSeverity(severity)

	if trueCondition != "" {
		if hb, ok := h.cat.ConditionOverrides[trueCondition]; ok {
			return h.sample(hb)
		}
	}
	if bands, ok := h.cat.HealthBands[injury]; ok {
		if hb, ok := bands[band]; ok {
			return h.sample(hb)
		}
	}
	// Unknown (type, severity): fall back to severity-number bucketing.
	var lo, hi float64
	switch {
	case severity >= 9:
		lo, hi = 30, 50
	case severity >= 7:
		lo, hi = 50, 65
	case severity >= 4:
		lo, hi = 70, 85
	default:
		lo, hi = 85, 95
	}
	return models.ClampHealth(lo + h.rng.Float64()*(hi-lo))
}

func (h *HealthEngine) sample(hb HealthBand) float64 {
	lo := hb.Mean - hb.Variance
	hi := hb.Mean + hb.Variance
	return models.ClampHealth(lo + h.rng.Float64()*(hi-lo))
}

// goldenRamp returns the post-golden-hour acceleration factor at elapsed
// hours since injury.
func (h *HealthEngine) goldenRamp(elapsedHours float64) float64 {
	goldenHours := h.cat.GoldenHourMinutes / 60
	if elapsedHours <= goldenHours {
		return 1.0
	}
	frac := (elapsedHours - goldenHours) / h.cat.RampHours
	if frac > 1 {
		frac = 1
	}
	return 1.0 + (h.cat.RampCap-1.0)*frac
}

// CalculateTimeline integrates hour-by-hour health from an initial value
// derived from (injury, severity), at baseRate scaled by modifiers, the
// golden-hour ramp, and optional cliff events. Stops when health hits 0.
func (h *HealthEngine) CalculateTimeline(injury models.InjuryType, severity int, hours int, baseRate float64, modifiers []TimelineModifier) []TimelineEntry {
	health := h.InitialHealth(injury, severity, "")
	entries := make([]TimelineEntry, 0, hours)

	for hour := 0; hour < hours; hour++ {
		rate := baseRate
		for _, m := range modifiers {
			if m.StartHour <= float64(hour) {
				rate *= m.Factor
			}
		}
		rate *= h.goldenRamp(float64(hour))

		if h.cat.CliffEnabled && health > h.cat.CliffBandLow && health < h.cat.CliffBandHigh {
			if h.rng.Float64() < h.cat.CliffProbability {
				drop := 15 + h.rng.Float64()*15
				health = models.ClampHealth(health - drop)
			}
		}

		health = models.ClampHealth(health - rate)
		entries = append(entries, TimelineEntry{
			Hour:          hour,
			Health:        health,
			Status:        HealthStatus(health),
			EffectiveRate: rate,
		})
		if health <= 0 {
			break
		}
	}
	return entries
}

// triageRateMultiplier adjusts deterioration by triage category. Expectant
// patients receive minimal care and fade faster; minimal patients are stable.
func triageRateMultiplier(t models.TriageCategory) float64 {
	switch t {
	case models.TriageImmediate:
		return 1.1
	case models.TriageMinimal:
		return 0.8
	case models.TriageExpectant:
		return 1.3
	default:
		return 1.0
	}
}

// treatmentRateModifier returns the best (lowest) deterioration factor among
// the patient's applied treatments. An effective treatment slows loss.
func (h *HealthEngine) treatmentRateModifier(p *models.Patient) float64 {
	best := 1.0
	for _, t := range p.Treatments {
		info, ok := h.cat.Treatments[t.Name]
		if !ok {
			continue
		}
		factor := 1.0 - 0.7*info.Effectiveness
		if factor < best {
			best = factor
		}
	}
	return best
}

// Deteriorate applies sub-hour deterioration to a patient: effective rate is
// base x environment x triage x best treatment modifier x golden ramp,
// prorated to minutes. Returns the new health.
func (h *HealthEngine) Deteriorate(p *models.Patient, minutes float64, elapsedSinceInjury float64, conditions []string) float64 {
	descs := []string{p.BodyPart, string(p.InjuryType)}
	rate := h.det.BaseRate(p.InjuryType, p.Band, descs)
	rate = h.det.Environmental(rate, conditions)
	rate *= triageRateMultiplier(p.Triage)
	rate *= h.treatmentRateModifier(p)
	rate *= h.goldenRamp(elapsedSinceInjury / 60)

	p.CurrentHealth = models.ClampHealth(p.CurrentHealth - rate/60*minutes)
	return p.CurrentHealth
}

// Recover adds health at ratePerHour for the given minutes, capped at 100.
// Recovery happens at Role2 and above; the caller gates on facility.
func (h *HealthEngine) Recover(p *models.Patient, minutes, ratePerHour float64) float64 {
	p.CurrentHealth = models.ClampHealth(p.CurrentHealth + ratePerHour/60*minutes)
	return p.CurrentHealth
}

// ApplyTreatmentEffect raises health according to treatment effectiveness
// and severity. Returns (before, after).
func (h *HealthEngine) ApplyTreatmentEffect(p *models.Patient, treatment string) (float64, float64) {
	before := p.CurrentHealth
	info, ok := h.cat.Treatments[treatment]
	if !ok {
		return before, before
	}
	// Severe patients gain more from critical interventions.
	gain := info.Effectiveness * 12
	if info.Critical && (p.Band == models.BandSevere || p.Band == models.BandCritical) {
		gain *= 1.4
	}
	p.CurrentHealth = models.ClampHealth(before + gain)
	return before, p.CurrentHealth
}

// ProjectedDeathHours estimates hours until death at a constant rate,
// ignoring the ramp. Used for expectant projections.
func ProjectedDeathHours(health, rate float64) float64 {
	if rate <= 0 {
		return math.Inf(1)
	}
	return health / rate
}
