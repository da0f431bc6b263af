package simulation

import (
	"strings"

	"github.com/banton/medical-patients-sub001/internal/models"
)

// InjuryDesc is one injury contributing to a compound deterioration rate.
type InjuryDesc struct {
	Type        models.InjuryType
	Band        models.SeverityBand
	Description string
}

// InterventionPoint marks a health threshold the orchestrator should react to.
type InterventionPoint struct {
	Threshold  float64
	HoursUntil float64
	Category   string
}

// DeteriorationCalculator derives per-hour health loss rates from the
// catalog tables.
type DeteriorationCalculator struct {
	cat *Catalog
}

// NewDeteriorationCalculator builds a calculator over the given catalog.
func NewDeteriorationCalculator(cat *Catalog) *DeteriorationCalculator {
	return &DeteriorationCalculator{cat: cat}
}

// BaseRate returns the catalog rate for (injury type, band), with the
// hemorrhage multiplier applied once if any injury description matches the
// hemorrhage lexicon.
func (d *DeteriorationCalculator) BaseRate(injury models.InjuryType, band models.SeverityBand, descriptions []string) float64 {
	rate := d.lookupRate(injury, band)
	if d.hasHemorrhage(descriptions) {
		rate *= d.cat.HemorrhageMultiplier
	}
	return rate
}

func (d *DeteriorationCalculator) lookupRate(injury models.InjuryType, band models.SeverityBand) float64 {
	if table, ok := d.cat.DeteriorationRates[injury]; ok {
		if r, ok := table[band]; ok {
			return r
		}
	}
	// Unknown type falls back to the battle table; it is the most conservative.
	if r, ok := d.cat.DeteriorationRates[models.InjuryBattle][band]; ok {
		return r
	}
	return 5.0
}

func (d *DeteriorationCalculator) hasHemorrhage(descriptions []string) bool {
	for _, desc := range descriptions {
		lower := strings.ToLower(desc)
		for _, term := range d.cat.HemorrhageLexicon {
			if strings.Contains(lower, term) {
				return true
			}
		}
	}
	return false
}

// Compound combines multiple injuries: the strongest rate is primary and
// each secondary contributes 0.3x. Capped at 100/hour.
func (d *DeteriorationCalculator) Compound(injuries []InjuryDesc) float64 {
	if len(injuries) == 0 {
		return 0
	}
	rates := make([]float64, 0, len(injuries))
	var descs []string
	for _, inj := range injuries {
		rates = append(rates, d.lookupRate(inj.Type, inj.Band))
		descs = append(descs, inj.Description)
	}
	primary, primaryIdx := rates[0], 0
	for i, r := range rates {
		if r > primary {
			primary, primaryIdx = r, i
		}
	}
	total := primary
	for i, r := range rates {
		if i != primaryIdx {
			total += 0.3 * r
		}
	}
	if d.hasHemorrhage(descs) {
		total *= d.cat.HemorrhageMultiplier
	}
	if total > 100 {
		total = 100
	}
	return total
}

// Environmental multiplies the rate by each active condition's modifier.
func (d *DeteriorationCalculator) Environmental(rate float64, conditions []string) float64 {
	for _, cond := range conditions {
		if mod, ok := d.cat.Environments[cond]; ok && mod.DeteriorationMultiplier > 0 {
			rate *= mod.DeteriorationMultiplier
		}
	}
	return rate
}

// StabilizationWindow returns the care windows for an injury, scaled by the
// injury type multiplier (battle 1.0, non-battle 1.5, disease 3.0).
func (d *DeteriorationCalculator) StabilizationWindow(injury models.InjuryType, band models.SeverityBand) WindowTable {
	w, ok := d.cat.Windows[band]
	if !ok {
		w = WindowTable{Platinum10: 10, GoldenHour: 60, MaxSurvivable: 720}
	}
	mult := 1.0
	switch injury {
	case models.InjuryNonBattle:
		mult = 1.5
	case models.InjuryDisease:
		mult = 3.0
	}
	return WindowTable{
		Platinum10:    w.Platinum10 * mult,
		GoldenHour:    w.GoldenHour * mult,
		MaxSurvivable: w.MaxSurvivable * mult,
	}
}

// InterventionPoints projects when health will cross the standard care
// thresholds at a constant rate, most urgent first.
func (d *DeteriorationCalculator) InterventionPoints(rate, initialHealth float64) []InterventionPoint {
	if rate <= 0 {
		return nil
	}
	thresholds := []struct {
		value    float64
		category string
	}{
		{70, "monitor"},
		{40, "urgent_care"},
		{10, "critical_intervention"},
		{0, "death"},
	}
	var points []InterventionPoint
	for _, t := range thresholds {
		if initialHealth <= t.value {
			continue
		}
		points = append(points, InterventionPoint{
			Threshold:  t.value,
			HoursUntil: (initialHealth - t.value) / rate,
			Category:   t.category,
		})
	}
	return points
}
