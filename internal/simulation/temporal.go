package simulation

import (
	"math/rand"
	"sort"
	"time"

	"github.com/banton/medical-patients-sub001/internal/models"
)

// GeneratorParams configures one casualty-stream generation.
type GeneratorParams struct {
	Days          int
	TotalPatients int
	BaseDate      time.Time
	// WarfareWeights maps active warfare types to relative weight.
	WarfareWeights map[models.WarfareType]float64
	Intensity      string
	Tempo          string
	Environmental  []string
	SpecialEvents  []string
}

// TemporalGenerator produces the time-ordered casualty event stream. The
// emitted counts always sum to exactly TotalPatients.
type TemporalGenerator struct {
	cat *Catalog
	rng *rand.Rand
}

// NewTemporalGenerator builds a generator over the catalog archetypes.
func NewTemporalGenerator(cat *Catalog, rng *rand.Rand) *TemporalGenerator {
	return &TemporalGenerator{cat: cat, rng: rng}
}

// Generate runs the full pipeline: day distribution, special-event
// reservation, warfare-type split, hourly archetype shaping, event
// clustering, environmental modifiers, and the conservation sweep.
func (g *TemporalGenerator) Generate(params GeneratorParams) []models.CasualtyEvent {
	if params.Days <= 0 {
		params.Days = 1
	}
	if params.TotalPatients <= 0 {
		return nil
	}
	if len(params.WarfareWeights) == 0 {
		params.WarfareWeights = map[models.WarfareType]float64{models.WarfareConventional: 1}
	}

	intensity := g.cat.IntensityScale[params.Intensity]
	if intensity == 0 {
		intensity = 1
	}

	dayTotals := g.distributeAcrossDays(params.Days, params.TotalPatients, params.Tempo)

	var events []models.CasualtyEvent
	for day := 0; day < params.Days; day++ {
		remaining := dayTotals[day]
		if remaining == 0 {
			continue
		}

		special, reserved := g.specialEvents(day, remaining, params)
		events = append(events, special...)
		remaining -= reserved

		byWarfare := g.splitByWarfare(remaining, params.WarfareWeights)
		for _, wt := range sortedWarfareTypes(byWarfare) {
			count := byWarfare[wt]
			if count == 0 {
				continue
			}
			hourly := g.hourlyDistribution(wt, count)
			hourly = capMidnight(hourly, count)
			events = append(events, g.clusterHours(wt, day, hourly, intensity, params)...)
		}
	}

	events = g.applyEnvironment(events, params.Environmental)

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	return g.conserve(events, params.TotalPatients)
}

// distributeAcrossDays shares the cohort across days proportionally to the
// tempo profile, pushing rounding residue onto the peak days.
func (g *TemporalGenerator) distributeAcrossDays(days, total int, tempo string) []int {
	profile := g.cat.TempoProfiles[tempo]
	if len(profile) == 0 {
		profile = []float64{1}
	}

	weights := make([]float64, days)
	var sum float64
	for d := 0; d < days; d++ {
		weights[d] = profile[d%len(profile)]
		sum += weights[d]
	}

	counts := make([]int, days)
	assigned := 0
	for d := 0; d < days; d++ {
		counts[d] = int(float64(total) * weights[d] / sum)
		assigned += counts[d]
	}

	// Residual goes to the heaviest days first.
	order := make([]int, days)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return weights[order[i]] > weights[order[j]] })
	for i := 0; assigned < total; i = (i + 1) % days {
		counts[order[i]]++
		assigned++
	}
	return counts
}

// specialEvents reserves part of a day's load for templated events:
// a 20% chance of a mass-casualty incident taking 5-15% of the day,
// a major offensive on day 2, and ambushes when requested.
func (g *TemporalGenerator) specialEvents(day, dayTotal int, params GeneratorParams) ([]models.CasualtyEvent, int) {
	var events []models.CasualtyEvent
	reserved := 0
	dayStart := params.BaseDate.AddDate(0, 0, day)

	emit := func(tag string, share float64, hour int) {
		count := int(float64(dayTotal) * share)
		if count < 1 || reserved+count >= dayTotal {
			return
		}
		events = append(events, models.CasualtyEvent{
			Timestamp:    dayStart.Add(time.Duration(hour)*time.Hour + time.Duration(g.rng.Intn(60))*time.Minute),
			PatientCount: count,
			Warfare:      models.WarfareConventional,
			MassCasualty: true,
			SpecialEvent: tag,
		})
		reserved += count
	}

	if g.rng.Float64() < 0.20 {
		share := 0.05 + g.rng.Float64()*0.10
		emit("mass_casualty", share, 6+g.rng.Intn(12))
	}
	for _, se := range params.SpecialEvents {
		switch se {
		case "major_offensive":
			if day == 1 {
				emit("major_offensive", 0.20, 5)
			}
		case "ambush":
			if day%3 == 0 {
				emit("ambush", 0.08, 4+g.rng.Intn(3))
			}
		}
	}
	return events, reserved
}

// splitByWarfare shares a count across active types proportionally to
// normalized weights, largest first; the last type absorbs the residual.
func (g *TemporalGenerator) splitByWarfare(count int, weights map[models.WarfareType]float64) map[models.WarfareType]int {
	types := make([]models.WarfareType, 0, len(weights))
	var sum float64
	for wt, w := range weights {
		if w > 0 {
			types = append(types, wt)
			sum += w
		}
	}
	sort.SliceStable(types, func(i, j int) bool {
		if weights[types[i]] != weights[types[j]] {
			return weights[types[i]] > weights[types[j]]
		}
		return types[i] < types[j]
	})

	out := make(map[models.WarfareType]int, len(types))
	assigned := 0
	for i, wt := range types {
		if i == len(types)-1 {
			out[wt] = count - assigned
			break
		}
		c := int(float64(count) * weights[wt] / sum)
		out[wt] = c
		assigned += c
	}
	return out
}

func sortedWarfareTypes(m map[models.WarfareType]int) []models.WarfareType {
	types := make([]models.WarfareType, 0, len(m))
	for wt := range m {
		types = append(types, wt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// hourlyDistribution shapes a day's count for one warfare type across 24
// hours according to its archetype.
func (g *TemporalGenerator) hourlyDistribution(wt models.WarfareType, count int) [24]int {
	arch, ok := g.cat.Archetypes[wt]
	if !ok {
		arch = ArchetypeParams{Archetype: "sustained", PeakMultiplier: 1.5, NightReduction: 0.5}
	}
	switch arch.Archetype {
	case "surge":
		return g.surgeHours(arch, count)
	case "sporadic":
		return g.sporadicHours(arch, count)
	case "precision_strike":
		return g.strikeHours(arch, count)
	case "phased_assault":
		return g.phasedHours(arch, count)
	default:
		return g.sustainedHours(arch, count)
	}
}

// sustainedHours weights peak hours up and night hours down, with
// anti-clustering on 0-5 and 22-23.
func (g *TemporalGenerator) sustainedHours(arch ArchetypeParams, count int) [24]int {
	peak := make(map[int]bool, len(arch.PeakHours))
	for _, h := range arch.PeakHours {
		peak[h] = true
	}
	peakMult := arch.PeakMultiplier
	if peakMult == 0 {
		peakMult = 2.0
	}
	night := arch.NightReduction
	if night == 0 {
		night = 0.3
	}

	var weights [24]float64
	for h := 0; h < 24; h++ {
		w := 1.0
		if peak[h] {
			w = peakMult
		}
		if h <= 5 || h >= 22 {
			w *= night
		}
		weights[h] = w
	}
	return distributeByWeights(count, weights, g.rng)
}

// surgeHours concentrates 80% of the load into 1-3 surge windows on the
// preferred hours, with an inter-surge trickle.
func (g *TemporalGenerator) surgeHours(arch ArchetypeParams, count int) [24]int {
	lo, hi := arch.SurgesPerDay[0], arch.SurgesPerDay[1]
	if lo < 1 {
		lo = 1
	}
	if hi < lo {
		hi = lo + 2
	}
	surges := lo + g.rng.Intn(hi-lo+1)

	preferred := arch.PeakHours
	if len(preferred) == 0 {
		preferred = []int{6, 12, 18}
	}

	var weights [24]float64
	for i := 0; i < 24; i++ {
		weights[i] = 0.05 // trickle
	}
	for s := 0; s < surges; s++ {
		h := preferred[g.rng.Intn(len(preferred))]
		weights[h] += 4.0
		if h+1 < 24 {
			weights[h+1] += 2.0
		}
	}
	return distributeByWeights(count, weights, g.rng)
}

// sporadicHours spreads 5-12 discrete clumps weighted toward dawn and dusk.
func (g *TemporalGenerator) sporadicHours(arch ArchetypeParams, count int) [24]int {
	lo, hi := arch.EventsPerDay[0], arch.EventsPerDay[1]
	if lo < 1 {
		lo = 5
	}
	if hi < lo {
		hi = 12
	}
	clumps := lo + g.rng.Intn(hi-lo+1)

	var weights [24]float64
	for i := 0; i < clumps; i++ {
		h := g.rng.Intn(24)
		// Bias toward dawn (5-7) and dusk (17-19).
		if g.rng.Float64() < 0.5 {
			if g.rng.Float64() < 0.5 {
				h = 5 + g.rng.Intn(3)
			} else {
				h = 17 + g.rng.Intn(3)
			}
		}
		weights[h] += 1
	}
	return distributeByWeights(count, weights, g.rng)
}

// strikeHours places discrete strikes by daylight preference with jitter.
func (g *TemporalGenerator) strikeHours(arch ArchetypeParams, count int) [24]int {
	lo, hi := arch.EventsPerDay[0], arch.EventsPerDay[1]
	if lo < 1 {
		lo = 2
	}
	if hi < lo {
		hi = lo + 3
	}
	strikes := lo + g.rng.Intn(hi-lo+1)

	var weights [24]float64
	for i := 0; i < strikes; i++ {
		var h int
		if g.rng.Float64() < arch.DaylightPref {
			h = 6 + g.rng.Intn(13) // 6..18
		} else {
			h = (19 + g.rng.Intn(11)) % 24 // 19..23, 0..5
		}
		h = (h + g.rng.Intn(3) - 1 + 24) % 24 // jitter
		weights[h] += 1
	}
	return distributeByWeights(count, weights, g.rng)
}

// phasedHours loads the configured assault phases, with a baseline between.
func (g *TemporalGenerator) phasedHours(arch ArchetypeParams, count int) [24]int {
	var weights [24]float64
	for i := 0; i < 24; i++ {
		weights[i] = 0.1
	}
	phases := arch.PhaseHours
	if len(phases) == 0 {
		phases = [][2]int{{5, 8}, {16, 19}}
	}
	for _, ph := range phases {
		for h := ph[0]; h <= ph[1] && h < 24; h++ {
			weights[h] += 3.0
		}
	}
	return distributeByWeights(count, weights, g.rng)
}

func distributeByWeights(count int, weights [24]float64, rng *rand.Rand) [24]int {
	var hours [24]int
	var sum float64
	for _, w := range weights {
		sum += w
	}
	if sum == 0 {
		weights[12] = 1
		sum = 1
	}
	assigned := 0
	for h := 0; h < 24; h++ {
		n := int(float64(count) * weights[h] / sum)
		hours[h] += n
		assigned += n
	}
	// Remainder lands on weighted random hours.
	for assigned < count {
		r := rng.Float64() * sum
		for h := 0; h < 24; h++ {
			r -= weights[h]
			if r <= 0 {
				hours[h]++
				assigned++
				break
			}
		}
	}
	return hours
}

// capMidnight redistributes any hour-0 load above 10% of the daily total
// into daytime hours 6-18.
func capMidnight(hours [24]int, dayTotal int) [24]int {
	limit := dayTotal / 10
	if hours[0] <= limit {
		return hours
	}
	excess := hours[0] - limit
	hours[0] = limit
	for i := 0; excess > 0; i++ {
		hours[6+(i%13)]++
		excess--
	}
	return hours
}

// clusterHours turns hourly counts into casualty events: a mass-casualty
// chance emits one clustered event, the rest fall in groups of 1-3 at
// distinct random times inside the hour.
func (g *TemporalGenerator) clusterHours(wt models.WarfareType, day int, hours [24]int, intensity float64, params GeneratorParams) []models.CasualtyEvent {
	arch := g.cat.Archetypes[wt]
	dayStart := params.BaseDate.AddDate(0, 0, day)

	var events []models.CasualtyEvent
	for h := 0; h < 24; h++ {
		remaining := hours[h]
		if remaining == 0 {
			continue
		}
		hourStart := dayStart.Add(time.Duration(h) * time.Hour)
		usedSeconds := make(map[int]bool)

		timestamp := func() time.Time {
			for {
				sec := g.rng.Intn(3600)
				if !usedSeconds[sec] {
					usedSeconds[sec] = true
					return hourStart.Add(time.Duration(sec) * time.Second)
				}
			}
		}

		mcp := arch.MassCasualtyP * intensity
		if remaining >= arch.ClusterRange[0] && g.rng.Float64() < mcp {
			size := arch.ClusterRange[0]
			if spread := arch.ClusterRange[1] - arch.ClusterRange[0]; spread > 0 {
				size += g.rng.Intn(spread + 1)
			}
			if size > remaining {
				size = remaining
			}
			events = append(events, models.CasualtyEvent{
				Timestamp:    timestamp(),
				PatientCount: size,
				Warfare:      wt,
				MassCasualty: true,
			})
			remaining -= size
		}

		for remaining > 0 {
			size := 1 + g.rng.Intn(3)
			if size > remaining {
				size = remaining
			}
			events = append(events, models.CasualtyEvent{
				Timestamp:    timestamp(),
				PatientCount: size,
				Warfare:      wt,
			})
			remaining -= size
		}
	}
	return events
}

// applyEnvironment scales event counts by the compositional casualty
// multiplier and delays discovery under low-visibility conditions.
func (g *TemporalGenerator) applyEnvironment(events []models.CasualtyEvent, conditions []string) []models.CasualtyEvent {
	if len(conditions) == 0 {
		return events
	}
	multiplier := 1.0
	lowVisibility := false
	for _, cond := range conditions {
		if mod, ok := g.cat.Environments[cond]; ok {
			if mod.CasualtyMultiplier > 0 {
				multiplier *= mod.CasualtyMultiplier
			}
			if mod.LowVisibility {
				lowVisibility = true
			}
		}
	}

	for i := range events {
		scaled := int(float64(events[i].PatientCount) * multiplier)
		if scaled < 1 {
			scaled = 1
		}
		events[i].PatientCount = scaled
		events[i].Environmental = append([]string(nil), conditions...)
		if lowVisibility {
			delay := time.Duration(g.rng.Intn(31)) * time.Minute
			events[i].Timestamp = events[i].Timestamp.Add(delay)
		}
	}
	return events
}

// conserve adjusts the final events so counts sum to exactly total.
func (g *TemporalGenerator) conserve(events []models.CasualtyEvent, total int) []models.CasualtyEvent {
	sum := 0
	for _, e := range events {
		sum += e.PatientCount
	}
	delta := total - sum
	for delta != 0 && len(events) > 0 {
		last := &events[len(events)-1]
		adjusted := last.PatientCount + delta
		if adjusted >= 1 {
			last.PatientCount = adjusted
			delta = 0
		} else {
			// Last event absorbed entirely; keep removing until balanced.
			delta += last.PatientCount
			events = events[:len(events)-1]
		}
	}
	return events
}
