package simulation

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banton/medical-patients-sub001/internal/models"
)

func newTemporalGenerator(seed int64) *TemporalGenerator {
	return NewTemporalGenerator(DefaultCatalog(), rand.New(rand.NewSource(seed)))
}

func countPatients(events []models.CasualtyEvent) int {
	total := 0
	for _, e := range events {
		total += e.PatientCount
	}
	return total
}

func TestGenerateConservation(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		params GeneratorParams
	}{
		{"single day conventional", GeneratorParams{
			Days: 1, TotalPatients: 100, BaseDate: base,
		}},
		{"multi day mixed warfare", GeneratorParams{
			Days: 8, TotalPatients: 1440, BaseDate: base,
			WarfareWeights: map[models.WarfareType]float64{
				models.WarfareConventional: 0.5,
				models.WarfareArtillery:    0.3,
				models.WarfareGuerrilla:    0.2,
			},
			Intensity: "high", Tempo: "escalating",
		}},
		{"environment scaling", GeneratorParams{
			Days: 3, TotalPatients: 250, BaseDate: base,
			Environmental: []string{"night_ops", "rain"},
		}},
		{"special events", GeneratorParams{
			Days: 4, TotalPatients: 500, BaseDate: base,
			SpecialEvents: []string{"major_offensive", "ambush"},
			Tempo:         "pulsed",
		}},
		{"tiny cohort", GeneratorParams{
			Days: 5, TotalPatients: 3, BaseDate: base,
		}},
	}
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := newTemporalGenerator(int64(i + 1))
			events := g.Generate(tc.params)
			assert.Equal(t, tc.params.TotalPatients, countPatients(events))
			for _, e := range events {
				assert.GreaterOrEqual(t, e.PatientCount, 1)
			}
		})
	}

	t.Run("zero patients", func(t *testing.T) {
		g := newTemporalGenerator(1)
		assert.Nil(t, g.Generate(GeneratorParams{Days: 2, BaseDate: base}))
	})
}

func TestGenerateOrderingAndDeterminism(t *testing.T) {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	params := GeneratorParams{
		Days: 5, TotalPatients: 600, BaseDate: base,
		WarfareWeights: map[models.WarfareType]float64{
			models.WarfareConventional: 0.7,
			models.WarfareArtillery:    0.3,
		},
		Intensity: "medium", Tempo: "sustained",
	}

	t.Run("chronological order", func(t *testing.T) {
		events := newTemporalGenerator(11).Generate(params)
		require.NotEmpty(t, events)
		for i := 1; i < len(events); i++ {
			assert.False(t, events[i].Timestamp.Before(events[i-1].Timestamp))
		}
	})

	t.Run("same seed, same stream", func(t *testing.T) {
		a := newTemporalGenerator(42).Generate(params)
		b := newTemporalGenerator(42).Generate(params)
		assert.Equal(t, a, b)
	})

	t.Run("environment tags carried on events", func(t *testing.T) {
		p := params
		p.Environmental = []string{"fog"}
		events := newTemporalGenerator(13).Generate(p)
		require.NotEmpty(t, events)
		assert.Equal(t, []string{"fog"}, events[0].Environmental)
	})
}

func TestDistributeAcrossDays(t *testing.T) {
	g := newTemporalGenerator(1)

	t.Run("sums to total", func(t *testing.T) {
		counts := g.distributeAcrossDays(7, 1000, "escalating")
		sum := 0
		for _, c := range counts {
			sum += c
		}
		assert.Equal(t, 1000, sum)
	})

	t.Run("escalating tempo loads late days", func(t *testing.T) {
		counts := g.distributeAcrossDays(7, 700, "escalating")
		assert.Greater(t, counts[6], counts[0])
	})

	t.Run("unknown tempo is uniform-ish", func(t *testing.T) {
		counts := g.distributeAcrossDays(4, 400, "nope")
		for _, c := range counts {
			assert.Equal(t, 100, c)
		}
	})
}

func TestSplitByWarfare(t *testing.T) {
	g := newTemporalGenerator(1)

	out := g.splitByWarfare(100, map[models.WarfareType]float64{
		models.WarfareConventional: 0.6,
		models.WarfareArtillery:    0.4,
	})
	sum := 0
	for _, c := range out {
		sum += c
	}
	assert.Equal(t, 100, sum)
	assert.Equal(t, 60, out[models.WarfareConventional])
	assert.Equal(t, 40, out[models.WarfareArtillery])

	t.Run("zero weights skipped", func(t *testing.T) {
		out := g.splitByWarfare(50, map[models.WarfareType]float64{
			models.WarfareConventional: 1,
			models.WarfareArtillery:    0,
		})
		assert.Equal(t, 50, out[models.WarfareConventional])
		_, present := out[models.WarfareArtillery]
		assert.False(t, present)
	})
}

func TestCapMidnight(t *testing.T) {
	var hours [24]int
	hours[0] = 40
	hours[12] = 60

	capped := capMidnight(hours, 100)
	assert.Equal(t, 10, capped[0])

	sum := 0
	for _, c := range capped {
		sum += c
	}
	assert.Equal(t, 100, sum)

	t.Run("under the cap untouched", func(t *testing.T) {
		var h [24]int
		h[0] = 5
		h[12] = 95
		assert.Equal(t, h, capMidnight(h, 100))
	})
}

func TestDistributeByWeights(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	t.Run("sums to count", func(t *testing.T) {
		var weights [24]float64
		for i := range weights {
			weights[i] = 1
		}
		hours := distributeByWeights(97, weights, rng)
		sum := 0
		for _, c := range hours {
			sum += c
		}
		assert.Equal(t, 97, sum)
	})

	t.Run("zero weights fall to noon", func(t *testing.T) {
		var weights [24]float64
		hours := distributeByWeights(10, weights, rng)
		assert.Equal(t, 10, hours[12])
	})
}
