package simulation

import (
	"time"

	"github.com/banton/medical-patients-sub001/internal/models"
)

// DeathCategory is the doctrinal classification of a fatality.
type DeathCategory string

const (
	DeathKIA       DeathCategory = "KIA"
	DeathDOW       DeathCategory = "DOW"
	DeathDNB       DeathCategory = "DNB"
	DeathNonBattle DeathCategory = "NON_BATTLE_DEATH"
)

// DeathInfo is the input to classification.
type DeathInfo struct {
	PatientID      string
	InjuryType     models.InjuryType
	Location       string
	TimeOfDeath    time.Time
	InjuredAt      time.Time
	InitialHealth  float64
	TreatmentCount int
	Cause          string
}

// DeathRecord is one tracked fatality.
type DeathRecord struct {
	PatientID     string        `json:"patient_id"`
	Category      DeathCategory `json:"category"`
	TimeOfDeath   time.Time     `json:"time_of_death"`
	Location      string        `json:"location"`
	Preventable   bool          `json:"preventable"`
	InjuryType    models.InjuryType `json:"injury_type"`
	InitialHealth float64       `json:"initial_health"`
	Cause         string        `json:"cause,omitempty"`
}

// DeathStatistics aggregates tracked deaths.
type DeathStatistics struct {
	Total            int                   `json:"total"`
	ByCategory       map[DeathCategory]int `json:"by_category"`
	PreventableCount int                   `json:"preventable_count"`
	PreventableRatio float64               `json:"preventable_ratio"`
}

// DeathTracker classifies and aggregates fatalities for one run.
type DeathTracker struct {
	records []DeathRecord
}

// NewDeathTracker builds an empty tracker.
func NewDeathTracker() *DeathTracker { return &DeathTracker{} }

// Categorize classifies a death: battle injury at POI is KIA; battle injury
// in the chain or in transit is DOW; disease is DNB; the rest are non-battle
// deaths.
func (dt *DeathTracker) Categorize(info DeathInfo) DeathCategory {
	if info.InjuryType == models.InjuryDisease {
		return DeathDNB
	}
	if info.InjuryType == models.InjuryBattle {
		if info.Location == "POI" {
			return DeathKIA
		}
		switch info.Location {
		case "Role1", "Role2", "Role3", "Role4", "CSU", models.LocationInTransit:
			return DeathDOW
		}
		return DeathKIA
	}
	return DeathNonBattle
}

// Track records a death. Preventability: the patient started viable
// (initial health >= 20), died inside the golden hour, and received no
// treatment.
func (dt *DeathTracker) Track(info DeathInfo) DeathRecord {
	minutesToDeath := info.TimeOfDeath.Sub(info.InjuredAt).Minutes()
	record := DeathRecord{
		PatientID:     info.PatientID,
		Category:      dt.Categorize(info),
		TimeOfDeath:   info.TimeOfDeath,
		Location:      info.Location,
		InjuryType:    info.InjuryType,
		InitialHealth: info.InitialHealth,
		Cause:         info.Cause,
		Preventable: info.InitialHealth >= 20 &&
			minutesToDeath <= 60 &&
			info.TreatmentCount == 0,
	}
	dt.records = append(dt.records, record)
	return record
}

// Records returns all tracked deaths.
func (dt *DeathTracker) Records() []DeathRecord { return dt.records }

// Statistics aggregates totals by category and preventability.
func (dt *DeathTracker) Statistics() DeathStatistics {
	stats := DeathStatistics{ByCategory: make(map[DeathCategory]int)}
	for _, r := range dt.records {
		stats.Total++
		stats.ByCategory[r.Category]++
		if r.Preventable {
			stats.PreventableCount++
		}
	}
	if stats.Total > 0 {
		stats.PreventableRatio = float64(stats.PreventableCount) / float64(stats.Total)
	}
	return stats
}
