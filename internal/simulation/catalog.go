package simulation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/banton/medical-patients-sub001/internal/models"
)

// HealthBand holds the initial-health sampling parameters for one
// (injury type, severity band) cell.
type HealthBand struct {
	Mean     float64 `yaml:"mean"`
	Variance float64 `yaml:"variance"`
}

// RateTable maps severity band to base health loss per hour.
type RateTable map[models.SeverityBand]float64

// WindowTable holds stabilization window minutes per severity band.
type WindowTable struct {
	Platinum10      float64 `yaml:"platinum_10"`
	GoldenHour      float64 `yaml:"golden_hour"`
	MaxSurvivable   float64 `yaml:"maximum_survivable"`
}

// ProtocolEntry describes the treatment doctrine for one condition code.
type ProtocolEntry struct {
	Categories      []string            `yaml:"categories"`
	Primary         map[string][]string `yaml:"primary"`   // facility -> treatments
	Secondary       map[string][]string `yaml:"secondary"` // facility -> treatments
	Contraindicated []string            `yaml:"contraindicated"`
	CriticalWindow  float64             `yaml:"critical_window_minutes"`
	Notes           string              `yaml:"notes,omitempty"`
}

// TreatmentInfo holds utility-model attributes for one treatment.
type TreatmentInfo struct {
	Effectiveness float64  `yaml:"effectiveness"`
	GoldenWindow  float64  `yaml:"golden_window_minutes,omitempty"`
	Critical      bool     `yaml:"critical,omitempty"`
	Facilities    []string `yaml:"facilities"` // facility names or "all"
	BodyParts     []string `yaml:"body_parts,omitempty"`
}

// ArchetypeParams configures a warfare-type temporal archetype.
type ArchetypeParams struct {
	Archetype       string    `yaml:"archetype"` // sustained|surge|sporadic|precision_strike|phased_assault
	PeakHours       []int     `yaml:"peak_hours,omitempty"`
	PeakMultiplier  float64   `yaml:"peak_multiplier,omitempty"`
	NightReduction  float64   `yaml:"night_reduction,omitempty"`
	SurgesPerDay    [2]int    `yaml:"surges_per_day,omitempty"`
	EventsPerDay    [2]int    `yaml:"events_per_day,omitempty"`
	DaylightPref    float64   `yaml:"daylight_preference,omitempty"`
	PhaseHours      [][2]int  `yaml:"phase_hours,omitempty"`
	MassCasualtyP   float64   `yaml:"mass_casualty_probability"`
	ClusterRange    [2]int    `yaml:"cluster_range"`
}

// EnvModifier adjusts casualty counts, deterioration, and diagnostics.
type EnvModifier struct {
	CasualtyMultiplier      float64 `yaml:"casualty_multiplier"`
	DeteriorationMultiplier float64 `yaml:"deterioration_multiplier"`
	DiagnosticModifier      float64 `yaml:"diagnostic_modifier"`
	LowVisibility           bool    `yaml:"low_visibility,omitempty"`
}

// Catalog aggregates every read-only simulation table. Loaded once at
// process start; never mutated afterwards. Per-job overrides travel
// in-memory through the flow simulator.
type Catalog struct {
	DeteriorationRates map[models.InjuryType]RateTable              `yaml:"deterioration_rates"`
	HealthBands        map[models.InjuryType]map[models.SeverityBand]HealthBand `yaml:"health_bands"`
	ConditionOverrides map[string]HealthBand                        `yaml:"condition_overrides"`

	HemorrhageMultiplier float64  `yaml:"hemorrhage_multiplier"`
	HemorrhageLexicon    []string `yaml:"hemorrhage_lexicon"`

	Windows map[models.SeverityBand]WindowTable `yaml:"stabilization_windows"`

	GoldenHourMinutes float64 `yaml:"golden_hour_minutes"`
	RampCap           float64 `yaml:"golden_hour_ramp_cap"`
	RampHours         float64 `yaml:"golden_hour_ramp_hours"`

	CliffEnabled     bool    `yaml:"cliff_enabled"`
	CliffProbability float64 `yaml:"cliff_probability"`
	CliffBandLow     float64 `yaml:"cliff_band_low"`
	CliffBandHigh    float64 `yaml:"cliff_band_high"`

	Protocols  map[string]ProtocolEntry  `yaml:"protocols"`
	Treatments map[string]TreatmentInfo  `yaml:"treatments"`
	// Appropriateness[condition][treatment]; 0 means contraindicated.
	Appropriateness map[string]map[string]float64 `yaml:"appropriateness"`
	FallbackTreatments map[string]string          `yaml:"fallback_treatments"` // facility -> treatment

	DiagnosticAccuracy map[string]float64            `yaml:"diagnostic_accuracy"` // facility -> base accuracy
	ConfusionMatrix    map[string]map[string]float64 `yaml:"confusion_matrix"`    // true code -> candidate -> weight
	GenericMisdiagnoses []string                     `yaml:"generic_misdiagnoses"`

	Archetypes   map[models.WarfareType]ArchetypeParams `yaml:"warfare_archetypes"`
	Environments map[string]EnvModifier                 `yaml:"environmental_modifiers"`

	IntensityScale map[string]float64   `yaml:"intensity_scale"` // low|medium|high -> scale
	TempoProfiles  map[string][]float64 `yaml:"tempo_profiles"`  // tempo -> per-day weights (cycled)
}

// LoadCatalog reads a YAML catalog file over the compiled defaults.
// A missing path returns the defaults untouched.
func LoadCatalog(path string) (*Catalog, error) {
	cat := DefaultCatalog()
	if path == "" {
		return cat, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	if err := yaml.Unmarshal(data, cat); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return cat, nil
}

// DefaultCatalog returns the compiled-in simulation tables.
func DefaultCatalog() *Catalog {
	return &Catalog{
		DeteriorationRates: map[models.InjuryType]RateTable{
			models.InjuryBattle: {
				models.BandMild: 2.0, models.BandModerate: 5.0,
				models.BandSevere: 12.0, models.BandCritical: 25.0,
			},
			models.InjuryNonBattle: {
				models.BandMild: 1.0, models.BandModerate: 3.0,
				models.BandSevere: 8.0, models.BandCritical: 15.0,
			},
			models.InjuryDisease: {
				models.BandMild: 0.5, models.BandModerate: 1.5,
				models.BandSevere: 4.0, models.BandCritical: 8.0,
			},
		},
		HealthBands: map[models.InjuryType]map[models.SeverityBand]HealthBand{
			models.InjuryBattle: {
				models.BandMild:     {Mean: 90, Variance: 5},
				models.BandModerate: {Mean: 77, Variance: 8},
				models.BandSevere:   {Mean: 57, Variance: 8},
				models.BandCritical: {Mean: 40, Variance: 10},
			},
			models.InjuryNonBattle: {
				models.BandMild:     {Mean: 92, Variance: 4},
				models.BandModerate: {Mean: 80, Variance: 7},
				models.BandSevere:   {Mean: 62, Variance: 8},
				models.BandCritical: {Mean: 45, Variance: 10},
			},
			models.InjuryDisease: {
				models.BandMild:     {Mean: 94, Variance: 3},
				models.BandModerate: {Mean: 84, Variance: 6},
				models.BandSevere:   {Mean: 68, Variance: 8},
				models.BandCritical: {Mean: 50, Variance: 10},
			},
		},
		ConditionOverrides: map[string]HealthBand{
			"125670008": {Mean: 35, Variance: 8},  // traumatic amputation
			"262525000": {Mean: 45, Variance: 10}, // blast injury
			"125689001": {Mean: 55, Variance: 10}, // gunshot wound
		},

		HemorrhageMultiplier: 1.5,
		HemorrhageLexicon: []string{
			"bleeding", "laceration", "amputation", "arterial",
			"vascular", "penetrating", "gunshot",
		},

		Windows: map[models.SeverityBand]WindowTable{
			models.BandMild:     {Platinum10: 10, GoldenHour: 60, MaxSurvivable: 2880},
			models.BandModerate: {Platinum10: 10, GoldenHour: 60, MaxSurvivable: 1440},
			models.BandSevere:   {Platinum10: 10, GoldenHour: 60, MaxSurvivable: 360},
			models.BandCritical: {Platinum10: 10, GoldenHour: 60, MaxSurvivable: 120},
		},

		GoldenHourMinutes: 60,
		RampCap:           2.5,
		RampHours:         6,

		CliffEnabled:     true,
		CliffProbability: 0.05,
		CliffBandLow:     15,
		CliffBandHigh:    60,

		Protocols:  defaultProtocols(),
		Treatments: defaultTreatments(),
		Appropriateness: defaultAppropriateness(),
		FallbackTreatments: map[string]string{
			"POI":   "bandage",
			"Role1": "iv_fluids",
			"Role2": "observation",
			"Role3": "observation",
			"CSU":   "observation",
		},

		DiagnosticAccuracy: map[string]float64{
			"POI": 0.65, "Role1": 0.75, "Role2": 0.85, "Role3": 0.95, "Role4": 0.98,
		},
		ConfusionMatrix: map[string]map[string]float64{
			"125689001": {"262525000": 0.5, "125670008": 0.2, "58150001": 0.3},
			"262525000": {"125689001": 0.4, "127295002": 0.3, "58150001": 0.3},
			"125670008": {"262525000": 0.6, "125689001": 0.4},
		},
		GenericMisdiagnoses: []string{"417163006", "125605004", "128045006"},

		Archetypes: map[models.WarfareType]ArchetypeParams{
			models.WarfareConventional: {
				Archetype: "sustained", PeakHours: []int{9, 10, 11, 14, 15, 16},
				PeakMultiplier: 2.0, NightReduction: 0.3,
				MassCasualtyP: 0.05, ClusterRange: [2]int{8, 20},
			},
			models.WarfareArtillery: {
				Archetype: "surge", PeakHours: []int{5, 6, 17, 18},
				SurgesPerDay: [2]int{1, 3},
				MassCasualtyP: 0.12, ClusterRange: [2]int{10, 30},
			},
			models.WarfareUrban: {
				Archetype: "sustained", PeakHours: []int{8, 9, 10, 16, 17, 18, 19},
				PeakMultiplier: 1.8, NightReduction: 0.5,
				MassCasualtyP: 0.08, ClusterRange: [2]int{6, 15},
			},
			models.WarfareGuerrilla: {
				Archetype: "sporadic", EventsPerDay: [2]int{5, 12},
				MassCasualtyP: 0.06, ClusterRange: [2]int{4, 10},
			},
			models.WarfareDrone: {
				Archetype: "precision_strike", DaylightPref: 0.7,
				EventsPerDay: [2]int{3, 8},
				MassCasualtyP: 0.10, ClusterRange: [2]int{5, 12},
			},
			models.WarfarePrecisionStrike: {
				Archetype: "precision_strike", DaylightPref: 0.4,
				EventsPerDay: [2]int{2, 5},
				MassCasualtyP: 0.15, ClusterRange: [2]int{8, 25},
			},
			models.WarfarePhasedAssault: {
				Archetype: "phased_assault",
				PhaseHours: [][2]int{{4, 7}, {11, 13}, {17, 20}},
				MassCasualtyP: 0.10, ClusterRange: [2]int{10, 25},
			},
		},
		Environments: map[string]EnvModifier{
			"rain":       {CasualtyMultiplier: 1.1, DeteriorationMultiplier: 1.1, DiagnosticModifier: -0.03},
			"fog":        {CasualtyMultiplier: 1.05, DeteriorationMultiplier: 1.0, DiagnosticModifier: -0.05, LowVisibility: true},
			"night_ops":  {CasualtyMultiplier: 1.15, DeteriorationMultiplier: 1.05, DiagnosticModifier: -0.05, LowVisibility: true},
			"extreme_heat": {CasualtyMultiplier: 1.2, DeteriorationMultiplier: 1.25, DiagnosticModifier: -0.02},
			"extreme_cold": {CasualtyMultiplier: 1.15, DeteriorationMultiplier: 1.3, DiagnosticModifier: -0.02},
			"dust_storm": {CasualtyMultiplier: 1.1, DeteriorationMultiplier: 1.15, DiagnosticModifier: -0.08, LowVisibility: true},
		},

		IntensityScale: map[string]float64{"low": 0.6, "medium": 1.0, "high": 1.5, "extreme": 2.2},
		TempoProfiles: map[string][]float64{
			"sustained":  {1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0},
			"escalating": {0.5, 0.7, 0.9, 1.1, 1.3, 1.5, 1.7},
			"declining":  {1.7, 1.5, 1.3, 1.1, 0.9, 0.7, 0.5},
			"pulsed":     {1.6, 0.6, 1.6, 0.6, 1.6, 0.6, 1.6},
		},
	}
}

func defaultTreatments() map[string]TreatmentInfo {
	return map[string]TreatmentInfo{
		"tourniquet":             {Effectiveness: 0.9, GoldenWindow: 10, Critical: true, Facilities: []string{"all"}, BodyParts: []string{"left_arm", "right_arm", "left_leg", "right_leg"}},
		"hemostatic_dressing":    {Effectiveness: 0.75, GoldenWindow: 30, Critical: true, Facilities: []string{"all"}},
		"bandage":                {Effectiveness: 0.4, Facilities: []string{"all"}},
		"airway_management":      {Effectiveness: 0.85, GoldenWindow: 10, Critical: true, Facilities: []string{"all"}},
		"needle_decompression":   {Effectiveness: 0.8, GoldenWindow: 15, Critical: true, Facilities: []string{"all"}, BodyParts: []string{"torso"}},
		"chest_seal":             {Effectiveness: 0.7, GoldenWindow: 20, Critical: true, Facilities: []string{"all"}, BodyParts: []string{"torso"}},
		"iv_fluids":              {Effectiveness: 0.5, GoldenWindow: 60, Facilities: []string{"all"}},
		"blood_transfusion":      {Effectiveness: 0.8, GoldenWindow: 90, Critical: true, Facilities: []string{"Role1", "Role2", "Role3"}},
		"damage_control_surgery": {Effectiveness: 0.95, GoldenWindow: 120, Critical: true, Facilities: []string{"Role2", "Role3"}},
		"definitive_surgery":     {Effectiveness: 0.98, Facilities: []string{"Role3"}},
		"craniotomy":             {Effectiveness: 0.9, GoldenWindow: 240, Critical: true, Facilities: []string{"Role3"}, BodyParts: []string{"head"}},
		"intubation":             {Effectiveness: 0.8, GoldenWindow: 30, Critical: true, Facilities: []string{"Role1", "Role2", "Role3"}},
		"splinting":              {Effectiveness: 0.5, Facilities: []string{"all"}},
		"pain_management":        {Effectiveness: 0.3, Facilities: []string{"all"}},
		"antibiotics":            {Effectiveness: 0.45, Facilities: []string{"Role1", "Role2", "Role3", "CSU"}},
		"observation":            {Effectiveness: 0.2, Facilities: []string{"all"}},
		"psychological_first_aid": {Effectiveness: 0.35, Facilities: []string{"all"}},
		"burn_dressing":          {Effectiveness: 0.6, GoldenWindow: 45, Facilities: []string{"all"}},
	}
}

func defaultProtocols() map[string]ProtocolEntry {
	return map[string]ProtocolEntry{
		// Gunshot wound
		"125689001": {
			Categories: []string{"penetrating", "hemorrhage"},
			Primary: map[string][]string{
				"POI":   {"tourniquet", "hemostatic_dressing", "bandage"},
				"Role1": {"hemostatic_dressing", "iv_fluids", "blood_transfusion"},
				"Role2": {"damage_control_surgery", "blood_transfusion", "iv_fluids"},
				"Role3": {"definitive_surgery", "blood_transfusion"},
				"CSU":   {"iv_fluids", "pain_management"},
			},
			Secondary: map[string][]string{
				"Role1": {"intubation", "antibiotics"},
				"Role2": {"intubation", "antibiotics"},
				"Role3": {"antibiotics"},
			},
			Contraindicated: []string{"observation"},
			CriticalWindow:  60,
		},
		// Blast injury
		"262525000": {
			Categories: []string{"blast", "polytrauma"},
			Primary: map[string][]string{
				"POI":   {"tourniquet", "airway_management", "chest_seal", "hemostatic_dressing"},
				"Role1": {"needle_decompression", "iv_fluids", "blood_transfusion", "intubation"},
				"Role2": {"damage_control_surgery", "blood_transfusion"},
				"Role3": {"definitive_surgery", "craniotomy", "blood_transfusion"},
				"CSU":   {"iv_fluids", "pain_management"},
			},
			Secondary: map[string][]string{
				"Role1": {"antibiotics", "pain_management"},
				"Role2": {"intubation", "antibiotics"},
			},
			Contraindicated: []string{"observation"},
			CriticalWindow:  60,
		},
		// Traumatic amputation
		"125670008": {
			Categories: []string{"hemorrhage", "amputation"},
			Primary: map[string][]string{
				"POI":   {"tourniquet", "hemostatic_dressing"},
				"Role1": {"blood_transfusion", "iv_fluids"},
				"Role2": {"damage_control_surgery", "blood_transfusion"},
				"Role3": {"definitive_surgery"},
				"CSU":   {"iv_fluids", "pain_management"},
			},
			Secondary: map[string][]string{
				"Role1": {"pain_management", "antibiotics"},
			},
			Contraindicated: []string{"observation", "splinting"},
			CriticalWindow:  30,
		},
		// Traumatic brain injury
		"127295002": {
			Categories: []string{"head", "neuro"},
			Primary: map[string][]string{
				"POI":   {"airway_management"},
				"Role1": {"intubation", "iv_fluids"},
				"Role2": {"intubation", "iv_fluids"},
				"Role3": {"craniotomy", "definitive_surgery"},
				"CSU":   {"observation"},
			},
			Contraindicated: []string{"tourniquet"},
			CriticalWindow:  240,
		},
		// Fracture
		"58150001": {
			Categories: []string{"orthopedic"},
			Primary: map[string][]string{
				"POI":   {"splinting", "pain_management"},
				"Role1": {"splinting", "pain_management"},
				"Role2": {"definitive_surgery", "splinting"},
				"Role3": {"definitive_surgery"},
				"CSU":   {"pain_management"},
			},
			CriticalWindow: 720,
		},
		// Burn
		"125666000": {
			Categories: []string{"burn"},
			Primary: map[string][]string{
				"POI":   {"burn_dressing", "iv_fluids"},
				"Role1": {"burn_dressing", "iv_fluids", "pain_management"},
				"Role2": {"iv_fluids", "damage_control_surgery"},
				"Role3": {"definitive_surgery"},
				"CSU":   {"iv_fluids", "pain_management"},
			},
			Contraindicated: []string{"tourniquet"},
			CriticalWindow:  120,
		},
		// Combat stress reaction
		"47505003": {
			Categories: []string{"psychological"},
			Primary: map[string][]string{
				"POI":   {"psychological_first_aid"},
				"Role1": {"psychological_first_aid", "observation"},
				"Role2": {"psychological_first_aid", "observation"},
				"Role3": {"psychological_first_aid", "observation"},
				"CSU":   {"psychological_first_aid"},
			},
			CriticalWindow: 1440,
		},
		// Heat injury
		"52072009": {
			Categories: []string{"environmental"},
			Primary: map[string][]string{
				"POI":   {"iv_fluids"},
				"Role1": {"iv_fluids", "observation"},
				"Role2": {"iv_fluids", "observation"},
				"Role3": {"iv_fluids", "observation"},
				"CSU":   {"iv_fluids", "observation"},
			},
			CriticalWindow: 180,
		},
	}
}

func defaultAppropriateness() map[string]map[string]float64 {
	return map[string]map[string]float64{
		"125689001": {
			"tourniquet": 0.95, "hemostatic_dressing": 0.9, "bandage": 0.6,
			"blood_transfusion": 0.85, "damage_control_surgery": 0.95,
			"definitive_surgery": 0.9, "iv_fluids": 0.7, "intubation": 0.5,
			"antibiotics": 0.6, "observation": 0,
		},
		"262525000": {
			"airway_management": 0.9, "chest_seal": 0.8, "needle_decompression": 0.85,
			"tourniquet": 0.8, "hemostatic_dressing": 0.8, "blood_transfusion": 0.85,
			"damage_control_surgery": 0.95, "craniotomy": 0.7, "iv_fluids": 0.7,
			"intubation": 0.75, "observation": 0,
		},
		"125670008": {
			"tourniquet": 1.0, "hemostatic_dressing": 0.9, "blood_transfusion": 0.9,
			"damage_control_surgery": 0.9, "definitive_surgery": 0.85,
			"iv_fluids": 0.7, "pain_management": 0.6, "observation": 0, "splinting": 0,
		},
		"127295002": {
			"airway_management": 0.9, "intubation": 0.85, "craniotomy": 0.95,
			"iv_fluids": 0.6, "definitive_surgery": 0.7, "tourniquet": 0,
		},
		"58150001": {
			"splinting": 0.95, "pain_management": 0.8, "definitive_surgery": 0.7,
			"iv_fluids": 0.4,
		},
		"125666000": {
			"burn_dressing": 0.95, "iv_fluids": 0.85, "pain_management": 0.7,
			"damage_control_surgery": 0.6, "tourniquet": 0,
		},
		"47505003": {
			"psychological_first_aid": 0.95, "observation": 0.6,
		},
		"52072009": {
			"iv_fluids": 0.95, "observation": 0.7,
		},
	}
}

// StressConditionCodes lists codes treated as psychological stress injuries.
var StressConditionCodes = map[string]bool{"47505003": true}
