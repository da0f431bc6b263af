package models

import (
	"time"
)

// InjuryType classifies the mechanism that produced a casualty.
type InjuryType string

const (
	InjuryBattle    InjuryType = "BATTLE_TRAUMA"
	InjuryNonBattle InjuryType = "NON_BATTLE"
	InjuryDisease   InjuryType = "DISEASE"
)

// SeverityBand is the four-level band derived from the 1-10 severity ordinal.
type SeverityBand string

const (
	BandMild     SeverityBand = "mild"
	BandModerate SeverityBand = "moderate"
	BandSevere   SeverityBand = "severe"
	BandCritical SeverityBand = "critical"
)

// BandForSeverity maps the 1-10 ordinal to its band.
func BandForSeverity(severity int) SeverityBand {
	switch {
	case severity >= 9:
		return BandCritical
	case severity >= 7:
		return BandSevere
	case severity >= 4:
		return BandModerate
	default:
		return BandMild
	}
}

// TriageCategory is the NATO four-category triage scheme.
type TriageCategory string

const (
	TriageImmediate TriageCategory = "T1"
	TriageDelayed   TriageCategory = "T2"
	TriageMinimal   TriageCategory = "T3"
	TriageExpectant TriageCategory = "T4"
)

// Priority returns the treatment priority of the category, 1 being most urgent.
func (t TriageCategory) Priority() int {
	switch t {
	case TriageImmediate:
		return 1
	case TriageDelayed:
		return 2
	case TriageMinimal:
		return 3
	case TriageExpectant:
		return 4
	}
	return 5
}

// PatientState is the flow state of a patient in the evacuation chain.
type PatientState string

const (
	StateAtPOI       PatientState = "AT_POI"
	StateInTriage    PatientState = "IN_TRIAGE"
	StateInTreatment PatientState = "IN_TREATMENT"
	StateInTransport PatientState = "IN_TRANSPORT"
	StateInQueue     PatientState = "IN_QUEUE"
	StateTransferred PatientState = "TRANSFERRED"
	StateEvacuated   PatientState = "EVACUATED"
	StateDied        PatientState = "DIED"
	StateDischarged  PatientState = "DISCHARGED"
)

// Terminal reports whether the state ends a patient's journey.
func (s PatientState) Terminal() bool {
	return s == StateDied || s == StateDischarged || s == StateEvacuated
}

// LocationInTransit is the location value used while a patient rides a transport.
const LocationInTransit = "in_transit"

// TimelineEvent is one append-only entry in a patient's history.
type TimelineEvent struct {
	Timestamp time.Time              `json:"timestamp"`
	Kind      string                 `json:"event"`
	Location  string                 `json:"location"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// AppliedTreatment records a treatment and its effect on the patient.
type AppliedTreatment struct {
	Name         string    `json:"name"`
	AppliedAt    time.Time `json:"applied_at"`
	Facility     string    `json:"facility"`
	HealthBefore float64   `json:"health_before"`
	HealthAfter  float64   `json:"health_after"`
}

// DiagnosisRecord is one diagnostic attempt at a facility.
type DiagnosisRecord struct {
	Facility      string    `json:"facility"`
	DiagnosedCode string    `json:"diagnosed_code"`
	Confidence    float64   `json:"confidence"`
	Correct       bool      `json:"correct"`
	DiagnosedAt   time.Time `json:"diagnosed_at"`
}

// Patient is the central simulation entity. It is owned exclusively by the
// flow orchestrator; other components receive it by reference and mutate it
// only through orchestrator operations.
type Patient struct {
	ID            string       `json:"id"`
	InjuryType    InjuryType   `json:"injury_type"`
	Severity      int          `json:"severity"`
	Band          SeverityBand `json:"severity_band"`
	BodyPart      string       `json:"body_part,omitempty"`
	TrueCondition string       `json:"true_condition,omitempty"`

	InitialHealth float64        `json:"initial_health"`
	CurrentHealth float64        `json:"current_health"`
	Triage        TriageCategory `json:"triage_category"`

	State       PatientState `json:"state"`
	Location    string       `json:"location"`
	Destination string       `json:"destination,omitempty"`
	TransportID string       `json:"transport_id,omitempty"`

	InjuredAt  time.Time          `json:"injured_at"`
	Timeline   []TimelineEvent    `json:"timeline"`
	Treatments []AppliedTreatment `json:"treatments_received"`
	Diagnoses  []DiagnosisRecord  `json:"diagnoses"`
}

// AddEvent appends a timeline entry. Callers must pass timestamps in
// non-decreasing order; the orchestrator's logical clock guarantees this.
func (p *Patient) AddEvent(ts time.Time, kind, location string, details map[string]interface{}) {
	p.Timeline = append(p.Timeline, TimelineEvent{
		Timestamp: ts,
		Kind:      kind,
		Location:  location,
		Details:   details,
	})
}

// LatestDiagnosis returns the most recent diagnosis record, or nil.
func (p *Patient) LatestDiagnosis() *DiagnosisRecord {
	if len(p.Diagnoses) == 0 {
		return nil
	}
	return &p.Diagnoses[len(p.Diagnoses)-1]
}

// ClampHealth bounds a health value to [0,100].
func ClampHealth(h float64) float64 {
	if h < 0 {
		return 0
	}
	if h > 100 {
		return 100
	}
	return h
}
