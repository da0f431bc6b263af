package models

import "time"

// WarfareType tags the combat archetype that produced a casualty event.
type WarfareType string

const (
	WarfareConventional    WarfareType = "conventional"
	WarfareArtillery       WarfareType = "artillery"
	WarfareUrban           WarfareType = "urban"
	WarfareGuerrilla       WarfareType = "guerrilla"
	WarfareDrone           WarfareType = "drone"
	WarfarePrecisionStrike WarfareType = "precision_strike"
	WarfarePhasedAssault   WarfareType = "phased_assault"
)

// CasualtyEvent is one emission of the temporal generator. Immutable once
// emitted.
type CasualtyEvent struct {
	Timestamp     time.Time   `json:"timestamp"`
	PatientCount  int         `json:"patient_count"`
	Warfare       WarfareType `json:"warfare_type"`
	MassCasualty  bool        `json:"mass_casualty"`
	SpecialEvent  string      `json:"special_event,omitempty"`
	Environmental []string    `json:"environmental_conditions,omitempty"`
}

// VehicleKind is a transport vehicle class.
type VehicleKind string

const (
	VehicleGroundAmbulance VehicleKind = "ground_ambulance"
	VehicleAirAmbulance    VehicleKind = "air_ambulance"
	VehicleBus             VehicleKind = "bus"
)

// MissionStatus is the lifecycle state of a transport mission.
type MissionStatus string

const (
	MissionQueued    MissionStatus = "queued"
	MissionScheduled MissionStatus = "scheduled"
	MissionInTransit MissionStatus = "in_transit"
	MissionCompleted MissionStatus = "completed"
)

// TransportPriority orders missions competing for vehicles.
type TransportPriority string

const (
	PriorityUrgent  TransportPriority = "urgent"
	PriorityRoutine TransportPriority = "routine"
)

// DeteriorationRisk tags the in-transit risk band of a mission.
type DeteriorationRisk string

const (
	RiskLow      DeteriorationRisk = "low"
	RiskModerate DeteriorationRisk = "moderate"
	RiskHigh     DeteriorationRisk = "high"
)

// TransportMission is owned by the transport scheduler; the orchestrator
// holds only the mission ID.
type TransportMission struct {
	ID               string            `json:"id"`
	PatientID        string            `json:"patient_id,omitempty"`
	BatchPatientIDs  []string          `json:"batch_patient_ids,omitempty"`
	Origin           string            `json:"origin"`
	Destination      string            `json:"destination"`
	Vehicle          VehicleKind       `json:"vehicle"`
	ScheduledAt      time.Time         `json:"scheduled_at"`
	DurationMinutes  float64           `json:"duration_minutes"`
	EstimatedArrival time.Time         `json:"estimated_arrival"`
	Status           MissionStatus     `json:"status"`
	Priority         TransportPriority `json:"priority"`
	Risk             DeteriorationRisk `json:"deterioration_risk"`
	QueuePosition    int               `json:"queue_position,omitempty"`
}
