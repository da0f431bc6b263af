package models

import "time"

// JobStatus is the lifecycle state of a generation job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// ProgressDetails breaks overall progress into the current phase.
type ProgressDetails struct {
	Phase          string `json:"phase"`
	PhaseProgress  int    `json:"phase_progress"`
	TotalPatients  int    `json:"total_patients"`
	ProcessedCount int    `json:"processed_patients"`
}

// GenerationConfig is the configuration snapshot a job runs with.
type GenerationConfig struct {
	Name           string             `json:"name,omitempty"`
	TotalPatients  int                `json:"total_patients"`
	Days           int                `json:"days"`
	BaseDate       time.Time          `json:"base_date"`
	WarfareWeights map[string]float64 `json:"warfare_weights,omitempty"`
	Intensity      string             `json:"intensity,omitempty"`
	Tempo          string             `json:"tempo,omitempty"`
	Environmental  []string           `json:"environmental_conditions,omitempty"`
	SpecialEvents  []string           `json:"special_events,omitempty"`
	InjuryMix      map[string]float64 `json:"injury_mix,omitempty"`
	Seed           int64              `json:"seed,omitempty"`
}

// Job tracks one generation request end to end. Owned by the job store;
// the orchestrator sees it only through progress callbacks.
type Job struct {
	ID          string           `json:"job_id"`
	Status      JobStatus        `json:"status"`
	Config      GenerationConfig `json:"configuration"`
	Progress    int              `json:"progress"`
	Details     *ProgressDetails `json:"progress_details,omitempty"`
	Error       string           `json:"error,omitempty"`
	ResultFiles []string         `json:"result_files,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// ConfigurationRecord is a stored, reusable generation configuration.
type ConfigurationRecord struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Config      GenerationConfig `json:"configuration"`
	Version     int              `json:"version"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}
