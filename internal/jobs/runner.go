package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"runtime"
	"time"

	"github.com/banton/medical-patients-sub001/internal/models"
	"github.com/banton/medical-patients-sub001/internal/simulation"
)

// ErrCancelled marks a cooperative job cancellation.
var ErrCancelled = errors.New("job cancelled")

// workerPoolThreshold is the cohort size from which chunk post-processing
// uses the worker pool.
const workerPoolThreshold = 500

// ProgressFunc receives progress updates: overall percent plus phase detail.
type ProgressFunc func(overall int, details models.ProgressDetails)

// RunResult carries the outcome of one simulation run.
type RunResult struct {
	Patients []*models.Patient
	Events   []models.CasualtyEvent
	Status   simulation.SystemStatus
}

// Runner executes generation jobs in bounded chunks under governor caps.
type Runner struct {
	cat      *simulation.Catalog
	governor *Governor

	batchSize       int
	interChunkDelay time.Duration

	medicalSimulation bool
	treatmentModel    bool
}

// NewRunner builds a runner. Zero batchSize takes the default 1000.
func NewRunner(cat *simulation.Catalog, governor *Governor, batchSize int, interChunkDelay time.Duration) *Runner {
	if cat == nil {
		cat = simulation.DefaultCatalog()
	}
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Runner{
		cat:               cat,
		governor:          governor,
		batchSize:         batchSize,
		interChunkDelay:   interChunkDelay,
		medicalSimulation: true,
		treatmentModel:    true,
	}
}

// SetFeatures toggles the medical flow simulation and the treatment utility
// model for subsequent runs. Both are on unless configured off.
func (r *Runner) SetFeatures(medicalSimulation, treatmentModel bool) {
	r.medicalSimulation = medicalSimulation
	r.treatmentModel = treatmentModel
}

// Run generates and simulates one cohort. It assumes the caller already
// acquired a governor slot. Cancellation and cap breaches are observed at
// chunk boundaries; a cancelled or failed run releases held simulation
// resources before returning.
func (r *Runner) Run(ctx context.Context, cfg models.GenerationConfig, onProgress ProgressFunc) (*RunResult, error) {
	if cfg.TotalPatients <= 0 {
		return nil, fmt.Errorf("total_patients must be positive")
	}
	if cfg.Days <= 0 {
		cfg.Days = 1
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	baseDate := cfg.BaseDate
	if baseDate.IsZero() {
		baseDate = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	}

	started := time.Now()
	monitorCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()
	breach := r.governor.Monitor(monitorCtx, started)

	report := func(overall int, phase string, phaseProgress, processed int) {
		if onProgress != nil {
			onProgress(overall, models.ProgressDetails{
				Phase:          phase,
				PhaseProgress:  phaseProgress,
				TotalPatients:  cfg.TotalPatients,
				ProcessedCount: processed,
			})
		}
	}

	report(2, "generating_casualty_stream", 0, 0)

	weights := make(map[models.WarfareType]float64, len(cfg.WarfareWeights))
	for k, v := range cfg.WarfareWeights {
		weights[models.WarfareType(k)] = v
	}
	generator := simulation.NewTemporalGenerator(r.cat, rand.New(rand.NewSource(seed)))
	events := generator.Generate(simulation.GeneratorParams{
		Days:           cfg.Days,
		TotalPatients:  cfg.TotalPatients,
		BaseDate:       baseDate,
		WarfareWeights: weights,
		Intensity:      cfg.Intensity,
		Tempo:          cfg.Tempo,
		Environmental:  cfg.Environmental,
		SpecialEvents:  cfg.SpecialEvents,
	})
	report(5, "generating_casualty_stream", 100, 0)

	orch := simulation.NewOrchestrator(r.cat, seed+1, baseDate)
	orch.SetEnvironment(cfg.Environmental)
	flow := simulation.NewFlowSimulator(orch, rand.New(rand.NewSource(seed+2)), cfg.InjuryMix)
	flow.SetMedicalSimulation(r.medicalSimulation)
	flow.SetTreatmentModel(r.treatmentModel)

	processed := 0
	sinceReclaim := 0
	for _, ev := range events {
		select {
		case <-ctx.Done():
			orch.Shutdown()
			return nil, ErrCancelled
		case err := <-breach:
			if err != nil {
				orch.Shutdown()
				return nil, err
			}
		default:
		}

		ids, err := flow.ProcessEvent(ev)
		if err != nil {
			orch.Shutdown()
			return nil, fmt.Errorf("event processing failed: %w", err)
		}
		processed += ev.PatientCount
		sinceReclaim += len(ids)

		if sinceReclaim >= r.batchSize {
			sinceReclaim = 0
			r.reclaim()
			if r.interChunkDelay > 0 {
				select {
				case <-ctx.Done():
					orch.Shutdown()
					return nil, ErrCancelled
				case <-time.After(r.interChunkDelay):
				}
			}
			if err := r.governor.Check(started); err != nil {
				orch.Shutdown()
				return nil, err
			}
		}

		overall := 5 + int(80*float64(processed)/float64(cfg.TotalPatients))
		report(overall, "simulating_patient_flow", int(100*float64(processed)/float64(cfg.TotalPatients)), processed)
	}

	report(88, "finalizing", 0, processed)
	flow.Drain(72)
	if err := r.governor.Check(started); err != nil {
		orch.Shutdown()
		return nil, err
	}
	report(95, "finalizing", 100, processed)

	log.Printf("[Runner] cohort complete: %d patients, %d events, %.1fs",
		processed, len(events), time.Since(started).Seconds())

	return &RunResult{
		Patients: orch.Patients(),
		Events:   events,
		Status:   orch.Status(),
	}, nil
}

// reclaim is the explicit inter-chunk memory reclamation step.
func (r *Runner) reclaim() {
	runtime.GC()
}

// UseWorkerPool reports whether a cohort is large enough for pooled
// post-processing.
func UseWorkerPool(totalPatients int) bool {
	return totalPatients >= workerPoolThreshold
}
