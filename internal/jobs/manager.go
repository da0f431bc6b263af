package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banton/medical-patients-sub001/internal/metrics"
	"github.com/banton/medical-patients-sub001/internal/models"
	"github.com/banton/medical-patients-sub001/internal/output"
)

// ErrNotFound is returned for unknown job IDs.
var ErrNotFound = errors.New("job not found")

// SubmitRequest is one validated generation request.
type SubmitRequest struct {
	Config          models.GenerationConfig
	OutputFormats   []string
	Compress        bool
	EncryptPassword string
}

// Manager owns the job lifecycle: admission, background execution, progress
// persistence, cancellation and result file bookkeeping.
type Manager struct {
	store     Store
	runner    *Runner
	governor  *Governor
	artifacts *output.ArtifactStore
	metrics   *metrics.Metrics

	outputDir      string
	maxPatients    int
	timeout        time.Duration

	mu      sync.Mutex
	cancels map[string]context.CancelFunc

	wg sync.WaitGroup
}

// NewManager wires the lifecycle coordinator. metrics and artifacts may be
// nil.
func NewManager(store Store, runner *Runner, governor *Governor, artifacts *output.ArtifactStore, m *metrics.Metrics, outputDir string, maxPatients, timeoutSeconds int) *Manager {
	if maxPatients <= 0 {
		maxPatients = 50000
	}
	if timeoutSeconds <= 0 {
		timeoutSeconds = 1800
	}
	return &Manager{
		store:       store,
		runner:      runner,
		governor:    governor,
		artifacts:   artifacts,
		metrics:     m,
		outputDir:   outputDir,
		maxPatients: maxPatients,
		timeout:     time.Duration(timeoutSeconds) * time.Second,
		cancels:     make(map[string]context.CancelFunc),
	}
}

// Validate checks a request without admitting it.
func (m *Manager) Validate(req SubmitRequest) error {
	if req.Config.TotalPatients <= 0 {
		return fmt.Errorf("total_patients must be positive")
	}
	if req.Config.TotalPatients > m.maxPatients {
		return fmt.Errorf("total_patients exceeds limit of %d", m.maxPatients)
	}
	if req.Config.Days < 0 {
		return fmt.Errorf("days must not be negative")
	}
	for _, f := range req.OutputFormats {
		if f != "json" && f != "csv" {
			return fmt.Errorf("unsupported output format %q", f)
		}
	}
	return nil
}

// Submit validates, admits and launches a job. Returns ErrBusy when the
// governor refuses admission.
func (m *Manager) Submit(ctx context.Context, req SubmitRequest) (*models.Job, error) {
	if err := m.Validate(req); err != nil {
		return nil, err
	}
	if err := m.governor.TryAcquire(); err != nil {
		return nil, err
	}

	job := &models.Job{
		ID:        uuid.New().String(),
		Status:    models.JobRunning,
		Config:    req.Config,
		CreatedAt: time.Now(),
	}
	if err := m.store.Create(ctx, job); err != nil {
		m.governor.Release()
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	runCtx, cancel := context.WithTimeout(context.Background(), m.timeout)
	m.mu.Lock()
	m.cancels[job.ID] = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go m.execute(runCtx, job.ID, req)

	return job, nil
}

// execute runs one job to completion in the background.
func (m *Manager) execute(ctx context.Context, jobID string, req SubmitRequest) {
	defer m.wg.Done()
	defer m.governor.Release()
	defer func() {
		m.mu.Lock()
		if cancel, ok := m.cancels[jobID]; ok {
			cancel()
			delete(m.cancels, jobID)
		}
		m.mu.Unlock()
	}()

	started := time.Now()
	bg := context.Background()

	onProgress := func(overall int, details models.ProgressDetails) {
		if err := m.store.UpdateProgress(bg, jobID, overall, &details); err != nil {
			log.Printf("[Manager] progress update for %s failed: %v", jobID, err)
		}
	}

	result, err := m.runner.Run(ctx, req.Config, onProgress)
	if err != nil {
		m.finishFailed(bg, jobID, started, err)
		return
	}

	dir := filepath.Join(m.outputDir, jobID)
	files, err := output.WriteAll(result.Patients, dir, output.Options{
		Formats:         req.OutputFormats,
		Compress:        req.Compress,
		EncryptPassword: req.EncryptPassword,
		Concurrent:      UseWorkerPool(len(result.Patients)),
	})
	if err != nil {
		m.finishFailed(bg, jobID, started, fmt.Errorf("output generation failed: %w", err))
		return
	}
	if err := m.store.SetResultFiles(bg, jobID, files); err != nil {
		log.Printf("[Manager] result files for %s not persisted: %v", jobID, err)
	}
	for _, f := range files {
		m.artifacts.Upload(bg, jobID, f)
	}

	m.store.UpdateProgress(bg, jobID, 100, &models.ProgressDetails{
		Phase:          "completed",
		PhaseProgress:  100,
		TotalPatients:  req.Config.TotalPatients,
		ProcessedCount: len(result.Patients),
	})
	if err := m.store.UpdateStatus(bg, jobID, models.JobCompleted, ""); err != nil {
		log.Printf("[Manager] status update for %s failed: %v", jobID, err)
	}
	m.observe(result, started, models.JobCompleted)
	log.Printf("[Manager] job %s completed in %.1fs", jobID, time.Since(started).Seconds())
}

func (m *Manager) finishFailed(ctx context.Context, jobID string, started time.Time, runErr error) {
	status := models.JobFailed
	if errors.Is(runErr, ErrCancelled) || errors.Is(runErr, context.Canceled) {
		status = models.JobCancelled
	}
	if err := m.store.UpdateStatus(ctx, jobID, status, runErr.Error()); err != nil {
		log.Printf("[Manager] status update for %s failed: %v", jobID, err)
	}
	if m.metrics != nil {
		m.metrics.JobsByStatus.WithLabelValues(string(status)).Inc()
		m.metrics.JobDuration.Observe(time.Since(started).Seconds())
	}
	log.Printf("[Manager] job %s ended %s: %v", jobID, status, runErr)
}

// observe feeds run outcomes into the collectors.
func (m *Manager) observe(result *RunResult, started time.Time, status models.JobStatus) {
	if m.metrics == nil {
		return
	}
	m.metrics.JobsByStatus.WithLabelValues(string(status)).Inc()
	m.metrics.JobDuration.Observe(time.Since(started).Seconds())
	m.metrics.PatientsGenerated.Add(float64(len(result.Patients)))
	m.metrics.DiagnosticRate.Set(result.Status.DiagnosticAccuracy)
	for category, n := range result.Status.Deaths.ByCategory {
		m.metrics.DeathsByCategory.WithLabelValues(string(category)).Add(float64(n))
	}
	for vehicle, n := range result.Status.Transport.Scheduled {
		m.metrics.TransportMissions.WithLabelValues(string(vehicle)).Add(float64(n))
	}
	for _, f := range result.Status.Facilities {
		m.metrics.FacilityOccupancy.WithLabelValues(f.Name).Set(float64(f.Occupancy))
	}
}

// Get returns a job by ID.
func (m *Manager) Get(ctx context.Context, id string) (*models.Job, error) {
	job, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrNotFound
	}
	return job, nil
}

// List returns recent jobs.
func (m *Manager) List(ctx context.Context, limit int) ([]models.Job, error) {
	return m.store.List(ctx, limit)
}

// Cancel requests cooperative cancellation of a running job. Cancelling a
// finished job is a no-op on its status.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	job, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	cancel, running := m.cancels[id]
	m.mu.Unlock()
	if running {
		cancel()
		return nil
	}
	if job.Status == models.JobPending || job.Status == models.JobQueued {
		return m.store.UpdateStatus(ctx, id, models.JobCancelled, "")
	}
	return nil
}

// Delete cancels a running job and removes its record.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.Cancel(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return ErrNotFound
	}
	return nil
}

// ArchivePath returns the ZIP bundle path for a completed job, building it
// on first request.
func (m *Manager) ArchivePath(ctx context.Context, id string) (string, error) {
	job, err := m.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if job.Status != models.JobCompleted {
		return "", fmt.Errorf("job %s is %s, results not available", id, job.Status)
	}
	if len(job.ResultFiles) == 0 {
		return "", fmt.Errorf("job %s has no result files", id)
	}
	archive := filepath.Join(m.outputDir, id, "results.zip")
	if err := output.BuildArchive(archive, job.ResultFiles); err != nil {
		return "", err
	}
	return archive, nil
}

// EstimateDuration gives a rough completion estimate for the UI.
func EstimateDuration(totalPatients int) int {
	seconds := totalPatients / 200
	if seconds < 2 {
		seconds = 2
	}
	return seconds
}

// Shutdown waits for in-flight jobs to finish, up to the context deadline.
func (m *Manager) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
