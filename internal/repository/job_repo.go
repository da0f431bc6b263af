package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/banton/medical-patients-sub001/internal/config"
	"github.com/banton/medical-patients-sub001/internal/models"
)

// JobRepository handles job database operations
type JobRepository struct {
	db *sql.DB
}

// NewJobRepository creates a new job repository
func NewJobRepository(cfg *config.Config) (*JobRepository, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &JobRepository{db: db}, nil
}

// NewJobRepositoryWithDB wraps an existing connection, used by the
// configuration repository to share the pool.
func NewJobRepositoryWithDB(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// DB exposes the underlying connection for sharing.
func (r *JobRepository) DB() *sql.DB {
	return r.db
}

// Close closes the database connection
func (r *JobRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ready pings the database for readiness checks.
func (r *JobRepository) Ready(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// PoolStats returns the current database connection pool statistics
func (r *JobRepository) PoolStats() sql.DBStats {
	return r.db.Stats()
}

// Create inserts a new job record
func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	configJSON, err := json.Marshal(job.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO jobs (id, status, config, progress, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		job.ID, job.Status, configJSON, job.Progress, job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// GetByID retrieves a job by ID. Returns nil, nil when not found.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	var (
		job          models.Job
		configJSON   []byte
		detailsJSON  []byte
		errMsg       sql.NullString
		resultsJSON  []byte
		completedAt  sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, status, config, progress, details, error, result_files, created_at, completed_at
		 FROM jobs WHERE id = $1`,
		id,
	).Scan(&job.ID, &job.Status, &configJSON, &job.Progress, &detailsJSON,
		&errMsg, &resultsJSON, &job.CreatedAt, &completedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	if err := json.Unmarshal(configJSON, &job.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job config: %w", err)
	}
	if len(detailsJSON) > 0 {
		var details models.ProgressDetails
		if err := json.Unmarshal(detailsJSON, &details); err == nil {
			job.Details = &details
		}
	}
	if len(resultsJSON) > 0 {
		if err := json.Unmarshal(resultsJSON, &job.ResultFiles); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result files: %w", err)
		}
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return &job, nil
}

// List returns jobs ordered newest first
func (r *JobRepository) List(ctx context.Context, limit int) ([]models.Job, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, status, config, progress, details, error, result_files, created_at, completed_at
		 FROM jobs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		var (
			job         models.Job
			configJSON  []byte
			detailsJSON []byte
			errMsg      sql.NullString
			resultsJSON []byte
			completedAt sql.NullTime
		)
		err := rows.Scan(&job.ID, &job.Status, &configJSON, &job.Progress,
			&detailsJSON, &errMsg, &resultsJSON, &job.CreatedAt, &completedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		if err := json.Unmarshal(configJSON, &job.Config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job config: %w", err)
		}
		if len(detailsJSON) > 0 {
			var details models.ProgressDetails
			if err := json.Unmarshal(detailsJSON, &details); err == nil {
				job.Details = &details
			}
		}
		if len(resultsJSON) > 0 {
			json.Unmarshal(resultsJSON, &job.ResultFiles)
		}
		if errMsg.Valid {
			job.Error = errMsg.String
		}
		if completedAt.Valid {
			t := completedAt.Time
			job.CompletedAt = &t
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// UpdateStatus transitions a job's status, setting completed_at for
// terminal states
func (r *JobRepository) UpdateStatus(ctx context.Context, id string, status models.JobStatus, errMsg string) error {
	var completedAt *time.Time
	switch status {
	case models.JobCompleted, models.JobFailed, models.JobCancelled:
		now := time.Now()
		completedAt = &now
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET status = $1, error = NULLIF($2, ''), completed_at = $3 WHERE id = $4`,
		status, errMsg, completedAt, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	return nil
}

// UpdateProgress records overall progress and phase details
func (r *JobRepository) UpdateProgress(ctx context.Context, id string, progress int, details *models.ProgressDetails) error {
	var detailsJSON []byte
	if details != nil {
		var err error
		detailsJSON, err = json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to marshal progress details: %w", err)
		}
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE jobs SET progress = $1, details = $2 WHERE id = $3`,
		progress, detailsJSON, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update job progress: %w", err)
	}
	return nil
}

// SetResultFiles stores the output file paths of a completed job
func (r *JobRepository) SetResultFiles(ctx context.Context, id string, files []string) error {
	filesJSON, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("failed to marshal result files: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE jobs SET result_files = $1 WHERE id = $2`,
		filesJSON, id,
	)
	if err != nil {
		return fmt.Errorf("failed to set result files: %w", err)
	}
	return nil
}

// Delete removes a job record
func (r *JobRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM jobs WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// EnsureSchema creates the jobs and configurations tables if missing.
func (r *JobRepository) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			config JSONB NOT NULL,
			progress INT NOT NULL DEFAULT 0,
			details JSONB,
			error TEXT,
			result_files JSONB,
			created_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS configurations (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			config JSONB NOT NULL,
			version INT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs (created_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}
