package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banton/medical-patients-sub001/internal/models"
)

// ConfigRepository handles stored generation configurations
type ConfigRepository struct {
	db *sql.DB
}

// NewConfigRepository shares the job repository's connection pool
func NewConfigRepository(jobs *JobRepository) *ConfigRepository {
	return &ConfigRepository{db: jobs.DB()}
}

// Create stores a new configuration and assigns it an ID
func (r *ConfigRepository) Create(ctx context.Context, rec *models.ConfigurationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	now := time.Now()
	rec.Version = 1
	rec.CreatedAt = now
	rec.UpdatedAt = now

	configJSON, err := json.Marshal(rec.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO configurations (id, name, description, config, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.Name, rec.Description, configJSON, rec.Version, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create configuration: %w", err)
	}
	return nil
}

// GetByID retrieves a configuration. Returns nil, nil when not found.
func (r *ConfigRepository) GetByID(ctx context.Context, id string) (*models.ConfigurationRecord, error) {
	var (
		rec        models.ConfigurationRecord
		desc       sql.NullString
		configJSON []byte
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, description, config, version, created_at, updated_at
		 FROM configurations WHERE id = $1`,
		id,
	).Scan(&rec.ID, &rec.Name, &desc, &configJSON, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get configuration: %w", err)
	}
	if desc.Valid {
		rec.Description = desc.String
	}
	if err := json.Unmarshal(configJSON, &rec.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return &rec, nil
}

// List returns all configurations ordered by name
func (r *ConfigRepository) List(ctx context.Context) ([]models.ConfigurationRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, config, version, created_at, updated_at
		 FROM configurations ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list configurations: %w", err)
	}
	defer rows.Close()

	var recs []models.ConfigurationRecord
	for rows.Next() {
		var (
			rec        models.ConfigurationRecord
			desc       sql.NullString
			configJSON []byte
		)
		err := rows.Scan(&rec.ID, &rec.Name, &desc, &configJSON, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan configuration: %w", err)
		}
		if desc.Valid {
			rec.Description = desc.String
		}
		if err := json.Unmarshal(configJSON, &rec.Config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Update replaces a configuration's contents and bumps its version
func (r *ConfigRepository) Update(ctx context.Context, rec *models.ConfigurationRecord) error {
	configJSON, err := json.Marshal(rec.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	rec.UpdatedAt = time.Now()
	res, err := r.db.ExecContext(ctx,
		`UPDATE configurations
		 SET name = $1, description = $2, config = $3, version = version + 1, updated_at = $4
		 WHERE id = $5`,
		rec.Name, rec.Description, configJSON, rec.UpdatedAt, rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update configuration: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return sql.ErrNoRows
	}
	rec.Version++
	return nil
}

// Delete removes a configuration
func (r *ConfigRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM configurations WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete configuration: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
