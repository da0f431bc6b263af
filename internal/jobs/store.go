package jobs

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/banton/medical-patients-sub001/internal/models"
)

// Store persists jobs. Implemented by the postgres repository and by the
// in-memory store used when no database is configured.
type Store interface {
	Create(ctx context.Context, job *models.Job) error
	GetByID(ctx context.Context, id string) (*models.Job, error)
	List(ctx context.Context, limit int) ([]models.Job, error)
	UpdateStatus(ctx context.Context, id string, status models.JobStatus, errMsg string) error
	UpdateProgress(ctx context.Context, id string, progress int, details *models.ProgressDetails) error
	SetResultFiles(ctx context.Context, id string, files []string) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore is a mutex-guarded in-memory Store.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*models.Job
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*models.Job)}
}

func (s *MemoryStore) Create(_ context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	copied := *job
	return &copied, nil
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, *job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, id string, status models.JobStatus, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	job.Status = status
	job.Error = errMsg
	switch status {
	case models.JobCompleted, models.JobFailed, models.JobCancelled:
		now := time.Now()
		job.CompletedAt = &now
	}
	return nil
}

func (s *MemoryStore) UpdateProgress(_ context.Context, id string, progress int, details *models.ProgressDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	job.Progress = progress
	if details != nil {
		copied := *details
		job.Details = &copied
	}
	return nil
}

func (s *MemoryStore) SetResultFiles(_ context.Context, id string, files []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	job.ResultFiles = append([]string(nil), files...)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.jobs, id)
	return nil
}
