// Package memory provides a job store for development and testing.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ankemong/newsnexus-sub000/internal/job"
)

// Store is an in-memory job.Store. The mutex gives the same per-key
// atomicity the shared backends provide, so tests exercise the real
// partial-update contract.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]job.Job
}

// New constructs a Store.
func New() *Store {
	return &Store{jobs: make(map[string]job.Job)}
}

// Create stores a new job record.
func (s *Store) Create(_ context.Context, j job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[j.ID]; exists {
		return job.ErrAlreadyExists
	}
	s.jobs[j.ID] = j
	return nil
}

// Get fetches a job by id.
func (s *Store) Get(_ context.Context, id string) (job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return job.Job{}, job.ErrNotFound
	}
	return j, nil
}

// UpdateFields applies a partial update to one record. Only fields set in
// the descriptor are written; the request and creation time never change.
func (s *Store) UpdateFields(_ context.Context, id string, fields job.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return job.ErrNotFound
	}
	if fields.Status != nil {
		j.Status = *fields.Status
	}
	if fields.UpdatedAt != nil {
		j.UpdatedAt = *fields.UpdatedAt
	}
	if fields.FilePath != nil {
		j.FilePath = *fields.FilePath
	}
	if fields.Error != nil {
		j.Error = *fields.Error
	}
	s.jobs[id] = j
	return nil
}

// ListByStatusBefore returns jobs in the given status last updated before
// cutoff. Order is unspecified.
func (s *Store) ListByStatusBefore(_ context.Context, status job.Status, cutoff time.Time) ([]job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []job.Job
	for _, j := range s.jobs {
		if j.Status == status && j.UpdatedAt.Before(cutoff) {
			out = append(out, j)
		}
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }
