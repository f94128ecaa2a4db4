// Package jobstore keeps the history of pipeline jobs.
package jobstore

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ivlev/concept2video/internal/domain"
)

var ErrNotFound = errors.New("job not found")

// Store persists job records. Save inserts or replaces by job id.
type Store interface {
	Save(ctx context.Context, job *domain.Job) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	List(ctx context.Context, limit int) ([]domain.Job, error)
}

// Memory is an in-process Store.
type Memory struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]domain.Job
}

func NewMemory() *Memory {
	return &Memory{jobs: make(map[uuid.UUID]domain.Job)}
}

func (m *Memory) Save(_ context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = clone(job)
	return nil
}

func (m *Memory) Get(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := clone(&j)
	return &out, nil
}

// List returns the newest jobs first. limit <= 0 returns all of them.
func (m *Memory) List(_ context.Context, limit int) ([]domain.Job, error) {
	m.mu.RLock()
	out := make([]domain.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, clone(&j))
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// clone detaches the copy from the caller's maps and pointers.
func clone(j *domain.Job) domain.Job {
	c := *j
	c.Artifacts = make(map[string]string, len(j.Artifacts))
	for k, v := range j.Artifacts {
		c.Artifacts[k] = v
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	return c
}
