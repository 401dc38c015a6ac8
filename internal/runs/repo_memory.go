package runs

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory Repo for development and tests.
type MemoryRepo struct {
	mu   sync.RWMutex
	runs map[string]Run
}

// NewMemoryRepo constructs an empty MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{runs: make(map[string]Run)}
}

// Create stores a new run.
func (r *MemoryRepo) Create(_ context.Context, run Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = cloneRun(run)
	return nil
}

// Complete overwrites the outcome fields of an existing run.
func (r *MemoryRepo) Complete(_ context.Context, run Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.runs[run.ID]
	if !ok {
		return ErrNotFound
	}
	existing.State = run.State
	existing.ErrorKind = run.ErrorKind
	existing.ErrorDetail = run.ErrorDetail
	existing.Warnings = run.Warnings
	existing.HTML = run.HTML
	existing.Data = run.Data
	existing.InputKey = run.InputKey
	existing.CompletedAt = run.CompletedAt
	r.runs[run.ID] = cloneRun(existing)
	return nil
}

// GetByID returns a run by ID.
func (r *MemoryRepo) GetByID(_ context.Context, id string) (Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return Run{}, ErrNotFound
	}
	return cloneRun(run), nil
}

// List returns runs newest-first.
func (r *MemoryRepo) List(_ context.Context, limit, offset int) ([]Run, error) {
	limit, offset = clampPage(limit, offset)

	r.mu.RLock()
	all := make([]Run, 0, len(r.runs))
	for _, run := range r.runs {
		all = append(all, cloneRun(run))
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if offset >= len(all) {
		return []Run{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// cloneRun copies the slice and pointer fields; Data is treated as immutable
// once recorded.
func cloneRun(run Run) Run {
	out := run
	out.Warnings = append([]string(nil), run.Warnings...)
	if run.CompletedAt != nil {
		t := *run.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

var _ Repo = (*MemoryRepo)(nil)
