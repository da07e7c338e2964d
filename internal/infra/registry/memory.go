// Package registry holds in-flight research jobs in process memory.
// Nothing survives a restart.
package registry

import (
	"sort"
	"sync"

	"telegram-research-relay/internal/domain"
	"telegram-research-relay/internal/domain/model"
	"telegram-research-relay/internal/domain/ports/repository"
)

// Compile-time check
var _ repository.TrackedJobRepository = (*MemoryRegistry)(nil)

type MemoryRegistry struct {
	mu   sync.RWMutex
	jobs map[string]model.TrackedJob
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{jobs: make(map[string]model.TrackedJob)}
}

func (r *MemoryRegistry) Insert(job model.TrackedJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return domain.ErrAlreadyExists
	}
	r.jobs[job.ID] = job
	return nil
}

// Remove is a no-op for unknown ids.
func (r *MemoryRegistry) Remove(id string) {
	r.mu.Lock()
	delete(r.jobs, id)
	r.mu.Unlock()
}

func (r *MemoryRegistry) Snapshot() []model.TrackedJob {
	r.mu.RLock()
	out := make([]model.TrackedJob, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, k int) bool {
		if out[i].SubmittedAt.Equal(out[k].SubmittedAt) {
			return out[i].ID < out[k].ID
		}
		return out[i].SubmittedAt.Before(out[k].SubmittedAt)
	})
	return out
}

func (r *MemoryRegistry) CountByChat(chatID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, j := range r.jobs {
		if j.ChatID == chatID {
			n++
		}
	}
	return n
}

func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
