package repository

import "telegram-research-relay/internal/domain/model"

// TrackedJobRepository is the Job Registry: in-flight jobs keyed by job id.
// Implementations must be safe for concurrent Insert from request handlers while
// the reconciler iterates and removes.
type TrackedJobRepository interface {
	// Insert fails with domain.ErrAlreadyExists if the id is already tracked.
	Insert(job model.TrackedJob) error
	Remove(id string)
	// Snapshot returns a copy of all entries, ordered by submission time.
	Snapshot() []model.TrackedJob
	CountByChat(chatID int64) int
	Len() int
}
