package adapter

import (
	"context"

	"telegram-research-relay/internal/domain/model"
)

// ClusterAdapter is the subset of the cluster scheduler API the relay consumes.
// All calls operate in one fixed namespace chosen by the implementation.
type ClusterAdapter interface {
	// CreateJob submits spec and returns the job identifier, which equals spec.Name.
	CreateJob(ctx context.Context, spec model.JobSpec) (string, error)
	// GetJobStatus returns domain.ErrJobNotFound when the job no longer exists.
	GetJobStatus(ctx context.Context, jobID string) (model.JobStatus, error)
	// ListPods returns the names of pods matching a label selector.
	ListPods(ctx context.Context, labelSelector string) ([]string, error)
	GetPodLog(ctx context.Context, podName string) (string, error)
}
