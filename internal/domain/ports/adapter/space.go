package adapter

import (
	"context"

	"grecy-client/internal/domain/model"
)

// JobRunner submits one job to the remote service and waits for its single
// Outcome. Implementations must not share per-job state between calls.
type JobRunner interface {
	Run(ctx context.Context, req model.JobRequest) model.Outcome
}
