package space

import (
	"context"

	"grecy-client/internal/domain"
	"grecy-client/internal/domain/model"
	"grecy-client/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.JobRunner = (*limitedRunner)(nil)

type limitedRunner struct {
	inner adapter.JobRunner
	sem   chan struct{}
}

// NewLimitedRunner bounds how many jobs run against the Space at once.
// A job waiting for a slot fails as cancelled if ctx ends first.
func NewLimitedRunner(inner adapter.JobRunner, maxConcurrent int) adapter.JobRunner {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedRunner{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedRunner) Run(ctx context.Context, req model.JobRequest) model.Outcome {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return model.Failure(domain.Cancelled(ctx.Err()))
	}
	defer func() { <-l.sem }()
	return l.inner.Run(ctx, req)
}
