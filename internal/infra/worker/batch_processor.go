package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"grecy-client/internal/domain"
	"grecy-client/internal/domain/model"
	"grecy-client/internal/usecase"
)

// BatchResult pairs one batch input with its job, or with the error that
// kept the job from running.
type BatchResult struct {
	Index int                `json:"index"`
	Job   *model.AnalysisJob `json:"job,omitempty"`
	Error string             `json:"error,omitempty"`
}

// BatchProcessor runs independent analysis jobs on a pool. A failed job is
// logged and the batch continues.
type BatchProcessor struct {
	analysis usecase.AnalysisUseCase
	pool     *Pool
	log      *zerolog.Logger
}

func NewBatchProcessor(analysis usecase.AnalysisUseCase, pool *Pool, log *zerolog.Logger) *BatchProcessor {
	l := log.With().Str("component", "BatchProcessor").Logger()
	return &BatchProcessor{analysis: analysis, pool: pool, log: &l}
}

// Run submits every input and waits for all of them. Results are in input
// order.
func (b *BatchProcessor) Run(ctx context.Context, inputs []usecase.AnalysisInput) []BatchResult {
	results := make([]BatchResult, len(inputs))
	start := time.Now()
	var wg sync.WaitGroup

	for i, in := range inputs {
		i, in := i, in
		results[i].Index = i
		wg.Add(1)
		err := b.pool.SubmitWait(ctx, func(taskCtx context.Context) error {
			defer wg.Done()
			if err := taskCtx.Err(); err != nil {
				results[i].Error = domain.Cancelled(err).Error()
				return nil
			}
			b.processOne(ctx, i, in, &results[i])
			return nil
		})
		if err != nil {
			wg.Done()
			results[i].Error = domain.Cancelled(err).Error()
			b.log.Warn().Err(err).Int("index", i).Msg("batch input not submitted")
		}
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Job == nil || r.Job.Status != model.AnalysisJobStatusCompleted {
			failed++
		}
	}
	b.log.Info().
		Int("total", len(inputs)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("batch finished")
	return results
}

func (b *BatchProcessor) processOne(ctx context.Context, i int, in usecase.AnalysisInput, out *BatchResult) {
	job, err := b.analysis.Analyze(ctx, in)
	if err != nil {
		out.Error = err.Error()
		b.log.Error().Err(err).Int("index", i).Msg("batch job rejected")
		return
	}
	out.Job = job
	if job.Status == model.AnalysisJobStatusFailed {
		b.log.Warn().
			Int("index", i).
			Str("job_id", job.ID).
			Str("kind", string(job.ErrorKind)).
			Str("error", job.LastError).
			Msg("batch job failed; continuing")
	}
}
