// File: internal/usecase/analysis_uc.go
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"grecy-client/internal/domain"
	"grecy-client/internal/domain/model"
	"grecy-client/internal/domain/ports/adapter"
	"grecy-client/internal/domain/ports/repository"
	"grecy-client/internal/infra/logging"
	"grecy-client/internal/infra/metrics"
)

// Compile-time check
var _ AnalysisUseCase = (*analysisUC)(nil)

// AnalysisInput is one text to analyse. Empty Language falls back to the
// configured default.
type AnalysisInput struct {
	Language string `json:"language"`
	Model    string `json:"model"`
	Text     string `json:"text"`
}

type AnalysisUseCase interface {
	// Analyze runs one job to completion. A job that fails remotely is
	// returned with Status=failed and a nil error; the error is reserved for
	// invalid input and storage failures.
	Analyze(ctx context.Context, in AnalysisInput) (*model.AnalysisJob, error)
	Get(ctx context.Context, id string) (*model.AnalysisJob, error)
	ListRecent(ctx context.Context, limit int) ([]*model.AnalysisJob, error)
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
	Models() []string
}

type AnalysisOptions struct {
	DefaultLanguage string
	Models          []string
	Dev             bool
}

type analysisUC struct {
	runner adapter.JobRunner
	jobs   repository.AnalysisJobRepository // nil disables history
	cache  repository.OutcomeCache          // nil disables caching
	opts   AnalysisOptions
	models map[string]struct{}
	log    *zerolog.Logger
}

func NewAnalysisUseCase(
	runner adapter.JobRunner,
	jobs repository.AnalysisJobRepository,
	cache repository.OutcomeCache,
	opts AnalysisOptions,
	logger *zerolog.Logger,
) *analysisUC {
	models := make(map[string]struct{}, len(opts.Models))
	for _, m := range opts.Models {
		models[m] = struct{}{}
	}
	l := logger.With().Str("component", "AnalysisUC").Logger()
	return &analysisUC{
		runner: runner,
		jobs:   jobs,
		cache:  cache,
		opts:   opts,
		models: models,
		log:    &l,
	}
}

func (uc *analysisUC) Analyze(ctx context.Context, in AnalysisInput) (*model.AnalysisJob, error) {
	defer logging.TraceDuration(uc.log, "AnalysisUC.Analyze")()

	in.Model = strings.TrimSpace(in.Model)
	if len(uc.models) > 0 {
		if _, ok := uc.models[in.Model]; !ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownModel, in.Model)
		}
	}
	if in.Language == "" {
		in.Language = uc.opts.DefaultLanguage
	}
	job, err := model.NewAnalysisJob(ulid.Make().String(), in.Language, in.Model, in.Text)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithJobID(ctx, job.ID)
	log := logging.With(ctx, uc.log)

	req := job.Request()
	cacheKey, keyErr := req.Digest()
	if outputs, ok := uc.cached(ctx, cacheKey, keyErr); ok {
		job.Cached = true
		job.Finish(model.Success(outputs))
		metrics.IncAnalysisJob(string(job.Status), "")
		uc.save(ctx, job)
		log.Info().Str("model", job.Model).Msg("analysis served from cache")
		return job, nil
	}

	job.Status = model.AnalysisJobStatusRunning
	if uc.jobs != nil {
		if err := uc.jobs.Save(ctx, nil, job); err != nil {
			return nil, fmt.Errorf("save job: %w", err)
		}
	}
	log.Info().
		Str("model", job.Model).
		Str("language", job.Language).
		Str("text", logging.Redact(job.Text, uc.opts.Dev)).
		Msg("analysis started")

	done := metrics.TrackInFlight()
	outcome := uc.runner.Run(ctx, req)
	done()

	job.Finish(outcome)
	metrics.IncAnalysisJob(string(job.Status), string(job.ErrorKind))
	if outcome.OK() {
		log.Info().Int("outputs", len(outcome.Outputs)).Msg("analysis completed")
		if uc.cache != nil && keyErr == nil {
			if err := uc.cache.Put(ctx, cacheKey, outcome.Outputs); err != nil {
				log.Warn().Err(err).Msg("could not cache outcome")
			}
		}
	} else {
		log.Error().Err(outcome.Err).Str("kind", string(job.ErrorKind)).Msg("analysis failed")
	}
	// Record the final state even if the caller's context has ended.
	uc.save(context.WithoutCancel(ctx), job)
	return job, nil
}

func (uc *analysisUC) cached(ctx context.Context, key string, keyErr error) ([]json.RawMessage, bool) {
	if uc.cache == nil || keyErr != nil {
		return nil, false
	}
	outputs, err := uc.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			uc.log.Warn().Err(err).Msg("outcome cache lookup failed")
		}
		return nil, false
	}
	return outputs, true
}

func (uc *analysisUC) save(ctx context.Context, job *model.AnalysisJob) {
	if uc.jobs == nil {
		return
	}
	if err := uc.jobs.Save(ctx, nil, job); err != nil {
		uc.log.Error().Err(err).Str("job_id", job.ID).Msg("could not save job")
	}
}

func (uc *analysisUC) Get(ctx context.Context, id string) (*model.AnalysisJob, error) {
	if uc.jobs == nil {
		return nil, domain.ErrNotFound
	}
	return uc.jobs.FindByID(ctx, nil, id)
}

func (uc *analysisUC) ListRecent(ctx context.Context, limit int) ([]*model.AnalysisJob, error) {
	if uc.jobs == nil {
		return []*model.AnalysisJob{}, nil
	}
	return uc.jobs.ListRecent(ctx, nil, limit)
}

func (uc *analysisUC) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if uc.jobs == nil || olderThan <= 0 {
		return 0, nil
	}
	return uc.jobs.DeleteFinishedBefore(ctx, time.Now().Add(-olderThan))
}

func (uc *analysisUC) Models() []string {
	out := make([]string, len(uc.opts.Models))
	copy(out, uc.opts.Models)
	return out
}
