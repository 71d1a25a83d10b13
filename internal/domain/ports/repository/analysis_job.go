package repository

import (
	"context"
	"time"

	"grecy-client/internal/domain/model"
)

type AnalysisJobRepository interface {
	Save(ctx context.Context, tx Tx, job *model.AnalysisJob) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.AnalysisJob, error)
	ListRecent(ctx context.Context, tx Tx, limit int) ([]*model.AnalysisJob, error)
	// DeleteFinishedBefore removes terminal jobs finished before cutoff and
	// returns how many were deleted.
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
