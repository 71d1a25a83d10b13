package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"grecy-client/internal/domain"
	"grecy-client/internal/domain/model"
	"grecy-client/internal/domain/ports/repository"
	"grecy-client/internal/infra/security"
)

var _ repository.AnalysisJobRepository = (*AnalysisJobRepo)(nil)

const maxListLimit = 500

// AnalysisJobRepo stores job history in the analysis_jobs table. The
// submitted text is sealed with the job id before it is written.
type AnalysisJobRepo struct {
	pool   *pgxpool.Pool
	sealer security.Sealer
}

func NewAnalysisJobRepo(pool *pgxpool.Pool, sealer security.Sealer) *AnalysisJobRepo {
	if sealer == nil {
		sealer = security.PlainSealer{}
	}
	return &AnalysisJobRepo{pool: pool, sealer: sealer}
}

const jobColumns = `id, event_id, status, language, model, text_sealed, outputs, error_kind, last_error, cached, created_at, updated_at, finished_at`

func (r *AnalysisJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.AnalysisJob) error {
	if job.ID == "" {
		job.ID = ulid.Make().String()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	job.UpdatedAt = time.Now()

	sealed, err := r.sealer.Seal(job.ID, job.Text)
	if err != nil {
		return fmt.Errorf("seal text: %w", err)
	}
	var outputs []byte
	if job.Outputs != nil {
		if outputs, err = json.Marshal(job.Outputs); err != nil {
			return fmt.Errorf("encode outputs: %w", err)
		}
	}

	const q = `
INSERT INTO analysis_jobs (` + jobColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (id) DO UPDATE SET
  event_id = EXCLUDED.event_id,
  status = EXCLUDED.status,
  outputs = EXCLUDED.outputs,
  error_kind = EXCLUDED.error_kind,
  last_error = EXCLUDED.last_error,
  cached = EXCLUDED.cached,
  updated_at = EXCLUDED.updated_at,
  finished_at = EXCLUDED.finished_at;`

	_, err = execSQL(ctx, r.pool, tx, q,
		job.ID, job.EventID, string(job.Status), job.Language, job.Model, sealed, outputs,
		string(job.ErrorKind), job.LastError, job.Cached, job.CreatedAt, job.UpdatedAt, job.FinishedAt)
	return err
}

func (r *AnalysisJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.AnalysisJob, error) {
	q := `SELECT ` + jobColumns + ` FROM analysis_jobs WHERE id = $1`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return r.scan(row)
}

func (r *AnalysisJobRepo) ListRecent(ctx context.Context, tx repository.Tx, limit int) ([]*model.AnalysisJob, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	q := `SELECT ` + jobColumns + ` FROM analysis_jobs ORDER BY created_at DESC LIMIT $1`
	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*model.AnalysisJob, 0, limit)
	for rows.Next() {
		job, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func (r *AnalysisJobRepo) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `
DELETE FROM analysis_jobs
WHERE status IN ('completed', 'failed') AND finished_at < $1;`
	tag, err := execSQL(ctx, r.pool, nil, q, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *AnalysisJobRepo) scan(row pgx.Row) (*model.AnalysisJob, error) {
	var (
		job       model.AnalysisJob
		status    string
		errorKind string
		sealed    string
		outputs   []byte
	)
	err := row.Scan(
		&job.ID, &job.EventID, &status, &job.Language, &job.Model, &sealed, &outputs,
		&errorKind, &job.LastError, &job.Cached, &job.CreatedAt, &job.UpdatedAt, &job.FinishedAt,
	)
	if err != nil {
		return nil, scanErr(err)
	}
	job.Status = model.AnalysisJobStatus(status)
	job.ErrorKind = domain.ErrorKind(errorKind)
	if len(outputs) > 0 {
		if err := json.Unmarshal(outputs, &job.Outputs); err != nil {
			return nil, fmt.Errorf("decode outputs: %w", err)
		}
	}
	if job.Text, err = r.sealer.Open(job.ID, sealed); err != nil {
		return nil, fmt.Errorf("open text: %w", err)
	}
	return &job, nil
}
