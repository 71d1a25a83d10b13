package model

import (
	"encoding/json"
	"strings"
	"time"

	"grecy-client/internal/domain"
)

type AnalysisJobStatus string

const (
	AnalysisJobStatusPending   AnalysisJobStatus = "pending"
	AnalysisJobStatusRunning   AnalysisJobStatus = "running"
	AnalysisJobStatusCompleted AnalysisJobStatus = "completed"
	AnalysisJobStatusFailed    AnalysisJobStatus = "failed"
)

// AnalysisJob is the persisted record of one submit-and-await cycle.
type AnalysisJob struct {
	ID         string            `json:"id"`
	EventID    string            `json:"event_id,omitempty"`
	Status     AnalysisJobStatus `json:"status"`
	Language   string            `json:"language"`
	Model      string            `json:"model"`
	Text       string            `json:"-"`
	Outputs    []json.RawMessage `json:"outputs,omitempty"`
	ErrorKind  domain.ErrorKind  `json:"error_kind,omitempty"`
	LastError  string            `json:"last_error,omitempty"`
	Cached     bool              `json:"cached"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
}

// NewAnalysisJob validates the input and returns a pending job.
func NewAnalysisJob(id, language, modelKey, text string) (*AnalysisJob, error) {
	if id == "" || strings.TrimSpace(modelKey) == "" {
		return nil, domain.ErrInvalidArgument
	}
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyText
	}
	now := time.Now()
	return &AnalysisJob{
		ID:        id,
		Status:    AnalysisJobStatusPending,
		Language:  language,
		Model:     modelKey,
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Request returns the positional request for this job.
func (j *AnalysisJob) Request() JobRequest {
	return NewAnalysisRequest(j.Language, j.Model, j.Text)
}

// Finish records the outcome and moves the job to a terminal status.
func (j *AnalysisJob) Finish(o Outcome) {
	now := time.Now()
	j.UpdatedAt = now
	j.FinishedAt = &now
	if o.Handle != "" {
		j.EventID = string(o.Handle)
	}
	if o.OK() {
		j.Status = AnalysisJobStatusCompleted
		j.Outputs = o.Outputs
		j.ErrorKind = domain.KindNone
		j.LastError = ""
		return
	}
	j.Status = AnalysisJobStatusFailed
	j.ErrorKind = domain.KindOf(o.Err)
	j.LastError = o.Err.Error()
}

func (j *AnalysisJob) IsTerminal() bool {
	return j.Status == AnalysisJobStatusCompleted || j.Status == AnalysisJobStatusFailed
}
