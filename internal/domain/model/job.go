package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// JobRequest is the ordered list of positional arguments sent to the remote
// function. The order must match the function signature on the server.
type JobRequest struct {
	data []any
}

// NewJobRequest copies args so later changes by the caller are not observed.
func NewJobRequest(args ...any) JobRequest {
	d := make([]any, len(args))
	copy(d, args)
	return JobRequest{data: d}
}

// NewAnalysisRequest builds the (ui language, model key, text) request the
// analysis function expects.
func NewAnalysisRequest(language, modelKey, text string) JobRequest {
	return NewJobRequest(language, modelKey, text)
}

// Data returns a copy of the positional values.
func (r JobRequest) Data() []any {
	d := make([]any, len(r.data))
	copy(d, r.data)
	return d
}

func (r JobRequest) Len() int { return len(r.data) }

// MarshalJSON renders the enqueue body {"data": [...]}.
func (r JobRequest) MarshalJSON() ([]byte, error) {
	data := r.data
	if data == nil {
		data = []any{}
	}
	return json.Marshal(struct {
		Data []any `json:"data"`
	}{Data: data})
}

// Digest is a stable hex digest of the request body, used as a cache key.
func (r JobRequest) Digest() (string, error) {
	b, err := r.MarshalJSON()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// JobHandle is the opaque token returned by the enqueue step.
type JobHandle string

func (h JobHandle) String() string { return string(h) }

// Outcome is the single result of a job: either outputs or an error.
type Outcome struct {
	Outputs []json.RawMessage
	Err     error
	// Handle is the job's event id when the enqueue step succeeded.
	Handle JobHandle
}

func Success(outputs []json.RawMessage) Outcome {
	if outputs == nil {
		outputs = []json.RawMessage{}
	}
	return Outcome{Outputs: outputs}
}

func Failure(err error) Outcome {
	if err == nil {
		err = fmt.Errorf("failure without cause")
	}
	return Outcome{Err: err}
}

func (o Outcome) OK() bool { return o.Err == nil }

// Table is the tabular first output of an analysis: a header row plus data rows.
type Table struct {
	Headers []string   `json:"headers"`
	Data    [][]string `json:"data"`
}

// DecodeTable decodes outputs[0] as a Table. Non-string cells are rendered
// with their JSON text; null cells are empty.
func DecodeTable(outputs []json.RawMessage) (*Table, error) {
	if len(outputs) == 0 {
		return nil, fmt.Errorf("decode table: no outputs")
	}
	var raw struct {
		Headers []string            `json:"headers"`
		Data    [][]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(outputs[0], &raw); err != nil {
		return nil, fmt.Errorf("decode table: %w", err)
	}
	t := &Table{Headers: raw.Headers, Data: make([][]string, 0, len(raw.Data))}
	for _, row := range raw.Data {
		cells := make([]string, 0, len(row))
		for _, c := range row {
			var s string
			if err := json.Unmarshal(c, &s); err != nil {
				s = string(c)
			}
			cells = append(cells, s)
		}
		t.Data = append(t.Data, cells)
	}
	return t, nil
}
