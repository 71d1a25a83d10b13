package repository

import (
	"context"
	"encoding/json"
)

// OutcomeCache stores the outputs of successful jobs by request digest.
// Get returns domain.ErrNotFound on a miss.
type OutcomeCache interface {
	Get(ctx context.Context, key string) ([]json.RawMessage, error)
	Put(ctx context.Context, key string, outputs []json.RawMessage) error
}
