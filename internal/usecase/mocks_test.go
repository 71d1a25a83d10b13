// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"grecy-client/internal/domain"
	"grecy-client/internal/domain/model"
	"grecy-client/internal/domain/ports/repository"
)

// memJobRepo is a small in-memory implementation used by unit tests.
type memJobRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.AnalysisJob
	saves   []model.AnalysisJobStatus // status of every Save, in order
	saveErr error                     // used by tests to simulate save failures
}

func newMemJobRepo() *memJobRepo {
	return &memJobRepo{store: make(map[string]*model.AnalysisJob)}
}

func (m *memJobRepo) Save(ctx context.Context, tx repository.Tx, job *model.AnalysisJob) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *job
	m.store[job.ID] = &cp
	m.saves = append(m.saves, job.Status)
	return nil
}

func (m *memJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.AnalysisJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memJobRepo) ListRecent(ctx context.Context, tx repository.Tx, limit int) ([]*model.AnalysisJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.AnalysisJob, 0, len(m.store))
	for _, j := range m.store {
		cp := *j
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memJobRepo) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, j := range m.store {
		if j.IsTerminal() && j.FinishedAt != nil && j.FinishedAt.Before(cutoff) {
			delete(m.store, id)
			n++
		}
	}
	return n, nil
}

type memCache struct {
	mu     sync.Mutex
	store  map[string][]json.RawMessage
	getErr error
}

func newMemCache() *memCache {
	return &memCache{store: make(map[string][]json.RawMessage)}
}

func (c *memCache) Get(ctx context.Context, key string) ([]json.RawMessage, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.store[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

func (c *memCache) Put(ctx context.Context, key string, outputs []json.RawMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = outputs
	return nil
}

// fakeRunner returns a fixed outcome and records requests.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []model.JobRequest
	outcome model.Outcome
}

func (f *fakeRunner) Run(ctx context.Context, req model.JobRequest) model.Outcome {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return model.Failure(domain.Cancelled(err))
	}
	return f.outcome
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
