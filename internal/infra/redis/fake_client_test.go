package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"grecy-client/internal/domain"
)

// memClient is an in-memory RedisClient. Expiry is recorded, not enforced.
type memClient struct {
	mu      sync.Mutex
	kv      map[string]string
	ttl     map[string]time.Duration
	failAll error
}

var _ RedisClient = (*memClient)(nil)

func newMemClient() *memClient {
	return &memClient{kv: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (m *memClient) Ping(context.Context) error { return m.failAll }

func (m *memClient) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.failAll != nil {
		return m.failAll
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.kv[key] = string(v)
	case string:
		m.kv[key] = v
	default:
		m.kv[key] = fmt.Sprint(v)
	}
	m.ttl[key] = expiration
	return nil
}

func (m *memClient) Get(_ context.Context, key string) (string, error) {
	if m.failAll != nil {
		return "", m.failAll
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.kv[key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

func (m *memClient) Incr(_ context.Context, key string) (int64, error) {
	if m.failAll != nil {
		return 0, m.failAll
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	if v, ok := m.kv[key]; ok {
		if _, err := fmt.Sscan(v, &n); err != nil {
			return 0, errors.New("value is not an integer")
		}
	}
	n++
	m.kv[key] = fmt.Sprint(n)
	return n, nil
}

func (m *memClient) Expire(_ context.Context, key string, expiration time.Duration) error {
	if m.failAll != nil {
		return m.failAll
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ttl[key] = expiration
	return nil
}

func (m *memClient) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.kv, k)
		delete(m.ttl, k)
	}
	return nil
}

func (m *memClient) Close() error { return nil }
