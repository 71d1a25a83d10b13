package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"grecy-client/internal/domain"
	"grecy-client/internal/domain/ports/repository"
	"grecy-client/internal/infra/metrics"
)

var _ repository.OutcomeCache = (*OutcomeCache)(nil)

const outcomeKeyPrefix = "outcome:"

// OutcomeCache keeps the outputs of successful jobs so identical requests can
// be answered without another round trip to the Space.
type OutcomeCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewOutcomeCache(client RedisClient, ttl time.Duration) *OutcomeCache {
	return &OutcomeCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *OutcomeCache) Put(ctx context.Context, key string, outputs []json.RawMessage) error {
	data, err := json.Marshal(outputs)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, outcomeKeyPrefix+key, data, c.ttl)
}

func (c *OutcomeCache) Get(ctx context.Context, key string) ([]json.RawMessage, error) {
	data, err := c.client.Get(ctx, outcomeKeyPrefix+key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncCacheRequest("outcome", "miss")
		} else {
			metrics.IncCacheRequest("outcome", "error")
		}
		return nil, err
	}

	var outputs []json.RawMessage
	if err := json.Unmarshal([]byte(data), &outputs); err != nil {
		metrics.IncCacheRequest("outcome", "error")
		return nil, err
	}
	metrics.IncCacheRequest("outcome", "hit")
	return outputs, nil
}

func (c *OutcomeCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, outcomeKeyPrefix+key)
}
