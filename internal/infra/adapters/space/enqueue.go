package space

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"grecy-client/internal/domain"
	"grecy-client/internal/domain/model"
	"grecy-client/internal/infra/metrics"
)

// maxEnqueueBody caps how much of an enqueue response is read.
const maxEnqueueBody = 1 << 20

// Enqueue registers a job and returns its handle. It performs exactly one
// request and keeps no local state.
func (c *Client) Enqueue(ctx context.Context, req model.JobRequest) (model.JobHandle, error) {
	if c.closed.Load() {
		return "", domain.ErrClientClosed
	}
	if c.enqueueTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.enqueueTimeout)
		defer cancel()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", domain.ProtocolError("encode request", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.enqueueURL, bytes.NewReader(body))
	if err != nil {
		return "", domain.TransportError(0, "", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	start := time.Now()
	handle, err := c.doEnqueue(ctx, httpReq)
	metrics.ObserveEnqueue(err == nil, time.Since(start))
	return handle, err
}

func (c *Client) doEnqueue(ctx context.Context, httpReq *http.Request) (model.JobHandle, error) {
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", transportOrCancel(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxEnqueueBody))
	if err != nil {
		return "", transportOrCancel(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", domain.TransportError(resp.StatusCode, string(raw), nil)
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
		return "", domain.ProtocolError("enqueue response is not a JSON object", err)
	}
	idRaw, ok := payload["event_id"]
	if !ok {
		return "", domain.ProtocolError("enqueue response lacks event_id", nil)
	}
	var id string
	if err := json.Unmarshal(idRaw, &id); err != nil {
		return "", domain.ProtocolError(fmt.Sprintf("event_id is not a string: %s", idRaw), nil)
	}
	if id == "" {
		return "", domain.ProtocolError("event_id is empty", nil)
	}
	return model.JobHandle(id), nil
}

// transportOrCancel classifies a request failure: if the caller's context
// ended first the job was cancelled, otherwise the transport failed.
func transportOrCancel(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.Cancelled(ctxErr)
	}
	return domain.TransportError(0, "", err)
}
