// Package space is a client for the queue protocol of a hosted analysis
// Space: a job is enqueued with a POST that yields an event id, and its
// result is read from an event stream keyed by that id.
package space

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"grecy-client/internal/domain"
	"grecy-client/internal/domain/model"
	"grecy-client/internal/domain/ports/adapter"
	"grecy-client/internal/infra/logging"
	"grecy-client/internal/infra/metrics"
)

var _ adapter.JobRunner = (*Client)(nil)

const readChunkSize = 4096

type Options struct {
	BaseURL  string // e.g. https://owner-grecy.hf.space
	Endpoint string // e.g. gradio_api/call/analyze
	// Token is sent as a bearer token when set (private Spaces).
	Token string
	// EnqueueTimeout bounds the enqueue request. Zero means no limit.
	EnqueueTimeout time.Duration
	// StreamTimeout bounds the whole stream. Zero means no limit; when it
	// fires the job fails as cancelled.
	StreamTimeout time.Duration
	// HTTPClient is shared by all jobs. It must not set Client.Timeout, which
	// would cut long-lived streams.
	HTTPClient *http.Client
}

// Client runs jobs against one Space endpoint. It is safe for concurrent use;
// each Run owns its own framer and completion.
type Client struct {
	http           *http.Client
	enqueueURL     string
	token          string
	enqueueTimeout time.Duration
	streamTimeout  time.Duration
	closed         atomic.Bool
	log            *zerolog.Logger
}

func NewClient(opts Options, logger *zerolog.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, errors.New("space: empty base url")
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.New("space: base url must be absolute")
	}
	endpoint := strings.Trim(strings.TrimSpace(opts.Endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("space: empty endpoint")
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "space_client").Logger()
	return &Client{
		http:           hc,
		enqueueURL:     base + "/" + endpoint,
		token:          opts.Token,
		enqueueTimeout: opts.EnqueueTimeout,
		streamTimeout:  opts.StreamTimeout,
		log:            &l,
	}, nil
}

// Run enqueues req and waits for its Outcome. An enqueue failure is returned
// without opening a stream. Cancelling ctx fails the job as cancelled.
func (c *Client) Run(ctx context.Context, req model.JobRequest) model.Outcome {
	if c.closed.Load() {
		return model.Failure(domain.ErrClientClosed)
	}
	handle, err := c.Enqueue(ctx, req)
	if err != nil {
		c.log.Debug().Err(err).Msg("enqueue failed")
		return model.Failure(err)
	}
	c.log.Debug().Str("event_id", handle.String()).Msg("job enqueued")
	return c.Await(ctx, handle)
}

// Await streams the events of an enqueued job until it resolves.
func (c *Client) Await(ctx context.Context, handle model.JobHandle) model.Outcome {
	if c.closed.Load() {
		return model.Failure(domain.ErrClientClosed)
	}
	ctx = logging.WithEventID(ctx, handle.String())
	log := logging.With(ctx, c.log)
	start := time.Now()
	o := c.await(ctx, handle, log)
	o.Handle = handle
	kind := domain.KindOf(o.Err)
	metrics.ObserveStream(string(kind), time.Since(start))
	if o.OK() {
		log.Debug().Int("outputs", len(o.Outputs)).Msg("job completed")
	} else {
		log.Debug().Err(o.Err).Str("kind", string(kind)).Msg("job failed")
	}
	return o
}

func (c *Client) await(ctx context.Context, handle model.JobHandle, log *zerolog.Logger) model.Outcome {
	if c.streamTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.streamTimeout)
		defer cancel()
	}
	done := NewCompletion()

	// streamCtx is cancelled on return so the connection is released even
	// when the job resolved before the server closed the stream.
	streamCtx, release := context.WithCancel(ctx)
	defer release()

	resp, err := c.openStream(streamCtx, handle)
	if err != nil {
		done.Fail(err)
		return done.Outcome()
	}
	defer resp.Body.Close()
	done.Listen()

	go func() {
		select {
		case <-ctx.Done():
			done.Cancel(ctx.Err())
			release()
		case <-done.Done():
		}
	}()

	c.pump(ctx, resp.Body, done, log)
	return done.Outcome()
}

// pump reads body chunks into a per-job framer until the job resolves.
func (c *Client) pump(ctx context.Context, body io.Reader, done *Completion, log *zerolog.Logger) {
	framer := NewFramer()
	defer framer.Reset()
	h := &observedHandler{inner: done, log: log}
	buf := make([]byte, readChunkSize)
	for !done.Resolved() {
		n, err := body.Read(buf)
		if n > 0 {
			framer.Feed(buf[:n], h)
		}
		if err == io.EOF {
			done.End()
			return
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				done.Cancel(ctxErr)
			} else {
				done.Fail(err)
			}
			return
		}
	}
}

func (c *Client) openStream(ctx context.Context, handle model.JobHandle) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.streamURL(handle), nil)
	if err != nil {
		return nil, domain.TransportError(0, "", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportOrCancel(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxEnqueueBody))
		return nil, domain.TransportError(resp.StatusCode, string(raw), nil)
	}
	return resp, nil
}

// streamURL appends the handle verbatim.
func (c *Client) streamURL(handle model.JobHandle) string {
	return c.enqueueURL + "/" + string(handle)
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// Close releases pooled connections. Jobs started afterwards fail with
// domain.ErrClientClosed. Close is idempotent.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.http.CloseIdleConnections()
	c.log.Info().Msg("space client closed")
	return nil
}

// observedHandler counts and logs frames before passing them on.
type observedHandler struct {
	inner *Completion
	log   *zerolog.Logger
}

func (h *observedHandler) HandleFrame(f Frame) {
	metrics.IncStreamFrame(f.Event)
	if f.IsTerminal() {
		h.log.Debug().Str("event", f.Event).Msg("terminal frame")
	} else {
		h.log.Trace().Str("event", f.Event).Msg("frame")
	}
	h.inner.HandleFrame(f)
}

func (h *observedHandler) Resolved() bool { return h.inner.Resolved() }
