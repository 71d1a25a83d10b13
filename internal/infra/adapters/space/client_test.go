package space

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grecy-client/internal/domain"
	"grecy-client/internal/domain/model"
)

const testEndpoint = "gradio_api/call/analyze"

// fakeSpace mimics the two-phase queue API. enqueue answers the POST; stream
// writes the event stream for a handle.
type fakeSpace struct {
	enqueue func(w http.ResponseWriter, body []byte)
	stream  func(w http.ResponseWriter, r *http.Request, handle string)

	posts atomic.Int32
	gets  atomic.Int32

	mu            sync.Mutex
	bodies        [][]byte
	postHeaders   http.Header
	streamHeaders http.Header
	streamHandle  string
}

func (f *fakeSpace) firstBody() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[0]
}

func (f *fakeSpace) lastPostHeaders() http.Header {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.postHeaders
}

func (f *fakeSpace) lastStream() (string, http.Header) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streamHandle, f.streamHeaders
}

func (f *fakeSpace) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	prefix := "/" + testEndpoint
	switch {
	case r.Method == http.MethodPost && r.URL.Path == prefix:
		f.posts.Add(1)
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.bodies = append(f.bodies, body)
		f.postHeaders = r.Header.Clone()
		f.mu.Unlock()
		f.enqueue(w, body)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, prefix+"/"):
		f.gets.Add(1)
		handle := strings.TrimPrefix(r.URL.Path, prefix+"/")
		f.mu.Lock()
		f.streamHandle = handle
		f.streamHeaders = r.Header.Clone()
		f.mu.Unlock()
		f.stream(w, r, handle)
	default:
		http.NotFound(w, r)
	}
}

func enqueueID(id string) func(http.ResponseWriter, []byte) {
	return func(w http.ResponseWriter, _ []byte) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"event_id":%q}`, id)
	}
}

func streamChunks(chunks ...string) func(http.ResponseWriter, *http.Request, string) {
	return func(w http.ResponseWriter, _ *http.Request, _ string) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		fl := w.(http.Flusher)
		for _, c := range chunks {
			_, _ = io.WriteString(w, c)
			fl.Flush()
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func newTestClient(t *testing.T, fs *fakeSpace, mutate ...func(*Options)) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)

	opts := Options{BaseURL: srv.URL, Endpoint: testEndpoint, EnqueueTimeout: 5 * time.Second}
	for _, m := range mutate {
		m(&opts)
	}
	logger := zerolog.Nop()
	c, err := NewClient(opts, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, srv
}

func analysisReq() model.JobRequest {
	return model.NewAnalysisRequest("en", "grc_proiel_trf", "τοῦ δὲ Ἡροδότου ἐν Θουρίοις.")
}

func TestClient_Run_Success(t *testing.T) {
	fs := &fakeSpace{
		enqueue: enqueueID("abc123"),
		stream: streamChunks(
			"event: heartbeat\ndata: null\n\n",
			"event: generating\ndata: [\"partial\"]\n\n",
			"event: complete\ndata: [1,2,3]\n\n",
		),
	}
	c, _ := newTestClient(t, fs)

	o := c.Run(context.Background(), analysisReq())

	require.NoError(t, o.Err)
	assert.Equal(t, []json.RawMessage{json.RawMessage("1"), json.RawMessage("2"), json.RawMessage("3")}, o.Outputs)
	assert.Equal(t, model.JobHandle("abc123"), o.Handle)
	assert.EqualValues(t, 1, fs.posts.Load())
	assert.EqualValues(t, 1, fs.gets.Load())

	var body struct {
		Data []any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(fs.firstBody(), &body))
	assert.Equal(t, []any{"en", "grc_proiel_trf", "τοῦ δὲ Ἡροδότου ἐν Θουρίοις."}, body.Data)
}

func TestClient_Run_StreamHeadersAndHandleVerbatim(t *testing.T) {
	fs := &fakeSpace{
		enqueue: enqueueID("ev-01_AB"),
		stream:  streamChunks("event: complete\ndata: []\n\n"),
	}
	c, _ := newTestClient(t, fs, func(o *Options) { o.Token = "hf_secret" })

	o := c.Run(context.Background(), analysisReq())

	require.NoError(t, o.Err)
	handle, hdr := fs.lastStream()
	assert.Equal(t, "ev-01_AB", handle)
	assert.Equal(t, "text/event-stream", hdr.Get("Accept"))
	assert.Equal(t, "no-cache", hdr.Get("Cache-Control"))
	assert.Equal(t, "Bearer hf_secret", hdr.Get("Authorization"))
}

func TestClient_Run_ErrorEvent(t *testing.T) {
	fs := &fakeSpace{
		enqueue: enqueueID("e1"),
		stream:  streamChunks("event: heartbeat\n\n", "event: error\ndata: model not found\n\n"),
	}
	c, _ := newTestClient(t, fs)

	o := c.Run(context.Background(), analysisReq())

	require.ErrorIs(t, o.Err, domain.ErrStream)
	assert.Equal(t, "model not found", o.Err.Error())
	assert.Equal(t, model.JobHandle("e1"), o.Handle)
}

func TestClient_Run_PrematureEnd(t *testing.T) {
	fs := &fakeSpace{
		enqueue: enqueueID("e1"),
		stream:  streamChunks("event: heartbeat\n\n", "event: generating\ndata: x\n\nevent: compl"),
	}
	c, _ := newTestClient(t, fs)

	o := c.Run(context.Background(), analysisReq())

	assert.ErrorIs(t, o.Err, domain.ErrPrematureEnd)
}

func TestClient_Run_MalformedPayload(t *testing.T) {
	fs := &fakeSpace{
		enqueue: enqueueID("e1"),
		stream:  streamChunks("event: complete\ndata: not-json\n\n"),
	}
	c, _ := newTestClient(t, fs)

	o := c.Run(context.Background(), analysisReq())

	assert.ErrorIs(t, o.Err, domain.ErrProtocol)
}

func TestClient_Run_EnqueueFailureSkipsStream(t *testing.T) {
	fs := &fakeSpace{
		enqueue: func(w http.ResponseWriter, _ []byte) {
			http.Error(w, "queue is full", http.StatusInternalServerError)
		},
		stream: streamChunks("event: complete\ndata: []\n\n"),
	}
	c, _ := newTestClient(t, fs)

	o := c.Run(context.Background(), analysisReq())

	require.ErrorIs(t, o.Err, domain.ErrTransport)
	var je *domain.JobError
	require.ErrorAs(t, o.Err, &je)
	assert.Equal(t, http.StatusInternalServerError, je.StatusCode)
	assert.Contains(t, je.Body, "queue is full")
	assert.EqualValues(t, 0, fs.gets.Load())
	assert.Empty(t, o.Handle)
}

func TestClient_Run_SplitFrameDelivery(t *testing.T) {
	fs := &fakeSpace{
		enqueue: enqueueID("e1"),
		stream:  streamChunks("event: comp", "lete\ndata: [1,2,", "3]\n\n"),
	}
	c, _ := newTestClient(t, fs)

	o := c.Run(context.Background(), analysisReq())

	require.NoError(t, o.Err)
	assert.Len(t, o.Outputs, 3)
}

func TestClient_Run_CRLFStream(t *testing.T) {
	fs := &fakeSpace{
		enqueue: enqueueID("e1"),
		stream:  streamChunks("event: heartbeat\r\n\r\n", "event: complete\r\ndata: [\"ok\"]\r\n\r\n"),
	}
	c, _ := newTestClient(t, fs)

	o := c.Run(context.Background(), analysisReq())

	require.NoError(t, o.Err)
	assert.Equal(t, `"ok"`, string(o.Outputs[0]))
}

func TestClient_Run_IgnoresFramesAfterTerminal(t *testing.T) {
	fs := &fakeSpace{
		enqueue: enqueueID("e1"),
		stream:  streamChunks("event: complete\ndata: [1]\n\nevent: error\ndata: late\n\n"),
	}
	c, _ := newTestClient(t, fs)

	o := c.Run(context.Background(), analysisReq())

	require.NoError(t, o.Err)
	assert.Len(t, o.Outputs, 1)
}

func holdOpen(w http.ResponseWriter, r *http.Request, _ string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "event: heartbeat\n\n")
	w.(http.Flusher).Flush()
	<-r.Context().Done()
}

func TestClient_Run_Cancel(t *testing.T) {
	fs := &fakeSpace{enqueue: enqueueID("e1"), stream: holdOpen}
	c, _ := newTestClient(t, fs)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	o := c.Run(ctx, analysisReq())

	require.ErrorIs(t, o.Err, domain.ErrCancelled)
	assert.ErrorIs(t, o.Err, context.Canceled)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClient_Run_StreamTimeout(t *testing.T) {
	fs := &fakeSpace{enqueue: enqueueID("e1"), stream: holdOpen}
	c, _ := newTestClient(t, fs, func(o *Options) { o.StreamTimeout = 50 * time.Millisecond })

	o := c.Run(context.Background(), analysisReq())

	require.ErrorIs(t, o.Err, domain.ErrCancelled)
	assert.ErrorIs(t, o.Err, context.DeadlineExceeded)
}

func TestClient_Run_StreamNotFound(t *testing.T) {
	fs := &fakeSpace{
		enqueue: enqueueID("e1"),
		stream: func(w http.ResponseWriter, r *http.Request, _ string) {
			http.Error(w, "unknown event", http.StatusNotFound)
		},
	}
	c, _ := newTestClient(t, fs)

	o := c.Run(context.Background(), analysisReq())

	var je *domain.JobError
	require.ErrorAs(t, o.Err, &je)
	assert.Equal(t, domain.KindTransport, je.Kind)
	assert.Equal(t, http.StatusNotFound, je.StatusCode)
}

func TestClient_Run_ClosedClient(t *testing.T) {
	fs := &fakeSpace{enqueue: enqueueID("e1"), stream: streamChunks("event: complete\ndata: []\n\n")}
	c, _ := newTestClient(t, fs)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	o := c.Run(context.Background(), analysisReq())
	assert.ErrorIs(t, o.Err, domain.ErrClientClosed)
	assert.Equal(t, domain.KindPrecondition, domain.KindOf(o.Err))

	_, err := c.Enqueue(context.Background(), analysisReq())
	assert.ErrorIs(t, err, domain.ErrClientClosed)
	assert.EqualValues(t, 0, fs.posts.Load())
}

func TestClient_Run_ConcurrentJobsShareClient(t *testing.T) {
	var seq atomic.Int32
	fs := &fakeSpace{
		enqueue: func(w http.ResponseWriter, _ []byte) {
			fmt.Fprintf(w, `{"event_id":"job-%d"}`, seq.Add(1))
		},
		stream: func(w http.ResponseWriter, r *http.Request, handle string) {
			streamChunks(
				"event: heartbeat\n\n",
				fmt.Sprintf("event: complete\ndata: [%q]\n\n", handle),
			)(w, r, handle)
		},
	}
	c, _ := newTestClient(t, fs)

	const n = 8
	outcomes := make([]model.Outcome, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = c.Run(context.Background(), analysisReq())
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, o := range outcomes {
		require.NoError(t, o.Err)
		var got string
		require.NoError(t, json.Unmarshal(o.Outputs[0], &got))
		assert.Equal(t, string(o.Handle), got, "outputs must belong to the job's own stream")
		seen[got] = true
	}
	assert.Len(t, seen, n)
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Options{Endpoint: testEndpoint}, nil)
	assert.Error(t, err)
	_, err = NewClient(Options{BaseURL: "not a url", Endpoint: testEndpoint}, nil)
	assert.Error(t, err)
	_, err = NewClient(Options{BaseURL: "http://localhost:7860"}, nil)
	assert.Error(t, err)

	c, err := NewClient(Options{BaseURL: "http://localhost:7860/", Endpoint: "/gradio_api/call/analyze/"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:7860/gradio_api/call/analyze/abc", c.streamURL("abc"))
}

// dropMidFrame promises a longer body than it sends, writes half a frame and
// closes the connection.
func dropMidFrame(w http.ResponseWriter, _ *http.Request, _ string) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		panic("response writer cannot be hijacked")
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		panic(err)
	}
	defer conn.Close()
	_, _ = io.WriteString(conn, "HTTP/1.1 200 OK\r\n"+
		"Content-Type: text/event-stream\r\n"+
		"Content-Length: 1024\r\n\r\n"+
		"event: generating\ndata: null\n\n"+
		"event: complete\ndata: [1,")
}

func TestClient_Run_ConnectionDroppedMidFrame(t *testing.T) {
	fs := &fakeSpace{enqueue: enqueueID("abc123"), stream: dropMidFrame}
	c, _ := newTestClient(t, fs)

	o := c.Run(context.Background(), analysisReq())

	require.Error(t, o.Err)
	assert.ErrorIs(t, o.Err, domain.ErrTransport)
	assert.Equal(t, domain.KindTransport, domain.KindOf(o.Err))
	assert.Nil(t, o.Outputs)
}

type lockedBuffer struct {
	mu sync.Mutex
	sb strings.Builder
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sb.String()
}

func TestClient_Await_LogsEventID(t *testing.T) {
	fs := &fakeSpace{
		enqueue: enqueueID("abc123"),
		stream:  streamChunks("event: complete\ndata: [1]\n\n"),
	}
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)

	var out lockedBuffer
	logger := zerolog.New(&out).Level(zerolog.DebugLevel)
	c, err := NewClient(Options{BaseURL: srv.URL, Endpoint: testEndpoint}, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	o := c.Run(context.Background(), analysisReq())

	require.NoError(t, o.Err)
	logs := out.String()
	assert.Contains(t, logs, `"event_id":"abc123"`)
	assert.Contains(t, logs, `"message":"job completed"`)
}
