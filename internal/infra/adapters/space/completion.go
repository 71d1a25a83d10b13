package space

import (
	"encoding/json"
	"errors"
	"sync"

	"grecy-client/internal/domain"
	"grecy-client/internal/domain/model"
)

// CompletionState is the lifecycle of one job's result.
type CompletionState int

const (
	StateIdle CompletionState = iota
	StateListening
	StateCompleted
	StateFailed
)

func (s CompletionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

const genericStreamError = "remote service reported an error"

// Completion resolves a job's Outcome at most once. The first terminal frame,
// end of stream, transport error, or cancellation wins; every later signal is
// ignored. Signals may arrive from different goroutines.
type Completion struct {
	mu      sync.Mutex
	state   CompletionState
	outcome model.Outcome
	done    chan struct{}
}

func NewCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// Listen marks the stream as open. It has no effect once resolved.
func (c *Completion) Listen() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateIdle {
		c.state = StateListening
	}
}

// HandleFrame applies a parsed frame. Non-terminal and unknown events are
// dropped.
func (c *Completion) HandleFrame(f Frame) {
	switch f.Event {
	case EventComplete:
		c.resolve(decodeComplete(f))
	case EventError:
		msg := f.Data
		if !f.HasData || msg == "" {
			msg = genericStreamError
		}
		c.resolve(model.Failure(domain.StreamError(msg)))
	}
}

// End signals a clean close of the stream.
func (c *Completion) End() {
	c.resolve(model.Failure(domain.PrematureEnd()))
}

// Fail signals a transport failure. A *domain.JobError is kept as is; any
// other error is wrapped as a transport error.
func (c *Completion) Fail(err error) {
	var je *domain.JobError
	if !errors.As(err, &je) {
		err = domain.TransportError(0, "", err)
	}
	c.resolve(model.Failure(err))
}

// Cancel resolves the job as cancelled.
func (c *Completion) Cancel(cause error) {
	c.resolve(model.Failure(domain.Cancelled(cause)))
}

// Resolved reports whether the Outcome is fixed.
func (c *Completion) Resolved() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateCompleted || c.state == StateFailed
}

func (c *Completion) State() CompletionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed when the Outcome is fixed.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Outcome blocks until the job resolves and returns its Outcome.
func (c *Completion) Outcome() model.Outcome {
	<-c.done
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome
}

func (c *Completion) resolve(o model.Outcome) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateCompleted || c.state == StateFailed {
		return false
	}
	c.outcome = o
	if o.OK() {
		c.state = StateCompleted
	} else {
		c.state = StateFailed
	}
	close(c.done)
	return true
}

func decodeComplete(f Frame) model.Outcome {
	if !f.HasData {
		return model.Failure(domain.ProtocolError("complete frame without payload", nil))
	}
	var outputs []json.RawMessage
	if err := json.Unmarshal([]byte(f.Data), &outputs); err != nil {
		return model.Failure(domain.ProtocolError("non-array or undecodable complete payload", err))
	}
	// "null" decodes into a nil slice without error.
	if outputs == nil {
		return model.Failure(domain.ProtocolError("non-array or undecodable complete payload", nil))
	}
	return model.Success(outputs)
}
