package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a job failed. It is stable and safe to use as a
// metric label or a persisted column value.
type ErrorKind string

const (
	KindNone         ErrorKind = ""
	KindTransport    ErrorKind = "transport"
	KindProtocol     ErrorKind = "protocol"
	KindStream       ErrorKind = "stream"
	KindPrematureEnd ErrorKind = "premature_end"
	KindCancelled    ErrorKind = "cancelled"
	KindPrecondition ErrorKind = "precondition"
	KindUnknown      ErrorKind = "unknown"
)

// Sentinels matched by errors.Is against any *JobError of the same kind.
var (
	ErrTransport    = errors.New("transport error")
	ErrProtocol     = errors.New("protocol error")
	ErrStream       = errors.New("stream error")
	ErrPrematureEnd = errors.New("stream ended before a terminal frame")
	ErrCancelled    = errors.New("job cancelled")
)

// JobError is the failure carried by a job Outcome.
type JobError struct {
	Kind ErrorKind
	// StatusCode and Body are set for non-2xx responses.
	StatusCode int
	Body       string
	Message    string
	Err        error
}

func (e *JobError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.sentinel().Error()
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
		if e.Body != "" {
			msg += ": " + e.Body
		}
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *JobError) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for this error's kind.
func (e *JobError) Is(target error) bool {
	s := e.sentinel()
	return s != nil && target == s
}

func (e *JobError) sentinel() error {
	switch e.Kind {
	case KindTransport:
		return ErrTransport
	case KindProtocol:
		return ErrProtocol
	case KindStream:
		return ErrStream
	case KindPrematureEnd:
		return ErrPrematureEnd
	case KindCancelled:
		return ErrCancelled
	default:
		return nil
	}
}

// TransportError reports a non-2xx status (statusCode > 0) or a
// connection-level failure (cause != nil).
func TransportError(statusCode int, body string, cause error) *JobError {
	return &JobError{Kind: KindTransport, StatusCode: statusCode, Body: body, Message: "transport error", Err: cause}
}

func ProtocolError(msg string, cause error) *JobError {
	return &JobError{Kind: KindProtocol, Message: "protocol error: " + msg, Err: cause}
}

// StreamError carries the message of an explicit error event.
func StreamError(msg string) *JobError {
	return &JobError{Kind: KindStream, Message: msg}
}

func PrematureEnd() *JobError {
	return &JobError{Kind: KindPrematureEnd}
}

func Cancelled(cause error) *JobError {
	return &JobError{Kind: KindCancelled, Err: cause}
}

// KindOf returns the classification of err, or KindNone for nil.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var je *JobError
	if errors.As(err, &je) {
		return je.Kind
	}
	if errors.Is(err, ErrClientClosed) {
		return KindPrecondition
	}
	return KindUnknown
}
