package space

import "strings"

// Event types sent by the remote queue.
const (
	EventHeartbeat  = "heartbeat"
	EventGenerating = "generating"
	EventComplete   = "complete"
	EventError      = "error"
)

const (
	eventPrefix = "event:"
	dataPrefix  = "data:"
)

// Frame is one blank-line delimited block of the event stream.
type Frame struct {
	Event   string // "" when the block has no event line
	Data    string
	HasData bool
}

// IsTerminal reports whether the frame ends a job.
func (f Frame) IsTerminal() bool {
	return f.Event == EventComplete || f.Event == EventError
}

// ParseFrame extracts the event type and payload from a block that contains
// no blank-line boundary. When several data lines are present the last one
// wins. Lines with any other prefix (id:, retry:, comments) are ignored.
func ParseFrame(block string) Frame {
	var f Frame
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSuffix(line, "\r")
		switch {
		case strings.HasPrefix(line, eventPrefix):
			f.Event = strings.TrimSpace(line[len(eventPrefix):])
		case strings.HasPrefix(line, dataPrefix):
			f.Data = strings.TrimSpace(line[len(dataPrefix):])
			f.HasData = true
		}
	}
	return f
}
