package space

import "bytes"

var (
	boundaryLF   = []byte("\n\n")
	boundaryCRLF = []byte("\r\n\r\n")
)

// FrameHandler consumes parsed frames. Resolved reports whether the job has
// reached a terminal state; the framer stops scanning once it does.
type FrameHandler interface {
	HandleFrame(Frame)
	Resolved() bool
}

// Framer buffers chunks of one stream and cuts them into frames at blank-line
// boundaries. A Framer belongs to exactly one job and is not safe for
// concurrent use.
type Framer struct {
	buf []byte
}

func NewFramer() *Framer {
	return &Framer{}
}

// Feed appends chunk to the buffer and hands every complete frame to h, in
// order, until h resolves. The partial tail is kept for the next call.
// It returns the number of frames handed to h.
func (f *Framer) Feed(chunk []byte, h FrameHandler) int {
	f.buf = append(f.buf, chunk...)
	n := 0
	for !h.Resolved() {
		idx, width := nextBoundary(f.buf)
		if idx < 0 {
			break
		}
		block := string(f.buf[:idx])
		f.buf = f.buf[idx+width:]
		n++
		h.HandleFrame(ParseFrame(block))
	}
	return n
}

// Pending returns the buffered bytes that do not yet form a complete frame.
func (f *Framer) Pending() []byte {
	return f.buf
}

// Reset drops any buffered bytes.
func (f *Framer) Reset() {
	f.buf = nil
}

// nextBoundary returns the index and width of the earliest blank line.
func nextBoundary(b []byte) (int, int) {
	lf := bytes.Index(b, boundaryLF)
	crlf := bytes.Index(b, boundaryCRLF)
	switch {
	case lf < 0 && crlf < 0:
		return -1, 0
	case crlf < 0:
		return lf, len(boundaryLF)
	case lf < 0 || crlf < lf:
		return crlf, len(boundaryCRLF)
	default:
		return lf, len(boundaryLF)
	}
}
