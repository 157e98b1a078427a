package ripper

import (
	"io"
	"sync"
)

// ChannelWriter adapts a buffered channel to io.Writer so the stream copy
// loop can hand bytes to the track writer goroutine.
type ChannelWriter struct {
	sync.Mutex
	ch     chan []byte
	closed bool
}

func NewChannelWriter(depth int) *ChannelWriter {
	return &ChannelWriter{
		ch: make(chan []byte, depth),
	}
}

// Write queues a copy of p. io.Copy reuses its buffer between reads, so the
// slice must not be sent as-is or queued chunks get overwritten in flight.
func (cw *ChannelWriter) Write(p []byte) (n int, err error) {
	cw.Lock()
	defer cw.Unlock()

	if cw.closed {
		return 0, io.ErrClosedPipe
	}

	b := make([]byte, len(p))
	copy(b, p)
	cw.ch <- b

	return len(p), nil
}

// Close closes the channel; the draining writer sees the close and commits
// its file. Safe to call more than once.
func (cw *ChannelWriter) Close() error {
	cw.Lock()
	defer cw.Unlock()

	if !cw.closed {
		close(cw.ch)
		cw.closed = true
	}

	return nil
}
