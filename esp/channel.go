package esp

import (
	"context"
)

// ByteSource is the receive half of the link to the module: one byte per
// call, blocking until a byte arrives, the transport fails or ctx ends.
type ByteSource interface {
	Get(ctx context.Context) (byte, error)
}

const readChunk = 256

type readResult struct {
	buf []byte
	n   int
	err error
}

// Channel turns a Transport into an ordered byte stream with no peek and
// no push back. Bytes pulled from the transport but not yet handed out by
// Get stay queued for the next call, so a cancelled Get never loses input.
//
// A Channel is not safe for concurrent use.
type Channel struct {
	transport Transport
	pending   []byte
	err       error
	inflight  chan readResult
}

// NewChannel wraps t.
func NewChannel(t Transport) *Channel {
	return &Channel{transport: t}
}

// Put writes p to the module in a single transport write.
func (c *Channel) Put(p []byte) error {
	_, err := c.transport.Write(p)
	return err
}

// Get returns the next byte of the stream.
//
// A context without a Done channel reads the transport directly. Otherwise
// the read runs in its own goroutine so that Get can return ctx.Err(); a
// read still outstanding at that point is picked up by the next Get.
func (c *Channel) Get(ctx context.Context) (byte, error) {
	for len(c.pending) == 0 {
		if c.err != nil {
			return 0, c.err
		}
		if err := c.fill(ctx); err != nil {
			return 0, err
		}
	}
	b := c.pending[0]
	c.pending = c.pending[1:]
	return b, nil
}

func (c *Channel) fill(ctx context.Context) error {
	if c.inflight == nil && ctx.Done() == nil {
		buf := make([]byte, readChunk)
		n, err := c.transport.Read(buf)
		c.accept(buf, n, err)
		return nil
	}

	if c.inflight == nil {
		results := make(chan readResult, 1)
		c.inflight = results
		go func(t Transport) {
			buf := make([]byte, readChunk)
			n, err := t.Read(buf)
			results <- readResult{buf: buf, n: n, err: err}
		}(c.transport)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case r := <-c.inflight:
		c.inflight = nil
		c.accept(r.buf, r.n, r.err)
		return nil
	}
}

// Discard drops the bytes received but not yet consumed, including those of
// a background read that has already completed, and returns their count. A
// read still in progress is left running. A transport error is kept.
func (c *Channel) Discard() int {
	n := len(c.pending)
	c.pending = nil
	if c.inflight != nil {
		select {
		case r := <-c.inflight:
			c.inflight = nil
			n += min(max(r.n, 0), len(r.buf))
			if r.err != nil {
				c.err = r.err
			}
		default:
		}
	}
	return n
}

// accept queues the outcome of one transport read. A read error is kept and
// reported once the bytes delivered alongside it have been consumed.
func (c *Channel) accept(buf []byte, n int, err error) {
	n = min(max(n, 0), len(buf))
	if n > 0 {
		c.pending = buf[:n]
	}
	if err != nil {
		c.err = err
	}
}
