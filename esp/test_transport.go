package esp

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// TestTransport is a test helper that simulates a blocking transport using channels.
// Reads block until data queued with SendData is available, like a real serial
// port would, and everything written by the driver is recorded for inspection.
type TestTransport struct {
	mu       sync.Mutex
	readChan chan []byte
	closed   bool
	written  bytes.Buffer

	// rest holds the part of a queued chunk that did not fit the last Read.
	// Only one Read is ever outstanding.
	rest []byte
}

// NewTestTransport creates a new test transport for testing.
// Exported for use in tests.
func NewTestTransport() *TestTransport {
	return &TestTransport{
		readChan: make(chan []byte, 64),
	}
}

func (t *TestTransport) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, io.ErrClosedPipe
	}
	return t.written.Write(p)
}

func (t *TestTransport) Read(p []byte) (n int, err error) {
	if len(t.rest) == 0 {
		data, ok := <-t.readChan
		if !ok {
			return 0, io.EOF
		}
		t.rest = data
	}
	n = copy(p, t.rest)
	t.rest = t.rest[n:]
	return n, nil
}

func (t *TestTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.readChan)
	return nil
}

// SendData queues data to be read by the transport.
// This simulates receiving data from the module.
func (t *TestTransport) SendData(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.readChan <- []byte(data)
	}
}

// Written returns everything written to the transport so far.
func (t *TestTransport) Written() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.written.String()
}

// Dialer returns a Dialer that hands out this transport.
func (t *TestTransport) Dialer() Dialer {
	return DialerFunc(func(ctx context.Context) (Transport, error) {
		return t, nil
	})
}
