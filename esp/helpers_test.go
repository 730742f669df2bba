package esp_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"i4.energy/across/espgw/esp"
)

// stringSource feeds a fixed string one byte at a time and reports io.EOF
// when it runs out.
type stringSource struct {
	data string
	pos  int
}

func (s *stringSource) Get(ctx context.Context) (byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s.pos >= len(s.data) {
		return 0, io.EOF
	}
	b := s.data[s.pos]
	s.pos++
	return b, nil
}

func (s *stringSource) remaining() string {
	return s.data[s.pos:]
}

// initWire is what New writes with the default configuration.
const initWire = "AT\r\nATE0\r\n"

// newTestDevice returns a Device initialized over a TestTransport. The init
// replies are queued automatically; configure can adjust the builder.
func newTestDevice(t *testing.T, configure func(*esp.ConfigBuilder)) (*esp.Device, *esp.TestTransport) {
	t.Helper()

	transport := esp.NewTestTransport()
	transport.SendData("AT\r\r\n\r\nOK\r\n")
	transport.SendData("ATE0\r\r\n\r\nOK\r\n")

	builder := esp.NewConfigBuilder().
		WithDialer(transport.Dialer()).
		WithResponseTimeout(time.Second).
		WithJoinTimeout(time.Second)
	if configure != nil {
		configure(builder)
	}
	config, err := builder.Build()
	if err != nil {
		t.Fatalf("unexpected error from Build(): %v", err)
	}

	d, err := esp.New(context.Background(), config)
	if err != nil {
		t.Fatalf("failed to create device: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	return d, transport
}

// written returns what the driver wrote after initialization.
func written(t *testing.T, transport *esp.TestTransport) string {
	t.Helper()
	w := transport.Written()
	if !strings.HasPrefix(w, initWire) {
		t.Fatalf("unexpected init sequence: %q", w)
	}
	return strings.TrimPrefix(w, initWire)
}
