package esp

//go:generate go tool mockgen -source=transport.go -destination=mock_transport.go -package=esp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"go.bug.st/serial"
)

// Transport represents an established, bidirectional byte stream to an
// ESP8266 module.
//
// A Transport is assumed to be already connected and ready for use. Typical
// implementations include serial ports, TCP bridges such as ser2net, or
// in-memory fakes used for testing.
type Transport interface {
	io.ReadWriteCloser
}

// Dialer opens a Transport to an ESP8266 module.
//
// Dialer abstracts how the connection is created and is intended to be used
// during Device construction only. Once a Transport is obtained, the Dialer
// is no longer needed.
type Dialer interface {
	// Dial is responsible for creating and returning a connected Transport. It
	// may perform blocking operations and should respect cancellation and
	// deadlines provided by the context.
	Dial(ctx context.Context) (Transport, error)
}

// DialerFunc adapts an ordinary function to the Dialer interface.
type DialerFunc func(ctx context.Context) (Transport, error)

// Dial calls f(ctx).
func (f DialerFunc) Dial(ctx context.Context) (Transport, error) {
	return f(ctx)
}

// SerialDialer opens the module over a local serial port using
// go.bug.st/serial.
type SerialDialer struct {
	// PortName is the device path, e.g. "/dev/ttyUSB0" or "COM3".
	PortName string
	// BaudRate is used when Mode is nil. Zero selects 115200, the factory
	// default of current AT firmware.
	BaudRate int
	// Mode overrides the line settings entirely when set.
	Mode *serial.Mode
}

// Dial opens the serial port.
func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("esp: context is nil")
	}
	if d.PortName == "" {
		return nil, errors.New("esp: serial port name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := d.Mode
	if mode == nil {
		baud := d.BaudRate
		if baud == 0 {
			baud = 115200
		}
		mode = &serial.Mode{
			BaudRate: baud,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		}
	}

	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("esp: open %s: %w", d.PortName, err)
	}
	return port, nil
}

// TCPDialer reaches the module through a serial-to-TCP bridge.
type TCPDialer struct {
	// Address is the host:port of the bridge.
	Address string
	// Timeout bounds connection establishment. Zero means no limit beyond
	// the context.
	Timeout time.Duration
}

// Dial connects to the bridge.
func (d TCPDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("esp: context is nil")
	}
	if d.Address == "" {
		return nil, errors.New("esp: bridge address is required")
	}

	nd := net.Dialer{Timeout: d.Timeout}
	conn, err := nd.DialContext(ctx, "tcp", d.Address)
	if err != nil {
		return nil, fmt.Errorf("esp: dial %s: %w", d.Address, err)
	}
	return conn, nil
}
