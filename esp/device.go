package esp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"i4.energy/across/espgw/at"
)

// Device is an ESP8266 module driven through its AT command firmware.
//
// Every operation is a strictly sequential command/response exchange over a
// single byte stream. Exchanges are serialized by a mutex, so a Device may
// be shared between goroutines, but only one exchange is ever on the wire.
type Device struct {
	// transport provides the physical connection to the module
	transport Transport
	// ch is the byte stream all exchanges read from
	ch *Channel
	// config contains the device configuration settings
	config Config
	logger *slog.Logger

	// mu guards the wire: one command and its reply at a time
	mu sync.Mutex
	// dirty is set when an exchange ended before its reply was read; the
	// next command discards whatever arrived in the meantime. Guarded by mu.
	dirty bool
	// marker holds a partially matched +IPD, across Receive polls. Guarded
	// by mu.
	marker at.Matcher
	closed atomic.Bool
}

// New creates a Device with the given configuration. It dials the
// transport and runs the initialization sequence: optional restart, the AT
// liveness check, echo selection and, when configured, the Wi-Fi mode.
//
// Returns an error if the transport connection or the initialization fails.
// The transport is closed in the latter case.
func New(ctx context.Context, config Config) (*Device, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	transport, err := config.Dialer.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	if transport == nil {
		return nil, ErrNotInitialized
	}

	d := &Device{
		transport: transport,
		ch:        NewChannel(transport),
		config:    config,
		logger:    config.Logger,
		marker:    markerLiteral.Matcher(),
	}

	initCtx := ctx
	if config.InitTimeout > 0 {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(ctx, config.InitTimeout)
		defer cancel()
	}

	if err := d.init(initCtx); err != nil {
		transport.Close()
		return nil, fmt.Errorf("initialize device: %w", err)
	}

	return d, nil
}

// init performs the setup sequence. It is called by New before the Device
// is handed out.
func (d *Device) init(ctx context.Context) error {
	if d.config.ResetOnInit {
		ok, err := d.Restart(ctx)
		if err != nil {
			return fmt.Errorf("restart: %w", err)
		}
		if !ok {
			return fmt.Errorf("restart: %w", ErrNotResponding)
		}
	}

	started, err := d.IsStarted(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotResponding, err)
	}
	if !started {
		return ErrNotResponding
	}

	if err := d.SetEcho(ctx, d.config.EchoOn); err != nil {
		return fmt.Errorf("set echo: %w", err)
	}

	if d.config.Mode != 0 {
		if err := d.SetMode(ctx, d.config.Mode); err != nil {
			return fmt.Errorf("set mode: %w", err)
		}
	}

	d.logger.Debug("Device initialized", "echo", d.config.EchoOn, "mode", d.config.Mode)
	return nil
}

// Close releases the transport. A Receive blocked on the transport returns
// with the transport's error. After Close the Device cannot be reused.
func (d *Device) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return ErrAlreadyClosed
	}
	return d.transport.Close()
}

// IsStarted sends AT and reports whether the module answered OK.
func (d *Device) IsStarted(ctx context.Context) (bool, error) {
	return d.expect(ctx, d.config.ResponseTimeout, at.CmdAt, at.StatusOK)
}

// Restart sends AT+RST and reports whether the module acknowledged it with
// OK and then came back with ready.
func (d *Device) Restart(ctx context.Context) (bool, error) {
	return d.expect(ctx, d.config.JoinTimeout, at.CmdReset, at.StatusOK, at.StatusReady)
}

// SetEcho turns command echo on or off.
func (d *Device) SetEcho(ctx context.Context, on bool) error {
	cmd := at.CmdEchoOff
	if on {
		cmd = at.CmdEchoOn
	}
	return d.exchange(ctx, d.config.ResponseTimeout, cmd, func(ctx context.Context) error {
		_, err := waitFor(ctx, d.ch, okLiteral)
		return err
	})
}

// SetMode selects the Wi-Fi operating mode. The module's answer, typically
// OK or no change, carries no further meaning and is only logged.
func (d *Device) SetMode(ctx context.Context, mode Mode) error {
	if !mode.valid() {
		return fmt.Errorf("%w: %d", ErrInvalidMode, mode)
	}
	cmd := at.CmdMode + string(rune('0'+mode))
	_, err := d.command(ctx, d.config.ResponseTimeout, cmd)
	return err
}

// command writes cmd and classifies the first terminal response.
func (d *Device) command(ctx context.Context, timeout time.Duration, cmd string) (at.Status, error) {
	var status at.Status
	err := d.exchange(ctx, timeout, cmd, func(ctx context.Context) error {
		var err error
		status, err = WaitResponse(ctx, d.ch)
		if err == nil {
			d.logger.Debug("Response", "command", verb(cmd), "status", status)
		}
		return err
	})
	return status, err
}

// expect writes cmd and reads one terminal response per element of want,
// reporting whether they arrived in that order. It stops reading at the
// first response that differs.
func (d *Device) expect(ctx context.Context, timeout time.Duration, cmd string, want ...at.Status) (bool, error) {
	matched := true
	err := d.exchange(ctx, timeout, cmd, func(ctx context.Context) error {
		for _, w := range want {
			status, err := WaitResponse(ctx, d.ch)
			if err != nil {
				return err
			}
			d.logger.Debug("Response", "command", verb(cmd), "status", status, "expected", w)
			if status != w {
				matched = false
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return matched, nil
}

// exchange writes cmd followed by CRLF and runs read against the reply,
// holding the wire for the whole exchange. A timeout is applied when ctx
// carries no deadline of its own. Input left over from a previous failed
// exchange is dropped before cmd is written, so a late reply is never taken
// for the answer to cmd.
func (d *Device) exchange(ctx context.Context, timeout time.Duration, cmd string, read func(ctx context.Context) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed.Load() {
		return ErrAlreadyClosed
	}

	if d.dirty {
		if n := d.ch.Discard(); n > 0 {
			d.logger.Debug("Discarded stale input", "command", verb(cmd), "bytes", n)
		}
		d.dirty = false
	}
	d.marker.Reset()

	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	if err := d.ch.Put([]byte(cmd + at.CRLF)); err != nil {
		return fmt.Errorf("write command %q: %w", verb(cmd), err)
	}
	if err := read(ctx); err != nil {
		d.dirty = true
		d.logger.Warn("Exchange failed", "command", verb(cmd), "error", err)
		return fmt.Errorf("%s: %w", verb(cmd), err)
	}
	return nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// verb strips the parameters from a command so that credentials and
// payload sizes stay out of logs and error messages.
func verb(cmd string) string {
	v, _, _ := strings.Cut(cmd, "=")
	return v
}
