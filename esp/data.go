package esp

import (
	"context"
	"fmt"
	"strconv"

	"i4.energy/across/espgw/at"
)

// Open starts a TCP or UDP connection to host:port. It reports true only
// when the module answers OK and then Linked; any other response at either
// step means the connection is not open.
func (d *Device) Open(ctx context.Context, proto Protocol, host string, port uint16) (bool, error) {
	if proto != TCP && proto != UDP {
		return false, fmt.Errorf("%w: %q", ErrInvalidProtocol, proto)
	}
	cmd := at.CmdStart + quote(string(proto)) + "," + quote(host) + "," + strconv.FormatUint(uint64(port), 10)
	ok, err := d.expect(ctx, d.config.JoinTimeout, cmd, at.StatusOK, at.StatusLinked)
	if err != nil {
		return false, err
	}
	d.logger.Info("Open finished", "protocol", proto, "host", host, "port", port, "linked", ok)
	return ok, nil
}

// Send transmits data over the open connection.
//
// This follows the AT command protocol sequence for sending data:
//
//  1. Write: AT+CIPSEND=<len>\r\n
//  2. Read:  bytes up to the ">" prompt
//  3. Write: data, exactly <len> bytes, no terminator
//  4. Read:  the terminal response; OK means the data was accepted
//
// Writing the payload before the prompt is lost on real hardware.
func (d *Device) Send(ctx context.Context, data []byte) (bool, error) {
	if len(data) == 0 {
		return false, ErrEmptyPayload
	}
	if len(data) > at.MaxSendLength {
		return false, fmt.Errorf("%w: %d > %d bytes", ErrPayloadTooLarge, len(data), at.MaxSendLength)
	}

	var status at.Status
	cmd := at.CmdSend + strconv.Itoa(len(data))
	err := d.exchange(ctx, d.config.ResponseTimeout, cmd, func(ctx context.Context) error {
		if err := waitPrompt(ctx, d.ch); err != nil {
			return fmt.Errorf("wait for prompt: %w", err)
		}
		if err := d.ch.Put(data); err != nil {
			return fmt.Errorf("write payload: %w", err)
		}
		var err error
		status, err = WaitResponse(ctx, d.ch)
		return err
	})
	if err != nil {
		return false, err
	}

	d.logger.Debug("Send finished", "length", len(data), "status", status)
	return status == at.StatusOK, nil
}

// Receive waits for the next +IPD delivery and reads its payload into buf.
//
// The module announces a decimal length after the +IPD, marker. When
// discardHeaders is set everything up to the first blank line is skipped
// and counted against that length, which strips HTTP response headers. At
// most len(buf) payload bytes are stored; the rest of the payload is still
// read and dropped so the stream stays aligned, and the returned Frame
// reports both counts.
//
// ctx bounds the wait for the marker only. Marker bytes matched before ctx
// ends are remembered by the next Receive. Once the marker is complete the
// frame is always read to its end, bounded by the response timeout, so that
// a cancelled poll never splits a frame.
func (d *Device) Receive(ctx context.Context, buf []byte, discardHeaders bool) (Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed.Load() {
		return Frame{}, ErrAlreadyClosed
	}

	if _, err := advance(ctx, d.ch, &d.marker); err != nil {
		return Frame{}, fmt.Errorf("wait for %s: %w", at.DataMarker, err)
	}
	d.marker.Reset()

	frameCtx, cancel := withTimeout(context.WithoutCancel(ctx), d.config.ResponseTimeout)
	defer cancel()

	f, err := readFrameBody(frameCtx, d.ch, buf, discardHeaders)
	if err != nil {
		d.dirty = true
		d.logger.Warn("Frame read failed", "length", f.Length, "copied", f.Copied, "error", err)
		return f, fmt.Errorf("read frame: %w", err)
	}

	d.logger.Debug("Frame received", "length", f.Length, "copied", f.Copied, "truncated", f.Truncated())
	return f, nil
}
