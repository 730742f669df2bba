package esp

import (
	"context"
	"fmt"
)

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// ReadIP parses the reply to AT+CIFSR: it skips to the first decimal digit,
// reads four digit groups separated by single non-digit delimiters and then
// consumes the closing OK.
//
// Octets accumulate in a byte, so a group above 255 wraps modulo 256. The
// byte after each delimiter is taken as the first digit of the next group.
func ReadIP(ctx context.Context, src ByteSource) ([4]byte, error) {
	var ip [4]byte

	b, err := src.Get(ctx)
	for err == nil && !isDigit(b) {
		b, err = src.Get(ctx)
	}
	if err != nil {
		return ip, err
	}

	for i := range ip {
		if i > 0 {
			// the delimiter ended the previous group
			if b, err = src.Get(ctx); err != nil {
				return ip, err
			}
		}
		var octet byte
		for {
			octet = octet*10 + (b - '0')
			if b, err = src.Get(ctx); err != nil {
				return ip, err
			}
			if !isDigit(b) {
				break
			}
		}
		ip[i] = octet
	}
	// The delimiter after the fourth group is already consumed; the OK scan
	// skips whatever else precedes it.

	if _, err := waitFor(ctx, src, okLiteral); err != nil {
		return ip, err
	}
	return ip, nil
}

// maxFrameLength is the largest length a +IPD header can announce.
const maxFrameLength = 65535

// Frame describes one +IPD delivery.
type Frame struct {
	// Length is the number of payload bytes the module announced, less the
	// header bytes skipped when headers were discarded.
	Length int
	// Copied is the number of bytes stored in the caller's buffer.
	Copied int
}

// Truncated reports whether part of the payload did not fit the buffer and
// was drained.
func (f Frame) Truncated() bool {
	return f.Copied < f.Length
}

// ReadFrame waits for a +IPD, marker and reads the frame that follows into
// buf. See Device.Receive.
func ReadFrame(ctx context.Context, src ByteSource, buf []byte, discardHeaders bool) (Frame, error) {
	if _, err := waitFor(ctx, src, markerLiteral); err != nil {
		return Frame{}, err
	}
	return readFrameBody(ctx, src, buf, discardHeaders)
}

// readFrameBody reads everything after the +IPD, marker: the decimal length
// and its delimiter, the payload and the closing OK. Exactly the announced
// number of payload bytes is consumed whatever the size of buf.
func readFrameBody(ctx context.Context, src ByteSource, buf []byte, discardHeaders bool) (Frame, error) {
	var f Frame

	b, err := src.Get(ctx)
	if err != nil {
		return f, err
	}
	if !isDigit(b) {
		return f, fmt.Errorf("%w: length starts with %q", ErrMalformedFrame, b)
	}
	for isDigit(b) {
		f.Length = f.Length*10 + int(b-'0')
		if f.Length > maxFrameLength {
			return Frame{}, fmt.Errorf("%w: length exceeds %d", ErrMalformedFrame, maxFrameLength)
		}
		if b, err = src.Get(ctx); err != nil {
			return f, err
		}
	}

	if discardHeaders {
		n, err := waitFor(ctx, src, headerLiteral)
		if err != nil {
			return f, err
		}
		// The header counts toward the announced length.
		f.Length = max(f.Length-n, 0)
	}

	copied := min(f.Length, len(buf))
	for f.Copied < copied {
		if buf[f.Copied], err = src.Get(ctx); err != nil {
			return f, err
		}
		f.Copied++
	}
	for i := copied; i < f.Length; i++ {
		if _, err := src.Get(ctx); err != nil {
			return f, err
		}
	}

	if _, err := waitFor(ctx, src, okLiteral); err != nil {
		return f, err
	}
	return f, nil
}
