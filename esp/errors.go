package esp

import "errors"

var (
	// ErrNoDialer is returned when a Device is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the module.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized is returned when an operation is attempted on a Device
	// that has no transport, for example when the Dialer returned none.
	ErrNotInitialized = errors.New("device not initialized")

	// ErrAlreadyClosed is returned when an operation or Close is attempted on
	// a Device that has already been closed.
	ErrAlreadyClosed = errors.New("device already closed")

	// ErrNotResponding is returned by New when the module does not answer the
	// AT liveness check with OK.
	ErrNotResponding = errors.New("module not responding")

	// ErrInvalidMode is returned for a Wi-Fi mode outside Station,
	// AccessPoint and StationAccessPoint.
	ErrInvalidMode = errors.New("invalid wifi mode")

	// ErrInvalidProtocol is returned by Open for anything but TCP and UDP.
	ErrInvalidProtocol = errors.New("invalid protocol")

	// ErrEmptyPayload is returned by Send for a zero length payload, which
	// the firmware rejects.
	ErrEmptyPayload = errors.New("empty payload")

	// ErrPayloadTooLarge is returned by Send when the payload exceeds the
	// length a single AT+CIPSEND accepts.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrMalformedFrame is returned when the byte following a +IPD, marker is
	// not a decimal digit or the announced length exceeds 65535. The stream
	// position of the frame is unknown after
	// this error.
	ErrMalformedFrame = errors.New("malformed +IPD frame")
)
