// Package relay bridges an ESP8266 data connection to NATS.
//
// Frames delivered by the module are published on <subject>.<id>.rx and
// messages arriving on <subject>.<id>.tx are written to the connection. When a
// Shadow is configured, traffic counters are recorded after every transfer.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"i4.energy/across/espgw/at"
	"i4.energy/across/espgw/esp"
)

var (
	ErrNoDevice    = errors.New("relay: no device configured")
	ErrNoPublisher = errors.New("relay: no publisher configured")
)

// Device is the part of *esp.Device the relay drives.
type Device interface {
	Receive(ctx context.Context, buf []byte, discardHeaders bool) (esp.Frame, error)
	Send(ctx context.Context, data []byte) (bool, error)
}

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subj string, data []byte) error
}

// Shadow keeps the last known state of a device.
type Shadow interface {
	Record(ctx context.Context, id string, fields map[string]any) error
}

type Config struct {
	Device    Device
	Publisher Publisher
	// Shadow is optional.
	Shadow Shadow
	// DeviceID names the module in subjects and shadow keys. Defaults to
	// "esp8266".
	DeviceID string
	// Subject is the subject prefix. Defaults to "esp".
	Subject string
	// MaxPayload is the receive buffer size. Longer frames are truncated.
	// Defaults to at.MaxSendLength.
	MaxPayload     int
	DiscardHeaders bool
	// PollInterval bounds each wait for a frame so that downlink sends get
	// a turn on the wire. Defaults to one second.
	PollInterval time.Duration
	Logger       *slog.Logger
}

type Relay struct {
	device    Device
	publisher Publisher
	shadow    Shadow
	config    Config
	logger    *slog.Logger
}

// New validates config and returns a Relay.
func New(config Config) (*Relay, error) {
	if config.Device == nil {
		return nil, ErrNoDevice
	}
	if config.Publisher == nil {
		return nil, ErrNoPublisher
	}
	if config.DeviceID == "" {
		config.DeviceID = "esp8266"
	}
	if config.Subject == "" {
		config.Subject = "esp"
	}
	if config.MaxPayload <= 0 {
		config.MaxPayload = at.MaxSendLength
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}

	return &Relay{
		device:    config.Device,
		publisher: config.Publisher,
		shadow:    config.Shadow,
		config:    config,
		logger:    config.Logger,
	}, nil
}

// UplinkSubject is where received frames are published.
func (r *Relay) UplinkSubject() string {
	return r.config.Subject + "." + r.config.DeviceID + ".rx"
}

// DownlinkSubject is where payloads to send are expected.
func (r *Relay) DownlinkSubject() string {
	return r.config.Subject + "." + r.config.DeviceID + ".tx"
}

// Subscribe registers HandleDownlink on the downlink subject of nc.
func (r *Relay) Subscribe(nc *nats.Conn) (*nats.Subscription, error) {
	sub, err := nc.Subscribe(r.DownlinkSubject(), r.HandleDownlink)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", r.DownlinkSubject(), err)
	}
	r.logger.Info("Downlink subscribed", "subject", r.DownlinkSubject())
	return sub, nil
}

// Run publishes every frame the device receives until ctx is done or the
// device fails. It returns nil when ctx ends.
func (r *Relay) Run(ctx context.Context) error {
	buf := make([]byte, r.config.MaxPayload)
	r.logger.Info("Relay started", "subject", r.UplinkSubject(), "max_payload", r.config.MaxPayload)

	for {
		pollCtx, cancel := context.WithTimeout(ctx, r.config.PollInterval)
		f, err := r.device.Receive(pollCtx, buf, r.config.DiscardHeaders)
		cancel()

		if ctx.Err() != nil {
			r.logger.Info("Relay stopped")
			return nil
		}
		switch {
		case err == nil:
		case errors.Is(err, context.DeadlineExceeded):
			continue
		case errors.Is(err, esp.ErrMalformedFrame):
			r.logger.Warn("Dropping malformed frame", "error", err)
			continue
		default:
			return fmt.Errorf("receive: %w", err)
		}

		if f.Truncated() {
			r.logger.Warn("Frame truncated", "length", f.Length, "copied", f.Copied)
		}
		if err := r.publisher.Publish(r.UplinkSubject(), buf[:f.Copied]); err != nil {
			r.logger.Error("Failed to publish frame", "error", err, "subject", r.UplinkSubject())
			continue
		}
		r.logger.Debug("Frame published", "subject", r.UplinkSubject(), "bytes", f.Copied)

		r.record(ctx, map[string]any{
			"rx_bytes":     f.Length,
			"rx_truncated": strconv.FormatBool(f.Truncated()),
			"last_rx":      time.Now().Unix(),
		})
	}
}

// HandleDownlink writes msg.Data to the open connection. When msg carries a
// reply subject the outcome is answered with "ok" or "fail".
func (r *Relay) HandleDownlink(msg *nats.Msg) {
	ok, err := r.device.Send(context.Background(), msg.Data)
	if err != nil {
		r.logger.Error("Failed to send downlink", "error", err, "bytes", len(msg.Data))
	} else {
		r.logger.Debug("Downlink sent", "bytes", len(msg.Data), "accepted", ok)
	}

	if msg.Reply != "" {
		reply := "fail"
		if ok {
			reply = "ok"
		}
		if err := r.publisher.Publish(msg.Reply, []byte(reply)); err != nil {
			r.logger.Error("Failed to answer downlink", "error", err, "reply", msg.Reply)
		}
	}

	if ok {
		r.record(context.Background(), map[string]any{
			"tx_bytes": len(msg.Data),
			"last_tx":  time.Now().Unix(),
		})
	}
}

func (r *Relay) record(ctx context.Context, fields map[string]any) {
	if r.shadow == nil {
		return
	}
	if err := r.shadow.Record(ctx, r.config.DeviceID, fields); err != nil {
		r.logger.Warn("Failed to update shadow", "error", err)
	}
}
