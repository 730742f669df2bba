package esp

import (
	"fmt"
	"log/slog"
	"time"
)

// WaitForever disables the per-exchange deadline. A Device configured with
// it blocks until the module answers, the transport fails or the caller's
// context ends.
const WaitForever time.Duration = -1

// Mode is the Wi-Fi operating mode selected with AT+CWMODE.
type Mode uint8

const (
	Station            Mode = 1
	AccessPoint        Mode = 2
	StationAccessPoint Mode = 3
)

func (m Mode) valid() bool {
	return m >= Station && m <= StationAccessPoint
}

func (m Mode) String() string {
	switch m {
	case Station:
		return "station"
	case AccessPoint:
		return "ap"
	case StationAccessPoint:
		return "station+ap"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseMode accepts the names printed by Mode.String as well as the raw
// AT+CWMODE digit.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "station", "sta", "1":
		return Station, nil
	case "ap", "softap", "2":
		return AccessPoint, nil
	case "station+ap", "both", "3":
		return StationAccessPoint, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

type Config struct {
	Dialer Dialer
	// ResponseTimeout bounds a single command/response exchange when the
	// caller's context carries no deadline. Zero selects the default,
	// WaitForever disables it.
	ResponseTimeout time.Duration
	// JoinTimeout replaces ResponseTimeout for AT+CWJAP and AT+RST, which
	// take several seconds on real hardware.
	JoinTimeout time.Duration
	// InitTimeout bounds the whole initialization sequence run by New.
	InitTimeout time.Duration
	// EchoOn leaves command echo enabled after initialization.
	EchoOn bool
	// Mode is applied during initialization. Zero leaves the module's
	// stored mode untouched.
	Mode Mode
	// ResetOnInit restarts the module before the liveness check.
	ResetOnInit bool
	Logger      *slog.Logger
}

func (c *Config) validate() error {
	if c.Dialer == nil {
		return ErrNoDialer
	}
	if c.Mode != 0 && !c.Mode.valid() {
		return fmt.Errorf("%w: %d", ErrInvalidMode, c.Mode)
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.ResponseTimeout == 0 {
		c.ResponseTimeout = 5 * time.Second
	}
	if c.JoinTimeout == 0 {
		c.JoinTimeout = 20 * time.Second
	}
	if c.InitTimeout == 0 {
		c.InitTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
}

// ConfigBuilder assembles a Config step by step.
type ConfigBuilder struct {
	config Config
}

// NewConfigBuilder returns an empty builder.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.Dialer = d
	return b
}

func (b *ConfigBuilder) WithResponseTimeout(d time.Duration) *ConfigBuilder {
	b.config.ResponseTimeout = d
	return b
}

func (b *ConfigBuilder) WithJoinTimeout(d time.Duration) *ConfigBuilder {
	b.config.JoinTimeout = d
	return b
}

func (b *ConfigBuilder) WithInitTimeout(d time.Duration) *ConfigBuilder {
	b.config.InitTimeout = d
	return b
}

func (b *ConfigBuilder) WithEcho(on bool) *ConfigBuilder {
	b.config.EchoOn = on
	return b
}

func (b *ConfigBuilder) WithMode(m Mode) *ConfigBuilder {
	b.config.Mode = m
	return b
}

func (b *ConfigBuilder) WithResetOnInit(reset bool) *ConfigBuilder {
	b.config.ResetOnInit = reset
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.Logger = l
	return b
}

// Build validates the collected settings and fills in defaults.
func (b *ConfigBuilder) Build() (Config, error) {
	c := b.config
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	c.setDefaults()
	return c, nil
}
