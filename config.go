package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
)

// Config holds the application configuration
type Config struct {
	// BindAddress is the address the server listens on (e.g. "0.0.0.0:8080")
	BindAddress string
	// SerialPort is the path to the module's serial port (e.g. "/dev/ttyUSB0")
	SerialPort string
	// BaudRate is the baud rate for serial communication with the module (e.g. 115200)
	BaudRate int
	// SerialAddr is the host:port of a serial-to-TCP bridge. When set it is
	// used instead of SerialPort.
	SerialAddr string
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string
	// ResponseTimeout bounds each command exchange; negative waits forever
	ResponseTimeout time.Duration

	// WiFiSSID is the access point joined on startup, if set
	WiFiSSID     string
	WiFiPassword string
	// WiFiMode is "station", "ap" or "station+ap"; empty keeps the stored mode
	WiFiMode string

	// NATSURL enables the relay when set (e.g. "nats://127.0.0.1:4222")
	NATSURL string
	// RedisAddr enables the device shadow when set (e.g. "127.0.0.1:6379")
	RedisAddr      string
	DeviceID       string
	DiscardHeaders bool
	MaxPayload     int
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "0.0.0.0:8080"
		c.SerialPort = "/dev/ttyUSB0"
		c.BaudRate = 115200
		c.LogLevel = "info"
		c.ResponseTimeout = 5 * time.Second
		c.DeviceID = "esp8266"
		c.MaxPayload = 2048
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		for env, name := range envKeys {
			value := os.Getenv(env)
			if value == "" {
				continue
			}
			if err := c.set(name, value); err != nil {
				return fmt.Errorf("%s: %w", env, err)
			}
		}
		return nil
	}
}

// WithFlags loads configuration from command-line flags that were set
// explicitly
func WithFlags(fSet *pflag.FlagSet) ConfigOption {
	return func(c *Config) error {
		var err error
		fSet.Visit(func(f *pflag.Flag) {
			if err != nil {
				return
			}
			if e := c.set(f.Name, f.Value.String()); e != nil {
				err = fmt.Errorf("--%s: %w", f.Name, e)
			}
		})
		return err
	}
}

// envKeys maps environment variables to flag names.
var envKeys = map[string]string{
	"BIND_ADDRESS":     "bind-address",
	"SERIAL_PORT":      "serial-port",
	"BAUD_RATE":        "baud-rate",
	"SERIAL_ADDR":      "serial-addr",
	"LOG_LEVEL":        "log-level",
	"RESPONSE_TIMEOUT": "response-timeout",
	"WIFI_SSID":        "ssid",
	"WIFI_PASSWORD":    "password",
	"WIFI_MODE":        "mode",
	"NATS_URL":         "nats-url",
	"REDIS_ADDR":       "redis-addr",
	"DEVICE_ID":        "device-id",
	"DISCARD_HEADERS":  "discard-headers",
	"MAX_PAYLOAD":      "max-payload",
}

// set assigns value to the setting known by flag name. Unknown names are
// ignored.
func (c *Config) set(name, value string) error {
	switch name {
	case "bind-address":
		c.BindAddress = value
	case "serial-port":
		c.SerialPort = value
	case "baud-rate":
		b, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.BaudRate = b
	case "serial-addr":
		c.SerialAddr = value
	case "log-level":
		c.LogLevel = value
	case "response-timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		c.ResponseTimeout = d
	case "ssid":
		c.WiFiSSID = value
	case "password":
		c.WiFiPassword = value
	case "mode":
		c.WiFiMode = value
	case "nats-url":
		c.NATSURL = value
	case "redis-addr":
		c.RedisAddr = value
	case "device-id":
		c.DeviceID = value
	case "discard-headers":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		c.DiscardHeaders = b
	case "max-payload":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		c.MaxPayload = n
	}
	return nil
}
