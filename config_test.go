package main

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		c, err := LoadConfig(WithDefaults())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.SerialPort != "/dev/ttyUSB0" || c.BaudRate != 115200 || c.ResponseTimeout != 5*time.Second {
			t.Errorf("unexpected defaults: %+v", c)
		}
	})

	t.Run("Env overrides defaults, flags override env", func(t *testing.T) {
		t.Setenv("SERIAL_PORT", "/dev/ttyAMA0")
		t.Setenv("BAUD_RATE", "9600")
		t.Setenv("WIFI_SSID", "office")
		t.Setenv("DISCARD_HEADERS", "true")

		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		fs.String("serial-port", "/dev/ttyUSB0", "")
		fs.Int("baud-rate", 115200, "")
		fs.Duration("response-timeout", 5*time.Second, "")
		if err := fs.Parse([]string{"--baud-rate=57600", "--response-timeout=-1s"}); err != nil {
			t.Fatalf("parse flags: %v", err)
		}

		c, err := LoadConfig(WithDefaults(), WithEnv(), WithFlags(fs))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.SerialPort != "/dev/ttyAMA0" {
			t.Errorf("expected serial port from env, got %q", c.SerialPort)
		}
		if c.BaudRate != 57600 {
			t.Errorf("expected baud rate from flag, got %d", c.BaudRate)
		}
		if c.ResponseTimeout != -time.Second {
			t.Errorf("expected response timeout from flag, got %v", c.ResponseTimeout)
		}
		if c.WiFiSSID != "office" || !c.DiscardHeaders {
			t.Errorf("unexpected env values: %+v", c)
		}
	})

	t.Run("Invalid env value", func(t *testing.T) {
		t.Setenv("MAX_PAYLOAD", "lots")
		if _, err := LoadConfig(WithDefaults(), WithEnv()); err == nil {
			t.Error("expected error for invalid MAX_PAYLOAD")
		}
	})
}
