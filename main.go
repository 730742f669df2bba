package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"i4.energy/across/espgw/at"
	"i4.energy/across/espgw/esp"
	"i4.energy/across/espgw/relay"
)

var rootCmd = &cobra.Command{
	Use:           "espgw",
	Short:         "Gateway for ESP8266 Wi-Fi modules running the AT firmware",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Initialize the module and expose it over HTTP and NATS",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var ipCmd = &cobra.Command{
	Use:   "ip",
	Short: "Print the module's local IPv4 address",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd, func(ctx context.Context, d *esp.Device, logger *slog.Logger) error {
			ip, err := d.IP(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ip)
			return nil
		})
	},
}

var joinCmd = &cobra.Command{
	Use:   "join <ssid> <password>",
	Short: "Join a Wi-Fi access point",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd, func(ctx context.Context, d *esp.Device, logger *slog.Logger) error {
			status, err := d.Join(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status)
			if status != at.StatusOK {
				return fmt.Errorf("join %q: module answered %s", args[0], status)
			}
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check that the module answers AT",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDevice(cmd, func(ctx context.Context, d *esp.Device, logger *slog.Logger) error {
			started, err := d.IsStarted(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "started: %t\n", started)
			return nil
		})
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("serial-port", "/dev/ttyUSB0", "Serial port to connect to the module")
	pf.Int("baud-rate", 115200, "Baud rate for serial communication")
	pf.String("serial-addr", "", "host:port of a serial-to-TCP bridge, used instead of the serial port")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.Duration("response-timeout", 5*time.Second, "Timeout of a single command exchange, negative to wait forever")
	pf.String("mode", "", "Wi-Fi mode applied on startup (station, ap, station+ap)")

	serveCmd.Flags().String("bind-address", "0.0.0.0:8080", "Bind address for the HTTP server")
	serveCmd.Flags().String("ssid", "", "Access point to join on startup")
	serveCmd.Flags().String("password", "", "Password of the access point")
	serveCmd.Flags().String("nats-url", "", "NATS server URL; enables the relay")
	serveCmd.Flags().String("redis-addr", "", "Redis address for the device shadow")
	serveCmd.Flags().String("device-id", "esp8266", "Device name used in subjects and shadow keys")
	serveCmd.Flags().Bool("discard-headers", false, "Strip HTTP response headers from received frames")
	serveCmd.Flags().Int("max-payload", 2048, "Receive buffer size in bytes")

	rootCmd.AddCommand(serveCmd, ipCmd, joinCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads the configuration for cmd and builds the logger.
func setup(cmd *cobra.Command) (*Config, *slog.Logger, error) {
	config, err := LoadConfig(WithDefaults(), WithEnv(), WithFlags(cmd.Flags()))
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	logLevel := slog.LevelInfo
	switch config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	return config, logger, nil
}

// openDevice dials the module over the bridge or the serial port and
// initializes it.
func openDevice(ctx context.Context, config *Config, logger *slog.Logger) (*esp.Device, error) {
	var dialer esp.Dialer = esp.SerialDialer{
		PortName: config.SerialPort,
		BaudRate: config.BaudRate,
	}
	if config.SerialAddr != "" {
		dialer = esp.TCPDialer{Address: config.SerialAddr, Timeout: 10 * time.Second}
	}

	builder := esp.NewConfigBuilder().
		WithDialer(dialer).
		WithResponseTimeout(config.ResponseTimeout).
		WithInitTimeout(30 * time.Second).
		WithLogger(logger.With("component", "esp"))
	if config.ResponseTimeout < 0 {
		builder.WithResponseTimeout(esp.WaitForever)
	}
	if config.WiFiMode != "" {
		mode, err := esp.ParseMode(config.WiFiMode)
		if err != nil {
			return nil, err
		}
		builder.WithMode(mode)
	}

	espConfig, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("device config: %w", err)
	}
	return esp.New(ctx, espConfig)
}

// withDevice runs fn against a freshly initialized device and closes it
// afterwards.
func withDevice(cmd *cobra.Command, fn func(ctx context.Context, d *esp.Device, logger *slog.Logger) error) error {
	config, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := openDevice(ctx, config, logger)
	if err != nil {
		return err
	}
	defer d.Close()

	return fn(ctx, d, logger)
}

func runServe(cmd *cobra.Command, args []string) error {
	config, logger, err := setup(cmd)
	if err != nil {
		return err
	}

	d, err := openDevice(context.Background(), config, logger)
	if err != nil {
		logger.Error("Failed to initialize module", "error", err)
		return err
	}

	if config.WiFiSSID != "" {
		status, err := d.Join(context.Background(), config.WiFiSSID, config.WiFiPassword)
		if err != nil {
			d.Close()
			return fmt.Errorf("join %q: %w", config.WiFiSSID, err)
		}
		if status != at.StatusOK {
			logger.Warn("Access point refused association", "ssid", config.WiFiSSID, "status", status)
		}
	}

	logger.Info("Starting ESP8266 Gateway", "serial_port", config.SerialPort, "serial_addr", config.SerialAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relayDone := make(chan error, 1)
	if config.NATSURL != "" {
		cleanup, err := startRelay(ctx, config, d, logger, relayDone)
		if err != nil {
			d.Close()
			return err
		}
		defer cleanup()
	}

	httpServer := &http.Server{
		Addr: config.BindAddress,
		Handler: &Server{
			Logger: logger.With("component", "server"),
			Device: d,
		},
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErr:
		logger.Error("HTTP server failed", "error", err)
		runErr = err
	case err := <-relayDone:
		logger.Error("Relay stopped", "error", err)
		runErr = err
	}

	cancel()

	logger.Info("Closing module connection")
	if err := d.Close(); err != nil {
		logger.Error("Failed to close module", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("Closing HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to gracefully shutdown server", "error", err)
		return err
	}
	return runErr
}

// startRelay connects to NATS and, when configured, Redis, then starts
// relaying frames in the background. Run errors are delivered on done.
func startRelay(ctx context.Context, config *Config, d *esp.Device, logger *slog.Logger, done chan<- error) (func(), error) {
	nc, err := nats.Connect(config.NATSURL, nats.Name("espgw-"+config.DeviceID))
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	logger.Info("Connected to NATS", "url", config.NATSURL)

	relayConfig := relay.Config{
		Device:         d,
		Publisher:      nc,
		DeviceID:       config.DeviceID,
		MaxPayload:     config.MaxPayload,
		DiscardHeaders: config.DiscardHeaders,
		Logger:         logger.With("component", "relay"),
	}

	var rdb *redis.Client
	if config.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: config.RedisAddr})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			rdb.Close()
			nc.Close()
			return nil, fmt.Errorf("connect to Redis: %w", err)
		}
		logger.Info("Connected to Redis", "address", config.RedisAddr)
		relayConfig.Shadow = &relay.RedisShadow{Client: rdb}
	}

	cleanup := func() {
		nc.Close()
		if rdb != nil {
			rdb.Close()
		}
	}

	r, err := relay.New(relayConfig)
	if err != nil {
		cleanup()
		return nil, err
	}
	if _, err := r.Subscribe(nc); err != nil {
		cleanup()
		return nil, err
	}

	go func() {
		if err := r.Run(ctx); err != nil && !errors.Is(err, esp.ErrAlreadyClosed) {
			done <- err
		}
	}()
	return cleanup, nil
}
