package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"i4.energy/across/sim800gw/modem"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML configuration file")
	terminal := flag.Bool("terminal", false, "Connect stdin and stdout to the modem instead of serving HTTP")
	flag.String("transport", "serial", "Modem transport (serial, tarm, tcp)")
	flag.String("serial-port", "/dev/ttyUSB0", "Serial port to connect to the modem")
	flag.Int("baud-rate", 57600, "Baud rate for serial communication")
	flag.String("tcp-address", "", "Address of a serial-over-TCP bridge")
	flag.String("bind-address", "0.0.0.0:8080", "Bind address for the HTTP server")
	flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Bool("trace", false, "Log every byte exchanged with the modem")
	flag.String("sim-pin", "", "SIM card PIN code (if required)")
	flag.String("apn", "", "Access point name of the packet data bearer")
	flag.Bool("gpio", false, "Drive the modem reset and power lines through GPIO")
	flag.Duration("register-timeout", time.Minute, "Network registration timeout per attempt")
	flag.Parse()

	config, err := LoadConfig(WithDefaults(), WithFile(*configPath), WithEnv(), WithFlags(flag.CommandLine))
	if err == nil {
		err = config.Validate()
	}
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
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

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	builder := modem.NewConfigBuilder().
		WithDialer(newDialer(config)).
		WithLogger(logger).
		WithMetrics(modem.NewMetrics(registry)).
		WithTrace(config.Trace).
		WithSpeed(config.BaudRate).
		WithChunkSize(config.ChunkSize).
		WithCredentials(config.APN, config.User, config.Password)

	if config.GPIO {
		pins, err := modem.OpenRPIOPins(config.ResetPin, config.PowerKeyPin, config.PowerStatusPin)
		if err != nil {
			logger.Error("Failed to open GPIO", "error", err)
			os.Exit(1)
		}
		defer pins.Close()
		builder = builder.WithPins(pins)
	}

	modemConfig, err := builder.Build()
	if err != nil {
		logger.Error("Failed to create modem config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, err := modem.New(ctx, modemConfig)
	if err != nil {
		logger.Error("Failed to create modem", "error", err)
		os.Exit(1)
	}
	defer m.Close()

	if *terminal {
		if err := runTerminal(ctx, m, logger); err != nil {
			logger.Error("Terminal failed", "error", err)
			os.Exit(1)
		}
		return
	}

	logger.Info("Starting SIM800 gateway", "transport", config.Transport)
	if err := bringUp(ctx, m, config, logger); err != nil {
		logger.Error("Failed to bring up modem", "error", err)
		os.Exit(1)
	}

	go logEvents(ctx, m, logger)

	httpServer := &http.Server{
		Addr: config.BindAddress,
		Handler: &Server{
			Logger:   logger.With("component", "server"),
			Modem:    m,
			Limiter:  rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst),
			Gatherer: registry,
		},
	}

	// Start HTTP server in a goroutine
	go func() {
		logger.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("Closing HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to gracefully shutdown server", "error", err)
	}

	logger.Info("Powering down modem")
	if err := m.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to power down modem", "error", err)
	}
}

func newDialer(c *Config) modem.Dialer {
	switch c.Transport {
	case "tarm":
		return modem.TarmDialer{PortName: c.SerialPort, BaudRate: c.BaudRate}
	case "tcp":
		return modem.TCPDialer{Address: c.TCPAddress}
	default:
		return modem.SerialDialer{PortName: c.SerialPort, BaudRate: c.BaudRate}
	}
}

// bringUp wakes the modem, unlocks the SIM and attaches to packet data.
// Registration failures power-cycle the modem before the next attempt.
func bringUp(ctx context.Context, m *modem.Modem, c *Config, logger *slog.Logger) error {
	if err := wake(ctx, m, c); err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		err := m.RegisterNetwork(ctx, c.RegisterTimeout)
		if err == nil {
			break
		}
		if attempt >= c.RegisterAttempts || ctx.Err() != nil {
			return fmt.Errorf("register network: %w", err)
		}
		logger.Warn("Registration failed, power cycling modem", "attempt", attempt, "error", err)
		if err := m.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := wake(ctx, m, c); err != nil {
			return err
		}
	}

	if err := m.EnableGPRS(ctx, c.GPRSTimeout); err != nil {
		return fmt.Errorf("enable gprs: %w", err)
	}
	logger.Info("Modem online", "apn", c.APN)
	return nil
}

func wake(ctx context.Context, m *modem.Modem, c *Config) error {
	if err := m.Wakeup(ctx); err != nil {
		return fmt.Errorf("wakeup: %w", err)
	}
	if c.SimPIN != "" {
		if err := m.Unlock(ctx, c.SimPIN); err != nil {
			return err
		}
	}
	return nil
}

// runTerminal wakes the modem and connects it to stdin and stdout.
func runTerminal(ctx context.Context, m *modem.Modem, logger *slog.Logger) error {
	if err := m.Wakeup(ctx); err != nil {
		return fmt.Errorf("wakeup: %w", err)
	}
	logger.Info("Terminal ready, end input to exit")
	term := struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}
	return m.Passthrough(ctx, term)
}

// logEvents reports unsolicited result codes until ctx ends.
func logEvents(ctx context.Context, m *modem.Modem, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-m.URC():
			logger.Info("Modem event", "urc", ev.URC.String(), "line", ev.Line)
		}
	}
}
