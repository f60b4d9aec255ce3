package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	// BindAddress is the address the server listens on (e.g. "0.0.0.0:8080")
	BindAddress string `yaml:"bind_address"`
	// Transport selects how the modem is reached: "serial", "tarm" or "tcp"
	Transport string `yaml:"transport"`
	// SerialPort is the path to the modem's serial port (e.g. "/dev/ttyUSB0")
	SerialPort string `yaml:"serial_port"`
	// BaudRate is the baud rate for serial communication with the modem (e.g. 57600)
	BaudRate int `yaml:"baud_rate"`
	// TCPAddress is the host:port of a serial-over-TCP bridge
	TCPAddress string `yaml:"tcp_address"`
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string `yaml:"log_level"`
	// Trace logs every byte exchanged with the modem at debug level
	Trace bool `yaml:"trace"`
	// SimPIN is the SIM card PIN code
	SimPIN string `yaml:"sim_pin"`

	// APN, User and Password configure the packet data bearer
	APN      string `yaml:"apn"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`

	// GPIO enables the reset, power key and power status lines
	GPIO           bool `yaml:"gpio"`
	ResetPin       int  `yaml:"reset_pin"`
	PowerKeyPin    int  `yaml:"power_key_pin"`
	PowerStatusPin int  `yaml:"power_status_pin"`

	// RegisterTimeout bounds one network registration attempt
	RegisterTimeout time.Duration `yaml:"register_timeout"`
	// RegisterAttempts is how often registration is tried, with a power
	// cycle in between
	RegisterAttempts int `yaml:"register_attempts"`
	// GPRSTimeout bounds packet data attach
	GPRSTimeout time.Duration `yaml:"gprs_timeout"`
	// ChunkSize is the HTTP body chunk size read from the modem
	ChunkSize int `yaml:"chunk_size"`

	// RateLimit is the number of modem requests per second the API accepts
	RateLimit float64 `yaml:"rate_limit"`
	// RateBurst is the number of requests allowed above RateLimit at once
	RateBurst int `yaml:"rate_burst"`
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
		c.Transport = "serial"
		c.SerialPort = "/dev/ttyUSB0"
		c.BaudRate = 57600
		c.LogLevel = "info"
		c.ResetPin = 18
		c.PowerKeyPin = 23
		c.PowerStatusPin = 24
		c.RegisterTimeout = 60 * time.Second
		c.RegisterAttempts = 3
		c.GPRSTimeout = 30 * time.Second
		c.ChunkSize = 512
		c.RateLimit = 1
		c.RateBurst = 3
		return nil
	}
}

// WithFile loads configuration from a YAML file. Keys missing from the file
// keep their current values. An empty path is ignored.
func WithFile(path string) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
			c.BindAddress = addr
		}

		if transport := os.Getenv("MODEM_TRANSPORT"); transport != "" {
			c.Transport = transport
		}

		if serial := os.Getenv("SERIAL_PORT"); serial != "" {
			c.SerialPort = serial
		}

		if baud := os.Getenv("BAUD_RATE"); baud != "" {
			if b, err := strconv.Atoi(baud); err == nil {
				c.BaudRate = b
			}
		}

		if addr := os.Getenv("TCP_ADDRESS"); addr != "" {
			c.TCPAddress = addr
		}

		if level := os.Getenv("LOG_LEVEL"); level != "" {
			c.LogLevel = level
		}

		if simPIN := os.Getenv("SIM_PIN"); simPIN != "" {
			c.SimPIN = simPIN
		}

		if apn := os.Getenv("APN"); apn != "" {
			c.APN = apn
		}

		if user := os.Getenv("APN_USER"); user != "" {
			c.User = user
		}

		if password := os.Getenv("APN_PASSWORD"); password != "" {
			c.Password = password
		}

		if gpio := os.Getenv("GPIO"); gpio != "" {
			if b, err := strconv.ParseBool(gpio); err == nil {
				c.GPIO = b
			}
		}

		return nil
	}
}

// WithFlags loads configuration from command-line flags
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		var err error
		fSet.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "bind-address":
				c.BindAddress = f.Value.String()
			case "transport":
				c.Transport = f.Value.String()
			case "serial-port":
				c.SerialPort = f.Value.String()
			case "baud-rate":
				if b, perr := strconv.Atoi(f.Value.String()); perr == nil {
					c.BaudRate = b
				}
			case "tcp-address":
				c.TCPAddress = f.Value.String()
			case "log-level":
				c.LogLevel = f.Value.String()
			case "trace":
				c.Trace = f.Value.String() == "true"
			case "sim-pin":
				c.SimPIN = f.Value.String()
			case "apn":
				c.APN = f.Value.String()
			case "gpio":
				c.GPIO = f.Value.String() == "true"
			case "register-timeout":
				if d, perr := time.ParseDuration(f.Value.String()); perr == nil {
					c.RegisterTimeout = d
				} else {
					err = fmt.Errorf("register-timeout: %w", perr)
				}
			}
		})
		return err
	}
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	switch c.Transport {
	case "serial", "tarm":
		if c.SerialPort == "" {
			return fmt.Errorf("transport %s requires a serial port", c.Transport)
		}
	case "tcp":
		if c.TCPAddress == "" {
			return fmt.Errorf("transport tcp requires a tcp address")
		}
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	if c.RegisterAttempts < 1 {
		return fmt.Errorf("register attempts must be at least 1, got %d", c.RegisterAttempts)
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("rate limit must be positive, got %v", c.RateLimit)
	}
	return nil
}
