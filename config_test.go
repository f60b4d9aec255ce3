package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		config, err := LoadConfig(WithDefaults())
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0:8080", config.BindAddress)
		assert.Equal(t, "serial", config.Transport)
		assert.Equal(t, 57600, config.BaudRate)
		assert.Equal(t, time.Minute, config.RegisterTimeout)
		assert.Equal(t, 3, config.RegisterAttempts)
		assert.NoError(t, config.Validate())
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sim800gw.yaml")
		data := []byte(`
transport: tcp
tcp_address: 10.0.0.5:2000
apn: iot.example
register_timeout: 45s
gpio: true
reset_pin: 17
`)
		require.NoError(t, os.WriteFile(path, data, 0o600))

		config, err := LoadConfig(WithDefaults(), WithFile(path))
		require.NoError(t, err)

		assert.Equal(t, "tcp", config.Transport)
		assert.Equal(t, "10.0.0.5:2000", config.TCPAddress)
		assert.Equal(t, "iot.example", config.APN)
		assert.Equal(t, 45*time.Second, config.RegisterTimeout)
		assert.True(t, config.GPIO)
		assert.Equal(t, 17, config.ResetPin)
		assert.Equal(t, 23, config.PowerKeyPin)
		assert.Equal(t, "/dev/ttyUSB0", config.SerialPort)
	})

	t.Run("empty file path is ignored", func(t *testing.T) {
		config, err := LoadConfig(WithDefaults(), WithFile(""))
		require.NoError(t, err)
		assert.Equal(t, "serial", config.Transport)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(WithDefaults(), WithFile(filepath.Join(t.TempDir(), "missing.yaml")))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("baud_rate: [fast"), 0o600))

		_, err := LoadConfig(WithDefaults(), WithFile(path))
		assert.Error(t, err)
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("SERIAL_PORT", "/dev/ttyAMA0")
		t.Setenv("BAUD_RATE", "115200")
		t.Setenv("APN", "internet")
		t.Setenv("GPIO", "true")

		config, err := LoadConfig(WithDefaults(), WithEnv())
		require.NoError(t, err)

		assert.Equal(t, "/dev/ttyAMA0", config.SerialPort)
		assert.Equal(t, 115200, config.BaudRate)
		assert.Equal(t, "internet", config.APN)
		assert.True(t, config.GPIO)
	})

	t.Run("flags override environment", func(t *testing.T) {
		t.Setenv("SERIAL_PORT", "/dev/ttyAMA0")

		fs := flag.NewFlagSet("test", flag.ContinueOnError)
		fs.String("serial-port", "/dev/ttyUSB0", "")
		fs.String("sim-pin", "", "")
		fs.Bool("trace", false, "")
		fs.Duration("register-timeout", time.Minute, "")
		require.NoError(t, fs.Parse([]string{
			"-serial-port", "/dev/ttyS1",
			"-sim-pin", "1234",
			"-trace",
			"-register-timeout", "90s",
		}))

		config, err := LoadConfig(WithDefaults(), WithEnv(), WithFlags(fs))
		require.NoError(t, err)

		assert.Equal(t, "/dev/ttyS1", config.SerialPort)
		assert.Equal(t, "1234", config.SimPIN)
		assert.True(t, config.Trace)
		assert.Equal(t, 90*time.Second, config.RegisterTimeout)
	})

	t.Run("unset flags keep earlier values", func(t *testing.T) {
		fs := flag.NewFlagSet("test", flag.ContinueOnError)
		fs.String("serial-port", "/dev/ttyUSB9", "")
		require.NoError(t, fs.Parse(nil))

		config, err := LoadConfig(WithDefaults(), WithFlags(fs))
		require.NoError(t, err)
		assert.Equal(t, "/dev/ttyUSB0", config.SerialPort)
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"serial", func(c *Config) {}, true},
		{"tarm", func(c *Config) { c.Transport = "tarm" }, true},
		{"tcp without address", func(c *Config) { c.Transport = "tcp" }, false},
		{"tcp", func(c *Config) { c.Transport = "tcp"; c.TCPAddress = "localhost:2000" }, true},
		{"serial without port", func(c *Config) { c.SerialPort = "" }, false},
		{"unknown transport", func(c *Config) { c.Transport = "usb" }, false},
		{"no attempts", func(c *Config) { c.RegisterAttempts = 0 }, false},
		{"no rate", func(c *Config) { c.RateLimit = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := LoadConfig(WithDefaults())
			require.NoError(t, err)
			tt.modify(config)

			err = config.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
