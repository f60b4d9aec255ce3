package modem_test

import (
	"errors"
	"testing"
	"time"

	"i4.energy/across/sim800gw/modem"
)

func TestConfig(t *testing.T) {
	t.Run("ErrNoDialer when no dialer provided", func(t *testing.T) {
		_, err := modem.NewConfigBuilder().Build()

		if !errors.Is(err, modem.ErrNoDialer) {
			t.Errorf("expected ErrNoDialer, got: %v", err)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		config, err := modem.NewConfigBuilder().
			WithDialer(modem.TCPDialer{Address: "localhost:2000"}).
			Build()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if config.ATTimeout != time.Second {
			t.Errorf("expected 1s command timeout, got %v", config.ATTimeout)
		}
		if config.PollTick != time.Millisecond {
			t.Errorf("expected 1ms poll tick, got %v", config.PollTick)
		}
		if config.Speed != modem.DefaultSpeed {
			t.Errorf("expected default speed, got %d", config.Speed)
		}
		if config.LineSize != 64 || config.ChunkSize != 64 || config.SocketChunkSize != 128 {
			t.Errorf("unexpected buffer sizes: line %d, chunk %d, socket %d",
				config.LineSize, config.ChunkSize, config.SocketChunkSize)
		}
		if config.MaxActionPolls != 24 || config.MaxStalledReads != 10 {
			t.Errorf("unexpected retry bounds: polls %d, stalls %d",
				config.MaxActionPolls, config.MaxStalledReads)
		}
		if _, ok := config.Pins.(modem.NoPins); !ok {
			t.Errorf("expected NoPins, got %T", config.Pins)
		}
		if config.Clock == nil || config.Logger == nil {
			t.Error("expected clock and logger defaults")
		}
		if config.Metrics != nil {
			t.Error("metrics must stay disabled unless configured")
		}
	})

	t.Run("explicit values are kept", func(t *testing.T) {
		config, err := modem.NewConfigBuilder().
			WithDialer(modem.TCPDialer{Address: "localhost:2000"}).
			WithATTimeout(3 * time.Second).
			WithSpeed(115200).
			WithChunkSize(1000).
			WithCredentials("internet", "user", "secret").
			Build()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if config.ATTimeout != 3*time.Second || config.Speed != 115200 || config.ChunkSize != 1000 {
			t.Errorf("explicit values overwritten: %+v", config)
		}
		if config.APN != "internet" || config.User != "user" || config.Password != "secret" {
			t.Errorf("credentials not kept: %q %q %q", config.APN, config.User, config.Password)
		}
	})
}
