package modem

import (
	"log/slog"
	"time"
)

// Config carries everything a Modem needs besides the session credentials.
// Zero values are replaced by defaults; only Dialer is required.
type Config struct {
	Dialer  Dialer
	Pins    Pins
	Clock   Clock
	Logger  *slog.Logger
	Metrics *Metrics

	// Trace logs every byte exchanged with the modem.
	Trace bool

	// ATTimeout is used by dispatcher calls given a zero timeout.
	ATTimeout time.Duration
	// PollTick is the line reader polling increment.
	PollTick time.Duration

	Speed           int
	LineSize        int
	ChunkSize       int
	SocketChunkSize int

	// MaxStalledReads bounds consecutive zero-byte chunk reads while
	// streaming an HTTP body.
	MaxStalledReads int
	// MaxActionPolls bounds the result polls after a buffered POST.
	MaxActionPolls int

	APN      string
	User     string
	Password string
}

func (c *Config) validate() error {
	if c.Dialer == nil {
		return ErrNoDialer
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Pins == nil {
		c.Pins = NoPins{}
	}
	if c.Clock == nil {
		c.Clock = systemClock{}
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	if c.ATTimeout == 0 {
		c.ATTimeout = time.Second
	}
	if c.PollTick == 0 {
		c.PollTick = time.Millisecond
	}
	if c.Speed == 0 {
		c.Speed = DefaultSpeed
	}
	if c.LineSize == 0 {
		c.LineSize = 64
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = 64
	}
	if c.SocketChunkSize == 0 {
		c.SocketChunkSize = 128
	}
	if c.MaxStalledReads == 0 {
		c.MaxStalledReads = 10
	}
	if c.MaxActionPolls == 0 {
		c.MaxActionPolls = 24
	}
}

// ConfigBuilder assembles a Config step by step.
type ConfigBuilder struct {
	config Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.Dialer = d
	return b
}

func (b *ConfigBuilder) WithPins(p Pins) *ConfigBuilder {
	b.config.Pins = p
	return b
}

func (b *ConfigBuilder) WithClock(c Clock) *ConfigBuilder {
	b.config.Clock = c
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.Logger = l
	return b
}

func (b *ConfigBuilder) WithMetrics(m *Metrics) *ConfigBuilder {
	b.config.Metrics = m
	return b
}

func (b *ConfigBuilder) WithTrace(on bool) *ConfigBuilder {
	b.config.Trace = on
	return b
}

func (b *ConfigBuilder) WithATTimeout(d time.Duration) *ConfigBuilder {
	b.config.ATTimeout = d
	return b
}

func (b *ConfigBuilder) WithSpeed(baud int) *ConfigBuilder {
	b.config.Speed = baud
	return b
}

func (b *ConfigBuilder) WithLineSize(n int) *ConfigBuilder {
	b.config.LineSize = n
	return b
}

// WithChunkSize sets the HTTP read chunk size.
func (b *ConfigBuilder) WithChunkSize(n int) *ConfigBuilder {
	b.config.ChunkSize = n
	return b
}

func (b *ConfigBuilder) WithSocketChunkSize(n int) *ConfigBuilder {
	b.config.SocketChunkSize = n
	return b
}

func (b *ConfigBuilder) WithMaxActionPolls(n int) *ConfigBuilder {
	b.config.MaxActionPolls = n
	return b
}

func (b *ConfigBuilder) WithMaxStalledReads(n int) *ConfigBuilder {
	b.config.MaxStalledReads = n
	return b
}

func (b *ConfigBuilder) WithCredentials(apn, user, password string) *ConfigBuilder {
	b.config.APN = apn
	b.config.User = user
	b.config.Password = password
	return b
}

// Build validates the configuration and fills in defaults.
func (b *ConfigBuilder) Build() (Config, error) {
	c := b.config
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	c.setDefaults()
	return c, nil
}
