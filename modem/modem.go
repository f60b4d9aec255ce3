package modem

import (
	"context"
	"fmt"
	"log/slog"

	"i4.energy/across/sim800gw/at"
)

// State is the power state of the modem as last driven by the sequencer.
type State int

const (
	StateOff State = iota
	StateBooting
	StateReady
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateOff:
		return "off"
	case StateBooting:
		return "booting"
	case StateReady:
		return "ready"
	case StateShuttingDown:
		return "shutting-down"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event is an unsolicited result code observed while waiting for a reply.
type Event struct {
	URC  at.URC
	Line string
}

// Modem drives a SIM800 over a half-duplex AT command link.
//
// Every operation is synchronous: it writes its commands, waits for the
// replies and returns once the sequence completed or its timeout expired.
// A Modem is not safe for concurrent use; callers serialise access.
type Modem struct {
	link    *link
	config  Config
	pins    Pins
	clock   Clock
	logger  *slog.Logger
	metrics *Metrics

	session Session
	state   State
	closed  bool

	events chan Event
}

// New dials the transport described by config and returns a Modem bound to
// it. The modem itself is not touched; call Wakeup or Reset to bring it to
// a known state.
func New(ctx context.Context, config Config) (*Modem, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	config.setDefaults()

	transport, err := config.Dialer.Dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial modem: %w", err)
	}
	if transport == nil {
		return nil, ErrNotInitialized
	}

	m := &Modem{
		link:    newLink(transport, config),
		config:  config,
		pins:    config.Pins,
		clock:   config.Clock,
		logger:  config.Logger.With("component", "sim800"),
		metrics: config.Metrics,
		session: Session{
			APN:      config.APN,
			User:     config.User,
			Password: config.Password,
			Speed:    config.Speed,
			LastURC:  at.NoURC,
		},
		// Buffered to prevent blocking on URCs
		events: make(chan Event, 100),
	}
	m.link.onURC = m.handleURC

	return m, nil
}

// URC returns a read-only channel that receives the unsolicited result
// codes seen while waiting for replies. The channel is buffered, but may
// drop some URC if not consumed fast enough.
func (m *Modem) URC() <-chan Event {
	return m.events
}

// Session returns a copy of the session state.
func (m *Modem) Session() Session {
	return m.session
}

// SetCredentials sets the access point name and optional user and password
// used when the packet data bearer is configured.
func (m *Modem) SetCredentials(apn, user, password string) {
	m.session.APN = apn
	m.session.User = user
	m.session.Password = password
}

// State returns the power state last driven by Wakeup, Reset or Shutdown.
func (m *Modem) State() State {
	return m.state
}

func (m *Modem) setState(s State) {
	if m.state != s {
		m.logger.Debug("power state", "from", m.state, "to", s)
	}
	m.state = s
	m.metrics.RecordState(s)
}

// Close releases the transport. After calling Close, the modem cannot be
// reused.
func (m *Modem) Close() error {
	if m.closed {
		return ErrAlreadyClosed
	}
	m.closed = true
	return m.link.close()
}

func (m *Modem) handleURC(u at.URC, line string) {
	m.session.LastURC = u
	m.metrics.RecordURC(u)
	m.logger.Info("unsolicited result", "urc", u, "line", line)

	select {
	case m.events <- Event{URC: u, Line: line}:
	default:
		m.logger.Warn("urc dropped", "urc", u)
	}
}

func (m *Modem) checkOpen() error {
	if m.closed {
		return ErrAlreadyClosed
	}
	return nil
}
