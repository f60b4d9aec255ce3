package modem

//go:generate go tool mockgen -destination=mock_transport.go -package=modem . Transport,Dialer,Pins

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Transport represents an established, bidirectional byte stream to a SIM800
// modem.
//
// A Transport is assumed to be already connected and ready for use. Read must
// not block for longer than a polling tick: when no byte is pending it returns
// (0, nil). Typical implementations include serial ports, TCP bridges to the
// serial line, or in-memory fakes used for testing.
type Transport interface {
	io.ReadWriteCloser
}

// SpeedSetter is implemented by transports whose line speed can be changed
// after the transport was opened.
type SpeedSetter interface {
	SetSpeed(baud int) error
}

// InputResetter is implemented by transports that can discard pending input
// without reading it.
type InputResetter interface {
	ResetInput() error
}

// Dialer opens a Transport to a modem.
//
// Dialer abstracts how the modem connection is created (for example, via a
// serial port, a TCP bridge, or test double) and is intended to be used
// during modem construction only. Once a Transport is obtained, the Dialer is
// no longer needed.
type Dialer interface {
	// Dial is responsible for creating and returning a connected Transport. It may
	// perform blocking operations and should respect cancellation and deadlines
	// provided by the context. Dial returns an error if the transport cannot be
	// established.
	Dial(ctx context.Context) (Transport, error)
}

// DefaultSpeed is the serial speed the modem is driven at unless configured
// otherwise.
const DefaultSpeed = 57600

// serialReadTimeout keeps Read from blocking longer than one polling tick.
const serialReadTimeout = time.Millisecond

// SerialDialer opens a modem over a local serial port using go.bug.st/serial.
type SerialDialer struct {
	PortName string
	BaudRate int
	// Mode overrides BaudRate and the 8N1 framing when set.
	Mode *serial.Mode
}

func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("sim800: context is nil")
	}
	if d.PortName == "" {
		return nil, errors.New("sim800: serial port name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode := d.Mode
	if mode == nil {
		baud := d.BaudRate
		if baud == 0 {
			baud = DefaultSpeed
		}
		mode = &serial.Mode{
			BaudRate: baud,
			Parity:   serial.NoParity,
			DataBits: 8,
			StopBits: serial.OneStopBit,
		}
	}

	port, err := serial.Open(d.PortName, mode)
	if err != nil {
		return nil, fmt.Errorf("sim800: open %s: %w", d.PortName, err)
	}
	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("sim800: set read timeout on %s: %w", d.PortName, err)
	}

	mc := *mode
	return &serialTransport{Port: port, mode: mc}, nil
}

// serialTransport adds speed changes and input reset to a serial.Port.
type serialTransport struct {
	serial.Port
	mode serial.Mode
}

func (s *serialTransport) SetSpeed(baud int) error {
	if baud == s.mode.BaudRate {
		return nil
	}
	mode := s.mode
	mode.BaudRate = baud
	if err := s.Port.SetMode(&mode); err != nil {
		return fmt.Errorf("sim800: set speed %d: %w", baud, err)
	}
	s.mode = mode
	return nil
}

func (s *serialTransport) ResetInput() error {
	return s.Port.ResetInputBuffer()
}
