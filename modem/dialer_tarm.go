package modem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	tarm "github.com/tarm/serial"
)

// tarmReadTimeout is the shortest timeout the termios VTIME field can
// express.
const tarmReadTimeout = 100 * time.Millisecond

// TarmDialer opens a modem over a serial port using github.com/tarm/serial.
// It is meant for platforms where go.bug.st/serial is unavailable. The
// driver cannot change the speed of an open port, so SetSpeed reopens it.
type TarmDialer struct {
	PortName string
	BaudRate int
}

func (d TarmDialer) Dial(ctx context.Context) (Transport, error) {
	if ctx == nil {
		return nil, errors.New("sim800: context is nil")
	}
	if d.PortName == "" {
		return nil, errors.New("sim800: serial port name is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	baud := d.BaudRate
	if baud == 0 {
		baud = DefaultSpeed
	}
	t := &tarmTransport{name: d.PortName}
	if err := t.open(baud); err != nil {
		return nil, err
	}
	return t, nil
}

type tarmTransport struct {
	mu   sync.Mutex
	name string
	baud int
	port *tarm.Port
}

func (t *tarmTransport) open(baud int) error {
	port, err := tarm.OpenPort(&tarm.Config{
		Name:        t.name,
		Baud:        baud,
		ReadTimeout: tarmReadTimeout,
	})
	if err != nil {
		return fmt.Errorf("sim800: open %s: %w", t.name, err)
	}
	t.port = port
	t.baud = baud
	return nil
}

func (t *tarmTransport) Read(p []byte) (int, error) {
	t.mu.Lock()
	port := t.port
	t.mu.Unlock()

	n, err := port.Read(p)
	// An expired read timeout surfaces as EOF.
	if errors.Is(err, io.EOF) {
		return n, nil
	}
	return n, err
}

func (t *tarmTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	port := t.port
	t.mu.Unlock()
	return port.Write(p)
}

func (t *tarmTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port.Close()
}

func (t *tarmTransport) SetSpeed(baud int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if baud == t.baud {
		return nil
	}
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("sim800: close %s: %w", t.name, err)
	}
	return t.open(baud)
}

func (t *tarmTransport) ResetInput() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port.Flush()
}
