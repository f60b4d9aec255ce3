package modem

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/warthog618/modem/trace"

	"i4.energy/across/sim800gw/at"
)

const readAhead = 256

// link adapts a Transport to the byte-at-a-time polling model of the modem
// protocol: bytes are buffered ahead, availability is checked without
// blocking and every wait advances in PollTick increments of the clock.
type link struct {
	t        Transport
	clock    Clock
	tick     time.Duration
	lineSize int
	logger   *slog.Logger
	metrics  *Metrics

	buf     [readAhead]byte
	pending []byte

	// onURC is called for every unsolicited line swallowed by readLine.
	onURC func(at.URC, string)
}

func newLink(t Transport, cfg Config) *link {
	if cfg.Trace {
		t = newTraceTransport(t, cfg.Logger)
	}
	return &link{
		t:        t,
		clock:    cfg.Clock,
		tick:     cfg.PollTick,
		lineSize: cfg.LineSize,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
	}
}

// available reports whether at least one byte can be consumed without
// waiting.
func (l *link) available() (bool, error) {
	if len(l.pending) > 0 {
		return true, nil
	}
	n, err := l.t.Read(l.buf[:])
	if n > 0 {
		l.pending = l.buf[:n]
		l.metrics.RecordRead(n)
	}
	if err != nil {
		return n > 0, fmt.Errorf("read: %w", err)
	}
	return n > 0, nil
}

func (l *link) next() byte {
	c := l.pending[0]
	l.pending = l.pending[1:]
	return c
}

// wait sleeps one tick unless the deadline has passed.
func (l *link) wait(ctx context.Context, deadline time.Time) error {
	if !l.clock.Now().Before(deadline) {
		return ErrNoResponse
	}
	return l.clock.Sleep(ctx, l.tick)
}

// readLine returns the next non-empty line. Carriage returns are dropped
// and bytes beyond the line capacity are discarded. The data prompt is
// returned as soon as it is seen since it is never terminated. Unsolicited
// result codes are handed to onURC and skipped.
func (l *link) readLine(ctx context.Context, timeout time.Duration) (string, error) {
	deadline := l.clock.Now().Add(timeout)
	line := make([]byte, 0, l.lineSize)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		ok, err := l.available()
		if err != nil && !ok {
			return "", err
		}
		if !ok {
			if err := l.wait(ctx, deadline); err != nil {
				return "", err
			}
			continue
		}

		c := l.next()
		switch c {
		case '\r':
			continue
		case '\n':
			if len(line) == 0 {
				continue
			}
			s := string(line)
			if u, ok := at.MatchURC(s); ok {
				if l.onURC != nil {
					l.onURC(u, s)
				}
				line = line[:0]
				continue
			}
			return s, nil
		}

		if len(line) < l.lineSize {
			line = append(line, c)
		}
		if len(line) == len(at.Prompt) && string(line) == at.Prompt {
			return at.Prompt, nil
		}
	}
}

// readFull reads exactly len(p) raw bytes unless the deadline passes first.
func (l *link) readFull(ctx context.Context, p []byte, timeout time.Duration) (int, error) {
	deadline := l.clock.Now().Add(timeout)
	n := 0
	for n < len(p) {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		ok, err := l.available()
		if err != nil && !ok {
			return n, err
		}
		if !ok {
			if err := l.wait(ctx, deadline); err != nil {
				return n, err
			}
			continue
		}
		k := copy(p[n:], l.pending)
		l.pending = l.pending[k:]
		n += k
	}
	return n, nil
}

// drain discards input until a tick passes with nothing new.
func (l *link) drain(ctx context.Context) error {
	for {
		ok, err := l.available()
		if err != nil && !ok {
			return err
		}
		if !ok {
			return nil
		}
		l.pending = nil
		if err := l.clock.Sleep(ctx, l.tick); err != nil {
			return err
		}
	}
}

// flush drops everything buffered on either side of the transport.
func (l *link) flush(ctx context.Context) error {
	l.pending = nil
	if r, ok := l.t.(InputResetter); ok {
		if err := r.ResetInput(); err != nil {
			return fmt.Errorf("reset input: %w", err)
		}
	}
	return l.drain(ctx)
}

func (l *link) write(p []byte) error {
	n, err := l.t.Write(p)
	l.metrics.RecordWrite(n)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if n != len(p) {
		return fmt.Errorf("write: %w", io.ErrShortWrite)
	}
	return nil
}

func (l *link) setSpeed(baud int) error {
	s, ok := l.t.(SpeedSetter)
	if !ok {
		l.logger.Debug("transport has fixed speed", "speed", baud)
		return nil
	}
	return s.SetSpeed(baud)
}

func (l *link) close() error {
	return l.t.Close()
}

// traceTransport logs the traffic of a Transport through the
// warthog618 trace decorator while keeping its optional capabilities.
type traceTransport struct {
	Transport
	rw io.ReadWriter
}

func newTraceTransport(t Transport, logger *slog.Logger) Transport {
	l := slog.NewLogLogger(logger.Handler(), slog.LevelDebug)
	l.SetFlags(0)
	return &traceTransport{
		Transport: t,
		rw: trace.New(t,
			trace.WithLogger(l),
			trace.WithReadFormat("r: %q"),
			trace.WithWriteFormat("w: %q"),
		),
	}
}

func (t *traceTransport) Read(p []byte) (int, error)  { return t.rw.Read(p) }
func (t *traceTransport) Write(p []byte) (int, error) { return t.rw.Write(p) }

func (t *traceTransport) SetSpeed(baud int) error {
	if s, ok := t.Transport.(SpeedSetter); ok {
		return s.SetSpeed(baud)
	}
	return nil
}

func (t *traceTransport) ResetInput() error {
	if r, ok := t.Transport.(InputResetter); ok {
		return r.ResetInput()
	}
	return nil
}
