package modem

import (
	"context"
	"errors"
	"io"

	"golang.org/x/sync/errgroup"
)

// Passthrough connects an operator terminal directly to the modem: bytes
// read from term are written to the modem unchanged and everything the
// modem sends is written to term. It returns once term reports EOF and the
// modem output has gone quiet, when ctx ends or when either side fails.
// If term is also an io.Closer it is closed once the session ends, which
// unblocks a pending Read when the modem side fails first. Otherwise a term
// whose Read blocks keeps the session open until that Read returns.
func (m *Modem) Passthrough(ctx context.Context, term io.ReadWriter) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	m.logger.Info("terminal passthrough started")
	defer m.logger.Info("terminal passthrough ended")

	g, ctx := errgroup.WithContext(ctx)
	eof := make(chan struct{})
	if c, ok := term.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { _ = c.Close() })
		defer stop()
	}

	g.Go(func() error {
		buf := make([]byte, readAhead)
		for {
			n, err := term.Read(buf)
			if n > 0 {
				if werr := m.link.write(buf[:n]); werr != nil {
					return werr
				}
			}
			if errors.Is(err, io.EOF) {
				close(eof)
				return nil
			}
			if err != nil {
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
		}
	})

	g.Go(func() error {
		for {
			var done bool
			select {
			case <-eof:
				done = true
			default:
			}

			ok, err := m.link.available()
			if err != nil && !ok {
				return err
			}
			if ok {
				p := m.link.pending
				m.link.pending = nil
				if _, err := term.Write(p); err != nil {
					return err
				}
				continue
			}
			if done {
				return nil
			}
			if err := m.clock.Sleep(ctx, m.config.PollTick); err != nil {
				return nil
			}
		}
	})

	return g.Wait()
}
