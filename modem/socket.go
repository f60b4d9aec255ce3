package modem

import (
	"context"
	"fmt"
	"strings"
	"time"

	"i4.energy/across/sim800gw/at"
)

const (
	connectTimeout = 30 * time.Second
	acceptTimeout  = 3 * time.Second
	socketTimeout  = 5 * time.Second
)

// Connect opens TCP connection 0 to host:port. The local address is polled
// until the modem reports one or timeout passes.
func (m *Modem) Connect(ctx context.Context, host string, port int, timeout time.Duration) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if err := checkArgument("host", host); err != nil {
		return err
	}
	if err := checkArgument("apn", m.session.APN); err != nil {
		return err
	}
	if err := m.Exec(ctx, at.CmdIPShutdown, at.ShutOK, 0); err != nil {
		return fmt.Errorf("shut ip session: %w", err)
	}
	if err := m.ExecOK(ctx, at.CmdVerboseErrors, 0); err != nil {
		return fmt.Errorf("verbose errors: %w", err)
	}
	if err := m.ExecOK(ctx, at.CmdQueuedSend, 0); err != nil {
		return fmt.Errorf("queued send: %w", err)
	}
	if err := m.ExecOK(ctx, fmt.Sprintf(at.CmdTaskAPN, m.session.APN), 0); err != nil {
		return fmt.Errorf("set apn: %w", err)
	}
	if err := m.ExecOK(ctx, at.CmdBringUp, 0); err != nil {
		return fmt.Errorf("bring up wireless: %w", err)
	}

	addr, err := m.localAddress(ctx, timeout)
	if err != nil {
		return err
	}
	m.session.Address = addr
	m.logger.Info("local address", "addr", addr)

	if err := m.ExecOK(ctx, fmt.Sprintf(at.CmdStart, host, port), 0); err != nil {
		return fmt.Errorf("start connection: %w", err)
	}
	if err := m.Expect(ctx, at.ConnectOK, connectTimeout); err != nil {
		return fmt.Errorf("connect %s:%d: %w", host, port, err)
	}
	m.logger.Info("connected", "host", host, "port", port)
	return nil
}

func (m *Modem) localAddress(ctx context.Context, timeout time.Duration) (string, error) {
	deadline := m.clock.Now().Add(timeout)
	for {
		fields, err := m.Query(ctx, at.CmdLocalAddress, at.PatWord, 0)
		if err == nil && fields.String(0) != at.ERROR {
			return fields.String(0), nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !m.clock.Now().Before(deadline) {
			return "", ErrNoAddress
		}
		if err := m.clock.Sleep(ctx, m.config.PollTick); err != nil {
			return "", err
		}
	}
}

// Status reports whether connection 0 is established.
func (m *Modem) Status(ctx context.Context) (bool, error) {
	fields, err := m.Query(ctx, at.CmdSocketStatus, at.PatSocketStatus, 0)
	if err != nil {
		return false, err
	}
	if err := m.Expect(ctx, at.OK, 0); err != nil {
		return false, err
	}
	return clientState(fields.String(0)) == at.Connected, nil
}

// clientState returns the last field of a +CIPSTATUS report without quotes.
func clientState(report string) string {
	if i := strings.LastIndexByte(report, ','); i >= 0 {
		report = report[i+1:]
	}
	return strings.Trim(report, `"`)
}

// Disconnect closes connection 0.
func (m *Modem) Disconnect(ctx context.Context) error {
	return m.ExecOK(ctx, at.CmdClose, 0)
}

// Write sends p on connection 0. The accepted count reported by the modem
// is unreliable, so a missing report is taken as full acceptance; a report
// of fewer bytes returns ErrShortWrite.
func (m *Modem) Write(ctx context.Context, p []byte) (int, error) {
	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	if err := m.Exec(ctx, fmt.Sprintf(at.CmdSend, len(p)), at.Prompt, 0); err != nil {
		m.metrics.RecordTransfer("socket_write", 0, err)
		return 0, fmt.Errorf("send prompt: %w", err)
	}
	if err := m.writeRaw(p); err != nil {
		m.metrics.RecordTransfer("socket_write", 0, err)
		return 0, err
	}

	accepted := len(p)
	fields, err := m.Scan(ctx, at.PatAccepted, acceptTimeout)
	if err != nil {
		m.logger.Debug("no accepted count, assuming all sent", "size", len(p), "err", err)
	} else {
		accepted = fields.Int(0)
	}

	err = nil
	if accepted != len(p) {
		err = fmt.Errorf("%w: %d of %d bytes accepted", ErrShortWrite, accepted, len(p))
	}
	m.metrics.RecordTransfer("socket_write", int64(accepted), err)
	return accepted, err
}

// Read receives up to len(p) bytes from connection 0 in chunks of the
// socket chunk size. It returns early when the modem has no more data.
func (m *Modem) Read(ctx context.Context, p []byte) (int, error) {
	n, err := m.receive(ctx, p)
	m.metrics.RecordTransfer("socket_read", int64(n), err)
	return n, err
}

func (m *Modem) receive(ctx context.Context, p []byte) (int, error) {
	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	actual := 0
	for actual < len(p) {
		chunk := min(len(p)-actual, m.config.SocketChunkSize)
		fields, err := m.Query(ctx, fmt.Sprintf(at.CmdReceive, chunk), at.PatReceive, 0)
		if err != nil {
			return actual, fmt.Errorf("receive: %w", err)
		}
		confirmed := fields.Int(2)
		if confirmed <= 0 {
			break
		}
		if confirmed > chunk {
			return actual, fmt.Errorf("receive: modem confirmed %d bytes for a %d byte request", confirmed, chunk)
		}
		n, err := m.readRaw(ctx, p[actual:actual+confirmed], socketTimeout)
		actual += n
		if err != nil {
			return actual, fmt.Errorf("receive: %w", err)
		}
	}
	return actual, nil
}
