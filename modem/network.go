package modem

import (
	"context"
	"fmt"
	"time"

	"i4.energy/across/sim800gw/at"
)

const (
	pollInterval  = time.Second
	shutTimeout   = 5 * time.Second
	attachTimeout = 10 * time.Second
	bearerTimeout = 10 * time.Second
	openTimeout   = 30 * time.Second
)

// RegisterNetwork polls the registration state once per second until the
// modem reports home or roaming registration. At most one poll is made per
// second of timeout, and at least one. Polling stops early when the next
// one-second wait would pass the timeout.
func (m *Modem) RegisterNetwork(ctx context.Context, timeout time.Duration) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	start := m.clock.Now()
	deadline := start.Add(timeout)
	m.logger.Info("waiting for network registration", "timeout", timeout)

	_ = m.ExecOK(ctx, at.CmdProbe, 0)

	limit := max(1, int(timeout/pollInterval))
	polls := 0
	state := -1
	for i := range limit {
		if i > 0 {
			if m.clock.Now().Add(pollInterval).After(deadline) {
				break
			}
			if err := m.clock.Sleep(ctx, pollInterval); err != nil {
				return err
			}
		}
		polls++
		s, err := m.Registration(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.Debug("registration poll", "err", err)
			continue
		}
		state = s
		m.logger.Debug("registration poll", "state", state)
		if state == at.RegHome || state == at.RegRoaming {
			m.logger.Info("registered", "roaming", state == at.RegRoaming)
			m.metrics.RecordSequence("register", m.clock.Now().Sub(start), nil)
			return nil
		}
	}

	err := fmt.Errorf("%w: last state %d after %d polls", ErrNotRegistered, state, polls)
	m.metrics.RecordSequence("register", m.clock.Now().Sub(start), err)
	return err
}

// Registration returns the network registration state reported by one
// +CREG poll, one of the at.Reg constants.
func (m *Modem) Registration(ctx context.Context) (int, error) {
	fields, err := m.Query(ctx, at.CmdRegistration, at.PatRegistration, 0)
	if err != nil {
		return 0, err
	}
	return fields.Int(0), nil
}

// EnableGPRS attaches to packet data and opens bearer profile 1 with the
// session credentials. The attach command is retried once per second
// within timeout; afterwards the attach flag is polled until it is set or
// the remaining budget is spent.
func (m *Modem) EnableGPRS(ctx context.Context, timeout time.Duration) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	start := m.clock.Now()
	deadline := start.Add(timeout)
	err := m.enableGPRS(ctx, deadline)
	m.metrics.RecordSequence("gprs", m.clock.Now().Sub(start), err)
	return err
}

func (m *Modem) enableGPRS(ctx context.Context, deadline time.Time) error {
	s := m.session
	for _, arg := range []struct{ name, value string }{
		{"apn", s.APN}, {"user", s.User}, {"password", s.Password},
	} {
		if err := checkArgument(arg.name, arg.value); err != nil {
			return err
		}
	}

	if err := m.Exec(ctx, at.CmdIPShutdown, at.ShutOK, shutTimeout); err != nil {
		m.logger.Debug("shut ip session", "err", err)
	}
	if err := m.ExecOK(ctx, at.CmdMultiplex, 0); err != nil {
		m.logger.Debug("enable multiplex", "err", err)
	}
	if err := m.ExecOK(ctx, at.CmdManualReceive, 0); err != nil {
		m.logger.Debug("enable manual receive", "err", err)
	}

	for {
		err := m.ExecOK(ctx, at.CmdAttach, attachTimeout)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !m.clock.Now().Add(pollInterval).Before(deadline) {
			return fmt.Errorf("%w: %v", ErrNotAttached, err)
		}
		if err := m.clock.Sleep(ctx, pollInterval); err != nil {
			return err
		}
	}

	if err := m.ExecOK(ctx, at.CmdBearerGPRS, bearerTimeout); err != nil {
		return fmt.Errorf("bearer type: %w", err)
	}
	if s.APN != "" {
		if err := m.ExecOK(ctx, fmt.Sprintf(at.CmdBearerAPN, s.APN), 0); err != nil {
			return fmt.Errorf("bearer apn: %w", err)
		}
		if s.User != "" {
			if err := m.ExecOK(ctx, fmt.Sprintf(at.CmdBearerUser, s.User), 0); err != nil {
				return fmt.Errorf("bearer user: %w", err)
			}
		}
		if s.Password != "" {
			if err := m.ExecOK(ctx, fmt.Sprintf(at.CmdBearerPassword, s.Password), 0); err != nil {
				return fmt.Errorf("bearer password: %w", err)
			}
		}
	}

	// The bearer may already be open.
	if err := m.ExecOK(ctx, at.CmdBearerOpen, openTimeout); err != nil {
		m.logger.Warn("open bearer", "err", err)
	}

	for {
		fields, err := m.Query(ctx, at.CmdAttachStatus, at.PatAttachStatus, 0)
		if err == nil && fields.Int(0) != 0 {
			m.logger.Info("packet data attached")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !m.clock.Now().Before(deadline) {
			if err != nil {
				return fmt.Errorf("%w: %v", ErrNotAttached, err)
			}
			return ErrNotAttached
		}
		if err := m.clock.Sleep(ctx, pollInterval); err != nil {
			return err
		}
	}
}

// DisableGPRS shuts the IP session, closes the bearer and detaches. Only
// the detach decides the result, so calling it without an open bearer
// behaves like calling it with one.
func (m *Modem) DisableGPRS(ctx context.Context) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	if err := m.Exec(ctx, at.CmdIPShutdown, at.ShutOK, 0); err != nil {
		m.logger.Debug("shut ip session", "err", err)
	}
	if err := m.ExecOK(ctx, at.CmdBearerClose, 0); err != nil {
		m.logger.Debug("close bearer", "err", err)
	}
	if err := m.ExecOK(ctx, at.CmdDetach, 0); err != nil {
		return fmt.Errorf("detach: %w", err)
	}
	m.session.Address = ""
	return nil
}
