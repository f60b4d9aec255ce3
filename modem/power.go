package modem

import (
	"context"
	"fmt"
	"time"

	"i4.energy/across/sim800gw/at"
)

// Hardware timings of the SIM800 power and reset lines.
const (
	resetPrePulse    = 10 * time.Millisecond
	resetPulse       = 100 * time.Millisecond
	resetSettle      = 7 * time.Second
	powerKeyPre      = 10 * time.Millisecond
	powerKeyPulse    = 1100 * time.Millisecond
	powerKeySettle   = 2000 * time.Millisecond
	powerKeyPoll     = 100 * time.Millisecond
	wakeupTimeout    = 5 * time.Second
	powerDownTimeout = 5 * time.Second

	// powerKeyHoldLimit bounds how long Shutdown holds the power key while
	// waiting for the status line to drop.
	powerKeyHoldLimit = 10 * time.Second
)

// bannerProbes is the number of bare AT probes sent after a reset to absorb
// the boot banner.
const bannerProbes = 3

// Wakeup brings the modem to the Ready state. A modem that does not answer
// a probe is powered on with the power key, pulsed until the power status
// line reads high. In both cases the modem is then reset.
func (m *Modem) Wakeup(ctx context.Context) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	start := m.clock.Now()
	m.logger.Info("wakeup")

	_ = m.ExecOK(ctx, at.CmdProbe, 0)
	if err := m.ExecOK(ctx, at.CmdProbe, wakeupTimeout); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.logger.Info("modem silent, using power key", "err", err)
		m.setState(StateBooting)
		if err := m.powerOn(ctx); err != nil {
			m.setState(StateOff)
			return fmt.Errorf("power on: %w", err)
		}
	} else {
		m.logger.Info("modem already awake")
	}

	err := m.Reset(ctx)
	m.metrics.RecordSequence("wakeup", m.clock.Now().Sub(start), err)
	return err
}

// powerOn pulses the power key until the power status line reads high.
func (m *Modem) powerOn(ctx context.Context) error {
	for {
		if err := m.pulse(ctx, PinPowerKey, powerKeyPre, powerKeyPulse); err != nil {
			return err
		}
		if err := m.clock.Sleep(ctx, powerKeySettle); err != nil {
			return err
		}
		level, err := m.pins.Read(PinPowerStatus)
		if err != nil {
			return fmt.Errorf("read %s: %w", PinPowerStatus, err)
		}
		if level == High {
			return nil
		}
		m.logger.Debug("power status still low")
	}
}

// pulse drives pin high for pre, low for width, then releases it high.
func (m *Modem) pulse(ctx context.Context, pin Pin, pre, width time.Duration) error {
	if err := m.pins.Set(pin, High); err != nil {
		return fmt.Errorf("set %s: %w", pin, err)
	}
	if err := m.clock.Sleep(ctx, pre); err != nil {
		return err
	}
	if err := m.pins.Set(pin, Low); err != nil {
		return fmt.Errorf("set %s: %w", pin, err)
	}
	if err := m.clock.Sleep(ctx, width); err != nil {
		return err
	}
	if err := m.pins.Set(pin, High); err != nil {
		return fmt.Errorf("set %s: %w", pin, err)
	}
	return nil
}

// Reset resets the modem at the session speed.
func (m *Modem) Reset(ctx context.Context) error {
	return m.ResetSpeed(ctx, m.session.Speed)
}

// ResetSpeed switches the link to baud, pulses the reset line and brings the
// command interface to a known state: echo off, no flow control, no call
// ready notice. Only disabling the echo is required to succeed.
func (m *Modem) ResetSpeed(ctx context.Context, baud int) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	m.setState(StateBooting)

	if err := m.link.setSpeed(baud); err != nil {
		m.setState(StateOff)
		return fmt.Errorf("set speed: %w", err)
	}
	m.session.Speed = baud

	if err := m.pulse(ctx, PinReset, resetPrePulse, resetPulse); err != nil {
		m.setState(StateOff)
		return fmt.Errorf("reset pulse: %w", err)
	}
	if err := m.clock.Sleep(ctx, resetSettle); err != nil {
		return err
	}
	if err := m.link.flush(ctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	for range bannerProbes {
		_ = m.ExecOK(ctx, at.CmdProbe, 0)
	}
	echoErr := m.ExecOK(ctx, at.CmdEchoOff, 0)

	if err := m.ExecOK(ctx, at.CmdNoFlowControl, 0); err != nil {
		m.logger.Warn("disable flow control", "err", err)
	}
	if err := m.ExecOK(ctx, at.CmdNoCallReady, 0); err != nil {
		m.logger.Warn("disable call ready notice", "err", err)
	}
	if err := m.link.flush(ctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	if echoErr != nil {
		m.setState(StateOff)
		return fmt.Errorf("disable echo: %w", echoErr)
	}
	m.setState(StateReady)
	m.logger.Info("modem ready", "speed", baud)
	return nil
}

// Shutdown detaches from packet data and powers the modem down, first with
// AT+CPOWD and, if the modem does not confirm, by holding the power key. It
// only fails when ctx ends or the modem was closed.
func (m *Modem) Shutdown(ctx context.Context) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	m.setState(StateShuttingDown)
	m.logger.Info("shutdown")

	if err := m.DisableGPRS(ctx); err != nil {
		m.logger.Debug("detach before shutdown", "err", err)
	}

	err := m.Exec(ctx, at.CmdPowerDown, at.NormalPowerDown, powerDownTimeout)
	if err == nil {
		m.setState(StateOff)
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	level, perr := m.pins.Read(PinPowerStatus)
	switch {
	case perr != nil:
		m.logger.Warn("read power status", "err", perr)
	case level == Low:
		m.logger.Info("already shut down")
	default:
		m.logger.Warn("power down command failed, using power key", "err", err)
		if err := m.holdPowerKey(ctx); err != nil {
			return err
		}
	}

	m.setState(StateOff)
	return nil
}

// holdPowerKey keeps the power key low until the power status line drops or
// powerKeyHoldLimit passes, then releases it.
func (m *Modem) holdPowerKey(ctx context.Context) error {
	if err := m.pins.Set(PinPowerKey, Low); err != nil {
		m.logger.Warn("press power key", "err", err)
		return nil
	}
	deadline := m.clock.Now().Add(powerKeyHoldLimit)
	for m.clock.Now().Before(deadline) {
		if err := m.clock.Sleep(ctx, powerKeyPoll); err != nil {
			_ = m.pins.Set(PinPowerKey, High)
			return err
		}
		level, err := m.pins.Read(PinPowerStatus)
		if err != nil || level == Low {
			break
		}
	}
	if err := m.pins.Set(PinPowerKey, High); err != nil {
		m.logger.Warn("release power key", "err", err)
	}
	return nil
}
