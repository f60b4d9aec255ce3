package modem

import (
	"context"
	"fmt"
	"strings"
	"time"

	"i4.energy/across/sim800gw/at"
)

// Send writes one command line. The AT prefix is added here; the command
// text is echoed by the modem and drained before the line terminator is
// written, so the next read starts at the modem's reply.
func (m *Modem) Send(ctx context.Context, cmd string) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	shown := redact(cmd)
	if strings.ContainsAny(cmd, "\r\n") {
		return fmt.Errorf("send %q: %w", shown, ErrInvalidArgument)
	}
	m.logger.Debug("+++", "cmd", at.Prefix+shown)

	if err := m.link.write([]byte(at.Prefix + cmd)); err != nil {
		return fmt.Errorf("send %q: %w", shown, err)
	}
	if err := m.link.drain(ctx); err != nil {
		return fmt.Errorf("send %q: %w", shown, err)
	}
	if err := m.link.write([]byte(at.CRLF)); err != nil {
		return fmt.Errorf("send %q: %w", shown, err)
	}
	return nil
}

// Expect reads one line and compares it with expected.
func (m *Modem) Expect(ctx context.Context, expected string, timeout time.Duration) error {
	line, err := m.readLine(ctx, timeout)
	if err != nil {
		return err
	}
	if line != expected {
		return &ResponseError{Expected: expected, Got: line}
	}
	return nil
}

// Scan reads one line and extracts the values of pattern from it. Every
// placeholder of pattern must be filled.
func (m *Modem) Scan(ctx context.Context, pattern string, timeout time.Duration) (at.Fields, error) {
	line, err := m.readLine(ctx, timeout)
	if err != nil {
		return nil, err
	}
	fields, ok, err := at.Scan(line, pattern)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ResponseError{Expected: pattern, Got: line}
	}
	return fields, nil
}

// Exec sends cmd and expects the literal reply expected.
func (m *Modem) Exec(ctx context.Context, cmd, expected string, timeout time.Duration) error {
	err := m.Send(ctx, cmd)
	if err == nil {
		err = m.Expect(ctx, expected, timeout)
	}
	m.metrics.RecordCommand(verb(cmd), err)
	return err
}

// ExecOK sends cmd and expects OK.
func (m *Modem) ExecOK(ctx context.Context, cmd string, timeout time.Duration) error {
	return m.Exec(ctx, cmd, at.OK, timeout)
}

// Query sends cmd and scans the reply with pattern.
func (m *Modem) Query(ctx context.Context, cmd, pattern string, timeout time.Duration) (at.Fields, error) {
	err := m.Send(ctx, cmd)
	var fields at.Fields
	if err == nil {
		fields, err = m.Scan(ctx, pattern, timeout)
	}
	m.metrics.RecordCommand(verb(cmd), err)
	return fields, err
}

func (m *Modem) readLine(ctx context.Context, timeout time.Duration) (string, error) {
	if err := m.checkOpen(); err != nil {
		return "", err
	}
	if timeout <= 0 {
		timeout = m.config.ATTimeout
	}
	line, err := m.link.readLine(ctx, timeout)
	if err != nil {
		m.logger.Debug("---", "err", err)
		return "", err
	}
	m.logger.Debug("---", "line", line)
	return line, nil
}

// writeRaw sends payload bytes without prefix or terminator.
func (m *Modem) writeRaw(p []byte) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	return m.link.write(p)
}

// readRaw reads exactly len(p) payload bytes.
func (m *Modem) readRaw(ctx context.Context, p []byte, timeout time.Duration) (int, error) {
	if err := m.checkOpen(); err != nil {
		return 0, err
	}
	if timeout <= 0 {
		timeout = m.config.ATTimeout
	}
	return m.link.readFull(ctx, p, timeout)
}

// checkArgument rejects values that cannot be placed between the double
// quotes of a command argument.
func checkArgument(name, value string) error {
	for _, r := range value {
		if r == '"' || r < 0x20 || r == 0x7f {
			return fmt.Errorf("%s: %w", name, ErrInvalidArgument)
		}
	}
	return nil
}

// secretCommands are the command prefixes, up to the first argument, whose
// arguments are kept out of the log.
var secretCommands = []string{
	argumentPrefix(at.CmdUnlock),
	argumentPrefix(at.CmdBearerUser),
	argumentPrefix(at.CmdBearerPassword),
}

func argumentPrefix(format string) string {
	prefix, _, _ := strings.Cut(format, "%")
	return prefix
}

// redact hides the arguments of commands that carry secrets.
func redact(cmd string) string {
	for _, secret := range secretCommands {
		if strings.HasPrefix(cmd, secret) {
			return secret + "***"
		}
	}
	return cmd
}

// verb names a command for metrics: the text before any argument or query
// suffix.
func verb(cmd string) string {
	if cmd == "" {
		return "AT"
	}
	if i := strings.IndexAny(cmd, "=?"); i >= 0 {
		cmd = cmd[:i]
	}
	return cmd
}
