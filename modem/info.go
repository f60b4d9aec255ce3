package modem

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"i4.energy/across/sim800gw/at"
)

// Unlock enters the SIM PIN.
func (m *Modem) Unlock(ctx context.Context, pin string) error {
	if err := checkArgument("pin", pin); err != nil {
		return fmt.Errorf("unlock sim: %w", err)
	}
	if err := m.ExecOK(ctx, fmt.Sprintf(at.CmdUnlock, pin), 0); err != nil {
		return fmt.Errorf("unlock sim: %w", err)
	}
	return nil
}

// Time returns the modem's real time clock.
func (m *Modem) Time(ctx context.Context) (time.Time, error) {
	fields, err := m.Query(ctx, at.CmdClock, at.PatClock, 0)
	if err != nil {
		return time.Time{}, fmt.Errorf("read clock: %w", err)
	}
	return parseClock(fields.String(0), fields.String(1), fields.String(2))
}

// parseClock converts the yy/MM/dd and hh:mm:ss fields of +CCLK and its
// zone offset, counted in quarter hours, into a time.
func parseClock(date, clock, zone string) (time.Time, error) {
	quarters, err := strconv.Atoi(zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("clock zone %q: %w", zone, err)
	}
	loc := time.FixedZone("", quarters*15*60)
	t, err := time.ParseInLocation("06/01/02 15:04:05", date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("clock %q %q: %w", date, clock, err)
	}
	return t, nil
}

// IMEI returns the device serial number.
func (m *Modem) IMEI(ctx context.Context) (string, error) {
	fields, err := m.Query(ctx, at.CmdIMEI, at.PatWord, 0)
	if err != nil {
		return "", fmt.Errorf("read imei: %w", err)
	}
	if err := m.Expect(ctx, at.OK, 0); err != nil {
		return "", fmt.Errorf("read imei: %w", err)
	}
	return fields.String(0), nil
}
