package modem

import "fmt"

// Pin names one of the control lines wired to the modem.
type Pin int

const (
	PinReset Pin = iota
	PinPowerKey
	PinPowerStatus
)

func (p Pin) String() string {
	switch p {
	case PinReset:
		return "reset"
	case PinPowerKey:
		return "power-key"
	case PinPowerStatus:
		return "power-status"
	default:
		return fmt.Sprintf("pin(%d)", int(p))
	}
}

// Level is a digital pin state.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// Pins drives and samples the modem control lines.
type Pins interface {
	Set(pin Pin, level Level) error
	Read(pin Pin) (Level, error)
}

// NoPins is used when the control lines are not wired. Writes are ignored
// and the power status always reads high, so the modem is assumed powered.
type NoPins struct{}

func (NoPins) Set(Pin, Level) error { return nil }

func (NoPins) Read(Pin) (Level, error) { return High, nil }
