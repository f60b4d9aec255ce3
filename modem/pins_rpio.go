package modem

import (
	"fmt"

	"github.com/stianeikeland/go-rpio/v4"
)

// RPIOPins drives the modem control lines from Raspberry Pi GPIO. Pin
// numbers are BCM numbers.
type RPIOPins struct {
	Reset       int
	PowerKey    int
	PowerStatus int
}

// OpenRPIOPins maps the GPIO memory and configures the directions of the
// three lines. The reset and power-key lines start high (released).
func OpenRPIOPins(reset, powerKey, powerStatus int) (*RPIOPins, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpio: %w", err)
	}

	p := &RPIOPins{Reset: reset, PowerKey: powerKey, PowerStatus: powerStatus}

	for _, n := range []int{reset, powerKey} {
		pin := rpio.Pin(n)
		pin.Output()
		pin.High()
	}
	rpio.Pin(powerStatus).Input()

	return p, nil
}

func (p *RPIOPins) line(pin Pin) (rpio.Pin, error) {
	switch pin {
	case PinReset:
		return rpio.Pin(p.Reset), nil
	case PinPowerKey:
		return rpio.Pin(p.PowerKey), nil
	case PinPowerStatus:
		return rpio.Pin(p.PowerStatus), nil
	}
	return 0, fmt.Errorf("unknown %s", pin)
}

func (p *RPIOPins) Set(pin Pin, level Level) error {
	line, err := p.line(pin)
	if err != nil {
		return err
	}
	if level == High {
		line.High()
	} else {
		line.Low()
	}
	return nil
}

func (p *RPIOPins) Read(pin Pin) (Level, error) {
	line, err := p.line(pin)
	if err != nil {
		return Low, err
	}
	return line.Read() == rpio.High, nil
}

// Close unmaps the GPIO memory.
func (p *RPIOPins) Close() error {
	return rpio.Close()
}
