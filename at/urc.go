package at

import "strings"

// URC identifies an entry of the unsolicited result code table.
type URC int

// NoURC is the zero state of a session that has not seen any URC yet.
const NoURC URC = -1

const (
	URCIncomingData URC = iota
	URCPDPDeactivated
	URCUnderVoltagePowerDown
	URCUnderVoltageWarning
	URCOverVoltagePowerDown
	URCOverVoltageWarning
	URCSocketClosed
)

// urcPrefixes is ordered by URC value. The voltage warnings are spelled the
// way the firmware spells them.
var urcPrefixes = [...]string{
	URCIncomingData:          "+CIPRXGET: 1",
	URCPDPDeactivated:        "+PDP: DEACT",
	URCUnderVoltagePowerDown: "UNDER-VOLTAGE POWER DOWN",
	URCUnderVoltageWarning:   "UNDER-VOLTAGE WARNNING",
	URCOverVoltagePowerDown:  "OVER-VOLTAGE POWER DOWN",
	URCOverVoltageWarning:    "OVER-VOLTAGE WARNNING",
	URCSocketClosed:          "0, CLOSED",
}

var urcNames = [...]string{
	URCIncomingData:          "incoming-data",
	URCPDPDeactivated:        "pdp-deactivated",
	URCUnderVoltagePowerDown: "under-voltage-power-down",
	URCUnderVoltageWarning:   "under-voltage-warning",
	URCOverVoltagePowerDown:  "over-voltage-power-down",
	URCOverVoltageWarning:    "over-voltage-warning",
	URCSocketClosed:          "socket-closed",
}

// Prefix returns the literal the modem starts the URC line with.
func (u URC) Prefix() string {
	if u < 0 || int(u) >= len(urcPrefixes) {
		return ""
	}
	return urcPrefixes[u]
}

func (u URC) String() string {
	if u < 0 || int(u) >= len(urcNames) {
		return "none"
	}
	return urcNames[u]
}

// MatchURC reports which table entry, if any, the line starts with. The
// first entry in table order wins.
func MatchURC(line string) (URC, bool) {
	for i, prefix := range urcPrefixes {
		if strings.HasPrefix(line, prefix) {
			return URC(i), true
		}
	}
	return NoURC, false
}
