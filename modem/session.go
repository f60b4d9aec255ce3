package modem

import "i4.energy/across/sim800gw/at"

// Session is the mutable per-device state shared by the power, network and
// transfer operations of a Modem.
type Session struct {
	APN      string
	User     string
	Password string

	// Speed is the serial speed most recently applied by Reset.
	Speed int

	// LastURC is the most recent unsolicited result code seen by the line
	// reader, or at.NoURC.
	LastURC at.URC

	// Address is the local IP address reported while connecting the data
	// socket.
	Address string
}
