// Package at holds the SIM800 flavour of the AT command dialect: the command
// and response literals, the unsolicited result code table, line
// classification and pattern scanning of response lines.
//
// Every literal in this package is sent or compared byte-for-byte against
// the modem firmware.
package at

const (
	// Terminal Control
	CRLF   = "\r\n"
	Prompt = "> "
	Prefix = "AT"

	// Response Codes
	OK         = "OK"
	ERROR      = "ERROR"
	NoCarrier  = "NO CARRIER"
	NoDialtone = "NO DIALTONE"
	Busy       = "BUSY"
	NoAnswer   = "NO ANSWER"
	CmeError   = "+CME ERROR:"
	CmsError   = "+CMS ERROR:"

	ShutOK          = "SHUT OK"
	NormalPowerDown = "NORMAL POWER DOWN"
	Download        = "DOWNLOAD"
	ConnectOK       = "0, CONNECT OK"
	Connected       = "CONNECTED"
)

// Commands are written without the AT prefix; the dispatcher adds it.
const (
	CmdProbe          = ""
	CmdEchoOff        = "E0"
	CmdEchoOn         = "E1"
	CmdNoFlowControl  = "+IFC=0,0"
	CmdNoCallReady    = "+CIURC=0"
	CmdPowerDown      = "+CPOWD=1"
	CmdVerboseErrors  = "+CMEE=2"
	CmdUnlock         = "+CPIN=%s"
	CmdClock          = "+CCLK?"
	CmdIMEI           = "+GSN"
	CmdRegistration   = "+CREG?"
	CmdIPShutdown     = "+CIPSHUT"
	CmdMultiplex      = "+CIPMUX=1"
	CmdManualReceive  = "+CIPRXGET=1"
	CmdAttach         = "+CGATT=1"
	CmdDetach         = "+CGATT=0"
	CmdAttachStatus   = "+CGATT?"
	CmdBearerGPRS     = `+SAPBR=3,1,"CONTYPE","GPRS"`
	CmdBearerAPN      = `+SAPBR=3,1,"APN","%s"`
	CmdBearerUser     = `+SAPBR=3,1,"USER","%s"`
	CmdBearerPassword = `+SAPBR=3,1,"PWD","%s"`
	CmdBearerOpen     = "+SAPBR=1,1"
	CmdBearerClose    = "+SAPBR=0,1"

	CmdHTTPTerm     = "+HTTPTERM"
	CmdHTTPInit     = "+HTTPINIT"
	CmdHTTPCID      = `+HTTPPARA="CID",1`
	CmdHTTPUA       = `+HTTPPARA="UA","UBIRCH#1"`
	CmdHTTPRedirect = `+HTTPPARA="REDIR",1`
	CmdHTTPURL      = `+HTTPPARA="URL","%s"`
	CmdHTTPAction   = "+HTTPACTION=%d"
	CmdHTTPRead     = "+HTTPREAD=%d,%d"
	CmdHTTPData     = "+HTTPDATA=%d,%d"

	CmdQueuedSend   = "+CIPQSEND=1"
	CmdTaskAPN      = `+CSTT="%s"`
	CmdBringUp      = "+CIICR"
	CmdLocalAddress = "+CIFSR"
	CmdStart        = `+CIPSTART=0,"TCP","%s","%d"`
	CmdSocketStatus = "+CIPSTATUS=0"
	CmdClose        = "+CIPCLOSE=0"
	CmdSend         = "+CIPSEND=0,%d"
	CmdReceive      = "+CIPRXGET=2,0,%d"
)

// Scan patterns for the response lines of the commands above.
const (
	PatRegistration = "+CREG: 0,%d"
	PatAttachStatus = "+CGATT: %d"
	PatHTTPGet      = "+HTTPACTION: 0,%d,%d"
	PatHTTPPost     = "+HTTPACTION: 1,%d,%d"
	PatHTTPRead     = "+HTTPREAD: %d"
	PatWord         = "%s"
	PatClock        = `+CCLK: "%8s,%8s%3s"`
	PatSocketStatus = "+CIPSTATUS: %s"
	PatAccepted     = "DATA ACCEPT: 0,%d"
	PatReceive      = "+CIPRXGET: 2,%d,%d,%d"
)

// HTTP action method codes.
const (
	MethodGet  = 0
	MethodPost = 1
)

// Network registration states reported by +CREG.
const (
	RegNotRegistered = 0
	RegHome          = 1
	RegSearching     = 2
	RegDenied        = 3
	RegUnknown       = 4
	RegRoaming       = 5
)

type ResponseType int

const (
	TypeFinal  ResponseType = iota // OK, ERROR
	TypeURC                        // Asynchronous notifications
	TypeData                       // Intermediate command output (+CREG: ...)
	TypePrompt                     // Data input prompt
)
