package modem

import (
	"errors"
	"fmt"

	"i4.energy/across/sim800gw/at"
)

var (
	// ErrNoDialer is returned when a Modem is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the modem.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrNotInitialized is returned when an operation is attempted on a Modem
	// whose transport could not be established.
	ErrNotInitialized = errors.New("modem not initialized")

	// ErrAlreadyClosed is returned when Close is called on a Modem that has
	// already been closed, and by every operation after Close.
	ErrAlreadyClosed = errors.New("modem already closed")

	// ErrNoResponse is returned when no complete line arrived before the
	// deadline of a read.
	ErrNoResponse = errors.New("no response from modem")

	// ErrCommandFailed is matched by response errors whose line was a device
	// error result such as ERROR or +CME ERROR.
	ErrCommandFailed = errors.New("command failed")

	// ErrNotRegistered is returned when the modem did not report a home or
	// roaming registration within the allotted time.
	ErrNotRegistered = errors.New("not registered to network")

	// ErrNotAttached is returned when packet data attach was not observed
	// within the allotted time.
	ErrNotAttached = errors.New("not attached to packet data")

	// ErrNoAddress is returned when the modem kept answering ERROR to the
	// local address query until the connect timeout expired.
	ErrNoAddress = errors.New("no local address assigned")

	// ErrShortWrite is returned when the modem confirmed fewer bytes than
	// were sent on the data socket.
	ErrShortWrite = errors.New("short write")

	// ErrTransferStalled is returned by streaming HTTP reads when repeated
	// chunk reads make no progress.
	ErrTransferStalled = errors.New("transfer stalled")

	// ErrInvalidArgument is returned before anything is written when a
	// command or one of its quoted arguments would not fit on a single
	// command line.
	ErrInvalidArgument = errors.New("invalid command argument")
)

// ResponseError reports a line that was read but did not match what the
// caller expected.
type ResponseError struct {
	Expected string
	Got      string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("unexpected response: expected %q, got %q", e.Expected, e.Got)
}

// Is makes device error results match ErrCommandFailed.
func (e *ResponseError) Is(target error) bool {
	return target == ErrCommandFailed && at.IsError(e.Got)
}

// StepError identifies the failing step of a multi-step HTTP sequence.
type StepError struct {
	Code int
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("http %s failed (%d): %v", e.Step, e.Code, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// HTTP step codes.
const (
	CodeInit         = 1000
	CodePostAction   = 1001
	CodeDownload     = 1002
	CodeAction       = 1004
	CodeUpload       = 1005
	CodeActionResult = 1006
	CodeBearer       = 1101
	CodeUserAgent    = 1102
	CodeRedirect     = 1103
	CodeURL          = 1110
)

func stepError(code int, step string, err error) error {
	return &StepError{Code: code, Step: step, Err: err}
}
