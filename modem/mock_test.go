package modem_test

import (
	gomock "go.uber.org/mock/gomock"

	"i4.energy/across/sim800gw/at"
	"i4.energy/across/sim800gw/modem"
)

// MockSequenceBuilder scripts a MockTransport for the command cycle of the
// dispatcher: the command text is written, the echo drain finds nothing,
// the terminator is written and the reply is read.
type MockSequenceBuilder struct {
	transport *modem.MockTransport
	calls     []any
}

func NewMockSequence(transport *modem.MockTransport) *MockSequenceBuilder {
	return &MockSequenceBuilder{
		transport: transport,
		calls:     []any{},
	}
}

// Command expects cmd and answers with a single reply line.
func (b *MockSequenceBuilder) Command(cmd, reply string) *MockSequenceBuilder {
	wire := at.Prefix + cmd
	b.calls = append(b.calls,
		b.transport.EXPECT().Write([]byte(wire)).Return(len(wire), nil),
		b.transport.EXPECT().Read(gomock.Any()).Return(0, nil),
		b.transport.EXPECT().Write([]byte(at.CRLF)).Return(len(at.CRLF), nil),
		b.transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			resp := at.CRLF + reply + at.CRLF
			return copy(p, resp), nil
		}),
	)
	return b
}

func (b *MockSequenceBuilder) AT() *MockSequenceBuilder {
	return b.Command(at.CmdProbe, at.OK)
}

func (b *MockSequenceBuilder) EchoOff() *MockSequenceBuilder {
	return b.Command(at.CmdEchoOff, at.OK)
}

func (b *MockSequenceBuilder) NoFlowControl() *MockSequenceBuilder {
	return b.Command(at.CmdNoFlowControl, at.OK)
}

func (b *MockSequenceBuilder) NoCallReady() *MockSequenceBuilder {
	return b.Command(at.CmdNoCallReady, at.OK)
}

// Quiet expects one read that finds no input.
func (b *MockSequenceBuilder) Quiet() *MockSequenceBuilder {
	b.calls = append(b.calls,
		b.transport.EXPECT().Read(gomock.Any()).Return(0, nil),
	)
	return b
}

func (b *MockSequenceBuilder) Build() []any {
	return b.calls
}
