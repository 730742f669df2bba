package esp_test

import (
	gomock "go.uber.org/mock/gomock"
	"i4.energy/across/espgw/esp"
)

type MockSequenceBuilder struct {
	transport *esp.MockTransport
	calls     []any
}

func NewMockSequence(transport *esp.MockTransport) *MockSequenceBuilder {
	return &MockSequenceBuilder{
		transport: transport,
		calls:     []any{},
	}
}

// Exchange expects cmd to be written and answers it with resp in a single
// read.
func (b *MockSequenceBuilder) Exchange(cmd, resp string) *MockSequenceBuilder {
	wire := cmd + "\r\n"
	b.calls = append(b.calls,
		b.transport.EXPECT().Write([]byte(wire)).Return(len(wire), nil),
		b.transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			return copy(p, resp), nil
		}),
	)
	return b
}

// Output answers the next read with resp without a preceding write.
func (b *MockSequenceBuilder) Output(resp string) *MockSequenceBuilder {
	b.calls = append(b.calls,
		b.transport.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			return copy(p, resp), nil
		}),
	)
	return b
}

func (b *MockSequenceBuilder) AT() *MockSequenceBuilder {
	return b.Exchange("AT", "AT\r\r\n\r\nOK\r\n")
}

func (b *MockSequenceBuilder) EchoOff() *MockSequenceBuilder {
	return b.Exchange("ATE0", "ATE0\r\r\n\r\nOK\r\n")
}

func (b *MockSequenceBuilder) EchoOn() *MockSequenceBuilder {
	return b.Exchange("ATE1", "ATE1\r\r\n\r\nOK\r\n")
}

func (b *MockSequenceBuilder) Reset() *MockSequenceBuilder {
	return b.
		Exchange("AT+RST", "AT+RST\r\r\n\r\nOK\r\n").
		Output("\r\n ets Jan  8 2013,rst cause:4, boot mode:(3,7)\r\n\r\nwdt reset\r\n[Vendor:www.ai-thinker.com Version:0.9.2.4]\r\n\r\nready\r\n")
}

func (b *MockSequenceBuilder) Mode(digit string) *MockSequenceBuilder {
	return b.Exchange("AT+CWMODE="+digit, "no change\r\n")
}

func (b *MockSequenceBuilder) Build() []any {
	return b.calls
}

// initMockCalls is the exchange sequence of New with the default
// configuration.
func initMockCalls(transport *esp.MockTransport) []any {
	return NewMockSequence(transport).AT().EchoOff().Build()
}
