package at

const (
	// Terminal Control
	CRLF   = "\r\n"
	Prompt = '>'

	// Commands
	CmdAt         = "AT"
	CmdReset      = "AT+RST"
	CmdEchoOn     = "ATE1"
	CmdEchoOff    = "ATE0"
	CmdMode       = "AT+CWMODE="
	CmdJoin       = "AT+CWJAP="
	CmdQuit       = "AT+CWQAP"
	CmdLocalIP    = "AT+CIFSR"
	CmdStart      = "AT+CIPSTART="
	CmdSend       = "AT+CIPSEND="
	MaxSendLength = 2048

	// Response Codes
	OK       = "OK"
	Ready    = "ready"
	Fail     = "FAIL"
	NoChange = "no change"
	Linked   = "Linked"
	Unlink   = "Unlink"

	// Receive framing
	DataMarker  = "+IPD,"
	HeaderEnd   = "\r\n\r\n"
	ProtocolTCP = "TCP"
	ProtocolUDP = "UDP"
)

// Status is the terminal response reported by the module at the end of an
// exchange.
type Status int8

const (
	StatusUnknown Status = iota
	StatusOK
	StatusReady
	StatusFail
	StatusNoChange
	StatusLinked
	StatusUnlink
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return OK
	case StatusReady:
		return Ready
	case StatusFail:
		return Fail
	case StatusNoChange:
		return NoChange
	case StatusLinked:
		return Linked
	case StatusUnlink:
		return Unlink
	default:
		return "unknown"
	}
}

// statusTable lists the terminal responses in match priority order. When two
// literals complete on the same byte the earlier entry wins.
var statusTable = [...]struct {
	literal string
	status  Status
}{
	{OK, StatusOK},
	{Ready, StatusReady},
	{Fail, StatusFail},
	{NoChange, StatusNoChange},
	{Linked, StatusLinked},
	{Unlink, StatusUnlink},
}

// Responses recognizes every terminal response. It is built once and never
// mutated, so it is safe to share between goroutines.
var Responses = newResponses()

func newResponses() *Automaton {
	literals := make([]string, len(statusTable))
	for i, e := range statusTable {
		literals[i] = e.literal
	}
	return MustAutomaton(literals...)
}

// StatusOf maps a pattern index reported by a Matcher over Responses to its
// Status.
func StatusOf(idx int) Status {
	if idx < 0 || idx >= len(statusTable) {
		return StatusUnknown
	}
	return statusTable[idx].status
}
