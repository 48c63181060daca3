package rpc

// Program identification. Version is checked on every call.
const (
	// Program is the program number of the console protocol ("SIMF")
	Program = 0x53494D46

	// Version is the only supported protocol version
	Version = 1
)

// Message types
const (
	// MsgCall is a client request
	MsgCall = 0

	// MsgReply answers a call with the same XID
	MsgReply = 1

	// MsgNotify is an unsolicited server push. Its XID is always 0.
	MsgNotify = 2
)

// Procedures
const (
	// ProcNull does nothing and is used as a ping
	ProcNull = 0

	ProcAuthorize   = 1
	ProcDeauthorize = 2
	ProcExecute     = 3
	ProcHistory     = 4

	// ProcNotify tags MsgNotify messages
	ProcNotify = 5
)

// Reply status
const (
	// StatusOK means the body holds the procedure result
	StatusOK = 0

	// StatusFault means the body holds a FaultBody
	StatusFault = 1

	// StatusVersionMismatch means the call carried an unsupported version
	StatusVersionMismatch = 2

	// StatusProcUnavail means the procedure number is unknown
	StatusProcUnavail = 3

	// StatusGarbageArgs means the arguments could not be decoded
	StatusGarbageArgs = 4

	// StatusRateLimited means the connection exceeded its request rate
	StatusRateLimited = 5
)

// MaxMessageSize bounds a reassembled message to prevent memory exhaustion.
const MaxMessageSize = 1 << 20

// lastFragment is the record-marking bit set on the final fragment.
const lastFragment = 0x80000000

// ProcedureName returns a short name for metrics and logs.
func ProcedureName(proc uint32) string {
	switch proc {
	case ProcNull:
		return "NULL"
	case ProcAuthorize:
		return "AUTHORIZE"
	case ProcDeauthorize:
		return "DEAUTHORIZE"
	case ProcExecute:
		return "EXECUTE"
	case ProcHistory:
		return "HISTORY"
	case ProcNotify:
		return "NOTIFY"
	default:
		return "UNKNOWN"
	}
}
