package rpc

// Header starts every message.
type Header struct {
	XID       uint32
	MsgType   uint32
	Version   uint32
	Procedure uint32
	Status    uint32 // replies only; 0 in calls and notifications
}

// FaultBody is the body of a StatusFault reply.
type FaultBody struct {
	Code        uint32
	UserName    string
	CommandLine string
	Message     string
}

type AuthorizeArgs struct {
	UserName string
}

type AuthorizeReply struct {
	UserName   string
	Token      []byte `xdr:"opaque"`
	TotalUsers uint32
}

type DeauthorizeArgs struct {
	UserName string
	Token    []byte `xdr:"opaque"`
}

type DeauthorizeReply struct {
	UserName string
}

type ExecuteArgs struct {
	UserName    string
	Token       []byte `xdr:"opaque"`
	CommandLine string
}

type ExecuteReply struct {
	UserName         string
	CurrentDirectory string
	CommandLine      string
	Message          string
}

type HistoryArgs struct {
	UserName string
	Token    []byte `xdr:"opaque"`
	Limit    uint32
}

// HistoryEntry is one journaled command. Time is Unix nanoseconds.
type HistoryEntry struct {
	Seq         uint64
	Time        int64
	ID          string
	UserName    string
	CommandLine string
	Message     string
}

type HistoryReply struct {
	Entries []HistoryEntry
}

// NotifyBody is the body of a MsgNotify message.
type NotifyBody struct {
	UserName    string
	CommandLine string
}
