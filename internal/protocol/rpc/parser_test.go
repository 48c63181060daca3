package rpc

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallRoundTrip(t *testing.T) {
	token := bytes.Repeat([]byte{0xAB}, 64)
	framed, err := MakeCall(7, ProcExecute, &ExecuteArgs{
		UserName:    "bob",
		Token:       token,
		CommandLine: `MD C:\A`,
	})
	require.NoError(t, err)

	message, err := ReadMessage(bytes.NewReader(framed))
	require.NoError(t, err)

	header, body, err := ParseMessage(message)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), header.XID)
	assert.Equal(t, uint32(MsgCall), header.MsgType)
	assert.Equal(t, uint32(Version), header.Version)
	assert.Equal(t, uint32(ProcExecute), header.Procedure)

	var args ExecuteArgs
	require.NoError(t, DecodeBody(body, &args))
	assert.Equal(t, "bob", args.UserName)
	assert.Equal(t, token, args.Token)
	assert.Equal(t, `MD C:\A`, args.CommandLine)
}

func TestReplyWithHistory(t *testing.T) {
	reply := &HistoryReply{Entries: []HistoryEntry{
		{Seq: 2, Time: 1700000000000000000, ID: "b", UserName: "bob", CommandLine: "MD B"},
		{Seq: 1, Time: 1600000000000000000, ID: "a", UserName: "alice", CommandLine: "MD A", Message: "ok"},
	}}
	framed, err := MakeReply(9, ProcHistory, StatusOK, reply)
	require.NoError(t, err)

	message, err := ReadMessage(bytes.NewReader(framed))
	require.NoError(t, err)
	header, body, err := ParseMessage(message)
	require.NoError(t, err)
	assert.Equal(t, uint32(MsgReply), header.MsgType)
	assert.Equal(t, uint32(StatusOK), header.Status)

	var got HistoryReply
	require.NoError(t, DecodeBody(body, &got))
	assert.Equal(t, *reply, got)
}

func TestNotify(t *testing.T) {
	framed, err := MakeNotify(NotifyBody{UserName: "bob", CommandLine: "DEL x"})
	require.NoError(t, err)

	message, err := ReadMessage(bytes.NewReader(framed))
	require.NoError(t, err)
	header, body, err := ParseMessage(message)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), header.XID)
	assert.Equal(t, uint32(MsgNotify), header.MsgType)

	var n NotifyBody
	require.NoError(t, DecodeBody(body, &n))
	assert.Equal(t, NotifyBody{UserName: "bob", CommandLine: "DEL x"}, n)
}

func TestReadMessageFragments(t *testing.T) {
	var stream bytes.Buffer
	writeFragment := func(data []byte, last bool) {
		word := uint32(len(data))
		if last {
			word |= lastFragment
		}
		var hdr [4]byte
		binary.BigEndian.PutUint32(hdr[:], word)
		stream.Write(hdr[:])
		stream.Write(data)
	}
	writeFragment([]byte("hello "), false)
	writeFragment([]byte("world"), true)

	message, err := ReadMessage(&stream)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(message))
}

func TestReadMessageRejectsOversize(t *testing.T) {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], lastFragment|(MaxMessageSize+1))
	_, err := ReadMessage(bytes.NewReader(hdr[:]))
	assert.Error(t, err)
}

func TestReadMessageTruncated(t *testing.T) {
	framed := Frame([]byte("abcdef"))
	_, err := ReadMessage(bytes.NewReader(framed[:6]))
	assert.Error(t, err)
}

func TestProcedureName(t *testing.T) {
	assert.Equal(t, "EXECUTE", ProcedureName(ProcExecute))
	assert.Equal(t, "UNKNOWN", ProcedureName(99))
}
