package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/marmos91/simfs/internal/protocol/rpc"
	"github.com/marmos91/simfs/pkg/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubServer answers calls on one end of a pipe with handler's reply.
type stubServer struct {
	conn    net.Conn
	handler func(h *rpc.Header, body []byte) (status uint32, reply any)
}

func (s *stubServer) serve(t *testing.T) {
	for {
		message, err := rpc.ReadMessage(s.conn)
		if err != nil {
			return
		}
		h, body, err := rpc.ParseMessage(message)
		if !assert.NoError(t, err) {
			return
		}
		status, reply := s.handler(h, body)
		frame, err := rpc.MakeReply(h.XID, h.Procedure, status, reply)
		if !assert.NoError(t, err) {
			return
		}
		if _, err := s.conn.Write(frame); err != nil {
			return
		}
	}
}

func newPipeClient(t *testing.T, handler func(h *rpc.Header, body []byte) (uint32, any)) (*Client, net.Conn) {
	t.Helper()
	clientConn, serverConn := net.Pipe()
	srv := &stubServer{conn: serverConn, handler: handler}
	go srv.serve(t)

	c := newClient(clientConn)
	t.Cleanup(func() {
		_ = c.Close()
		_ = serverConn.Close()
	})
	return c, serverConn
}

func TestExecuteDecodesReply(t *testing.T) {
	c, _ := newPipeClient(t, func(h *rpc.Header, body []byte) (uint32, any) {
		var args rpc.ExecuteArgs
		assert.NoError(t, rpc.DecodeBody(body, &args))
		return rpc.StatusOK, &rpc.ExecuteReply{
			UserName:         args.UserName,
			CurrentDirectory: `C:\`,
			CommandLine:      args.CommandLine,
			Message:          "ok",
		}
	})

	res, err := c.Execute(context.Background(), &Session{UserName: "alice", Token: []byte{1}}, "PRINT")
	require.NoError(t, err)
	assert.Equal(t, &Result{UserName: "alice", CurrentDirectory: `C:\`, CommandLine: "PRINT", Message: "ok"}, res)
}

func TestFaultReplyBecomesFault(t *testing.T) {
	c, _ := newPipeClient(t, func(h *rpc.Header, body []byte) (uint32, any) {
		return rpc.StatusFault, &rpc.FaultBody{
			Code:        uint32(fault.ErrLockConflict),
			UserName:    "alice",
			CommandLine: `DEL C:\f`,
			Message:     "file is locked",
		}
	})

	_, err := c.Execute(context.Background(), &Session{UserName: "alice"}, `DEL C:\f`)
	require.Error(t, err)

	var flt *fault.Fault
	require.ErrorAs(t, err, &flt)
	assert.Equal(t, "alice", flt.UserName)
	assert.Equal(t, `DEL C:\f`, flt.CommandLine)
	assert.True(t, fault.Is(err, fault.ErrLockConflict))
}

func TestNonFaultStatuses(t *testing.T) {
	statuses := map[uint32]string{
		rpc.StatusProcUnavail:     "unavailable",
		rpc.StatusGarbageArgs:     "could not decode",
		rpc.StatusRateLimited:     "rate limited",
		rpc.StatusVersionMismatch: "protocol version",
	}
	for status, want := range statuses {
		c, _ := newPipeClient(t, func(*rpc.Header, []byte) (uint32, any) {
			return status, nil
		})
		err := c.Ping(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), want)
	}
}

func TestNotificationsAreRouted(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	c := newClient(clientConn)
	defer c.Close()

	frame, err := rpc.MakeNotify(rpc.NotifyBody{UserName: "bob", CommandLine: `MD C:\x`})
	require.NoError(t, err)
	go func() { _, _ = serverConn.Write(frame) }()

	select {
	case n := <-c.Notifications():
		assert.Equal(t, Notification{UserName: "bob", CommandLine: `MD C:\x`}, n)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}

	require.NoError(t, serverConn.Close())
	_, ok := <-c.Notifications()
	assert.False(t, ok, "channel closes with the connection")
}

func TestPendingCallsFailWhenConnectionDrops(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	c := newClient(clientConn)
	defer c.Close()

	go func() {
		// Swallow the call, then hang up without replying.
		_, _ = rpc.ReadMessage(serverConn)
		_ = serverConn.Close()
	}()

	err := c.Ping(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	err = c.Ping(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCallHonorsContext(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	c := newClient(clientConn)
	defer c.Close()
	defer serverConn.Close()

	go func() { _, _ = rpc.ReadMessage(serverConn) }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.Ping(ctx), context.DeadlineExceeded)
}
