// Package client is a Go client for the console protocol.
//
// A Client multiplexes calls over one TCP connection: replies are matched to
// calls by XID, and server pushes are delivered on Notifications.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/simfs/internal/logger"
	"github.com/marmos91/simfs/internal/protocol/rpc"
	"github.com/marmos91/simfs/pkg/fault"
)

// ErrClosed is returned by calls made after the connection is gone.
var ErrClosed = errors.New("client closed")

// notificationBuffer is the capacity of the Notifications channel. Pushes
// beyond it are dropped.
const notificationBuffer = 64

// Notification is a server push announcing another user's command.
type Notification struct {
	UserName    string
	CommandLine string
}

// Session holds the credentials returned by Authorize.
type Session struct {
	UserName   string
	Token      []byte
	TotalUsers int
}

// Result is the outcome of a successful Execute.
type Result struct {
	UserName         string
	CurrentDirectory string
	CommandLine      string
	Message          string
}

// HistoryEntry is one journaled command.
type HistoryEntry struct {
	Seq         uint64
	Time        time.Time
	ID          string
	UserName    string
	CommandLine string
	Message     string
}

type reply struct {
	header *rpc.Header
	body   []byte
}

// Client is a console protocol connection. It is safe for concurrent use.
type Client struct {
	conn net.Conn
	xid  atomic.Uint32

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uint32]chan reply
	err     error

	notifications chan Notification
	done          chan struct{}
}

// Dial connects to a console server at addr.
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return newClient(conn), nil
}

func newClient(conn net.Conn) *Client {
	c := &Client{
		conn:          conn,
		pending:       make(map[uint32]chan reply),
		notifications: make(chan Notification, notificationBuffer),
		done:          make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Notifications returns the channel of server pushes. It is closed when the
// connection ends.
func (c *Client) Notifications() <-chan Notification {
	return c.notifications
}

// Close closes the connection and fails pending calls.
func (c *Client) Close() error {
	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.notifications)

	var loopErr error
	for {
		message, err := rpc.ReadMessage(c.conn)
		if err != nil {
			loopErr = err
			break
		}

		header, body, err := rpc.ParseMessage(message)
		if err != nil {
			loopErr = err
			break
		}

		switch header.MsgType {
		case rpc.MsgNotify:
			var n rpc.NotifyBody
			if err := rpc.DecodeBody(body, &n); err != nil {
				logger.Debug("Discarding malformed notification: %v", err)
				continue
			}
			select {
			case c.notifications <- Notification{UserName: n.UserName, CommandLine: n.CommandLine}:
			default:
				logger.Debug("Dropping notification from %s: buffer full", n.UserName)
			}

		case rpc.MsgReply:
			c.mu.Lock()
			ch, ok := c.pending[header.XID]
			delete(c.pending, header.XID)
			c.mu.Unlock()
			if ok {
				ch <- reply{header: header, body: body}
			}
		}
	}

	c.mu.Lock()
	c.err = fmt.Errorf("%w: %v", ErrClosed, loopErr)
	for xid, ch := range c.pending {
		close(ch)
		delete(c.pending, xid)
	}
	c.mu.Unlock()
}

// call sends a request and waits for its reply, decoding the result into
// result when non-nil.
func (c *Client) call(ctx context.Context, procedure uint32, args any, result any) error {
	xid := c.xid.Add(1)
	ch := make(chan reply, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return err
	}
	c.pending[xid] = ch
	c.mu.Unlock()

	frame, err := rpc.MakeCall(xid, procedure, args)
	if err != nil {
		c.forget(xid)
		return err
	}

	c.writeMu.Lock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	} else {
		_ = c.conn.SetWriteDeadline(time.Time{})
	}
	_, err = c.conn.Write(frame)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(xid)
		return fmt.Errorf("write call: %w", err)
	}

	select {
	case <-ctx.Done():
		c.forget(xid)
		return ctx.Err()
	case r, ok := <-ch:
		if !ok {
			c.mu.Lock()
			defer c.mu.Unlock()
			return c.err
		}
		return decodeReply(r, result)
	}
}

func (c *Client) forget(xid uint32) {
	c.mu.Lock()
	delete(c.pending, xid)
	c.mu.Unlock()
}

func decodeReply(r reply, result any) error {
	switch r.header.Status {
	case rpc.StatusOK:
		if result == nil {
			return nil
		}
		return rpc.DecodeBody(r.body, result)

	case rpc.StatusFault:
		var body rpc.FaultBody
		if err := rpc.DecodeBody(r.body, &body); err != nil {
			return err
		}
		return &fault.Fault{
			UserName:    body.UserName,
			CommandLine: body.CommandLine,
			Err:         fault.New(fault.Code(body.Code), body.Message),
		}

	case rpc.StatusVersionMismatch:
		return fmt.Errorf("server does not support protocol version %d", rpc.Version)
	case rpc.StatusProcUnavail:
		return fmt.Errorf("procedure %s unavailable", rpc.ProcedureName(r.header.Procedure))
	case rpc.StatusGarbageArgs:
		return fmt.Errorf("server could not decode %s arguments", rpc.ProcedureName(r.header.Procedure))
	case rpc.StatusRateLimited:
		return fmt.Errorf("rate limited")
	default:
		return fmt.Errorf("unexpected reply status %d", r.header.Status)
	}
}

// Ping sends a NULL call.
func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, rpc.ProcNull, nil, nil)
}

// Authorize opens a session for userName.
func (c *Client) Authorize(ctx context.Context, userName string) (*Session, error) {
	var res rpc.AuthorizeReply
	if err := c.call(ctx, rpc.ProcAuthorize, &rpc.AuthorizeArgs{UserName: userName}, &res); err != nil {
		return nil, err
	}
	return &Session{UserName: res.UserName, Token: res.Token, TotalUsers: int(res.TotalUsers)}, nil
}

// Deauthorize closes the session.
func (c *Client) Deauthorize(ctx context.Context, s *Session) error {
	var res rpc.DeauthorizeReply
	return c.call(ctx, rpc.ProcDeauthorize, &rpc.DeauthorizeArgs{UserName: s.UserName, Token: s.Token}, &res)
}

// Execute runs a command line within the session.
func (c *Client) Execute(ctx context.Context, s *Session, commandLine string) (*Result, error) {
	var res rpc.ExecuteReply
	args := &rpc.ExecuteArgs{UserName: s.UserName, Token: s.Token, CommandLine: commandLine}
	if err := c.call(ctx, rpc.ProcExecute, args, &res); err != nil {
		return nil, err
	}
	return &Result{
		UserName:         res.UserName,
		CurrentDirectory: res.CurrentDirectory,
		CommandLine:      res.CommandLine,
		Message:          res.Message,
	}, nil
}

// History returns up to limit journaled commands, newest first. Zero means
// no limit.
func (c *Client) History(ctx context.Context, s *Session, limit int) ([]HistoryEntry, error) {
	var res rpc.HistoryReply
	args := &rpc.HistoryArgs{UserName: s.UserName, Token: s.Token, Limit: uint32(limit)}
	if err := c.call(ctx, rpc.ProcHistory, args, &res); err != nil {
		return nil, err
	}

	entries := make([]HistoryEntry, len(res.Entries))
	for i, e := range res.Entries {
		entries[i] = HistoryEntry{
			Seq:         e.Seq,
			Time:        time.Unix(0, e.Time),
			ID:          e.ID,
			UserName:    e.UserName,
			CommandLine: e.CommandLine,
			Message:     e.Message,
		}
	}
	return entries, nil
}
