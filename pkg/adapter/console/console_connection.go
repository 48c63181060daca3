package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/simfs/internal/logger"
	"github.com/marmos91/simfs/internal/protocol/rpc"
	"github.com/marmos91/simfs/internal/ratelimiter"
	"github.com/marmos91/simfs/pkg/fault"
	"github.com/marmos91/simfs/pkg/namespace"
	"github.com/marmos91/simfs/pkg/notify"
	"github.com/marmos91/simfs/pkg/session"
)

var (
	// errGarbageArgs marks a call whose arguments could not be decoded
	errGarbageArgs = errors.New("garbage arguments")

	errProcUnavail = errors.New("procedure unavailable")
)

// connection serves one client. Replies and notifications share the socket,
// so every write goes through writeMu.
type connection struct {
	id      string
	server  *Adapter
	conn    net.Conn
	limiter *ratelimiter.RateLimiter

	writeMu sync.Mutex

	// subs holds one notification subscription per user authorized on this
	// connection, keyed by normalized user name
	subsMu sync.Mutex
	subs   map[string]*notify.Subscription
	pumps  sync.WaitGroup
}

func newConnection(server *Adapter, conn net.Conn) *connection {
	return &connection{
		id:      uuid.NewString(),
		server:  server,
		conn:    conn,
		limiter: ratelimiter.New(server.config.RateLimit.RequestsPerSecond, server.config.RateLimit.Burst),
		subs:    make(map[string]*notify.Subscription),
	}
}

// Serve handles requests until the client disconnects, a deadline expires,
// or ctx is cancelled. A panic in a handler closes only this connection.
func (c *connection) Serve(ctx context.Context) {
	clientAddr := c.conn.RemoteAddr().String()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in console connection %s from %s: %v", c.id, clientAddr, r)
		}
		c.unsubscribeAll()
		_ = c.conn.Close()
		c.pumps.Wait()
	}()

	logger.Debug("New console connection %s from %s", c.id, clientAddr)

	// Wake a read blocked waiting for the next request when ctx ends.
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Console connection %s closed due to context cancellation", c.id)
			return
		default:
		}

		if idle := c.server.config.Timeouts.Idle; idle > 0 {
			if err := c.conn.SetReadDeadline(time.Now().Add(idle)); err != nil {
				logger.Warn("Failed to set deadline for %s: %v", clientAddr, err)
			}
		}
		if ctx.Err() != nil {
			logger.Debug("Console connection %s closed due to context cancellation", c.id)
			return
		}

		if err := c.handleRequest(ctx); err != nil {
			var netErr net.Error
			switch {
			case errors.Is(err, io.EOF):
				logger.Debug("Console connection %s closed by client", c.id)
			case errors.As(err, &netErr) && netErr.Timeout():
				logger.Debug("Console connection %s timed out: %v", c.id, err)
			case errors.Is(err, context.Canceled):
				logger.Debug("Console connection %s cancelled", c.id)
			default:
				logger.Debug("Error handling request on %s: %v", c.id, err)
			}
			return
		}
	}
}

// handleRequest reads one call, dispatches it and writes the reply. A
// returned error closes the connection.
func (c *connection) handleRequest(ctx context.Context) error {
	message, err := rpc.ReadMessage(c.conn)
	if err != nil {
		return err
	}

	// The idle deadline covered the wait; the rest of the request gets the
	// read timeout.
	if read := c.server.config.Timeouts.Read; read > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(read)); err != nil {
			return fmt.Errorf("set read deadline: %w", err)
		}
	}

	header, body, err := rpc.ParseMessage(message)
	if err != nil {
		return fmt.Errorf("parse message: %w", err)
	}
	if header.MsgType != rpc.MsgCall {
		return fmt.Errorf("expected CALL, got message type %d", header.MsgType)
	}

	logger.Debug("Console call on %s: XID=0x%x procedure=%s", c.id, header.XID, rpc.ProcedureName(header.Procedure))

	if header.Version != rpc.Version {
		return c.sendReply(header, rpc.StatusVersionMismatch, nil)
	}

	if !c.limiter.Allow() {
		c.server.metrics.RecordRateLimited()
		logger.Debug("Console call XID=0x%x on %s rate limited", header.XID, c.id)
		return c.sendReply(header, rpc.StatusRateLimited, nil)
	}

	procedure := rpc.ProcedureName(header.Procedure)
	c.server.metrics.RecordRequestStart(procedure)
	start := time.Now()

	result, err := c.dispatch(ctx, header.Procedure, body)

	c.server.metrics.RecordRequestEnd(procedure)
	c.server.metrics.RecordRequest(procedure, time.Since(start), err)

	var flt *fault.Fault
	switch {
	case err == nil:
		return c.sendReply(header, rpc.StatusOK, result)
	case errors.Is(err, errProcUnavail):
		return c.sendReply(header, rpc.StatusProcUnavail, nil)
	case errors.Is(err, errGarbageArgs):
		return c.sendReply(header, rpc.StatusGarbageArgs, nil)
	case errors.As(err, &flt):
		return c.sendReply(header, rpc.StatusFault, &rpc.FaultBody{
			Code:        uint32(fault.CodeOf(err)),
			UserName:    flt.UserName,
			CommandLine: flt.CommandLine,
			Message:     flt.Message(),
		})
	default:
		return c.sendReply(header, rpc.StatusFault, &rpc.FaultBody{Message: err.Error()})
	}
}

func (c *connection) dispatch(ctx context.Context, procedure uint32, body []byte) (any, error) {
	svc := c.server.svc

	switch procedure {
	case rpc.ProcNull:
		return nil, nil

	case rpc.ProcAuthorize:
		var args rpc.AuthorizeArgs
		if err := rpc.DecodeBody(body, &args); err != nil {
			return nil, errGarbageArgs
		}
		res, err := svc.Authorize(ctx, args.UserName)
		if err != nil {
			return nil, err
		}
		c.subscribe(res.UserName)
		return &rpc.AuthorizeReply{
			UserName:   res.UserName,
			Token:      res.Token,
			TotalUsers: uint32(res.TotalUsers),
		}, nil

	case rpc.ProcDeauthorize:
		var args rpc.DeauthorizeArgs
		if err := rpc.DecodeBody(body, &args); err != nil {
			return nil, errGarbageArgs
		}
		name, err := svc.Deauthorize(ctx, args.UserName, session.Token(args.Token))
		if err != nil {
			return nil, err
		}
		c.unsubscribe(name)
		return &rpc.DeauthorizeReply{UserName: name}, nil

	case rpc.ProcExecute:
		var args rpc.ExecuteArgs
		if err := rpc.DecodeBody(body, &args); err != nil {
			return nil, errGarbageArgs
		}
		resp, err := svc.Execute(ctx, args.UserName, session.Token(args.Token), args.CommandLine)
		if err != nil {
			return nil, err
		}
		return &rpc.ExecuteReply{
			UserName:         resp.UserName,
			CurrentDirectory: resp.CurrentDirectory,
			CommandLine:      resp.CommandLine,
			Message:          resp.Message,
		}, nil

	case rpc.ProcHistory:
		var args rpc.HistoryArgs
		if err := rpc.DecodeBody(body, &args); err != nil {
			return nil, errGarbageArgs
		}
		entries, err := svc.History(ctx, args.UserName, session.Token(args.Token), int(args.Limit))
		if err != nil {
			return nil, err
		}
		reply := &rpc.HistoryReply{Entries: make([]rpc.HistoryEntry, 0, len(entries))}
		for _, e := range entries {
			reply.Entries = append(reply.Entries, rpc.HistoryEntry{
				Seq:         e.Seq,
				Time:        e.Time.UnixNano(),
				ID:          e.ID,
				UserName:    e.UserName,
				CommandLine: e.CommandLine,
				Message:     e.Message,
			})
		}
		return reply, nil
	}

	logger.Debug("Unknown console procedure: %d", procedure)
	return nil, errProcUnavail
}

// subscribe starts forwarding notifications for the session userName just
// opened on this connection.
func (c *connection) subscribe(userName string) {
	key := namespace.Normalize(userName)

	c.subsMu.Lock()
	defer c.subsMu.Unlock()

	// A previous subscription for this user was closed when the new session
	// was opened; drop it from the map.
	if old, ok := c.subs[key]; ok {
		c.server.svc.Unsubscribe(old)
	}
	sub := c.server.svc.Subscribe(userName, c.server.config.NotificationBuffer)
	c.subs[key] = sub

	c.pumps.Add(1)
	go c.pump(sub)
}

func (c *connection) unsubscribe(userName string) {
	key := namespace.Normalize(userName)

	c.subsMu.Lock()
	sub, ok := c.subs[key]
	delete(c.subs, key)
	c.subsMu.Unlock()

	if ok {
		c.server.svc.Unsubscribe(sub)
	}
}

func (c *connection) unsubscribeAll() {
	c.subsMu.Lock()
	subs := c.subs
	c.subs = make(map[string]*notify.Subscription)
	c.subsMu.Unlock()

	for _, sub := range subs {
		c.server.svc.Unsubscribe(sub)
	}
}

// pump writes notifications until the subscription is closed. A failed
// write is logged and the notification is lost.
func (c *connection) pump(sub *notify.Subscription) {
	defer c.pumps.Done()

	for n := range sub.C() {
		frame, err := rpc.MakeNotify(rpc.NotifyBody{UserName: n.UserName, CommandLine: n.CommandLine})
		if err != nil {
			logger.Warn("Failed to encode notification for %s: %v", sub.UserName, err)
			continue
		}
		if err := c.write(frame); err != nil {
			logger.Debug("Failed to push notification to %s on %s: %v", sub.UserName, c.id, err)
		}
	}
}

func (c *connection) sendReply(call *rpc.Header, status uint32, body any) error {
	frame, err := rpc.MakeReply(call.XID, call.Procedure, status, body)
	if err != nil {
		return fmt.Errorf("make reply: %w", err)
	}
	if err := c.write(frame); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}

	logger.Debug("Sent reply for XID=0x%x status=%d (%d bytes)", call.XID, status, len(frame))
	return nil
}

func (c *connection) write(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if w := c.server.config.Timeouts.Write; w > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(w)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}
	_, err := c.conn.Write(frame)
	return err
}
