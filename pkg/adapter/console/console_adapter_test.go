package console_test

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/marmos91/simfs/pkg/adapter/console"
	"github.com/marmos91/simfs/pkg/client"
	"github.com/marmos91/simfs/pkg/fault"
	"github.com/marmos91/simfs/pkg/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startAdapter serves a fresh service on an ephemeral port and returns the
// adapter with a cancel func that stops it.
func startAdapter(t *testing.T, cfg console.Config) (*console.Adapter, context.CancelFunc, <-chan error) {
	t.Helper()
	return startAdapterWithService(t, cfg, service.Config{RootName: "MyFS"})
}

func startAdapterWithService(t *testing.T, cfg console.Config, svcCfg service.Config) (*console.Adapter, context.CancelFunc, <-chan error) {
	t.Helper()

	svc, err := service.New(svcCfg)
	require.NoError(t, err)

	adapter := console.New(cfg, nil)
	adapter.SetService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- adapter.Serve(ctx)
	}()

	select {
	case <-adapter.Ready():
	case err := <-errCh:
		cancel()
		t.Fatalf("adapter failed to start: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("adapter did not become ready")
	}

	t.Cleanup(cancel)
	return adapter, cancel, errCh
}

func addr(a *console.Adapter) string {
	return fmt.Sprintf("127.0.0.1:%d", a.Port())
}

func dial(t *testing.T, a *console.Adapter) *client.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := client.Dial(ctx, addr(a))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNewAppliesDefaults(t *testing.T) {
	a := console.New(console.Config{}, nil)
	assert.Equal(t, "console", a.Protocol())
	assert.Equal(t, 0, a.Port())
}

func TestNewPanicsOnInvalidConfig(t *testing.T) {
	assert.Panics(t, func() {
		console.New(console.Config{Port: 70000}, nil)
	})
	assert.Panics(t, func() {
		console.New(console.Config{MaxConnections: -1}, nil)
	})
}

func TestServeRequiresService(t *testing.T) {
	a := console.New(console.Config{}, nil)
	assert.Error(t, a.Serve(context.Background()))
}

func TestRoundTrip(t *testing.T) {
	a, _, _ := startAdapter(t, console.Config{})
	c := dial(t, a)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))

	s, err := c.Authorize(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", s.UserName)
	assert.Len(t, s.Token, 64)
	assert.Equal(t, 1, s.TotalUsers)

	res, err := c.Execute(ctx, s, `MD C:\Docs`)
	require.NoError(t, err)
	assert.Equal(t, `Directory C:\Docs created`, res.Message)

	res, err = c.Execute(ctx, s, `CD Docs`)
	require.NoError(t, err)
	assert.Equal(t, `C:\Docs`, res.CurrentDirectory)

	res, err = c.Execute(ctx, s, "PRINT")
	require.NoError(t, err)
	assert.Equal(t, "C:\n|_ Docs [DIR]", res.Message)

	_, err = c.Execute(ctx, s, "FROB x")
	require.Error(t, err)
	var flt *fault.Fault
	require.ErrorAs(t, err, &flt)
	assert.Equal(t, "alice", flt.UserName)
	assert.Equal(t, "FROB x", flt.CommandLine)
	assert.True(t, fault.Is(err, fault.ErrProtocol))

	require.NoError(t, c.Deauthorize(ctx, s))

	_, err = c.Execute(ctx, s, "PRINT")
	assert.True(t, fault.Is(err, fault.ErrAuthFailure))
}

func TestBadTokenIsAuthFailure(t *testing.T) {
	a, _, _ := startAdapter(t, console.Config{})
	c := dial(t, a)
	ctx := context.Background()

	s, err := c.Authorize(ctx, "alice")
	require.NoError(t, err)

	forged := &client.Session{UserName: s.UserName, Token: make([]byte, 64)}
	_, err = c.Execute(ctx, forged, "PRINT")
	assert.True(t, fault.Is(err, fault.ErrAuthFailure))

	_, err = c.Authorize(ctx, "ALICE")
	assert.True(t, fault.Is(err, fault.ErrAuthFailure), "user is already connected")
}

func TestNotificationsReachOtherConnections(t *testing.T) {
	a, _, _ := startAdapter(t, console.Config{})
	ctx := context.Background()

	alice := dial(t, a)
	bob := dial(t, a)

	as, err := alice.Authorize(ctx, "alice")
	require.NoError(t, err)
	_, err = bob.Authorize(ctx, "bob")
	require.NoError(t, err)

	_, err = alice.Execute(ctx, as, `MF C:\notes.txt`)
	require.NoError(t, err)

	select {
	case n := <-bob.Notifications():
		assert.Equal(t, "alice", n.UserName)
		assert.Equal(t, `MF C:\notes.txt`, n.CommandLine)
	case <-time.After(5 * time.Second):
		t.Fatal("bob was not notified")
	}

	select {
	case n := <-alice.Notifications():
		t.Fatalf("sender should not be notified, got %+v", n)
	case <-time.After(100 * time.Millisecond):
	}
}

func expectNotification(t *testing.T, c *client.Client, from, line string) {
	t.Helper()
	select {
	case n := <-c.Notifications():
		assert.Equal(t, client.Notification{UserName: from, CommandLine: line}, n)
	case <-time.After(2 * time.Second):
		t.Fatalf("no notification for %s: %q", from, line)
	}
}

func expectSilence(t *testing.T, c *client.Client) {
	t.Helper()
	select {
	case n, ok := <-c.Notifications():
		if ok {
			t.Fatalf("unexpected notification %+v", n)
		}
	case <-time.After(300 * time.Millisecond):
	}
}

func TestReplacedSessionStopsNotifications(t *testing.T) {
	a, _, _ := startAdapterWithService(t, console.Config{}, service.Config{
		RootName:       "MyFS",
		SessionTimeout: 200 * time.Millisecond,
	})
	ctx := context.Background()

	stale := dial(t, a)
	_, err := stale.Authorize(ctx, "alice")
	require.NoError(t, err)

	time.Sleep(400 * time.Millisecond)

	fresh := dial(t, a)
	_, err = fresh.Authorize(ctx, "alice")
	require.NoError(t, err)

	other := dial(t, a)
	bob, err := other.Authorize(ctx, "bob")
	require.NoError(t, err)

	_, err = other.Execute(ctx, bob, `MD C:\Secret`)
	require.NoError(t, err)

	expectNotification(t, fresh, "bob", `MD C:\Secret`)
	expectSilence(t, stale)
}

func TestDeauthorizeStopsNotificationsOnEveryConnection(t *testing.T) {
	a, _, _ := startAdapter(t, console.Config{})
	ctx := context.Background()

	first := dial(t, a)
	alice, err := first.Authorize(ctx, "alice")
	require.NoError(t, err)

	// The same session closed from another connection.
	second := dial(t, a)
	require.NoError(t, second.Deauthorize(ctx, alice))

	other := dial(t, a)
	bob, err := other.Authorize(ctx, "bob")
	require.NoError(t, err)
	_, err = other.Execute(ctx, bob, `MD C:\Later`)
	require.NoError(t, err)

	expectSilence(t, first)

	// Authorizing again on the first connection resumes delivery.
	_, err = first.Authorize(ctx, "alice")
	require.NoError(t, err)
	_, err = other.Execute(ctx, bob, `MD C:\Again`)
	require.NoError(t, err)
	expectNotification(t, first, "bob", `MD C:\Again`)
}

func TestHistory(t *testing.T) {
	a, _, _ := startAdapter(t, console.Config{})
	c := dial(t, a)
	ctx := context.Background()

	s, err := c.Authorize(ctx, "alice")
	require.NoError(t, err)

	// Without a journal the history is empty.
	entries, err := c.History(ctx, s, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRateLimit(t *testing.T) {
	a, _, _ := startAdapter(t, console.Config{
		RateLimit: console.RateLimitConfig{RequestsPerSecond: 1, Burst: 1},
	})
	c := dial(t, a)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))
	err := c.Ping(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestGracefulShutdown(t *testing.T) {
	a, cancel, errCh := startAdapter(t, console.Config{ShutdownTimeout: 2 * time.Second})

	c := dial(t, a)
	require.NoError(t, c.Ping(context.Background()))

	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}

	_, err := net.DialTimeout("tcp", addr(a), 200*time.Millisecond)
	assert.Error(t, err, "listener should be closed")
}

func TestStopClosesIdleConnections(t *testing.T) {
	a, _, _ := startAdapter(t, console.Config{})

	conn, err := net.Dial("tcp", addr(a))
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return a.GetActiveConnections() == 1
	}, 2*time.Second, 10*time.Millisecond)

	// The connection is idle, waiting for its first request.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, a.Stop(ctx))

	require.Eventually(t, func() bool {
		return a.GetActiveConnections() == 0
	}, 3*time.Second, 10*time.Millisecond)
}

func TestConnectionLimit(t *testing.T) {
	a, _, _ := startAdapter(t, console.Config{MaxConnections: 1})
	ctx := context.Background()

	first := dial(t, a)
	require.NoError(t, first.Ping(ctx))

	// The second connection is accepted by the kernel but not served until
	// the first one closes.
	second := dial(t, a)
	pingCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	assert.Error(t, second.Ping(pingCtx))

	require.NoError(t, first.Close())

	require.Eventually(t, func() bool {
		pctx, pcancel := context.WithTimeout(ctx, 200*time.Millisecond)
		defer pcancel()
		return second.Ping(pctx) == nil
	}, 3*time.Second, 50*time.Millisecond)
}
