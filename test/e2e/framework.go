package e2e

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/simfs/internal/logger"
	"github.com/marmos91/simfs/pkg/adapter/console"
	"github.com/marmos91/simfs/pkg/client"
	"github.com/marmos91/simfs/pkg/config"
	"github.com/marmos91/simfs/pkg/server"
	"github.com/marmos91/simfs/pkg/service"
)

// TestContext provides a complete testing environment with:
// - Running simfs server with a console adapter on an ephemeral port
// - Connected users
// - Cleanup mechanisms
type TestContext struct {
	T        *testing.T
	Config   *TestConfig
	Server   *server.Server
	Service  *service.Service
	Addr     string
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	serveErr error

	mu       sync.Mutex
	tempDirs []string
	users    []*User
}

// NewTestContext creates a new test environment with the specified
// configuration and starts the server.
func NewTestContext(t *testing.T, config *TestConfig) *TestContext {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())

	tc := &TestContext{
		T:      t,
		Config: config,
		ctx:    ctx,
		cancel: cancel,
	}

	tc.startServer()

	return tc
}

func (tc *TestContext) startServer() {
	tc.T.Helper()

	cfg := tc.Config.ServerConfig(tc)
	if err := config.Validate(cfg); err != nil {
		tc.T.Fatalf("Invalid test configuration: %v", err)
	}
	logger.SetLevel(cfg.Logging.Level)

	j, err := config.CreateJournal(tc.ctx, &cfg.Journal)
	if err != nil {
		tc.T.Fatalf("Failed to create journal: %v", err)
	}

	svc, err := config.CreateService(cfg, j, nil)
	if err != nil {
		tc.T.Fatalf("Failed to create service: %v", err)
	}
	tc.Service = svc

	tc.Server = server.New(svc, 5*time.Second)
	if j != nil {
		tc.Server.OnShutdown(j.Close)
	}

	adapters, err := config.CreateAdapters(cfg, nil)
	if err != nil {
		tc.T.Fatalf("Failed to create adapters: %v", err)
	}
	for _, a := range adapters {
		if err := tc.Server.AddAdapter(a); err != nil {
			tc.T.Fatalf("Failed to add adapter: %v", err)
		}
	}

	tc.wg.Add(1)
	go func() {
		defer tc.wg.Done()
		tc.serveErr = tc.Server.Serve(tc.ctx)
	}()

	consoleAdapter, ok := adapters[0].(*console.Adapter)
	if !ok {
		tc.T.Fatalf("Unexpected adapter type %T", adapters[0])
	}

	select {
	case <-consoleAdapter.Ready():
	case <-time.After(5 * time.Second):
		tc.T.Fatal("Timeout waiting for console adapter to start")
	}

	tc.Addr = fmt.Sprintf("127.0.0.1:%d", consoleAdapter.Port())
}

// Connect dials the server and authorizes userName.
func (tc *TestContext) Connect(userName string) *User {
	tc.T.Helper()

	u, err := tc.TryConnect(userName)
	if err != nil {
		tc.T.Fatalf("Failed to connect as %s: %v", userName, err)
	}
	return u
}

// TryConnect dials the server and authorizes userName, returning the
// authorization error instead of failing the test.
func (tc *TestContext) TryConnect(userName string) (*User, error) {
	tc.T.Helper()

	ctx, cancel := context.WithTimeout(tc.ctx, 5*time.Second)
	defer cancel()

	c, err := client.Dial(ctx, tc.Addr)
	if err != nil {
		return nil, err
	}

	s, err := c.Authorize(ctx, userName)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	u := &User{t: tc.T, ctx: tc.ctx, Client: c, Session: s}

	tc.mu.Lock()
	tc.users = append(tc.users, u)
	tc.mu.Unlock()

	return u, nil
}

// CreateTempDir creates a temporary directory removed on Cleanup.
func (tc *TestContext) CreateTempDir(prefix string) string {
	tc.T.Helper()

	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		tc.T.Fatalf("Failed to create temp directory: %v", err)
	}

	tc.mu.Lock()
	tc.tempDirs = append(tc.tempDirs, dir)
	tc.mu.Unlock()

	return dir
}

// GetConfig returns the test configuration
func (tc *TestContext) GetConfig() *TestConfig {
	return tc.Config
}

// Cleanup disconnects every user, stops the server and removes temporary
// directories.
func (tc *TestContext) Cleanup() {
	tc.T.Helper()

	tc.mu.Lock()
	users := tc.users
	tc.users = nil
	tc.mu.Unlock()

	for _, u := range users {
		_ = u.Client.Close()
	}

	tc.cancel()

	done := make(chan struct{})
	go func() {
		tc.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if tc.serveErr != nil {
			tc.T.Errorf("Server stopped with error: %v", tc.serveErr)
		}
	case <-time.After(10 * time.Second):
		tc.T.Error("Timeout waiting for server shutdown")
	}

	for _, dir := range tc.tempDirs {
		if err := os.RemoveAll(dir); err != nil {
			tc.T.Logf("Warning: failed to remove temp dir %s: %v", dir, err)
		}
	}
}
