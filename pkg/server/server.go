package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/simfs/internal/logger"
	"github.com/marmos91/simfs/pkg/adapter"
	"github.com/marmos91/simfs/pkg/metrics"
	"github.com/marmos91/simfs/pkg/service"
)

// DefaultShutdownTimeout bounds adapter shutdown when none is configured.
const DefaultShutdownTimeout = 30 * time.Second

// Server manages the lifecycle of the protocol adapters that front one
// shared service, plus the optional metrics HTTP server.
//
// Lifecycle:
//  1. Creation: New() with the service
//  2. Registration: AddAdapter() for each transport
//  3. Startup: Serve() starts all adapters concurrently
//  4. Shutdown: context cancellation stops the adapters in reverse order
//
// Example usage:
//
//	srv := server.New(svc, 30*time.Second)
//	srv.AddAdapter(console.New(consoleConfig, nil))
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := srv.Serve(ctx); err != nil {
//	    log.Fatal(err)
//	}
type Server struct {
	svc *service.Service

	adapters      []adapter.Adapter
	metricsServer *metrics.Server

	shutdownTimeout time.Duration

	// closers run after every adapter has stopped, in registration order
	closers []func() error

	// mu protects adapters and served
	mu     sync.Mutex
	served bool
}

// New creates a server for svc. A non-positive shutdownTimeout selects
// DefaultShutdownTimeout.
//
// Panics if svc is nil.
func New(svc *service.Service, shutdownTimeout time.Duration) *Server {
	if svc == nil {
		panic("service cannot be nil")
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}

	return &Server{
		svc:             svc,
		adapters:        make([]adapter.Adapter, 0, 2),
		shutdownTimeout: shutdownTimeout,
	}
}

// AddAdapter injects the service into a and registers it. Adapters must use
// distinct protocols and, unless they bind an ephemeral port, distinct
// ports.
//
// Panics if a is nil or Serve has already been called.
func (s *Server) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		panic("cannot add adapter after Serve() has been called")
	}

	protocol := a.Protocol()
	port := a.Port()

	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		if port != 0 && existing.Port() == port {
			return fmt.Errorf("port %d already in use by %s adapter", port, existing.Protocol())
		}
	}

	a.SetService(s.svc)
	s.adapters = append(s.adapters, a)

	logger.Info("Registered %s adapter on port %d", protocol, port)
	return nil
}

// SetMetricsServer attaches the HTTP metrics server. It is started with the
// adapters and stopped after them.
func (s *Server) SetMetricsServer(m *metrics.Server) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metricsServer = m
}

// OnShutdown registers fn to run once every adapter has stopped. The journal
// is closed this way so no command is recorded after it.
func (s *Server) OnShutdown(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, fn)
}

// Adapters returns a snapshot of the registered adapters.
func (s *Server) Adapters() []adapter.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}

// Serve starts every adapter and blocks until ctx is cancelled or an adapter
// fails. Either way all adapters are stopped before it returns.
//
// Returns nil after a shutdown triggered by ctx, or the first adapter
// failure.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return errors.New("server already served")
	}
	s.served = true
	if len(s.adapters) == 0 {
		s.mu.Unlock()
		return errors.New("no adapters registered; call AddAdapter() before Serve()")
	}
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	metricsServer := s.metricsServer
	closers := s.closers
	s.mu.Unlock()

	defer runClosers(closers)

	logger.Info("Starting simfs server with %d adapter(s)", len(adapters))

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errChan := make(chan adapterError, len(adapters)+1)
	var wg sync.WaitGroup

	if metricsServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metricsServer.Start(serveCtx); err != nil {
				logger.Error("Metrics server failed: %v", err)
				if serveCtx.Err() == nil {
					errChan <- adapterError{protocol: "metrics", err: err}
				}
			}
		}()
	}

	for _, adp := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			protocol := a.Protocol()
			logger.Info("Starting %s adapter on port %d", protocol, a.Port())

			err := a.Serve(serveCtx)
			switch {
			case serveCtx.Err() != nil:
				logger.Debug("%s adapter stopped during shutdown (err=%v)", protocol, err)
			case err != nil:
				logger.Error("%s adapter failed: %v", protocol, err)
				errChan <- adapterError{protocol: protocol, err: err}
			default:
				logger.Warn("%s adapter returned before shutdown", protocol)
				errChan <- adapterError{protocol: protocol, err: errors.New("adapter exited unexpectedly")}
			}
		}(adp)
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())

	case adapterErr := <-errChan:
		logger.Error("Adapter %s failed: %v - initiating shutdown of all adapters",
			adapterErr.protocol, adapterErr.err)
		shutdownErr = fmt.Errorf("%s adapter error: %w", adapterErr.protocol, adapterErr.err)
	}

	cancel()
	s.stopAllAdapters(adapters)

	logger.Debug("Waiting for all adapters to complete shutdown")
	wg.Wait()

	logger.Info("simfs server stopped")
	return shutdownErr
}

type adapterError struct {
	protocol string
	err      error
}

// stopAllAdapters stops adapters in reverse registration order, sharing one
// shutdown deadline.
func (s *Server) stopAllAdapters(adapters []adapter.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	logger.Info("Initiating graceful shutdown of %d adapter(s)", len(adapters))

	for i := len(adapters) - 1; i >= 0; i-- {
		adp := adapters[i]
		protocol := adp.Protocol()

		logger.Debug("Stopping %s adapter (port %d)", protocol, adp.Port())
		if err := adp.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", protocol, err)
		}
	}
}

func runClosers(closers []func() error) {
	for _, fn := range closers {
		if err := fn(); err != nil {
			logger.Warn("Shutdown hook failed: %v", err)
		}
	}
}
