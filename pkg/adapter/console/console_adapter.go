// Package console implements the TCP adapter for the console protocol.
//
// Clients send record-marked XDR calls (see internal/protocol/rpc) to
// authorize, execute command lines and read the command history. After a
// successful AUTHORIZE the connection also receives NOTIFY messages whenever
// another user changes the namespace.
package console

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/simfs/internal/logger"
	"github.com/marmos91/simfs/pkg/metrics"
	"github.com/marmos91/simfs/pkg/service"
)

// Adapter implements adapter.Adapter for the console protocol.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. Listener closed (no new connections)
//  3. shutdownCtx cancelled (connections stop after the current request)
//  4. Wait for active connections (up to ShutdownTimeout)
//  5. Force-close whatever is left
//
// All methods are safe for concurrent use.
type Adapter struct {
	config Config

	listener net.Listener
	port     atomic.Int32

	// ready is closed once the listener is bound
	ready chan struct{}

	svc *service.Service

	metrics metrics.ConsoleMetrics

	// activeConns counts running connection goroutines
	activeConns sync.WaitGroup

	shutdownOnce sync.Once
	shutdown     chan struct{}

	connCount atomic.Int32

	// connSemaphore is nil when MaxConnections is 0
	connSemaphore chan struct{}

	shutdownCtx    context.Context
	cancelRequests context.CancelFunc

	// activeConnections maps connection id to net.Conn for forced closure
	activeConnections sync.Map
}

// TimeoutsConfig groups the per-connection deadlines. Zero disables a
// deadline.
type TimeoutsConfig struct {
	// Read bounds reading one complete request
	Read time.Duration `mapstructure:"read" validate:"min=0"`

	// Write bounds writing one reply or notification
	Write time.Duration `mapstructure:"write" validate:"min=0"`

	// Idle closes connections with no request for this long
	Idle time.Duration `mapstructure:"idle" validate:"min=0"`
}

// RateLimitConfig throttles each connection. Zero RequestsPerSecond
// disables throttling.
type RateLimitConfig struct {
	RequestsPerSecond uint `mapstructure:"requests_per_second"`
	Burst             uint `mapstructure:"burst"`
}

// Config holds the console adapter configuration.
//
// Defaults applied by New for zero values:
//   - Timeouts: read 5m, write 30s, idle 5m
//   - ShutdownTimeout: 30s
//   - NotificationBuffer: 64
//
// Port 0 binds an ephemeral port; the configuration layer defaults it to
// 7070.
type Config struct {
	Enabled bool `mapstructure:"enabled"`

	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// MaxConnections limits concurrent clients; 0 means unlimited
	MaxConnections int `mapstructure:"max_connections" validate:"min=0"`

	Timeouts TimeoutsConfig `mapstructure:"timeouts"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// MetricsLogInterval is how often connection stats are logged; 0
	// disables the log line
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval" validate:"min=0"`

	// NotificationBuffer is the per-connection notification queue length
	NotificationBuffer int `mapstructure:"notification_buffer" validate:"min=0"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

func (c *Config) applyDefaults() {
	if c.Timeouts.Read == 0 {
		c.Timeouts.Read = 5 * time.Minute
	}
	if c.Timeouts.Write == 0 {
		c.Timeouts.Write = 30 * time.Second
	}
	if c.Timeouts.Idle == 0 {
		c.Timeouts.Idle = 5 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.NotificationBuffer == 0 {
		c.NotificationBuffer = 64
	}
}

func (c *Config) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("invalid MaxConnections %d: must be >= 0", c.MaxConnections)
	}
	if c.Timeouts.Read < 0 || c.Timeouts.Write < 0 || c.Timeouts.Idle < 0 {
		return fmt.Errorf("invalid timeouts %+v: must be >= 0", c.Timeouts)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	if c.NotificationBuffer < 0 {
		return fmt.Errorf("invalid NotificationBuffer %d: must be >= 0", c.NotificationBuffer)
	}
	return nil
}

// New creates a stopped adapter. Call SetService, then Serve.
//
// Panics if the configuration is invalid after defaults are applied.
func New(config Config, consoleMetrics metrics.ConsoleMetrics) *Adapter {
	config.applyDefaults()

	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid console config: %v", err))
	}

	var connSemaphore chan struct{}
	if config.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, config.MaxConnections)
		logger.Debug("Console connection limit: %d", config.MaxConnections)
	} else {
		logger.Debug("Console connection limit: unlimited")
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	if consoleMetrics == nil {
		consoleMetrics = metrics.NewNoopConsoleMetrics()
	}

	return &Adapter{
		config:         config,
		ready:          make(chan struct{}),
		metrics:        consoleMetrics,
		shutdown:       make(chan struct{}),
		connSemaphore:  connSemaphore,
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancelRequests,
	}
}

// SetService injects the shared service.
func (s *Adapter) SetService(svc *service.Service) {
	s.svc = svc
	logger.Debug("Console adapter service configured")
}

// Serve accepts connections until ctx is cancelled or Stop is called, then
// shuts down gracefully.
//
// Serve should only be called once per Adapter.
func (s *Adapter) Serve(ctx context.Context) error {
	if s.svc == nil {
		return fmt.Errorf("console adapter has no service")
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
	if err != nil {
		return fmt.Errorf("failed to create console listener on port %d: %w", s.config.Port, err)
	}

	s.listener = listener
	if addr, ok := listener.Addr().(*net.TCPAddr); ok {
		s.port.Store(int32(addr.Port))
	}
	close(s.ready)

	logger.Info("Console server listening on port %d", s.Port())
	logger.Debug("Console config: max_connections=%d read_timeout=%v write_timeout=%v idle_timeout=%v rate_limit=%d/s",
		s.config.MaxConnections, s.config.Timeouts.Read, s.config.Timeouts.Write,
		s.config.Timeouts.Idle, s.config.RateLimit.RequestsPerSecond)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("Console shutdown signal received: %v", ctx.Err())
			s.initiateShutdown()
		case <-s.shutdown:
		}
	}()

	if s.config.MetricsLogInterval > 0 {
		go s.logMetrics(ctx)
	}

	for {
		if s.connSemaphore != nil {
			select {
			case s.connSemaphore <- struct{}{}:
			case <-s.shutdown:
				return s.gracefulShutdown()
			}
		}

		tcpConn, err := s.listener.Accept()
		if err != nil {
			if s.connSemaphore != nil {
				<-s.connSemaphore
			}

			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
				logger.Debug("Error accepting console connection: %v", err)
				continue
			}
		}

		s.activeConns.Add(1)
		s.connCount.Add(1)

		conn := newConnection(s, tcpConn)
		s.activeConnections.Store(conn.id, tcpConn)

		s.metrics.RecordConnectionAccepted()
		currentConns := s.connCount.Load()
		s.metrics.SetActiveConnections(currentConns)

		logger.Debug("Console connection %s accepted from %s (active: %d)",
			conn.id, tcpConn.RemoteAddr(), currentConns)

		go func(c *connection) {
			defer func() {
				s.activeConnections.Delete(c.id)

				s.activeConns.Done()
				s.connCount.Add(-1)
				if s.connSemaphore != nil {
					<-s.connSemaphore
				}

				s.metrics.RecordConnectionClosed()
				currentConns := s.connCount.Load()
				s.metrics.SetActiveConnections(currentConns)

				logger.Debug("Console connection %s closed (active: %d)", c.id, currentConns)
			}()

			c.Serve(s.shutdownCtx)
		}(conn)
	}
}

// initiateShutdown closes the listener and cancels in-flight requests. It
// is safe to call more than once.
func (s *Adapter) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		logger.Debug("Console shutdown initiated")

		close(s.shutdown)

		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				logger.Debug("Error closing console listener: %v", err)
			}
		}

		s.cancelRequests()
	})
}

// gracefulShutdown waits up to ShutdownTimeout for connections to finish
// and force-closes the rest.
func (s *Adapter) gracefulShutdown() error {
	activeCount := s.connCount.Load()
	logger.Info("Console graceful shutdown: waiting for %d active connection(s) (timeout: %v)",
		activeCount, s.config.ShutdownTimeout)

	select {
	case <-s.connectionsDone():
		logger.Info("Console graceful shutdown complete: all connections closed")
		return nil

	case <-time.After(s.config.ShutdownTimeout):
		remaining := s.connCount.Load()
		logger.Warn("Console shutdown timeout exceeded: %d connection(s) still active after %v - forcing closure",
			remaining, s.config.ShutdownTimeout)

		s.forceCloseConnections()

		return fmt.Errorf("console shutdown timeout: %d connections force-closed", remaining)
	}
}

func (s *Adapter) connectionsDone() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()
	return done
}

// forceCloseConnections closes every tracked TCP connection so blocked
// reads and writes fail immediately.
func (s *Adapter) forceCloseConnections() {
	closedCount := 0
	s.activeConnections.Range(func(key, value any) bool {
		id := key.(string)
		conn := value.(net.Conn)

		if err := conn.Close(); err != nil {
			logger.Debug("Error force-closing console connection %s: %v", id, err)
		} else {
			closedCount++
			s.metrics.RecordConnectionForceClosed()
		}
		return true
	})

	if closedCount > 0 {
		logger.Info("Force-closed %d console connection(s)", closedCount)
	}
}

// Stop initiates shutdown and waits for active connections until ctx is
// done. A nil ctx waits up to the configured ShutdownTimeout.
func (s *Adapter) Stop(ctx context.Context) error {
	s.initiateShutdown()

	if ctx == nil {
		return s.gracefulShutdown()
	}

	select {
	case <-s.connectionsDone():
		logger.Info("Console graceful shutdown complete: all connections closed")
		return nil

	case <-ctx.Done():
		remaining := s.connCount.Load()
		logger.Warn("Console shutdown context cancelled: %d connection(s) still active: %v",
			remaining, ctx.Err())
		s.forceCloseConnections()
		return ctx.Err()
	}
}

func (s *Adapter) logMetrics(ctx context.Context) {
	ticker := time.NewTicker(s.config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		case <-ticker.C:
			logger.Info("Console metrics: active_connections=%d active_users=%d",
				s.connCount.Load(), len(s.svc.ActiveUsers()))
		}
	}
}

// Ready returns a channel closed once the listener is bound.
func (s *Adapter) Ready() <-chan struct{} {
	return s.ready
}

// GetActiveConnections returns the current number of active connections.
func (s *Adapter) GetActiveConnections() int32 {
	return s.connCount.Load()
}

// Port returns the bound port, or the configured one before Serve binds.
func (s *Adapter) Port() int {
	if p := s.port.Load(); p != 0 {
		return int(p)
	}
	return s.config.Port
}

// Protocol returns "console".
func (s *Adapter) Protocol() string {
	return "console"
}
