package adapter

import (
	"context"

	"github.com/marmos91/simfs/pkg/service"
)

// Adapter is a transport front end managed by the simfs server.
//
// Every adapter forwards remote calls to the same service, so users
// connected through different adapters share one namespace and one session
// table.
//
// Lifecycle:
//  1. Creation with transport-specific configuration
//  2. SetService injects the shared service
//  3. Serve blocks until shutdown
//  4. Stop shuts down gracefully within the context deadline
//
// Implementations must allow Stop to be called concurrently with Serve and
// more than once.
type Adapter interface {
	// Serve starts the transport and blocks until ctx is cancelled or an
	// unrecoverable error occurs. If Serve returns before cancellation the
	// server treats it as fatal and stops the other adapters.
	Serve(ctx context.Context) error

	// SetService is called exactly once, before Serve.
	SetService(svc *service.Service)

	// Stop initiates graceful shutdown and waits for active connections
	// until ctx is done.
	Stop(ctx context.Context) error

	// Protocol returns a constant name for logs and metrics, e.g. "console".
	Protocol() string

	// Port returns the listening port, or 0 before Serve has bound it.
	Port() int
}
