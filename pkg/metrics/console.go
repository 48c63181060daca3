package metrics

import "time"

// ConsoleMetrics observes the console TCP adapter.
//
// A nil ConsoleMetrics passed to the adapter is replaced with
// NewNoopConsoleMetrics.
type ConsoleMetrics interface {
	// RecordRequest records a completed RPC with its procedure name
	// ("AUTHORIZE", "EXECUTE", ...), duration and outcome.
	RecordRequest(procedure string, duration time.Duration, err error)

	// RecordRequestStart increments the in-flight gauge for procedure.
	RecordRequestStart(procedure string)

	// RecordRequestEnd decrements the in-flight gauge for procedure.
	RecordRequestEnd(procedure string)

	SetActiveConnections(count int32)
	RecordConnectionAccepted()
	RecordConnectionClosed()

	// RecordConnectionForceClosed counts connections closed after the
	// shutdown timeout expired.
	RecordConnectionForceClosed()

	// RecordRateLimited counts requests rejected by the per-connection
	// rate limiter.
	RecordRateLimited()
}

// NewNoopConsoleMetrics returns a ConsoleMetrics that records nothing.
func NewNoopConsoleMetrics() ConsoleMetrics {
	return noopConsoleMetrics{}
}

type noopConsoleMetrics struct{}

func (noopConsoleMetrics) RecordRequest(string, time.Duration, error) {}
func (noopConsoleMetrics) RecordRequestStart(string)                  {}
func (noopConsoleMetrics) RecordRequestEnd(string)                    {}
func (noopConsoleMetrics) SetActiveConnections(int32)                 {}
func (noopConsoleMetrics) RecordConnectionAccepted()                  {}
func (noopConsoleMetrics) RecordConnectionClosed()                    {}
func (noopConsoleMetrics) RecordConnectionForceClosed()               {}
func (noopConsoleMetrics) RecordRateLimited()                         {}
