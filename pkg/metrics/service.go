package metrics

import "time"

// ServiceMetrics observes command execution and session state.
type ServiceMetrics interface {
	// RecordCommand records an executed command. verb is the long verb name,
	// or "INVALID" when the line could not be parsed. errorCode is empty on
	// success.
	RecordCommand(verb string, duration time.Duration, errorCode string)

	// RecordAuth records an Authorize or Deauthorize outcome.
	RecordAuth(operation string, errorCode string)

	SetActiveSessions(count int)

	// RecordNotification counts a notification delivered to, or dropped
	// for, one subscriber.
	RecordNotification(delivered bool)
}

// NewNoopServiceMetrics returns a ServiceMetrics that records nothing.
func NewNoopServiceMetrics() ServiceMetrics {
	return noopServiceMetrics{}
}

type noopServiceMetrics struct{}

func (noopServiceMetrics) RecordCommand(string, time.Duration, string) {}
func (noopServiceMetrics) RecordAuth(string, string)                   {}
func (noopServiceMetrics) SetActiveSessions(int)                       {}
func (noopServiceMetrics) RecordNotification(bool)                     {}
