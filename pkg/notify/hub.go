// Package notify fans change notifications out to connected sessions.
//
// Delivery is fire-and-forget: every subscriber owns a buffered channel and
// Publish never blocks on it. When a buffer is full the notification is
// dropped for that subscriber and the drop is logged and counted.
package notify

import (
	"sync"

	"github.com/google/uuid"
	"github.com/marmos91/simfs/internal/logger"
	"github.com/marmos91/simfs/pkg/namespace"
)

// DefaultBuffer is the channel capacity used when Subscribe gets a
// non-positive buffer size.
const DefaultBuffer = 64

// Notification tells a session that another user changed the namespace.
type Notification struct {
	UserName    string
	CommandLine string
}

// Recorder observes delivery outcomes. It is implemented by the metrics
// package.
type Recorder interface {
	RecordNotification(delivered bool)
}

// Subscription is a registered receiver of notifications.
type Subscription struct {
	ID       string
	UserName string

	ch     chan Notification
	closed bool
}

// C returns the channel notifications are delivered on. It is closed by
// Unsubscribe.
func (s *Subscription) C() <-chan Notification {
	return s.ch
}

// Hub is the subscriber registry. It is safe for concurrent use.
type Hub struct {
	mu       sync.Mutex
	subs     map[string]*Subscription
	recorder Recorder
}

// NewHub creates an empty hub. recorder may be nil.
func NewHub(recorder Recorder) *Hub {
	return &Hub{
		subs:     make(map[string]*Subscription),
		recorder: recorder,
	}
}

// Subscribe registers a receiver for notifications addressed to userName.
func (h *Hub) Subscribe(userName string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	sub := &Subscription{
		ID:       uuid.NewString(),
		UserName: userName,
		ch:       make(chan Notification, buffer),
	}

	h.mu.Lock()
	h.subs[sub.ID] = sub
	h.mu.Unlock()

	logger.Debug("Subscribed %s to notifications (id=%s)", userName, sub.ID)
	return sub
}

// Unsubscribe removes sub and closes its channel. Calling it twice is safe.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if sub.closed {
		return
	}
	delete(h.subs, sub.ID)
	sub.closed = true
	close(sub.ch)
}

// UnsubscribeUser closes every subscription registered for userName and
// returns how many were closed. Subscriptions belong to one session, so the
// service calls this whenever a session of userName starts or ends.
func (h *Hub) UnsubscribeUser(userName string) int {
	key := namespace.Normalize(userName)

	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for id, sub := range h.subs {
		if namespace.Normalize(sub.UserName) != key {
			continue
		}
		delete(h.subs, id)
		sub.closed = true
		close(sub.ch)
		n++
	}
	return n
}

// Len returns the number of subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Publish delivers n to every subscription whose user is in recipients.
// It never blocks.
func (h *Hub) Publish(recipients []string, n Notification) {
	if len(recipients) == 0 {
		return
	}

	wanted := make(map[string]struct{}, len(recipients))
	for _, r := range recipients {
		wanted[namespace.Normalize(r)] = struct{}{}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs {
		if _, ok := wanted[namespace.Normalize(sub.UserName)]; !ok {
			continue
		}
		select {
		case sub.ch <- n:
			h.record(true)
		default:
			logger.Warn("Dropped notification for %s (subscriber %s buffer full): %q",
				sub.UserName, sub.ID, n.CommandLine)
			h.record(false)
		}
	}
}

func (h *Hub) record(delivered bool) {
	if h.recorder != nil {
		h.recorder.RecordNotification(delivered)
	}
}
