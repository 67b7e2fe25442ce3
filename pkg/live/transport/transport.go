// Package transport provides the streaming connection implementations
// behind the session controller: the Gemini Live API and the vai
// gateway live websocket protocol. Both report status transitions and
// out-of-band events through registered callbacks.
package transport

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/vango-go/vai-live/pkg/live/session"
)

// StatusFunc observes connection status transitions.
type StatusFunc func(status session.Status)

// EmitFunc receives out-of-band events (errors, warnings) from a
// transport or the session controller.
type EmitFunc func(event string, payload any)

// TransportError represents network-level failures (DNS, dial timeouts,
// connection reset, TLS handshake) while reaching the remote service,
// as opposed to protocol errors the remote side reports.
//
// Use errors.As to distinguish it from other failures.
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Op != "" && e.URL != "":
		return fmt.Sprintf("transport error during %s %s: %v", e.Op, redactURLUserInfo(e.URL), e.Err)
	case e.Op != "":
		return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("transport error: %v", e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func redactURLUserInfo(raw string) string {
	if raw == "" {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed == nil {
		return raw
	}
	parsed.User = nil
	return parsed.String()
}

// notifier is the status/event callback plumbing shared by transports.
type notifier struct {
	mu       sync.Mutex
	status   session.Status
	onStatus StatusFunc
	onEmit   EmitFunc
}

// SetOnStatusChange registers the observer for status transitions.
// Call it before Connect; the transport invokes it from its own
// goroutines.
func (n *notifier) SetOnStatusChange(fn StatusFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onStatus = fn
}

// SetOnEmit registers the sink for out-of-band events.
func (n *notifier) SetOnEmit(fn EmitFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onEmit = fn
}

// Status returns the current connection status.
func (n *notifier) Status() session.Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.status == "" {
		return session.StatusDisconnected
	}
	return n.status
}

// Emit forwards an event to the registered sink, if any.
func (n *notifier) Emit(event string, payload any) {
	n.mu.Lock()
	fn := n.onEmit
	n.mu.Unlock()
	if fn != nil {
		fn(event, payload)
	}
}

// setStatus records a transition and notifies the observer. No-op
// writes are swallowed so observers only see real transitions.
func (n *notifier) setStatus(status session.Status) {
	n.mu.Lock()
	if n.status == status {
		n.mu.Unlock()
		return
	}
	n.status = status
	fn := n.onStatus
	n.mu.Unlock()
	if fn != nil {
		fn(status)
	}
}
