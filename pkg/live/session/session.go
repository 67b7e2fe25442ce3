// Package session owns the live connection lifecycle: deciding when to
// connect, disconnect, or tear down and reopen the streaming session as
// profiles, the grounding toggle, and settings modals change.
package session

import (
	"context"

	"github.com/vango-go/vai-live/pkg/live/persona"
)

// Transport is the streaming connection collaborator. Implementations
// own sockets and framing; the controller only drives connect,
// disconnect, and outbound messages. While a Controller is active it is
// the sole caller of Connect and Disconnect.
type Transport interface {
	Connect(ctx context.Context, cfg Config) error
	Disconnect(ctx context.Context) error
	Send(text string, endOfTurn bool) error
	Status() Status
	Emit(event string, payload any)
}

// Snapshot is one consistent read of the controller's watched inputs.
type Snapshot struct {
	Agent     persona.AgentProfile
	User      persona.UserProfile
	Grounding bool
	ModalOpen bool
	Status    Status
}

// Store is the shared application state the controller evaluates
// against. The controller reads snapshots and is the sole writer of the
// applied configuration; profiles, modal flags, and connection status
// are written by the UI and transport layers.
type Store interface {
	Snapshot() Snapshot
	ModalOpen() bool
	AppliedConfig() Config
	SetAppliedConfig(Config)
	Watch() <-chan struct{}
}
