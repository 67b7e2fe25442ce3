// Package state is the shared mutable application state for a live
// session: profiles, the grounding toggle, modal flags, connection
// status, and the last-applied session configuration.
//
// Ownership is split by writer: the UI layer sets profiles and modal
// flags, the transport layer sets connection status, and the session
// controller alone writes the applied configuration.
package state

import (
	"sync"

	"github.com/vango-go/vai-live/pkg/live/persona"
	"github.com/vango-go/vai-live/pkg/live/session"
)

// Store holds the watched inputs of the session controller. Every
// mutation (except the applied configuration, see SetAppliedConfig)
// notifies watchers so the controller can re-evaluate.
type Store struct {
	mu sync.Mutex

	agent     persona.AgentProfile
	user      persona.UserProfile
	grounding bool

	agentModalOpen bool
	userModalOpen  bool

	status  session.Status
	applied session.Config

	watchers []chan struct{}
}

var _ session.Store = (*Store)(nil)

// NewStore creates a store with the given initial profiles and a
// disconnected status.
func NewStore(agent persona.AgentProfile, user persona.UserProfile) *Store {
	return &Store{
		agent:  agent,
		user:   user,
		status: session.StatusDisconnected,
	}
}

// Watch returns a channel that receives a coalesced signal whenever a
// watched input changes. Rapid mutations between reads collapse into
// one signal, so a reader always evaluates against the latest state.
func (s *Store) Watch() <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.watchers = append(s.watchers, ch)
	s.mu.Unlock()
	return ch
}

func (s *Store) notifyLocked() {
	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Snapshot returns one consistent read of all watched inputs.
func (s *Store) Snapshot() session.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return session.Snapshot{
		Agent:     s.agent,
		User:      s.user,
		Grounding: s.grounding,
		ModalOpen: s.agentModalOpen || s.userModalOpen,
		Status:    s.status,
	}
}

// SetAgent replaces the active agent persona.
func (s *Store) SetAgent(agent persona.AgentProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agent = agent
	s.notifyLocked()
}

// Agent returns the active agent persona.
func (s *Store) Agent() persona.AgentProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agent
}

// SetUser replaces the user profile.
func (s *Store) SetUser(user persona.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
	s.notifyLocked()
}

// User returns the user profile.
func (s *Store) User() persona.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// SetGrounding toggles search grounding.
func (s *Store) SetGrounding(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grounding = enabled
	s.notifyLocked()
}

// SetAgentModalOpen marks the agent-edit modal open or closed.
func (s *Store) SetAgentModalOpen(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agentModalOpen = open
	s.notifyLocked()
}

// SetUserModalOpen marks the user-settings modal open or closed.
func (s *Store) SetUserModalOpen(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userModalOpen = open
	s.notifyLocked()
}

// ModalOpen reports whether any settings-editing modal is open. While
// true, the session must stay disconnected.
func (s *Store) ModalOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agentModalOpen || s.userModalOpen
}

// SetStatus records the connection status reported by the transport.
func (s *Store) SetStatus(status session.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == status {
		return
	}
	s.status = status
	s.notifyLocked()
}

// Status returns the last reported connection status.
func (s *Store) Status() session.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SetAppliedConfig publishes the configuration the controller derived
// on its latest evaluation. It deliberately does not notify watchers:
// the controller writes it during evaluation, and waking the controller
// on its own write would loop.
func (s *Store) SetAppliedConfig(cfg session.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = cfg
}

// AppliedConfig returns the most recently published configuration.
func (s *Store) AppliedConfig() session.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applied
}
