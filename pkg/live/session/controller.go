package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// greetingInstruction is sent once per connection so the agent opens
// the conversation instead of waiting silently.
const greetingInstruction = "Please greet the user and introduce yourself briefly, staying in character."

// reconnectFailedNotice is the user-visible advisory emitted when a
// reconnect attempt fails.
const reconnectFailedNotice = "Failed to apply the new settings. Please apply them again."

// Controller keeps one live transport connection synchronized with the
// application state in a Store.
//
// Every time a watched input changes the controller re-derives the
// desired configuration, publishes it, and decides whether to leave the
// connection alone, tear it down (a settings modal opened), or tear it
// down and reopen it (the configuration changed while connected). At
// most one disconnect-then-connect sequence is in flight at a time, and
// no connect is ever issued while a settings modal is open.
type Controller struct {
	store     Store
	transport Transport
	logger    *slog.Logger
	metrics   *Metrics

	// evalMu serializes evaluations and guards pendingReconnect.
	evalMu           sync.Mutex
	pendingReconnect bool

	// reconnecting is the reconnect lock: held for the full
	// disconnect-then-connect sequence, released on every exit path.
	reconnecting atomic.Bool

	// stopping is set by Stop, under evalMu, before it joins in-flight
	// goroutines: evaluations launch no new work while it is set, and a
	// sequence already past its disconnect aborts before Connect. Start
	// clears it.
	stopping atomic.Bool

	// wg tracks in-flight disconnect/reconnect goroutines so shutdown
	// (and tests) can join them.
	wg sync.WaitGroup
}

// NewController wires a controller to its collaborators. metrics may be
// nil; logger falls back to slog.Default.
func NewController(store Store, transport Transport, logger *slog.Logger, metrics *Metrics) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		store:     store,
		transport: transport,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run re-evaluates the session whenever a watched input changes. It
// evaluates once immediately, then blocks until ctx is cancelled and
// any in-flight reconnect has finished.
func (c *Controller) Run(ctx context.Context) {
	changes := c.store.Watch()
	c.Evaluate(ctx)
	for {
		select {
		case <-ctx.Done():
			c.wg.Wait()
			return
		case <-changes:
			c.Evaluate(ctx)
		}
	}
}

// Start requests a connection with the currently derived configuration.
// If a settings modal is open the connection is deferred until the
// modal closes.
func (c *Controller) Start(ctx context.Context) {
	c.evalMu.Lock()
	c.stopping.Store(false)
	c.pendingReconnect = true
	c.evalMu.Unlock()
	c.Evaluate(ctx)
}

// Stop tears the connection down and drops any deferred reconnect. It
// joins any in-flight sequence first so nothing reconnects behind the
// final disconnect.
func (c *Controller) Stop(ctx context.Context) {
	c.evalMu.Lock()
	c.stopping.Store(true)
	c.pendingReconnect = false
	c.evalMu.Unlock()
	c.wg.Wait()
	if err := c.transport.Disconnect(ctx); err != nil {
		c.logger.Warn("disconnect on stop failed", "error", err)
	}
}

// Evaluate runs one pass of the session decision function against the
// current store snapshot. Evaluations are serialized; the published
// configuration is always refreshed, even on paths that do not touch
// the connection.
func (c *Controller) Evaluate(ctx context.Context) {
	c.evalMu.Lock()
	defer c.evalMu.Unlock()

	c.metrics.recordEvaluation()

	snap := c.store.Snapshot()
	newConfig := DeriveConfig(snap.Agent, snap.User, snap.Grounding)

	// Publish before anything else so other readers of the applied
	// configuration are never stale, and so the next evaluation diffs
	// against what was actually published.
	prev := c.store.AppliedConfig()
	c.store.SetAppliedConfig(newConfig)
	configChanged := !newConfig.Equal(prev)

	if c.stopping.Load() {
		return
	}

	if snap.ModalOpen {
		if snap.Status == StatusConnected {
			// Remember to restore the session once the modal closes.
			c.pendingReconnect = true
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				if err := c.transport.Disconnect(ctx); err != nil {
					c.logger.Warn("disconnect while settings open failed", "error", err)
				}
			}()
		}
		return
	}

	if c.pendingReconnect || (snap.Status == StatusConnected && configChanged) {
		c.pendingReconnect = false
		c.startReconnect(ctx, newConfig)
	}
}

// sendGreeting asks the agent to open the conversation. It runs once
// per connection establishment: the controller is the sole invoker of
// Connect, and every successful connect passes through here exactly
// once. Re-evaluations while already connected never reach it.
func (c *Controller) sendGreeting() {
	if err := c.transport.Send(greetingInstruction, true); err != nil {
		c.logger.Warn("greeting send failed", "error", err)
		return
	}
	c.metrics.recordGreeting()
}

// startReconnect launches one disconnect-then-connect sequence. If a
// sequence is already in flight the call is a no-op rather than being
// queued; the evaluation triggered by the sequence's eventual status
// change re-decides from fresh state.
func (c *Controller) startReconnect(ctx context.Context, cfg Config) {
	if !c.reconnecting.CompareAndSwap(false, true) {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.reconnecting.Store(false)
		defer func() {
			// Unreachable if reconnect handles its own failures, kept
			// as a last-resort safety net.
			if r := recover(); r != nil {
				c.logger.Error("reconnect panicked", "panic", r)
			}
		}()
		c.reconnect(ctx, cfg)
	}()
}

func (c *Controller) reconnect(ctx context.Context, cfg Config) {
	if c.transport.Status() == StatusConnected {
		if err := c.transport.Disconnect(ctx); err != nil {
			c.logger.Warn("disconnect before reconnect failed", "error", err)
		}
	}

	if c.stopping.Load() {
		c.metrics.recordReconnectAbort()
		c.logger.Info("reconnect aborted, controller stopping")
		return
	}

	// A settings modal may have opened while the disconnect was in
	// flight. Re-read it from the store, not the evaluation snapshot.
	if c.store.ModalOpen() {
		c.metrics.recordReconnectAbort()
		c.logger.Info("reconnect aborted, settings modal opened mid-sequence")
		return
	}

	if err := c.transport.Connect(ctx, cfg); err != nil {
		c.metrics.recordReconnect(false)
		c.logger.Error("reconnect failed", "error", err, "voice", cfg.Voice)
		c.transport.Emit("error", reconnectFailedNotice)
		return
	}
	c.metrics.recordReconnect(true)
	c.logger.Info("session connected", "voice", cfg.Voice, "tools", len(cfg.Tools))
	c.sendGreeting()
}
