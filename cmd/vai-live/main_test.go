package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vango-go/vai-live/pkg/live/config"
	"github.com/vango-go/vai-live/pkg/live/persona"
	"github.com/vango-go/vai-live/pkg/live/session"
	"github.com/vango-go/vai-live/pkg/live/state"
	"github.com/vango-go/vai-live/pkg/live/transport"
)

type stubTransport struct {
	mu       sync.Mutex
	status   session.Status
	connects int
	sends    []string
	onStatus transport.StatusFunc
	onEmit   transport.EmitFunc
}

func (s *stubTransport) Connect(ctx context.Context, cfg session.Config) error {
	s.mu.Lock()
	s.connects++
	s.status = session.StatusConnected
	fn := s.onStatus
	s.mu.Unlock()
	if fn != nil {
		fn(session.StatusConnected)
	}
	return nil
}

func (s *stubTransport) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	s.status = session.StatusDisconnected
	fn := s.onStatus
	s.mu.Unlock()
	if fn != nil {
		fn(session.StatusDisconnected)
	}
	return nil
}

func (s *stubTransport) Send(text string, endOfTurn bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = append(s.sends, text)
	return nil
}

func (s *stubTransport) Status() session.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *stubTransport) Emit(event string, payload any) {
	s.mu.Lock()
	fn := s.onEmit
	s.mu.Unlock()
	if fn != nil {
		fn(event, payload)
	}
}

func (s *stubTransport) SetOnStatusChange(fn transport.StatusFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStatus = fn
}

func (s *stubTransport) SetOnEmit(fn transport.EmitFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEmit = fn
}

func testHandleDeps(t *testing.T) (*state.Store, *session.Controller, *stubTransport) {
	t.Helper()
	store := state.NewStore(persona.Default(), persona.UserProfile{})
	tr := &stubTransport{status: session.StatusDisconnected}
	tr.SetOnStatusChange(store.SetStatus)
	ctrl := session.NewController(store, tr, slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})), nil)
	return store, ctrl, tr
}

func TestHandleCommand_Voice(t *testing.T) {
	t.Parallel()

	store, ctrl, tr := testHandleDeps(t)
	var out bytes.Buffer
	handleCommand(context.Background(), "voice Puck", store, ctrl, tr, &out)
	if got := store.Agent().Voice; got != "Puck" {
		t.Fatalf("voice=%q, want Puck", got)
	}

	handleCommand(context.Background(), "voice NotAVoice", store, ctrl, tr, &out)
	if got := store.Agent().Voice; got != "Puck" {
		t.Fatalf("voice=%q, invalid voice must not apply", got)
	}
	if !strings.Contains(out.String(), "usage: voice") {
		t.Fatalf("output=%q, want usage hint", out.String())
	}
}

func TestHandleCommand_AgentSwitch(t *testing.T) {
	t.Parallel()

	store, ctrl, tr := testHandleDeps(t)
	var out bytes.Buffer
	target := persona.Presets[1]
	handleCommand(context.Background(), "agent "+target.ID, store, ctrl, tr, &out)
	if got := store.Agent().ID; got != target.ID {
		t.Fatalf("agent=%q, want %q", got, target.ID)
	}

	handleCommand(context.Background(), "agent nobody", store, ctrl, tr, &out)
	if !strings.Contains(out.String(), "unknown agent") {
		t.Fatalf("output=%q, want unknown agent message", out.String())
	}
}

func TestHandleCommand_GroundingAndModals(t *testing.T) {
	t.Parallel()

	store, ctrl, tr := testHandleDeps(t)
	var out bytes.Buffer
	ctx := context.Background()

	handleCommand(ctx, "grounding on", store, ctrl, tr, &out)
	if !store.Snapshot().Grounding {
		t.Fatalf("grounding should be on")
	}
	handleCommand(ctx, "grounding off", store, ctrl, tr, &out)
	if store.Snapshot().Grounding {
		t.Fatalf("grounding should be off")
	}

	handleCommand(ctx, "edit-agent", store, ctrl, tr, &out)
	if !store.ModalOpen() {
		t.Fatalf("edit-agent should open a modal")
	}
	handleCommand(ctx, "done", store, ctrl, tr, &out)
	if store.ModalOpen() {
		t.Fatalf("done should close modals")
	}
}

func TestHandleCommand_SayAndQuit(t *testing.T) {
	t.Parallel()

	store, ctrl, tr := testHandleDeps(t)
	var out bytes.Buffer
	ctx := context.Background()

	if cont := handleCommand(ctx, "say hello there", store, ctrl, tr, &out); !cont {
		t.Fatalf("say should continue the loop")
	}
	tr.mu.Lock()
	sends := append([]string(nil), tr.sends...)
	tr.mu.Unlock()
	if len(sends) != 1 || sends[0] != "hello there" {
		t.Fatalf("sends=%v, want [hello there]", sends)
	}

	if cont := handleCommand(ctx, "quit", store, ctrl, tr, &out); cont {
		t.Fatalf("quit should stop the loop")
	}
}

func TestHandleCommand_Unknown(t *testing.T) {
	t.Parallel()

	store, ctrl, tr := testHandleDeps(t)
	var out bytes.Buffer
	handleCommand(context.Background(), "dance", store, ctrl, tr, &out)
	if !strings.Contains(out.String(), "unknown command") {
		t.Fatalf("output=%q, want unknown command message", out.String())
	}
}

func TestInitialProfiles(t *testing.T) {
	t.Parallel()

	agent, user := initialProfiles(config.Config{AgentID: persona.Presets[2].ID, UserName: "Ada"})
	if agent.ID != persona.Presets[2].ID {
		t.Fatalf("agent=%q, want %q", agent.ID, persona.Presets[2].ID)
	}
	if user.Name != "Ada" {
		t.Fatalf("user=%q, want Ada", user.Name)
	}

	agent, _ = initialProfiles(config.Config{AgentID: "nope"})
	if agent.ID != persona.Default().ID {
		t.Fatalf("agent=%q, want default for unknown id", agent.ID)
	}
}

func TestBuildMetricsServer_Routes(t *testing.T) {
	t.Parallel()

	srv := buildMetricsServer("127.0.0.1:0", session.NewMetrics("vai_live_cmd_test"))

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != 200 {
		t.Fatalf("healthz status=%d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("metrics status=%d, want 200", rec.Code)
	}
}

func TestRunMain_ConfigLoadFailure(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	exitCode := runMain(context.Background(), &stderr, appDeps{
		loadConfig: func() (config.Config, error) {
			return config.Config{}, errors.New("boom")
		},
		newTransport: func(ctx context.Context, cfg config.Config, logger *slog.Logger) (liveTransport, error) {
			t.Fatalf("newTransport should not run when config load fails")
			return nil, nil
		},
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {},
		signalStop:   func(c chan<- os.Signal) {},
	})

	if exitCode != 1 {
		t.Fatalf("exitCode=%d, want 1", exitCode)
	}
	if stderr.Len() == 0 {
		t.Fatalf("expected stderr output for startup failure")
	}
}

func TestRunApp_CommandLoopLifecycle(t *testing.T) {
	t.Parallel()

	stub := &stubTransport{status: session.StatusDisconnected}
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelError}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := runApp(ctx, logger, appDeps{
		loadConfig: func() (config.Config, error) {
			return config.Config{
				Backend:          config.BackendGemini,
				GeminiAPIKey:     "sk-test",
				ConnectTimeout:   time.Second,
				MetricsNamespace: "vai_live_run_test",
			}, nil
		},
		newTransport: func(ctx context.Context, cfg config.Config, logger *slog.Logger) (liveTransport, error) {
			return stub, nil
		},
		input:        strings.NewReader("help\nquit\n"),
		output:       &out,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {},
		signalStop:   func(c chan<- os.Signal) {},
	})
	if err != nil {
		t.Fatalf("runApp: %v", err)
	}
	if got := stub.Status(); got != session.StatusDisconnected {
		t.Fatalf("status=%q, want disconnected after shutdown", got)
	}
}
