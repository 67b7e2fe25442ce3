// vai-live is a terminal client for a live conversational-agent
// session. It keeps one streaming connection synchronized with persona
// and settings edits typed on stdin, reconnecting as needed.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vango-go/vai-live/pkg/live/config"
	"github.com/vango-go/vai-live/pkg/live/persona"
	"github.com/vango-go/vai-live/pkg/live/session"
	"github.com/vango-go/vai-live/pkg/live/state"
	"github.com/vango-go/vai-live/pkg/live/transport"
)

// liveTransport is what the app needs beyond the controller-facing
// transport contract: callback registration done at wiring time.
type liveTransport interface {
	session.Transport
	SetOnStatusChange(transport.StatusFunc)
	SetOnEmit(transport.EmitFunc)
}

type appDeps struct {
	loadConfig   func() (config.Config, error)
	newTransport func(ctx context.Context, cfg config.Config, logger *slog.Logger) (liveTransport, error)
	input        io.Reader
	output       io.Writer
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultDeps() appDeps {
	return appDeps{
		loadConfig:   config.LoadFromEnv,
		newTransport: newTransport,
		input:        os.Stdin,
		output:       os.Stdout,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

func newTransport(ctx context.Context, cfg config.Config, logger *slog.Logger) (liveTransport, error) {
	switch cfg.Backend {
	case config.BackendGemini:
		return transport.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
	case config.BackendGateway:
		return transport.NewGateway(cfg.GatewayURL, cfg.GatewayAPIKey, logger)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func initialProfiles(cfg config.Config) (persona.AgentProfile, persona.UserProfile) {
	agent := persona.Default()
	if cfg.AgentID != "" {
		if preset, ok := persona.ByID(cfg.AgentID); ok {
			agent = preset
		}
	}
	return agent, persona.UserProfile{Name: cfg.UserName}
}

func buildMetricsServer(addr string, metrics *session.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// handleCommand applies one typed command to the shared state. It
// returns false when the user asked to quit.
func handleCommand(ctx context.Context, line string, store *state.Store, ctrl *session.Controller, tr session.Transport, out io.Writer) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "quit", "exit":
		return false
	case "help":
		fmt.Fprintln(out, `commands:
  agents                 list personas
  agent <id>             switch persona
  voice <name>           change the active persona's voice
  user <name>            set your name
  info <text>            set what the agent knows about you
  grounding on|off       toggle search grounding
  edit-agent, edit-user  open a settings modal (disconnects)
  done                   close settings modals (reconnects)
  say <text>             send a text turn
  start, stop            connect / disconnect
  quit`)
	case "agents":
		for _, preset := range persona.Presets {
			fmt.Fprintf(out, "  %s\t%s (voice %s)\n", preset.ID, preset.Name, preset.Voice)
		}
	case "agent":
		if len(args) != 1 {
			fmt.Fprintln(out, "usage: agent <id>")
			return true
		}
		preset, ok := persona.ByID(args[0])
		if !ok {
			fmt.Fprintf(out, "unknown agent %q\n", args[0])
			return true
		}
		store.SetAgent(preset)
	case "voice":
		if len(args) != 1 || !persona.IsValidVoice(args[0]) {
			fmt.Fprintf(out, "usage: voice <%s>\n", strings.Join(persona.Voices, "|"))
			return true
		}
		agent := store.Agent()
		agent.Voice = args[0]
		store.SetAgent(agent)
	case "user":
		user := store.User()
		user.Name = strings.Join(args, " ")
		store.SetUser(user)
	case "info":
		user := store.User()
		user.Info = strings.Join(args, " ")
		store.SetUser(user)
	case "grounding":
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			fmt.Fprintln(out, "usage: grounding on|off")
			return true
		}
		store.SetGrounding(args[0] == "on")
	case "edit-agent":
		store.SetAgentModalOpen(true)
	case "edit-user":
		store.SetUserModalOpen(true)
	case "done":
		store.SetAgentModalOpen(false)
		store.SetUserModalOpen(false)
	case "say":
		if err := tr.Send(strings.Join(args, " "), true); err != nil {
			fmt.Fprintf(out, "send failed: %v\n", err)
		}
	case "start":
		ctrl.Start(ctx)
	case "stop":
		ctrl.Stop(ctx)
	default:
		fmt.Fprintf(out, "unknown command %q (try help)\n", cmd)
	}
	return true
}

func runApp(ctx context.Context, logger *slog.Logger, deps appDeps) error {
	if deps.loadConfig == nil || deps.newTransport == nil {
		return errors.New("missing config or transport dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if deps.output == nil {
		deps.output = io.Discard
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	tr, err := deps.newTransport(runCtx, cfg, logger)
	if err != nil {
		return fmt.Errorf("create transport: %w", err)
	}

	agent, user := initialProfiles(cfg)
	store := state.NewStore(agent, user)
	tr.SetOnStatusChange(store.SetStatus)
	tr.SetOnEmit(func(event string, payload any) {
		switch event {
		case "error":
			logger.Error("session error", "detail", payload)
			fmt.Fprintf(deps.output, "! %v\n", payload)
		case "message":
			// Rendering of assistant turns is out of scope here.
		default:
			logger.Debug("session event", "event", event)
		}
	})

	metrics := session.NewMetrics(cfg.MetricsNamespace)
	ctrl := session.NewController(store, tr, logger, metrics)

	logger.Info("starting live client", "backend", cfg.Backend, "agent", agent.ID)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ctrl.Run(runCtx)
	}()

	if cfg.MetricsAddr != "" {
		metricsSrv := buildMetricsServer(cfg.MetricsAddr, metrics)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics listener failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	inputDone := make(chan struct{})
	if deps.input != nil {
		go func() {
			defer close(inputDone)
			scanner := bufio.NewScanner(deps.input)
			for scanner.Scan() {
				if !handleCommand(runCtx, scanner.Text(), store, ctrl, tr, deps.output) {
					return
				}
			}
		}()
	}

	ctrl.Start(runCtx)

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case <-runCtx.Done():
	case <-inputDone:
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer stopCancel()
	ctrl.Stop(stopCtx)

	cancel()
	wg.Wait()
	logger.Info("live client stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps appDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(stderr, "vai-live: load .env: %v\n", err)
		return 1
	}

	if err := runApp(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "vai-live: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultDeps()))
}
