package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"google.golang.org/genai"

	"github.com/vango-go/vai-live/pkg/live/session"
)

// DefaultGeminiModel is the live model used when none is configured.
const DefaultGeminiModel = "gemini-2.0-flash-live-001"

// Gemini is a session.Transport backed by the Gemini Live API.
type Gemini struct {
	notifier

	client *genai.Client
	model  string
	logger *slog.Logger

	mu       sync.Mutex
	session  *genai.Session
	recvDone chan struct{}
}

// NewGemini creates a Gemini live transport. model may be empty to use
// DefaultGeminiModel.
func NewGemini(ctx context.Context, apiKey, model string, logger *slog.Logger) (*Gemini, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{client: client, model: model, logger: logger}, nil
}

// Connect opens a live session with the given configuration and starts
// the receive loop.
func (g *Gemini) Connect(ctx context.Context, cfg session.Config) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.session != nil {
		return fmt.Errorf("live session already connected")
	}

	connectCfg := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: cfg.SystemInstruction}},
		},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: cfg.Voice},
			},
		},
	}
	for _, tool := range cfg.Tools {
		if tool.GoogleSearch != nil {
			connectCfg.Tools = append(connectCfg.Tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
		}
	}

	sess, err := g.client.Live.Connect(ctx, g.model, connectCfg)
	if err != nil {
		return fmt.Errorf("connect live session: %w", err)
	}

	done := make(chan struct{})
	g.session = sess
	g.recvDone = done
	go g.receiveLoop(sess, done)
	g.setStatus(session.StatusConnected)
	return nil
}

func (g *Gemini) receiveLoop(sess *genai.Session, done chan struct{}) {
	defer close(done)
	for {
		msg, err := sess.Receive()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
				g.logger.Warn("live receive ended", "error", err)
				g.Emit("error", err.Error())
			}
			break
		}
		if msg == nil {
			continue
		}
		// Audio and transcript payloads are handled by the rendering
		// layer subscribed via Emit.
		g.Emit("message", msg)
	}

	g.mu.Lock()
	if g.session == sess {
		g.session = nil
		g.recvDone = nil
	}
	g.mu.Unlock()
	g.setStatus(session.StatusDisconnected)
}

// Disconnect closes the live session and waits for the receive loop to
// drain, or for ctx to expire.
func (g *Gemini) Disconnect(ctx context.Context) error {
	g.mu.Lock()
	sess := g.session
	done := g.recvDone
	g.session = nil
	g.recvDone = nil
	g.mu.Unlock()

	if sess == nil {
		g.setStatus(session.StatusDisconnected)
		return nil
	}

	closeErr := sess.Close()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			g.setStatus(session.StatusDisconnected)
			return ctx.Err()
		}
	}
	g.setStatus(session.StatusDisconnected)
	if closeErr != nil {
		return fmt.Errorf("close live session: %w", closeErr)
	}
	return nil
}

// Send forwards a text turn to the live session.
func (g *Gemini) Send(text string, endOfTurn bool) error {
	g.mu.Lock()
	sess := g.session
	g.mu.Unlock()
	if sess == nil {
		return fmt.Errorf("live session is not connected")
	}

	err := sess.SendClientContent(genai.LiveClientContentInput{
		Turns: []*genai.Content{
			{Role: genai.RoleUser, Parts: []*genai.Part{{Text: text}}},
		},
		TurnComplete: genai.Ptr(endOfTurn),
	})
	if err != nil {
		return fmt.Errorf("send client content: %w", err)
	}
	return nil
}

var _ session.Transport = (*Gemini)(nil)
