package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-go/vai-live/pkg/live/session"
)

const defaultGatewayConnectTimeout = 15 * time.Second

// Gateway is a session.Transport speaking the vai gateway live
// websocket protocol: a hello/hello_ack handshake followed by JSON
// frames in both directions.
type Gateway struct {
	notifier

	wsURL  string
	apiKey string
	logger *slog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	readDone chan struct{}

	writeMu sync.Mutex
}

type helloVoice struct {
	Name string `json:"name"`
}

type helloTools struct {
	GoogleSearch bool `json:"google_search,omitempty"`
}

type helloFrame struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	System          string      `json:"system,omitempty"`
	Voice           helloVoice  `json:"voice"`
	Tools           *helloTools `json:"tools,omitempty"`
}

type userTextFrame struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	EndOfTurn bool   `json:"end_of_turn"`
}

type serverFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewGateway creates a gateway transport for the given base URL.
// http(s) schemes are rewritten to ws(s).
func NewGateway(baseURL, apiKey string, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	wsURL, err := websocketEndpoint(baseURL, "/v1/live")
	if err != nil {
		return nil, err
	}
	return &Gateway{wsURL: wsURL, apiKey: apiKey, logger: logger}, nil
}

func websocketEndpoint(baseURL, path string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", fmt.Errorf("invalid gateway base URL: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(u.Scheme)) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
		// already a websocket scheme.
	default:
		return "", fmt.Errorf("gateway base URL must use http(s) or ws(s), got %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	return u.String(), nil
}

// Connect dials the gateway, performs the hello handshake, and starts
// the read loop.
func (g *Gateway) Connect(ctx context.Context, cfg session.Config) error {
	// The lock is held through dial, handshake, and publish so two
	// concurrent Connect calls cannot both pass the nil check.
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn != nil {
		return fmt.Errorf("gateway session already connected")
	}

	headers := make(http.Header)
	if g.apiKey != "" {
		headers.Set("Authorization", "Bearer "+g.apiKey)
	}

	dialCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, defaultGatewayConnectTimeout)
		defer cancel()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, g.wsURL, headers)
	if err != nil {
		if resp != nil {
			return &TransportError{Op: "GET", URL: g.wsURL, Err: fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)}
		}
		return &TransportError{Op: "GET", URL: g.wsURL, Err: err}
	}

	hello := helloFrame{
		Type:            "hello",
		ProtocolVersion: "1",
		System:          cfg.SystemInstruction,
		Voice:           helloVoice{Name: cfg.Voice},
	}
	for _, tool := range cfg.Tools {
		if tool.GoogleSearch != nil {
			hello.Tools = &helloTools{GoogleSearch: true}
		}
	}
	if err := conn.WriteJSON(hello); err != nil {
		_ = conn.Close()
		return fmt.Errorf("send hello: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(defaultGatewayConnectTimeout))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("read hello_ack: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	var first serverFrame
	if err := json.Unmarshal(payload, &first); err != nil {
		_ = conn.Close()
		return fmt.Errorf("decode first frame: %w", err)
	}
	switch first.Type {
	case "hello_ack":
	case "error":
		_ = conn.Close()
		return fmt.Errorf("gateway rejected session: %s (code: %s)", first.Message, first.Code)
	default:
		_ = conn.Close()
		return fmt.Errorf("unexpected first frame type %q", first.Type)
	}

	done := make(chan struct{})
	g.conn = conn
	g.readDone = done

	go g.readLoop(conn, done)
	g.setStatus(session.StatusConnected)
	return nil
}

func (g *Gateway) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.logger.Warn("gateway read ended", "error", err)
			}
			break
		}

		var frame serverFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			g.logger.Warn("undecodable gateway frame", "error", err)
			continue
		}
		switch frame.Type {
		case "error":
			g.Emit("error", frame.Message)
		case "warning":
			g.logger.Warn("gateway warning", "code", frame.Code, "message", frame.Message)
		default:
			// Assistant audio/text frames are consumed by the rendering
			// layer subscribed via Emit.
			g.Emit("message", json.RawMessage(data))
		}
	}

	g.mu.Lock()
	if g.conn == conn {
		g.conn = nil
		g.readDone = nil
	}
	g.mu.Unlock()
	g.setStatus(session.StatusDisconnected)
}

// Disconnect performs a graceful websocket close and waits for the
// read loop to finish, or for ctx to expire.
func (g *Gateway) Disconnect(ctx context.Context) error {
	g.mu.Lock()
	conn := g.conn
	done := g.readDone
	g.conn = nil
	g.readDone = nil
	g.mu.Unlock()

	if conn == nil {
		g.setStatus(session.StatusDisconnected)
		return nil
	}

	g.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
	g.writeMu.Unlock()
	_ = conn.Close()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			g.setStatus(session.StatusDisconnected)
			return ctx.Err()
		}
	}
	g.setStatus(session.StatusDisconnected)
	return nil
}

// Send forwards a user text turn to the gateway.
func (g *Gateway) Send(text string, endOfTurn bool) error {
	g.mu.Lock()
	conn := g.conn
	g.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("gateway session is not connected")
	}

	g.writeMu.Lock()
	defer g.writeMu.Unlock()
	if err := conn.WriteJSON(userTextFrame{Type: "user_text", Text: text, EndOfTurn: endOfTurn}); err != nil {
		return fmt.Errorf("send user text: %w", err)
	}
	return nil
}

var _ session.Transport = (*Gateway)(nil)
