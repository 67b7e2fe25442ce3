// Package config loads the live client configuration from the
// environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Backend selects which transport the client runs against.
type Backend string

const (
	BackendGemini  Backend = "gemini"
	BackendGateway Backend = "gateway"
)

type Config struct {
	Backend Backend

	// Gemini Live backend.
	GeminiAPIKey string
	GeminiModel  string

	// vai gateway backend.
	GatewayURL    string
	GatewayAPIKey string

	// Initial profiles.
	AgentID  string
	UserName string

	ConnectTimeout time.Duration

	// Operational HTTP listener (/metrics, /healthz). Empty disables it.
	MetricsAddr      string
	MetricsNamespace string
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Backend:          Backend(strings.ToLower(envOr("VAI_LIVE_BACKEND", string(BackendGemini)))),
		GeminiAPIKey:     envOr("GEMINI_API_KEY", ""),
		GeminiModel:      envOr("VAI_LIVE_GEMINI_MODEL", ""),
		GatewayURL:       envOr("VAI_LIVE_GATEWAY_URL", ""),
		GatewayAPIKey:    envOr("VAI_LIVE_GATEWAY_API_KEY", ""),
		AgentID:          envOr("VAI_LIVE_AGENT", ""),
		UserName:         envOr("VAI_LIVE_USER_NAME", ""),
		ConnectTimeout:   envDurationOr("VAI_LIVE_CONNECT_TIMEOUT", 15*time.Second),
		MetricsAddr:      envOr("VAI_LIVE_METRICS_ADDR", ""),
		MetricsNamespace: envOr("VAI_LIVE_METRICS_NAMESPACE", "vai_live"),
	}

	switch cfg.Backend {
	case BackendGemini:
		if cfg.GeminiAPIKey == "" {
			return Config{}, fmt.Errorf("GEMINI_API_KEY is required for the gemini backend")
		}
	case BackendGateway:
		if cfg.GatewayURL == "" {
			return Config{}, fmt.Errorf("VAI_LIVE_GATEWAY_URL is required for the gateway backend")
		}
	default:
		return Config{}, fmt.Errorf("unknown backend %q (expected gemini or gateway)", cfg.Backend)
	}

	if cfg.ConnectTimeout <= 0 {
		return Config{}, fmt.Errorf("VAI_LIVE_CONNECT_TIMEOUT must be positive")
	}
	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
