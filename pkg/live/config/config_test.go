package config

import (
	"testing"
	"time"
)

func TestLoadFromEnv_GeminiDefaults(t *testing.T) {
	t.Setenv("VAI_LIVE_BACKEND", "")
	t.Setenv("GEMINI_API_KEY", "sk-gemini")
	t.Setenv("VAI_LIVE_CONNECT_TIMEOUT", "")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Backend != BackendGemini {
		t.Fatalf("Backend=%q, want gemini", cfg.Backend)
	}
	if cfg.ConnectTimeout != 15*time.Second {
		t.Fatalf("ConnectTimeout=%v, want 15s", cfg.ConnectTimeout)
	}
	if cfg.MetricsNamespace != "vai_live" {
		t.Fatalf("MetricsNamespace=%q, want vai_live", cfg.MetricsNamespace)
	}
}

func TestLoadFromEnv_GeminiRequiresKey(t *testing.T) {
	t.Setenv("VAI_LIVE_BACKEND", "gemini")
	t.Setenv("GEMINI_API_KEY", "")

	if _, err := LoadFromEnv(); err == nil {
		t.Fatalf("expected missing GEMINI_API_KEY error")
	}
}

func TestLoadFromEnv_GatewayRequiresURL(t *testing.T) {
	t.Setenv("VAI_LIVE_BACKEND", "gateway")
	t.Setenv("VAI_LIVE_GATEWAY_URL", "")

	if _, err := LoadFromEnv(); err == nil {
		t.Fatalf("expected missing VAI_LIVE_GATEWAY_URL error")
	}
}

func TestLoadFromEnv_Gateway(t *testing.T) {
	t.Setenv("VAI_LIVE_BACKEND", "gateway")
	t.Setenv("VAI_LIVE_GATEWAY_URL", "https://gw.example.com")
	t.Setenv("VAI_LIVE_GATEWAY_API_KEY", "sk-gw")
	t.Setenv("VAI_LIVE_CONNECT_TIMEOUT", "5s")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.GatewayURL != "https://gw.example.com" || cfg.GatewayAPIKey != "sk-gw" {
		t.Fatalf("gateway config=%+v", cfg)
	}
	if cfg.ConnectTimeout != 5*time.Second {
		t.Fatalf("ConnectTimeout=%v, want 5s", cfg.ConnectTimeout)
	}
}

func TestLoadFromEnv_UnknownBackend(t *testing.T) {
	t.Setenv("VAI_LIVE_BACKEND", "carrier-pigeon")

	if _, err := LoadFromEnv(); err == nil {
		t.Fatalf("expected unknown backend error")
	}
}

func TestEnvDurationOr_BadValueFallsBack(t *testing.T) {
	t.Setenv("VAI_LIVE_CONNECT_TIMEOUT", "soon")
	t.Setenv("VAI_LIVE_BACKEND", "gemini")
	t.Setenv("GEMINI_API_KEY", "sk")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.ConnectTimeout != 15*time.Second {
		t.Fatalf("ConnectTimeout=%v, want default on parse failure", cfg.ConnectTimeout)
	}
}
