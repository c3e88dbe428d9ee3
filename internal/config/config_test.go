package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Port != "5000" {
		t.Fatalf("expected default port 5000, got %q", cfg.Port)
	}
	if cfg.SessionTTLHours != 24 {
		t.Fatalf("expected default session TTL 24, got %d", cfg.SessionTTLHours)
	}
	if cfg.CORSAllowOrigin != "*" {
		t.Fatalf("expected default CORS origin *, got %q", cfg.CORSAllowOrigin)
	}
	if cfg.OTELEndpoint != "" || cfg.OTELInsecure {
		t.Fatalf("expected tracing off by default, got %q insecure=%v", cfg.OTELEndpoint, cfg.OTELInsecure)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("SESSION_TTL_HOURS", "48")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "true")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected port 8080, got %q", cfg.Port)
	}
	if cfg.SessionTTLHours != 48 {
		t.Fatalf("expected session TTL 48, got %d", cfg.SessionTTLHours)
	}
	if cfg.OTELEndpoint != "collector:4317" {
		t.Fatalf("expected endpoint collector:4317, got %q", cfg.OTELEndpoint)
	}
	if !cfg.OTELInsecure {
		t.Fatal("expected insecure tracing enabled")
	}
}

func TestReadIntIgnoresGarbage(t *testing.T) {
	t.Setenv("SESSION_TTL_HOURS", "not-a-number")
	cfg := Load()
	if cfg.SessionTTLHours != 24 {
		t.Fatalf("expected fallback 24, got %d", cfg.SessionTTLHours)
	}
}
