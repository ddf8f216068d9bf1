package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
			t.Errorf("unexpected log defaults: %+v", cfg.Log)
		}
		if cfg.LLM.Provider != "anthropic" {
			t.Errorf("unexpected provider default: %q", cfg.LLM.Provider)
		}
		if cfg.Experts.Dir != "experts" {
			t.Errorf("unexpected experts dir default: %q", cfg.Experts.Dir)
		}
		if cfg.Audit.Enabled {
			t.Error("audit should default to disabled")
		}
		if cfg.Telemetry.Exporter != "stdout" {
			t.Errorf("unexpected telemetry default: %q", cfg.Telemetry.Exporter)
		}
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sage.yaml")
		yaml := `
log:
  level: debug
  format: json
llm:
  provider: ollama
  model: llama3
experts:
  dir: /var/lib/sage/experts
audit:
  enabled: true
`
		if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
			t.Fatal(err)
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
			t.Errorf("file values not applied: %+v", cfg.Log)
		}
		if cfg.LLM.Provider != "ollama" || cfg.LLM.Model != "llama3" {
			t.Errorf("file values not applied: %+v", cfg.LLM)
		}
		if cfg.Experts.Dir != "/var/lib/sage/experts" {
			t.Errorf("file values not applied: %q", cfg.Experts.Dir)
		}
		if !cfg.Audit.Enabled {
			t.Error("file values not applied: audit.enabled")
		}
	})

	t.Run("env has highest precedence", func(t *testing.T) {
		t.Setenv("SAGE_LLM_API_KEY", "sk-test-123")
		t.Setenv("SAGE_LOG_LEVEL", "warn")

		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.LLM.APIKey != "sk-test-123" {
			t.Errorf("SAGE_LLM_API_KEY should map to llm.api_key, got %q", cfg.LLM.APIKey)
		}
		if cfg.Log.Level != "warn" {
			t.Errorf("SAGE_LOG_LEVEL should map to log.level, got %q", cfg.Log.Level)
		}
	})
}

func TestCredential(t *testing.T) {
	anthropic := &Config{LLM: LLMConfig{Provider: "anthropic", APIKey: "sk-key"}}
	if anthropic.Credential() != "sk-key" {
		t.Errorf("anthropic credential = %q", anthropic.Credential())
	}

	missing := &Config{LLM: LLMConfig{Provider: "anthropic"}}
	if missing.Credential() != "" {
		t.Error("missing key should yield an empty credential so engines fail fast")
	}

	ollama := &Config{LLM: LLMConfig{Provider: "ollama"}}
	if ollama.Credential() == "" {
		t.Error("ollama needs no key and should always pass the credential check")
	}
}
