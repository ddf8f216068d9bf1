// Package config loads Sage configuration from defaults, an optional YAML
// file and SAGE_-prefixed environment variables, in that precedence order.
package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Log       LogConfig       `koanf:"log"`
	LLM       LLMConfig       `koanf:"llm"`
	Experts   ExpertsConfig   `koanf:"experts"`
	Audit     AuditConfig     `koanf:"audit"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type LLMConfig struct {
	Provider string `koanf:"provider"` // anthropic, ollama
	Model    string `koanf:"model"`
	BaseURL  string `koanf:"base_url"`
	APIKey   string `koanf:"api_key"`
}

type ExpertsConfig struct {
	// Dir is where expert descriptors are written and looked up.
	Dir string `koanf:"dir"`
}

type AuditConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

// Credential returns the planner credential for the configured provider.
// Ollama needs none, so any non-empty placeholder satisfies fail-fast checks.
func (c *Config) Credential() string {
	if strings.EqualFold(c.LLM.Provider, "ollama") {
		return "local"
	}
	return c.LLM.APIKey
}

// Global k instance
var k = koanf.New(".")

func Load(path string) (*Config, error) {
	// Defaults
	k.Set("log.level", "info")
	k.Set("log.format", "text")
	k.Set("llm.provider", "anthropic")
	k.Set("llm.model", "")
	k.Set("llm.base_url", "")
	k.Set("experts.dir", "experts")
	k.Set("audit.enabled", false)
	k.Set("audit.path", "sage-audit.db")
	k.Set("telemetry.exporter", "stdout")

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. Load from ENV (SAGE_LLM_API_KEY -> llm.api_key). Only the first
	// underscore separates the section from the key.
	if err := k.Load(env.Provider("SAGE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "SAGE_")), "_", ".", 1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
