package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "itemart.yaml")
	data := []byte(`
server:
  composite_path: composite
  secret_key: hunter2
locator:
  strategy: shard
  shard:
    repositories: 3
    probe_timeout: 2s
    parallelism: 4
compose:
  policy: fit-box
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.CompositePath != "composite" {
		t.Errorf("composite path = %q", cfg.Server.CompositePath)
	}
	if cfg.Locator.Shard.Repositories != 3 {
		t.Errorf("repositories = %d", cfg.Locator.Shard.Repositories)
	}
	if cfg.Locator.Shard.ProbeTimeout != 2*time.Second {
		t.Errorf("probe timeout = %v", cfg.Locator.Shard.ProbeTimeout)
	}
	if cfg.Compose.Policy != PolicyFitBox {
		t.Errorf("policy = %q", cfg.Compose.Policy)
	}
	// untouched keys keep their defaults
	if cfg.Backgrounds.Default != "Default.png" {
		t.Errorf("default background = %q", cfg.Backgrounds.Default)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PORT":               "9090",
		"ITEMART_SECRET_KEY": "s3cret",
		"ITEMART_STRATEGY":   "direct",
		"ITEMART_CATALOG":    "",
	}
	cfg := Default()
	cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if cfg.Server.Port != "9090" || cfg.Server.SecretKey != "s3cret" || cfg.Locator.Strategy != "direct" {
		t.Errorf("env not applied: %+v", cfg.Server)
	}
	if cfg.Catalog.Path != "main.json" {
		t.Errorf("empty env value overrode catalog path: %q", cfg.Catalog.Path)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown strategy", func(c *Config) { c.Locator.Strategy = "guess" }},
		{"unknown policy", func(c *Config) { c.Compose.Policy = "stretch" }},
		{"no repositories", func(c *Config) { c.Locator.Shard.Repositories = 0 }},
		{"shard template without id", func(c *Config) { c.Locator.Shard.Template = "https://x/{repo}" }},
		{"direct template without id", func(c *Config) {
			c.Locator.Strategy = StrategyDirect
			c.Locator.DirectTemplate = "https://x/"
		}},
		{"empty composite path", func(c *Config) { c.Server.CompositePath = "/" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
