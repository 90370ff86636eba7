package config

import (
	"strings"
	"testing"
)

type envTestConfig struct {
	Port    int    `env:"TEST_PORT" envDefault:"123"`
	RootID  string `env:"TEST_ROOT_ID" envDefault:"root"`
	Enabled bool   `env:"TEST_ENABLED"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("Port = %d, want 123", cfg.Port)
	}
	if cfg.RootID != "root" {
		t.Fatalf("RootID = %q, want %q", cfg.RootID, "root")
	}
}

func TestParseEnvReadsPrefixedVariables(t *testing.T) {
	t.Setenv("LIVEPREVIEW_TEST_ROOT_ID", "content")
	t.Setenv("LIVEPREVIEW_TEST_ENABLED", "true")
	t.Setenv("TEST_PORT", "999")

	var cfg envTestConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.RootID != "content" {
		t.Fatalf("RootID = %q, want %q", cfg.RootID, "content")
	}
	if !cfg.Enabled {
		t.Fatal("Enabled = false, want true")
	}
	if cfg.Port != 123 {
		t.Fatalf("Port = %d, want unprefixed variable ignored", cfg.Port)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("LIVEPREVIEW_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
