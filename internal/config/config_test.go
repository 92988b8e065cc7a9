package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
port: "8080"
databaseURL: "postgres://autohaus:p@localhost:5432/autohaus"
logLevel: debug
maxUploadBytes: 1048576
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("port: got %q", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("logLevel: got %q", cfg.LogLevel)
	}
	if cfg.MaxUploadBytes != 1048576 {
		t.Fatalf("maxUploadBytes: got %d", cfg.MaxUploadBytes)
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	path := writeConfig(t, `
port: "8080"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing databaseURL")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, `
port: "8080"
databaseURL: "postgres://from-file"
`)
	t.Setenv("DATABASE_URL", "postgres://from-env")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://from-env" {
		t.Fatalf("databaseURL: got %q, want env override", cfg.DatabaseURL)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
