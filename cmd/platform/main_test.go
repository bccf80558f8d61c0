package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/workdesk-hq/platform/internal/app"
)

func TestValidatePort(t *testing.T) {
	for _, port := range []int{0, -1, 65536} {
		if validatePort(port) == nil {
			t.Fatalf("expected error for port %d", port)
		}
	}
	if err := validatePort(8318); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunServeRequiresConfig(t *testing.T) {
	t.Setenv("DB_CONNECTION", "")
	t.Setenv("CONFIG_PATH", "")
	missing := filepath.Join(t.TempDir(), "config.yaml")
	if err := run(context.Background(), []string{"-config", missing}); err == nil {
		t.Fatalf("expected error for missing config")
	}
}

func TestRunInitWritesConfig(t *testing.T) {
	t.Setenv("DB_CONNECTION", "")
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	args := []string{
		"init",
		"-config", cfgPath,
		"-db-path", filepath.Join(dir, "platform.db"),
		"-admin-email", "ops@example.com",
		"-admin-password", "secret123",
	}
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("init: %v", err)
	}
	if !app.ConfigExists(cfgPath) {
		t.Fatalf("expected config file to be written")
	}
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("second init should be a no-op: %v", err)
	}
}
