package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.Auth.AccessTTL.Std() != 15*time.Minute {
		t.Fatalf("unexpected access ttl: %v", cfg.Auth.AccessTTL)
	}
}

func TestLoadFileWithEnvExpansion(t *testing.T) {
	t.Setenv("TEST_RB_SECRET", "from-env")
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  addr: ":9999"
  rate_burst: 10
  rate_per_second: 5
auth:
  secret: "${TEST_RB_SECRET}"
  access_ttl: "30m"
postgres:
  dsn: "postgres://localhost/ratebench"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9999" {
		t.Fatalf("file value not applied: %s", cfg.Server.Addr)
	}
	if cfg.Auth.Secret != "from-env" {
		t.Fatalf("env expansion failed: %q", cfg.Auth.Secret)
	}
	if cfg.Auth.AccessTTL.Std() != 30*time.Minute {
		t.Fatalf("duration not parsed: %v", cfg.Auth.AccessTTL.Std())
	}
	if cfg.Postgres.DSN != "postgres://localhost/ratebench" {
		t.Fatalf("dsn not applied: %s", cfg.Postgres.DSN)
	}
}

func TestEnvOverridesBeatFile(t *testing.T) {
	t.Setenv("RATEBENCH_ADDR", ":7777")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":7777" {
		t.Fatalf("env override ignored: %s", cfg.Server.Addr)
	}
}

func TestLoadRejectsInvalidRates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  addr: \":1\"\n  rate_burst: -1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}
