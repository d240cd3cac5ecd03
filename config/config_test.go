package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

const sample = `
target:
  url: jdbc:mysql://localhost/hello_world
  driver: com.mysql.jdbc.Driver
  user: benchmarkdbuser
  password: benchmarkdbpass
pool:
  max_open_conns: 16
  wait_timeout: 5s
  test_on_borrow: true
log:
  level: info
  format: json
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leasedb.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Target.User != "benchmarkdbuser" || cfg.Target.Driver != "com.mysql.jdbc.Driver" {
		t.Errorf("unexpected target %+v", cfg.Target)
	}
	if cfg.Pool.MaxOpenConns != 16 || cfg.Pool.WaitTimeout != 5*time.Second || !cfg.Pool.TestOnBorrow {
		t.Errorf("unexpected pool %+v", cfg.Pool)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("unexpected log %+v", cfg.Log)
	}

	target, err := cfg.ResolveTarget()
	if err != nil {
		t.Fatalf("ResolveTarget failed: %v", err)
	}
	if target.Password != "benchmarkdbpass" {
		t.Errorf("password = %q", target.Password)
	}

	opts := cfg.Options(nil)
	if opts.MaxOpenConns != 16 || opts.WaitTimeout != 5*time.Second {
		t.Errorf("unexpected options %+v", opts)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LEASEDB_TARGET_URL", "localhost/world")
	t.Setenv("LEASEDB_POOL_MAX_OPEN_CONNS", "3")
	t.Setenv("LEASEDB_POOL_WAIT_TIMEOUT", "250ms")

	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Target.URL != "localhost/world" {
		t.Errorf("url = %q", cfg.Target.URL)
	}
	if cfg.Pool.MaxOpenConns != 3 || cfg.Pool.WaitTimeout != 250*time.Millisecond {
		t.Errorf("unexpected pool %+v", cfg.Pool)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Pool.MaxOpenConns != 8 || cfg.Log.Level != "warn" || cfg.Target.KeyringService != "leasedb" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if _, err := cfg.ResolveTarget(); !errors.Is(err, ErrNoTarget) {
		t.Errorf("expected ErrNoTarget, got %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestKeyringPassword(t *testing.T) {
	keyring.MockInit()
	if err := keyring.Set("leasedb", "app", "s3cret"); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(writeConfig(t, `
target:
  url: db.example.com/app
  driver: postgres
  user: app
  password_from_keyring: true
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	target, err := cfg.ResolveTarget()
	if err != nil {
		t.Fatalf("ResolveTarget failed: %v", err)
	}
	if target.Password != "s3cret" {
		t.Errorf("password = %q, want keyring value", target.Password)
	}

	cfg.Target.User = "nobody"
	if _, err := cfg.ResolveTarget(); !errors.Is(err, keyring.ErrNotFound) {
		t.Errorf("expected keyring.ErrNotFound, got %v", err)
	}
}

func TestLoadInvalid(t *testing.T) {
	_, err := Load(writeConfig(t, `
pool:
  max_open_conns: 0
log:
  format: xml
`))
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"Pool.MaxOpenConns", "Log.Format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should name %s", err, want)
		}
	}
}
