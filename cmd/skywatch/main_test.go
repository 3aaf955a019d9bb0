package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("SKYWATCH_CONFIG")
	defer os.Setenv("SKYWATCH_CONFIG", originalEnv)

	os.Setenv("SKYWATCH_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingDatabasePath verifies run fails when database path is invalid.
func TestRun_MissingDatabasePath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
site:
  id: test-site

database:
  path: ""
  wal_mode: true
  busy_timeout: 5

mqtt:
  broker:
    host: "127.0.0.1"
    port: 1883
    client_id: "test-client"
    tls: false
  qos: 1
  topic_root: iot
  reconnect:
    close_delay: 10
    error_delay: 15
    panic_delay: 30

influxdb:
  enabled: false

logging:
  level: info
  format: text
  output: stdout

api:
  host: "127.0.0.1"
  port: 8080
  timeouts:
    read: 30
    write: 60
    idle: 120

security:
  jwt:
    secret: "test-secret-for-development-only"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("SKYWATCH_CONFIG")
	defer os.Setenv("SKYWATCH_CONFIG", originalEnv)
	os.Setenv("SKYWATCH_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("SKYWATCH_CONFIG")
	defer os.Setenv("SKYWATCH_CONFIG", originalEnv)

	os.Unsetenv("SKYWATCH_CONFIG")

	path := getConfigPath()
	if path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("SKYWATCH_CONFIG")
	defer os.Setenv("SKYWATCH_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("SKYWATCH_CONFIG", expected)

	path := getConfigPath()
	if path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// TestRun_StartupAndShutdown runs the full stack against a temporary
// database and an unused broker port. The MQTT supervisor retries in the
// background, so an unreachable broker must not abort startup.
func TestRun_StartupAndShutdown(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")
	dbPath := filepath.Join(tmpDir, "test.db")

	configContent := `
site:
  id: test-site

database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

mqtt:
  broker:
    host: "127.0.0.1"
    port: 19999
    client_id: "test-startup-shutdown"
    tls: false
  qos: 1
  topic_root: iot
  reconnect:
    close_delay: 10
    error_delay: 15
    panic_delay: 30

influxdb:
  enabled: false

liveness:
  sweep_interval: 60
  stale_after: 120

logging:
  level: info
  format: text
  output: stdout

api:
  host: "127.0.0.1"
  port: 18099
  timeouts:
    read: 30
    write: 60
    idle: 120

security:
  jwt:
    secret: "test-secret-for-development-only"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("SKYWATCH_CONFIG")
	defer os.Setenv("SKYWATCH_CONFIG", originalEnv)
	os.Setenv("SKYWATCH_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Errorf("run() error = %v, want clean shutdown", err)
	}
}
