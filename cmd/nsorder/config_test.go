package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DumpySquare/flipperAgents-sub001/internal/shell/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Config Loading Tests
// =============================================================================

func TestLoadConfig_DefaultValues(t *testing.T) {
	// Clear environment
	clearEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "./data/nsorder.db", cfg.Database.DSN)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)

	assert.Equal(t, 22, cfg.Device.Port)
	assert.Equal(t, "nsroot", cfg.Device.User)
	assert.Equal(t, 10*time.Second, cfg.Device.ConnectTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Device.CommandTimeout)
	assert.Empty(t, cfg.Device.Targets)

	assert.False(t, cfg.Engine.Sanitize)
	assert.True(t, cfg.Engine.StripDeviceNumbers)
	assert.True(t, cfg.Engine.DropAutoServers)
	assert.Equal(t, 4, cfg.Deploy.MaxConcurrent)
}

func TestLoadConfig_FromFile(t *testing.T) {
	clearEnv(t)

	// Create temp config file
	configContent := `
server:
  host: "127.0.0.1"
  port: 9000
  read_timeout: 60s
  write_timeout: 60s
  shutdown_timeout: 15s

database:
  dsn: "/tmp/test.db"

log:
  level: "debug"
  format: "json"

device:
  user: admin
  key_file: /keys/default
  command_timeout: 90s
  targets:
    - name: ns-east
      host: 10.1.0.10
    - name: ns-west
      host: 10.2.0.10
      port: 2222
      user: ops
      password: s3cret

engine:
  sanitize: true
  drop_auto_servers: false

deploy:
  max_concurrent: 2
`
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(configContent), 0644))

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "/tmp/test.db", cfg.Database.DSN)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.Equal(t, "admin", cfg.Device.User)
	assert.Equal(t, 90*time.Second, cfg.Device.CommandTimeout)
	require.Len(t, cfg.Device.Targets, 2)
	assert.Equal(t, TargetConfig{Name: "ns-east", Host: "10.1.0.10"}, cfg.Device.Targets[0])
	assert.Equal(t, "s3cret", cfg.Device.Targets[1].Password)

	assert.True(t, cfg.Engine.Sanitize)
	assert.True(t, cfg.Engine.StripDeviceNumbers)
	assert.False(t, cfg.Engine.DropAutoServers)
	assert.Equal(t, 2, cfg.Deploy.MaxConcurrent)
}

func TestLoadConfig_EnvironmentOverride(t *testing.T) {
	clearEnv(t)

	// Set environment variables
	t.Setenv("NSORDER_SERVER_HOST", "192.168.1.1")
	t.Setenv("NSORDER_SERVER_PORT", "3000")
	t.Setenv("NSORDER_DATABASE_DSN", "/custom/path.db")
	t.Setenv("NSORDER_LOG_LEVEL", "warn")
	t.Setenv("NSORDER_DEVICE_HOST", "10.0.0.10")
	t.Setenv("NSORDER_DEVICE_PASSWORD", "from-env")
	t.Setenv("NSORDER_ENGINE_SANITIZE", "true")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.1", cfg.Server.Host)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "/custom/path.db", cfg.Database.DSN)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "10.0.0.10", cfg.Device.Host)
	assert.Equal(t, "from-env", cfg.Device.Password)
	assert.True(t, cfg.Engine.Sanitize)
}

func TestLoadConfig_DataDirDerivesDSN(t *testing.T) {
	clearEnv(t)

	t.Setenv("NSORDER_DATA_DIR", "/var/lib/nsorder")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/nsorder/nsorder.db", cfg.Database.DSN)
}

func TestLoadConfig_ExplicitDSNOverridesDataDir(t *testing.T) {
	clearEnv(t)

	t.Setenv("NSORDER_DATA_DIR", "/var/lib/nsorder")
	t.Setenv("NSORDER_DATABASE_DSN", "/custom/path.db")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "/custom/path.db", cfg.Database.DSN)
}

func TestLoadConfig_FileNotFound_UsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("/nonexistent/path/config.yaml")
	require.NoError(t, err) // Should not error, just use defaults

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	clearEnv(t)

	// Create invalid config file
	tmpFile := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("invalid: yaml: content: [[["), 0644))

	_, err := LoadConfig(tmpFile)
	assert.Error(t, err)
}

// =============================================================================
// Target Tests
// =============================================================================

func testDeviceConfig() DeviceConfig {
	return DeviceConfig{
		Host:     "10.0.0.10",
		Port:     22,
		User:     "nsroot",
		Password: "default-pw",
		Targets: []TargetConfig{
			{Name: "ns-east", Host: "10.1.0.10"},
			{Name: "ns-west", Host: "10.2.0.10", Port: 2222, User: "ops", KeyFile: "/keys/west"},
		},
	}
}

func TestDeviceConfig_AllTargets(t *testing.T) {
	targets := testDeviceConfig().AllTargets()
	require.Len(t, targets, 3)

	assert.Equal(t, device.Target{Name: "default", Host: "10.0.0.10", Port: 22, User: "nsroot", Password: "default-pw"}, targets[0])
	assert.Equal(t, device.Target{Name: "ns-east", Host: "10.1.0.10", Port: 22, User: "nsroot", Password: "default-pw"}, targets[1])
	assert.Equal(t, device.Target{Name: "ns-west", Host: "10.2.0.10", Port: 2222, User: "ops", Password: "default-pw", KeyFile: "/keys/west"}, targets[2])
}

func TestDeviceConfig_ResolveTargets(t *testing.T) {
	cfg := testDeviceConfig()

	targets, err := cfg.ResolveTargets(nil)
	require.NoError(t, err)
	assert.Len(t, targets, 3)

	targets, err = cfg.ResolveTargets([]string{"ns-west", "ns-east"})
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "ns-west", targets[0].Name)
	assert.Equal(t, "ns-east", targets[1].Name)

	_, err = cfg.ResolveTargets([]string{"ns-north"})
	assert.ErrorContains(t, err, `unknown target "ns-north"`)
}

func TestDeviceConfig_NoTargets(t *testing.T) {
	_, err := DeviceConfig{}.ResolveTargets(nil)
	assert.ErrorIs(t, err, errNoTargets)
}

func TestSelectTargets_AdHocHost(t *testing.T) {
	cfg := testDeviceConfig()

	targets, err := selectTargets(cfg, nil, "192.0.2.7")
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, device.Target{Name: "192.0.2.7", Host: "192.0.2.7", Port: 22, User: "nsroot", Password: "default-pw"}, targets[0])

	targets, err = selectTargets(cfg, []string{"ns-east"}, "192.0.2.7")
	require.NoError(t, err)
	assert.Len(t, targets, 2)
}

// =============================================================================
// Logger Setup Tests
// =============================================================================

func TestSetupLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{Log: LogConfig{Level: "info", Format: "json"}}

	logger := SetupLogger(cfg, &buf)
	logger.Info("hello")

	assert.True(t, strings.HasPrefix(buf.String(), "{"), buf.String())
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}

func TestSetupLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := &Config{Log: LogConfig{Level: "info", Format: "text"}}

	logger := SetupLogger(cfg, &buf)
	logger.Info("hello")

	assert.Contains(t, buf.String(), "INFO")
	assert.Contains(t, buf.String(), "hello")
	assert.False(t, strings.HasPrefix(buf.String(), "{"))
}

func TestSetupLogger_Levels(t *testing.T) {
	tests := []struct {
		level     string
		debugSeen bool
		infoSeen  bool
		warnSeen  bool
	}{
		{"debug", true, true, true},
		{"info", false, true, true},
		{"warn", false, false, true},
		{"error", false, false, false},
		{"invalid", false, true, true}, // Falls back to info
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := SetupLogger(&Config{Log: LogConfig{Level: tt.level, Format: "json"}}, &buf)
			logger.Debug("debug-msg")
			logger.Info("info-msg")
			logger.Warn("warn-msg")

			assert.Equal(t, tt.debugSeen, strings.Contains(buf.String(), "debug-msg"))
			assert.Equal(t, tt.infoSeen, strings.Contains(buf.String(), "info-msg"))
			assert.Equal(t, tt.warnSeen, strings.Contains(buf.String(), "warn-msg"))
		})
	}
}

// =============================================================================
// Config Validation Tests
// =============================================================================

func TestConfig_Address(t *testing.T) {
	cfg := &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
	}

	assert.Equal(t, "localhost:8080", cfg.Server.Address())
}

// =============================================================================
// Test Helpers
// =============================================================================

func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"NSORDER_SERVER_HOST",
		"NSORDER_SERVER_PORT",
		"NSORDER_DATABASE_DSN",
		"NSORDER_DATA_DIR",
		"NSORDER_LOG_LEVEL",
		"NSORDER_LOG_FORMAT",
		"NSORDER_DEVICE_HOST",
		"NSORDER_DEVICE_PASSWORD",
		"NSORDER_ENGINE_SANITIZE",
	}
	for _, v := range envVars {
		// Setenv registers restoration; Unsetenv then clears it for this test.
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}
