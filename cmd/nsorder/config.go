package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/DumpySquare/flipperAgents-sub001/internal/core/sanitize"
	"github.com/DumpySquare/flipperAgents-sub001/internal/shell/device"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Device   DeviceConfig   `mapstructure:"device"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Deploy   DeployConfig   `mapstructure:"deploy"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds run history configuration.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DeviceConfig holds appliance connection settings. Host, port, user,
// password and key file are defaults for every entry in Targets; a non-empty
// Host also defines a target named "default".
type DeviceConfig struct {
	Host           string         `mapstructure:"host"`
	Port           int            `mapstructure:"port"`
	User           string         `mapstructure:"user"`
	Password       string         `mapstructure:"password"`
	KeyFile        string         `mapstructure:"key_file"`
	ConnectTimeout time.Duration  `mapstructure:"connect_timeout"`
	CommandTimeout time.Duration  `mapstructure:"command_timeout"`
	Targets        []TargetConfig `mapstructure:"targets"`
}

// TargetConfig names one appliance.
type TargetConfig struct {
	Name     string `mapstructure:"name"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	KeyFile  string `mapstructure:"key_file"`
}

// EngineConfig controls the optional sanitize pass.
type EngineConfig struct {
	// Sanitize runs the sanitize pass before reorder, analyze and deploy.
	Sanitize bool `mapstructure:"sanitize"`

	StripDeviceNumbers bool `mapstructure:"strip_devno"`
	DropAutoServers    bool `mapstructure:"drop_auto_servers"`
}

// SanitizeOptions returns the sanitize steps enabled in the config.
func (c EngineConfig) SanitizeOptions() sanitize.Options {
	return sanitize.Options{
		StripDeviceNumbers: c.StripDeviceNumbers,
		DropAutoServers:    c.DropAutoServers,
	}
}

// DeployConfig holds deployment fan-out settings.
type DeployConfig struct {
	MaxConcurrent int `mapstructure:"max_concurrent"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("database.dsn", "./data/nsorder.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Device defaults
	v.SetDefault("device.host", "")
	v.SetDefault("device.port", 22)
	v.SetDefault("device.user", "nsroot")
	v.SetDefault("device.password", "") // Set via NSORDER_DEVICE_PASSWORD
	v.SetDefault("device.key_file", "")
	v.SetDefault("device.connect_timeout", "10s")
	v.SetDefault("device.command_timeout", "5m") // Large batches take minutes to apply

	// Engine defaults (sanitize is opt-in)
	v.SetDefault("engine.sanitize", false)
	v.SetDefault("engine.strip_devno", true)
	v.SetDefault("engine.drop_auto_servers", true)

	v.SetDefault("deploy.max_concurrent", 4)

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only return error if file was explicitly specified and is invalid
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("NSORDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// NSORDER_DATA_DIR relocates the database unless a DSN was given explicitly
	if dataDir := os.Getenv("NSORDER_DATA_DIR"); dataDir != "" {
		if os.Getenv("NSORDER_DATABASE_DSN") == "" && !v.InConfig("database.dsn") {
			cfg.Database.DSN = filepath.Join(dataDir, "nsorder.db")
		}
	}

	return &cfg, nil
}

// =============================================================================
// Targets
// =============================================================================

// errNoTargets is returned when a deployment has nowhere to go.
var errNoTargets = errors.New("no device targets configured (set device.host or device.targets)")

// AllTargets returns every configured target with device defaults applied.
func (c DeviceConfig) AllTargets() []device.Target {
	var targets []device.Target
	if c.Host != "" {
		targets = append(targets, c.target(TargetConfig{Name: "default", Host: c.Host}))
	}
	for _, t := range c.Targets {
		targets = append(targets, c.target(t))
	}
	return targets
}

// ResolveTargets returns the named targets, or every target when names is
// empty.
func (c DeviceConfig) ResolveTargets(names []string) ([]device.Target, error) {
	all := c.AllTargets()
	if len(names) == 0 {
		if len(all) == 0 {
			return nil, errNoTargets
		}
		return all, nil
	}

	byName := make(map[string]device.Target, len(all))
	for _, t := range all {
		byName[t.Name] = t
	}

	targets := make([]device.Target, 0, len(names))
	for _, name := range names {
		t, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown target %q", name)
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// AdHocTarget builds a target for a host given on the command line.
func (c DeviceConfig) AdHocTarget(host string) device.Target {
	return c.target(TargetConfig{Name: host, Host: host})
}

func (c DeviceConfig) target(t TargetConfig) device.Target {
	out := device.Target{
		Name:     t.Name,
		Host:     t.Host,
		Port:     t.Port,
		User:     t.User,
		Password: t.Password,
		KeyFile:  t.KeyFile,
	}
	if out.Name == "" {
		out.Name = out.Host
	}
	if out.Port == 0 {
		out.Port = c.Port
	}
	if out.User == "" {
		out.User = c.User
	}
	if out.Password == "" {
		out.Password = c.Password
	}
	if out.KeyFile == "" {
		out.KeyFile = c.KeyFile
	}
	return out
}

// SSHConfig returns the transport settings for device executors.
func (c DeviceConfig) SSHConfig() device.SSHConfig {
	return device.SSHConfig{
		ConnectTimeout: c.ConnectTimeout,
		CommandTimeout: c.CommandTimeout,
	}
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format. Logs go
// to w so that command output on stdout stays clean.
func SetupLogger(cfg *Config, w io.Writer) *zap.Logger {
	var level zapcore.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn", "warning":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if strings.ToLower(cfg.Log.Format) == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), level)
	return zap.New(core)
}
