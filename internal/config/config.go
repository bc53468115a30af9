package config

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/middleware"
	"github.com/vango-dev/reactor/pkg/reactor"
	"gopkg.in/yaml.v3"
)

const (
	// JSONFileName is the JSON configuration file name.
	JSONFileName = "reactor.json"

	// YAMLFileName is the YAML configuration file name.
	YAMLFileName = "reactor.yaml"

	// DefaultDevtoolsAddr is the default devtools listen address.
	DefaultDevtoolsAddr = "localhost:7070"

	// DefaultLogLevel is the default log level.
	DefaultLogLevel = "info"

	// DefaultLogFormat is the default log format.
	DefaultLogFormat = "text"

	// DefaultNamespace is the default Prometheus namespace.
	DefaultNamespace = "reactor"

	// DefaultTracerName is the default OpenTelemetry tracer name.
	DefaultTracerName = "reactor"
)

// Environment variables that override file settings.
const (
	EnvLogLevel     = "REACTOR_LOG_LEVEL"
	EnvDevtoolsAddr = "REACTOR_DEVTOOLS_ADDR"
)

// Config represents the complete reactor configuration.
type Config struct {
	// Runtime contains scheduler settings.
	Runtime RuntimeConfig `json:"runtime" yaml:"runtime"`

	// Log contains logging settings.
	Log LogConfig `json:"log" yaml:"log"`

	// Metrics contains Prometheus settings.
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Tracing contains OpenTelemetry settings.
	Tracing TracingConfig `json:"tracing" yaml:"tracing"`

	// Devtools contains inspection server settings.
	Devtools DevtoolsConfig `json:"devtools" yaml:"devtools"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// RuntimeConfig contains scheduler settings.
type RuntimeConfig struct {
	// MaxTickIterations bounds Flush before a runaway is reported.
	MaxTickIterations int `json:"maxTickIterations,omitempty" yaml:"maxTickIterations,omitempty"`

	// ArityPolicy is "fatal" or "warn".
	ArityPolicy string `json:"arityPolicy,omitempty" yaml:"arityPolicy,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`

	// Format is "text" or "json".
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	TracerName string `json:"tracerName,omitempty" yaml:"tracerName,omitempty"`
}

// DevtoolsConfig contains inspection server settings.
type DevtoolsConfig struct {
	// Enabled starts the devtools server in `reactor serve`.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Addr is the listen address.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Runtime: RuntimeConfig{
			MaxTickIterations: reactor.DefaultMaxTickIterations,
			ArityPolicy:       reactor.ArityFatal.String(),
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Metrics:  MetricsConfig{Namespace: DefaultNamespace},
		Tracing:  TracingConfig{TracerName: DefaultTracerName},
		Devtools: DevtoolsConfig{Enabled: true, Addr: DefaultDevtoolsAddr},
	}
}

// Load reads configuration from the specified directory. It looks for
// reactor.json first, then reactor.yaml.
func Load(dir string) (*Config, error) {
	for _, name := range []string{JSONFileName, YAMLFileName} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("R022").
		WithDetail("No " + JSONFileName + " or " + YAMLFileName + " found in " + dir)
}

// LoadFile reads configuration from the specified file path. The format is
// chosen by extension: .yaml and .yml are YAML, everything else JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("R022").
				WithDetail("No configuration file at " + path)
		}
		return nil, errors.New("R020").Wrap(err)
	}

	cfg := New()
	if isYAML(path) {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.New("R020").
				Wrap(err).
				WithLocationFromError(path, err).
				WithSuggestion("Check that " + filepath.Base(path) + " is valid YAML")
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.New("R020").
				Wrap(err).
				WithSuggestion("Check that " + filepath.Base(path) + " is valid JSON")
		}
	}

	cfg.configPath = path
	cfg.applyDefaults()
	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveTo writes the configuration to path in the format its extension
// selects.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New("R020").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New("R020").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Runtime.MaxTickIterations == 0 {
		c.Runtime.MaxTickIterations = reactor.DefaultMaxTickIterations
	}
	if c.Runtime.ArityPolicy == "" {
		c.Runtime.ArityPolicy = reactor.ArityFatal.String()
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
	if c.Tracing.TracerName == "" {
		c.Tracing.TracerName = DefaultTracerName
	}
	if c.Devtools.Addr == "" {
		c.Devtools.Addr = DefaultDevtoolsAddr
	}
}

// ApplyEnv applies environment overrides.
func (c *Config) ApplyEnv() {
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v, ok := os.LookupEnv(EnvDevtoolsAddr); ok && v != "" {
		c.Devtools.Addr = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Runtime.MaxTickIterations < 0 {
		return errors.New("R021").
			WithDetail("runtime.maxTickIterations must not be negative")
	}
	if _, err := reactor.ParseArityPolicy(c.Runtime.ArityPolicy); err != nil {
		return errors.New("R021").
			WithDetail("runtime.arityPolicy " + quote(c.Runtime.ArityPolicy) + " is not fatal or warn").
			Wrap(err)
	}
	if _, ok := logLevels[c.Log.Level]; !ok {
		return errors.New("R021").
			WithDetail("log.level " + quote(c.Log.Level) + " is not debug, info, warn or error")
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return errors.New("R021").
			WithDetail("log.format " + quote(c.Log.Format) + " is not text or json")
	}
	return nil
}

// Reactor returns the scheduler configuration.
func (c *Config) Reactor() (reactor.Config, error) {
	policy, err := reactor.ParseArityPolicy(c.Runtime.ArityPolicy)
	if err != nil {
		return reactor.Config{}, errors.New("R021").Wrap(err)
	}
	return reactor.Config{
		MaxTickIterations: c.Runtime.MaxTickIterations,
		ArityPolicy:       policy,
	}, nil
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// SlogLevel returns log.level as a slog.Level. Unknown levels are info.
func (c *Config) SlogLevel() slog.Level {
	if lvl, ok := logLevels[c.Log.Level]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// NewLogger creates a logger writing to w in the configured format.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// MetricsOptions returns Prometheus middleware options.
func (c *Config) MetricsOptions() []middleware.MetricsOption {
	return []middleware.MetricsOption{middleware.WithNamespace(c.Metrics.Namespace)}
}

// OTelOptions returns OpenTelemetry middleware options.
func (c *Config) OTelOptions() []middleware.OTelOption {
	return []middleware.OTelOption{middleware.WithTracerName(c.Tracing.TracerName)}
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range []string{JSONFileName, YAMLFileName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func quote(s string) string {
	return `"` + s + `"`
}
