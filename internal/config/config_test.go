package config

import (
	"bytes"
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/reactor"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Runtime.MaxTickIterations != reactor.DefaultMaxTickIterations {
		t.Errorf("Runtime.MaxTickIterations = %d, want %d", cfg.Runtime.MaxTickIterations, reactor.DefaultMaxTickIterations)
	}
	if cfg.Runtime.ArityPolicy != "fatal" {
		t.Errorf("Runtime.ArityPolicy = %q, want fatal", cfg.Runtime.ArityPolicy)
	}
	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, DefaultLogLevel)
	}
	if !cfg.Devtools.Enabled || cfg.Devtools.Addr != DefaultDevtoolsAddr {
		t.Errorf("Devtools = %+v", cfg.Devtools)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadJSON(t *testing.T) {
	tmpDir := t.TempDir()

	if _, err := Load(tmpDir); err == nil {
		t.Error("Expected error for missing config")
	}
	if Exists(tmpDir) {
		t.Error("Exists() = true for empty dir")
	}

	configJSON := `{
  "runtime": {
    "maxTickIterations": 25,
    "arityPolicy": "warn"
  },
  "log": {
    "format": "json"
  },
  "devtools": {
    "enabled": false
  }
}
`
	if err := os.WriteFile(filepath.Join(tmpDir, JSONFileName), []byte(configJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	if !Exists(tmpDir) {
		t.Error("Exists() = false after writing reactor.json")
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Runtime.MaxTickIterations != 25 {
		t.Errorf("Runtime.MaxTickIterations = %d, want 25", cfg.Runtime.MaxTickIterations)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want json", cfg.Log.Format)
	}
	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("Log.Level = %q, want default", cfg.Log.Level)
	}
	if cfg.Devtools.Enabled {
		t.Error("Devtools.Enabled should be false")
	}
	if cfg.Devtools.Addr != DefaultDevtoolsAddr {
		t.Errorf("Devtools.Addr = %q, want default", cfg.Devtools.Addr)
	}
	if cfg.Path() != filepath.Join(tmpDir, JSONFileName) {
		t.Errorf("Path() = %q", cfg.Path())
	}

	rc, err := cfg.Reactor()
	if err != nil {
		t.Fatalf("Reactor() error: %v", err)
	}
	if rc.ArityPolicy != reactor.ArityWarn || rc.MaxTickIterations != 25 {
		t.Errorf("Reactor() = %+v", rc)
	}
}

func TestLoadYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configYAML := `runtime:
  maxTickIterations: 10
log:
  level: debug
metrics:
  namespace: checkout
tracing:
  tracerName: checkout-ui
devtools:
  addr: 127.0.0.1:9999
`
	if err := os.WriteFile(filepath.Join(tmpDir, YAMLFileName), []byte(configYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Runtime.MaxTickIterations != 10 {
		t.Errorf("Runtime.MaxTickIterations = %d, want 10", cfg.Runtime.MaxTickIterations)
	}
	if cfg.Runtime.ArityPolicy != "fatal" {
		t.Errorf("Runtime.ArityPolicy = %q, want fatal", cfg.Runtime.ArityPolicy)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v, want debug", cfg.SlogLevel())
	}
	if cfg.Metrics.Namespace != "checkout" || cfg.Tracing.TracerName != "checkout-ui" {
		t.Errorf("Metrics/Tracing = %+v %+v", cfg.Metrics, cfg.Tracing)
	}
	if cfg.Devtools.Addr != "127.0.0.1:9999" || !cfg.Devtools.Enabled {
		t.Errorf("Devtools = %+v", cfg.Devtools)
	}
	if len(cfg.MetricsOptions()) != 1 || len(cfg.OTelOptions()) != 1 {
		t.Error("expected one middleware option each")
	}
}

func TestLoadFileErrors(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name     string
		file     string
		content  string
		wantCode string
		wantLine int
	}{
		{"missing", "absent.json", "", "R022", 0},
		{"bad json", "bad.json", `{"runtime": `, "R020", 0},
		{"bad yaml", "bad.yaml", "runtime:\n  maxTickIterations: many\n", "R020", 2},
		{"bad policy", "policy.json", `{"runtime": {"arityPolicy": "resync"}}`, "R021", 0},
		{"bad level", "level.yaml", "log:\n  level: loud\n", "R021", 0},
		{"bad format", "format.json", `{"log": {"format": "xml"}}`, "R021", 0},
		{"negative ticks", "ticks.json", `{"runtime": {"maxTickIterations": -1}}`, "R021", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tt.file)
			if tt.content != "" {
				if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
					t.Fatal(err)
				}
			}

			_, err := LoadFile(path)
			var re *errors.ReactorError
			if !stderrors.As(err, &re) {
				t.Fatalf("LoadFile() error = %v, want *ReactorError", err)
			}
			if re.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", re.Code, tt.wantCode)
			}
			if tt.wantLine > 0 && (re.Location == nil || re.Location.Line != tt.wantLine) {
				t.Errorf("Location = %v, want line %d", re.Location, tt.wantLine)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "WARN")
	t.Setenv(EnvDevtoolsAddr, ":8181")

	path := filepath.Join(t.TempDir(), JSONFileName)
	if err := os.WriteFile(path, []byte(`{"log": {"level": "debug"}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}
	if cfg.Devtools.Addr != ":8181" {
		t.Errorf("Devtools.Addr = %q, want :8181", cfg.Devtools.Addr)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"out.json", "out.yaml"} {
		t.Run(name, func(t *testing.T) {
			cfg := New()
			cfg.Runtime.ArityPolicy = "warn"
			cfg.Metrics.Namespace = "saved"

			path := filepath.Join(t.TempDir(), name)
			if err := cfg.SaveTo(path); err != nil {
				t.Fatalf("SaveTo() error: %v", err)
			}
			if cfg.Path() != path {
				t.Errorf("Path() = %q, want %q", cfg.Path(), path)
			}

			loaded, err := LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile() error: %v", err)
			}
			if loaded.Runtime.ArityPolicy != "warn" || loaded.Metrics.Namespace != "saved" {
				t.Errorf("loaded = %+v", loaded)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := New()
	cfg.Log.Format = "json"
	cfg.Log.Level = "warn"

	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "instance", 3)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"instance":3`) {
		t.Errorf("unexpected log output: %s", out)
	}

	buf.Reset()
	cfg.Log.Format = "text"
	cfg.NewLogger(&buf).Warn("plain")
	if !strings.Contains(buf.String(), "msg=plain") {
		t.Errorf("unexpected text output: %s", buf.String())
	}
}
