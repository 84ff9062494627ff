package config_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/derickschaefer/atmosight/internal/config"
)

// ─── Helpers ──────────────────────────────────────────────────────────────────

// chdir switches the working directory to dir for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(orig) })
}

// writeConfig writes a config.json into dir and changes into it.
func writeConfig(t *testing.T, dir string, f config.File) {
	t.Helper()
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), data, 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	chdir(t, dir)
}

// clearEnv unsets every ATMOSIGHT_* variable; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range config.EnvKeys {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
}

func load(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

// ─── Layers ───────────────────────────────────────────────────────────────────

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	cfg := load(t)
	if cfg.Format != config.DefaultFormat {
		t.Errorf("Format: got %q", cfg.Format)
	}
	if cfg.Timeout != config.DefaultTimeout {
		t.Errorf("Timeout: got %v", cfg.Timeout)
	}
	if cfg.PowerURL != config.DefaultPowerURL {
		t.Errorf("PowerURL: got %q", cfg.PowerURL)
	}
	if cfg.StartYear != 1991 || cfg.Variable != "T2M" {
		t.Errorf("analysis defaults: %d %q", cfg.StartYear, cfg.Variable)
	}
	if cfg.ConfigPath != "" || cfg.EnvPath != "" {
		t.Errorf("no files should be recorded: %q %q", cfg.ConfigPath, cfg.EnvPath)
	}
	if !strings.HasSuffix(cfg.DBPath, filepath.Join(".atmosight", "atmosight.db")) {
		t.Errorf("DBPath: got %q", cfg.DBPath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeConfig(t, dir, config.File{
		DefaultFormat: "json",
		Timeout:       "10s",
		Concurrency:   2,
		Rate:          0.5,
		Location:      "Faisalabad",
		Variable:      "WS2M",
		StartYear:     2001,
		DBPath:        "/tmp/x.db",
	})

	cfg := load(t)
	if cfg.Format != "json" || cfg.Timeout != 10*time.Second || cfg.Concurrency != 2 || cfg.Rate != 0.5 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Location != "Faisalabad" || cfg.Variable != "WS2M" || cfg.StartYear != 2001 || cfg.DBPath != "/tmp/x.db" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if !strings.HasSuffix(cfg.ConfigPath, "config.json") {
		t.Errorf("ConfigPath: got %q", cfg.ConfigPath)
	}
}

func TestLoadInvalidTimeoutIgnored(t *testing.T) {
	clearEnv(t)
	writeConfig(t, t.TempDir(), config.File{Timeout: "soon"})
	if cfg := load(t); cfg.Timeout != config.DefaultTimeout {
		t.Errorf("Timeout: got %v", cfg.Timeout)
	}
}

func TestLoadMalformedFileIsError(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte("{"), 0600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)
	if _, err := config.Load(); err == nil {
		t.Error("expected parse error")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	writeConfig(t, t.TempDir(), config.File{Location: "Faisalabad", Rate: 1})
	t.Setenv("ATMOSIGHT_LOCATION", "Lahore")
	t.Setenv("ATMOSIGHT_RATE", "3.5")
	t.Setenv("ATMOSIGHT_TIMEOUT", "45s")

	cfg := load(t)
	if cfg.Location != "Lahore" {
		t.Errorf("Location: got %q", cfg.Location)
	}
	if cfg.Rate != 3.5 || cfg.Timeout != 45*time.Second {
		t.Errorf("Rate/Timeout: %v %v", cfg.Rate, cfg.Timeout)
	}
}

func TestDotEnvFillsButNeverOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	env := "ATMOSIGHT_VARIABLE=RH2M\nATMOSIGHT_LOCATION=Karachi\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0600); err != nil {
		t.Fatal(err)
	}
	chdir(t, dir)
	t.Setenv("ATMOSIGHT_LOCATION", "Multan")

	cfg := load(t)
	if cfg.Variable != "RH2M" {
		t.Errorf("Variable from .env: got %q", cfg.Variable)
	}
	if cfg.Location != "Multan" {
		t.Errorf("real environment must win over .env: got %q", cfg.Location)
	}
	if cfg.EnvPath == "" {
		t.Error("EnvPath should be recorded")
	}
}

func TestBadEnvValueIsError(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("ATMOSIGHT_START_YEAR", "nineteen")
	if _, err := config.Load(); err == nil {
		t.Error("expected error for non-numeric start year")
	}
}

// ─── Validate ─────────────────────────────────────────────────────────────────

func TestValidate(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	tests := []struct {
		name   string
		mutate func(*config.Config)
		field  string
	}{
		{"format", func(c *config.Config) { c.Format = "xml" }, "Format"},
		{"rate", func(c *config.Config) { c.Rate = 0 }, "Rate"},
		{"start year", func(c *config.Config) { c.StartYear = 1970 }, "StartYear"},
		{"url", func(c *config.Config) { c.PowerURL = "not a url" }, "PowerURL"},
		{"log level", func(c *config.Config) { c.LogLevel = "trace" }, "LogLevel"},
		{"concurrency", func(c *config.Config) { c.Concurrency = 0 }, "Concurrency"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := load(t)
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.field) {
				t.Errorf("expected error naming %s, got %v", tc.field, err)
			}
		})
	}
}

// ─── File editing ─────────────────────────────────────────────────────────────

func TestWriteFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	f := config.Template()
	f.Location = "Faisalabad"
	if err := config.WriteFile(path, f); err != nil {
		t.Fatal(err)
	}
	got, err := config.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != f {
		t.Errorf("round trip: got %+v, want %+v", got, f)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("permissions: got %v", info.Mode().Perm())
	}
}

func TestTemplateDefaults(t *testing.T) {
	f := config.Template()
	if f.Timeout != "30s" || f.PowerURL != config.DefaultPowerURL || f.StartYear != 1991 {
		t.Errorf("template: %+v", f)
	}
}

func TestGetSet(t *testing.T) {
	f := config.Template()
	if err := f.Set("location", "Lahore"); err != nil {
		t.Fatal(err)
	}
	if err := f.Set("start_year", "2000"); err != nil {
		t.Fatal(err)
	}
	if err := f.Set("rate", "1.5"); err != nil {
		t.Fatal(err)
	}
	for key, want := range map[string]string{"location": "Lahore", "start_year": "2000", "rate": "1.5"} {
		got, err := f.Get(key)
		if err != nil || got != want {
			t.Errorf("Get(%s) = %q, %v; want %q", key, got, err, want)
		}
	}
}

func TestSetRejects(t *testing.T) {
	f := config.Template()
	for key, value := range map[string]string{
		"start_year": "soon",
		"timeout":    "forever",
		"rate":       "fast",
		"api_key":    "x",
	} {
		if err := f.Set(key, value); err == nil {
			t.Errorf("Set(%s, %s): expected error", key, value)
		}
	}
	if _, err := f.Get("nope"); err == nil || !strings.Contains(err.Error(), "default_format") {
		t.Errorf("unknown key error should list valid keys, got %v", err)
	}
}
