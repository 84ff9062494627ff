// Package config handles loading and resolving atmosight configuration.
// Resolution order (later layers win):
//  1. config.json in the current working directory
//  2. .env in the current working directory (never overrides the real environment)
//  3. ATMOSIGHT_* environment variables
//  4. CLI flags, applied by the command layer after Load
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	DefaultConfigFile  = "config.json"
	DefaultEnvFile     = ".env"
	DefaultFormat      = "table"
	DefaultTimeout     = 30 * time.Second
	DefaultConcurrency = 4
	DefaultRate        = 2.0
	DefaultPowerURL    = "https://power.larc.nasa.gov/api/temporal/daily/point"
	DefaultGeocoderURL = "https://nominatim.openstreetmap.org/search"
	DefaultVariable    = "T2M"
	DefaultStartYear   = 1991
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
	DefaultAddr        = "127.0.0.1:8080"
	EnvPrefix          = "ATMOSIGHT"
)

var validate = validator.New()

// File is the on-disk representation of config.json.
type File struct {
	DefaultFormat string  `json:"default_format"`
	Timeout       string  `json:"timeout"`
	Concurrency   int     `json:"concurrency"`
	Rate          float64 `json:"rate"`
	PowerURL      string  `json:"power_url"`
	GeocoderURL   string  `json:"geocoder_url"`
	DBPath        string  `json:"db_path"`
	Location      string  `json:"location"`
	Variable      string  `json:"variable"`
	StartYear     int     `json:"start_year"`
	LogLevel      string  `json:"log_level"`
	LogFormat     string  `json:"log_format"`
	Addr          string  `json:"addr"`
}

// env mirrors File for the ATMOSIGHT_* variables.
type env struct {
	Format      string        `envconfig:"FORMAT"`
	Timeout     time.Duration `envconfig:"TIMEOUT"`
	Concurrency int           `envconfig:"CONCURRENCY"`
	Rate        float64       `envconfig:"RATE"`
	PowerURL    string        `envconfig:"POWER_URL"`
	GeocoderURL string        `envconfig:"GEOCODER_URL"`
	DBPath      string        `envconfig:"DB_PATH"`
	Location    string        `envconfig:"LOCATION"`
	Variable    string        `envconfig:"VARIABLE"`
	StartYear   int           `envconfig:"START_YEAR"`
	LogLevel    string        `envconfig:"LOG_LEVEL"`
	LogFormat   string        `envconfig:"LOG_FORMAT"`
	Addr        string        `envconfig:"ADDR"`
}

// EnvKeys lists every environment variable Load reads.
var EnvKeys = []string{
	"ATMOSIGHT_FORMAT", "ATMOSIGHT_TIMEOUT", "ATMOSIGHT_CONCURRENCY", "ATMOSIGHT_RATE",
	"ATMOSIGHT_POWER_URL", "ATMOSIGHT_GEOCODER_URL", "ATMOSIGHT_DB_PATH", "ATMOSIGHT_LOCATION",
	"ATMOSIGHT_VARIABLE", "ATMOSIGHT_START_YEAR", "ATMOSIGHT_LOG_LEVEL", "ATMOSIGHT_LOG_FORMAT",
	"ATMOSIGHT_ADDR",
}

// Config is the fully-resolved runtime configuration.
// All callers use this struct; File and the environment are only read during loading.
type Config struct {
	Format      string        `validate:"oneof=table json jsonl csv tsv md"`
	Timeout     time.Duration `validate:"gt=0"`
	Concurrency int           `validate:"min=1,max=32"`
	Rate        float64       `validate:"gt=0"`
	PowerURL    string        `validate:"required,url"`
	GeocoderURL string        `validate:"required,url"`
	DBPath      string
	Location    string
	Variable    string `validate:"required"`
	StartYear   int    `validate:"min=1981"`
	LogLevel    string `validate:"oneof=debug info warn error"`
	LogFormat   string `validate:"oneof=text json"`
	Addr        string
	ConfigPath  string // path of the config.json that was loaded (empty if none found)
	EnvPath     string // path of the .env that was loaded (empty if none found)

	// Runtime overrides set from CLI flags after Load()
	NoCache bool
	Refresh bool
	Quiet   bool
	Verbose bool
	Debug   bool
}

// Load resolves configuration from config.json, .env and the environment.
// A malformed config.json or environment value is an error; absent files are not.
func Load() (*Config, error) {
	cfg := defaults()

	f, path, err := loadFile(DefaultConfigFile)
	switch {
	case err == nil:
		applyFile(cfg, f, path)
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}

	if err := godotenv.Load(DefaultEnvFile); err == nil {
		cfg.EnvPath, _ = filepath.Abs(DefaultEnvFile)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", DefaultEnvFile, err)
	}

	var e env
	if err := envconfig.Process(EnvPrefix, &e); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	applyEnv(cfg, e)

	if cfg.DBPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.DBPath = filepath.Join(home, ".atmosight", "atmosight.db")
		}
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Format:      DefaultFormat,
		Timeout:     DefaultTimeout,
		Concurrency: DefaultConcurrency,
		Rate:        DefaultRate,
		PowerURL:    DefaultPowerURL,
		GeocoderURL: DefaultGeocoderURL,
		Variable:    DefaultVariable,
		StartYear:   DefaultStartYear,
		LogLevel:    DefaultLogLevel,
		LogFormat:   DefaultLogFormat,
		Addr:        DefaultAddr,
	}
}

// Validate checks the resolved values after flags are applied.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s: failed %q (got %v)", fe.Field(), fe.Tag(), fe.Value())
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return err
	}
	return nil
}

// loadFile reads a config.json. A missing file wraps os.ErrNotExist.
func loadFile(name string) (*File, string, error) {
	path, err := filepath.Abs(name)
	if err != nil {
		return nil, "", err
	}
	f, err := ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	return &f, path, nil
}

// ReadFile parses the config file at path.
func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return File{}, fmt.Errorf("config file not found at %s: %w", path, err)
		}
		return File{}, fmt.Errorf("reading %s: %w", path, err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return f, nil
}

// applyFile copies values from a parsed File into cfg,
// skipping any fields that are zero/empty.
func applyFile(cfg *Config, f *File, path string) {
	cfg.ConfigPath = path
	setString(&cfg.Format, f.DefaultFormat)
	if f.Timeout != "" {
		if d, err := time.ParseDuration(f.Timeout); err == nil {
			cfg.Timeout = d
		}
	}
	setInt(&cfg.Concurrency, f.Concurrency)
	if f.Rate > 0 {
		cfg.Rate = f.Rate
	}
	setString(&cfg.PowerURL, f.PowerURL)
	setString(&cfg.GeocoderURL, f.GeocoderURL)
	setString(&cfg.DBPath, f.DBPath)
	setString(&cfg.Location, f.Location)
	setString(&cfg.Variable, f.Variable)
	setInt(&cfg.StartYear, f.StartYear)
	setString(&cfg.LogLevel, f.LogLevel)
	setString(&cfg.LogFormat, f.LogFormat)
	setString(&cfg.Addr, f.Addr)
}

func applyEnv(cfg *Config, e env) {
	setString(&cfg.Format, e.Format)
	if e.Timeout > 0 {
		cfg.Timeout = e.Timeout
	}
	setInt(&cfg.Concurrency, e.Concurrency)
	if e.Rate > 0 {
		cfg.Rate = e.Rate
	}
	setString(&cfg.PowerURL, e.PowerURL)
	setString(&cfg.GeocoderURL, e.GeocoderURL)
	setString(&cfg.DBPath, e.DBPath)
	setString(&cfg.Location, e.Location)
	setString(&cfg.Variable, e.Variable)
	setInt(&cfg.StartYear, e.StartYear)
	setString(&cfg.LogLevel, e.LogLevel)
	setString(&cfg.LogFormat, e.LogFormat)
	setString(&cfg.Addr, e.Addr)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

// ─── config.json editing ──────────────────────────────────────────────────────

// Template returns a File populated with sensible defaults, suitable for
// writing an initial config.json via `atmosight config init`.
func Template() File {
	return File{
		DefaultFormat: DefaultFormat,
		Timeout:       DefaultTimeout.String(),
		Concurrency:   DefaultConcurrency,
		Rate:          DefaultRate,
		PowerURL:      DefaultPowerURL,
		GeocoderURL:   DefaultGeocoderURL,
		Variable:      DefaultVariable,
		StartYear:     DefaultStartYear,
		LogLevel:      DefaultLogLevel,
		LogFormat:     DefaultLogFormat,
		Addr:          DefaultAddr,
	}
}

// WriteFile serialises a File to the given path.
func WriteFile(path string, f File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0600)
}

// Keys returns the config.json keys accepted by Get and Set, sorted.
func Keys() []string {
	keys := make([]string, 0, len(fileFields))
	for k := range fileFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type field struct {
	get func(*File) string
	set func(*File, string) error
}

func stringField(p func(*File) *string) field {
	return field{
		get: func(f *File) string { return *p(f) },
		set: func(f *File, v string) error { *p(f) = v; return nil },
	}
}

func intField(p func(*File) *int) field {
	return field{
		get: func(f *File) string { return strconv.Itoa(*p(f)) },
		set: func(f *File, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("expected an integer, got %q", v)
			}
			*p(f) = n
			return nil
		},
	}
}

var fileFields = map[string]field{
	"default_format": stringField(func(f *File) *string { return &f.DefaultFormat }),
	"timeout": {
		get: func(f *File) string { return f.Timeout },
		set: func(f *File, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("expected a duration such as 30s, got %q", v)
			}
			f.Timeout = v
			return nil
		},
	},
	"concurrency": intField(func(f *File) *int { return &f.Concurrency }),
	"rate": {
		get: func(f *File) string { return strconv.FormatFloat(f.Rate, 'f', -1, 64) },
		set: func(f *File, v string) error {
			r, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("expected a number, got %q", v)
			}
			f.Rate = r
			return nil
		},
	},
	"power_url":    stringField(func(f *File) *string { return &f.PowerURL }),
	"geocoder_url": stringField(func(f *File) *string { return &f.GeocoderURL }),
	"db_path":      stringField(func(f *File) *string { return &f.DBPath }),
	"location":     stringField(func(f *File) *string { return &f.Location }),
	"variable":     stringField(func(f *File) *string { return &f.Variable }),
	"start_year":   intField(func(f *File) *int { return &f.StartYear }),
	"log_level":    stringField(func(f *File) *string { return &f.LogLevel }),
	"log_format":   stringField(func(f *File) *string { return &f.LogFormat }),
	"addr":         stringField(func(f *File) *string { return &f.Addr }),
}

// Get returns the value of key in f.
func (f *File) Get(key string) (string, error) {
	fl, ok := fileFields[key]
	if !ok {
		return "", fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(Keys(), ", "))
	}
	return fl.get(f), nil
}

// Set parses value and stores it under key in f.
func (f *File) Set(key, value string) error {
	fl, ok := fileFields[key]
	if !ok {
		return fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(Keys(), ", "))
	}
	if err := fl.set(f, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}
