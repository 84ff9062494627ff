package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/atmosight/internal/config"
	"github.com/derickschaefer/atmosight/internal/render"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage atmosight configuration",
	Long: `Read and write atmosight configuration stored in config.json.

Values resolve in this order, later layers winning:
  config.json, .env, ATMOSIGHT_* environment variables, command-line flags.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a template config.json in the current directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigFile
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config.json already exists at %s (delete it first to re-initialise)", path)
		}
		if err := config.WriteFile(path, config.Template()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Created %s\n", path)
		fmt.Fprintln(cmd.OutOrStdout(), "  Set a default place with: atmosight config set location <PLACE>")
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print the resolved configuration, or one key from config.json",
	Example: `  atmosight config get
  atmosight config get --format json
  atmosight config get start_year`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			f, _, err := loadConfigFile()
			if err != nil {
				return err
			}
			v, err := f.Get(strings.ToLower(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out := resolvedConfig{
			Format:      cfg.Format,
			Timeout:     cfg.Timeout.String(),
			Concurrency: cfg.Concurrency,
			Rate:        cfg.Rate,
			PowerURL:    cfg.PowerURL,
			GeocoderURL: cfg.GeocoderURL,
			DBPath:      cfg.DBPath,
			Location:    cfg.Location,
			Variable:    cfg.Variable,
			StartYear:   cfg.StartYear,
			LogLevel:    cfg.LogLevel,
			LogFormat:   cfg.LogFormat,
			Addr:        cfg.Addr,
			ConfigFile:  orNotFound(cfg.ConfigPath),
			EnvFile:     orNotFound(cfg.EnvPath),
		}

		if resolveFormat(cfg.Format) == render.FormatJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}
		printKVTableTo(cmd.OutOrStdout(), [][]string{
			{"default_format", out.Format},
			{"timeout", out.Timeout},
			{"concurrency", fmt.Sprintf("%d", out.Concurrency)},
			{"rate", fmt.Sprintf("%.1f req/s", out.Rate)},
			{"power_url", out.PowerURL},
			{"geocoder_url", out.GeocoderURL},
			{"db_path", out.DBPath},
			{"location", orNotSet(out.Location)},
			{"variable", out.Variable},
			{"start_year", fmt.Sprintf("%d", out.StartYear)},
			{"log_level", out.LogLevel},
			{"log_format", out.LogFormat},
			{"addr", out.Addr},
			{"config_file", out.ConfigFile},
			{"env_file", out.EnvFile},
		})
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "\n⚠  %v\n", err)
		}
		return nil
	},
}

type resolvedConfig struct {
	Format      string  `json:"default_format"`
	Timeout     string  `json:"timeout"`
	Concurrency int     `json:"concurrency"`
	Rate        float64 `json:"rate"`
	PowerURL    string  `json:"power_url"`
	GeocoderURL string  `json:"geocoder_url"`
	DBPath      string  `json:"db_path"`
	Location    string  `json:"location"`
	Variable    string  `json:"variable"`
	StartYear   int     `json:"start_year"`
	LogLevel    string  `json:"log_level"`
	LogFormat   string  `json:"log_format"`
	Addr        string  `json:"addr"`
	ConfigFile  string  `json:"config_file"`
	EnvFile     string  `json:"env_file"`
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in config.json",
	Example: `  atmosight config set location Faisalabad
  atmosight config set start_year 2001
  atmosight config set timeout 1m`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := strings.ToLower(args[0])
		if key == "format" {
			key = "default_format"
		}

		f, path, err := loadConfigFile()
		if err != nil {
			return err
		}
		if err := f.Set(key, args[1]); err != nil {
			return err
		}
		if err := config.WriteFile(path, f); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Set %s in %s\n", key, path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
}

// loadConfigFile reads config.json from cwd, or returns the template when
// there is none yet.
func loadConfigFile() (config.File, string, error) {
	path := config.DefaultConfigFile
	f, err := config.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return config.Template(), path, nil
	}
	if err != nil {
		return config.File{}, "", err
	}
	return f, path, nil
}

func orNotFound(s string) string {
	if s == "" {
		return "(not found)"
	}
	return s
}

func orNotSet(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
