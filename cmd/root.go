// Package cmd implements the atmosight CLI command tree.
// This file defines the root command and registers all global persistent flags.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/atmosight/internal/app"
	"github.com/derickschaefer/atmosight/internal/config"
)

// globalFlags holds the parsed values of all persistent (global) flags.
// Commands read from this struct via the deps they receive.
var globalFlags struct {
	Format      string
	Out         string
	NoCache     bool
	Refresh     bool
	Timeout     string
	Concurrency int
	Rate        float64
	Quiet       bool
	Verbose     bool
	Debug       bool
}

// rootCmd is the base command. Running `atmosight` with no subcommand
// prints help.
var rootCmd = &cobra.Command{
	Use:   "atmosight",
	Short: "atmosight — day-of-year weather insights from NASA POWER",
	Long: `atmosight looks at one calendar day across decades of NASA POWER daily
point data and describes how that day usually behaves at a place: its typical
value, spread, extremes, long-term trend and a plain-language volatility label.

Data courtesy of the NASA Langley Research Center (LaRC) POWER Project;
https://power.larc.nasa.gov/

Quick start:
  atmosight config init                       # create a config.json
  atmosight analyze Faisalabad                # today's date, temperature
  atmosight analyze Lahore -v PRECTOTCORR --date 2024-07-19
  atmosight export Karachi --out karachi.zip  # CSV, charts and summary`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// buildDeps resolves config, applies flag overrides, validates the result and
// constructs the dependency container. Called at the start of each command's RunE.
func buildDeps() (*app.Deps, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return app.New(cfg, os.Stderr), nil
}

// loadConfig resolves config and applies CLI flag overrides without validating.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	cfg.NoCache = globalFlags.NoCache
	cfg.Refresh = globalFlags.Refresh
	cfg.Quiet = globalFlags.Quiet
	cfg.Verbose = globalFlags.Verbose
	cfg.Debug = globalFlags.Debug

	if globalFlags.Format != "" {
		cfg.Format = globalFlags.Format
	}
	if globalFlags.Timeout != "" {
		d, err := time.ParseDuration(globalFlags.Timeout)
		if err != nil {
			return nil, fmt.Errorf("--timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if globalFlags.Concurrency > 0 {
		cfg.Concurrency = globalFlags.Concurrency
	}
	if globalFlags.Rate > 0 {
		cfg.Rate = globalFlags.Rate
	}
	return cfg, nil
}

func init() {
	pf := rootCmd.PersistentFlags()

	pf.StringVar(&globalFlags.Format, "format", "",
		"output format: table|json|jsonl|csv|tsv|md (default: table)")
	pf.StringVar(&globalFlags.Out, "out", "",
		"write output to file instead of stdout")
	pf.BoolVar(&globalFlags.NoCache, "no-cache", false,
		"bypass the local cache entirely")
	pf.BoolVar(&globalFlags.Refresh, "refresh", false,
		"force re-fetch and overwrite cached entries")
	pf.StringVar(&globalFlags.Timeout, "timeout", "",
		"HTTP request timeout (e.g. 30s, 2m)")
	pf.IntVar(&globalFlags.Concurrency, "concurrency", 0,
		"max parallel requests for multi-variable fetches (default: 4)")
	pf.Float64Var(&globalFlags.Rate, "rate", 0,
		"max NASA POWER requests per second (default: 2.0)")
	pf.BoolVar(&globalFlags.Quiet, "quiet", false,
		"suppress all non-error output besides results")
	pf.BoolVar(&globalFlags.Verbose, "verbose", false,
		"show cache/timing stats after output")
	pf.BoolVar(&globalFlags.Debug, "debug", false,
		"log HTTP requests, cache decisions and pipeline steps")
}
