package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/atmosight/internal/geocode"
	"github.com/derickschaefer/atmosight/internal/model"
	"github.com/derickschaefer/atmosight/internal/power"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode <PLACE>",
	Short: "Resolve a place name to coordinates",
	Long: `Look a place up with the configured Nominatim geocoder (cached in the
local store). An unknown place resolves to the fallback coordinates, exactly
as an analysis would.`,
	Example: `  atmosight geocode Faisalabad
  atmosight geocode "Lahore, Pakistan" --format json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		runner, err := deps.Runner()
		if err != nil {
			return err
		}

		start := time.Now()
		name := strings.Join(args, " ")
		res := geocode.Resolve(cmd.Context(), runner.Geocoder, name, deps.Logger)

		result := newResult(model.KindGeocode, "geocode "+name, &res, 1, start)
		if res.Fallback {
			result.Warnings = []string{fmt.Sprintf("%q not resolved (%s); showing fallback coordinates", name, res.Reason)}
		}
		return emit(cmd, deps.Config, result)
	},
}

var variablesCmd = &cobra.Command{
	Use:     "variables",
	Aliases: []string{"vars"},
	Short:   "List the NASA POWER parameters atmosight understands",
	Example: `  atmosight variables
  atmosight variables --format md`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		vars := power.Variables
		return emit(cmd, cfg, newResult(model.KindVariables, "variables", vars, len(vars), time.Now()))
	},
}

func init() {
	rootCmd.AddCommand(geocodeCmd)
	rootCmd.AddCommand(variablesCmd)
}
