package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/atmosight/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve analyses over a local HTTP API",
	Long: `Start a small single-user HTTP server backed by the same cache as the CLI.

Endpoints:
  GET /healthz
  GET /api/variables
  GET /api/analysis?location=&variable=&date=&lat=&lon=&start_year=&end_year=
  GET /api/export?...           same query, returns the ZIP bundle
  GET /api/reports              saved reports (not with --no-cache)
  GET /api/reports/{id}
  GET /metrics                  Prometheus metrics

Stop with Ctrl-C; in-flight requests are allowed to finish.`,
	Example: `  atmosight serve
  atmosight serve --addr :9090
  curl 'localhost:8080/api/analysis?location=Faisalabad&date=2024-07-19'`,
	Args: cobra.NoArgs,
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

		var reports server.ReportStore
		if deps.Store != nil {
			reports = deps.Store
		}
		srv := server.New(runner, reports, deps.Metrics, deps.Logger)
		srv.DefaultVariable = deps.Config.Variable

		addr := serveAddr
		if addr == "" {
			addr = deps.Config.Addr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: config addr, 127.0.0.1:8080)")
}
