// Package cmd defines and implements the CLI commands for the
// listings-scraper executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bolagsradar/listings-scraper/internal/config"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listings-scraper",
		Short: "Scraper API for Swedish business-for-sale listings",
		Long: `listings-scraper provisions its own browser runtime and serves an HTTP
API that scrapes business-for-sale listings from bolagsplatsen.se.

The serve command runs the full deployment sequence: manifest dependencies,
playwright browser runtime (guarded by cache checks), then the API server on
0.0.0.0:$PORT.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (defaults to environment variables only)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newProvisionCmd())
	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
