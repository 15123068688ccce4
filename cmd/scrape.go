package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bolagsradar/listings-scraper/internal/server"
)

// newScrapeCmd creates the 'scrape' subcommand: a one-shot run of the full
// pipeline that prints the result as JSON instead of serving HTTP.
func newScrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape",
		Short: "Run a single scrape and print the result as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			app, err := server.Build(cmd.Context(), &cfg)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := app.Close(cmd.Context()); cerr != nil {
					zap.L().Warn("close failed", zap.Error(cerr))
				}
			}()

			result, err := app.ScrapeOnce(cmd.Context())
			if err != nil {
				return fmt.Errorf("scrape: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return fmt.Errorf("encode result: %w", err)
			}
			return nil
		},
	}
}
