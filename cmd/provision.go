package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bolagsradar/listings-scraper/internal/server"
)

// newProvisionCmd creates the 'provision' subcommand. Unlike serve, any
// provisioning failure exits nonzero here, including a degraded browser
// install: this is the mode deploy pipelines use to bake the runtime.
func newProvisionCmd() *cobra.Command {
	var skipBrowsers bool

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Install dependencies and the browser runtime, then exit",
		Long: `Runs the provisioning pass on its own: manifest dependencies first, then
the playwright browser runtime guarded by the cache checks. Exits nonzero on
any failure, including a browser install the server would tolerate.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cfg.Bootstrap.SkipBrowsers = cfg.Bootstrap.SkipBrowsers || skipBrowsers

			app, err := server.Build(cmd.Context(), &cfg)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := app.Close(cmd.Context()); cerr != nil {
					zap.L().Warn("close failed", zap.Error(cerr))
				}
			}()

			if err := app.Provision(cmd.Context()); err != nil {
				return fmt.Errorf("provision: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipBrowsers, "skip-browsers", false,
		"install manifest dependencies only, leave the browser runtime untouched")
	return cmd
}
