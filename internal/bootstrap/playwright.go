package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

// PlaywrightInstaller provisions the browser runtime through the playwright
// driver bundle. The driver CLI has no forced mode, so ForceReinstall wipes
// the cache directories and installs again from scratch.
type PlaywrightInstaller struct {
	cacheDirs []string
	verbose   bool
	logger    *zap.Logger
	install   func(...*playwright.RunOptions) error
	removeAll func(path string) error
}

// NewPlaywrightInstaller constructs a PlaywrightInstaller. The cache dirs are
// the locations ForceReinstall clears before installing again.
func NewPlaywrightInstaller(cacheDirs []string, verbose bool, logger *zap.Logger) *PlaywrightInstaller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PlaywrightInstaller{
		cacheDirs: cacheDirs,
		verbose:   verbose,
		logger:    logger,
		install:   playwright.Install,
		removeAll: os.RemoveAll,
	}
}

// InstallDriver ensures the driver bundle is on disk without downloading any
// browser engines. The underlying install skips work already done, so calling
// it on every boot is cheap.
func (p *PlaywrightInstaller) InstallDriver(ctx context.Context) error {
	if err := p.install(&playwright.RunOptions{
		SkipInstallBrowsers: true,
		Verbose:             p.verbose,
	}); err != nil {
		return fmt.Errorf("install playwright driver: %w", err)
	}
	return nil
}

// InstallBrowsers downloads the given engines into the playwright cache. Zero
// engines degrades to a driver-only install.
func (p *PlaywrightInstaller) InstallBrowsers(ctx context.Context, engines []string) error {
	opts := &playwright.RunOptions{
		Browsers: engines,
		Verbose:  p.verbose,
	}
	if len(engines) == 0 {
		opts.SkipInstallBrowsers = true
	}
	if err := p.install(opts); err != nil {
		return fmt.Errorf("install browsers: %w", err)
	}
	return nil
}

// ForceReinstall clears the cached runtime and installs the engines again,
// overwriting whatever partial state an earlier install left behind.
func (p *PlaywrightInstaller) ForceReinstall(ctx context.Context, engines []string) error {
	for _, dir := range p.cacheDirs {
		if dir == "" {
			continue
		}
		if err := p.removeAll(dir); err != nil {
			p.logger.Warn("cache dir cleanup failed", zap.String("dir", dir), zap.Error(err))
			continue
		}
		p.logger.Info("cleared browser cache", zap.String("dir", dir))
	}
	return p.InstallBrowsers(ctx, engines)
}
