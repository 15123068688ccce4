package bootstrap

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

func TestPlaywrightInstallerDriverOnly(t *testing.T) {
	t.Parallel()

	var got []*playwright.RunOptions
	p := NewPlaywrightInstaller(nil, true, zap.NewNop())
	p.install = func(opts ...*playwright.RunOptions) error {
		got = append(got, opts...)
		return nil
	}

	if err := p.InstallDriver(context.Background()); err != nil {
		t.Fatalf("InstallDriver() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("install invocations = %d, want 1", len(got))
	}
	if !got[0].SkipInstallBrowsers {
		t.Fatalf("RunOptions = %+v, want SkipInstallBrowsers", got[0])
	}
	if !got[0].Verbose {
		t.Fatalf("RunOptions = %+v, want Verbose", got[0])
	}
}

func TestPlaywrightInstallerScopesEngines(t *testing.T) {
	t.Parallel()

	var got []*playwright.RunOptions
	p := NewPlaywrightInstaller(nil, false, zap.NewNop())
	p.install = func(opts ...*playwright.RunOptions) error {
		got = append(got, opts...)
		return nil
	}

	if err := p.InstallBrowsers(context.Background(), []string{"chromium"}); err != nil {
		t.Fatalf("InstallBrowsers() error = %v", err)
	}
	if want := []string{"chromium"}; !reflect.DeepEqual(got[0].Browsers, want) {
		t.Fatalf("Browsers = %v, want %v", got[0].Browsers, want)
	}
	if got[0].SkipInstallBrowsers {
		t.Fatalf("RunOptions = %+v, want browsers included", got[0])
	}

	// Zero engines degrades to a driver-only install.
	if err := p.InstallBrowsers(context.Background(), nil); err != nil {
		t.Fatalf("InstallBrowsers() error = %v", err)
	}
	if !got[1].SkipInstallBrowsers {
		t.Fatalf("RunOptions = %+v, want SkipInstallBrowsers for zero engines", got[1])
	}
}

func TestPlaywrightInstallerForceReinstallClearsCache(t *testing.T) {
	t.Parallel()

	var removed []string
	var installs int
	p := NewPlaywrightInstaller([]string{"/opt/render/.cache/ms-playwright", "/root/.cache/ms-playwright"}, false, zap.NewNop())
	p.removeAll = func(path string) error {
		removed = append(removed, path)
		return nil
	}
	p.install = func(opts ...*playwright.RunOptions) error {
		installs++
		return nil
	}

	if err := p.ForceReinstall(context.Background(), []string{"chromium"}); err != nil {
		t.Fatalf("ForceReinstall() error = %v", err)
	}
	want := []string{"/opt/render/.cache/ms-playwright", "/root/.cache/ms-playwright"}
	if !reflect.DeepEqual(removed, want) {
		t.Fatalf("removed = %v, want %v", removed, want)
	}
	if installs != 1 {
		t.Fatalf("install invocations = %d, want 1", installs)
	}
}

func TestPlaywrightInstallerForceReinstallSurvivesRemoveError(t *testing.T) {
	t.Parallel()

	var installs int
	p := NewPlaywrightInstaller([]string{"/protected"}, false, zap.NewNop())
	p.removeAll = func(string) error { return errors.New("permission denied") }
	p.install = func(...*playwright.RunOptions) error {
		installs++
		return nil
	}

	if err := p.ForceReinstall(context.Background(), []string{"chromium"}); err != nil {
		t.Fatalf("ForceReinstall() error = %v", err)
	}
	if installs != 1 {
		t.Fatalf("install invocations = %d, want 1", installs)
	}
}

func TestPlaywrightInstallerWrapsInstallError(t *testing.T) {
	t.Parallel()

	p := NewPlaywrightInstaller(nil, false, zap.NewNop())
	p.install = func(...*playwright.RunOptions) error {
		return errors.New("driver download failed")
	}

	if err := p.InstallBrowsers(context.Background(), []string{"chromium"}); err == nil {
		t.Fatal("InstallBrowsers() error = nil, want failure")
	}
}
