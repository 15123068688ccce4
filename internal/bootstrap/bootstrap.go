// Package bootstrap provisions the runtime a deployment needs before the
// server can start: the dependency manifest first, then the headless browser
// bundle guarded by a cache-existence check, with a single forced reinstall
// as the fallback when the normal install leaves no cache behind.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bolagsradar/listings-scraper/internal/metrics"
	"github.com/bolagsradar/listings-scraper/internal/progress"
)

// ErrProvisionDegraded marks a browser provisioning failure the server can
// start over: probe fetches keep working and headless renders fail until the
// runtime is repaired. Dependency failures are never degraded.
var ErrProvisionDegraded = errors.New("browser provisioning incomplete")

// Config controls a provisioning pass.
type Config struct {
	// Engines lists the browser engines to install. Empty means driver-only.
	Engines []string
	// CacheDirs holds the candidate browser cache locations, checked in order.
	CacheDirs []string
	// SkipBrowserInstall leaves the browser runtime untouched.
	SkipBrowserInstall bool
	// InstallTimeout bounds a whole provisioning pass.
	InstallTimeout time.Duration
	Manifest       Manifest
}

// BrowserInstaller manages the headless browser runtime on disk.
type BrowserInstaller interface {
	// InstallDriver ensures the driver bundle without downloading browsers.
	InstallDriver(ctx context.Context) error
	// InstallBrowsers downloads the given engines into the cache.
	InstallBrowsers(ctx context.Context, engines []string) error
	// ForceReinstall discards cached state and installs from scratch.
	ForceReinstall(ctx context.Context, engines []string) error
}

// IDSource mints identifiers for provisioning passes.
type IDSource interface {
	NewRawID() (uuid.UUID, error)
}

// Bootstrapper runs the provisioning sequence.
type Bootstrapper struct {
	cfg       Config
	installer BrowserInstaller
	runner    CommandRunner
	ids       IDSource
	emitter   progress.Emitter
	logger    *zap.Logger
	lookPath  func(file string) (string, error)
}

// New constructs a Bootstrapper. The installer is required; runner, ids,
// emitter and logger may be nil.
func New(
	cfg Config,
	installer BrowserInstaller,
	runner CommandRunner,
	ids IDSource,
	emitter progress.Emitter,
	logger *zap.Logger,
) *Bootstrapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if runner == nil {
		runner = &execRunner{logger: logger}
	}
	if cfg.InstallTimeout <= 0 {
		cfg.InstallTimeout = 10 * time.Minute
	}
	return &Bootstrapper{
		cfg:       cfg,
		installer: installer,
		runner:    runner,
		ids:       ids,
		emitter:   emitter,
		logger:    logger,
		lookPath:  exec.LookPath,
	}
}

// Run provisions dependencies and then the browser runtime, emitting one
// progress event per step. Browser failures come back wrapped in
// ErrProvisionDegraded so the serve path can log them and continue to the
// launch; dependency failures abort the pass as-is.
func (b *Bootstrapper) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.InstallTimeout)
	defer cancel()

	runID := b.newRunID()
	started := time.Now()
	b.logger.Info("provisioning started", zap.String("run_id", runID.String()))
	b.emit(progress.Event{
		RunID: progress.UUIDToBytes(runID),
		TS:    started.UTC(),
		Stage: progress.StageRunStart,
		Note:  "provision",
	})

	if err := b.ensureDependencies(ctx, runID); err != nil {
		err = fmt.Errorf("dependency install: %w", err)
		b.emitRunEnd(runID, started, err)
		return err
	}

	if err := b.ensureBrowsers(ctx, runID); err != nil {
		err = fmt.Errorf("%w: %w", ErrProvisionDegraded, err)
		b.emitRunEnd(runID, started, err)
		return err
	}

	b.emitRunEnd(runID, started, nil)
	b.logger.Info("provisioning complete", zap.Duration("took", time.Since(started)))
	return nil
}

// EnsureDependencies verifies every required binary resolves on PATH and runs
// the manifest install commands in order. The first failure aborts; there are
// no retries.
func (b *Bootstrapper) EnsureDependencies(ctx context.Context) error {
	return b.ensureDependencies(ctx, uuid.Nil)
}

// EnsureBrowsers provisions the headless browser runtime. An existing cache
// directory short-circuits the engine download; when the install leaves no
// cache behind, a forced reinstall runs exactly once.
func (b *Bootstrapper) EnsureBrowsers(ctx context.Context) error {
	return b.ensureBrowsers(ctx, uuid.Nil)
}

func (b *Bootstrapper) ensureDependencies(ctx context.Context, runID uuid.UUID) error {
	started := time.Now()
	b.emitStep(runID, progress.StageStepStart, progress.StepDependencies, 0, "")

	if err := b.installDependencies(ctx); err != nil {
		b.emitStep(runID, progress.StageStepError, progress.StepDependencies, time.Since(started), err.Error())
		return err
	}

	b.emitStep(runID, progress.StageStepDone, progress.StepDependencies, time.Since(started), "")
	return nil
}

func (b *Bootstrapper) installDependencies(ctx context.Context) error {
	for _, name := range b.cfg.Manifest.Requires {
		if _, err := b.lookPath(name); err != nil {
			return fmt.Errorf("required binary %q not found: %w", name, err)
		}
	}
	for _, argv := range b.cfg.Manifest.Install {
		if err := b.runner.Run(ctx, argv); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bootstrapper) ensureBrowsers(ctx context.Context, runID uuid.UUID) error {
	if b.cfg.SkipBrowserInstall {
		b.logger.Info("browser install skipped by configuration")
		return nil
	}
	if b.installer == nil {
		return errors.New("no browser installer configured")
	}

	// The driver bundle is needed even when the browsers are already cached.
	if err := b.installDriver(ctx); err != nil {
		return err
	}

	verifyStart := time.Now()
	b.emitStep(runID, progress.StageStepStart, progress.StepBrowserVerify, 0, "")
	if dir, ok := b.cachePresent(); ok {
		b.logger.Info("browser cache found, skipping install", zap.String("dir", dir))
		b.emitStep(runID, progress.StageStepDone, progress.StepBrowserVerify, time.Since(verifyStart), "cache found: "+dir)
		return nil
	}
	b.emitStep(runID, progress.StageStepDone, progress.StepBrowserVerify, time.Since(verifyStart), "cache missing")

	installStart := time.Now()
	b.emitStep(runID, progress.StageStepStart, progress.StepBrowserInstall, 0, "")
	installErr := b.installer.InstallBrowsers(ctx, b.cfg.Engines)
	metrics.ObserveBrowserInstall("install", resultLabel(installErr), time.Since(installStart))
	if installErr != nil {
		// Not fatal yet: the re-check below decides whether the forced
		// reinstall gets a chance to repair the runtime.
		b.logger.Warn("browser install failed", zap.Error(installErr))
		b.emitStep(runID, progress.StageStepError, progress.StepBrowserInstall, time.Since(installStart), installErr.Error())
	} else {
		b.emitStep(runID, progress.StageStepDone, progress.StepBrowserInstall, time.Since(installStart), "")
	}

	if dir, ok := b.cachePresent(); ok {
		if installErr != nil {
			b.logger.Warn("browser install reported an error but the cache is present", zap.String("dir", dir))
		} else {
			b.logger.Info("browser runtime installed", zap.String("dir", dir))
		}
		return nil
	}

	b.logger.Warn("browser cache still missing after install, forcing reinstall")
	forcedStart := time.Now()
	b.emitStep(runID, progress.StageStepStart, progress.StepForcedReinstall, 0, "")
	forcedErr := b.installer.ForceReinstall(ctx, b.cfg.Engines)
	metrics.ObserveBrowserInstall("forced", resultLabel(forcedErr), time.Since(forcedStart))
	if forcedErr != nil {
		b.emitStep(runID, progress.StageStepError, progress.StepForcedReinstall, time.Since(forcedStart), forcedErr.Error())
		return fmt.Errorf("forced reinstall: %w", forcedErr)
	}
	b.emitStep(runID, progress.StageStepDone, progress.StepForcedReinstall, time.Since(forcedStart), "")

	if _, ok := b.cachePresent(); !ok {
		b.logger.Warn("browser cache still missing after forced reinstall")
	}
	return nil
}

func (b *Bootstrapper) installDriver(ctx context.Context) error {
	started := time.Now()
	err := b.installer.InstallDriver(ctx)
	metrics.ObserveBrowserInstall("driver", resultLabel(err), time.Since(started))
	if err != nil {
		return fmt.Errorf("install driver: %w", err)
	}
	b.logger.Debug("browser driver present", zap.Duration("took", time.Since(started)))
	return nil
}

// cachePresent reports the first configured cache directory that exists. An
// empty directory still counts: the guard checks existence only.
func (b *Bootstrapper) cachePresent() (string, bool) {
	for _, dir := range b.cfg.CacheDirs {
		if dir == "" {
			continue
		}
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir, true
		}
	}
	return "", false
}

func (b *Bootstrapper) newRunID() uuid.UUID {
	if b.ids == nil {
		return uuid.New()
	}
	id, err := b.ids.NewRawID()
	if err != nil {
		b.logger.Warn("run id generation failed", zap.Error(err))
		return uuid.New()
	}
	return id
}

func (b *Bootstrapper) emit(ev progress.Event) {
	if b.emitter == nil || ev.RunID == [16]byte{} {
		return
	}
	b.emitter.Emit(ev)
}

func (b *Bootstrapper) emitStep(runID uuid.UUID, stage progress.Stage, step progress.Step, dur time.Duration, note string) {
	b.emit(progress.Event{
		RunID: progress.UUIDToBytes(runID),
		TS:    time.Now().UTC(),
		Stage: stage,
		Step:  step,
		Dur:   dur,
		Note:  note,
	})
}

func (b *Bootstrapper) emitRunEnd(runID uuid.UUID, started time.Time, err error) {
	ev := progress.Event{
		RunID: progress.UUIDToBytes(runID),
		TS:    time.Now().UTC(),
		Stage: progress.StageRunDone,
		Dur:   time.Since(started),
	}
	if err != nil {
		ev.Stage = progress.StageRunError
		ev.Note = err.Error()
	}
	b.emit(ev)
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
