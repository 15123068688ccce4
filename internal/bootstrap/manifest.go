package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// Manifest declares the tooling a deployment must have before the service can
// run: binaries that must resolve on PATH and install commands executed in
// order. The default manifest is empty; deployments that need OS packages for
// the browser runtime declare them here.
type Manifest struct {
	Requires []string
	Install  [][]string
}

// CommandRunner executes one install command from the manifest.
type CommandRunner interface {
	Run(ctx context.Context, argv []string) error
}

// execRunner runs manifest commands through os/exec, forwarding combined
// output to the logger.
type execRunner struct {
	logger *zap.Logger
}

func (r *execRunner) Run(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return errors.New("empty install command")
	}

	name := strings.Join(argv, " ")
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	r.logger.Info("running install command", zap.String("command", name))
	err := cmd.Run()
	if text := strings.TrimSpace(out.String()); text != "" {
		r.logger.Debug("install command output",
			zap.String("command", name),
			zap.String("output", text),
		)
	}
	if err != nil {
		return fmt.Errorf("run %q: %w", name, err)
	}
	return nil
}
