package sioyek

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/custodia-labs/marginalia-cli/internal/core/ports/driven"
	"github.com/custodia-labs/marginalia-cli/internal/logger"
)

// Ensure Control implements the interface.
var _ driven.ViewerControl = (*Control)(nil)

// DefaultExecutable is the sioyek binary looked up on PATH.
const DefaultExecutable = "sioyek"

// Control drives a running viewer instance through its command-line
// interface. Each call spawns the binary with --execute-command, which
// sioyek forwards to the already-running instance.
type Control struct {
	executable string
}

// NewControl creates a viewer control. An empty executable selects the
// default binary name.
func NewControl(executable string) *Control {
	if executable == "" {
		executable = DefaultExecutable
	}
	return &Control{executable: executable}
}

// SetStatus shows a single-line message on the viewer's status bar.
func (c *Control) SetStatus(ctx context.Context, message string) error {
	message = strings.ReplaceAll(message, "\n", " ")
	return c.execute(ctx, "set_status_string", message)
}

// Reload asks the viewer to re-read its annotation tables.
func (c *Control) Reload(ctx context.Context) error {
	return c.execute(ctx, "reload", "")
}

// execute runs one viewer command. Command data is passed only when
// non-empty.
func (c *Control) execute(ctx context.Context, command, data string) error {
	args := []string{"--execute-command", command}
	if data != "" {
		args = append(args, "--execute-command-data", data)
	}

	cmd := exec.CommandContext(ctx, c.executable, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("viewer command %s: %w (output: %s)",
			command, err, strings.TrimSpace(string(out)))
	}
	if len(out) > 0 {
		logger.Debug("Viewer %s output: %s", command, strings.TrimSpace(string(out)))
	}
	return nil
}
