package dispatch

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/vigilhq/vigil/internal/config"
)

// healTimeout bounds a single remediation attempt.
const healTimeout = 2 * time.Minute

// CommandExecutor runs whitelisted heal procedures as local commands.
// Procedures are expected to be idempotent and reversible; the executor
// enforces the whitelist a second time on top of the dispatcher's check.
type CommandExecutor struct {
	procs map[string]config.HealProcedure
}

// NewCommandExecutor builds an executor over the configured whitelist.
func NewCommandExecutor(cfg config.HealConfig) *CommandExecutor {
	procs := make(map[string]config.HealProcedure, len(cfg.Procedures))
	for _, p := range cfg.Procedures {
		procs[p.ID] = p
	}
	return &CommandExecutor{procs: procs}
}

// Execute runs the procedure's command bounded by healTimeout. Output is
// folded into the returned error on failure so the downgrade notification
// can carry it.
func (e *CommandExecutor) Execute(ctx context.Context, procedureID string) error {
	p, ok := e.procs[procedureID]
	if !ok {
		return fmt.Errorf("procedure %q: %w", procedureID, ErrNotWhitelisted)
	}

	cctx, cancel := context.WithTimeout(ctx, healTimeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, p.Command[0], p.Command[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("procedure %q: %w (output: %s)", procedureID, err, truncate(string(out), 512))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
