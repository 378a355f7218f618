package dispatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vigilhq/vigil/internal/config"
)

func TestCommandExecutor_RunsWhitelistedProcedure(t *testing.T) {
	marker := filepath.Join(t.TempDir(), "ran")
	e := NewCommandExecutor(config.HealConfig{Procedures: []config.HealProcedure{
		{ID: "touch-marker", Component: "probe", Command: []string{"touch", marker}},
	}})

	if err := e.Execute(context.Background(), "touch-marker"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Errorf("procedure did not run: %v", err)
	}
}

func TestCommandExecutor_RefusesUnknownProcedure(t *testing.T) {
	e := NewCommandExecutor(config.HealConfig{})
	err := e.Execute(context.Background(), "anything")
	if !errors.Is(err, ErrNotWhitelisted) {
		t.Errorf("got %v, want ErrNotWhitelisted", err)
	}
}

func TestCommandExecutor_FailureCarriesOutput(t *testing.T) {
	e := NewCommandExecutor(config.HealConfig{Procedures: []config.HealProcedure{
		{ID: "fail", Component: "probe", Command: []string{"sh", "-c", "echo restart refused >&2; exit 1"}},
	}})

	err := e.Execute(context.Background(), "fail")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "restart refused") {
		t.Errorf("error should carry command output, got %v", err)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	long := strings.Repeat("x", 600)
	got := truncate(long, 512)
	if !strings.HasSuffix(got, "…") {
		t.Errorf("truncated output should end with ellipsis: %q", got[500:])
	}
	if len(got) >= len(long) {
		t.Errorf("output was not truncated: %d bytes", len(got))
	}
}
