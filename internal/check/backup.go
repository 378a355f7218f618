package check

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vigilhq/vigil/internal/config"
	"github.com/vigilhq/vigil/internal/health"
)

// backupDeduction is the penalty for a stale (or absent) last backup.
const backupDeduction = 25

// backupCheck verifies data durability: the newest entry in the backup
// directory must be younger than the configured staleness limit.
type backupCheck struct {
	cfg config.BackupConfig
	now func() time.Time // injectable for deterministic tests
}

func newBackup(cfg config.BackupConfig) *backupCheck {
	return &backupCheck{cfg: cfg, now: time.Now}
}

func (b *backupCheck) ID() string { return "backup" }

func (b *backupCheck) Collect(ctx context.Context) (*health.Result, error) {
	entries, err := os.ReadDir(b.cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("read backup dir %q: %w", b.cfg.Dir, err)
	}

	var newest time.Time
	var newestName string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(newest) {
			newest = info.ModTime()
			newestName = e.Name()
		}
	}

	if newestName == "" {
		return &health.Result{
			Component: b.ID(),
			Status:    health.StatusCritical,
			Deduction: backupDeduction,
			Message:   fmt.Sprintf("no backups found in %s", b.cfg.Dir),
		}, nil
	}

	age := b.now().Sub(newest)
	res := &health.Result{
		Component: b.ID(),
		Status:    health.StatusOK,
		Metrics:   map[string]float64{"backup_age_seconds": age.Seconds()},
	}

	if age > b.cfg.MaxAge() {
		res.Status = health.StatusCritical
		res.Deduction = backupDeduction
		res.Message = fmt.Sprintf("last backup %s is %s old (limit %s)",
			filepath.Join(b.cfg.Dir, newestName), age.Round(time.Second), b.cfg.MaxAge())
	} else {
		res.Message = fmt.Sprintf("last backup %s old", age.Round(time.Second))
	}
	return res, nil
}
