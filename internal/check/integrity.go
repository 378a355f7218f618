package check

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vigilhq/vigil/internal/config"
	"github.com/vigilhq/vigil/internal/health"
)

// integrityDeduction is the penalty when any critical file fails
// verification.
const integrityDeduction = 15

// integrityCheck verifies the SHA-256 digests of configured critical files
// against their recorded values.
type integrityCheck struct {
	cfg config.IntegrityConfig
}

func newIntegrity(cfg config.IntegrityConfig) *integrityCheck {
	return &integrityCheck{cfg: cfg}
}

func (i *integrityCheck) ID() string { return "integrity" }

func (i *integrityCheck) Collect(ctx context.Context) (*health.Result, error) {
	var bad []string
	for _, f := range i.cfg.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sum, err := fileSHA256(f.Path)
		if err != nil {
			bad = append(bad, fmt.Sprintf("%s: %v", f.Path, err))
			continue
		}
		if !strings.EqualFold(sum, f.SHA256) {
			bad = append(bad, fmt.Sprintf("%s: checksum mismatch", f.Path))
		}
	}

	res := &health.Result{
		Component: i.ID(),
		Status:    health.StatusOK,
		Message:   fmt.Sprintf("%d files verified", len(i.cfg.Files)),
		Metrics: map[string]float64{
			"files_checked": float64(len(i.cfg.Files)),
			"files_failed":  float64(len(bad)),
		},
	}
	if len(bad) > 0 {
		res.Status = health.StatusCritical
		res.Deduction = integrityDeduction
		res.Message = strings.Join(bad, "; ")
	}
	return res, nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
