package ingestion_engine

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/markdave123-py/docbundle/internal/core"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"
)

var _ core.ExtractionRuntime = (*DocconvRuntime)(nil)

// pdfcpu keeps its config directory setting in a package variable.
var disablePDFConfigDir sync.Once

// NewDocconvRuntime builds an uninitialized runtime for worker id.
func NewDocconvRuntime(cfg RuntimeConfig, id int, log *zap.Logger) *DocconvRuntime {
	if log == nil {
		log = zap.NewNop()
	}
	return &DocconvRuntime{cfg: cfg, id: id, log: log.With(zap.Int("runtime", id))}
}

// NewDocconvFactory returns a RuntimeFactory producing DocconvRuntime instances.
func NewDocconvFactory(cfg RuntimeConfig, log *zap.Logger) RuntimeFactory {
	return func(id int) core.ExtractionRuntime {
		return NewDocconvRuntime(cfg, id, log)
	}
}

// Init prepares the scratch directory and the pdfcpu configuration.
func (r *DocconvRuntime) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := exec.LookPath("pdftotext"); err != nil {
		if r.cfg.RequirePDFToText {
			return fmt.Errorf("pdftotext is required for PDF extraction: %w", err)
		}
		r.log.Warn("pdftotext not found, PDF documents will fail to extract", zap.Error(err))
	}

	disablePDFConfigDir.Do(api.DisableConfigDir)

	dir, err := os.MkdirTemp(r.cfg.ScratchDir, fmt.Sprintf("docbundle-rt%d-*", r.id))
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	r.dir = dir

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	r.pdfConf = conf

	r.log.Debug("runtime initialized", zap.String("scratch_dir", dir))
	return nil
}

// Extract dispatches on the lower-cased file extension.
func (r *DocconvRuntime) Extract(ctx context.Context, name string, data []byte) (string, error) {
	if r.dir == "" {
		return "", fmt.Errorf("runtime %d used before Init", r.id)
	}
	return r.strategyFor(formatOf(name))(ctx, name, data)
}

// Close removes the scratch directory.
func (r *DocconvRuntime) Close() error {
	if r.dir == "" {
		return nil
	}
	err := os.RemoveAll(r.dir)
	r.dir = ""
	return err
}

// workspace returns a fresh per-request directory inside the scratch dir.
func (r *DocconvRuntime) workspace() (string, func(), error) {
	dir, err := os.MkdirTemp(r.dir, "req-*")
	if err != nil {
		return "", nil, fmt.Errorf("create request workspace: %w", err)
	}
	return dir, func() {
		if err := os.RemoveAll(dir); err != nil {
			r.log.Warn("failed to clean request workspace", zap.String("dir", dir), zap.Error(err))
		}
	}, nil
}
