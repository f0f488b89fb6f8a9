package analyzer

import (
	"log/slog"

	"github.com/panbanda/pyaudit/pkg/config"
)

// FromConfig creates an engine from loaded settings. Extra options are
// applied last.
func FromConfig(cfg *config.Config, logger *slog.Logger, opts ...Option) *Engine {
	base := []Option{
		WithThresholds(cfg.Thresholds()),
		WithCapability(cfg.Capability()),
		WithLogger(logger),
		WithSequentialPasses(!cfg.Analysis.ParallelPasses),
		WithMemoSize(cfg.Analysis.MemoSize),
		WithWorkers(cfg.Analysis.Workers),
		WithMaxFileSize(cfg.Analysis.MaxFileSize),
	}
	return New(append(base, opts...)...)
}
