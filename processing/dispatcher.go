// Package processing analyses stored artifacts, either in process or by rendering code for a remote
// Spark environment.
package processing

import (
	"context"
	"log/slog"

	"tickerlake/apperror"
	"tickerlake/config"
	"tickerlake/storage"
)

// Dispatcher processes the artifacts at a storage location.
type Dispatcher interface {
	Target() Target
	Dispatch(ctx context.Context, loc storage.Location) (*Outcome, error)
}

// Outcome is the result of a dispatch. LocalAnalysis fills Summary and ReportPath; Remote fills Code.
type Outcome struct {
	Target     Target
	Summary    *Summary
	ReportPath string
	Code       string
}

// New builds the dispatcher for target from the run configuration.
func New(target Target, cfg *config.Config, logger *slog.Logger) (Dispatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch target {
	case Local:
		local, err := storage.NewLocal(cfg.Storage.LocalRootPath, logger)
		if err != nil {
			return nil, err
		}
		return NewLocalAnalysis(local, cfg.Processing, logger), nil
	case Remote:
		return NewRemoteTemplate(cfg.Storage.Partitioning, logger), nil
	default:
		return nil, apperror.Newf(apperror.UnsupportedTarget, "unsupported processing target %q", target)
	}
}
