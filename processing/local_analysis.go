package processing

import (
	"context"
	"log/slog"

	"tickerlake/apperror"
	"tickerlake/config"
	"tickerlake/ohlcv"
	"tickerlake/partition"
	"tickerlake/storage"
)

// LocalAnalysis summarises stored artifacts in process and writes a workbook report. It only reads
// from local storage: artifacts of a cloud location are looked up at the same keys on local disk.
type LocalAnalysis struct {
	local     storage.Backend
	outputDir string
	window    int
	logger    *slog.Logger
}

func NewLocalAnalysis(local storage.Backend, cfg config.ProcessingConfig, logger *slog.Logger) *LocalAnalysis {
	if logger == nil {
		logger = slog.Default()
	}
	window := cfg.RollingWindow
	if window == 0 {
		window = config.DefaultRollingWindow
	}
	return &LocalAnalysis{local: local, outputDir: cfg.OutputDir, window: window, logger: logger}
}

func (a *LocalAnalysis) Target() Target { return Local }

func (a *LocalAnalysis) Dispatch(ctx context.Context, loc storage.Location) (*Outcome, error) {
	if len(loc.Keys) == 0 {
		return nil, apperror.New(apperror.DataUnavailable, "location holds no artifacts")
	}

	if loc.Target != storage.Local {
		for _, k := range loc.Keys {
			ok, err := a.local.Exists(ctx, k)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, apperror.Newf(apperror.DataUnavailable,
					"local analysis reads local storage only and there is no local copy of %s (stored at %s)", k, loc.URI(k))
			}
		}
	}

	t, err := a.load(ctx, loc.Keys)
	if err != nil {
		return nil, err
	}

	summary, err := Summarize(t, a.window)
	if err != nil {
		return nil, err
	}

	asOf := loc.Keys[len(loc.Keys)-1].Date().Format(partition.DateFormat)
	path := ReportPath(a.outputDir, t.Instrument(), asOf)
	if err := writeReport(path, summary, priceRows(Frame(t, a.window))); err != nil {
		return nil, apperror.Wrap(apperror.StorageIOError, err, "write report")
	}

	a.logger.Info("local analysis complete",
		"ticker", summary.Instrument,
		"bars", summary.Bars,
		"period_return", summary.PeriodReturn,
		"report", path,
	)
	return &Outcome{Target: Local, Summary: summary, ReportPath: path}, nil
}

func (a *LocalAnalysis) load(ctx context.Context, keys []partition.Key) (*ohlcv.Table, error) {
	tables := make([]*ohlcv.Table, 0, len(keys))
	for _, k := range keys {
		t, err := a.local.Read(ctx, k)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	if len(tables) == 1 {
		return tables[0], nil
	}

	t, err := ohlcv.Merge(keys[0].Instrument(), tables...)
	if err != nil {
		return nil, apperror.Wrap(apperror.DataUnavailable, err, "combine partitions")
	}
	return t, nil
}
