package ohlcv

import (
	"context"
	"log/slog"
	"time"

	"tickerlake/apperror"
	"tickerlake/utils"
)

// Ingestion fetches one instrument's history through a provider and checks the result before it is
// handed to storage.
type Ingestion struct {
	provider IngestionProvider
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time
}

func NewIngestor(provider IngestionProvider, m *Metrics, logger *slog.Logger) *Ingestion {
	if m == nil {
		m = &Metrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestion{
		provider: provider,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Fetch returns the bars of instrument over period. Any provider failure, and an empty result, is
// reported as a ProviderError; nothing is retried.
func (oi *Ingestion) Fetch(ctx context.Context, instrument string, period Period) (*Table, error) {
	r := period.Range(oi.now())
	oi.metrics.SetSource(oi.provider.Source())

	oi.logger.Info("fetching bars",
		"source", oi.provider.Source(),
		"ticker", instrument,
		"period", period,
		"from", r.From.Format(time.DateOnly),
		"to", r.To.Format(time.DateOnly),
	)

	t, err := oi.provider.Fetch(ctx, instrument, r)
	if err != nil {
		if apperror.CodeOf(err) != "" {
			return nil, err
		}
		return nil, apperror.Wrap(apperror.ProviderError, err, "fetch "+instrument)
	}
	if t == nil || t.Len() == 0 {
		return nil, apperror.Newf(apperror.ProviderError, "no data found for %q, check the symbol", instrument)
	}
	oi.metrics.Fetched(instrument, t.Len())

	// Weekdays overcount trading days (holidays), so only flag results well below them.
	if period != PeriodMax {
		expected := utils.WeekdaysBetween(r.From, r.To)
		if t.Len()*2 < expected {
			oi.logger.Warn("sparse history returned", "ticker", instrument, "bars", t.Len(), "weekdays", expected)
		}
	}

	oi.logger.Info("fetched bars", "ticker", instrument, "bars", t.Len(),
		"first", t.First().Date.Format(time.DateOnly), "last", t.Last().Date.Format(time.DateOnly))
	return t, nil
}
