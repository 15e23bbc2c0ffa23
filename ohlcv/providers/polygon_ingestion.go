package providers

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"

	"tickerlake/ohlcv"
)

// maxAggsPerPage is the largest page the aggregates endpoint will return.
const maxAggsPerPage = 50000

// PolygonIngestion conforms to the `IngestionProvider` interface using Polygon's daily aggregates.
type PolygonIngestion struct {
	apiKey string
	client *polygon.Client
	logger *slog.Logger
	loc    *time.Location
}

func NewPolygon(apiKey string, logger *slog.Logger) *PolygonIngestion {
	if logger == nil {
		logger = slog.Default()
	}

	// Daily aggregates are stamped at midnight Eastern Time.
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		logger.Warn("could not load America/New_York, using UTC for aggregate dates", "error", err)
		loc = time.UTC
	}

	return &PolygonIngestion{
		apiKey: apiKey,
		client: polygon.New(apiKey),
		logger: logger,
		loc:    loc,
	}
}

func (pi *PolygonIngestion) Source() string { return "polygon" }

func (pi *PolygonIngestion) Fetch(ctx context.Context, instrument string, r ohlcv.DateRange) (*ohlcv.Table, error) {
	if pi.apiKey == "" {
		return nil, fmt.Errorf("polygon api key is not set")
	}

	params := models.ListAggsParams{
		Ticker:     instrument,
		Multiplier: 1,
		Timespan:   models.Day,
		From:       models.Millis(r.From),
		To:         models.Millis(r.To),
	}.WithAdjusted(true).WithOrder(models.Asc).WithLimit(maxAggsPerPage)

	var bars []ohlcv.Bar
	iter := pi.client.ListAggs(ctx, params)
	for iter.Next() {
		bars = append(bars, pi.toBar(iter.Item()))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("polygon aggregates for %s: %w", instrument, err)
	}

	pi.logger.Debug("retrieved polygon aggregates", "ticker", instrument, "count", len(bars))
	return ohlcv.NewTable(instrument, ohlcv.DedupeBars(bars))
}

// toBar converts an aggregate into a bar. Polygon reports volume as a float; it is rounded to whole
// shares.
func (pi *PolygonIngestion) toBar(agg models.Agg) ohlcv.Bar {
	return ohlcv.Bar{
		Date:   ohlcv.Day(time.Time(agg.Timestamp).In(pi.loc)),
		Open:   agg.Open,
		High:   agg.High,
		Low:    agg.Low,
		Close:  agg.Close,
		Volume: int64(math.Round(agg.Volume)),
	}
}
