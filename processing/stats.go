package processing

import (
	"math"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"tickerlake/apperror"
	"tickerlake/ohlcv"
	"tickerlake/partition"
)

// Summary describes the price history of one instrument over a run's period.
type Summary struct {
	Instrument   string
	From, To     time.Time
	Bars         int
	FirstClose   float64
	LastClose    float64
	PeriodReturn float64
	High         float64
	Low          float64
	MeanClose    float64
	MeanVolume   float64

	// Volatility is the sample standard deviation of daily close-to-close returns; zero with fewer
	// than three bars.
	Volatility  float64
	MaxDrawdown float64

	// Rolling statistics of close over the last Window bars. HasRolling is false when the table is
	// shorter than the window.
	Window        int
	HasRolling    bool
	RollingMean   float64
	RollingStdDev float64
}

// Frame lays the table out as a date/close/volume frame with the rolling mean of close, which is NaN
// until the window is full.
func Frame(t *ohlcv.Table, window int) dataframe.DataFrame {
	dates := make([]string, t.Len())
	for i, b := range t.Bars() {
		dates[i] = b.Date.Format(partition.DateFormat)
	}
	closes := series.New(t.Closes(), series.Float, "close")

	return dataframe.New(
		series.New(dates, series.String, "date"),
		closes,
		series.New(t.Volumes(), series.Float, "volume"),
		rollingMean(closes, window),
	)
}

func rollingMean(closes series.Series, window int) series.Series {
	if window < 1 || window > closes.Len() {
		nan := make([]float64, closes.Len())
		for i := range nan {
			nan[i] = math.NaN()
		}
		return series.New(nan, series.Float, "rolling_mean")
	}
	s := closes.Rolling(window).Mean()
	s.Name = "rolling_mean"
	return s
}

// Summarize computes the summary of t. The table must not be empty.
func Summarize(t *ohlcv.Table, window int) (*Summary, error) {
	if t == nil || t.Len() == 0 {
		return nil, apperror.New(apperror.DataUnavailable, "no bars to analyse")
	}

	closes := series.New(t.Closes(), series.Float, "close")
	volumes := series.New(t.Volumes(), series.Float, "volume")
	first, last := t.First(), t.Last()

	highs := make([]float64, t.Len())
	lows := make([]float64, t.Len())
	for i, b := range t.Bars() {
		highs[i], lows[i] = b.High, b.Low
	}

	s := &Summary{
		Instrument: t.Instrument(),
		From:       first.Date,
		To:         last.Date,
		Bars:       t.Len(),
		FirstClose: first.Close,
		LastClose:  last.Close,
		High:       series.New(highs, series.Float, "high").Max(),
		Low:        series.New(lows, series.Float, "low").Min(),
		MeanClose:  closes.Mean(),
		MeanVolume: volumes.Mean(),
		Window:     window,
	}
	if first.Close != 0 {
		s.PeriodReturn = last.Close/first.Close - 1
	}

	if returns := dailyReturns(t.Closes()); len(returns) > 1 {
		s.Volatility = series.New(returns, series.Float, "returns").StdDev()
	}
	s.MaxDrawdown = maxDrawdown(t.Closes())

	if window >= 2 && t.Len() >= window {
		s.HasRolling = true
		s.RollingMean = lastValue(closes.Rolling(window).Mean())
		s.RollingStdDev = lastValue(closes.Rolling(window).StdDev())
	}
	return s, nil
}

func dailyReturns(closes []float64) []float64 {
	var out []float64
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		out = append(out, closes[i]/closes[i-1]-1)
	}
	return out
}

// maxDrawdown is the largest peak-to-trough fall of closes as a non-positive fraction of the peak.
func maxDrawdown(closes []float64) float64 {
	var peak, worst float64
	for i, c := range closes {
		if i == 0 || c > peak {
			peak = c
		}
		if peak > 0 {
			worst = math.Min(worst, c/peak-1)
		}
	}
	return worst
}

func lastValue(s series.Series) float64 {
	return s.Elem(s.Len() - 1).Float()
}
