package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"tickerlake/ohlcv"
)

const (
	defaultChartEndpoint = "https://query2.finance.yahoo.com/v8/finance/chart"
	defaultCookieURL     = "https://fc.yahoo.com"
	defaultCrumbURL      = "https://query1.finance.yahoo.com/v1/test/getcrumb"
	chunkDays            = 1250
	userAgent            = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// YahooIngestion fetches daily bars from the Yahoo Finance v8 chart API. It authenticates with a
// session cookie and crumb token, the same handshake the yfinance Python library performs.
type YahooIngestion struct {
	workers       int
	client        *http.Client
	chartEndpoint string
	cookieURL     string
	crumbURL      string
	logger        *slog.Logger

	mu    sync.Mutex
	crumb string
}

// YahooOption configures a YahooIngestion.
type YahooOption func(*YahooIngestion)

// WithWorkers bounds how many date-range chunks are fetched at once.
func WithWorkers(n int) YahooOption {
	return func(y *YahooIngestion) { y.workers = n }
}

// WithClient sets the HTTP client. The client should have a cookie jar.
func WithClient(c *http.Client) YahooOption {
	return func(y *YahooIngestion) { y.client = c }
}

func WithChartEndpoint(ep string) YahooOption {
	return func(y *YahooIngestion) { y.chartEndpoint = ep }
}

func WithCookieURL(u string) YahooOption {
	return func(y *YahooIngestion) { y.cookieURL = u }
}

func WithCrumbURL(u string) YahooOption {
	return func(y *YahooIngestion) { y.crumbURL = u }
}

func WithLogger(l *slog.Logger) YahooOption {
	return func(y *YahooIngestion) { y.logger = l }
}

func NewYahoo(opts ...YahooOption) *YahooIngestion {
	jar, _ := cookiejar.New(nil)
	y := &YahooIngestion{
		workers:       4,
		client:        &http.Client{Jar: jar, Timeout: 30 * time.Second},
		chartEndpoint: defaultChartEndpoint,
		cookieURL:     defaultCookieURL,
		crumbURL:      defaultCrumbURL,
		logger:        slog.Default(),
	}
	for _, o := range opts {
		o(y)
	}
	if y.workers < 1 {
		y.workers = 1
	}
	return y
}

func (y *YahooIngestion) Source() string { return "yahoo" }

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		Currency  string `json:"currency"`
		GMTOffset int64  `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []chartQuote `json:"quote"`
	} `json:"indicators"`
}

// chartQuote holds parallel arrays indexed like chartResult.Timestamp. Yahoo sends null for days
// without trading, hence the pointers.
type chartQuote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

// Fetch retrieves the daily bars of instrument in r. The range is split into chunks fetched in
// parallel; a failure of any chunk fails the whole fetch.
func (y *YahooIngestion) Fetch(ctx context.Context, instrument string, r ohlcv.DateRange) (*ohlcv.Table, error) {
	if instrument == "" {
		return nil, fmt.Errorf("symbol cannot be empty")
	}
	if r.From.After(r.To) {
		return nil, fmt.Errorf("start date cannot be after end date")
	}

	if err := y.ensureCrumb(ctx); err != nil {
		return nil, fmt.Errorf("yahoo auth: %w", err)
	}

	chunks := r.Split(chunkDays)
	results := make([][]ohlcv.Bar, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(y.workers)
	for i, c := range chunks {
		g.Go(func() error {
			bars, err := y.fetchChart(gctx, instrument, c)
			if err != nil {
				return fmt.Errorf("chunk %s..%s: %w", c.From.Format(time.DateOnly), c.To.Format(time.DateOnly), err)
			}
			results[i] = bars
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []ohlcv.Bar
	for _, bars := range results {
		for _, b := range bars {
			if r.Contains(b.Date) {
				all = append(all, b)
			}
		}
	}
	return ohlcv.NewTable(instrument, ohlcv.DedupeBars(all))
}

// ensureCrumb fetches a session cookie and crumb token if not already cached.
func (y *YahooIngestion) ensureCrumb(ctx context.Context) error {
	y.mu.Lock()
	defer y.mu.Unlock()

	if y.crumb != "" {
		return nil
	}

	// The cookie endpoint answers 404 but still sets the session cookie.
	cookieRes, err := y.get(ctx, y.cookieURL)
	if err != nil {
		return fmt.Errorf("fetch cookie: %w", err)
	}
	_ = cookieRes.Body.Close()

	crumbRes, err := y.get(ctx, y.crumbURL)
	if err != nil {
		return fmt.Errorf("fetch crumb: %w", err)
	}
	defer func() { _ = crumbRes.Body.Close() }()

	if crumbRes.StatusCode != http.StatusOK {
		return fmt.Errorf("crumb endpoint returned HTTP %d", crumbRes.StatusCode)
	}

	body, err := io.ReadAll(crumbRes.Body)
	if err != nil {
		return fmt.Errorf("read crumb: %w", err)
	}

	crumb := strings.TrimSpace(string(body))
	if crumb == "" {
		return fmt.Errorf("empty crumb received")
	}

	y.crumb = crumb
	y.logger.Debug("yahoo: obtained crumb", "crumb_len", len(crumb))
	return nil
}

func (y *YahooIngestion) fetchChart(ctx context.Context, instrument string, r ohlcv.DateRange) ([]ohlcv.Bar, error) {
	y.mu.Lock()
	crumb := y.crumb
	y.mu.Unlock()

	q := url.Values{}
	q.Set("period1", strconv.FormatInt(r.From.Unix(), 10))
	q.Set("period2", strconv.FormatInt(r.To.AddDate(0, 0, 1).Unix(), 10))
	q.Set("interval", "1d")
	q.Set("events", "div,splits")
	q.Set("crumb", crumb)
	reqURL := y.chartEndpoint + "/" + url.PathEscape(instrument) + "?" + q.Encode()

	res, err := y.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	var resp chartResponse
	// Error statuses still carry a chart error body worth reporting.
	jsonErr := json.Unmarshal(body, &resp)
	if jsonErr == nil && resp.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart error: %s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if res.StatusCode != http.StatusOK {
		if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
			y.mu.Lock()
			y.crumb = ""
			y.mu.Unlock()
		}
		return nil, fmt.Errorf("yahoo returned HTTP %d for %s", res.StatusCode, instrument)
	}
	if jsonErr != nil {
		return nil, fmt.Errorf("parse yahoo response: %w", jsonErr)
	}

	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}
	bars := toBars(resp.Chart.Result[0])

	y.logger.Debug("retrieved yahoo data", "ticker", instrument,
		"from", r.From.Format(time.DateOnly), "to", r.To.Format(time.DateOnly), "count", len(bars))
	return bars, nil
}

// toBars converts a chart result into bars, dropping days with any missing price. Timestamps mark the
// session open, so they are shifted by the exchange's UTC offset before taking the calendar day.
func toBars(res chartResult) []ohlcv.Bar {
	q := res.Indicators.Quote[0]
	n := min(len(res.Timestamp), len(q.Open), len(q.High), len(q.Low), len(q.Close))

	bars := make([]ohlcv.Bar, 0, n)
	for i := range n {
		if q.Open[i] == nil || q.High[i] == nil || q.Low[i] == nil || q.Close[i] == nil {
			continue
		}
		var vol int64
		if i < len(q.Volume) && q.Volume[i] != nil {
			vol = *q.Volume[i]
		}
		bars = append(bars, ohlcv.Bar{
			Date:   ohlcv.Day(time.Unix(res.Timestamp[i]+res.Meta.GMTOffset, 0).UTC()),
			Open:   *q.Open[i],
			High:   *q.High[i],
			Low:    *q.Low[i],
			Close:  *q.Close[i],
			Volume: vol,
		})
	}
	return bars
}

func (y *YahooIngestion) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	return y.client.Do(req) //nolint:gosec // URL from internal config
}
