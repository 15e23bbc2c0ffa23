package ohlcv

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"tickerlake/apperror"
	"tickerlake/utils"
)

// Period is a lookback window ending today, named the way Yahoo Finance names them.
type Period string

const (
	PeriodWeek       Period = "7d"
	PeriodMonth      Period = "1mo"
	PeriodYear       Period = "1y"
	PeriodThreeYears Period = "3y"
	PeriodFiveYears  Period = "5y"
	PeriodMax        Period = "max"
)

// Periods lists the supported periods in menu order.
var Periods = []Period{PeriodWeek, PeriodMonth, PeriodYear, PeriodThreeYears, PeriodFiveYears, PeriodMax}

// earliestHistory stands in for "all available history".
var earliestHistory = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

func ParsePeriod(s string) (Period, error) {
	p := Period(s)
	if !slices.Contains(Periods, p) {
		return "", apperror.Newf(apperror.InvalidIdentifier, "unsupported period %q (want one of %v)", s, Periods)
	}
	return p, nil
}

// Range resolves the period against now into the calendar days to fetch.
func (p Period) Range(now time.Time) DateRange {
	to := Day(now)
	var from time.Time
	switch p {
	case PeriodWeek:
		from = utils.PeriodStart(now, 0, 0, 7)
	case PeriodMonth:
		from = utils.PeriodStart(now, 0, 1, 0)
	case PeriodYear:
		from = utils.PeriodStart(now, 1, 0, 0)
	case PeriodThreeYears:
		from = utils.PeriodStart(now, 3, 0, 0)
	case PeriodFiveYears:
		from = utils.PeriodStart(now, 5, 0, 0)
	default:
		from = earliestHistory
	}
	return DateRange{From: from, To: to}
}

// IngestionProvider retrieves daily bars for one instrument from a remote data source.
type IngestionProvider interface {
	Source() string
	Fetch(ctx context.Context, instrument string, r DateRange) (*Table, error)
}

// Registry maps provider names to providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]IngestionProvider
}

func NewRegistry(providers ...IngestionProvider) *Registry {
	r := &Registry{providers: make(map[string]IngestionProvider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

func (r *Registry) Register(p IngestionProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Source()] = p
}

func (r *Registry) Get(source string) (IngestionProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[source]
	if !ok {
		return nil, fmt.Errorf("ingestion provider not found for source: %s", source)
	}
	return p, nil
}

func (r *Registry) Sources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sources := make([]string, 0, len(r.providers))
	for src := range r.providers {
		sources = append(sources, src)
	}
	slices.Sort(sources)
	return sources
}
