// Package prompt turns a user's answers into a pipeline.RunRequest. Resolve holds all of the
// decision logic; Ask only reads the answers from a terminal.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"tickerlake/apperror"
	"tickerlake/ohlcv"
	"tickerlake/partition"
	"tickerlake/pipeline"
	"tickerlake/processing"
	"tickerlake/storage"
)

// Answers are the raw strings a user gave.
type Answers struct {
	Storage    string
	Processing string
	Ticker     string
	// Period is a menu choice ("1" to "6") or a period name such as "1y".
	Period string
}

type menuItem struct {
	choice string
	period ohlcv.Period
	label  string
}

var periodMenu = []menuItem{
	{"1", ohlcv.PeriodWeek, "Weekly (7d)"},
	{"2", ohlcv.PeriodMonth, "Monthly (1mo)"},
	{"3", ohlcv.PeriodYear, "Yearly (1y)"},
	{"4", ohlcv.PeriodThreeYears, "3 Years"},
	{"5", ohlcv.PeriodFiveYears, "5 Years"},
	{"6", ohlcv.PeriodMax, "All Time"},
}

// Resolve validates answers and builds the request they describe. Tickers are trimmed and upper-cased.
func Resolve(a Answers) (pipeline.RunRequest, error) {
	st, err := storage.ParseTarget(a.Storage)
	if err != nil {
		return pipeline.RunRequest{}, err
	}
	pt, err := processing.ParseTarget(a.Processing)
	if err != nil {
		return pipeline.RunRequest{}, err
	}

	ticker := NormalizeTicker(a.Ticker)
	if ticker == "" {
		return pipeline.RunRequest{}, apperror.New(apperror.InvalidIdentifier, "no ticker provided")
	}
	if err := partition.ValidateInstrument(ticker); err != nil {
		return pipeline.RunRequest{}, err
	}

	period, err := ResolvePeriod(a.Period)
	if err != nil {
		return pipeline.RunRequest{}, err
	}

	return pipeline.RunRequest{Instrument: ticker, Period: period, Storage: st, Processing: pt}, nil
}

func NormalizeTicker(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ResolvePeriod accepts a menu choice or a period name.
func ResolvePeriod(s string) (ohlcv.Period, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, item := range periodMenu {
		if s == item.choice {
			return item.period, nil
		}
	}
	return ohlcv.ParsePeriod(s)
}

// Ask reads answers from r, writing prompts to w. Invalid target and period choices are asked again,
// as is an empty ticker. It fails only when r is exhausted.
func Ask(r io.Reader, w io.Writer) (Answers, error) {
	in := bufio.NewScanner(r)
	var a Answers
	var err error

	if a.Storage, err = ask(in, w, "Select storage target (local/gcp): ", func(s string) error {
		_, err := storage.ParseTarget(s)
		return err
	}); err != nil {
		return a, err
	}

	if a.Processing, err = ask(in, w, "Select processing target (local/databricks): ", func(s string) error {
		_, err := processing.ParseTarget(s)
		return err
	}); err != nil {
		return a, err
	}

	_, _ = fmt.Fprintln(w, "\n--- Asset & Period Selection ---")
	_, _ = fmt.Fprintln(w, "Formats: NSE -> RELIANCE.NS | BSE -> 500325.BO | MF -> AXISBLUECHIP.NS")
	if a.Ticker, err = ask(in, w, "Enter ticker symbol: ", func(s string) error {
		return partition.ValidateInstrument(NormalizeTicker(s))
	}); err != nil {
		return a, err
	}
	a.Ticker = NormalizeTicker(a.Ticker)

	_, _ = fmt.Fprintln(w, "\nSelect time period:")
	for _, item := range periodMenu {
		_, _ = fmt.Fprintf(w, "  %s: %s\n", item.choice, item.label)
	}
	if a.Period, err = ask(in, w, "Enter choice (1-6): ", func(s string) error {
		_, err := ResolvePeriod(s)
		return err
	}); err != nil {
		return a, err
	}

	return a, nil
}

func ask(in *bufio.Scanner, w io.Writer, question string, check func(string) error) (string, error) {
	for {
		_, _ = fmt.Fprint(w, question)
		if !in.Scan() {
			if err := in.Err(); err != nil {
				return "", fmt.Errorf("read answer: %w", err)
			}
			return "", errors.New("input closed before all questions were answered")
		}

		answer := strings.TrimSpace(in.Text())
		if err := check(answer); err != nil {
			var ae *apperror.Error
			if errors.As(err, &ae) {
				_, _ = fmt.Fprintf(w, "Invalid choice: %s\n", ae.Message())
			} else {
				_, _ = fmt.Fprintf(w, "Invalid choice: %v\n", err)
			}
			continue
		}
		return answer, nil
	}
}
