// Package partition derives the Hive-style keys under which artifacts are stored. A key has the form
// `ticker=<instrument>/date=<YYYY-MM-DD>` and is used unchanged as a relative file path and as an
// object name, so the same run addresses the same artifact on every storage target.
package partition

import (
	"strings"
	"time"
	"unicode"

	"tickerlake/apperror"
)

const (
	tickerField = "ticker="
	dateField   = "date="
	separator   = "/"
	DateFormat  = "2006-01-02"

	// Extension is appended to a key to name the stored artifact.
	Extension = ".csv"
)

// Key addresses one stored artifact. The zero value is not a valid key; use Build or Parse.
type Key struct {
	instrument string
	date       time.Time
}

// Build returns the key for instrument as of date. The date is reduced to its calendar day in its own
// location, so any two times on the same day produce the same key.
func Build(instrument string, date time.Time) (Key, error) {
	if err := ValidateInstrument(instrument); err != nil {
		return Key{}, err
	}
	if date.IsZero() {
		return Key{}, apperror.New(apperror.InvalidIdentifier, "partition date is not set")
	}

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return Key{instrument: instrument, date: day}, nil
}

// ValidateInstrument rejects identifiers that would be ambiguous inside a key: empty strings, the key
// separators `=` and `/`, and whitespace or control characters.
func ValidateInstrument(instrument string) error {
	if instrument == "" {
		return apperror.New(apperror.InvalidIdentifier, "instrument is empty")
	}
	if strings.ContainsAny(instrument, "=/") {
		return apperror.Newf(apperror.InvalidIdentifier, "instrument %q contains a key separator", instrument)
	}
	for _, r := range instrument {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return apperror.Newf(apperror.InvalidIdentifier, "instrument %q contains whitespace or control characters", instrument)
		}
	}
	return nil
}

// Parse is the inverse of Key.String. It also accepts a trailing artifact extension.
func Parse(s string) (Key, error) {
	s = strings.TrimSuffix(s, Extension)

	ticker, date, ok := strings.Cut(s, separator)
	if !ok || !strings.HasPrefix(ticker, tickerField) || !strings.HasPrefix(date, dateField) {
		return Key{}, apperror.Newf(apperror.InvalidIdentifier, "malformed partition key %q", s)
	}

	d, err := time.Parse(DateFormat, strings.TrimPrefix(date, dateField))
	if err != nil {
		return Key{}, apperror.Wrap(apperror.InvalidIdentifier, err, "malformed partition date")
	}
	return Build(strings.TrimPrefix(ticker, tickerField), d)
}

// InstrumentPrefix is the common prefix of every key for instrument, suitable for listing.
func InstrumentPrefix(instrument string) (string, error) {
	if err := ValidateInstrument(instrument); err != nil {
		return "", err
	}
	return tickerField + instrument + separator, nil
}

func (k Key) Instrument() string { return k.instrument }
func (k Key) Date() time.Time    { return k.date }
func (k Key) IsZero() bool       { return k.instrument == "" }

func (k Key) String() string {
	return tickerField + k.instrument + separator + dateField + k.date.Format(DateFormat)
}

// Path is the artifact name for the key, relative to a storage root.
func (k Key) Path() string {
	return k.String() + Extension
}
