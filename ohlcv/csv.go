package ohlcv

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"
)

// Header is the column layout of every stored artifact.
var Header = []string{"date", "open", "high", "low", "close", "volume"}

// WriteCSV writes the table with a header row and one row per bar. Floats are written in their
// shortest exact form so that ReadCSV restores identical values.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, b := range t.bars {
		row := []string{
			b.Date.Format(time.DateOnly),
			formatFloat(b.Open),
			formatFloat(b.High),
			formatFloat(b.Low),
			formatFloat(b.Close),
			strconv.FormatInt(b.Volume, 10),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// MarshalCSV is WriteCSV into a byte slice.
func MarshalCSV(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadCSV parses an artifact written by WriteCSV.
func ReadCSV(r io.Reader, instrument string) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if !slices.Equal(header, Header) {
		return nil, fmt.Errorf("unexpected header %v", header)
	}

	var bars []Bar
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		b, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bars = append(bars, b)
	}

	return NewTable(instrument, bars)
}

func parseRow(row []string) (Bar, error) {
	var (
		b   Bar
		err error
	)
	if b.Date, err = time.Parse(time.DateOnly, row[0]); err != nil {
		return b, fmt.Errorf("date: %w", err)
	}
	prices := []*float64{&b.Open, &b.High, &b.Low, &b.Close}
	for i, p := range prices {
		if *p, err = strconv.ParseFloat(row[i+1], 64); err != nil {
			return b, fmt.Errorf("%s: %w", Header[i+1], err)
		}
	}
	if b.Volume, err = strconv.ParseInt(row[5], 10, 64); err != nil {
		return b, fmt.Errorf("volume: %w", err)
	}
	return b, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
