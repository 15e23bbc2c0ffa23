package processing

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/go-gota/gota/dataframe"
	"github.com/xuri/excelize/v2"

	"tickerlake/partition"
)

const (
	pricesSheet  = "Prices"
	summarySheet = "Summary"
)

// ReportPath names the workbook of instrument as of asOf within dir.
func ReportPath(dir, instrument, asOf string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.xlsx", instrument, asOf))
}

// writeReport saves the prices of the analysed table, a line chart of close and the summary to an
// xlsx workbook at path.
func writeReport(path string, s *Summary, prices [][]any) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if err := f.SetSheetName("Sheet1", pricesSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	header := []any{"date", "close", fmt.Sprintf("rolling_mean_%d", s.Window)}
	if err := f.SetSheetRow(pricesSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range prices {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(pricesSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	last := len(prices) + 1
	chart := &excelize.Chart{
		Type: excelize.Line,
		Series: []excelize.ChartSeries{
			{
				Name:       pricesSheet + "!$B$1",
				Categories: fmt.Sprintf("%s!$A$2:$A$%d", pricesSheet, last),
				Values:     fmt.Sprintf("%s!$B$2:$B$%d", pricesSheet, last),
			},
			{
				Name:       pricesSheet + "!$C$1",
				Categories: fmt.Sprintf("%s!$A$2:$A$%d", pricesSheet, last),
				Values:     fmt.Sprintf("%s!$C$2:$C$%d", pricesSheet, last),
			},
		},
		Title:  []excelize.RichTextRun{{Text: fmt.Sprintf("%s close", s.Instrument)}},
		Legend: excelize.ChartLegend{Position: "bottom"},
	}
	if err := f.AddChart(pricesSheet, "E2", chart); err != nil {
		return fmt.Errorf("add chart: %w", err)
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("add summary sheet: %w", err)
	}
	for i, row := range summaryRows(s) {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// priceRows turns a Frame into worksheet rows. Rolling mean cells stay empty until the window fills.
func priceRows(frame dataframe.DataFrame) [][]any {
	dates := frame.Col("date").Records()
	closes := frame.Col("close").Float()
	means := frame.Col("rolling_mean").Float()

	rows := make([][]any, frame.Nrow())
	for i := range rows {
		row := []any{dates[i], closes[i], nil}
		if !math.IsNaN(means[i]) {
			row[2] = means[i]
		}
		rows[i] = row
	}
	return rows
}

func summaryRows(s *Summary) [][]any {
	rows := [][]any{
		{"instrument", s.Instrument},
		{"from", s.From.Format(partition.DateFormat)},
		{"to", s.To.Format(partition.DateFormat)},
		{"bars", s.Bars},
		{"first_close", s.FirstClose},
		{"last_close", s.LastClose},
		{"period_return", s.PeriodReturn},
		{"high", s.High},
		{"low", s.Low},
		{"mean_close", s.MeanClose},
		{"mean_volume", s.MeanVolume},
		{"volatility", s.Volatility},
		{"max_drawdown", s.MaxDrawdown},
	}
	if s.HasRolling {
		rows = append(rows,
			[]any{fmt.Sprintf("rolling_mean_%d", s.Window), s.RollingMean},
			[]any{fmt.Sprintf("rolling_stddev_%d", s.Window), s.RollingStdDev},
		)
	}
	return rows
}
