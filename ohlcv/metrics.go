package ohlcv

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"tickerlake/utils/progress_printer"
)

// Metrics counts what a run has done so far, for progress output and the final report.
type Metrics struct {
	currentSource string
	currentTicker string
	currentStage  string
	rows          uint64
	partitions    uint64
	bytes         uint64
}

func (m *Metrics) SetSource(source string) {
	m.currentSource = source
}

func (m *Metrics) SetStage(stage string) {
	m.currentStage = stage
}

func (m *Metrics) Fetched(ticker string, rows int) {
	m.currentTicker = ticker
	m.rows += uint64(rows)
}

// Wrote records one partition of n bytes written to storage.
func (m *Metrics) Wrote(n int) {
	m.partitions++
	m.bytes += uint64(n)
}

func (m *Metrics) Rows() uint64       { return m.rows }
func (m *Metrics) Partitions() uint64 { return m.partitions }
func (m *Metrics) Bytes() uint64      { return m.bytes }

func (m *Metrics) String() string {
	return fmt.Sprintf(
		"[%s] %s: %d bars fetched, %d partitions written (%s) - %s",
		m.currentSource,
		m.currentTicker,
		m.rows,
		m.partitions,
		humanize.Bytes(m.bytes),
		m.currentStage,
	)
}

func (m *Metrics) Print(pp *progress_printer.ProgressPrinter) {
	pp.Update(m.String())
}
