package progress_printer

import (
	"fmt"
	"io"
	"strings"
)

// ProgressPrinter writes single-line status messages to a terminal, each one overwriting the last.
type ProgressPrinter struct {
	w      io.Writer // Destination, normally stderr
	prefix string    // Prepended to every message
	max    int       // Longest line printed so far, used to blank out leftovers
}

func NewProgressPrinter(w io.Writer, prefix string) *ProgressPrinter {
	return &ProgressPrinter{w: w, prefix: prefix}
}

// Update prints message over the previous one, padding with spaces so no trailing characters of a
// longer previous line remain visible.
func (p *ProgressPrinter) Update(message string) {
	line := p.prefix + message
	_, _ = fmt.Fprint(p.w, line+strings.Repeat(" ", max(0, p.max-len(line)))+"\r")
	p.max = max(p.max, len(line))
}

// Step prints message tagged with its position in a fixed sequence of steps, e.g. "[2/4] storing".
func (p *ProgressPrinter) Step(n, total int, message string) {
	p.Update(fmt.Sprintf("[%d/%d] %s", n, total, message))
}

// Complete prints a final message and moves to the next line. Later updates start from a clean line.
func (p *ProgressPrinter) Complete(message string) {
	p.Update(message)
	_, _ = fmt.Fprintln(p.w)
	p.max = 0
}
