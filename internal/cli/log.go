// Package cli implements the techmap command-line interface.
//
// Commands lay out a year of a usage dataset, draw it, scrub through years
// interactively, and serve scenes over HTTP. Settings come from a TOML
// config (see pkg/config); flags override it per invocation.
//
// # Commands
//
//   - layout: Write chip positions as JSON, YAML or CSV
//   - render: Draw a year as SVG, PNG or PDF
//   - scrub: Step through years in the terminal with live re-layout
//   - serve: Serve scenes, drawings and metrics over HTTP
//   - ticks, theme, dataset, cache: Inspection and housekeeping
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. The logger
// travels in context.Context so request handlers can attach fields.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a logger writing to w at level, with "HH:MM:SS.ms"
// timestamps.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress logs how long an operation took.
type progress struct {
	logger *log.Logger
	start  time.Time
}

// newProgress starts the clock.
func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg with the elapsed time, e.g. "Stored 12 technologies (84ms)".
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

type ctxKey int

const loggerKey ctxKey = 0

// withLogger attaches l to ctx.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext returns the logger attached to ctx, or log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
