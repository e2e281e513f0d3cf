// Package cli implements the sheetblocks command-line interface.
//
// Commands cover the whole workflow: detect blocks in a file, label them
// (directly or in an interactive editor), save the labels as a template,
// apply templates to new files, export annotated copies, batch-match many
// files at once, watch directories and serve the HTTP API.
//
// Every command shares one charmbracelet logger. It is attached to the
// command context with [log.WithContext], so code below the command layer
// picks it up with [log.FromContext].
package cli

import (
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger writes timestamped records ("14:32:01.45") to w.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// logLevel resolves the configured level name. --verbose always wins; an
// unknown name falls back to info.
func logLevel(name string, verbose bool) log.Level {
	if verbose {
		return log.DebugLevel
	}
	level, err := log.ParseLevel(strings.ToLower(name))
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// timed starts a clock and returns a func that logs msg at info level with
// the elapsed time appended to keyvals.
func timed(l *log.Logger) func(msg string, keyvals ...any) {
	start := time.Now()
	return func(msg string, keyvals ...any) {
		keyvals = append(keyvals, "elapsed", time.Since(start).Round(time.Millisecond))
		l.Info(msg, keyvals...)
	}
}
