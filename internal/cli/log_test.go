package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestNewLoggerFiltersByLevel(t *testing.T) {
	tests := []struct {
		name    string
		level   log.Level
		debug   bool
		wantOut bool
	}{
		{"info at info", log.InfoLevel, false, true},
		{"debug at info", log.InfoLevel, true, false},
		{"debug at debug", log.DebugLevel, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := newLogger(&buf, tt.level)
			if tt.debug {
				l.Debug("detected layout")
			} else {
				l.Info("detected layout")
			}
			if got := buf.Len() > 0; got != tt.wantOut {
				t.Errorf("wrote output = %v, want %v", got, tt.wantOut)
			}
		})
	}
}

func TestLogLevel(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		want    log.Level
	}{
		{"warn", false, log.WarnLevel},
		{"ERROR", false, log.ErrorLevel},
		{"bogus", false, log.InfoLevel},
		{"", false, log.InfoLevel},
		{"error", true, log.DebugLevel},
	}
	for _, tt := range tests {
		if got := logLevel(tt.name, tt.verbose); got != tt.want {
			t.Errorf("logLevel(%q, %v) = %v, want %v", tt.name, tt.verbose, got, tt.want)
		}
	}
}

func TestTimed(t *testing.T) {
	var buf bytes.Buffer
	done := timed(newLogger(&buf, log.InfoLevel))
	done("detected layout", "blocks", 3)

	out := buf.String()
	for _, want := range []string{"detected layout", "blocks=3", "elapsed="} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}
