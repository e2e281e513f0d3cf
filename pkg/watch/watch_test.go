package watch

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/sheetblocks/pkg/errors"
)

func receive(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case p, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return p
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for path")
		return ""
	}
}

func write(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("a,b\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestStartNoRoots(t *testing.T) {
	_, _, err := Start(context.Background(), Config{})
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("error = %v, want INVALID_INPUT", err)
	}
}

func TestStartMissingRoot(t *testing.T) {
	_, _, err := Start(context.Background(), Config{Roots: []string{filepath.Join(t.TempDir(), "nope")}})
	if err == nil {
		t.Error("expected error for missing root")
	}
}

func TestInitialScan(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "a.csv"))
	write(t, filepath.Join(dir, "notes.txt.bak"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	paths, _, err := Start(ctx, Config{Roots: []string{dir}, InitialScan: true, Logger: log.New(io.Discard)})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if got := receive(t, paths); filepath.Base(got) != "a.csv" {
		t.Errorf("got %s, want a.csv", got)
	}
}

func TestWatchNewFiles(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	paths, _, err := Start(ctx, Config{
		Roots:    []string{dir},
		Debounce: 50 * time.Millisecond,
		Logger:   log.New(io.Discard),
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	write(t, filepath.Join(dir, "ignored.pdf"))
	write(t, filepath.Join(dir, "~$book.xlsx"))
	write(t, filepath.Join(dir, "report.csv"))

	if got := receive(t, paths); filepath.Base(got) != "report.csv" {
		t.Errorf("got %s, want report.csv", got)
	}
}

func TestWatchStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	paths, errs, err := Start(ctx, Config{Roots: []string{t.TempDir()}, Logger: log.New(io.Discard)})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()

	select {
	case _, ok := <-paths:
		if ok {
			t.Error("unexpected path after cancel")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("paths not closed after cancel")
	}
	if _, ok := <-errs; ok {
		t.Error("errs should be closed")
	}
}

func TestSpreadsheet(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/in/report.xlsx", true},
		{"/in/report.CSV", true},
		{"/in/report.tsv", true},
		{"/in/.hidden.csv", false},
		{"/in/~$report.xlsx", false},
		{"/in/report.pdf", false},
		{"/in/report", false},
	}
	for _, tt := range tests {
		if got := Spreadsheet(tt.path); got != tt.want {
			t.Errorf("Spreadsheet(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
