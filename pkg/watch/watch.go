// Package watch reports spreadsheets that appear in a set of directories.
package watch

import (
	"context"
	"io/fs"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/matzehuels/sheetblocks/pkg/errors"
	"github.com/matzehuels/sheetblocks/pkg/grid"
)

// DefaultDebounce coalesces the burst of events an editor or copy produces.
const DefaultDebounce = 500 * time.Millisecond

// Config configures a watcher.
type Config struct {
	Roots       []string          // directories to watch, recursively
	InitialScan bool              // emit files that already exist
	Debounce    time.Duration     // quiet period before pending paths are emitted
	Filter      func(string) bool // nil means spreadsheet extensions only
	Logger      *log.Logger
}

// Start watches cfg.Roots until ctx is done. Matching files are sent on the
// returned path channel once no further events have arrived for the
// debounce period. Both channels are closed when the watcher stops.
func Start(ctx context.Context, cfg Config) (<-chan string, <-chan error, error) {
	if len(cfg.Roots) == 0 {
		return nil, nil, errors.InvalidInput("no directories to watch")
	}
	if cfg.Filter == nil {
		cfg.Filter = Spreadsheet
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	logger := cfg.Logger

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCodeInternal, err, "create watcher")
	}

	var existing []string
	for _, root := range cfg.Roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				return w.Add(path)
			}
			if cfg.InitialScan && cfg.Filter(path) {
				existing = append(existing, path)
			}
			return nil
		})
		if err != nil {
			_ = w.Close()
			return nil, nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "watch %s", root)
		}
	}

	paths := make(chan string, 256)
	errs := make(chan error, 1)

	go func() {
		defer close(paths)
		defer close(errs)
		defer w.Close()

		for _, p := range existing {
			select {
			case paths <- p:
			case <-ctx.Done():
				return
			}
		}

		var (
			timer   *time.Timer
			fire    <-chan time.Time
			pending = map[string]struct{}{}
		)
		flush := func() bool {
			for _, p := range slices.Sorted(maps.Keys(pending)) {
				select {
				case paths <- p:
				case <-ctx.Done():
					return false
				}
				delete(pending, p)
			}
			return true
		}

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return

			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Has(fsnotify.Create) {
					// New directories are watched too; Add fails harmlessly for files.
					_ = w.Add(e.Name)
				}
				if !cfg.Filter(e.Name) || !(e.Has(fsnotify.Create) || e.Has(fsnotify.Write) || e.Has(fsnotify.Rename)) {
					continue
				}
				logger.Debug("file event", "path", e.Name, "op", e.Op.String())
				pending[e.Name] = struct{}{}
				if cfg.Debounce <= 0 {
					if !flush() {
						return
					}
					continue
				}
				if timer == nil {
					timer = time.NewTimer(cfg.Debounce)
				} else {
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					timer.Reset(cfg.Debounce)
				}
				fire = timer.C

			case <-fire:
				fire = nil
				if !flush() {
					return
				}

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher error", "error", err)
				select {
				case errs <- err:
				default:
				}
			}
		}
	}()

	return paths, errs, nil
}

// Spreadsheet reports whether path looks like a readable spreadsheet.
// Hidden files and Office lock files are ignored.
func Spreadsheet(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return false
	}
	return grid.IsSupported(base)
}
