package catalog

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/sheetblocks/pkg/errors"
	"github.com/matzehuels/sheetblocks/pkg/grid"
	"github.com/matzehuels/sheetblocks/pkg/layout"
	"github.com/matzehuels/sheetblocks/pkg/observability"
	"github.com/matzehuels/sheetblocks/pkg/storage"
)

// LayoutStore maps (sourceID, filename) to the layout of that file.
type LayoutStore struct {
	Store  storage.Store
	Keyer  storage.Keyer
	Logger *log.Logger
}

// NewLayoutStore creates a layout store.
// If keyer is nil, a DefaultKeyer is used.
func NewLayoutStore(s storage.Store, keyer storage.Keyer, logger *log.Logger) *LayoutStore {
	if keyer == nil {
		keyer = storage.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &LayoutStore{Store: s, Keyer: keyer, Logger: logger}
}

// Get returns the stored layout. It never runs detection.
func (s *LayoutStore) Get(ctx context.Context, sourceID, filename string) (layout.Layout, bool, error) {
	key := s.Keyer.LayoutKey(sourceID, filename)
	data, ok, err := s.Store.Get(ctx, key)
	if err != nil || !ok {
		return layout.Layout{}, false, err
	}

	l, migrated, err := decodeLayout(data)
	if err != nil {
		return layout.Layout{}, false, errors.Wrap(errors.GetCode(err), err, "layout %s", key)
	}
	if migrated {
		s.Logger.Debug("upgraded legacy layout record", "key", key)
		observability.Store().OnMigrate(ctx, "layout", 0)
	}
	return l, true, nil
}

// Put stores l, replacing any previous layout for the same file.
func (s *LayoutStore) Put(ctx context.Context, sourceID, filename string, l layout.Layout) error {
	data, err := encodeLayout(l)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode layout")
	}
	if err := s.Store.Put(ctx, s.Keyer.LayoutKey(sourceID, filename), data); err != nil {
		return err
	}
	observability.Store().OnWrite(ctx, "layout", len(data))
	return nil
}

// GetOrDetect returns the stored layout, or detects one from g, stores it
// and returns it.
func (s *LayoutStore) GetOrDetect(ctx context.Context, sourceID, filename string, g grid.Grid) (layout.Layout, error) {
	l, _, err := s.GetOrDetectWithCacheInfo(ctx, sourceID, filename, g)
	return l, err
}

// GetOrDetectWithCacheInfo is GetOrDetect that also reports whether the
// stored layout was used.
func (s *LayoutStore) GetOrDetectWithCacheInfo(ctx context.Context, sourceID, filename string, g grid.Grid) (layout.Layout, bool, error) {
	l, ok, err := s.Get(ctx, sourceID, filename)
	if err != nil {
		return layout.Layout{}, false, err
	}
	if ok {
		observability.Store().OnLayoutHit(ctx)
		return l, true, nil
	}
	observability.Store().OnLayoutMiss(ctx)

	l = Detect(ctx, g)
	if err := s.Put(ctx, sourceID, filename, l); err != nil {
		return layout.Layout{}, false, err
	}
	s.Logger.Debug("detected layout", "file_id", sourceID, "filename", filename, "blocks", len(l.Blocks))
	return l, false, nil
}

// Detect runs block segmentation and reports it to the pipeline hooks.
func Detect(ctx context.Context, g grid.Grid) layout.Layout {
	start := time.Now()
	l := layout.Detect(g)
	observability.Pipeline().OnDetect(ctx, g.Height(), len(l.Blocks), time.Since(start))
	return l
}
