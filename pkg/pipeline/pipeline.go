// Package pipeline ties the grid readers, layout detection, stores and
// matcher together into the operations exposed by the CLI and the HTTP API.
//
// Both entry points go through a single [Service] so they behave the same:
//
//	svc := pipeline.New(store, pipeline.Options{Logger: logger})
//	res, err := svc.Upload(ctx, "report.xlsx", data)
//	res, err = svc.Annotate(ctx, res.FileID, res.Filename, 1, "totals")
//	saved, err := svc.SaveTemplate(ctx, res.FileID, res.Filename, "monthly")
//
// # Current layout
//
// Most operations work on the "current layout" of an uploaded file: the
// stored layout if there is one, otherwise a fresh detection of the stored
// upload. Only when neither exists does an operation fail with NOT_FOUND.
package pipeline

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/sheetblocks/pkg/catalog"
	"github.com/matzehuels/sheetblocks/pkg/grid"
	"github.com/matzehuels/sheetblocks/pkg/layout"
	"github.com/matzehuels/sheetblocks/pkg/match"
	"github.com/matzehuels/sheetblocks/pkg/storage"
)

// ImageRenderer draws a layout. A nil renderer disables images.
type ImageRenderer interface {
	RenderLayout(ctx context.Context, g grid.Grid, l layout.Layout) ([]byte, error)
}

// Options configures a Service. The zero value is usable.
type Options struct {
	// Keyer builds storage keys. Nil means storage.DefaultKeyer.
	Keyer storage.Keyer

	// Mode is the compatibility rule used by apply and batch.
	Mode layout.Compatibility

	// Renderer draws layout images for upload, annotate and apply.
	Renderer ImageRenderer

	Logger *log.Logger
}

// Service implements the file, layout and template operations.
//
// Service is safe for concurrent use as far as its stores are; storage
// itself assumes a single writer per key.
type Service struct {
	Store     storage.Store
	Keyer     storage.Keyer
	Layouts   *catalog.LayoutStore
	Templates *catalog.TemplateStore
	Matcher   match.Matcher
	Renderer  ImageRenderer
	Logger    *log.Logger

	newID func() string
}

// New creates a service on top of s.
func New(s storage.Store, opts Options) *Service {
	keyer := opts.Keyer
	if keyer == nil {
		keyer = storage.NewDefaultKeyer()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		Store:     s,
		Keyer:     keyer,
		Layouts:   catalog.NewLayoutStore(s, keyer, logger),
		Templates: catalog.NewTemplateStore(s, keyer, logger),
		Matcher:   match.Matcher{Mode: opts.Mode},
		Renderer:  opts.Renderer,
		Logger:    logger,
		newID:     uuid.NewString,
	}
}

// FileResult is the state of one uploaded file after an operation.
type FileResult struct {
	FileID   string        `json:"file_id"`
	Filename string        `json:"filename"`
	Layout   layout.Layout `json:"layout"`

	// Image is the rendered layout, or nil when rendering is disabled or
	// failed.
	Image []byte `json:"image,omitempty"`

	// Grid is the parsed upload; it is not serialized.
	Grid grid.Grid `json:"-"`

	// Cached is set when the layout came from storage rather than detection.
	Cached bool `json:"-"`
}

// Stats summarizes a batch run.
type Stats struct {
	Files    int
	Matched  int
	Failed   int
	Duration time.Duration
}
