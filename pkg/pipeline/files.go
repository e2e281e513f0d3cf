package pipeline

import (
	"context"

	"github.com/matzehuels/sheetblocks/pkg/catalog"
	"github.com/matzehuels/sheetblocks/pkg/errors"
	"github.com/matzehuels/sheetblocks/pkg/grid"
	"github.com/matzehuels/sheetblocks/pkg/layout"
)

// Upload stores data under a new file ID, reads it as a grid, detects and
// stores its layout.
func (s *Service) Upload(ctx context.Context, filename string, data []byte) (*FileResult, error) {
	if err := errors.ValidateFilename(filename); err != nil {
		return nil, err
	}
	g, err := grid.ReadFile(filename, data)
	if err != nil {
		return nil, err
	}

	fileID := s.newID()
	if err := s.Store.Put(ctx, s.Keyer.UploadKey(fileID, filename), data); err != nil {
		return nil, err
	}

	l, cached, err := s.Layouts.GetOrDetectWithCacheInfo(ctx, fileID, filename, g)
	if err != nil {
		return nil, err
	}
	s.Logger.Info("uploaded file", "file_id", fileID, "filename", filename, "rows", g.Height(), "blocks", len(l.Blocks))

	res := &FileResult{FileID: fileID, Filename: filename, Layout: l, Grid: g, Cached: cached}
	s.attachImage(ctx, res)
	return res, nil
}

// Grid reads back a stored upload. It fails with NOT_FOUND when the upload
// does not exist.
func (s *Service) Grid(ctx context.Context, fileID, filename string) (grid.Grid, error) {
	if err := validateFile(fileID, filename); err != nil {
		return grid.Grid{}, err
	}
	data, ok, err := s.Store.Get(ctx, s.Keyer.UploadKey(fileID, filename))
	if err != nil {
		return grid.Grid{}, err
	}
	if !ok {
		return grid.Grid{}, errors.NotFound("File not found")
	}
	return grid.ReadFile(filename, data)
}

// Layout returns the current layout of a file together with its grid.
// A layout detected because none was stored is stored before returning.
// The grid is zero when the upload is gone but the layout survived.
func (s *Service) Layout(ctx context.Context, fileID, filename string) (*FileResult, error) {
	if err := validateFile(fileID, filename); err != nil {
		return nil, err
	}
	l, stored, err := s.Layouts.Get(ctx, fileID, filename)
	if err != nil {
		return nil, err
	}

	g, gerr := s.Grid(ctx, fileID, filename)
	switch {
	case stored:
	case gerr != nil:
		return nil, gerr
	default:
		l = catalog.Detect(ctx, g)
		if err := s.Layouts.Put(ctx, fileID, filename, l); err != nil {
			return nil, err
		}
	}
	return &FileResult{FileID: fileID, Filename: filename, Layout: l, Grid: g, Cached: stored}, nil
}

// Annotate labels one block of a file's current layout and stores the
// result. An out-of-range index fails with INVALID_INPUT and stores
// nothing.
func (s *Service) Annotate(ctx context.Context, fileID, filename string, index int, label string) (*FileResult, error) {
	res, err := s.Layout(ctx, fileID, filename)
	if err != nil {
		return nil, err
	}
	if err := layout.Annotate(&res.Layout, index, label); err != nil {
		return nil, err
	}
	if err := s.Layouts.Put(ctx, fileID, filename, res.Layout); err != nil {
		return nil, err
	}
	s.Logger.Info("annotated block", "file_id", fileID, "block", index, "label", label)

	s.attachImage(ctx, res)
	return res, nil
}

// Render draws the current layout of a file.
func (s *Service) Render(ctx context.Context, fileID, filename string) ([]byte, error) {
	if s.Renderer == nil {
		return nil, errors.New(errors.ErrCodeUnsupported, "rendering is disabled")
	}
	res, err := s.Layout(ctx, fileID, filename)
	if err != nil {
		return nil, err
	}
	return s.Renderer.RenderLayout(ctx, res.Grid, res.Layout)
}

func (s *Service) attachImage(ctx context.Context, res *FileResult) {
	if s.Renderer == nil {
		return
	}
	img, err := s.Renderer.RenderLayout(ctx, res.Grid, res.Layout)
	if err != nil {
		s.Logger.Warn("layout image failed", "file_id", res.FileID, "error", err)
		return
	}
	res.Image = img
}

func validateFile(fileID, filename string) error {
	if err := errors.ValidateIdentifier("file_id", fileID); err != nil {
		return err
	}
	return errors.ValidateFilename(filename)
}
