package pipeline

import (
	"context"

	"github.com/matzehuels/sheetblocks/pkg/export"
	"github.com/matzehuels/sheetblocks/pkg/layout"
)

// Export writes an uploaded file with its annotations. Without a stored
// layout the raw grid is exported.
func (s *Service) Export(ctx context.Context, fileID, filename string, f export.Format) ([]byte, error) {
	g, err := s.Grid(ctx, fileID, filename)
	if err != nil {
		return nil, err
	}

	var lp *layout.Layout
	l, ok, err := s.Layouts.Get(ctx, fileID, filename)
	if err != nil {
		return nil, err
	}
	if ok {
		lp = &l
	}

	data, err := export.Bytes(f, g, lp)
	if err != nil {
		return nil, err
	}
	s.Logger.Debug("exported file", "file_id", fileID, "format", f, "bytes", len(data), "annotated", ok)
	return data, nil
}
