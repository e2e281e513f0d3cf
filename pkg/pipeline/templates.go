package pipeline

import (
	"context"

	"github.com/matzehuels/sheetblocks/pkg/catalog"
	"github.com/matzehuels/sheetblocks/pkg/errors"
	"github.com/matzehuels/sheetblocks/pkg/layout"
)

// Saved identifies a newly saved template.
type Saved struct {
	ID          string
	DisplayName string
}

// Handle is what callers show the user: the display name when one was
// given, otherwise the ID. Both resolve to the template.
func (s Saved) Handle() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.ID
}

// SaveTemplate promotes the current layout of a file to a template.
func (s *Service) SaveTemplate(ctx context.Context, fileID, filename, displayName string) (Saved, error) {
	res, err := s.Layout(ctx, fileID, filename)
	if err != nil {
		return Saved{}, err
	}
	id, err := s.Templates.Save(ctx, res.Layout, filename, displayName)
	if err != nil {
		return Saved{}, err
	}
	s.Logger.Info("saved template", "template_id", id, "name", displayName, "blocks", len(res.Layout.Blocks))
	return Saved{ID: id, DisplayName: displayName}, nil
}

// LoadTemplate returns a template by ID or display name.
func (s *Service) LoadTemplate(ctx context.Context, nameOrID string) (*catalog.Template, error) {
	if nameOrID == "" {
		return nil, errors.InvalidInput("template_id is required")
	}
	return s.Templates.Lookup(ctx, nameOrID)
}

// ListTemplates returns all templates in registration order.
func (s *Service) ListTemplates(ctx context.Context) ([]catalog.Template, error) {
	return s.Templates.All(ctx)
}

// ApplyTemplate merges a template's annotations into the current layout of
// a file and stores the result.
//
// A template with no blocks fails with INVALID_FORMAT. A template whose
// block count differs fails with LAYOUT_MISMATCH and stores nothing.
func (s *Service) ApplyTemplate(ctx context.Context, fileID, filename, nameOrID string) (*FileResult, error) {
	t, err := s.LoadTemplate(ctx, nameOrID)
	if err != nil {
		return nil, err
	}
	if len(t.Layout.Blocks) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "Invalid template format")
	}

	res, err := s.Layout(ctx, fileID, filename)
	if err != nil {
		return nil, err
	}
	if _, err := layout.MergeWith(&res.Layout, t.Layout, s.Matcher.Mode); err != nil {
		if errors.Is(err, errors.ErrCodeLayoutMismatch) {
			return nil, errors.Wrap(errors.ErrCodeLayoutMismatch, err, "Template does not match file layout")
		}
		return nil, err
	}
	if err := s.Layouts.Put(ctx, fileID, filename, res.Layout); err != nil {
		return nil, err
	}
	s.Logger.Info("applied template", "file_id", fileID, "template_id", t.ID)

	s.attachImage(ctx, res)
	return res, nil
}
