package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/matzehuels/sheetblocks/pkg/catalog"
	"github.com/matzehuels/sheetblocks/pkg/errors"
	"github.com/matzehuels/sheetblocks/pkg/grid"
	"github.com/matzehuels/sheetblocks/pkg/match"
	"github.com/matzehuels/sheetblocks/pkg/observability"
)

// Batch uploads every item, detects its layout and applies the first
// compatible template. Templates are loaded once, before the first item.
//
// A failing item is reported in its Outcome and never stops the batch.
// The returned error is only set when the templates cannot be loaded.
func (s *Service) Batch(ctx context.Context, items []match.Item) ([]match.Outcome, Stats, error) {
	start := time.Now()
	templates, err := s.Templates.All(ctx)
	if err != nil {
		return nil, Stats{}, err
	}

	outcomes := s.Matcher.Run(ctx, items, func(ctx context.Context, item match.Item) (string, match.Result, error) {
		return s.batchOne(ctx, item, templates)
	})

	matched, failed := match.Summary(outcomes)
	stats := Stats{Files: len(items), Matched: matched, Failed: failed, Duration: time.Since(start)}
	observability.Pipeline().OnBatchComplete(ctx, stats.Files, matched, failed, stats.Duration)
	s.Logger.Info("batch complete", "files", stats.Files, "matched", matched, "failed", failed, "duration", stats.Duration)
	return outcomes, stats, nil
}

func (s *Service) batchOne(ctx context.Context, item match.Item, templates []catalog.Template) (string, match.Result, error) {
	if err := errors.ValidateFilename(item.Filename); err != nil {
		return "", match.Result{}, err
	}

	fileID := s.newID()
	if err := s.Store.Put(ctx, s.Keyer.UploadKey(fileID, item.Filename), item.Data); err != nil {
		return "", match.Result{}, err
	}
	g, err := grid.ReadFile(item.Filename, item.Data)
	if err != nil {
		return fileID, match.Result{}, err
	}

	l := catalog.Detect(ctx, g)
	res := s.Matcher.Match(&l, templates)
	if err := s.Layouts.Put(ctx, fileID, item.Filename, l); err != nil {
		return fileID, match.Result{}, err
	}

	observability.Pipeline().OnMatch(ctx, item.Filename, res.TemplateID, res.Matched)
	s.Logger.Debug("batch item", "filename", item.Filename, "file_id", fileID, "blocks", len(l.Blocks), "template", res.Name())
	return fileID, res, nil
}

// BatchResult is the wire form of one batch Outcome.
type BatchResult struct {
	Filename string

	// MatchedTemplateID holds the matched template's display name, or its
	// ID when it has none. It is nil when nothing matched.
	MatchedTemplateID *string
	FileID            string
	Error             string
}

// MarshalJSON writes failed items as {filename, error} and the rest as
// {filename, matched_template_id}, with matched_template_id null when
// nothing matched.
func (r BatchResult) MarshalJSON() ([]byte, error) {
	if r.Error != "" {
		return json.Marshal(struct {
			Filename string `json:"filename"`
			FileID   string `json:"file_id,omitempty"`
			Error    string `json:"error"`
		}{r.Filename, r.FileID, r.Error})
	}
	return json.Marshal(struct {
		Filename          string  `json:"filename"`
		FileID            string  `json:"file_id,omitempty"`
		MatchedTemplateID *string `json:"matched_template_id"`
	}{r.Filename, r.FileID, r.MatchedTemplateID})
}

// BatchResults converts outcomes to their wire form, keeping order.
func BatchResults(outcomes []match.Outcome) []BatchResult {
	out := make([]BatchResult, len(outcomes))
	for i, o := range outcomes {
		r := BatchResult{Filename: o.Filename, FileID: o.FileID}
		switch {
		case o.Err != nil:
			r.Error = errors.UserMessage(o.Err)
		case o.Result.Matched:
			name := o.Result.Name()
			r.MatchedTemplateID = &name
		}
		out[i] = r
	}
	return out
}
