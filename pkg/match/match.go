// Package match picks a template for a freshly detected layout.
//
// The policy is deliberately simple: templates are tried in registration
// order and the first compatible one wins. There is no scoring and no
// tie-breaking beyond that order.
package match

import (
	"context"
	"fmt"

	"github.com/matzehuels/sheetblocks/pkg/catalog"
	"github.com/matzehuels/sheetblocks/pkg/errors"
	"github.com/matzehuels/sheetblocks/pkg/layout"
)

// Result describes which template, if any, was applied to a layout.
type Result struct {
	TemplateID  string
	DisplayName string
	Matched     bool
}

// Name returns the display name of the matched template, falling back to
// its ID. It is empty when nothing matched.
func (r Result) Name() string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	return r.TemplateID
}

// Matcher applies the first compatible template.
type Matcher struct {
	Mode layout.Compatibility
}

// Match merges the annotations of the first template compatible with l
// into l. Templates must be in registration order. When nothing is
// compatible, l is left untouched and the zero Result is returned.
func (m Matcher) Match(l *layout.Layout, templates []catalog.Template) Result {
	for _, t := range templates {
		if !layout.IsCompatibleWith(*l, t.Layout, m.Mode) {
			continue
		}
		if _, err := layout.MergeWith(l, t.Layout, m.Mode); err != nil {
			// Unreachable: compatibility was just checked.
			continue
		}
		return Result{TemplateID: t.ID, DisplayName: t.DisplayName, Matched: true}
	}
	return Result{}
}

// Item is one unit of batch work, typically an uploaded file.
type Item struct {
	Filename string
	Data     []byte

	// Err is set when the item could not be read. Run records it as the
	// item's outcome without calling fn.
	Err error
}

// Outcome is the result of one Item. Exactly one of Result or Err is
// meaningful.
type Outcome struct {
	Filename string
	FileID   string
	Result   Result
	Err      error
}

// Func processes one item. It may return a file ID alongside the result.
type Func func(ctx context.Context, item Item) (fileID string, res Result, err error)

// Run calls fn for every item in order. A failing or panicking item is
// recorded in its own Outcome and does not stop the batch; Run always
// returns one Outcome per item. Cancelling ctx marks the remaining items
// as failed.
func (m Matcher) Run(ctx context.Context, items []Item, fn Func) []Outcome {
	out := make([]Outcome, len(items))
	for i, item := range items {
		out[i].Filename = item.Filename
		if err := ctx.Err(); err != nil {
			out[i].Err = err
			continue
		}
		if item.Err != nil {
			out[i].Err = item.Err
			continue
		}
		out[i].FileID, out[i].Result, out[i].Err = runOne(ctx, item, fn)
	}
	return out
}

func runOne(ctx context.Context, item Item, fn Func) (fileID string, res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.ErrCodeInternal, "panic processing %s: %v", item.Filename, r)
		}
	}()
	return fn(ctx, item)
}

// Summary counts matched and failed outcomes.
func Summary(outcomes []Outcome) (matched, failed int) {
	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			failed++
		case o.Result.Matched:
			matched++
		}
	}
	return matched, failed
}

func (o Outcome) String() string {
	switch {
	case o.Err != nil:
		return fmt.Sprintf("%s: error: %s", o.Filename, errors.UserMessage(o.Err))
	case o.Result.Matched:
		return fmt.Sprintf("%s: %s", o.Filename, o.Result.Name())
	default:
		return fmt.Sprintf("%s: no match", o.Filename)
	}
}
