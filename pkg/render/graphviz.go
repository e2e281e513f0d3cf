package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/sheetblocks/pkg/errors"
	"github.com/matzehuels/sheetblocks/pkg/grid"
	"github.com/matzehuels/sheetblocks/pkg/layout"
	"github.com/matzehuels/sheetblocks/pkg/observability"
)

// Format is an output image format.
type Format string

const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatPNG, FormatSVG:
		return Format(s), nil
	default:
		return "", errors.New(errors.ErrCodeUnsupported, "unsupported image format %q (want png or svg)", s)
	}
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatSVG {
		return "image/svg+xml"
	}
	return "image/png"
}

// Render lays out a DOT graph and encodes it as f.
func Render(ctx context.Context, dot string, f Format) ([]byte, error) {
	start := time.Now()
	data, err := render(ctx, dot, f)
	observability.Pipeline().OnRender(ctx, string(f), time.Since(start), err)
	return data, err
}

func render(ctx context.Context, dot string, f Format) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	gvFormat := graphviz.PNG
	if f == FormatSVG {
		gvFormat = graphviz.SVG
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, gvFormat, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	if f == FormatSVG {
		return normalizeViewBox(buf.Bytes()), nil
	}
	return buf.Bytes(), nil
}

// Renderer draws layouts in a fixed format.
type Renderer struct {
	Format Format
}

// NewRenderer creates a renderer; an empty format means PNG.
func NewRenderer(f Format) *Renderer {
	if f == "" {
		f = FormatPNG
	}
	return &Renderer{Format: f}
}

// RenderLayout draws l for a grid of g's size.
func (r *Renderer) RenderLayout(ctx context.Context, g grid.Grid, l layout.Layout) ([]byte, error) {
	return Render(ctx, ToDOT(l, Options{Rows: g.Height(), Columns: g.Width}), r.Format)
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's pt-sized root element with one that
// scales to its container.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
