// Package render draws a layout as an image.
//
// Each block becomes a box, stacked top to bottom in row order, labelled
// with its index, row range and annotation. Box heights follow the number
// of rows in the block. Annotated blocks are filled; unannotated ones are
// drawn as red outlines.
//
// The picture is described as Graphviz DOT by [ToDOT] and rasterized by
// [Render] through go-graphviz, so no external binary is needed:
//
//	dot := render.ToDOT(l, render.Options{Rows: g.Height(), Columns: g.Width})
//	png, err := render.Render(ctx, dot, render.FormatPNG)
package render
