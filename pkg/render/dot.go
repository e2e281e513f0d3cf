package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/matzehuels/sheetblocks/pkg/layout"
)

// Options configures the drawing.
type Options struct {
	// Rows and Columns are the source grid dimensions, shown in the title.
	Rows, Columns int

	// Title overrides the default "<rows> rows × <columns> columns" caption.
	Title string
}

const (
	rowHeight  = 0.25 // inches per grid row
	minHeight  = 0.5
	maxHeight  = 6.0
	blockWidth = 4.0
)

// ToDOT describes l as a Graphviz graph.
func ToDOT(l layout.Layout, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph layout {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"white\";\n")
	buf.WriteString("  ranksep=0.25;\n")
	fmt.Fprintf(&buf, "  label=%q;\n  labelloc=t;\n  fontsize=18;\n", title(opts))
	buf.WriteString("  node [shape=box, fixedsize=true, fontsize=12, fontname=\"Helvetica\"];\n")
	buf.WriteString("  edge [style=invis];\n")
	buf.WriteString("\n")

	if len(l.Blocks) == 0 {
		buf.WriteString("  empty [label=\"no blocks\", shape=plaintext];\n")
	}
	for _, b := range l.Blocks {
		fmt.Fprintf(&buf, "  %s [%s];\n", nodeID(b), strings.Join(blockAttrs(b), ", "))
	}

	if len(l.Blocks) > 1 {
		buf.WriteString("\n")
		for i := 1; i < len(l.Blocks); i++ {
			fmt.Fprintf(&buf, "  %s -> %s;\n", nodeID(l.Blocks[i-1]), nodeID(l.Blocks[i]))
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func title(opts Options) string {
	if opts.Title != "" {
		return opts.Title
	}
	return fmt.Sprintf("%d rows × %d columns", opts.Rows, opts.Columns)
}

func nodeID(b layout.Block) string {
	return fmt.Sprintf("b%d", b.Label)
}

func blockLabel(b layout.Block) string {
	label := fmt.Sprintf("Block %d\nrows %d-%d", b.Label, b.Top, b.Bottom)
	if b.HasAnnotation() {
		label += "\nAnnotation: " + b.AnnotationText()
	}
	return label
}

func blockAttrs(b layout.Block) []string {
	h := min(max(float64(b.Height())*rowHeight, minHeight), maxHeight)
	attrs := []string{
		fmt.Sprintf("label=%q", blockLabel(b)),
		fmt.Sprintf("width=%.2f", blockWidth),
		fmt.Sprintf("height=%.2f", h),
	}
	if b.HasAnnotation() {
		attrs = append(attrs, "style=filled", "fillcolor=\"#d9f2d9\"", "color=\"#2e7d32\"", "fontcolor=\"#1b5e20\"")
	} else {
		attrs = append(attrs, "color=red", "penwidth=2")
	}
	return attrs
}
