package layout

import "github.com/matzehuels/sheetblocks/pkg/grid"

// Detect segments g into blocks separated by fully empty rows.
// It is pure: the same grid always yields the same layout.
func Detect(g grid.Grid) Layout {
	var (
		blocks []Block
		buf    [][]string
		start  int
	)

	flush := func(end int) {
		if len(buf) == 0 {
			return
		}
		blocks = append(blocks, Block{
			Label:  len(blocks),
			Top:    start,
			Bottom: end,
			Left:   0,
			Right:  g.Width - 1,
			Text:   buf,
		})
		buf = nil
	}

	for i, row := range g.Rows {
		if grid.IsBlankRow(row) {
			flush(i - 1)
			start = i + 1
			continue
		}
		buf = append(buf, append([]string(nil), row...))
	}
	flush(len(g.Rows) - 1)

	return Layout{Blocks: blocks}
}

// SeparatorRows counts the rows of g that Detect treats as separators.
func SeparatorRows(g grid.Grid) int {
	n := 0
	for _, row := range g.Rows {
		if grid.IsBlankRow(row) {
			n++
		}
	}
	return n
}
