// Package export writes a grid back out with its block annotations.
//
// With a layout, the output has a header of column indices followed by an
// "annotation" column, and every row inside an annotated block carries that
// block's annotation. Without a layout the grid is written as-is, with no
// header. Missing cells are written empty in both cases.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/matzehuels/sheetblocks/pkg/errors"
	"github.com/matzehuels/sheetblocks/pkg/grid"
	"github.com/matzehuels/sheetblocks/pkg/layout"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// AnnotationColumn is the header of the extra column.
const AnnotationColumn = "annotation"

// SheetName is the worksheet written by [XLSX].
const SheetName = "Sheet1"

// ParseFormat validates a format name. An empty name means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", errors.New(errors.ErrCodeUnsupported, "unsupported export format %q (want csv or xlsx)", s)
	}
}

// Ext returns the file extension for f, including the dot.
func (f Format) Ext() string { return "." + string(f) }

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Table returns the rows that will be written for g, header first when l is
// non-nil.
func Table(g grid.Grid, l *layout.Layout) [][]string {
	out := make([][]string, 0, g.Height()+1)
	if l == nil {
		for _, row := range g.Rows {
			out = append(out, cells(row, 0))
		}
		return out
	}

	header := make([]string, 0, g.Width+1)
	for j := range g.Width {
		header = append(header, strconv.Itoa(j))
	}
	out = append(out, append(header, AnnotationColumn))

	notes := rowAnnotations(g.Height(), *l)
	for i, row := range g.Rows {
		r := cells(row, 1)
		out = append(out, append(r, notes[i]))
	}
	return out
}

// rowAnnotations spreads block annotations over their rows. Later blocks
// overwrite earlier ones if ranges ever overlap.
func rowAnnotations(height int, l layout.Layout) []string {
	notes := make([]string, height)
	for _, b := range l.Blocks {
		if !b.HasAnnotation() {
			continue
		}
		for i := max(b.Top, 0); i <= b.Bottom && i < height; i++ {
			notes[i] = b.AnnotationText()
		}
	}
	return notes
}

func cells(row []string, extra int) []string {
	r := make([]string, len(row), len(row)+extra)
	for j, c := range row {
		if c != grid.Empty {
			r[j] = c
		}
	}
	return r
}

// CSV writes the export table as comma-separated values.
func CSV(w io.Writer, g grid.Grid, l *layout.Layout) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(Table(g, l)); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// XLSX writes the export table as a single-sheet workbook.
func XLSX(w io.Writer, g grid.Grid, l *layout.Layout) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, row := range Table(g, l) {
		for j, v := range row {
			if v == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return fmt.Errorf("cell name: %w", err)
			}
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return fmt.Errorf("set %s: %w", cell, err)
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// Bytes renders the export in format f.
func Bytes(f Format, g grid.Grid, l *layout.Layout) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch f {
	case FormatXLSX:
		err = XLSX(&buf, g, l)
	case FormatCSV, "":
		err = CSV(&buf, g, l)
	default:
		return nil, errors.New(errors.ErrCodeUnsupported, "unsupported export format %q", f)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "export failed")
	}
	return buf.Bytes(), nil
}
