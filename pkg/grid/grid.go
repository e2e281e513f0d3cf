// Package grid turns raw tabular data into a rectangular grid of string cells.
//
// A [Grid] is the input to layout detection. Every row has exactly Width
// cells; short source rows are right-padded with [Empty]. Missing values
// (nil, NaN, or the empty string coming out of a file reader) become [Empty]
// as well, so downstream code only has to ask [IsEmpty].
//
// # Readers
//
// [ReadXLSX] and [ReadCSV] produce ragged [][]string rows from uploaded files;
// [ReadFile] picks one by file extension and normalizes the result.
package grid

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/matzehuels/sheetblocks/pkg/errors"
)

// Empty is the sentinel stored for missing cells.
const Empty = "nan"

// Grid is a rectangular table of string cells.
type Grid struct {
	Rows  [][]string `json:"rows"`
	Width int        `json:"width"`
}

// Height returns the number of rows.
func (g Grid) Height() int { return len(g.Rows) }

// IsEmpty reports whether a cell counts as blank for segmentation.
func IsEmpty(cell string) bool {
	return cell == Empty || strings.TrimSpace(cell) == ""
}

// IsBlankRow reports whether every cell in row is empty.
// A zero-length row is blank.
func IsBlankRow(row []string) bool {
	for _, c := range row {
		if !IsEmpty(c) {
			return false
		}
	}
	return true
}

// Normalize converts raw cell values into a Grid.
//
// nil and NaN values are missing and stored as [Empty]; everything else is
// converted with [CellString]. Width is the longest row; shorter rows are
// padded on the right. No rows are added or removed. A table with zero rows
// fails with INVALID_INPUT.
func Normalize(raw [][]any) (Grid, error) {
	if len(raw) == 0 {
		return Grid{}, errors.InvalidInput("grid has no rows")
	}

	width := 0
	for _, row := range raw {
		width = max(width, len(row))
	}

	rows := make([][]string, len(raw))
	for i, src := range raw {
		row := make([]string, width)
		for j := range row {
			if j < len(src) {
				row[j] = CellString(src[j])
			} else {
				row[j] = Empty
			}
		}
		rows[i] = row
	}
	return Grid{Rows: rows, Width: width}, nil
}

// FromStrings normalizes reader output, where "" marks a missing cell.
func FromStrings(raw [][]string) (Grid, error) {
	conv := make([][]any, len(raw))
	for i, src := range raw {
		row := make([]any, len(src))
		for j, v := range src {
			if v == "" {
				continue // nil
			}
			row[j] = v
		}
		conv[i] = row
	}
	return Normalize(conv)
}

// CellString returns the stored string form of a raw cell value.
func CellString(v any) string {
	switch x := v.(type) {
	case nil:
		return Empty
	case string:
		return x
	case float64:
		if math.IsNaN(x) {
			return Empty
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		if math.IsNaN(float64(x)) {
			return Empty
		}
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
