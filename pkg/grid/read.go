package grid

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/matzehuels/sheetblocks/pkg/errors"
)

// Format identifies an input file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
)

var extFormats = map[string]Format{
	".xlsx": FormatXLSX,
	".xlsm": FormatXLSX,
	".xltx": FormatXLSX,
	".xltm": FormatXLSX,
	".csv":  FormatCSV,
	".txt":  FormatCSV,
	".tsv":  FormatTSV,
}

// DetectFormat returns the input format implied by a filename's extension.
func DetectFormat(filename string) (Format, bool) {
	f, ok := extFormats[strings.ToLower(filepath.Ext(filename))]
	return f, ok
}

// IsSupported reports whether filename has a readable spreadsheet extension.
func IsSupported(filename string) bool {
	_, ok := DetectFormat(filename)
	return ok
}

// ReadFile reads an uploaded file and normalizes it into a Grid.
// The reader is chosen by the extension of name.
func ReadFile(name string, data []byte) (Grid, error) {
	format, ok := DetectFormat(name)
	if !ok {
		return Grid{}, errors.New(errors.ErrCodeInvalidFormat, "unsupported file type: %s", filepath.Ext(name))
	}

	var (
		rows [][]string
		err  error
	)
	switch format {
	case FormatXLSX:
		rows, err = ReadXLSX(bytes.NewReader(data), "")
	case FormatTSV:
		rows, err = readDelimited(bytes.NewReader(data), '\t')
	default:
		rows, err = ReadCSV(bytes.NewReader(data))
	}
	if err != nil {
		return Grid{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "read %s", name)
	}
	return FromStrings(rows)
}

// ReadXLSX returns the cell strings of one worksheet. An empty sheet name
// selects the first sheet in the workbook.
func ReadXLSX(r io.Reader, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

// ReadCSV returns the records of a comma-separated file. Rows may have
// different lengths. A UTF-8 or UTF-16 byte order mark is honoured.
//
// Blank lines are kept as empty rows; they are block separators.
func ReadCSV(r io.Reader) ([][]string, error) {
	return readDelimited(r, ',')
}

func readDelimited(r io.Reader, comma rune) ([][]string, error) {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	cr := csv.NewReader(transform.NewReader(r, dec))
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows [][]string
	next := 1 // line the next record starts on if no blank lines intervene
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}

		// csv.Reader skips blank lines; put them back.
		start, _ := cr.FieldPos(0)
		for ; next < start; next++ {
			rows = append(rows, nil)
		}
		last := len(rec) - 1
		lastLine, _ := cr.FieldPos(last)
		next = lastLine + strings.Count(rec[last], "\n") + 1

		rows = append(rows, rec)
	}
	return rows, nil
}
