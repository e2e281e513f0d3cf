package grid

import (
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/matzehuels/sheetblocks/pkg/errors"
)

func TestReadCSVKeepsBlankLines(t *testing.T) {
	in := "A,1\nA,2\n\nB,1\nB,2\n"
	rows, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	want := [][]string{{"A", "1"}, {"A", "2"}, nil, {"B", "1"}, {"B", "2"}}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("rows = %q, want %q", rows, want)
	}
}

func TestReadCSVMultilineField(t *testing.T) {
	in := "\"line one\nline two\",x\n\ny,z\n"
	rows, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3: %q", len(rows), rows)
	}
	if rows[1] != nil {
		t.Errorf("rows[1] = %q, want blank separator", rows[1])
	}
	if rows[2][0] != "y" {
		t.Errorf("rows[2] = %q", rows[2])
	}
}

func TestReadCSVStripsBOM(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader("\ufeffname,qty\nbolt,4\n"))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if rows[0][0] != "name" {
		t.Errorf("first cell = %q, want %q", rows[0][0], "name")
	}
}

func TestReadCSVRagged(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader("a\nb,c,d\n"))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(rows[0]) != 1 || len(rows[1]) != 3 {
		t.Errorf("rows = %q", rows)
	}
}

func TestReadFileCSV(t *testing.T) {
	g, err := ReadFile("report.csv", []byte("A,1\n,\nB,\n"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := [][]string{{"A", "1"}, {Empty, Empty}, {"B", Empty}}
	if !reflect.DeepEqual(g.Rows, want) {
		t.Errorf("Rows = %q, want %q", g.Rows, want)
	}
}

func TestReadFileTSV(t *testing.T) {
	g, err := ReadFile("report.tsv", []byte("a\tb\nc\td\n"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if g.Width != 2 || g.Rows[1][1] != "d" {
		t.Errorf("grid = %+v", g)
	}
}

func TestReadFileXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Sheet1"
	f.SetCellValue(sheet, "A1", "A")
	f.SetCellValue(sheet, "B1", 1)
	f.SetCellValue(sheet, "A2", "A")
	f.SetCellValue(sheet, "B2", 2)
	f.SetCellValue(sheet, "A4", "B")
	f.SetCellValue(sheet, "C4", "wide")

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}

	g, err := ReadFile("book.xlsx", buf.Bytes())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if g.Height() != 4 {
		t.Fatalf("Height = %d, want 4", g.Height())
	}
	if g.Width != 3 {
		t.Errorf("Width = %d, want 3", g.Width)
	}
	if !IsBlankRow(g.Rows[2]) {
		t.Errorf("row 2 = %q, want blank", g.Rows[2])
	}
	if g.Rows[0][1] != "1" || g.Rows[0][2] != Empty {
		t.Errorf("row 0 = %q", g.Rows[0])
	}
}

func TestReadFileUnsupported(t *testing.T) {
	_, err := ReadFile("notes.pdf", []byte("%PDF"))
	if !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("error = %v, want INVALID_FORMAT", err)
	}
}

func TestReadFileCorruptXLSX(t *testing.T) {
	_, err := ReadFile("broken.xlsx", []byte("not a zip"))
	if !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("error = %v, want INVALID_FORMAT", err)
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name   string
		want   Format
		wantOK bool
	}{
		{"a.xlsx", FormatXLSX, true},
		{"A.XLSM", FormatXLSX, true},
		{"a.csv", FormatCSV, true},
		{"a.tsv", FormatTSV, true},
		{"a.xls", "", false},
		{"noext", "", false},
	}
	for _, tt := range tests {
		got, ok := DetectFormat(tt.name)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("DetectFormat(%q) = %q, %v; want %q, %v", tt.name, got, ok, tt.want, tt.wantOK)
		}
	}
}
