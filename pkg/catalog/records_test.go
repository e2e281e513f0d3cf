package catalog

import (
	"encoding/json"
	"testing"

	"github.com/matzehuels/sheetblocks/pkg/errors"
	"github.com/matzehuels/sheetblocks/pkg/layout"
)

func TestDecodeLayout(t *testing.T) {
	tests := []struct {
		name         string
		data         string
		wantBlocks   int
		wantMigrated bool
		wantErr      bool
	}{
		{
			name:       "current",
			data:       `{"schema_version":1,"blocks":[{"label":0,"top":0,"bottom":1,"left":0,"right":1,"text":[["A","1"],["A","2"]]}]}`,
			wantBlocks: 1,
		},
		{
			name:         "legacy bare array",
			data:         `[{"label":0,"top":0,"bottom":1,"left":0,"right":1,"text":[["A","1"],["A","2"]],"annotation":"head"},{"label":1,"top":3,"bottom":4,"left":0,"right":1,"text":[]}]`,
			wantBlocks:   2,
			wantMigrated: true,
		},
		{
			name:         "legacy empty array",
			data:         `[]`,
			wantMigrated: true,
		},
		{name: "not json", data: `{`, wantErr: true},
		{name: "wrong version", data: `{"schema_version":7,"blocks":[]}`, wantErr: true},
		{name: "missing bounds", data: `{"schema_version":1,"blocks":[{"label":0}]}`, wantErr: true},
		{name: "negative top", data: `[{"label":0,"top":-1,"bottom":1,"left":0,"right":0}]`, wantErr: true},
		{name: "inverted range", data: `[{"label":0,"top":3,"bottom":1,"left":0,"right":0}]`, wantErr: true},
		{name: "scalar", data: `42`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, migrated, err := decodeLayout([]byte(tt.data))
			if tt.wantErr {
				if !errors.Is(err, errors.ErrCodeInvalidFormat) {
					t.Fatalf("error = %v, want INVALID_FORMAT", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeLayout: %v", err)
			}
			if len(l.Blocks) != tt.wantBlocks {
				t.Errorf("blocks = %d, want %d", len(l.Blocks), tt.wantBlocks)
			}
			if migrated != tt.wantMigrated {
				t.Errorf("migrated = %v, want %v", migrated, tt.wantMigrated)
			}
		})
	}
}

func TestDecodeLayoutKeepsAnnotation(t *testing.T) {
	l, _, err := decodeLayout([]byte(`[{"label":0,"top":0,"bottom":0,"left":0,"right":0,"text":[["x"]],"annotation":""}]`))
	if err != nil {
		t.Fatal(err)
	}
	if !l.Blocks[0].HasAnnotation() {
		t.Error("empty annotation should survive decoding as present")
	}
}

func TestEncodeLayoutIsCurrentVersion(t *testing.T) {
	data, err := encodeLayout(twoBlocks())
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if doc["schema_version"] != float64(SchemaVersion) {
		t.Errorf("schema_version = %v", doc["schema_version"])
	}

	l, migrated, err := decodeLayout(data)
	if err != nil || migrated {
		t.Fatalf("decode own output: migrated=%v err=%v", migrated, err)
	}
	if l.Blocks[1].AnnotationText() != "totals" {
		t.Errorf("annotation lost: %+v", l.Blocks[1])
	}
}

func TestEncodeEmptyLayout(t *testing.T) {
	data, err := encodeLayout(layout.Layout{})
	if err != nil {
		t.Fatal(err)
	}
	l, _, err := decodeLayout(data)
	if err != nil {
		t.Errorf("empty layout does not pass the schema: %v", err)
	}
	if len(l.Blocks) != 0 {
		t.Errorf("blocks = %v", l.Blocks)
	}
}

func TestDecodeTemplateLegacy(t *testing.T) {
	blocks := `[{"label":0,"top":0,"bottom":1,"left":0,"right":1,"text":[]},{"label":1,"top":3,"bottom":4,"left":0,"right":1,"text":[],"annotation":"totals"}]`
	other := `[{"label":0,"top":0,"bottom":0,"left":0,"right":0,"text":[]}]`

	tests := []struct {
		name       string
		data       string
		wantBlocks int
		wantName   string
	}{
		{
			name:       "layout and structure",
			data:       `{"template_id":"t1","filename":"a.xlsx","structure":` + other + `,"layout":` + blocks + `,"custom_name":"monthly"}`,
			wantBlocks: 2,
			wantName:   "monthly",
		},
		{
			name:       "structure only",
			data:       `{"template_id":"t1","filename":"a.xlsx","structure":` + blocks + `,"custom_name":null}`,
			wantBlocks: 2,
		},
		{
			name:       "layout only",
			data:       `{"template_id":"t1","filename":"a.xlsx","layout":` + other + `}`,
			wantBlocks: 1,
		},
		{
			name:       "null layout falls back to structure",
			data:       `{"template_id":"t1","filename":"a.xlsx","layout":null,"structure":` + blocks + `}`,
			wantBlocks: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, migrated, err := decodeTemplate([]byte(tt.data))
			if err != nil {
				t.Fatalf("decodeTemplate: %v", err)
			}
			if !migrated {
				t.Error("legacy record should report migration")
			}
			if tmpl.ID != "t1" || tmpl.SourceFilename != "a.xlsx" {
				t.Errorf("template = %+v", tmpl)
			}
			if len(tmpl.Layout.Blocks) != tt.wantBlocks {
				t.Errorf("blocks = %d, want %d", len(tmpl.Layout.Blocks), tt.wantBlocks)
			}
			if tmpl.DisplayName != tt.wantName {
				t.Errorf("DisplayName = %q, want %q", tmpl.DisplayName, tt.wantName)
			}
		})
	}
}

func TestDecodeTemplateInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"no layout", `{"template_id":"t1","filename":"a.xlsx"}`},
		{"array", `[]`},
		{"bad block", `{"template_id":"t1","layout":[{"label":"x"}]}`},
		{"versioned missing id", `{"schema_version":1,"layout":{"schema_version":1,"blocks":[]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := decodeTemplate([]byte(tt.data)); !errors.Is(err, errors.ErrCodeInvalidFormat) {
				t.Errorf("error = %v, want INVALID_FORMAT", err)
			}
		})
	}
}

func TestEncodeTemplate(t *testing.T) {
	in := Template{ID: "abc", SourceFilename: "r.csv", Layout: twoBlocks(), DisplayName: "weekly", Seq: 4}
	data, err := encodeTemplate(in)
	if err != nil {
		t.Fatal(err)
	}

	var doc map[string]any
	_ = json.Unmarshal(data, &doc)
	lay, ok := doc["layout"].(map[string]any)
	if !ok || lay["schema_version"] != float64(SchemaVersion) {
		t.Errorf("nested layout = %v", doc["layout"])
	}
	if _, ok := doc["structure"]; ok {
		t.Error("current records must not carry structure")
	}

	out, migrated, err := decodeTemplate(data)
	if err != nil || migrated {
		t.Fatalf("decode: migrated=%v err=%v", migrated, err)
	}
	if out.ID != in.ID || out.DisplayName != in.DisplayName || out.Seq != in.Seq {
		t.Errorf("decoded = %+v", out)
	}
	if out.Layout.Blocks[1].AnnotationText() != "totals" {
		t.Error("annotation lost")
	}
}

func TestDecodeNameIndex(t *testing.T) {
	idx, err := decodeNameIndex([]byte(`{"monthly":"t1","weekly":"t2"}`))
	if err != nil || idx["weekly"] != "t2" {
		t.Errorf("idx = %v, err = %v", idx, err)
	}
	for _, bad := range []string{`{`, `[]`, `{"a":1}`} {
		if _, err := decodeNameIndex([]byte(bad)); err == nil {
			t.Errorf("decodeNameIndex(%s) should fail", bad)
		}
	}
}
