package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/matzehuels/sheetblocks/pkg/errors"
	"github.com/matzehuels/sheetblocks/pkg/layout"
)

// SchemaVersion is the version written into every new record.
const SchemaVersion = 1

// layoutRecord is the persisted form of a layout.
type layoutRecord struct {
	SchemaVersion int            `json:"schema_version"`
	Blocks        []layout.Block `json:"blocks"`
}

// =============================================================================
// Schemas
// =============================================================================

var blockSchema = map[string]any{
	"type":     "object",
	"required": []any{"label", "top", "bottom", "left", "right"},
	"properties": map[string]any{
		"label":      map[string]any{"type": "integer", "minimum": 0},
		"top":        map[string]any{"type": "integer", "minimum": 0},
		"bottom":     map[string]any{"type": "integer", "minimum": 0},
		"left":       map[string]any{"type": "integer", "minimum": 0},
		"right":      map[string]any{"type": "integer", "minimum": -1},
		"text":       map[string]any{"type": []any{"array", "null"}, "items": map[string]any{"type": "array", "items": map[string]any{"type": "string"}}},
		"annotation": map[string]any{"type": []any{"string", "null"}},
	},
}

var layoutSchema = map[string]any{
	"type":     "object",
	"required": []any{"schema_version", "blocks"},
	"properties": map[string]any{
		"schema_version": map[string]any{"const": SchemaVersion},
		"blocks":         map[string]any{"type": []any{"array", "null"}, "items": blockSchema},
	},
}

var templateSchema = map[string]any{
	"type":     "object",
	"required": []any{"schema_version", "template_id", "layout"},
	"properties": map[string]any{
		"schema_version": map[string]any{"const": SchemaVersion},
		"template_id":    map[string]any{"type": "string", "minLength": 1},
		"filename":       map[string]any{"type": "string"},
		"custom_name":    map[string]any{"type": []any{"string", "null"}},
		"seq":            map[string]any{"type": "integer", "minimum": 0},
		"created_at":     map[string]any{"type": "string"},
		"layout":         layoutSchema,
	},
}

var nameIndexSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": map[string]any{"type": "string"},
}

var (
	schemasOnce sync.Once
	schemasErr  error
	compiled    map[string]*jsonschema.Schema
)

func compileSchemas() error {
	schemasOnce.Do(func() {
		compiled = make(map[string]*jsonschema.Schema)
		for name, m := range map[string]map[string]any{
			"layout.json":     layoutSchema,
			"template.json":   templateSchema,
			"name_index.json": nameIndexSchema,
		} {
			b, err := json.Marshal(m)
			if err != nil {
				schemasErr = fmt.Errorf("marshal schema %s: %w", name, err)
				return
			}
			c := jsonschema.NewCompiler()
			if err := c.AddResource(name, bytes.NewReader(b)); err != nil {
				schemasErr = fmt.Errorf("add schema %s: %w", name, err)
				return
			}
			s, err := c.Compile(name)
			if err != nil {
				schemasErr = fmt.Errorf("compile schema %s: %w", name, err)
				return
			}
			compiled[name] = s
		}
	})
	return schemasErr
}

// validate checks a decoded JSON document against one of the record schemas.
func validate(schema string, doc any) error {
	if err := compileSchemas(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "record schemas")
	}
	if err := compiled[schema].Validate(doc); err != nil {
		return fmt.Errorf("does not match schema: %w", err)
	}
	return nil
}

// =============================================================================
// Decoding and migration
// =============================================================================

// decodeLayout parses a stored layout. Legacy records are a bare JSON array
// of blocks; they are upgraded to the current shape. migrated reports
// whether that happened.
func decodeLayout(data []byte) (l layout.Layout, migrated bool, err error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return layout.Layout{}, false, errors.Wrap(errors.ErrCodeInvalidFormat, err, "layout record is not JSON")
	}
	doc, migrated = migrateLayout(doc)

	if err := validate("layout.json", doc); err != nil {
		return layout.Layout{}, false, errors.Wrap(errors.ErrCodeInvalidFormat, err, "invalid layout record")
	}
	var rec layoutRecord
	if err := remarshal(doc, &rec); err != nil {
		return layout.Layout{}, false, errors.Wrap(errors.ErrCodeInvalidFormat, err, "invalid layout record")
	}
	if err := checkBlocks(rec.Blocks); err != nil {
		return layout.Layout{}, false, err
	}
	return layout.Layout{Blocks: rec.Blocks}, migrated, nil
}

// migrateLayout converts a legacy bare array into the versioned object.
func migrateLayout(doc any) (any, bool) {
	if arr, ok := doc.([]any); ok {
		return map[string]any{"schema_version": float64(SchemaVersion), "blocks": arr}, true
	}
	return doc, false
}

func encodeLayout(l layout.Layout) ([]byte, error) {
	blocks := l.Blocks
	if blocks == nil {
		blocks = []layout.Block{}
	}
	return json.Marshal(layoutRecord{SchemaVersion: SchemaVersion, Blocks: blocks})
}

// decodeTemplate parses a stored template record. Records written before
// versioning carry the block list under "layout", "structure" or both as a
// bare array; "layout" wins when both are present.
func decodeTemplate(data []byte) (Template, bool, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Template{}, false, errors.Wrap(errors.ErrCodeInvalidFormat, err, "template record is not a JSON object")
	}

	migrated := false
	if _, ok := raw["schema_version"]; !ok {
		src, ok := raw["layout"]
		if src == nil || !ok {
			src, ok = raw["structure"]
		}
		if !ok || src == nil {
			return Template{}, false, errors.New(errors.ErrCodeInvalidFormat, "invalid template format: no layout")
		}
		lay, _ := migrateLayout(src)
		raw["layout"] = lay
		delete(raw, "structure")
		raw["schema_version"] = float64(SchemaVersion)
		migrated = true
	}

	if err := validate("template.json", raw); err != nil {
		return Template{}, false, errors.Wrap(errors.ErrCodeInvalidFormat, err, "invalid template record")
	}
	var t Template
	if err := remarshal(raw, &t); err != nil {
		return Template{}, false, errors.Wrap(errors.ErrCodeInvalidFormat, err, "invalid template record")
	}
	if err := checkBlocks(t.Layout.Blocks); err != nil {
		return Template{}, false, err
	}
	return t, migrated, nil
}

// templateRecord is the on-disk form; the layout is nested as a versioned
// layout record.
type templateRecord struct {
	Template
	Layout layoutRecord `json:"layout"`
}

func encodeTemplate(t Template) ([]byte, error) {
	blocks := t.Layout.Blocks
	if blocks == nil {
		blocks = []layout.Block{}
	}
	t.SchemaVersion = SchemaVersion
	return json.Marshal(templateRecord{
		Template: t,
		Layout:   layoutRecord{SchemaVersion: SchemaVersion, Blocks: blocks},
	})
}

// decodeNameIndex parses the display-name index.
func decodeNameIndex(data []byte) (map[string]string, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if err := validate("name_index.json", doc); err != nil {
		return nil, err
	}
	idx := make(map[string]string)
	if err := remarshal(doc, &idx); err != nil {
		return nil, err
	}
	return idx, nil
}

func checkBlocks(blocks []layout.Block) error {
	for i, b := range blocks {
		if b.Top > b.Bottom {
			return errors.New(errors.ErrCodeInvalidFormat, "block %d: top %d after bottom %d", i, b.Top, b.Bottom)
		}
	}
	return nil
}

func remarshal(doc any, v any) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
