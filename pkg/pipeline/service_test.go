package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/sheetblocks/pkg/errors"
	"github.com/matzehuels/sheetblocks/pkg/export"
	"github.com/matzehuels/sheetblocks/pkg/grid"
	"github.com/matzehuels/sheetblocks/pkg/layout"
	"github.com/matzehuels/sheetblocks/pkg/match"
	"github.com/matzehuels/sheetblocks/pkg/storage"
)

const (
	twoBlockCSV   = "A,1\nA,2\n\nB,1\nB,2\n"
	otherTwoCSV   = "x,1\n\ny,1\ny,2\ny,3\n"
	threeBlockCSV = "a\n\nb\n\nc\n"
)

type stubRenderer struct {
	calls int
	err   error
}

func (r *stubRenderer) RenderLayout(_ context.Context, g grid.Grid, l layout.Layout) ([]byte, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return []byte(fmt.Sprintf("img:%d:%d", g.Height(), len(l.Blocks))), nil
}

func newTestService(t *testing.T) (*Service, storage.Store) {
	t.Helper()
	st := storage.NewMemoryStore()
	svc := New(st, Options{Logger: log.New(io.Discard)})
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("file-%02d", n)
	}
	return svc, st
}

func upload(t *testing.T, svc *Service, name, content string) *FileResult {
	t.Helper()
	res, err := svc.Upload(context.Background(), name, []byte(content))
	if err != nil {
		t.Fatalf("Upload(%s): %v", name, err)
	}
	return res
}

func TestUpload(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	r := &stubRenderer{}
	svc.Renderer = r

	res := upload(t, svc, "report.csv", twoBlockCSV)
	if res.FileID != "file-01" || res.Filename != "report.csv" {
		t.Errorf("result = %s/%s", res.FileID, res.Filename)
	}
	if len(res.Layout.Blocks) != 2 {
		t.Fatalf("blocks = %d, want 2", len(res.Layout.Blocks))
	}
	if string(res.Image) != "img:5:2" || r.calls != 1 {
		t.Errorf("image = %q, calls = %d", res.Image, r.calls)
	}

	for _, key := range []string{"uploads/file-01_report.csv", "layouts/file-01_report.csv_layout.json"} {
		ok, err := st.Exists(ctx, key)
		if err != nil || !ok {
			t.Errorf("Exists(%s) = %v, %v", key, ok, err)
		}
	}
}

func TestUploadRejects(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		filename string
		data     string
		code     errors.Code
	}{
		{"path in name", "../x.csv", "a", errors.ErrCodeInvalidInput},
		{"unsupported", "notes.pdf", "a", errors.ErrCodeInvalidFormat},
		{"empty file", "empty.csv", "", errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(ctx, tt.filename, []byte(tt.data))
			if !errors.Is(err, tt.code) {
				t.Errorf("error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestUploadImageFailureIsNotFatal(t *testing.T) {
	svc, _ := newTestService(t)
	svc.Renderer = &stubRenderer{err: fmt.Errorf("no graphviz")}

	res := upload(t, svc, "report.csv", twoBlockCSV)
	if res.Image != nil {
		t.Errorf("image = %q, want none", res.Image)
	}
}

func TestAnnotate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	f := upload(t, svc, "report.csv", twoBlockCSV)

	res, err := svc.Annotate(ctx, f.FileID, f.Filename, 1, "totals")
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if res.Layout.Blocks[1].AnnotationText() != "totals" {
		t.Errorf("block 1 = %+v", res.Layout.Blocks[1])
	}

	stored, err := svc.Layout(ctx, f.FileID, f.Filename)
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if !stored.Cached || stored.Layout.Blocks[1].AnnotationText() != "totals" {
		t.Errorf("stored layout = %+v", stored.Layout)
	}
}

func TestAnnotateErrors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	f := upload(t, svc, "report.csv", twoBlockCSV)

	if _, err := svc.Annotate(ctx, f.FileID, f.Filename, 2, "x"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("out of range error = %v", err)
	}
	if _, err := svc.Annotate(ctx, "missing", "report.csv", 0, "x"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("missing file error = %v", err)
	}
	if _, err := svc.Annotate(ctx, "a/b", "report.csv", 0, "x"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("bad id error = %v", err)
	}
}

func TestLayoutDetectsWhenNotStored(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	f := upload(t, svc, "report.csv", twoBlockCSV)

	if err := st.Delete(ctx, svc.Keyer.LayoutKey(f.FileID, f.Filename)); err != nil {
		t.Fatal(err)
	}
	res, err := svc.Layout(ctx, f.FileID, f.Filename)
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if res.Cached || len(res.Layout.Blocks) != 2 {
		t.Errorf("Cached = %v, blocks = %d", res.Cached, len(res.Layout.Blocks))
	}
	if ok, _ := st.Exists(ctx, svc.Keyer.LayoutKey(f.FileID, f.Filename)); !ok {
		t.Error("detected layout was not stored")
	}
	again, err := svc.Layout(ctx, f.FileID, f.Filename)
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if !again.Cached {
		t.Error("second Layout should use the stored layout")
	}
}

func TestSaveAndApplyTemplate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	src := upload(t, svc, "jan.csv", twoBlockCSV)
	if _, err := svc.Annotate(ctx, src.FileID, src.Filename, 1, "totals"); err != nil {
		t.Fatal(err)
	}
	saved, err := svc.SaveTemplate(ctx, src.FileID, src.Filename, "monthly")
	if err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}
	if saved.Handle() != "monthly" || saved.ID == "" {
		t.Errorf("saved = %+v", saved)
	}

	dst := upload(t, svc, "feb.csv", otherTwoCSV)
	res, err := svc.ApplyTemplate(ctx, dst.FileID, dst.Filename, "monthly")
	if err != nil {
		t.Fatalf("ApplyTemplate: %v", err)
	}
	if res.Layout.Blocks[1].AnnotationText() != "totals" || res.Layout.Blocks[0].HasAnnotation() {
		t.Errorf("layout = %+v", res.Layout.Blocks)
	}

	byID, err := svc.LoadTemplate(ctx, saved.ID)
	if err != nil || byID.DisplayName != "monthly" {
		t.Errorf("LoadTemplate(id) = %+v, %v", byID, err)
	}
}

func TestSaveTemplateAnonymous(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	f := upload(t, svc, "jan.csv", twoBlockCSV)

	saved, err := svc.SaveTemplate(ctx, f.FileID, f.Filename, "")
	if err != nil {
		t.Fatalf("SaveTemplate: %v", err)
	}
	if saved.Handle() != saved.ID {
		t.Errorf("Handle = %q, want ID %q", saved.Handle(), saved.ID)
	}
}

func TestSaveTemplateDuplicateName(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	f := upload(t, svc, "jan.csv", twoBlockCSV)

	if _, err := svc.SaveTemplate(ctx, f.FileID, f.Filename, "monthly"); err != nil {
		t.Fatal(err)
	}
	_, err := svc.SaveTemplate(ctx, f.FileID, f.Filename, "monthly")
	if !errors.Is(err, errors.ErrCodeDuplicateName) {
		t.Fatalf("error = %v, want DUPLICATE_NAME", err)
	}
	if msg := errors.UserMessage(err); msg != "Template name 'monthly' already exists" {
		t.Errorf("message = %q", msg)
	}
}

func TestSaveTemplateMissingFile(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.SaveTemplate(context.Background(), "nope", "jan.csv", "")
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("error = %v, want NOT_FOUND", err)
	}
}

func TestApplyTemplateErrors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	two := upload(t, svc, "two.csv", twoBlockCSV)
	three := upload(t, svc, "three.csv", threeBlockCSV)
	if _, err := svc.SaveTemplate(ctx, two.FileID, two.Filename, "pair"); err != nil {
		t.Fatal(err)
	}

	_, err := svc.ApplyTemplate(ctx, three.FileID, three.Filename, "pair")
	if !errors.Is(err, errors.ErrCodeLayoutMismatch) {
		t.Errorf("mismatch error = %v", err)
	}
	if msg := errors.UserMessage(err); msg != "Template does not match file layout" {
		t.Errorf("mismatch message = %q", msg)
	}

	if _, err := svc.ApplyTemplate(ctx, three.FileID, three.Filename, "unknown"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("unknown template error = %v", err)
	}
	if _, err := svc.ApplyTemplate(ctx, "gone", "x.csv", "pair"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("missing file error = %v", err)
	}
}

func TestApplyEmptyTemplate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	f := upload(t, svc, "two.csv", twoBlockCSV)

	if _, err := svc.Templates.Save(ctx, layout.Layout{}, "blank.csv", "blank"); err != nil {
		t.Fatal(err)
	}
	_, err := svc.ApplyTemplate(ctx, f.FileID, f.Filename, "blank")
	if !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("error = %v, want INVALID_FORMAT", err)
	}
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)
	f := upload(t, svc, "report.csv", twoBlockCSV)
	if _, err := svc.Annotate(ctx, f.FileID, f.Filename, 0, "head"); err != nil {
		t.Fatal(err)
	}

	data, err := svc.Export(ctx, f.FileID, f.Filename, export.FormatCSV)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	want := "0,1,annotation\nA,1,head\nA,2,head\n,,\nB,1,\nB,2,\n"
	if string(data) != want {
		t.Errorf("export =\n%s\nwant\n%s", data, want)
	}

	if err := st.Delete(ctx, svc.Keyer.LayoutKey(f.FileID, f.Filename)); err != nil {
		t.Fatal(err)
	}
	data, err = svc.Export(ctx, f.FileID, f.Filename, export.FormatCSV)
	if err != nil {
		t.Fatalf("Export without layout: %v", err)
	}
	if strings.HasPrefix(string(data), "0,1") {
		t.Errorf("raw export should have no header: %s", data)
	}

	if _, err := svc.Export(ctx, "gone", "report.csv", export.FormatCSV); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("missing file error = %v", err)
	}
}

func TestBatch(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	src := upload(t, svc, "jan.csv", twoBlockCSV)
	if _, err := svc.Annotate(ctx, src.FileID, src.Filename, 1, "totals"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.SaveTemplate(ctx, src.FileID, src.Filename, "monthly"); err != nil {
		t.Fatal(err)
	}

	items := []match.Item{
		{Filename: "feb.csv", Data: []byte(otherTwoCSV)},
		{Filename: "three.csv", Data: []byte(threeBlockCSV)},
		{Filename: "broken.pdf", Data: []byte("%PDF")},
	}
	outcomes, stats, err := svc.Batch(ctx, items)
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if len(outcomes) != 3 || stats.Files != 3 || stats.Matched != 1 || stats.Failed != 1 {
		t.Fatalf("outcomes = %v, stats = %+v", outcomes, stats)
	}

	if !outcomes[0].Result.Matched || outcomes[0].Result.Name() != "monthly" {
		t.Errorf("feb outcome = %+v", outcomes[0])
	}
	stored, err := svc.Layout(ctx, outcomes[0].FileID, "feb.csv")
	if err != nil {
		t.Fatal(err)
	}
	if stored.Layout.Blocks[1].AnnotationText() != "totals" {
		t.Errorf("feb layout not annotated: %+v", stored.Layout.Blocks)
	}

	if outcomes[1].Result.Matched || outcomes[1].Err != nil {
		t.Errorf("three outcome = %+v", outcomes[1])
	}
	if stored, _ := svc.Layout(ctx, outcomes[1].FileID, "three.csv"); stored.Layout.Annotated() != 0 {
		t.Errorf("unmatched layout gained annotations")
	}
	if !errors.Is(outcomes[2].Err, errors.ErrCodeInvalidFormat) {
		t.Errorf("broken outcome = %+v", outcomes[2])
	}
}

func TestBatchUnreadableItem(t *testing.T) {
	ctx := context.Background()
	svc, st := newTestService(t)

	readErr := errors.New(errors.ErrCodeInvalidInput, "read feb.csv: unexpected EOF")
	outcomes, stats, err := svc.Batch(ctx, []match.Item{
		{Filename: "feb.csv", Err: readErr},
		{Filename: "mar.csv", Data: []byte(twoBlockCSV)},
	})
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if stats.Failed != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if outcomes[0].Err != readErr || outcomes[0].FileID != "" {
		t.Errorf("unreadable outcome = %+v", outcomes[0])
	}
	if got := BatchResults(outcomes)[0].Error; got != "read feb.csv: unexpected EOF" {
		t.Errorf("error = %q", got)
	}

	keys, err := st.List(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range keys {
		if strings.Contains(k, "feb.csv") {
			t.Errorf("unreadable item was stored under %s", k)
		}
	}
}

func TestBatchResultsJSON(t *testing.T) {
	name := "monthly"
	results := BatchResults([]match.Outcome{
		{Filename: "a.csv", Result: match.Result{TemplateID: "id-1", DisplayName: name, Matched: true}},
		{Filename: "b.csv"},
		{Filename: "c.pdf", Err: errors.New(errors.ErrCodeInvalidFormat, "unsupported file type: .pdf")},
	})

	data, err := json.Marshal(results)
	if err != nil {
		t.Fatal(err)
	}
	want := `[{"filename":"a.csv","matched_template_id":"monthly"},` +
		`{"filename":"b.csv","matched_template_id":null},` +
		`{"filename":"c.pdf","error":"unsupported file type: .pdf"}]`
	if string(data) != want {
		t.Errorf("json =\n%s\nwant\n%s", data, want)
	}
}

func TestRenderDisabled(t *testing.T) {
	svc, _ := newTestService(t)
	f := upload(t, svc, "report.csv", twoBlockCSV)
	_, err := svc.Render(context.Background(), f.FileID, f.Filename)
	if !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("error = %v, want UNSUPPORTED", err)
	}
}
