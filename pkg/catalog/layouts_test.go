package catalog

import (
	"context"
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/sheetblocks/pkg/grid"
	"github.com/matzehuels/sheetblocks/pkg/layout"
	"github.com/matzehuels/sheetblocks/pkg/storage"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func twoBlocks() layout.Layout {
	l := layout.Layout{Blocks: []layout.Block{
		{Label: 0, Top: 0, Bottom: 1, Left: 0, Right: 1, Text: [][]string{{"A", "1"}, {"A", "2"}}},
		{Label: 1, Top: 3, Bottom: 4, Left: 0, Right: 1, Text: [][]string{{"B", "1"}, {"B", "2"}}},
	}}
	l.Blocks[1].SetAnnotation("totals")
	return l
}

func scenarioGrid(t *testing.T) grid.Grid {
	t.Helper()
	g, err := grid.FromStrings([][]string{{"A", "1"}, {"A", "2"}, {"", ""}, {"B", "1"}, {"B", "2"}})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestLayoutStoreGetPut(t *testing.T) {
	ctx := context.Background()
	s := NewLayoutStore(storage.NewMemoryStore(), nil, testLogger())

	if _, ok, err := s.Get(ctx, "f1", "a.xlsx"); ok || err != nil {
		t.Fatalf("Get before Put = %v, %v", ok, err)
	}

	if err := s.Put(ctx, "f1", "a.xlsx", twoBlocks()); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// Idempotent overwrite.
	if err := s.Put(ctx, "f1", "a.xlsx", twoBlocks()); err != nil {
		t.Fatalf("Put again: %v", err)
	}

	l, ok, err := s.Get(ctx, "f1", "a.xlsx")
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if len(l.Blocks) != 2 || l.Blocks[1].AnnotationText() != "totals" {
		t.Errorf("layout = %+v", l)
	}

	if _, ok, _ := s.Get(ctx, "f1", "b.xlsx"); ok {
		t.Error("different filename must not share the layout")
	}
}

func TestLayoutStoreGetOrDetect(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryStore()
	s := NewLayoutStore(mem, nil, testLogger())
	g := scenarioGrid(t)

	l, hit, err := s.GetOrDetectWithCacheInfo(ctx, "f1", "a.csv", g)
	if err != nil {
		t.Fatalf("GetOrDetect: %v", err)
	}
	if hit {
		t.Error("first call should detect")
	}
	if len(l.Blocks) != 2 || l.Blocks[0].Bottom != 1 || l.Blocks[1].Top != 3 {
		t.Errorf("layout = %+v", l)
	}
	if ok, _ := mem.Exists(ctx, "layouts/f1_a.csv_layout.json"); !ok {
		t.Error("detected layout was not stored")
	}

	// Annotate the stored copy; the next call must return it instead of
	// re-detecting.
	if err := layout.Annotate(&l, 0, "header"); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, "f1", "a.csv", l); err != nil {
		t.Fatal(err)
	}

	again, hit, err := s.GetOrDetectWithCacheInfo(ctx, "f1", "a.csv", g)
	if err != nil {
		t.Fatal(err)
	}
	if !hit {
		t.Error("second call should use the stored layout")
	}
	if again.Blocks[0].AnnotationText() != "header" {
		t.Error("stored annotation lost")
	}
}

func TestLayoutStoreReadsLegacyRecord(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryStore()
	legacy := `[{"label":0,"top":0,"bottom":0,"left":0,"right":0,"text":[["x"]],"annotation":"only"}]`
	_ = mem.Put(ctx, "layouts/f_x.csv_layout.json", []byte(legacy))

	s := NewLayoutStore(mem, nil, testLogger())
	l, ok, err := s.Get(ctx, "f", "x.csv")
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if l.Blocks[0].AnnotationText() != "only" {
		t.Errorf("layout = %+v", l)
	}
}

func TestLayoutStoreScoped(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemoryStore()
	a := NewLayoutStore(mem, storage.NewKeyer("a"), testLogger())
	b := NewLayoutStore(mem, storage.NewKeyer("b"), testLogger())

	_ = a.Put(ctx, "f", "x.csv", twoBlocks())
	if _, ok, _ := b.Get(ctx, "f", "x.csv"); ok {
		t.Error("namespaces leaked")
	}
}
