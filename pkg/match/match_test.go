package match

import (
	"context"
	"errors"
	"testing"

	"github.com/matzehuels/sheetblocks/pkg/catalog"
	sberrors "github.com/matzehuels/sheetblocks/pkg/errors"
	"github.com/matzehuels/sheetblocks/pkg/grid"
	"github.com/matzehuels/sheetblocks/pkg/layout"
)

func detect(t *testing.T, rows [][]string) layout.Layout {
	t.Helper()
	g, err := grid.FromStrings(rows)
	if err != nil {
		t.Fatal(err)
	}
	return layout.Detect(g)
}

// scenarioTemplate is the two-block layout with block 1 labelled "totals".
func scenarioTemplate(t *testing.T, id, name string) catalog.Template {
	l := detect(t, [][]string{{"A", "1"}, {"A", "2"}, {"", ""}, {"B", "1"}, {"B", "2"}})
	if err := layout.Annotate(&l, 1, "totals"); err != nil {
		t.Fatal(err)
	}
	return catalog.Template{ID: id, DisplayName: name, Layout: l}
}

func TestMatchTwoBlockScenario(t *testing.T) {
	tmpl := scenarioTemplate(t, "t1", "")
	l := detect(t, [][]string{{"x"}, {"", ""}, {"y"}, {"y"}, {"y"}, {"y"}})

	res := Matcher{}.Match(&l, []catalog.Template{tmpl})
	if !res.Matched || res.TemplateID != "t1" {
		t.Fatalf("result = %+v", res)
	}
	if res.Name() != "t1" {
		t.Errorf("Name() = %q", res.Name())
	}
	if l.Blocks[0].HasAnnotation() {
		t.Error("block 0 should stay unannotated")
	}
	if got := l.Blocks[1].AnnotationText(); got != "totals" {
		t.Errorf("block 1 = %q, want totals", got)
	}
}

func TestMatchThreeBlocksNoMatch(t *testing.T) {
	tmpl := scenarioTemplate(t, "t1", "monthly")
	l := detect(t, [][]string{{"a"}, {""}, {"b"}, {""}, {"c"}})

	res := Matcher{}.Match(&l, []catalog.Template{tmpl})
	if res.Matched || res.TemplateID != "" || res.Name() != "" {
		t.Errorf("result = %+v, want no match", res)
	}
	if l.Annotated() != 0 {
		t.Error("layout was annotated without a match")
	}
}

func TestMatchFirstWins(t *testing.T) {
	first := scenarioTemplate(t, "t1", "first")
	second := scenarioTemplate(t, "t2", "second")
	second.Layout.Blocks[1].SetAnnotation("other")
	three := catalog.Template{ID: "t0", Layout: detect(t, [][]string{{"a"}, {""}, {"b"}, {""}, {"c"}})}

	l := detect(t, [][]string{{"a"}, {""}, {"b"}})
	res := Matcher{}.Match(&l, []catalog.Template{three, first, second})

	if res.TemplateID != "t1" || res.Name() != "first" {
		t.Errorf("result = %+v, want t1", res)
	}
	if got := l.Blocks[1].AnnotationText(); got != "totals" {
		t.Errorf("block 1 = %q, want the first match's label", got)
	}
}

func TestMatchByShape(t *testing.T) {
	tmpl := scenarioTemplate(t, "t1", "")
	l := detect(t, [][]string{{"x"}, {""}, {"y"}})

	if res := (Matcher{Mode: layout.ByShape}).Match(&l, []catalog.Template{tmpl}); res.Matched {
		t.Error("different block heights should not match by shape")
	}
	if res := (Matcher{}).Match(&l, []catalog.Template{tmpl}); !res.Matched {
		t.Error("same count should match by count")
	}
}

func TestMatchNoTemplates(t *testing.T) {
	l := detect(t, [][]string{{"x"}})
	if res := (Matcher{}).Match(&l, nil); res.Matched {
		t.Error("matched with no templates")
	}
}

func TestRun(t *testing.T) {
	items := []Item{
		{Filename: "ok.csv"},
		{Filename: "bad.csv"},
		{Filename: "panics.csv"},
		{Filename: "nomatch.csv"},
	}
	boom := errors.New("cannot read grid")

	outcomes := Matcher{}.Run(context.Background(), items, func(ctx context.Context, it Item) (string, Result, error) {
		switch it.Filename {
		case "ok.csv":
			return "f1", Result{TemplateID: "t1", Matched: true}, nil
		case "bad.csv":
			return "f2", Result{}, boom
		case "panics.csv":
			panic("corrupt workbook")
		default:
			return "f4", Result{}, nil
		}
	})

	if len(outcomes) != len(items) {
		t.Fatalf("got %d outcomes, want %d", len(outcomes), len(items))
	}
	for i, o := range outcomes {
		if o.Filename != items[i].Filename {
			t.Errorf("outcome %d is %s, want input order", i, o.Filename)
		}
	}
	if outcomes[0].Err != nil || !outcomes[0].Result.Matched || outcomes[0].FileID != "f1" {
		t.Errorf("ok outcome = %+v", outcomes[0])
	}
	if !errors.Is(outcomes[1].Err, boom) {
		t.Errorf("bad outcome err = %v", outcomes[1].Err)
	}
	if !sberrors.Is(outcomes[2].Err, sberrors.ErrCodeInternal) {
		t.Errorf("panic outcome err = %v", outcomes[2].Err)
	}
	if outcomes[3].Err != nil || outcomes[3].Result.Matched {
		t.Errorf("nomatch outcome = %+v", outcomes[3])
	}

	matched, failed := Summary(outcomes)
	if matched != 1 || failed != 2 {
		t.Errorf("Summary = %d matched, %d failed", matched, failed)
	}
}

func TestRunSkipsUnreadableItems(t *testing.T) {
	readErr := errors.New("unexpected EOF")
	items := []Item{
		{Filename: "truncated.xlsx", Err: readErr},
		{Filename: "ok.csv"},
	}

	var called []string
	outcomes := Matcher{}.Run(context.Background(), items, func(ctx context.Context, it Item) (string, Result, error) {
		called = append(called, it.Filename)
		return "f1", Result{}, nil
	})

	if len(called) != 1 || called[0] != "ok.csv" {
		t.Errorf("fn called for %v, want only ok.csv", called)
	}
	if !errors.Is(outcomes[0].Err, readErr) || outcomes[0].FileID != "" {
		t.Errorf("unreadable outcome = %+v", outcomes[0])
	}
	if outcomes[1].Err != nil || outcomes[1].FileID != "f1" {
		t.Errorf("ok outcome = %+v", outcomes[1])
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	outcomes := Matcher{}.Run(ctx, []Item{{Filename: "a"}, {Filename: "b"}}, func(context.Context, Item) (string, Result, error) {
		calls++
		return "", Result{}, nil
	})
	if calls != 0 {
		t.Errorf("fn called %d times after cancel", calls)
	}
	for _, o := range outcomes {
		if !errors.Is(o.Err, context.Canceled) {
			t.Errorf("%s err = %v", o.Filename, o.Err)
		}
	}
}

func TestOutcomeString(t *testing.T) {
	tests := []struct {
		o    Outcome
		want string
	}{
		{Outcome{Filename: "a.csv", Result: Result{TemplateID: "t1", DisplayName: "monthly", Matched: true}}, "a.csv: monthly"},
		{Outcome{Filename: "b.csv"}, "b.csv: no match"},
		{Outcome{Filename: "c.csv", Err: sberrors.InvalidInput("grid has no rows")}, "c.csv: error: grid has no rows"},
	}
	for _, tt := range tests {
		if got := tt.o.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
