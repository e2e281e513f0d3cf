package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestDebugHooks(t *testing.T) {
	var buf bytes.Buffer
	h := debugHooks{logger: newLogger(&buf, log.DebugLevel)}
	ctx := context.Background()

	h.OnDetect(ctx, 5, 2, time.Millisecond)
	h.OnMatch(ctx, "march.xlsx", "monthly", true)
	h.OnMigrate(ctx, "template", 0)

	out := buf.String()
	for _, want := range []string{"rows=5", "file=march.xlsx", "from_version=0"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
