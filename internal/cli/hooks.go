package cli

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/sheetblocks/pkg/observability"
)

// debugHooks traces pipeline and store events to the CLI logger.
// They are registered only when debug logging is on.
type debugHooks struct {
	logger *log.Logger
}

var (
	_ observability.PipelineHooks = debugHooks{}
	_ observability.StoreHooks    = debugHooks{}
)

func registerDebugHooks(l *log.Logger) {
	h := debugHooks{logger: l.WithPrefix("trace")}
	observability.SetPipelineHooks(h)
	observability.SetStoreHooks(h)
}

func (h debugHooks) OnDetect(_ context.Context, rows, blocks int, d time.Duration) {
	h.logger.Debug("detect", "rows", rows, "blocks", blocks, "took", d)
}

func (h debugHooks) OnMatch(_ context.Context, filename, templateID string, matched bool) {
	h.logger.Debug("match", "file", filename, "template", templateID, "matched", matched)
}

func (h debugHooks) OnBatchComplete(_ context.Context, files, matched, failed int, d time.Duration) {
	h.logger.Debug("batch", "files", files, "matched", matched, "failed", failed, "took", d)
}

func (h debugHooks) OnRender(_ context.Context, format string, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("render", "format", format, "took", d, "error", err)
		return
	}
	h.logger.Debug("render", "format", format, "took", d)
}

func (h debugHooks) OnLayoutHit(context.Context)  { h.logger.Debug("layout cache hit") }
func (h debugHooks) OnLayoutMiss(context.Context) { h.logger.Debug("layout cache miss") }

func (h debugHooks) OnWrite(_ context.Context, kind string, size int) {
	h.logger.Debug("write", "kind", kind, "bytes", size)
}

func (h debugHooks) OnMigrate(_ context.Context, kind string, from int) {
	h.logger.Debug("migrated record", "kind", kind, "from_version", from)
}
