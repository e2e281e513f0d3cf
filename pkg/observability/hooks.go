// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about detection, template matching, storage and HTTP
// traffic.
//
// The package uses a simple hooks pattern: hook interfaces per event
// category, no-op default implementations, and a registry that main fills
// in at startup. Libraries only ever call the registry.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetPipelineHooks(&myPipelineHooks{})
//	    observability.SetStoreHooks(&myStoreHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	start := time.Now()
//	l := layout.Detect(g)
//	observability.Pipeline().OnDetect(ctx, g.Height(), len(l.Blocks), time.Since(start))
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Pipeline Hooks
// =============================================================================

// PipelineHooks receives events from the upload/match pipeline.
type PipelineHooks interface {
	// OnDetect records one block segmentation.
	OnDetect(ctx context.Context, rows, blocks int, duration time.Duration)

	// OnMatch records the outcome of matching one file against the
	// template catalog. templateID is empty when nothing matched.
	OnMatch(ctx context.Context, filename, templateID string, matched bool)

	// OnBatchComplete records a finished batch.
	OnBatchComplete(ctx context.Context, files, matched, failed int, duration time.Duration)

	// OnRender records a layout image render.
	OnRender(ctx context.Context, format string, duration time.Duration, err error)
}

// =============================================================================
// Store Hooks
// =============================================================================

// StoreHooks receives events from the layout and template stores.
type StoreHooks interface {
	// OnLayoutHit records a stored layout being reused.
	OnLayoutHit(ctx context.Context)

	// OnLayoutMiss records a layout that had to be detected.
	OnLayoutMiss(ctx context.Context)

	// OnWrite records a record write. kind is "upload", "layout",
	// "template" or "name_index".
	OnWrite(ctx context.Context, kind string, size int)

	// OnMigrate records a legacy record upgraded on load.
	OnMigrate(ctx context.Context, kind string, fromVersion int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from the API server.
type HTTPHooks interface {
	// OnRequest records an incoming request.
	OnRequest(ctx context.Context, method, route string)

	// OnResponse records a completed response.
	OnResponse(ctx context.Context, method, route string, statusCode int, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnDetect(context.Context, int, int, time.Duration)             {}
func (NoopPipelineHooks) OnMatch(context.Context, string, string, bool)                 {}
func (NoopPipelineHooks) OnBatchComplete(context.Context, int, int, int, time.Duration) {}
func (NoopPipelineHooks) OnRender(context.Context, string, time.Duration, error)        {}

// NoopStoreHooks is a no-op implementation of StoreHooks.
type NoopStoreHooks struct{}

func (NoopStoreHooks) OnLayoutHit(context.Context)            {}
func (NoopStoreHooks) OnLayoutMiss(context.Context)           {}
func (NoopStoreHooks) OnWrite(context.Context, string, int)   {}
func (NoopStoreHooks) OnMigrate(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, int, time.Duration) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	pipelineHooks PipelineHooks = NoopPipelineHooks{}
	storeHooks    StoreHooks    = NoopStoreHooks{}
	httpHooks     HTTPHooks     = NoopHTTPHooks{}
	hooksMu       sync.RWMutex
)

// SetPipelineHooks registers custom pipeline hooks.
// This should be called once at application startup.
func SetPipelineHooks(h PipelineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		pipelineHooks = h
	}
}

// SetStoreHooks registers custom store hooks.
func SetStoreHooks(h StoreHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		storeHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return pipelineHooks
}

// Store returns the registered store hooks.
func Store() StoreHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return storeHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	pipelineHooks = NoopPipelineHooks{}
	storeHooks = NoopStoreHooks{}
	httpHooks = NoopHTTPHooks{}
}
