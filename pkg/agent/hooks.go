package agent

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/kadirpekel/roshni/pkg/circuitbreaker"
	"github.com/kadirpekel/roshni/pkg/tool"
)

// Hook runs after a chat response is returned. Hooks never affect the
// response already sent to the caller — failures and saturation are both
// logged or silently dropped.
type Hook interface {
	Run(ctx context.Context, message, response string, calls []tool.Call, channel string)
}

// HookFunc adapts a plain function to Hook.
type HookFunc func(ctx context.Context, message, response string, calls []tool.Call, channel string)

func (f HookFunc) Run(ctx context.Context, message, response string, calls []tool.Call, channel string) {
	f(ctx, message, response, calls, channel)
}

// HookRunner submits hooks to a process-wide bounded semaphore so at most
// N run concurrently; a hook that can't acquire a slot is dropped rather
// than queued (at-most-once best-effort).
type HookRunner struct {
	sem *semaphore.Weighted
	log *slog.Logger
}

// NewHookRunner returns a runner with slots concurrent hook executions.
func NewHookRunner(slots int64, log *slog.Logger) *HookRunner {
	if slots <= 0 {
		slots = 4
	}
	return &HookRunner{sem: semaphore.NewWeighted(slots), log: log}
}

// Submit tries to run hook in its own goroutine; drops it if no slot is
// free.
func (r *HookRunner) Submit(ctx context.Context, hook Hook, message, response string, calls []tool.Call, channel string) {
	if !r.sem.TryAcquire(1) {
		if r.log != nil {
			r.log.Warn("after-chat hook dropped: no free slot")
		}
		return
	}
	go func() {
		defer r.sem.Release(1)
		defer func() {
			if rec := recover(); rec != nil && r.log != nil {
				r.log.Warn("after-chat hook panicked", "recover", rec)
			}
		}()
		hook.Run(ctx, message, response, calls, channel)
	}()
}

// MetricsHook records one CircuitBreaker outcome per chat: a failure when
// the chat response text begins with "Error:", a success otherwise. The
// individual tool results of the turn are not inspected.
type MetricsHook struct {
	Breaker *circuitbreaker.CircuitBreaker
	Service string
}

func (h MetricsHook) Run(ctx context.Context, message, response string, calls []tool.Call, channel string) {
	if h.Breaker == nil {
		return
	}
	h.Breaker.Record(h.Service, !strings.HasPrefix(response, "Error:"), 0)
}

// MemoryExtractor is consulted by MemoryHook to decide whether the user
// message matches a save-worthy pattern; kept external so projects can
// supply their own trigger vocabulary without pkg/agent depending on a
// concrete memory store, since concrete tool implementations are out of
// scope here.
type MemoryExtractor interface {
	Matches(message string) bool
	Save(ctx context.Context, message string) error
}

// MemoryHook extracts memory-worthy facts from the user message when a
// trigger matches and no save_memory tool call already ran this turn.
type MemoryHook struct {
	Extractor MemoryExtractor
	Log       *slog.Logger
}

func (h MemoryHook) Run(ctx context.Context, message, response string, calls []tool.Call, channel string) {
	if h.Extractor == nil {
		return
	}
	for _, c := range calls {
		if c.Name == "save_memory" {
			return
		}
	}
	if !h.Extractor.Matches(message) {
		return
	}
	if err := h.Extractor.Save(ctx, message); err != nil && h.Log != nil {
		h.Log.Warn("memory extraction failed", "error", err)
	}
}
