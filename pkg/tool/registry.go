package tool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kadirpekel/roshni/pkg/registry"
)

// Registry names the tools an agent is allowed to resolve. A project's
// allowed-tools allowlist filters List() at call sites rather
// than restricting what's registered, so the same Registry can serve every
// project in a process.
type Registry struct {
	base *registry.BaseRegistry[Definition]
}

// NewRegistry returns an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{base: registry.NewBaseRegistry[Definition]()}
}

// Register names a tool definition.
func (r *Registry) Register(d Definition) error {
	if err := r.base.Register(d.Name, d); err != nil {
		return fmt.Errorf("tool registry: %w", err)
	}
	return nil
}

// Get resolves a tool by name.
func (r *Registry) Get(name string) (Definition, bool) {
	return r.base.Get(name)
}

// List returns every registered tool definition.
func (r *Registry) List() []Definition {
	return r.base.List()
}

// Allowed filters List() down to the names in allow. A nil or empty allow
// list means every registered tool is offered; a nil Registry offers none.
func (r *Registry) Allowed(allow []string) []Definition {
	if r == nil {
		return nil
	}
	if len(allow) == 0 {
		return r.base.List()
	}
	set := make(map[string]bool, len(allow))
	for _, name := range allow {
		set[name] = true
	}
	out := make([]Definition, 0, len(allow))
	for _, d := range r.base.List() {
		if set[d.Name] {
			out = append(out, d)
		}
	}
	return out
}

// RunCall executes one tool call with no retry. Unknown tools and
// permanent failures both come back as a Result whose Error field holds
// the text the agent folds straight into the conversation as a tool-result
// message.
func (r *Registry) RunCall(ctx context.Context, call Call) Result {
	def, ok := r.Get(call.Name)
	if !ok {
		return Result{Error: fmt.Sprintf("Unknown tool: %s", call.Name)}
	}
	if def.Run == nil {
		return Result{Error: fmt.Sprintf("Error: %s has no implementation", call.Name)}
	}
	res, err := def.Run(ctx, call.Args)
	if err != nil {
		return Result{Error: fmt.Sprintf("Error: %s failed: %s", call.Name, err.Error())}
	}
	return res
}

// CallWithRetry wraps RunCall with exponential backoff on TransientError,
// up to maxAttempts total tries. A non-transient error is not retried.
func (r *Registry) CallWithRetry(ctx context.Context, call Call, maxAttempts int, baseDelay time.Duration) Result {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	def, ok := r.Get(call.Name)
	if !ok {
		return Result{Error: fmt.Sprintf("Unknown tool: %s", call.Name)}
	}
	if def.Run == nil {
		return Result{Error: fmt.Sprintf("Error: %s has no implementation", call.Name)}
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		res, err := def.Run(ctx, call.Args)
		if err == nil {
			return res
		}
		lastErr = err

		var transient *TransientError
		if !errors.As(err, &transient) {
			break
		}
		if attempt < maxAttempts-1 {
			delay := baseDelay * time.Duration(1<<attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return Result{Error: fmt.Sprintf("Error: %s failed: %s", call.Name, ctx.Err())}
			}
		}
	}
	return Result{Error: fmt.Sprintf("Error: %s failed: %s", call.Name, lastErr.Error())}
}
