package llm

import (
	"fmt"

	"github.com/kadirpekel/roshni/pkg/registry"
)

// Registry names and resolves configured LLM clients, generalized from the
// teacher's llms.LLMRegistry wrapping pkg/registry.BaseRegistry[T].
type Registry struct {
	base *registry.BaseRegistry[Client]
}

// NewRegistry returns an empty client registry.
func NewRegistry() *Registry {
	return &Registry{base: registry.NewBaseRegistry[Client]()}
}

// Register names a configured client so the agent/orchestrator can resolve
// it by name (e.g. "light", "heavy", "thinking", or an explicit provider
// alias).
func (r *Registry) Register(name string, c Client) error {
	if err := r.base.Register(name, c); err != nil {
		return fmt.Errorf("llm registry: %w", err)
	}
	return nil
}

// Get resolves a named client.
func (r *Registry) Get(name string) (Client, bool) {
	return r.base.Get(name)
}

// List returns all registered clients.
func (r *Registry) List() []Client {
	return r.base.List()
}
