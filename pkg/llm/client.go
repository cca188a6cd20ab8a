package llm

import "context"

// Message is one entry in the list sent to an LLM call. Role is one of
// "system", "user", "assistant", "tool".
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is one function invocation the model requested.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolSchema describes one tool the model may call, in the shape providers
// expect (JSON Schema parameters).
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Usage reports token accounting for one call, when the provider returns it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the normalized result of one LLM call.
type Response struct {
	Text      string     `json:"text"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     Usage      `json:"usage"`
}

// Client is the oracle interface the agent calls. Implementations raise one
// of the sentinel error types in errors.go — that is the contract every
// implementation must honor, and the agent's recovery policy dispatches
// on it.
type Client interface {
	// Generate performs one (non-streaming) call.
	Generate(ctx context.Context, messages []Message, tools []ToolSchema) (Response, error)

	// ModelName returns the wire model name this client is configured for.
	ModelName() string

	// Provider returns the short provider family name ("anthropic",
	// "openai", "ollama", ...), used for circuit-breaker service keys and
	// catalog lookups.
	Provider() string

	// Close releases any held resources (idle connections, etc).
	Close() error
}
