package agent

import (
	"context"
	"testing"

	"github.com/kadirpekel/roshni/pkg/llm"
	"github.com/kadirpekel/roshni/pkg/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedClient returns its configured responses in order, one per call.
type scriptedClient struct {
	name      string
	responses []llm.Response
	errs      []error
	calls     int
}

func (c *scriptedClient) Generate(ctx context.Context, messages []llm.Message, tools []llm.ToolSchema) (llm.Response, error) {
	i := c.calls
	c.calls++
	var err error
	if i < len(c.errs) {
		err = c.errs[i]
	}
	var resp llm.Response
	if i < len(c.responses) {
		resp = c.responses[i]
	}
	return resp, err
}

func (c *scriptedClient) ModelName() string { return c.name }
func (c *scriptedClient) Provider() string  { return "test" }
func (c *scriptedClient) Close() error      { return nil }

func writeThingRegistry() *tool.Registry {
	reg := tool.NewRegistry()
	_ = reg.Register(tool.Definition{
		Name:       "write_thing",
		Permission: tool.PermissionWrite,
		Run: func(ctx context.Context, args map[string]any) (tool.Result, error) {
			text, _ := args["text"].(string)
			return tool.Result{Content: "Wrote: " + text}, nil
		},
	})
	return reg
}

func TestToolLoopWithApproval(t *testing.T) {
	client := &scriptedClient{
		name: "primary",
		responses: []llm.Response{
			{ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "write_thing", Arguments: map[string]any{"text": "hello"}}}},
			{Text: "All done."},
		},
	}

	a := New(Config{
		Tools: writeThingRegistry(),
		Recovery: RecoveryConfig{
			Profiles: []AuthProfile{{Name: "primary", Client: client}},
		},
	})

	first, err := a.Chat(context.Background(), "Save hello", ChatOptions{})
	require.NoError(t, err)
	assert.Contains(t, first, "Approval required")

	second, err := a.Chat(context.Background(), "approve", ChatOptions{})
	require.NoError(t, err)
	assert.Equal(t, "All done.", second)

	msgs := a.History().Messages()
	foundPair := false
	for i, m := range msgs {
		if m.Role == "assistant" && len(m.ToolCalls) == 1 && m.ToolCalls[0].ID == "call_1" {
			require.Less(t, i+1, len(msgs))
			next := msgs[i+1]
			assert.Equal(t, "tool", next.Role)
			assert.Equal(t, "call_1", next.ToolCallID)
			assert.Equal(t, "Wrote: hello", next.Content)
			foundPair = true
		}
	}
	assert.True(t, foundPair, "expected assistant-with-tool_calls immediately followed by its tool result")
}

func TestToolLoopDenyInjectsErrorResult(t *testing.T) {
	client := &scriptedClient{
		responses: []llm.Response{
			{ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "write_thing", Arguments: map[string]any{"text": "x"}}}},
			{Text: "ok"},
		},
	}
	a := New(Config{
		Tools:    writeThingRegistry(),
		Recovery: RecoveryConfig{Profiles: []AuthProfile{{Client: client}}},
	})

	_, err := a.Chat(context.Background(), "do it", ChatOptions{})
	require.NoError(t, err)
	resp, err := a.Chat(context.Background(), "deny", ChatOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)

	msgs := a.History().Messages()
	var toolMsg *llm.Message
	for i := range msgs {
		if msgs[i].Role == "tool" {
			toolMsg = &msgs[i]
		}
	}
	require.NotNil(t, toolMsg)
	assert.Contains(t, toolMsg.Content, "denied by user")
}

func TestFallbackOnRateLimit(t *testing.T) {
	primary := &scriptedClient{
		name: "gpt-4o-mini",
		errs: []error{&llm.RateLimitError{Provider: "openai", Message: "slow down"}},
	}
	fallback := &scriptedClient{
		name:      "deepseek-chat",
		responses: []llm.Response{{Text: "Fallback OK"}},
	}

	a := New(Config{
		Tools: tool.NewRegistry(),
		Recovery: RecoveryConfig{
			Profiles: []AuthProfile{{Name: "primary", Client: primary}},
			Fallback: fallback,
		},
	})

	resp, err := a.Chat(context.Background(), "hello", ChatOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Fallback OK", resp)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}
