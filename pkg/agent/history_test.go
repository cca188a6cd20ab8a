package agent

import (
	"testing"

	"github.com/kadirpekel/roshni/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeStripsOrphanToolMessage(t *testing.T) {
	in := []llm.Message{
		{Role: "user", Content: "hi"},
		{Role: "tool", Content: "leftover", ToolCallID: "call_x"},
	}
	out := Sanitize(in)
	require.NoError(t, Validate(out))
	assert.Len(t, out, 1)
}

func TestSanitizeStripsOrphanAssistantToolCalls(t *testing.T) {
	in := []llm.Message{
		{Role: "assistant", Content: "", ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "echo"}}},
		{Role: "user", Content: "next"},
	}
	out := Sanitize(in)
	require.NoError(t, Validate(out))
	assert.Len(t, out, 1)
	assert.Equal(t, "user", out[0].Role)
}

func TestSanitizeInjectsMissingToolResult(t *testing.T) {
	in := []llm.Message{
		{Role: "assistant", Content: "", ToolCalls: []llm.ToolCall{
			{ID: "call_1", Name: "echo"},
			{ID: "call_2", Name: "echo"},
		}},
		{Role: "tool", Content: "only call_1 answered", ToolCallID: "call_1"},
	}
	out := Sanitize(in)
	require.NoError(t, Validate(out))
	require.Len(t, out, 3)
	assert.Equal(t, "call_2", out[2].ToolCallID)
	assert.Equal(t, interruptedToolResult, out[2].Content)
}

func TestSanitizeReordersScatteredToolResults(t *testing.T) {
	in := []llm.Message{
		{Role: "assistant", Content: "", ToolCalls: []llm.ToolCall{
			{ID: "call_1", Name: "echo"},
			{ID: "call_2", Name: "echo"},
		}},
		{Role: "user", Content: "interjected"},
		{Role: "tool", Content: "r2", ToolCallID: "call_2"},
		{Role: "tool", Content: "r1", ToolCallID: "call_1"},
	}
	out := Sanitize(in)
	require.NoError(t, Validate(out))
	require.Len(t, out, 4)
	assert.Equal(t, "call_1", out[1].ToolCallID)
	assert.Equal(t, "call_2", out[2].ToolCallID)
	assert.Equal(t, "user", out[3].Role)
}

func TestTrimNeverOrphansToolSequence(t *testing.T) {
	messages := []llm.Message{
		{Role: "user", Content: "a"},
		{Role: "assistant", Content: "", ToolCalls: []llm.ToolCall{
			{ID: "call_1", Name: "echo"}, {ID: "call_2", Name: "echo"},
		}},
		{Role: "tool", Content: "r1", ToolCallID: "call_1"},
		{Role: "tool", Content: "r2", ToolCallID: "call_2"},
		{Role: "assistant", Content: "done"},
	}

	// A straight cut to 2 would land mid tool-sequence; Trim must extend
	// the window backwards to keep it whole.
	trimmed := Trim(messages, 2)
	require.NoError(t, Validate(trimmed))
}

func TestValidateCatchesOrphanToolMessage(t *testing.T) {
	bad := []llm.Message{{Role: "tool", Content: "x", ToolCallID: "call_1"}}
	assert.Error(t, Validate(bad))
}
