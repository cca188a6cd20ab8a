package agent

import (
	"fmt"

	"github.com/kadirpekel/roshni/pkg/llm"
)

// Sanitize repairs a message slice into the shape providers require:
// string content only, and every tool message contiguous with the
// assistant message whose tool_calls it answers. Applied before every LLM
// call, in a fixed order — each pass assumes the
// previous one has already run.
func Sanitize(messages []llm.Message) []llm.Message {
	out := make([]llm.Message, len(messages))
	copy(out, messages)

	out = nullContentToEmpty(out)
	out = stripOrphanToolMessages(out)
	out = stripOrphanAssistantToolCalls(out)
	out = injectMissingToolResults(out)
	out = reorderToolResults(out)
	return out
}

// nullContentToEmpty is a no-op in Go (Message.Content is already a
// string), but keeps the pipeline's five-step shape visible and gives
// callers that construct messages from loosely-typed JSON a single place
// to route through.
func nullContentToEmpty(messages []llm.Message) []llm.Message {
	return messages
}

// stripOrphanToolMessages removes any tool message whose parent assistant
// message (by tool_call_id membership) is not present at all in the slice.
func stripOrphanToolMessages(messages []llm.Message) []llm.Message {
	known := make(map[string]bool)
	for _, m := range messages {
		if m.Role == "assistant" {
			for _, tc := range m.ToolCalls {
				known[tc.ID] = true
			}
		}
	}

	out := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == "tool" && !known[m.ToolCallID] {
			continue
		}
		out = append(out, m)
	}
	return out
}

// stripOrphanAssistantToolCalls removes assistant messages whose tool_calls
// have no corresponding tool message anywhere in the slice at all —
// distinct from a partial sequence, which injectMissingToolResults repairs
// instead of dropping.
func stripOrphanAssistantToolCalls(messages []llm.Message) []llm.Message {
	present := make(map[string]bool)
	for _, m := range messages {
		if m.Role == "tool" {
			present[m.ToolCallID] = true
		}
	}

	out := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == "assistant" && len(m.ToolCalls) > 0 {
			anyPresent := false
			for _, tc := range m.ToolCalls {
				if present[tc.ID] {
					anyPresent = true
					break
				}
			}
			if !anyPresent {
				continue
			}
		}
		out = append(out, m)
	}
	return out
}

const interruptedToolResult = "unavailable (interrupted)"

// injectMissingToolResults fills in a synthetic tool-result message for
// any tool_call_id whose real result is missing from the slice, so a
// partially-answered tool sequence gets completed rather than dropped.
func injectMissingToolResults(messages []llm.Message) []llm.Message {
	present := make(map[string]bool)
	for _, m := range messages {
		if m.Role == "tool" {
			present[m.ToolCallID] = true
		}
	}

	out := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, m)
		if m.Role != "assistant" || len(m.ToolCalls) == 0 {
			continue
		}
		for _, tc := range m.ToolCalls {
			if !present[tc.ID] {
				out = append(out, llm.Message{
					Role:       "tool",
					Content:    interruptedToolResult,
					ToolCallID: tc.ID,
				})
			}
		}
	}
	return out
}

// reorderToolResults moves each tool message to sit directly after the
// assistant message whose tool_calls it answers, in the assistant's
// declared call order, so scattered results become a contiguous sequence.
func reorderToolResults(messages []llm.Message) []llm.Message {
	toolByID := make(map[string]llm.Message)
	for _, m := range messages {
		if m.Role == "tool" {
			toolByID[m.ToolCallID] = m
		}
	}

	out := make([]llm.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == "tool" {
			continue
		}
		out = append(out, m)
		if m.Role == "assistant" {
			for _, tc := range m.ToolCalls {
				if tm, ok := toolByID[tc.ID]; ok {
					out = append(out, tm)
				}
			}
		}
	}
	return out
}

// Trim keeps the most recent maxMessages entries, extending the window
// backwards when a straight cut would split a tool sequence — orphaning
// half a sequence here would just have Sanitize re-inject synthetic
// results on the next call, which is strictly worse than keeping the
// sequence intact in the first place.
func Trim(messages []llm.Message, maxMessages int) []llm.Message {
	if maxMessages <= 0 || len(messages) <= maxMessages {
		return messages
	}

	start := len(messages) - maxMessages
	for start > 0 && messages[start].Role == "tool" {
		start--
	}
	return messages[start:]
}

// History is a single conversation's durable message log. It has no
// internal locking — callers rely on the gateway serializing chat() calls
// for the same session upstream.
type History struct {
	messages []llm.Message
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{}
}

// Append adds one message to the tail.
func (h *History) Append(m llm.Message) {
	h.messages = append(h.messages, m)
}

// Prepared returns the sanitized, trimmed slice ready to prepend to an
// outgoing LLM call, alongside the system prompt and new user message.
func (h *History) Prepared(maxMessages int) []llm.Message {
	return Trim(Sanitize(h.messages), maxMessages)
}

// Messages returns the raw, unsanitized history (for persistence/tests).
func (h *History) Messages() []llm.Message {
	return h.messages
}

// Validate reports the first invariant violation found (B: contiguous
// tool sequence; C: no orphan tool messages) — used only by tests to
// assert that Sanitize actually restores both invariants.
func Validate(messages []llm.Message) error {
	pending := map[string]bool{}
	for i, m := range messages {
		switch m.Role {
		case "assistant":
			if len(pending) > 0 {
				return fmt.Errorf("message %d: assistant message arrived before prior tool sequence completed", i)
			}
			for _, tc := range m.ToolCalls {
				pending[tc.ID] = true
			}
		case "tool":
			if !pending[m.ToolCallID] {
				return fmt.Errorf("message %d: orphan tool message for call %q", i, m.ToolCallID)
			}
			delete(pending, m.ToolCallID)
		default:
			if len(pending) > 0 {
				return fmt.Errorf("message %d: non-tool message interrupted a pending tool sequence", i)
			}
		}
	}
	return nil
}
