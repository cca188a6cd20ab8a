package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kadirpekel/roshni/config"
)

// anthropicClient is a hand-rolled net/http Client for the Anthropic
// Messages API. Streaming and header-driven retry are both left out:
// recovery from a failed call is pkg/agent/recovery.go's job, one level
// up, not this adapter's.
type anthropicClient struct {
	cfg  config.LLMProviderConfig
	http *http.Client
}

// NewAnthropic builds a Client talking to the Anthropic Messages API.
func NewAnthropic(cfg config.LLMProviderConfig) Client {
	return &anthropicClient{
		cfg:  cfg,
		http: &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
	}
}

func (c *anthropicClient) ModelName() string { return c.cfg.Model }
func (c *anthropicClient) Provider() string  { return "anthropic" }
func (c *anthropicClient) Close() error      { return nil }

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
	System      string             `json:"system,omitempty"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
}

type anthropicMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type anthropicContent struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicResponse struct {
	Content []anthropicContent `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *anthropicClient) Generate(ctx context.Context, messages []Message, tools []ToolSchema) (Response, error) {
	req := c.buildRequest(messages, tools)

	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal anthropic request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Host+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build anthropic request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, &APIConnectionError{Provider: "anthropic", Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return Response{}, ClassifyStatus("anthropic", resp.StatusCode, string(respBody))
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Response{}, fmt.Errorf("decode anthropic response: %w", err)
	}
	if parsed.Error != nil {
		return Response{}, &APIError{Provider: "anthropic", StatusCode: resp.StatusCode, Message: parsed.Error.Message}
	}

	var text string
	var calls []ToolCall
	for _, block := range parsed.Content {
		switch block.Type {
		case "text":
			text += block.Text
		case "tool_use":
			calls = append(calls, ToolCall{ID: block.ID, Name: block.Name, Arguments: block.Input})
		}
	}

	return Response{
		Text:      text,
		ToolCalls: calls,
		Usage: Usage{
			PromptTokens:     parsed.Usage.InputTokens,
			CompletionTokens: parsed.Usage.OutputTokens,
			TotalTokens:      parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		},
	}, nil
}

// buildRequest translates role-by-role: system
// messages are pulled into the top-level System field (Anthropic has no
// system role in the message list), tool results become user messages
// carrying a tool_result block, and assistant tool calls become
// tool_use blocks alongside any text.
func (c *anthropicClient) buildRequest(messages []Message, tools []ToolSchema) anthropicRequest {
	var system string
	converted := make([]anthropicMessage, 0, len(messages))

	for _, msg := range messages {
		switch {
		case msg.Role == "system":
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
		case msg.Role == "tool":
			converted = append(converted, anthropicMessage{
				Role: "user",
				Content: []anthropicContent{{
					Type:      "tool_result",
					ToolUseID: msg.ToolCallID,
					Content:   msg.Content,
				}},
			})
		case msg.Role == "assistant" && len(msg.ToolCalls) > 0:
			var blocks []anthropicContent
			if msg.Content != "" {
				blocks = append(blocks, anthropicContent{Type: "text", Text: msg.Content})
			}
			for _, call := range msg.ToolCalls {
				blocks = append(blocks, anthropicContent{Type: "tool_use", ID: call.ID, Name: call.Name, Input: call.Arguments})
			}
			converted = append(converted, anthropicMessage{Role: "assistant", Content: blocks})
		default:
			converted = append(converted, anthropicMessage{Role: msg.Role, Content: msg.Content})
		}
	}

	req := anthropicRequest{
		Model:       c.cfg.Model,
		Messages:    converted,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		System:      system,
	}
	if len(tools) > 0 {
		req.Tools = make([]anthropicTool, len(tools))
		for i, t := range tools {
			req.Tools[i] = anthropicTool{Name: t.Name, Description: t.Description, InputSchema: t.Parameters}
		}
	}
	return req
}
