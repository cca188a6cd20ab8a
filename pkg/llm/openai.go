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

// openAIClient is a hand-rolled net/http Client for OpenAI's chat
// completions API (function-calling path only — streaming dropped, same
// rationale as pkg/llm/anthropic.go).
type openAIClient struct {
	cfg  config.LLMProviderConfig
	http *http.Client
}

// NewOpenAI builds a Client talking to an OpenAI-compatible chat
// completions endpoint (the Host field also covers Azure/OpenAI-compatible
// proxies that speak the same wire format).
func NewOpenAI(cfg config.LLMProviderConfig) Client {
	return &openAIClient{
		cfg:  cfg,
		http: &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
	}
}

func (c *openAIClient) ModelName() string { return c.cfg.Model }
func (c *openAIClient) Provider() string  { return "openai" }
func (c *openAIClient) Close() error      { return nil }

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
	Tools       []openAITool    `json:"tools,omitempty"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAITool struct {
	Type     string             `json:"type"`
	Function openAIToolFunction `json:"function"`
}

type openAIToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type openAIToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *openAIClient) Generate(ctx context.Context, messages []Message, tools []ToolSchema) (Response, error) {
	req := c.buildRequest(messages, tools)

	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal openai request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Host+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build openai request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, &APIConnectionError{Provider: "openai", Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return Response{}, ClassifyStatus("openai", resp.StatusCode, string(respBody))
	}

	var parsed openAIResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Response{}, fmt.Errorf("decode openai response: %w", err)
	}
	if parsed.Error != nil {
		return Response{}, &APIError{Provider: "openai", StatusCode: resp.StatusCode, Message: parsed.Error.Message}
	}
	if len(parsed.Choices) == 0 {
		return Response{}, &APIError{Provider: "openai", StatusCode: resp.StatusCode, Message: "no choices returned"}
	}

	msg := parsed.Choices[0].Message
	calls, err := decodeOpenAIToolCalls(msg.ToolCalls)
	if err != nil {
		return Response{}, err
	}

	return Response{
		Text:      msg.Content,
		ToolCalls: calls,
		Usage: Usage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}, nil
}

func decodeOpenAIToolCalls(raw []openAIToolCall) ([]ToolCall, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	calls := make([]ToolCall, 0, len(raw))
	for _, tc := range raw {
		var args map[string]any
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("decode tool call arguments for %s: %w", tc.Function.Name, err)
			}
		}
		calls = append(calls, ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}
	return calls, nil
}

func (c *openAIClient) buildRequest(messages []Message, tools []ToolSchema) openAIRequest {
	converted := make([]openAIMessage, 0, len(messages))
	for _, msg := range messages {
		out := openAIMessage{Role: msg.Role, Content: msg.Content, ToolCallID: msg.ToolCallID}
		for _, call := range msg.ToolCalls {
			args, _ := json.Marshal(call.Arguments)
			tc := openAIToolCall{ID: call.ID, Type: "function"}
			tc.Function.Name = call.Name
			tc.Function.Arguments = string(args)
			out.ToolCalls = append(out.ToolCalls, tc)
		}
		converted = append(converted, out)
	}

	req := openAIRequest{
		Model:       c.cfg.Model,
		Messages:    converted,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}
	if len(tools) > 0 {
		req.Tools = make([]openAITool, len(tools))
		for i, t := range tools {
			req.Tools[i] = openAITool{Type: "function", Function: openAIToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			}}
		}
	}
	return req
}
