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

// ollamaClient is a hand-rolled net/http Client for Ollama's /api/chat
// endpoint. Ollama's chat API mirrors OpenAI's tool-calling shape closely
// enough that the request/response types below are a trimmed-down
// variant rather than a fresh design.
type ollamaClient struct {
	cfg  config.LLMProviderConfig
	http *http.Client
}

// NewOllama builds a Client talking to a local or remote Ollama server.
func NewOllama(cfg config.LLMProviderConfig) Client {
	return &ollamaClient{
		cfg:  cfg,
		http: &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
	}
}

func (c *ollamaClient) ModelName() string { return c.cfg.Model }
func (c *ollamaClient) Provider() string  { return "ollama" }
func (c *ollamaClient) Close() error      { return nil }

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options,omitempty"`
	Tools    []ollamaTool    `json:"tools,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaTool struct {
	Type     string             `json:"type"`
	Function ollamaToolFunction `json:"function"`
}

type ollamaToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type ollamaToolCall struct {
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

type ollamaResponse struct {
	Message struct {
		Content   string           `json:"content"`
		ToolCalls []ollamaToolCall `json:"tool_calls"`
	} `json:"message"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error"`
	Done            bool   `json:"done"`
}

func (c *ollamaClient) Generate(ctx context.Context, messages []Message, tools []ToolSchema) (Response, error) {
	req := c.buildRequest(messages, tools)

	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, &APIConnectionError{Provider: "ollama", Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return Response{}, ClassifyStatus("ollama", resp.StatusCode, string(respBody))
	}

	var parsed ollamaResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Response{}, fmt.Errorf("decode ollama response: %w", err)
	}
	if parsed.Error != "" {
		return Response{}, &APIError{Provider: "ollama", StatusCode: resp.StatusCode, Message: parsed.Error}
	}

	var calls []ToolCall
	for _, tc := range parsed.Message.ToolCalls {
		calls = append(calls, ToolCall{Name: tc.Function.Name, Arguments: tc.Function.Arguments})
	}

	return Response{
		Text:      parsed.Message.Content,
		ToolCalls: calls,
		Usage: Usage{
			PromptTokens:     parsed.PromptEvalCount,
			CompletionTokens: parsed.EvalCount,
			TotalTokens:      parsed.PromptEvalCount + parsed.EvalCount,
		},
	}, nil
}

func (c *ollamaClient) buildRequest(messages []Message, tools []ToolSchema) ollamaRequest {
	converted := make([]ollamaMessage, 0, len(messages))
	for _, msg := range messages {
		out := ollamaMessage{Role: msg.Role, Content: msg.Content}
		for _, call := range msg.ToolCalls {
			var tc ollamaToolCall
			tc.Function.Name = call.Name
			tc.Function.Arguments = call.Arguments
			out.ToolCalls = append(out.ToolCalls, tc)
		}
		converted = append(converted, out)
	}

	req := ollamaRequest{
		Model:    c.cfg.Model,
		Messages: converted,
		Stream:   false,
		Options: ollamaOptions{
			Temperature: c.cfg.Temperature,
			NumPredict:  c.cfg.MaxTokens,
		},
	}
	if len(tools) > 0 {
		req.Tools = make([]ollamaTool, len(tools))
		for i, t := range tools {
			req.Tools[i] = ollamaTool{Type: "function", Function: ollamaToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			}}
		}
	}
	return req
}
