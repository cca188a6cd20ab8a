// Package agent implements the tool-calling conversation loop: history
// sanitization, approval gating, model selection, recovery/fallback, and
// the advisor/after-chat-hook pipeline around one LLM client.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/kadirpekel/roshni/pkg/budget"
	"github.com/kadirpekel/roshni/pkg/llm"
	"github.com/kadirpekel/roshni/pkg/modelselector"
	"github.com/kadirpekel/roshni/pkg/tool"
)

const defaultMaxIterations = 8

// Config wires everything one Agent needs: its persona, tool surface,
// recovery/fallback policy, model selector, and optional hook/advisor
// pipeline.
type Config struct {
	Persona            string
	MaxIterations      int
	MaxHistoryMessages int

	Tools        *tool.Registry
	AllowedTools []string // empty = every registered tool

	ToolMaxAttempts  int
	ToolRetryBaseDur time.Duration

	Advisors []Advisor
	Hooks    []Hook
	Runner   *HookRunner

	Selector *modelselector.Selector
	Recovery RecoveryConfig
	Budget   *budget.Budget

	Log *slog.Logger
	Now func() time.Time
}

// ChatOptions are the per-call parameters to Chat: message, mode,
// call_type, channel, and an optional max_iterations override.
type ChatOptions struct {
	Mode          string
	CallType      string
	Channel       string
	Think         bool
	ThinkingLevel llm.ThinkingLevel
	MaxIterations int // 0 = use Config.MaxIterations
}

// pendingApproval is the stashed whole-batch tool-call set: the entire
// round's calls are held together, not split into per-tool
// approve/deny.
type pendingApproval struct {
	calls []tool.Call
}

// Agent runs one conversation's tool-calling loop. One Agent per
// conversation/session; callers serialize Chat calls for a given Agent
// (the event gateway already does this upstream).
type Agent struct {
	cfg     Config
	history *History

	mu       sync.Mutex
	pending  *pendingApproval
	steering *string

	toolResultChars int // cumulative, for TaskSignals across the chat() lifetime
}

// New returns an Agent ready to chat.
func New(cfg Config) *Agent {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if cfg.ToolMaxAttempts <= 0 {
		cfg.ToolMaxAttempts = 3
	}
	if cfg.ToolRetryBaseDur <= 0 {
		cfg.ToolRetryBaseDur = 200 * time.Millisecond
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Agent{cfg: cfg, history: NewHistory()}
}

// Steer queues a steering message to be spliced into the next loop
// iteration, prefixed `[STEERING]`.
func (a *Agent) Steer(message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.steering = &message
}

// History exposes the durable message log, e.g. for persistence between
// process restarts.
func (a *Agent) History() *History { return a.history }

func (a *Agent) drainSteering() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.steering == nil {
		return "", false
	}
	msg := *a.steering
	a.steering = nil
	return msg, true
}

// Chat runs up to MaxIterations rounds of the tool loop and returns the
// text shown to the user — either the model's final reply, an
// approval-needed prompt, or a class-routed friendly error string. It
// never returns a raw provider error.
func (a *Agent) Chat(ctx context.Context, message string, opts ChatOptions) (string, error) {
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = a.cfg.MaxIterations
	}

	if resumed, handled := a.maybeResumeApproval(ctx, message); handled {
		return a.runLoop(ctx, "", opts, maxIter, resumed)
	}

	return a.runLoop(ctx, message, opts, maxIter, 0)
}

// maybeResumeApproval checks whether message is an approve/deny reply to a
// stashed pending call set and, if so, executes it inline before the loop
// resumes calling the model. The iteration count already spent resolving
// approval is returned so the caller's remaining budget accounts for it.
func (a *Agent) maybeResumeApproval(ctx context.Context, message string) (spentIterations int, handled bool) {
	a.mu.Lock()
	pending := a.pending
	a.mu.Unlock()
	if pending == nil {
		return 0, false
	}

	decision := strings.ToLower(strings.TrimSpace(message))
	switch decision {
	case "approve":
		for _, call := range pending.calls {
			res := a.cfg.Tools.CallWithRetry(ctx, call, a.cfg.ToolMaxAttempts, a.cfg.ToolRetryBaseDur)
			a.appendToolResult(call, res)
		}
	case "deny":
		for _, call := range pending.calls {
			a.appendToolResult(call, tool.Result{Error: "Error: denied by user"})
		}
	default:
		return 0, false
	}

	a.mu.Lock()
	a.pending = nil
	a.mu.Unlock()
	return 1, true
}

func (a *Agent) appendToolResult(call tool.Call, res tool.Result) {
	content := res.Content
	if res.Error != "" {
		content = res.Error
	}
	a.toolResultChars += len(content)
	a.history.Append(llm.Message{Role: "tool", Content: content, ToolCallID: call.ID})
}

// runLoop is the agent's core chat loop. newMessage is appended once,
// on the first iteration only; spentIterations lets a resumed approval
// count against maxIter.
func (a *Agent) runLoop(ctx context.Context, newMessage string, opts ChatOptions, maxIter, spentIterations int) (string, error) {
	systemPrompt := a.buildSystemPrompt(ctx, newMessage, opts.Channel)
	firstIteration := true
	var calls []tool.Call
	var lastText string

	for iter := spentIterations; iter < maxIter; iter++ {
		if steer, ok := a.drainSteering(); ok {
			a.history.Append(llm.Message{Role: "user", Content: "[STEERING] " + steer})
		}

		outgoing := make([]llm.Message, 0, len(a.history.Messages())+2)
		outgoing = append(outgoing, llm.Message{Role: "system", Content: systemPrompt})
		outgoing = append(outgoing, a.history.Prepared(a.cfg.MaxHistoryMessages)...)
		if firstIteration && newMessage != "" {
			userMsg := llm.Message{Role: "user", Content: newMessage}
			outgoing = append(outgoing, userMsg)
			a.history.Append(userMsg)
		}
		firstIteration = false

		model := a.selectModel(newMessage, opts, iter)
		client := a.clientFor(model)
		resp, friendly := recoveringGenerate(ctx, a.recoveryForClient(client), a.cfg.Budget, outgoing, a.toolSchemas())
		if friendly != "" {
			return friendly, nil
		}
		if a.cfg.Budget != nil {
			a.cfg.Budget.RecordCall(0)
		}

		assistantMsg := llm.Message{Role: "assistant", Content: resp.Text}
		toolCalls := make([]tool.Call, 0, len(resp.ToolCalls))
		for _, tc := range resp.ToolCalls {
			assistantMsg.ToolCalls = append(assistantMsg.ToolCalls, tc)
			toolCalls = append(toolCalls, tool.Call{ID: tc.ID, Name: tc.Name, Args: tc.Arguments})
		}
		a.history.Append(assistantMsg)
		lastText = resp.Text

		if len(toolCalls) == 0 {
			a.fireHooks(ctx, newMessage, lastText, calls, opts.Channel)
			return lastText, nil
		}

		if prompt, needsApproval := a.gateApproval(toolCalls); needsApproval {
			return prompt, nil
		}

		for _, call := range toolCalls {
			res := a.cfg.Tools.CallWithRetry(ctx, call, a.cfg.ToolMaxAttempts, a.cfg.ToolRetryBaseDur)
			a.appendToolResult(call, res)
		}
		calls = append(calls, toolCalls...)
	}

	a.fireHooks(ctx, newMessage, lastText, calls, opts.Channel)
	return lastText, nil
}

// gateApproval holds the whole round's calls together: if any tool in
// this batch requires approval and no outstanding grant exists, none of
// them run this round.
func (a *Agent) gateApproval(calls []tool.Call) (prompt string, needsApproval bool) {
	var names []string
	for _, c := range calls {
		def, ok := a.cfg.Tools.Get(c.Name)
		if ok && def.NeedsApproval() {
			names = append(names, c.Name)
		}
	}
	if len(names) == 0 {
		return "", false
	}

	a.mu.Lock()
	a.pending = &pendingApproval{calls: calls}
	a.mu.Unlock()

	return fmt.Sprintf("Approval required for: %s. Reply \"approve\" or \"deny\".",
		strings.Join(names, ", ")), true
}

func (a *Agent) buildSystemPrompt(ctx context.Context, message, channel string) string {
	header := fmt.Sprintf("CURRENT DATE/TIME: %s", a.cfg.Now().Format(time.RFC3339))
	advice := runAdvisors(ctx, a.cfg.Advisors, a.cfg.Log, message, channel)

	parts := []string{a.cfg.Persona, header}
	if advice != "" {
		parts = append(parts, advice)
	}
	return strings.Join(parts, "\n\n")
}

func (a *Agent) selectModel(message string, opts ChatOptions, iteration int) llm.ModelConfig {
	if a.cfg.Selector == nil {
		return llm.ModelConfig{}
	}
	return a.cfg.Selector.Select(message, modelselector.SelectOptions{
		Mode:          opts.Mode,
		Think:         opts.Think,
		ThinkingLevel: opts.ThinkingLevel,
		Signals: &modelselector.TaskSignals{
			Iteration:       iteration,
			ToolResultChars: a.toolResultChars,
			Channel:         opts.Channel,
		},
	})
}

// clientFor resolves the selected model to the first recovery profile whose
// client reports that model name, or to the first profile when none does.
func (a *Agent) clientFor(model llm.ModelConfig) llm.Client {
	for _, p := range a.cfg.Recovery.Profiles {
		if p.Client != nil && p.Client.ModelName() == model.Name {
			return p.Client
		}
	}
	if len(a.cfg.Recovery.Profiles) > 0 {
		return a.cfg.Recovery.Profiles[0].Client
	}
	return nil
}

// recoveryForClient puts the profile holding the selected client first in
// the rotation; the other profiles keep their configured order.
func (a *Agent) recoveryForClient(client llm.Client) RecoveryConfig {
	cfg := a.cfg.Recovery
	if client == nil || len(cfg.Profiles) == 0 {
		return cfg
	}
	profiles := make([]AuthProfile, 0, len(cfg.Profiles))
	for _, p := range cfg.Profiles {
		if p.Client == client {
			profiles = append(profiles, p)
		}
	}
	for _, p := range cfg.Profiles {
		if p.Client != client {
			profiles = append(profiles, p)
		}
	}
	cfg.Profiles = profiles
	return cfg
}

func (a *Agent) toolSchemas() []llm.ToolSchema {
	defs := a.cfg.Tools.Allowed(a.cfg.AllowedTools)
	out := make([]llm.ToolSchema, 0, len(defs))
	for _, d := range defs {
		out = append(out, llm.ToolSchema{Name: d.Name, Description: d.Description, Parameters: d.Parameters})
	}
	return out
}

func (a *Agent) fireHooks(ctx context.Context, message, response string, calls []tool.Call, channel string) {
	if a.cfg.Runner == nil {
		return
	}
	for _, h := range a.cfg.Hooks {
		a.cfg.Runner.Submit(ctx, h, message, response, calls, channel)
	}
}
