// Package worker dispatches individual project tasks onto fresh,
// short-lived sub-agents, bounded by a process-wide concurrency limit.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/kadirpekel/roshni/pkg/agent"
	"github.com/kadirpekel/roshni/pkg/budget"
	"github.com/kadirpekel/roshni/pkg/workflow"
)

// Recorder appends a workflow event; satisfied by *workflow.Backend.
type Recorder interface {
	Append(projectID string, eventType workflow.EventType, data map[string]any) (workflow.Event, error)
}

// Result is what SpawnWorker always returns — it never propagates a Go
// error out of the dispatch path itself; every failure, including a panic
// recovered mid-task, comes back as a Result instead.
type Result struct {
	TaskID    string
	Success   bool
	Output    string
	Error     string
	Retryable bool
	Attempt   int
}

// AgentFactory builds a fresh sub-agent scoped to one task's allowed-
// tools allowlist. The caller (typically the orchestrator) owns
// persona/model-selector/recovery wiring; SpawnWorker
// passes the owning project's *budget.Budget through on every call so
// the factory can put the same pointer into every spawned Agent's
// Config, which is what makes step 5's per-call accounting happen
// automatically, since Agent.Chat already calls Budget.RecordCall(0)
// per LLM call.
type AgentFactory func(task *workflow.TaskSpec, projectBudget *budget.Budget) *agent.Agent

// ProjectState is the subset of Project state SpawnWorker's pre-check
// needs, small enough to pass by value to avoid importing the full
// orchestrator/workflow package graph into hot-path checks.
type ProjectState struct {
	ID              string
	Paused          bool
	Cancelled       bool
	BudgetExhausted bool
}

// Pool bounds task dispatch concurrency with a weighted semaphore, one
// slot per concurrently executing worker.
type Pool struct {
	sem *semaphore.Weighted
	log *slog.Logger

	events  Recorder
	metrics *Metrics

	wg       sync.WaitGroup
	activeMu sync.Mutex
	active   int
	queued   int
}

// WithMetrics attaches a Metrics reporter; every dispatch afterwards also
// refreshes the pool's active/queued Prometheus gauges.
func (p *Pool) WithMetrics(m *Metrics) *Pool {
	p.metrics = m
	return p
}

// New returns a Pool allowing up to maxConcurrent workers to run at
// once.
func New(maxConcurrent int64, events Recorder, log *slog.Logger) *Pool {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pool{
		sem:    semaphore.NewWeighted(maxConcurrent),
		log:    log,
		events: events,
	}
}

// SpawnWorker executes one task to completion, blocking the caller. The
// orchestrator is expected to call this from its own bounded fan-out
// (e.g. one goroutine per task within a
// phase, gated by errgroup), not concurrently for the same task.
func (p *Pool) SpawnWorker(ctx context.Context, project ProjectState, phase *workflow.Phase, task *workflow.TaskSpec, attempt int, projectBudget *budget.Budget, factory AgentFactory) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = p.fail(project.ID, phase.ID, task, attempt, fmt.Sprintf("worker panic: %v", r))
		}
	}()

	if project.Paused || project.Cancelled || project.BudgetExhausted {
		return Result{TaskID: task.ID, Success: false, Error: "project is paused, cancelled, or budget exhausted", Attempt: attempt}
	}

	p.recordEvent(project.ID, workflow.EventTaskDispatched, map[string]any{
		"phase_id": phase.ID, "task_id": task.ID, "attempt": attempt,
	})

	p.beginQueued()
	err := p.sem.Acquire(ctx, 1)
	p.endQueued()
	if err != nil {
		return p.fail(project.ID, phase.ID, task, attempt, fmt.Sprintf("acquire worker slot: %v", err))
	}
	p.beginActive()
	defer p.endActive()
	defer p.sem.Release(1)

	runCtx := ctx
	var cancel context.CancelFunc
	if task.TimeoutSecs > 0 {
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(task.TimeoutSecs)*time.Second)
		defer cancel()
	}

	subAgent := factory(task, projectBudget)
	prompt := workerPrompt(task)

	output, err := subAgent.Chat(runCtx, prompt, agent.ChatOptions{CallType: "worker"})
	if err != nil {
		reason := err.Error()
		if runCtx.Err() == context.DeadlineExceeded {
			reason = fmt.Sprintf("task timed out after %ds", task.TimeoutSecs)
		}
		return p.fail(project.ID, phase.ID, task, attempt, reason)
	}

	p.recordEvent(project.ID, workflow.EventTaskCompleted, map[string]any{
		"phase_id": phase.ID, "task_id": task.ID, "attempt": attempt,
	})
	return Result{TaskID: task.ID, Success: true, Output: output, Attempt: attempt}
}

func (p *Pool) fail(projectID, phaseID string, task *workflow.TaskSpec, attempt int, reason string) Result {
	retryable := attempt < task.MaxAttempts
	p.recordEvent(projectID, workflow.EventTaskFailed, map[string]any{
		"phase_id": phaseID, "task_id": task.ID, "attempt": attempt,
		"error": reason, "retryable": retryable,
	})
	return Result{TaskID: task.ID, Success: false, Error: reason, Retryable: retryable, Attempt: attempt}
}

func (p *Pool) recordEvent(projectID string, eventType workflow.EventType, data map[string]any) {
	if p.events == nil {
		return
	}
	if _, err := p.events.Append(projectID, eventType, data); err != nil {
		p.log.Warn("worker pool: failed to record event", "type", eventType, "error", err)
	}
}

func (p *Pool) beginActive() {
	p.wg.Add(1)
	p.activeMu.Lock()
	p.active++
	p.metrics.setActive(p.active)
	p.activeMu.Unlock()
}

func (p *Pool) endActive() {
	p.activeMu.Lock()
	p.active--
	p.metrics.setActive(p.active)
	p.activeMu.Unlock()
	p.wg.Done()
}

func (p *Pool) beginQueued() {
	p.activeMu.Lock()
	p.queued++
	p.metrics.setQueued(p.queued)
	p.activeMu.Unlock()
}

func (p *Pool) endQueued() {
	p.activeMu.Lock()
	p.queued--
	p.metrics.setQueued(p.queued)
	p.activeMu.Unlock()
}

// Active reports the number of currently running workers.
func (p *Pool) Active() int {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	return p.active
}

// Drain awaits all currently-running workers with a soft timeout.
// Workers still pending after timeout are logged and left running —
// Drain never cancels in-flight work.
func (p *Pool) Drain(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		p.log.Warn("worker pool drain timed out with workers still running", "active", p.Active())
	}
}

func workerPrompt(task *workflow.TaskSpec) string {
	prompt := "Task: " + task.Description
	if len(task.Inputs) > 0 {
		prompt += "\n\nInputs:"
		for k, v := range task.Inputs {
			prompt += fmt.Sprintf("\n- %s: %v", k, v)
		}
	}
	if len(task.Outputs) > 0 {
		prompt += "\n\nExpected outputs:"
		for k, v := range task.Outputs {
			prompt += fmt.Sprintf("\n- %s: %v", k, v)
		}
	}
	return prompt
}
