// Package orchestrator drives a Project from goal through planning,
// approval, phased execution, and review, on top of pkg/workflow's
// durable event log and pkg/worker's bounded task dispatch.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/roshni/pkg/budget"
	"github.com/kadirpekel/roshni/pkg/llm"
	"github.com/kadirpekel/roshni/pkg/worker"
	"github.com/kadirpekel/roshni/pkg/workflow"
)

// budgetWarningThresholds are the pressure points at which a running
// phase gets a budget.warning event, each firing at most once per
// phase.
var budgetWarningThresholds = []float64{0.5, 0.8, 0.95}

// Dependencies wires an Orchestrator. Planner drafts the initial plan
// and single-phase Advance continuations; Evaluator backs llm_eval
// terminal conditions; Reviewer backs ReviewProjects narrative
// synthesis. All three may point at the same llm.Client.
type Dependencies struct {
	Backend      *workflow.Backend
	Workers      *worker.Pool
	AgentFactory worker.AgentFactory

	Planner   llm.Client
	Evaluator llm.Client
	Reviewer  llm.Client

	Log    *slog.Logger
	Tracer trace.Tracer
}

// Orchestrator is the stateful coordinator for a set of Projects. One
// Orchestrator typically serves an entire process; Projects are
// independent and may run concurrently against it.
type Orchestrator struct {
	backend      *workflow.Backend
	workers      *worker.Pool
	agentFactory worker.AgentFactory

	planner   llm.Client
	evaluator llm.Client
	reviewer  llm.Client

	log    *slog.Logger
	tracer trace.Tracer
}

// New constructs an Orchestrator from Dependencies.
func New(deps Dependencies) *Orchestrator {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = trace.NewNoopTracerProvider().Tracer("orchestrator")
	}
	return &Orchestrator{
		backend:      deps.Backend,
		workers:      deps.Workers,
		agentFactory: deps.AgentFactory,
		planner:      deps.Planner,
		evaluator:    deps.Evaluator,
		reviewer:     deps.Reviewer,
		log:          log,
		tracer:       tracer,
	}
}

// StartProject creates a new Project in the planning state under the
// given id (identity/slug allocation is the caller's responsibility —
// see pkg/project — since an orchestrator has no opinion on whether
// ids come from a registry slug or a legacy sequential counter), drafts
// its initial plan via the Planner, computes the plan hash, and leaves
// it parked in awaiting_approval: starting a project never begins
// executing on its own.
func (o *Orchestrator) StartProject(ctx context.Context, id, goal string, limits budget.Limits, tags []string) (*workflow.Project, error) {
	now := time.Now()
	project := &workflow.Project{
		ID:        id,
		Goal:      goal,
		Tags:      tags,
		Status:    workflow.StatusPlanning,
		Budget:    budget.New(limits),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := o.backend.Append(id, workflow.EventProjectCreated, map[string]any{
		"goal": goal, "tags": tags,
	}); err != nil {
		return nil, err
	}

	phases, conditions := o.generatePlan(ctx, goal)
	project.Phases = phases
	project.TerminalConditions = conditions
	project.PlanHash = workflow.ComputePlanHash(phases, conditions)

	if _, err := o.backend.Append(id, workflow.EventPlanWritten, map[string]any{
		"plan_hash": project.PlanHash,
	}); err != nil {
		return nil, err
	}

	if err := o.transition(project, workflow.StatusAwaitingApproval); err != nil {
		return nil, err
	}
	if err := o.backend.Checkpoint(project); err != nil {
		return nil, err
	}
	return project, nil
}

// generatePlan asks the Planner for a full phase/terminal-condition
// plan, falling back to a single catch-all phase on any call or parse
// failure — planning never blocks a project from starting.
func (o *Orchestrator) generatePlan(ctx context.Context, goal string) ([]*workflow.Phase, []workflow.TerminalCondition) {
	if o.planner == nil {
		return fallbackPlan(goal)
	}

	resp, err := o.planner.Generate(ctx, []llm.Message{
		{Role: "system", Content: planningSystemPrompt},
		{Role: "user", Content: goal},
	}, nil)
	if err != nil {
		o.log.Warn("planner call failed, falling back to single-phase plan", "error", err)
		return fallbackPlan(goal)
	}

	doc, err := parsePlanDoc(resp.Text)
	if err != nil {
		o.log.Warn("planner response unparseable, falling back to single-phase plan", "error", err)
		return fallbackPlan(goal)
	}
	return toPhases(doc.Phases), toTerminalConditions(doc.TerminalConditions)
}

// ApproveAndExecute moves an awaiting_approval Project into execution
// and runs every pending phase to completion, pausing on budget
// exhaustion and failing the project if a phase exhausts its task
// retries.
func (o *Orchestrator) ApproveAndExecute(ctx context.Context, project *workflow.Project) error {
	if project.Status != workflow.StatusAwaitingApproval {
		return fmt.Errorf("orchestrator: approve_and_execute requires status %q, got %q", workflow.StatusAwaitingApproval, project.Status)
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator.approve_and_execute")
	defer span.End()

	if err := o.transition(project, workflow.StatusExecuting); err != nil {
		return err
	}
	return o.runToCompletion(ctx, project)
}

// runToCompletion drives an already-EXECUTING project through its
// remaining phases to REVIEWING/DONE (or PAUSED/FAILED). Shared by
// approve_and_execute and the advance branches that resume execution.
func (o *Orchestrator) runToCompletion(ctx context.Context, project *workflow.Project) error {
	if project.StartedAt == nil {
		now := time.Now()
		project.StartedAt = &now
	}
	if err := o.backend.Checkpoint(project); err != nil {
		return err
	}

	for _, phase := range project.Phases {
		if phase.Status == workflow.PhaseStatusCompleted || phase.Status == workflow.PhaseStatusSkipped {
			continue
		}

		if project.Budget.Exhausted() {
			return o.pauseForBudget(project)
		}
		o.checkBudgetWarnings(project, phase)

		if err := o.runPhase(ctx, project, phase); err != nil {
			if terr := o.transition(project, workflow.StatusFailed); terr != nil {
				o.log.Warn("failed to transition project to failed after phase failure", "error", terr)
			}
			_ = o.backend.Checkpoint(project)
			return err
		}
		if err := o.backend.Checkpoint(project); err != nil {
			return err
		}

		if project.Status == workflow.StatusPaused || project.Status == workflow.StatusCancelled {
			return o.backend.Checkpoint(project)
		}
	}

	if err := o.transition(project, workflow.StatusReviewing); err != nil {
		return err
	}

	allMet, err := o.evaluateTerminalConditions(ctx, project)
	if err != nil {
		return err
	}
	if allMet {
		if err := o.transition(project, workflow.StatusDone); err != nil {
			return err
		}
	}
	return o.backend.Checkpoint(project)
}

// pauseForBudget pauses the project on budget exhaustion (never fails
// it), records budget.exhausted, and leaves a journal entry mentioning
// "budget" for operators skimming the log.
func (o *Orchestrator) pauseForBudget(project *workflow.Project) error {
	if _, err := o.backend.Append(project.ID, workflow.EventBudgetExhausted, map[string]any{
		"cost_used_usd":  project.Budget.Snapshot().CostUsedUSD,
		"llm_calls_used": project.Budget.Snapshot().LLMCallsUsed,
	}); err != nil {
		return err
	}
	message := "Paused: budget exhausted before phase could start"
	project.Journal = append(project.Journal, workflow.JournalEntry{Timestamp: time.Now(), Message: message})
	if _, err := o.backend.Append(project.ID, workflow.EventJournalAppended, map[string]any{"message": message}); err != nil {
		return err
	}
	if err := o.transition(project, workflow.StatusPaused); err != nil {
		return err
	}
	return o.backend.Checkpoint(project)
}

// checkBudgetWarnings fires budget.warning at most once per threshold
// per phase, in ascending order, as pressure crosses 50/80/95%.
func (o *Orchestrator) checkBudgetWarnings(project *workflow.Project, phase *workflow.Phase) {
	pressure := project.Budget.Pressure()
	for _, threshold := range budgetWarningThresholds {
		key := fmt.Sprintf("%.2f", threshold)
		if pressure >= threshold && !phase.WarnedAt(key) {
			phase.MarkWarned(key)
			if _, err := o.backend.Append(project.ID, workflow.EventBudgetWarning, map[string]any{
				"phase_id": phase.ID, "threshold": threshold, "pressure": pressure,
			}); err != nil {
				o.log.Warn("failed to record budget warning event", "error", err)
			}
		}
	}
}

// runPhase fans every pending task of phase out onto the worker pool
// concurrently via errgroup, each task retrying on its own up to
// TaskSpec.MaxAttempts. DependsOn is accepted but not enforced in v1,
// so tasks within a phase are dispatched as one flat wave rather than
// in dependency order.
func (o *Orchestrator) runPhase(ctx context.Context, project *workflow.Project, phase *workflow.Phase) error {
	phase.Status = workflow.PhaseStatusActive
	now := time.Now()
	phase.StartedAt = &now
	if _, err := o.backend.Append(project.ID, workflow.EventPhaseStarted, map[string]any{"phase_id": phase.ID}); err != nil {
		return err
	}

	state := o.projectState(project)

	group, groupCtx := errgroup.WithContext(ctx)
	for _, task := range phase.Tasks {
		task := task
		if task.Status == workflow.PhaseStatusCompleted || task.Status == workflow.PhaseStatusSkipped {
			continue
		}
		group.Go(func() error {
			return o.runTask(groupCtx, state, project.Budget, phase, task)
		})
	}

	var firstTaskErr error
	if err := group.Wait(); err != nil {
		firstTaskErr = err
	}

	if firstTaskErr != nil {
		phase.Status = workflow.PhaseStatusFailed
		if _, err := o.backend.Append(project.ID, workflow.EventPhaseFailed, map[string]any{
			"phase_id": phase.ID, "error": firstTaskErr.Error(),
		}); err != nil {
			return err
		}
		return fmt.Errorf("orchestrator: phase %s failed: %w", phase.ID, firstTaskErr)
	}

	phase.Status = workflow.PhaseStatusCompleted
	completedAt := time.Now()
	phase.CompletedAt = &completedAt
	_, err := o.backend.Append(project.ID, workflow.EventPhaseCompleted, map[string]any{"phase_id": phase.ID})
	return err
}

// runTask retries one task on the worker pool until it succeeds, a
// non-retryable failure occurs, or MaxAttempts is exhausted.
func (o *Orchestrator) runTask(ctx context.Context, state worker.ProjectState, projectBudget *budget.Budget, phase *workflow.Phase, task *workflow.TaskSpec) error {
	var result worker.Result
	for attempt := task.Attempts + 1; attempt <= task.MaxAttempts; attempt++ {
		result = o.workers.SpawnWorker(ctx, state, phase, task, attempt, projectBudget, o.agentFactory)
		task.Attempts = attempt
		if result.Success {
			task.Status = workflow.PhaseStatusCompleted
			task.LastError = ""
			return nil
		}
		task.LastError = result.Error
		if !result.Retryable {
			break
		}
	}
	task.Status = workflow.PhaseStatusFailed
	return fmt.Errorf("task %s: %s", task.ID, task.LastError)
}

func (o *Orchestrator) projectState(project *workflow.Project) worker.ProjectState {
	return worker.ProjectState{
		ID:              project.ID,
		Paused:          project.Status == workflow.StatusPaused,
		Cancelled:       project.Status == workflow.StatusCancelled,
		BudgetExhausted: project.Budget != nil && project.Budget.Exhausted(),
	}
}

// Transition applies a manually-requested status change (e.g. an
// operator pausing or cancelling a project directly, outside the
// run/advance lifecycle), on top of the same transition table every
// other state change goes through. Unlike the internal transition
// helper, it also appends a human-readable journal entry and
// checkpoints, since nothing else in the call chain will.
func (o *Orchestrator) Transition(project *workflow.Project, to workflow.Status) error {
	from := project.Status
	if err := o.transition(project, to); err != nil {
		return err
	}
	message := fmt.Sprintf("Status: %s -> %s", from, to)
	project.Journal = append(project.Journal, workflow.JournalEntry{Timestamp: time.Now(), Message: message})
	if _, err := o.backend.Append(project.ID, workflow.EventJournalAppended, map[string]any{"message": message}); err != nil {
		return err
	}
	return o.backend.Checkpoint(project)
}

// Steer queues a direction change without altering the plan; it
// journals the steering note and records project.steered, leaving
// interpretation to the next phase's sub-agents.
func (o *Orchestrator) Steer(project *workflow.Project, direction string) error {
	message := "Steering: " + direction
	project.Journal = append(project.Journal, workflow.JournalEntry{Timestamp: time.Now(), Message: message})
	if _, err := o.backend.Append(project.ID, workflow.EventJournalAppended, map[string]any{"message": message}); err != nil {
		return err
	}
	if _, err := o.backend.Append(project.ID, workflow.EventProjectSteered, map[string]any{"direction": direction}); err != nil {
		return err
	}
	return o.backend.Checkpoint(project)
}

// Advance continues a project differently depending on where it is:
// DONE/REVIEWING plans and immediately runs one new
// phase; PAUSED resumes execution, optionally carrying the directive
// as a steering note; EXECUTING only injects the directive as
// steering, since tasks already in flight are never interrupted.
// Every other status is rejected.
func (o *Orchestrator) Advance(ctx context.Context, project *workflow.Project, directive string) error {
	switch project.Status {
	case workflow.StatusDone, workflow.StatusReviewing:
		return o.advancePlanAndRun(ctx, project, directive)

	case workflow.StatusPaused:
		if err := o.transition(project, workflow.StatusExecuting); err != nil {
			return err
		}
		if directive != "" {
			if err := o.Steer(project, directive); err != nil {
				return err
			}
		}
		return o.runToCompletion(ctx, project)

	case workflow.StatusExecuting:
		if directive == "" {
			return nil
		}
		return o.Steer(project, directive)

	default:
		return fmt.Errorf("orchestrator: cannot advance project in status %q", project.Status)
	}
}

// advancePlanAndRun plans exactly one new phase with fresh ids
// continuing from the existing phase count, records it, and
// auto-transitions awaiting_approval -> executing to run it
// immediately.
func (o *Orchestrator) advancePlanAndRun(ctx context.Context, project *workflow.Project, directive string) error {
	if err := o.transition(project, workflow.StatusPlanning); err != nil {
		return err
	}

	phase := o.planNextPhase(ctx, project, directive, len(project.Phases)+1)
	project.Phases = append(project.Phases, phase)
	project.PlanHash = workflow.ComputePlanHash(project.Phases, project.TerminalConditions)

	if _, err := o.backend.Append(project.ID, workflow.EventProjectAdvanced, map[string]any{
		"phase_id": phase.ID, "directive": directive, "plan_hash": project.PlanHash,
	}); err != nil {
		return err
	}
	if _, err := o.backend.Append(project.ID, workflow.EventPlanWritten, map[string]any{"plan_hash": project.PlanHash}); err != nil {
		return err
	}

	if err := o.transition(project, workflow.StatusAwaitingApproval); err != nil {
		return err
	}
	if err := o.transition(project, workflow.StatusExecuting); err != nil {
		return err
	}
	return o.runToCompletion(ctx, project)
}

func (o *Orchestrator) planNextPhase(ctx context.Context, project *workflow.Project, directive string, index int) *workflow.Phase {
	if o.planner == nil {
		return fallbackPhase(index, directive)
	}

	resp, err := o.planner.Generate(ctx, []llm.Message{
		{Role: "system", Content: advancePlanningSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Goal: %s\nDirective: %s", project.Goal, directive)},
	}, nil)
	if err != nil {
		o.log.Warn("planner call failed while advancing, falling back to single-task phase", "error", err)
		return fallbackPhase(index, directive)
	}

	phase, err := parsePhaseJSON(resp.Text, index, directive)
	if err != nil {
		o.log.Warn("planner response unparseable while advancing, falling back to single-task phase", "error", err)
		return fallbackPhase(index, directive)
	}
	return phase
}
