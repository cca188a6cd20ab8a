package orchestrator

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/roshni/pkg/agent"
	"github.com/kadirpekel/roshni/pkg/budget"
	"github.com/kadirpekel/roshni/pkg/llm"
	"github.com/kadirpekel/roshni/pkg/worker"
	"github.com/kadirpekel/roshni/pkg/workflow"
)

type scriptedClient struct {
	text string
	err  error
}

func (c *scriptedClient) Generate(ctx context.Context, messages []llm.Message, tools []llm.ToolSchema) (llm.Response, error) {
	if c.err != nil {
		return llm.Response{}, c.err
	}
	return llm.Response{Text: c.text}, nil
}

func (c *scriptedClient) ModelName() string { return "test-model" }
func (c *scriptedClient) Provider() string  { return "test" }
func (c *scriptedClient) Close() error      { return nil }

func succeedingAgentFactory(*workflow.TaskSpec, *budget.Budget) *agent.Agent {
	return agent.New(agent.Config{
		Recovery: agent.RecoveryConfig{
			Profiles: []agent.AuthProfile{{Name: "primary", Client: &scriptedClient{text: "done"}}},
		},
	})
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *workflow.Backend) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	backend := workflow.NewBackend(t.TempDir(), log)
	pool := worker.New(4, backend, log)
	o := New(Dependencies{
		Backend:      backend,
		Workers:      pool,
		AgentFactory: succeedingAgentFactory,
		Log:          log,
	})
	return o, backend
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func singlePhaseProject(id string) *workflow.Project {
	return &workflow.Project{
		ID:     id,
		Goal:   "do the thing",
		Status: workflow.StatusAwaitingApproval,
		Budget: budget.New(budget.Limits{}),
		Phases: []*workflow.Phase{{
			ID:     "phase-1",
			Status: workflow.PhaseStatusPending,
			Tasks: []*workflow.TaskSpec{{
				ID: "task-1", Description: "do it", MaxAttempts: 3, Status: workflow.PhaseStatusPending,
			}},
		}},
	}
}

// Invariant 8: approve_and_execute of a project with no terminal
// conditions and all tasks succeeding ends DONE.
func TestApproveAndExecuteNoTerminalConditionsReachesDone(t *testing.T) {
	o, backend := newTestOrchestrator(t)
	project := singlePhaseProject("proj-0001")
	_, err := backend.Append(project.ID, workflow.EventProjectCreated, map[string]any{"goal": project.Goal})
	require.NoError(t, err)

	err = o.ApproveAndExecute(context.Background(), project)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusDone, project.Status)
	assert.Equal(t, workflow.PhaseStatusCompleted, project.Phases[0].Status)
}

// Invariant 9: any transition from cancelled fails.
func TestTransitionFromCancelledAlwaysFails(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	project := singlePhaseProject("proj-0002")
	project.Status = workflow.StatusCancelled

	err := o.transition(project, workflow.StatusPlanning)
	require.Error(t, err)
	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
}

// S4: calling approve_and_execute on a failed project raises an error
// naming awaiting_approval as required.
func TestApproveAndExecuteRejectsNonAwaitingApproval(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	project := singlePhaseProject("proj-0003")
	project.Status = workflow.StatusFailed

	err := o.ApproveAndExecute(context.Background(), project)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "awaiting_approval")
}

// S5: a project whose budget is already exhausted pauses on
// approve_and_execute, journals an entry mentioning "budget", and
// records budget.exhausted.
func TestApproveAndExecutePausesOnExhaustedBudget(t *testing.T) {
	o, backend := newTestOrchestrator(t)
	project := singlePhaseProject("proj-0004")
	project.Budget = budget.New(budget.Limits{MaxCostUSD: 0.01, MaxLLMCalls: 1})
	project.Budget.RecordCall(0.01)

	err := o.ApproveAndExecute(context.Background(), project)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPaused, project.Status)

	foundBudgetJournal := false
	for _, j := range project.Journal {
		if strings.Contains(strings.ToLower(j.Message), "budget") {
			foundBudgetJournal = true
		}
	}
	assert.True(t, foundBudgetJournal, "expected a journal entry mentioning budget")

	events, err := backend.LoadEvents(project.ID)
	require.NoError(t, err)
	foundExhausted := false
	for _, e := range events {
		if e.Type == workflow.EventBudgetExhausted {
			foundExhausted = true
		}
	}
	assert.True(t, foundExhausted, "expected a budget.exhausted event")
}
