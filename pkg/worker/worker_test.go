package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/roshni/pkg/agent"
	"github.com/kadirpekel/roshni/pkg/budget"
	"github.com/kadirpekel/roshni/pkg/llm"
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

func newTestAgent(text string, err error) *agent.Agent {
	return agent.New(agent.Config{
		Recovery: agent.RecoveryConfig{
			Profiles: []agent.AuthProfile{{Name: "primary", Client: &scriptedClient{text: text, err: err}}},
		},
	})
}

type recordingEvents struct {
	mu     sync.Mutex
	events []workflow.EventType
}

func (r *recordingEvents) Append(projectID string, eventType workflow.EventType, data map[string]any) (workflow.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
	return workflow.Event{Type: eventType, ProjectID: projectID, Data: data}, nil
}

func TestSpawnWorkerSuccessEmitsDispatchedAndCompleted(t *testing.T) {
	events := &recordingEvents{}
	pool := New(2, events, nil)

	phase := &workflow.Phase{ID: "phase-1"}
	task := &workflow.TaskSpec{ID: "task-1", Description: "write a haiku", MaxAttempts: 3}

	result := pool.SpawnWorker(context.Background(), ProjectState{ID: "proj-1"}, phase, task, 1, nil,
		func(*workflow.TaskSpec, *budget.Budget) *agent.Agent { return newTestAgent("haiku text", nil) })

	require.True(t, result.Success)
	assert.Equal(t, "haiku text", result.Output)
	assert.Equal(t, []workflow.EventType{workflow.EventTaskDispatched, workflow.EventTaskCompleted}, events.events)
}

func TestSpawnWorkerFailureMarksRetryableUnderMaxAttempts(t *testing.T) {
	events := &recordingEvents{}
	pool := New(2, events, nil)

	phase := &workflow.Phase{ID: "phase-1"}
	task := &workflow.TaskSpec{ID: "task-1", Description: "do a thing", MaxAttempts: 3}

	result := pool.SpawnWorker(context.Background(), ProjectState{ID: "proj-1"}, phase, task, 1, nil,
		func(*workflow.TaskSpec, *budget.Budget) *agent.Agent { return newTestAgent("", assert.AnError) })

	require.False(t, result.Success)
	assert.True(t, result.Retryable)
	assert.Equal(t, []workflow.EventType{workflow.EventTaskDispatched, workflow.EventTaskFailed}, events.events)
}

func TestSpawnWorkerPreCheckSkipsDispatchWhenPaused(t *testing.T) {
	events := &recordingEvents{}
	pool := New(2, events, nil)

	phase := &workflow.Phase{ID: "phase-1"}
	task := &workflow.TaskSpec{ID: "task-1", MaxAttempts: 1}

	result := pool.SpawnWorker(context.Background(), ProjectState{ID: "proj-1", Paused: true}, phase, task, 1, nil,
		func(*workflow.TaskSpec, *budget.Budget) *agent.Agent { t.Fatal("factory should not be called when paused"); return nil })

	require.False(t, result.Success)
	assert.Empty(t, events.events)
}

func TestDrainWaitsForActiveWorkers(t *testing.T) {
	pool := New(1, nil, nil)
	phase := &workflow.Phase{ID: "phase-1"}
	task := &workflow.TaskSpec{ID: "task-1", MaxAttempts: 1}

	started := make(chan struct{})
	release := make(chan struct{})
	go func() {
		pool.SpawnWorker(context.Background(), ProjectState{ID: "proj-1"}, phase, task, 1, nil,
			func(*workflow.TaskSpec, *budget.Budget) *agent.Agent {
				close(started)
				<-release
				return newTestAgent("done", nil)
			})
	}()

	<-started
	close(release)
	pool.Drain(2 * time.Second)
	assert.Equal(t, 0, pool.Active())
}
