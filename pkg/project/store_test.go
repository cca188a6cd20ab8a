package project

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/roshni/pkg/agent"
	"github.com/kadirpekel/roshni/pkg/budget"
	"github.com/kadirpekel/roshni/pkg/llm"
	"github.com/kadirpekel/roshni/pkg/orchestrator"
	"github.com/kadirpekel/roshni/pkg/worker"
	"github.com/kadirpekel/roshni/pkg/workflow"
)

type scriptedClient struct{ text string }

func (c *scriptedClient) Generate(ctx context.Context, messages []llm.Message, tools []llm.ToolSchema) (llm.Response, error) {
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

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func newTestStore(t *testing.T, registryDir string) *Store {
	t.Helper()
	log := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	backend := workflow.NewBackend(t.TempDir(), log)
	pool := worker.New(4, backend, log)
	orch := orchestrator.New(orchestrator.Dependencies{
		Backend:      backend,
		Workers:      pool,
		AgentFactory: succeedingAgentFactory,
		Log:          log,
	})
	return NewStore(orch, backend, registryDir, log)
}

func TestCreateWithoutRegistryUsesSequentialID(t *testing.T) {
	store := newTestStore(t, "")
	project, err := store.Create(context.Background(), "plan the week", budget.Limits{}, []string{"personal"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(project.ID, "proj-"))
	assert.Equal(t, workflow.StatusAwaitingApproval, project.Status)
}

func TestCreateWithRegistryAllocatesSlugAndWritesFile(t *testing.T) {
	registryDir := t.TempDir()
	store := newTestStore(t, registryDir)

	project, err := store.Create(context.Background(), "Plan the Week", budget.Limits{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "plan-the-week", project.ID)

	content, err := os.ReadFile(filepath.Join(registryDir, "plan-the-week.md"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "plan-the-week")
}

func TestCreateDeduplicatesSlug(t *testing.T) {
	registryDir := t.TempDir()
	store := newTestStore(t, registryDir)

	first, err := store.Create(context.Background(), "Plan the Week", budget.Limits{}, nil)
	require.NoError(t, err)
	second, err := store.Create(context.Background(), "Plan the Week", budget.Limits{}, nil)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "plan-the-week-1", second.ID)
}

func TestGetResolvesRegistryOnlyProjectWithoutWorkflowState(t *testing.T) {
	registryDir := t.TempDir()
	store := newTestStore(t, registryDir)

	content := "---\ntitle: \"Quarterly review\"\nstatus: executing\ntags: [\"work\"]\n---\n\n# Quarterly review\n"
	require.NoError(t, os.WriteFile(filepath.Join(registryDir, "quarterly-review.md"), []byte(content), 0o644))

	got, err := store.Get("quarterly-review")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Quarterly review", got.Goal)
	assert.Equal(t, workflow.StatusExecuting, got.Status)
	assert.Equal(t, []string{"work"}, got.Tags)
}

func TestListSortsByUpdatedDescendingAndFilters(t *testing.T) {
	store := newTestStore(t, "")
	ctx := context.Background()

	p1, err := store.Create(ctx, "first project", budget.Limits{}, []string{"a"})
	require.NoError(t, err)
	p2, err := store.Create(ctx, "second project", budget.Limits{}, []string{"b"})
	require.NoError(t, err)

	all, err := store.List(ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, p2.ID, all[0].ID, "most recently created project sorts first")
	assert.Equal(t, p1.ID, all[1].ID)

	filtered, err := store.List(ListOptions{Tag: "b"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, p2.ID, filtered[0].ID)
}

func TestTransitionRejectsInvalidTarget(t *testing.T) {
	store := newTestStore(t, "")
	project, err := store.Create(context.Background(), "invalid transition test", budget.Limits{}, nil)
	require.NoError(t, err)

	err = store.Transition(project, workflow.StatusDone)
	require.Error(t, err)
	var terr *orchestrator.TransitionError
	require.ErrorAs(t, err, &terr)
}

func TestSaveArtifactWritesFileAndRecordsOnProject(t *testing.T) {
	store := newTestStore(t, "")
	project, err := store.Create(context.Background(), "artifact test", budget.Limits{}, nil)
	require.NoError(t, err)

	artifact, err := store.SaveArtifact(project, "Summary Report", "# Summary\n", "")
	require.NoError(t, err)
	assert.Equal(t, "summary-report.md", filepath.Base(artifact.Path))
	require.Len(t, project.Artifacts, 1)

	path := filepath.Join(store.WorkspacePath(project.ID), artifact.Path)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# Summary\n", string(content))
}
