package workflow

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAssignsStrictlyIncreasingSeqStartingAt1(t *testing.T) {
	b := NewBackend(t.TempDir(), nil)

	e1, err := b.Append("proj-1", EventProjectCreated, map[string]any{"goal": "test"})
	require.NoError(t, err)
	e2, err := b.Append("proj-1", EventProjectTransitioned, map[string]any{"to": "executing"})
	require.NoError(t, err)

	assert.Equal(t, 1, e1.Seq)
	assert.Equal(t, 2, e2.Seq)
}

func TestResumeDeterministicOutOfOrderTimestamps(t *testing.T) {
	base := t.TempDir()
	b := NewBackend(base, nil)

	_, err := b.Append("proj-1", EventProjectCreated, map[string]any{"goal": "ship it"})
	require.NoError(t, err)
	_, err = b.Append("proj-1", EventProjectTransitioned, map[string]any{"to": string(StatusAwaitingApproval)})
	require.NoError(t, err)
	_, err = b.Append("proj-1", EventProjectTransitioned, map[string]any{"to": string(StatusExecuting)})
	require.NoError(t, err)

	// Rewrite the log with timestamps in reverse order but unchanged,
	// monotonic seq — S7 requires replay to key off seq, not timestamp.
	events, err := b.loadEvents("proj-1")
	require.NoError(t, err)
	reversed := time.Now()
	for i := range events {
		events[i].Timestamp = reversed.Add(-time.Duration(i) * time.Hour)
	}
	rewriteEventLog(t, filepath.Join(base, "proj-1"), events)

	project, err := b.Resume("proj-1", "")
	require.NoError(t, err)
	assert.Equal(t, StatusExecuting, project.Status)
}

func TestCheckpointThenResumeMatchesObservableFields(t *testing.T) {
	base := t.TempDir()
	b := NewBackend(base, nil)

	_, err := b.Append("proj-1", EventProjectCreated, map[string]any{"goal": "ship it"})
	require.NoError(t, err)

	project := &Project{
		ID:     "proj-1",
		Goal:   "ship it",
		Status: StatusExecuting,
		Phases: []*Phase{{ID: "phase-1", Name: "Build", Status: PhaseStatusActive}},
	}
	require.NoError(t, b.Checkpoint(project))

	resumed, err := b.Resume("proj-1", "")
	require.NoError(t, err)
	assert.Equal(t, project.Status, resumed.Status)
	assert.Equal(t, project.Goal, resumed.Goal)
	require.Len(t, resumed.Phases, 1)
	assert.Equal(t, "phase-1", resumed.Phases[0].ID)
}

func TestDetectConflictPausesOnPlanHashMismatch(t *testing.T) {
	base := t.TempDir()
	b := NewBackend(base, nil)

	project := &Project{
		ID:                       "proj-1",
		Status:                   StatusExecuting,
		PlanHash:                 "hash-one",
		LastOrchestratorUpdateAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, b.Checkpoint(project))

	registryPath := filepath.Join(base, "registry.md")
	doc, err := RenderRegistryMarkdown(Frontmatter{ID: "proj-1", PlanHash: "hash-two"}, "# Project\n")
	require.NoError(t, err)
	require.NoError(t, writeFile(t, registryPath, doc))

	// mtime 10s after last_orchestrator_update_at, well outside tolerance.
	mtime := project.LastOrchestratorUpdateAt.Add(10 * time.Second)
	require.NoError(t, setModTime(registryPath, mtime))

	require.NoError(t, b.detectConflict(project, registryPath))

	assert.Equal(t, StatusPaused, project.Status)
	require.NotEmpty(t, project.Journal)

	events, err := b.loadEvents("proj-1")
	require.NoError(t, err)
	found := false
	for _, e := range events {
		if e.Type == EventConflictDetected {
			found = true
			reason, _ := e.Data["reason"].(string)
			assert.Contains(t, reason, "hash-one")
			assert.Contains(t, reason, "hash-two")
		}
	}
	assert.True(t, found, "expected a conflict.detected event")
}

func TestResumeDetectsConflictWithoutDeadlocking(t *testing.T) {
	base := t.TempDir()
	b := NewBackend(base, nil)

	_, err := b.Append("proj-1", EventProjectCreated, map[string]any{"goal": "ship it"})
	require.NoError(t, err)

	project := &Project{
		ID:                       "proj-1",
		Status:                   StatusExecuting,
		PlanHash:                 "hash-one",
		LastOrchestratorUpdateAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, b.Checkpoint(project))

	registryPath := filepath.Join(base, "registry.md")
	doc, err := RenderRegistryMarkdown(Frontmatter{ID: "proj-1", PlanHash: "hash-two"}, "# Project\n")
	require.NoError(t, err)
	require.NoError(t, writeFile(t, registryPath, doc))

	mtime := project.LastOrchestratorUpdateAt.Add(10 * time.Second)
	require.NoError(t, setModTime(registryPath, mtime))

	done := make(chan struct{})
	var resumed *Project
	var resumeErr error
	go func() {
		resumed, resumeErr = b.Resume("proj-1", registryPath)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Resume deadlocked on conflict detection re-locking the project mutex")
	}

	require.NoError(t, resumeErr)
	assert.Equal(t, StatusPaused, resumed.Status)
	require.NotEmpty(t, resumed.Journal)

	events, err := b.loadEvents("proj-1")
	require.NoError(t, err)
	found := false
	for _, e := range events {
		if e.Type == EventConflictDetected {
			found = true
		}
	}
	assert.True(t, found, "expected a conflict.detected event recorded through Resume")
}

func TestDetectConflictWithinToleranceIsNotAConflict(t *testing.T) {
	base := t.TempDir()
	b := NewBackend(base, nil)

	project := &Project{
		ID:                       "proj-1",
		Status:                   StatusExecuting,
		PlanHash:                 "hash-one",
		LastOrchestratorUpdateAt: time.Now(),
	}
	require.NoError(t, b.Checkpoint(project))

	registryPath := filepath.Join(base, "registry.md")
	doc, err := RenderRegistryMarkdown(Frontmatter{ID: "proj-1", PlanHash: "hash-two"}, "# Project\n")
	require.NoError(t, err)
	require.NoError(t, writeFile(t, registryPath, doc))
	require.NoError(t, setModTime(registryPath, project.LastOrchestratorUpdateAt.Add(time.Second)))

	require.NoError(t, b.detectConflict(project, registryPath))
	assert.Equal(t, StatusExecuting, project.Status)
}
