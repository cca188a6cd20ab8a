package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/kadirpekel/roshni/pkg/llm"
	"github.com/kadirpekel/roshni/pkg/workflow"
)

const reviewerSystemPrompt = `You synthesize a cross-project status report for a human operator. Given a list of project summaries, write a concise narrative covering overall progress, anything stalled or paused, and what needs human attention. Plain text, no markdown fence.`

// ReviewProjects filters projects by tag set and query substring
// (matched against goal, phase names, and tags), then asks the
// Reviewer for a narrative synthesis across the filtered set.
func (o *Orchestrator) ReviewProjects(ctx context.Context, projects []*workflow.Project, query string, tags []string) (string, error) {
	filtered := filterProjects(projects, query, tags)
	if len(filtered) == 0 {
		return "No projects matched the given filters.", nil
	}

	reviewContext := buildReviewContext(filtered)
	if o.reviewer == nil {
		return reviewContext, nil
	}

	resp, err := o.reviewer.Generate(ctx, []llm.Message{
		{Role: "system", Content: reviewerSystemPrompt},
		{Role: "user", Content: reviewContext},
	}, nil)
	if err != nil {
		o.log.Warn("reviewer call failed, returning raw context", "error", err)
		return reviewContext, nil
	}
	return resp.Text, nil
}

func filterProjects(projects []*workflow.Project, query string, tags []string) []*workflow.Project {
	query = strings.ToLower(strings.TrimSpace(query))
	tagSet := make(map[string]bool, len(tags))
	for _, t := range tags {
		tagSet[strings.ToLower(t)] = true
	}

	var out []*workflow.Project
	for _, p := range projects {
		if len(tagSet) > 0 && !anyTagMatches(p.Tags, tagSet) {
			continue
		}
		if query != "" && !matchesQuery(p, query) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func anyTagMatches(projectTags []string, want map[string]bool) bool {
	for _, t := range projectTags {
		if want[strings.ToLower(t)] {
			return true
		}
	}
	return false
}

func matchesQuery(p *workflow.Project, query string) bool {
	if strings.Contains(strings.ToLower(p.Goal), query) {
		return true
	}
	for _, t := range p.Tags {
		if strings.Contains(strings.ToLower(t), query) {
			return true
		}
	}
	for _, phase := range p.Phases {
		if strings.Contains(strings.ToLower(phase.Name), query) {
			return true
		}
	}
	return false
}

// buildReviewContext assembles the per-project summary string the
// reviewer LLM reads: status, phase completion counts, artifacts,
// recent journal, and the declared terminal conditions (see
// unmetConditions).
func buildReviewContext(projects []*workflow.Project) string {
	var b strings.Builder
	for _, p := range projects {
		completed, total := phaseCompletion(p)
		fmt.Fprintf(&b, "Project %s (%s)\n", p.ID, p.Status)
		fmt.Fprintf(&b, "  Goal: %s\n", p.Goal)
		fmt.Fprintf(&b, "  Tags: %s\n", strings.Join(p.Tags, ", "))
		fmt.Fprintf(&b, "  Phases: %d/%d completed\n", completed, total)
		fmt.Fprintf(&b, "  Artifacts: %s\n", artifactNames(p.Artifacts))
		fmt.Fprintf(&b, "  Recent journal: %s\n", recentJournal(p.Journal, 3))
		fmt.Fprintf(&b, "  Unmet conditions: %s\n\n", unmetConditions(p))
	}
	return b.String()
}

func phaseCompletion(p *workflow.Project) (completed, total int) {
	total = len(p.Phases)
	for _, phase := range p.Phases {
		if phase.Status == workflow.PhaseStatusCompleted {
			completed++
		}
	}
	return
}

func recentJournal(journal []workflow.JournalEntry, n int) string {
	if len(journal) == 0 {
		return "(none)"
	}
	start := 0
	if len(journal) > n {
		start = len(journal) - n
	}
	parts := make([]string, 0, len(journal)-start)
	for _, j := range journal[start:] {
		parts = append(parts, j.Message)
	}
	return strings.Join(parts, "; ")
}

// unmetConditions lists the description of every declared terminal
// condition. Whether a condition is already met is not evaluated here, so
// met conditions are listed too.
func unmetConditions(p *workflow.Project) string {
	if len(p.TerminalConditions) == 0 {
		return "(none declared)"
	}
	var names []string
	for _, c := range p.TerminalConditions {
		names = append(names, c.Description)
	}
	return strings.Join(names, "; ")
}
