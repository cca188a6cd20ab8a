package project

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/kadirpekel/roshni/pkg/workflow"
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// slugify mirrors the retrieved implementation's filename-safe slug
// rule: lowercase, non-alphanumeric runs collapsed to a single hyphen,
// trimmed, capped at 60 chars, with "project" as the empty fallback.
func slugify(text string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(text), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > 60 {
		slug = slug[:60]
	}
	if slug == "" {
		return "project"
	}
	return slug
}

// render builds the registry markdown document for project: frontmatter
// (id, title, status, plan_hash, tags, timestamps) plus a body that
// opens with a goal heading and a compact phase/journal summary a human
// reading the registry directory can skim without opening the
// workspace.
func render(project *workflow.Project) (string, error) {
	fm := workflow.Frontmatter{
		ID:                     project.ID,
		Title:                  project.Goal,
		Status:                 string(project.Status),
		PlanHash:               project.PlanHash,
		Tags:                   project.Tags,
		Created:                project.CreatedAt,
		Updated:                project.UpdatedAt,
		LastOrchestratorUpdate: project.LastOrchestratorUpdateAt,
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n# %s\n\n", project.Goal)
	if len(project.Phases) > 0 {
		b.WriteString("## Phases\n\n")
		for _, phase := range project.Phases {
			fmt.Fprintf(&b, "- [%s] %s\n", phaseMark(phase.Status), phase.Name)
		}
		b.WriteString("\n")
	}
	if len(project.Journal) > 0 {
		b.WriteString("## Recent journal\n\n")
		start := 0
		if len(project.Journal) > 5 {
			start = len(project.Journal) - 5
		}
		for _, entry := range project.Journal[start:] {
			fmt.Fprintf(&b, "- %s: %s\n", entry.Timestamp.Format("2006-01-02 15:04"), entry.Message)
		}
	}

	return workflow.RenderRegistryMarkdown(fm, b.String())
}

func phaseMark(status workflow.PhaseStatus) string {
	if status == workflow.PhaseStatusCompleted {
		return "x"
	}
	return " "
}

// writeMinimal writes the smallest viable registry document for a
// freshly created project with no phases yet, so that slug
// deduplication and directory listing can see it without risking a
// premature full render.
func writeMinimal(path string, project *workflow.Project) error {
	fm := workflow.Frontmatter{
		ID:      project.ID,
		Title:   project.Goal,
		Status:  string(project.Status),
		Tags:    project.Tags,
		Created: project.CreatedAt,
		Updated: project.UpdatedAt,
	}
	body := fmt.Sprintf("\n# %s\n", project.Goal)
	doc, err := workflow.RenderRegistryMarkdown(fm, body)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(doc), 0o644)
}

// parseRegistryProject parses a registry markdown file into a
// lightweight Project carrying only what the file itself states
// (goal/status/tags/timestamps) — no phases, no budget, no journal.
// Callers merge this with workflow execution state when present.
func parseRegistryProject(slug, content string) (*workflow.Project, error) {
	fm, body, err := workflow.ParseRegistryMarkdown(content)
	if err != nil {
		return nil, err
	}

	goal := fm.Title
	if goal == "" {
		goal = firstHeading(body)
	}
	if goal == "" {
		goal = humanizeSlug(slug)
	}

	status := workflow.Status(fm.Status)
	if status == "" {
		status = workflow.StatusExecuting
	}

	return &workflow.Project{
		ID:                       slug,
		Goal:                     goal,
		Status:                   status,
		Tags:                     fm.Tags,
		PlanHash:                 fm.PlanHash,
		CreatedAt:                fm.Created,
		UpdatedAt:                fm.Updated,
		LastOrchestratorUpdateAt: fm.LastOrchestratorUpdate,
	}, nil
}

func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return ""
}

func humanizeSlug(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
