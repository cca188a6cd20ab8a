package workflow

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// planOverrideStart/End delimit the optional plan-override block a
// registry markdown file may carry.
const (
	planOverrideStart = "<!-- ROSHNI:PLAN-OVERRIDE-START -->"
	planOverrideEnd   = "<!-- ROSHNI:PLAN-OVERRIDE-END -->"
)

// Frontmatter holds the recognized YAML frontmatter keys of a registry
// markdown file. Unrecognized keys are ignored on parse
// and dropped on render.
type Frontmatter struct {
	ID                    string    `yaml:"id"`
	Title                 string    `yaml:"title"`
	Status                string    `yaml:"status"`
	PlanHash              string    `yaml:"plan_hash"`
	Tags                  []string  `yaml:"tags"`
	Created               time.Time `yaml:"created"`
	Updated               time.Time `yaml:"updated"`
	LastOrchestratorUpdate time.Time `yaml:"last_orchestrator_update_at"`
}

// rawFrontmatter accepts Tags as either a YAML list or a comma string,
// decoded via yaml.Node so both shapes parse.
type rawFrontmatter struct {
	ID                     string    `yaml:"id"`
	Title                  string    `yaml:"title"`
	Status                 string    `yaml:"status"`
	PlanHash               string    `yaml:"plan_hash"`
	Tags                   yaml.Node `yaml:"tags"`
	Created                time.Time `yaml:"created"`
	Updated                time.Time `yaml:"updated"`
	LastOrchestratorUpdate time.Time `yaml:"last_orchestrator_update_at"`
}

// ParseRegistryMarkdown splits a `---\n...\n---\n` frontmatter block from
// the markdown body that follows. It does not look for a plan-override
// block; ExtractPlanOverride does that on the returned body. No frontmatter library in the retrieved pack handles this
// shape, so the split is hand-written.
func ParseRegistryMarkdown(content string) (Frontmatter, string, error) {
	const delim = "---"
	if !strings.HasPrefix(content, delim) {
		return Frontmatter{}, content, fmt.Errorf("workflow: registry markdown missing frontmatter delimiter")
	}
	rest := content[len(delim):]
	rest = strings.TrimPrefix(rest, "\n")
	end := strings.Index(rest, "\n"+delim)
	if end == -1 {
		return Frontmatter{}, content, fmt.Errorf("workflow: registry markdown frontmatter not closed")
	}
	block := rest[:end]
	body := strings.TrimPrefix(rest[end+1+len(delim):], "\n")

	var raw rawFrontmatter
	if err := yaml.Unmarshal([]byte(block), &raw); err != nil {
		return Frontmatter{}, content, fmt.Errorf("workflow: parse frontmatter: %w", err)
	}

	fm := Frontmatter{
		ID:                     raw.ID,
		Title:                  raw.Title,
		Status:                 raw.Status,
		PlanHash:               raw.PlanHash,
		Created:                raw.Created,
		Updated:                raw.Updated,
		LastOrchestratorUpdate: raw.LastOrchestratorUpdate,
	}
	fm.Tags = decodeTags(raw.Tags)
	return fm, body, nil
}

func decodeTags(node yaml.Node) []string {
	switch node.Kind {
	case yaml.SequenceNode:
		var tags []string
		for _, item := range node.Content {
			tags = append(tags, item.Value)
		}
		return tags
	case yaml.ScalarNode:
		if node.Value == "" {
			return nil
		}
		parts := strings.Split(node.Value, ",")
		tags := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				tags = append(tags, t)
			}
		}
		return tags
	default:
		return nil
	}
}

// RenderRegistryMarkdown re-serializes frontmatter and body into the
// `---\n...\n---\n<body>` shape.
func RenderRegistryMarkdown(fm Frontmatter, body string) (string, error) {
	out := rawFrontmatter{
		ID: fm.ID, Title: fm.Title, Status: fm.Status, PlanHash: fm.PlanHash,
		Created: fm.Created, Updated: fm.Updated, LastOrchestratorUpdate: fm.LastOrchestratorUpdate,
	}
	var tagsNode yaml.Node
	_ = tagsNode.Encode(fm.Tags)
	out.Tags = tagsNode

	block, err := yaml.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("workflow: render frontmatter: %w", err)
	}
	var b strings.Builder
	b.WriteString("---\n")
	b.Write(block)
	b.WriteString("---\n")
	b.WriteString(body)
	return b.String(), nil
}

// ExtractPlanOverride returns the contents of a `<!-- ROSHNI:PLAN-OVERRIDE-
// START -->...END -->` block within body, if present.
func ExtractPlanOverride(body string) (string, bool) {
	start := strings.Index(body, planOverrideStart)
	if start == -1 {
		return "", false
	}
	start += len(planOverrideStart)
	end := strings.Index(body[start:], planOverrideEnd)
	if end == -1 {
		return "", false
	}
	return strings.TrimSpace(body[start : start+end]), true
}
