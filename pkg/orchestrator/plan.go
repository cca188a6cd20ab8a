package orchestrator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kadirpekel/roshni/pkg/workflow"
)

const planningSystemPrompt = `You are the planning stage of an autonomous project orchestrator. Given a goal, respond with ONLY a JSON object (no prose, no markdown fence) of the shape:
{
  "phases": [
    {"id": "phase-1", "name": "...", "description": "...",
     "entry_criteria": ["..."], "exit_criteria": ["..."],
     "tasks": [{"id": "task-1", "description": "...", "allowed_tools": [], "max_attempts": 3}]}
  ],
  "terminal_conditions": [{"description": "...", "type": "artifact_exists", "params": {}}]
}
Keep phases small and concrete. terminal_conditions may be empty.`

const advancePlanningSystemPrompt = `You are planning exactly one additional phase to continue an in-progress project. Respond with ONLY a JSON object of the shape:
{"id": "phase-N", "name": "...", "description": "...",
 "entry_criteria": ["..."], "exit_criteria": ["..."],
 "tasks": [{"id": "task-N", "description": "...", "allowed_tools": [], "max_attempts": 3}]}`

// planDoc mirrors the JSON shape a planning LLM call returns.
type planDoc struct {
	Phases             []phaseDoc              `json:"phases"`
	TerminalConditions []terminalConditionDoc  `json:"terminal_conditions"`
}

type phaseDoc struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Entry       []string  `json:"entry_criteria"`
	Exit        []string  `json:"exit_criteria"`
	Tasks       []taskDoc `json:"tasks"`
}

type taskDoc struct {
	ID           string         `json:"id"`
	Description  string         `json:"description"`
	AllowedTools []string       `json:"allowed_tools"`
	Inputs       map[string]any `json:"inputs"`
	Outputs      map[string]any `json:"expected_outputs"`
	DependsOn    []string       `json:"depends_on"`
	MaxAttempts  int            `json:"max_attempts"`
	TimeoutSecs  int            `json:"timeout_seconds"`
}

type terminalConditionDoc struct {
	Description string                        `json:"description"`
	Type        workflow.TerminalConditionType `json:"type"`
	Params      map[string]any                 `json:"params"`
}

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// stripMarkdownFence tolerates a planning response wrapped in a
// ```json ... ``` fence.
func stripMarkdownFence(text string) string {
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return strings.TrimSpace(text)
}

func parsePlanDoc(text string) (planDoc, error) {
	var doc planDoc
	if err := json.Unmarshal([]byte(stripMarkdownFence(text)), &doc); err != nil {
		return planDoc{}, fmt.Errorf("orchestrator: parse plan JSON: %w", err)
	}
	if len(doc.Phases) == 0 {
		return planDoc{}, fmt.Errorf("orchestrator: plan JSON has no phases")
	}
	return doc, nil
}

func toPhases(docs []phaseDoc) []*workflow.Phase {
	phases := make([]*workflow.Phase, 0, len(docs))
	for _, d := range docs {
		phase := &workflow.Phase{
			ID: d.ID, Name: d.Name, Description: d.Description,
			Status: workflow.PhaseStatusPending,
		}
		for _, e := range d.Entry {
			phase.Entry = append(phase.Entry, workflow.Criterion{Description: e})
		}
		for _, e := range d.Exit {
			phase.Exit = append(phase.Exit, workflow.Criterion{Description: e})
		}
		for _, t := range d.Tasks {
			maxAttempts := t.MaxAttempts
			if maxAttempts <= 0 {
				maxAttempts = 3
			}
			phase.Tasks = append(phase.Tasks, &workflow.TaskSpec{
				ID: t.ID, Description: t.Description, AllowedTools: t.AllowedTools,
				Inputs: t.Inputs, Outputs: t.Outputs, DependsOn: t.DependsOn,
				MaxAttempts: maxAttempts, TimeoutSecs: t.TimeoutSecs,
				Status: workflow.PhaseStatusPending,
			})
		}
		phases = append(phases, phase)
	}
	return phases
}

func toTerminalConditions(docs []terminalConditionDoc) []workflow.TerminalCondition {
	conditions := make([]workflow.TerminalCondition, 0, len(docs))
	for _, d := range docs {
		conditions = append(conditions, workflow.TerminalCondition{
			Description: d.Description, Type: d.Type, Params: d.Params,
		})
	}
	return conditions
}

// fallbackPlan is the single-phase plan used when planning fails to
// produce a usable result: one phase whose sole task is the goal
// itself.
func fallbackPlan(goal string) (phases []*workflow.Phase, conditions []workflow.TerminalCondition) {
	return []*workflow.Phase{{
		ID:     "phase-1",
		Name:   "Execute goal",
		Status: workflow.PhaseStatusPending,
		Tasks: []*workflow.TaskSpec{{
			ID:          "task-1",
			Description: goal,
			MaxAttempts: 3,
			Status:      workflow.PhaseStatusPending,
		}},
	}}, nil
}

func fallbackPhase(index int, directive string) *workflow.Phase {
	id := fmt.Sprintf("phase-%d", index)
	return &workflow.Phase{
		ID:     id,
		Name:   "Continue: " + directive,
		Status: workflow.PhaseStatusPending,
		Tasks: []*workflow.TaskSpec{{
			ID:          fmt.Sprintf("task-%d-1", index),
			Description: directive,
			MaxAttempts: 3,
			Status:      workflow.PhaseStatusPending,
		}},
	}
}

func parsePhaseJSON(text string, index int, directive string) (*workflow.Phase, error) {
	var d phaseDoc
	if err := json.Unmarshal([]byte(stripMarkdownFence(text)), &d); err != nil {
		return nil, fmt.Errorf("orchestrator: parse phase JSON: %w", err)
	}
	if d.ID == "" {
		d.ID = fmt.Sprintf("phase-%d", index)
	}
	phases := toPhases([]phaseDoc{d})
	return phases[0], nil
}
