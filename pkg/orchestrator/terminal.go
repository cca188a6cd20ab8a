package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kadirpekel/roshni/pkg/llm"
	"github.com/kadirpekel/roshni/pkg/workflow"
)

const evaluatorSystemPrompt = `You evaluate whether a project has met one of its completion conditions. Respond with ONLY a JSON object: {"met": bool, "rationale": "...", "evidence": "..."}.`

type evalDoc struct {
	Met       bool   `json:"met"`
	Rationale string `json:"rationale"`
	Evidence  string `json:"evidence"`
}

// evaluateTerminalConditions evaluates every declared condition,
// recording a terminal_condition.evaluated event per condition, and
// reports whether all are met. Zero declared conditions means
// completion of all phases alone is sufficient.
func (o *Orchestrator) evaluateTerminalConditions(ctx context.Context, project *workflow.Project) (bool, error) {
	if len(project.TerminalConditions) == 0 {
		return true, nil
	}

	allMet := true
	for i := range project.TerminalConditions {
		cond := &project.TerminalConditions[i]
		met, err := o.evaluateOne(ctx, project, *cond)
		if err != nil {
			return false, err
		}
		if _, err := o.backend.Append(project.ID, workflow.EventTerminalConditionEvaluated, map[string]any{
			"description": cond.Description, "type": string(cond.Type), "met": met,
		}); err != nil {
			return false, err
		}
		if !met {
			allMet = false
		}
	}
	return allMet, nil
}

func (o *Orchestrator) evaluateOne(ctx context.Context, project *workflow.Project, cond workflow.TerminalCondition) (bool, error) {
	switch cond.Type {
	case workflow.TerminalArtifactExists:
		name, _ := cond.Params["name"].(string)
		for _, a := range project.Artifacts {
			if a.Name == name {
				return true, nil
			}
		}
		return false, nil

	case workflow.TerminalPhaseCount:
		completed := 0
		for _, p := range project.Phases {
			if p.Status == workflow.PhaseStatusCompleted {
				completed++
			}
		}
		min := len(project.Phases)
		if v, ok := cond.Params["min_completed"].(float64); ok {
			min = int(v)
		}
		return completed >= min, nil

	case workflow.TerminalLLMEval:
		return o.evaluateLLM(ctx, project, cond)

	case workflow.TerminalCheckFn:
		// Not implemented in v1: always false.
		return false, nil

	default:
		return false, nil
	}
}

func (o *Orchestrator) evaluateLLM(ctx context.Context, project *workflow.Project, cond workflow.TerminalCondition) (bool, error) {
	if o.evaluator == nil {
		return false, nil
	}

	completed := 0
	for _, p := range project.Phases {
		if p.Status == workflow.PhaseStatusCompleted {
			completed++
		}
	}
	summary := fmt.Sprintf(
		"Goal: %s\nCondition: %s\nCompleted phases: %d/%d\nArtifacts: %s",
		project.Goal, cond.Description, completed, len(project.Phases), artifactNames(project.Artifacts),
	)

	resp, err := o.evaluator.Generate(ctx, []llm.Message{
		{Role: "system", Content: evaluatorSystemPrompt},
		{Role: "user", Content: summary},
	}, nil)
	if err != nil {
		o.log.Warn("terminal condition llm_eval call failed, defaulting to unmet", "error", err)
		return false, nil
	}

	var doc evalDoc
	if err := json.Unmarshal([]byte(stripMarkdownFence(resp.Text)), &doc); err != nil {
		o.log.Warn("terminal condition llm_eval parse failure, defaulting to unmet", "error", err)
		return false, nil
	}
	return doc.Met, nil
}

func artifactNames(artifacts []workflow.Artifact) string {
	if len(artifacts) == 0 {
		return "(none)"
	}
	names := make([]string, len(artifacts))
	for i, a := range artifacts {
		names[i] = a.Name
	}
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}
