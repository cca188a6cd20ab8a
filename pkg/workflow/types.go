package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/kadirpekel/roshni/pkg/budget"
)

// Status is a Project's position in the state machine.
type Status string

const (
	StatusPlanning         Status = "planning"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusExecuting        Status = "executing"
	StatusReviewing        Status = "reviewing"
	StatusPaused           Status = "paused"
	StatusDone             Status = "done"
	StatusFailed           Status = "failed"
	StatusCancelled        Status = "cancelled"
)

// PhaseStatus is one Phase's lifecycle state.
type PhaseStatus string

const (
	PhaseStatusPending   PhaseStatus = "pending"
	PhaseStatusActive    PhaseStatus = "active"
	PhaseStatusCompleted PhaseStatus = "completed"
	PhaseStatusFailed    PhaseStatus = "failed"
	PhaseStatusSkipped   PhaseStatus = "skipped"
)

// Criterion is one entry/exit criterion for a Phase.
type Criterion struct {
	Description string `json:"description"`
	Met         bool   `json:"met"`
}

// TaskSpec is one unit of worker execution.
type TaskSpec struct {
	ID           string         `json:"id"`
	Description  string         `json:"description"`
	AllowedTools []string       `json:"allowed_tools,omitempty"` // empty = all tools
	Inputs       map[string]any `json:"inputs,omitempty"`
	Outputs      map[string]any `json:"outputs,omitempty"`
	MaxAttempts  int            `json:"max_attempts"`
	TimeoutSecs  int            `json:"timeout_seconds"`
	DependsOn    []string       `json:"depends_on,omitempty"` // accepted, not enforced in v1

	Status    PhaseStatus `json:"status"`
	Attempts  int         `json:"attempts"`
	LastError string      `json:"last_error,omitempty"`
}

// Phase is one stage of a Project's plan.
type Phase struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Status      PhaseStatus `json:"status"`
	Entry       []Criterion `json:"entry_criteria,omitempty"`
	Exit        []Criterion `json:"exit_criteria,omitempty"`
	Tasks       []*TaskSpec `json:"tasks"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	budgetWarningsSent map[string]bool
}

func (p *Phase) WarnedAt(threshold string) bool {
	if p.budgetWarningsSent == nil {
		return false
	}
	return p.budgetWarningsSent[threshold]
}

func (p *Phase) MarkWarned(threshold string) {
	if p.budgetWarningsSent == nil {
		p.budgetWarningsSent = make(map[string]bool)
	}
	p.budgetWarningsSent[threshold] = true
}

// TerminalConditionType names a terminal-condition evaluator.
type TerminalConditionType string

const (
	TerminalArtifactExists TerminalConditionType = "artifact_exists"
	TerminalPhaseCount     TerminalConditionType = "phase_count"
	TerminalLLMEval        TerminalConditionType = "llm_eval"
	TerminalCheckFn        TerminalConditionType = "check_fn"
)

// TerminalCondition is one predicate evaluated to decide whether a
// Project is DONE.
type TerminalCondition struct {
	Description string                 `json:"description"`
	Type        TerminalConditionType  `json:"type"`
	Params      map[string]any         `json:"params,omitempty"`
}

// JournalEntry is one append-only, human-readable note in a Project's
// journal.
type JournalEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// Artifact is one named output a Project has produced.
type Artifact struct {
	Name      string    `json:"name"`
	Path      string    `json:"path,omitempty"` // relative to workspace artifacts/
	MimeType  string    `json:"mime_type,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Project is a long-running plan with durable, event-sourced state.
type Project struct {
	ID   string `json:"id"`
	Goal string `json:"goal"`
	Tags []string `json:"tags,omitempty"`

	Status Status `json:"status"`

	Phases             []*Phase             `json:"phases"`
	TerminalConditions []TerminalCondition  `json:"terminal_conditions,omitempty"`

	Journal   []JournalEntry `json:"journal,omitempty"`
	Artifacts []Artifact     `json:"artifacts,omitempty"`

	Budget         *budget.Budget `json:"-"`
	BudgetSnapshot budget.Snapshot `json:"budget"`

	PlanHash     string `json:"plan_hash,omitempty"`
	LastEventSeq int    `json:"last_event_seq"`

	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CancelRequestedAt  *time.Time `json:"cancel_requested_at,omitempty"`

	// LastOrchestratorUpdateAt drives conflict detection:
	// compared against the registry markdown file's mtime.
	LastOrchestratorUpdateAt time.Time `json:"last_orchestrator_update_at"`
}

// canonicalPlan is the exact JSON shape the plan_hash invariant needs:
// {phases: [...], terminal_conditions: [...]}, stable key order.
type canonicalPlan struct {
	Phases             []canonicalPhase            `json:"phases"`
	TerminalConditions []canonicalTerminalCondition `json:"terminal_conditions"`
}

type canonicalPhase struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Entry       []string            `json:"entry_criteria"`
	Exit        []string            `json:"exit_criteria"`
	Tasks       []canonicalTaskSpec `json:"tasks"`
}

type canonicalTaskSpec struct {
	ID           string   `json:"id"`
	Description  string   `json:"description"`
	AllowedTools []string `json:"allowed_tools"`
}

// canonicalTerminalCondition carries every field that defines a terminal
// condition's semantics. Params is a map[string]any, but encoding/json
// already marshals map keys in sorted order, so no extra normalization
// pass is needed to make it hash-stable.
type canonicalTerminalCondition struct {
	Description string                `json:"description"`
	Type        TerminalConditionType `json:"type"`
	Params      map[string]any        `json:"params,omitempty"`
}

// CaptureBudget copies the live Budget's state into BudgetSnapshot so it
// survives JSON serialization (Budget itself holds a mutex and is not
// marshaled).
func (p *Project) CaptureBudget() {
	if p.Budget != nil {
		p.BudgetSnapshot = p.Budget.Snapshot()
	}
}

// RestoreBudget rebuilds the live Budget from BudgetSnapshot after a
// checkpoint load, if one is not already attached.
func (p *Project) RestoreBudget() {
	if p.Budget == nil {
		p.Budget = budget.FromSnapshot(p.BudgetSnapshot)
	}
}

// ComputePlanHash is the first 16 hex chars of the SHA-256 digest of the
// canonical plan JSON — enough to detect a changed plan without carrying
// a full digest around. Go's encoding/json already emits struct fields in
// declaration order, which canonicalPlan fixes explicitly, so no extra
// key-sorting pass is needed: the struct field order IS the canonical
// order.
func ComputePlanHash(phases []*Phase, conditions []TerminalCondition) string {
	cp := canonicalPlan{}
	for _, p := range phases {
		cphase := canonicalPhase{ID: p.ID, Name: p.Name, Description: p.Description}
		for _, c := range p.Entry {
			cphase.Entry = append(cphase.Entry, c.Description)
		}
		for _, c := range p.Exit {
			cphase.Exit = append(cphase.Exit, c.Description)
		}
		for _, task := range p.Tasks {
			tools := append([]string(nil), task.AllowedTools...)
			sort.Strings(tools)
			cphase.Tasks = append(cphase.Tasks, canonicalTaskSpec{
				ID: task.ID, Description: task.Description, AllowedTools: tools,
			})
		}
		cp.Phases = append(cp.Phases, cphase)
	}
	for _, c := range conditions {
		cp.TerminalConditions = append(cp.TerminalConditions, canonicalTerminalCondition{
			Description: c.Description, Type: c.Type, Params: c.Params,
		})
	}

	data, err := json.Marshal(cp)
	if err != nil {
		// canonicalPlan is built entirely from JSON-safe primitives; this
		// cannot fail in practice.
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}
