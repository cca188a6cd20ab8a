package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/kadirpekel/roshni/pkg/workflow"
)

// transitionTable is the project state machine: for each status, the set
// of statuses a transition may legally move to.
var transitionTable = map[workflow.Status][]workflow.Status{
	workflow.StatusPlanning:         {workflow.StatusAwaitingApproval, workflow.StatusFailed, workflow.StatusCancelled},
	workflow.StatusAwaitingApproval: {workflow.StatusExecuting, workflow.StatusPlanning, workflow.StatusFailed, workflow.StatusCancelled},
	workflow.StatusExecuting:        {workflow.StatusReviewing, workflow.StatusPaused, workflow.StatusFailed, workflow.StatusCancelled},
	workflow.StatusReviewing:        {workflow.StatusDone, workflow.StatusPlanning, workflow.StatusPaused, workflow.StatusFailed, workflow.StatusCancelled},
	workflow.StatusPaused:           {workflow.StatusExecuting, workflow.StatusPlanning, workflow.StatusFailed, workflow.StatusCancelled},
	workflow.StatusDone:             {workflow.StatusPlanning},
	workflow.StatusFailed:           {workflow.StatusPlanning, workflow.StatusCancelled},
	workflow.StatusCancelled:        {},
}

// TransitionError names the allowed targets from a rejected transition,
// so a caller never has to guess what would have been valid.
type TransitionError struct {
	From, To workflow.Status
	Allowed  []workflow.Status
}

func (e *TransitionError) Error() string {
	names := make([]string, len(e.Allowed))
	for i, s := range e.Allowed {
		names[i] = string(s)
	}
	return fmt.Sprintf("orchestrator: invalid transition %s -> %s (allowed: %s)", e.From, e.To, strings.Join(names, ", "))
}

func validTransition(from, to workflow.Status) bool {
	for _, s := range transitionTable[from] {
		if s == to {
			return true
		}
	}
	return false
}

// transition validates project.Status -> to against transitionTable,
// applies it, and records a project.transitioned event.
func (o *Orchestrator) transition(project *workflow.Project, to workflow.Status) error {
	from := project.Status
	if !validTransition(from, to) {
		return &TransitionError{From: from, To: to, Allowed: transitionTable[from]}
	}
	project.Status = to
	if to == workflow.StatusExecuting && project.StartedAt == nil {
		now := time.Now()
		project.StartedAt = &now
	}
	if to == workflow.StatusCancelled {
		now := time.Now()
		project.CancelRequestedAt = &now
	}
	_, err := o.backend.Append(project.ID, workflow.EventProjectTransitioned, map[string]any{
		"from": string(from), "to": string(to),
	})
	return err
}
