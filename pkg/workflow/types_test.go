package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputePlanHashChangesWithTerminalConditionTypeOrParams(t *testing.T) {
	phases := []*Phase{{ID: "phase-1", Name: "Build"}}

	base := []TerminalCondition{{
		Description: "done",
		Type:        TerminalArtifactExists,
		Params:      map[string]any{"path": "out.txt"},
	}}
	differentType := []TerminalCondition{{
		Description: "done",
		Type:        TerminalPhaseCount,
		Params:      map[string]any{"path": "out.txt"},
	}}
	differentParams := []TerminalCondition{{
		Description: "done",
		Type:        TerminalArtifactExists,
		Params:      map[string]any{"path": "other.txt"},
	}}

	baseHash := ComputePlanHash(phases, base)
	assert.NotEqual(t, baseHash, ComputePlanHash(phases, differentType),
		"terminal condition type must be part of the hashed shape")
	assert.NotEqual(t, baseHash, ComputePlanHash(phases, differentParams),
		"terminal condition params must be part of the hashed shape")
}

func TestComputePlanHashStableRegardlessOfParamKeyOrder(t *testing.T) {
	phases := []*Phase{{ID: "phase-1", Name: "Build"}}

	a := []TerminalCondition{{
		Description: "done",
		Type:        TerminalArtifactExists,
		Params:      map[string]any{"path": "out.txt", "min_bytes": 1},
	}}
	b := []TerminalCondition{{
		Description: "done",
		Type:        TerminalArtifactExists,
		Params:      map[string]any{"min_bytes": 1, "path": "out.txt"},
	}}

	assert.Equal(t, ComputePlanHash(phases, a), ComputePlanHash(phases, b),
		"map iteration order must not affect the hash")
}
