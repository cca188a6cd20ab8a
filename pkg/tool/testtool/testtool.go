// Package testtool provides harmless example tools that exercise both
// sides of the permission-tier approval split without touching anything
// real. No other package in this module imports it.
package testtool

import (
	"context"
	"fmt"

	"github.com/kadirpekel/roshni/pkg/tool"
)

// Echo is a read-permission tool: it never needs approval and just
// reflects its "text" argument back. Useful for exercising the agent
// loop and tool registry in tests without a real side effect.
func Echo() tool.Definition {
	return tool.Definition{
		Name:        "echo",
		Description: "Echo back the given text.",
		Permission:  tool.PermissionRead,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
			"required": []string{"text"},
		},
		Run: func(ctx context.Context, args map[string]any) (tool.Result, error) {
			text, _ := args["text"].(string)
			return tool.Result{Content: text}, nil
		},
	}
}

// Note is a write-permission tool: appends "text" to an in-memory log,
// standing in for any side-effecting action that should be gated behind
// approval before it runs.
func Note() (tool.Definition, *[]string) {
	var log []string
	return tool.Definition{
		Name:        "note",
		Description: "Append a note to the session log.",
		Permission:  tool.PermissionWrite,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
			"required": []string{"text"},
		},
		Run: func(ctx context.Context, args map[string]any) (tool.Result, error) {
			text, _ := args["text"].(string)
			log = append(log, text)
			return tool.Result{Content: fmt.Sprintf("noted (%d total)", len(log))}, nil
		},
	}, &log
}
