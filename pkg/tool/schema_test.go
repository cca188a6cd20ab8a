package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noteArgs struct {
	Text string `json:"text" jsonschema:"required,description=Text to save"`
}

func TestGenerateSchemaFromStruct(t *testing.T) {
	schema, err := GenerateSchema[noteArgs]()
	require.NoError(t, err)
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "text")
}
