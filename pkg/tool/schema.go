package tool

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// GenerateSchema reflects a Go struct type into the JSON-schema map a
// Definition's Parameters field expects, so concrete tools can describe
// their arguments with a typed struct and `jsonschema:"..."` tags instead
// of hand-building the map literal. Grounded on
// pkg/tool/functiontool/schema.go's generateSchema, generalized from a
// generic-function-argument helper into a standalone registry helper.
func GenerateSchema[T any]() (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}

	schema := reflector.Reflect(new(T))

	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("tool: marshal schema: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("tool: unmarshal schema: %w", err)
	}
	return out, nil
}
