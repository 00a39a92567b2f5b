package config

import "github.com/google/jsonschema-go/jsonschema"

// configSchema describes Configuration's JSON-checkable surface, mirroring
// the teacher's own style of hand-built *jsonschema.Schema literals in
// internal/mcp/server.go (there used to describe MCP tool input; here it
// describes the pipeline's own entry configuration instead).
var configSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"analyzer_strategy": {
			Type:        "string",
			Description: "Which merge strategy combines backend results",
			Enum:        []any{"tiered", "consensus"},
		},
		"worker_count": {
			Type:        "integer",
			Description: "Bounded-concurrency width; 0 means runtime.GOMAXPROCS(0)",
			Minimum:     floatPtr(0),
		},
		"per_task_timeout_ms": {
			Type:        "integer",
			Description: "Per-construct analysis timeout in milliseconds",
			Minimum:     floatPtr(1),
		},
		"dry_run": {
			Type:        "boolean",
			Description: "Compute edits but never write them",
		},
		"safe_mode": {
			Type:        "boolean",
			Description: "Write a sibling .bak before an unsafe-gated write",
		},
		"include_line_numbers": {
			Type:        "boolean",
			Description: "Append (Line: N) to each usage-block bullet",
		},
		"update_module_docs": {
			Type:        "boolean",
			Description: "Whether the Module construct's own docstring is updated",
		},
	},
	Required: []string{"analyzer_strategy"},
}

func floatPtr(v float64) *float64 { return &v }
