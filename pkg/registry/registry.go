// Package registry holds the tool definitions published to the conversation
// model and the job activities this service registers with the process engine.
package registry

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"center-onboarding/internal/common/validation"
)

//go:embed tools.json
var toolsJSON []byte

//go:embed activities.json
var activitiesJSON []byte

// Registry indexes tools by name and keeps their compiled argument schemas.
type Registry struct {
	tools   map[string]Tool
	schemas map[string]*validation.Schema
	version string
}

// Default returns the registry built from the embedded tool definitions.
func Default() (*Registry, error) {
	return Parse(toolsJSON)
}

// Parse builds a registry from a ToolRegistry JSON document.
func Parse(data []byte) (*Registry, error) {
	var doc ToolRegistry
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode tool registry: %w", err)
	}

	r := &Registry{
		tools:   make(map[string]Tool, len(doc.Tools)),
		schemas: make(map[string]*validation.Schema, len(doc.Tools)),
		version: doc.Version,
	}
	for _, tool := range doc.Tools {
		if _, dup := r.tools[tool.Name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", tool.Name)
		}
		schema, err := validation.CompileSchema([]byte(tool.Parameters))
		if err != nil {
			return nil, fmt.Errorf("tool %q: %w", tool.Name, err)
		}
		r.tools[tool.Name] = tool
		r.schemas[tool.Name] = schema
	}
	return r, nil
}

func (r *Registry) Version() string {
	return r.version
}

// Tool returns the definition for name.
func (r *Registry) Tool(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Tools returns every definition sorted by name.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Validate checks args against the schema of tool name. Empty args are
// validated as an empty object.
func (r *Registry) Validate(name string, args []byte) (*validation.ValidationResult, error) {
	schema, ok := r.schemas[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}
	return schema.ValidateJSON(trimmed)
}

// DefaultActivities returns the embedded activity registry.
func DefaultActivities() (*ActivityRegistry, error) {
	var reg ActivityRegistry
	if err := json.Unmarshal(activitiesJSON, &reg); err != nil {
		return nil, fmt.Errorf("decode activity registry: %w", err)
	}
	return &reg, nil
}

// LoadRegistry reads an activity registry from disk.
func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	err = json.Unmarshal(data, &reg)
	return &reg, err
}

// Find returns the activity registered for taskType.
func (a *ActivityRegistry) Find(taskType string) (Activity, bool) {
	for _, act := range a.Activities {
		if act.TaskType == taskType {
			return act, true
		}
	}
	return Activity{}, false
}

// Validate checks that every activity carries its identifying fields, a
// parsable timeout and a unique id and task type.
func (a *ActivityRegistry) Validate() error {
	if len(a.Activities) == 0 {
		return fmt.Errorf("registry contains no activities")
	}

	ids := make(map[string]bool, len(a.Activities))
	taskTypes := make(map[string]bool, len(a.Activities))
	for _, act := range a.Activities {
		if act.ID == "" {
			return fmt.Errorf("activity missing required field: id")
		}
		if ids[act.ID] {
			return fmt.Errorf("duplicate activity ID: %s", act.ID)
		}
		ids[act.ID] = true

		if act.DisplayName == "" {
			return fmt.Errorf("activity %s missing required field: displayName", act.ID)
		}
		if act.Category == "" {
			return fmt.Errorf("activity %s missing required field: category", act.ID)
		}
		if act.TaskType == "" {
			return fmt.Errorf("activity %s missing required field: taskType", act.ID)
		}
		if taskTypes[act.TaskType] {
			return fmt.Errorf("duplicate task type: %s", act.TaskType)
		}
		taskTypes[act.TaskType] = true

		if act.Timeout != "" {
			if _, err := time.ParseDuration(act.Timeout); err != nil {
				return fmt.Errorf("activity %s has invalid timeout %q: %w", act.ID, act.Timeout, err)
			}
		}
		if act.Retries < 0 {
			return fmt.Errorf("activity %s has negative retries", act.ID)
		}
	}
	return nil
}
