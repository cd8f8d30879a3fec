// Package tool defines the tools a runtime may call on the model's behalf,
// the registry that advertises them and the executor that runs them.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
)

// Tool is something the model can call. Execute returns the output document
// the runtime wraps into a tool-result block.
type Tool interface {
	Name() string
	Description() string
	InputSchema() ToolSchema
	Execute(ctx context.Context, input json.RawMessage) (string, error)
}

// ToolSchema is the JSON Schema of a tool's input. Type is always "object".
type ToolSchema struct {
	Type       string                 `json:"type"`
	Properties map[string]PropertyDef `json:"properties"`
	Required   []string               `json:"required,omitempty"`
}

// PropertyDef describes one input property.
type PropertyDef struct {
	Type        string                 `json:"type"`
	Description string                 `json:"description,omitempty"`
	Enum        []string               `json:"enum,omitempty"`
	Items       *PropertyDef           `json:"items,omitempty"`
	Properties  map[string]PropertyDef `json:"properties,omitempty"`
	Minimum     *float64               `json:"minimum,omitempty"`
	Maximum     *float64               `json:"maximum,omitempty"`
	MinLength   *int                   `json:"minLength,omitempty"`
	MaxLength   *int                   `json:"maxLength,omitempty"`
}

// Check reports schema mistakes a tool author can make before the model
// ever sees the tool.
func (s ToolSchema) Check() error {
	if s.Type != "object" {
		return fmt.Errorf("schema type must be \"object\", got %q", s.Type)
	}
	for _, name := range s.Required {
		if _, ok := s.Properties[name]; !ok {
			return fmt.Errorf("required property %q is not declared", name)
		}
	}
	return nil
}

// Func adapts a plain function to the Tool interface.
type Func struct {
	name   string
	desc   string
	schema ToolSchema
	run    func(context.Context, json.RawMessage) (string, error)
}

// NewFuncTool wraps fn as a Tool.
func NewFuncTool(name, description string, schema ToolSchema, fn func(context.Context, json.RawMessage) (string, error)) Tool {
	return &Func{name: name, desc: description, schema: schema, run: fn}
}

func (f *Func) Name() string            { return f.name }
func (f *Func) Description() string     { return f.desc }
func (f *Func) InputSchema() ToolSchema { return f.schema }

func (f *Func) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	if f.run == nil {
		return "", fmt.Errorf("tool %s has no implementation", f.name)
	}
	return f.run(ctx, input)
}

// JSONResult marshals v into a tool output string.
func JSONResult(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	return string(b), nil
}
