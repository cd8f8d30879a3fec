package tool

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
)

// ErrToolExists is returned when a tool name is registered twice.
var ErrToolExists = errors.New("tool already registered")

// Registry holds the tools advertised to the model, keyed by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds t after checking its name and schema.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return errors.New("register tool: nil tool")
	}
	name := t.Name()
	if name == "" {
		return errors.New("register tool: empty name")
	}
	if err := t.InputSchema().Check(); err != nil {
		return fmt.Errorf("register tool %s: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.tools[name]; dup {
		return fmt.Errorf("%w: %s", ErrToolExists, name)
	}
	r.tools[name] = t
	return nil
}

// RegisterAll registers tools in order, stopping at the first failure.
func (r *Registry) RegisterAll(tools []Tool) error {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// List returns the registered names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.tools))
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// ToAnthropicTools returns the tool definitions sent with every request,
// ordered by name.
func (r *Registry) ToAnthropicTools() []anthropic.ToolParam {
	r.mu.RLock()
	defer r.mu.RUnlock()

	params := make([]anthropic.ToolParam, 0, len(r.tools))
	for _, name := range slices.Sorted(maps.Keys(r.tools)) {
		t := r.tools[name]
		schema := t.InputSchema()
		params = append(params, anthropic.ToolParam{
			Name:        name,
			Description: anthropic.String(t.Description()),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type:       constant.Object("object"),
				Properties: propertiesSchema(schema.Properties),
				Required:   schema.Required,
			},
		})
	}
	return params
}

// ToAnthropicToolUnions wraps ToAnthropicTools for MessageNewParams.Tools.
func (r *Registry) ToAnthropicToolUnions() []anthropic.ToolUnionParam {
	params := r.ToAnthropicTools()
	unions := make([]anthropic.ToolUnionParam, len(params))
	for i := range params {
		unions[i] = anthropic.ToolUnionParam{OfTool: &params[i]}
	}
	return unions
}

func propertiesSchema(props map[string]PropertyDef) map[string]any {
	out := make(map[string]any, len(props))
	for name, def := range props {
		out[name] = def.schema()
	}
	return out
}

// schema renders d as a JSON Schema fragment.
func (d PropertyDef) schema() map[string]any {
	m := map[string]any{"type": d.Type}
	set := func(key string, v any, ok bool) {
		if ok {
			m[key] = v
		}
	}
	set("description", d.Description, d.Description != "")
	set("enum", d.Enum, len(d.Enum) > 0)
	set("properties", propertiesSchema(d.Properties), len(d.Properties) > 0)
	if d.Items != nil {
		m["items"] = d.Items.schema()
	}
	if d.Minimum != nil {
		m["minimum"] = *d.Minimum
	}
	if d.Maximum != nil {
		m["maximum"] = *d.Maximum
	}
	if d.MinLength != nil {
		m["minLength"] = *d.MinLength
	}
	if d.MaxLength != nil {
		m["maxLength"] = *d.MaxLength
	}
	return m
}
