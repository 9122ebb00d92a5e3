// Package tools provides the tool registry and execution framework.
//
// A tool is a named, schema-described operation the model may request:
// a descriptor declares its parameter contract, an executor performs it.
// The registry translates descriptors into the model's function-calling
// format and validates required parameters before dispatch.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Param describes one tool parameter.
type Param struct {
	Name        string
	Type        string // string, integer, number, boolean, array, object
	Description string
	Enum        []string       // allowed values, optional
	Items       map[string]any // element shape for array types, optional
	Properties  map[string]any // field shape for object types, optional
	Required    bool
}

// Descriptor declares a tool's name, description, and parameter contract.
// The description is consumed by the model to decide when to use the tool.
type Descriptor struct {
	Name        string
	Description string
	Params      []Param
}

// Schema converts the descriptor into the model's function-calling format.
func (d *Descriptor) Schema() map[string]any {
	properties := make(map[string]any, len(d.Params))
	required := []string{}

	for _, p := range d.Params {
		prop := map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		if p.Items != nil {
			prop["items"] = p.Items
		}
		if p.Properties != nil {
			prop["properties"] = p.Properties
		}
		properties[p.Name] = prop

		if p.Required {
			required = append(required, p.Name)
		}
	}

	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        d.Name,
			"description": d.Description,
			"parameters": map[string]any{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		},
	}
}

// Executor performs a tool invocation with validated arguments.
type Executor func(ctx context.Context, args map[string]any) (any, error)

// Registry holds the tools available to one session.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*registered
	order []string // registration order, for stable schema output
}

type registered struct {
	desc Descriptor
	fn   Executor
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*registered)}
}

// Register adds a tool under its descriptor name. Re-registering an
// existing name replaces the previous tool (last write wins).
func (r *Registry) Register(desc Descriptor, fn Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[desc.Name]; !exists {
		r.order = append(r.order, desc.Name)
	}
	r.tools[desc.Name] = &registered{desc: desc, fn: fn}
}

// Get returns the descriptor for a tool name, or false if absent.
func (r *Registry) Get(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.tools[name]
	if !ok {
		return Descriptor{}, false
	}
	return reg.desc, true
}

// Schemas returns all descriptors in the model's function-calling format,
// in registration order.
func (r *Registry) Schemas() []map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]map[string]any, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].desc.Schema())
	}
	return out
}

// List returns all registered tool names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Execute validates args against the named tool's descriptor and runs its
// executor. Validation checks that every required parameter is present,
// failing on the first absent one in descriptor order; it never reaches
// the executor on a validation failure. Executor errors are wrapped with
// the tool name.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	r.mu.RLock()
	reg, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return nil, &ErrToolNotFound{ToolName: name}
	}

	for _, p := range reg.desc.Params {
		if !p.Required {
			continue
		}
		if _, present := args[p.Name]; !present {
			return nil, &ErrMissingParam{ToolName: name, Param: p.Name}
		}
	}

	result, err := reg.fn(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}
	return result, nil
}
