// Package bindings holds the runtime-bindings boundary: the set of named
// actions an environment exposes to generated code. Specs are registered by
// the environment side; the registry validates arguments against a compiled
// JSON Schema before any implementation runs, and can render both a
// model-facing tool schema and the runtime-contract prompt section.
package bindings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/commandpost/overmind/internal/sandbox"
)

type ParamSpec struct {
	Name     string
	Type     string // "str" | "int" | "float" | "bool" | "object" | "array"
	Required bool
	Desc     string
}

type ActionSpec struct {
	Name    string
	Desc    string
	Params  []ParamSpec
	Returns string
	Impl    func(ctx context.Context, args map[string]any) (any, error)
}

type registeredAction struct {
	spec   ActionSpec
	schema *jsonschema.Schema
}

type Registry struct {
	mu      sync.RWMutex
	actions map[string]*registeredAction
	order   []string
	logger  *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{actions: map[string]*registeredAction{}, logger: logger}
}

func (r *Registry) Register(spec ActionSpec) error {
	if strings.TrimSpace(spec.Name) == "" {
		return fmt.Errorf("action spec missing name")
	}
	if spec.Impl == nil {
		return fmt.Errorf("action %s missing implementation", spec.Name)
	}
	schema, err := compileSchema(spec.Params)
	if err != nil {
		return fmt.Errorf("action %s schema: %w", spec.Name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.actions[spec.Name]; exists {
		return fmt.Errorf("action already registered: %s", spec.Name)
	}
	r.actions[spec.Name] = &registeredAction{spec: spec, schema: schema}
	r.order = append(r.order, spec.Name)
	r.logger.Info("registered action", "name", spec.Name, "desc", spec.Desc)
	return nil
}

func (r *Registry) Specs() []ActionSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ActionSpec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.actions[name].spec)
	}
	return out
}

// Call validates args against the action's schema and invokes the
// implementation.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	r.mu.RLock()
	a, ok := r.actions[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown action: %s", name)
	}
	if args == nil {
		args = map[string]any{}
	}
	if err := a.schema.Validate(normalizeForSchema(args)); err != nil {
		return nil, fmt.Errorf("action %s arguments invalid: %v", name, err)
	}
	return a.spec.Impl(ctx, args)
}

// ToolsSchema exports the registered actions as a model-facing tool schema.
func (r *Registry) ToolsSchema() []map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tools := make([]map[string]any, 0, len(r.order))
	for _, name := range r.order {
		spec := r.actions[name].spec
		properties := map[string]any{}
		required := []string{}
		for _, p := range spec.Params {
			properties[p.Name] = map[string]any{
				"type":        jsonType(p.Type),
				"description": p.Desc,
			}
			if p.Required {
				required = append(required, p.Name)
			}
		}
		tools = append(tools, map[string]any{
			"name":        spec.Name,
			"description": spec.Desc,
			"parameters": map[string]any{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		})
	}
	return tools
}

// ContractText renders the runtime-contract prompt section describing each
// action's signature and return convention.
func (r *Registry) ContractText() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var b strings.Builder
	for _, name := range r.order {
		spec := r.actions[name].spec
		params := make([]string, 0, len(spec.Params))
		for _, p := range spec.Params {
			entry := p.Name + ": " + p.Type
			if !p.Required {
				entry += "?"
			}
			params = append(params, entry)
		}
		fmt.Fprintf(&b, "api.%s(%s)", spec.Name, strings.Join(params, ", "))
		if spec.Returns != "" {
			fmt.Fprintf(&b, " -> %s", spec.Returns)
		}
		if spec.Desc != "" {
			fmt.Fprintf(&b, "  # %s", spec.Desc)
		}
		b.WriteString("\n")
		for _, p := range spec.Params {
			if p.Desc != "" {
				fmt.Fprintf(&b, "    %s: %s\n", p.Name, p.Desc)
			}
		}
	}
	return b.String()
}

// Module exposes the registry to the sandbox: each action becomes a callable
// accepting positional args (in spec order) and keyword args.
func (r *Registry) Module() sandbox.Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mod := make(sandbox.Module, len(r.order))
	for _, name := range r.order {
		spec := r.actions[name].spec
		mod[name] = r.callable(name, spec)
	}
	return mod
}

func (r *Registry) callable(name string, spec ActionSpec) sandbox.Func {
	return func(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
		if len(args) > len(spec.Params) {
			return nil, fmt.Errorf("action %s takes at most %d positional arguments, got %d", name, len(spec.Params), len(args))
		}
		merged := make(map[string]any, len(args)+len(kwargs))
		for i, v := range args {
			merged[spec.Params[i].Name] = v
		}
		for k, v := range kwargs {
			if _, dup := merged[k]; dup {
				return nil, fmt.Errorf("action %s got argument %q both positionally and by keyword", name, k)
			}
			merged[k] = v
		}
		return r.Call(ctx, name, merged)
	}
}

func jsonType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "str", "string", "":
		return "string"
	case "int", "integer":
		return "integer"
	case "float", "number":
		return "number"
	case "bool", "boolean":
		return "boolean"
	case "object":
		return "object"
	case "array":
		return "array"
	default:
		return "string"
	}
}

func compileSchema(params []ParamSpec) (*jsonschema.Schema, error) {
	properties := map[string]any{}
	required := []string{}
	for _, p := range params {
		properties[p.Name] = map[string]any{"type": jsonType(p.Type)}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	sort.Strings(required)
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", strings.NewReader(string(b))); err != nil {
		return nil, err
	}
	return c.Compile("schema.json")
}

// normalizeForSchema round-trips args through JSON so the validator sees
// canonical types (sandbox values arrive as int64, the validator expects
// json-decoded shapes).
func normalizeForSchema(args map[string]any) any {
	b, err := json.Marshal(args)
	if err != nil {
		return args
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return args
	}
	return out
}
