package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/agent-protocol/ucp-shopper/pkg/core"
)

// Func is the signature of a typed tool implementation.
type Func[A any] func(ctx context.Context, toolCtx *core.ToolContext, args A) (core.Result, error)

// FunctionTool wraps a typed Go function as a tool. The argument schema is
// derived from A's struct tags, and incoming arguments are validated
// against it before being decoded into A.
type FunctionTool[A any] struct {
	*BaseToolImpl
	fn       Func[A]
	params   *ParameterSchema
	compiled *jsonschema.Schema
	raw      json.RawMessage
}

// NewFunctionTool creates a new function tool from a typed function.
func NewFunctionTool[A any](name, description string, fn Func[A]) (*FunctionTool[A], error) {
	if fn == nil {
		return nil, fmt.Errorf("function cannot be nil")
	}

	params, err := schemaFor(reflect.TypeOf((*A)(nil)).Elem())
	if err != nil {
		return nil, fmt.Errorf("failed to analyze arguments of %s: %w", name, err)
	}
	compiled, raw, err := compileSchema(name, params)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema of %s: %w", name, err)
	}

	return &FunctionTool[A]{
		BaseToolImpl: NewBaseTool(name, description),
		fn:           fn,
		params:       params,
		compiled:     compiled,
		raw:          raw,
	}, nil
}

// MustFunctionTool is NewFunctionTool that panics on error.
func MustFunctionTool[A any](name, description string, fn Func[A]) *FunctionTool[A] {
	t, err := NewFunctionTool(name, description, fn)
	if err != nil {
		panic(err)
	}
	return t
}

// Gated marks the tool as a checkout tool and returns it.
func (t *FunctionTool[A]) Gated() *FunctionTool[A] {
	t.SetRequiresCheckout(true)
	return t
}

// GetDeclaration returns the function declaration for orchestrators.
func (t *FunctionTool[A]) GetDeclaration() *core.FunctionDeclaration {
	return &core.FunctionDeclaration{
		Name:        t.name,
		Description: t.description,
		Parameters:  t.raw,
	}
}

// Parameters returns the argument names in declaration order.
func (t *FunctionTool[A]) Parameters() []string {
	return append([]string(nil), t.params.order...)
}

// Run validates args, decodes them and calls the wrapped function.
func (t *FunctionTool[A]) Run(ctx context.Context, toolCtx *core.ToolContext, args map[string]any) (core.Result, error) {
	decoded, err := t.decode(args)
	if err != nil {
		return core.Result{}, err
	}
	return t.fn(ctx, toolCtx, decoded)
}

// decode normalizes args through JSON, fills defaults, validates against the
// schema and decodes into A. Null values count as absent.
func (t *FunctionTool[A]) decode(args map[string]any) (A, error) {
	var out A

	clean := make(map[string]any, len(args))
	for k, v := range args {
		if v != nil {
			clean[k] = v
		}
	}
	for name, prop := range t.params.Properties {
		if _, ok := clean[name]; !ok && prop.Default != nil {
			clean[name] = prop.Default
		}
	}

	raw, err := json.Marshal(clean)
	if err != nil {
		return out, core.InvalidArgumentf("arguments of %s are not JSON encodable: %v", t.name, err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return out, core.InvalidArgumentf("arguments of %s: %v", t.name, err)
	}
	if err := t.compiled.Validate(doc); err != nil {
		return out, core.InvalidArgumentf("invalid arguments for %s: %v", t.name, err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, core.InvalidArgumentf("invalid arguments for %s: %v", t.name, err)
	}
	return out, nil
}
