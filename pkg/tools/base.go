// Package tools provides the named, schema-constrained operations exposed to
// a calling orchestrator.
package tools

import (
	"context"
	"fmt"

	"github.com/agent-protocol/ucp-shopper/pkg/core"
)

// BaseToolImpl provides the identity part of the BaseTool interface.
type BaseToolImpl struct {
	name             string
	description      string
	requiresCheckout bool
}

// NewBaseTool creates a new base tool implementation.
func NewBaseTool(name, description string) *BaseToolImpl {
	return &BaseToolImpl{
		name:        name,
		description: description,
	}
}

// Name returns the tool's unique identifier.
func (t *BaseToolImpl) Name() string {
	return t.name
}

// Description returns a description of the tool's purpose.
func (t *BaseToolImpl) Description() string {
	return t.description
}

// RequiresCheckout reports whether the tool is gated on the checkout capability.
func (t *BaseToolImpl) RequiresCheckout() bool {
	return t.requiresCheckout
}

// SetRequiresCheckout marks the tool as a checkout tool.
func (t *BaseToolImpl) SetRequiresCheckout(v bool) {
	t.requiresCheckout = v
}

// GetDeclaration returns the function declaration for orchestrators.
// Base implementation returns nil - concrete tools should override this.
func (t *BaseToolImpl) GetDeclaration() *core.FunctionDeclaration {
	return nil
}

// Run executes the tool.
// Base implementation returns an error - concrete tools must override this.
func (t *BaseToolImpl) Run(ctx context.Context, toolCtx *core.ToolContext, args map[string]any) (core.Result, error) {
	return core.Result{}, fmt.Errorf("tool %s does not implement Run", t.name)
}
