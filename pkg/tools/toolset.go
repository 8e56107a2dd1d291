package tools

import (
	"fmt"

	"github.com/agent-protocol/ucp-shopper/pkg/core"
)

// Toolset is an ordered, name-indexed set of tools.
type Toolset struct {
	tools  []core.BaseTool
	byName map[string]core.BaseTool
}

// NewToolset builds a toolset. Tool names must be unique.
func NewToolset(tools ...core.BaseTool) (*Toolset, error) {
	ts := &Toolset{byName: make(map[string]core.BaseTool, len(tools))}
	for _, t := range tools {
		if _, dup := ts.byName[t.Name()]; dup {
			return nil, fmt.Errorf("duplicate tool name %q", t.Name())
		}
		ts.tools = append(ts.tools, t)
		ts.byName[t.Name()] = t
	}
	return ts, nil
}

// Lookup returns the tool with the given name.
func (ts *Toolset) Lookup(name string) (core.BaseTool, bool) {
	t, ok := ts.byName[name]
	return t, ok
}

// Tools returns the tools in registration order.
func (ts *Toolset) Tools() []core.BaseTool {
	return append([]core.BaseTool(nil), ts.tools...)
}

// Declarations returns the function declarations of every tool.
func (ts *Toolset) Declarations() []*core.FunctionDeclaration {
	decls := make([]*core.FunctionDeclaration, 0, len(ts.tools))
	for _, t := range ts.tools {
		if d := t.GetDeclaration(); d != nil {
			decls = append(decls, d)
		}
	}
	return decls
}
