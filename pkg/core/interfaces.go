// Package core defines the core interfaces for the shopping runtime.
package core

import (
	"context"
)

// BaseTool defines the interface that all tools must implement.
type BaseTool interface {
	// Name returns the tool's unique identifier.
	Name() string

	// Description returns a description of the tool's purpose.
	Description() string

	// RequiresCheckout reports whether the tool reads or mutates checkout
	// state and must pass capability gating first.
	RequiresCheckout() bool

	// GetDeclaration returns the function declaration for orchestrators.
	GetDeclaration() *FunctionDeclaration

	// Run executes the tool with validated arguments.
	Run(ctx context.Context, toolCtx *ToolContext, args map[string]any) (Result, error)
}

// SessionService defines the interface for session management.
type SessionService interface {
	// CreateSession creates a new session.
	CreateSession(ctx context.Context, req *CreateSessionRequest) (*Session, error)

	// GetSession retrieves a session by ID. A missing session is (nil, nil).
	GetSession(ctx context.Context, req *GetSessionRequest) (*Session, error)

	// UpdateSessionState replaces the state of an existing session.
	UpdateSessionState(ctx context.Context, appName, userID, sessionID string, state map[string]any) error

	// DeleteSession removes a session.
	DeleteSession(ctx context.Context, req *DeleteSessionRequest) error

	// ListSessions returns sessions for a user.
	ListSessions(ctx context.Context, req *ListSessionsRequest) (*ListSessionsResponse, error)

	// Close releases backend resources.
	Close(ctx context.Context) error
}
