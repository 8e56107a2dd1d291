// Package core defines request/response types and context structures for the shopping runtime.
package core

import (
	"fmt"
	"time"
)

// Session represents a conversation session between a caller and the agent.
// Its State map is the host-owned key/value store tools read and write.
type Session struct {
	ID             string         `json:"id"`
	AppName        string         `json:"app_name"`
	UserID         string         `json:"user_id"`
	State          map[string]any `json:"state"`
	LastUpdateTime time.Time      `json:"last_update_time"`
}

// NewSession creates a new session with the given parameters.
func NewSession(id, appName, userID string) *Session {
	return &Session{
		ID:             id,
		AppName:        appName,
		UserID:         userID,
		State:          make(map[string]any),
		LastUpdateTime: time.Now(),
	}
}

// SetState sets a value in the session state.
func (s *Session) SetState(key string, value any) {
	if s.State == nil {
		s.State = make(map[string]any)
	}
	s.State[key] = value
	s.LastUpdateTime = time.Now()
}

// GetState retrieves a value from the session state.
func (s *Session) GetState(key string) (any, bool) {
	if s.State == nil {
		return nil, false
	}
	value, exists := s.State[key]
	return value, exists
}

// DeleteState removes a key from the session state.
func (s *Session) DeleteState(key string) {
	if s.State != nil {
		delete(s.State, key)
		s.LastUpdateTime = time.Now()
	}
}

// CopyState returns a copy of the current state.
func (s *Session) CopyState() map[string]any {
	copied := make(map[string]any, len(s.State))
	for k, v := range s.State {
		copied[k] = v
	}
	return copied
}

// Clone creates a copy of the session with its own state map.
func (s *Session) Clone() *Session {
	return &Session{
		ID:             s.ID,
		AppName:        s.AppName,
		UserID:         s.UserID,
		State:          s.CopyState(),
		LastUpdateTime: s.LastUpdateTime,
	}
}

// Validate performs basic validation on the session.
func (s *Session) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}
	if s.AppName == "" {
		return fmt.Errorf("app name cannot be empty")
	}
	if s.UserID == "" {
		return fmt.Errorf("user ID cannot be empty")
	}
	return nil
}

// ToolContext is handed to every tool invocation.
type ToolContext struct {
	// Session is the caller's session context.
	Session SessionContext

	// StoreID is the active store resolved by the dispatcher for this call.
	StoreID string

	// FunctionCallID correlates the call with the orchestrator's request, if any.
	FunctionCallID string
}

// NewToolContext creates a new tool context.
func NewToolContext(session SessionContext, storeID string) *ToolContext {
	return &ToolContext{
		Session: session,
		StoreID: storeID,
	}
}

// Request types for session services

// CreateSessionRequest contains parameters for creating a new session.
type CreateSessionRequest struct {
	AppName   string         `json:"app_name"`
	UserID    string         `json:"user_id"`
	State     map[string]any `json:"state,omitempty"`
	SessionID *string        `json:"session_id,omitempty"`
}

// GetSessionRequest contains parameters for retrieving a session.
type GetSessionRequest struct {
	AppName   string `json:"app_name"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

// DeleteSessionRequest contains parameters for deleting a session.
type DeleteSessionRequest struct {
	AppName   string `json:"app_name"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

// ListSessionsRequest contains parameters for listing sessions.
type ListSessionsRequest struct {
	AppName string `json:"app_name"`
	UserID  string `json:"user_id"`
}

// ListSessionsResponse contains the result of listing sessions.
type ListSessionsResponse struct {
	Sessions   []*Session `json:"sessions"`
	TotalCount int        `json:"total_count"`
}
