// Package sessions provides session management implementations.
package sessions

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/agent-protocol/ucp-shopper/pkg/core"
)

// generateSessionID creates a unique session identifier.
func generateSessionID() string {
	return "session_" + uuid.NewString()
}

// copyMap returns a shallow copy of a state map. Stored values are replaced,
// never mutated in place, so a shallow copy isolates callers.
func copyMap(original map[string]any) map[string]any {
	copied := make(map[string]any, len(original))
	for k, v := range original {
		copied[k] = v
	}
	return copied
}

// newSession builds the stored form of a create request.
func newSession(req *core.CreateSessionRequest, now time.Time) *core.Session {
	id := generateSessionID()
	if req.SessionID != nil && *req.SessionID != "" {
		id = *req.SessionID
	}
	return &core.Session{
		ID:             id,
		AppName:        req.AppName,
		UserID:         req.UserID,
		State:          copyMap(req.State),
		LastUpdateTime: now,
	}
}

// sortSessions orders sessions most recently updated first.
func sortSessions(sessions []*core.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].LastUpdateTime.Equal(sessions[j].LastUpdateTime) {
			return sessions[i].LastUpdateTime.After(sessions[j].LastUpdateTime)
		}
		return sessions[i].ID < sessions[j].ID
	})
}

// expired reports whether s has not been touched within ttl. A zero ttl
// never expires.
func expired(s *core.Session, ttl time.Duration, now time.Time) bool {
	return ttl > 0 && now.Sub(s.LastUpdateTime) > ttl
}
