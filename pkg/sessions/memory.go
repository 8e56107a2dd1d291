package sessions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/agent-protocol/ucp-shopper/pkg/core"
)

// ErrSessionExists is returned when creating a session whose id is taken.
var ErrSessionExists = errors.New("session already exists")

var _ core.SessionService = (*InMemorySessionService)(nil)

// InMemorySessionService implements SessionService using in-memory storage.
type InMemorySessionService struct {
	sessions map[string]*core.Session
	ttl      time.Duration
	mutex    sync.RWMutex
	now      func() time.Time
}

// NewInMemorySessionService creates a new in-memory session service.
// Sessions idle for longer than ttl are dropped; zero keeps them forever.
func NewInMemorySessionService(ttl time.Duration) *InMemorySessionService {
	return &InMemorySessionService{
		sessions: make(map[string]*core.Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// CreateSession creates a new session.
func (s *InMemorySessionService) CreateSession(ctx context.Context, req *core.CreateSessionRequest) (*core.Session, error) {
	session := newSession(req, s.now())
	if err := session.Validate(); err != nil {
		return nil, core.InvalidArgumentf("%v", err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	key := s.sessionKey(session.AppName, session.UserID, session.ID)
	if existing, exists := s.sessions[key]; exists && !expired(existing, s.ttl, s.now()) {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, session.ID)
	}

	s.sessions[key] = session
	return session.Clone(), nil
}

// GetSession retrieves a session by ID. A missing or expired session is (nil, nil).
func (s *InMemorySessionService) GetSession(ctx context.Context, req *core.GetSessionRequest) (*core.Session, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	session, exists := s.sessions[s.sessionKey(req.AppName, req.UserID, req.SessionID)]
	if !exists || expired(session, s.ttl, s.now()) {
		return nil, nil
	}
	return session.Clone(), nil
}

// UpdateSessionState replaces the state of an existing session.
func (s *InMemorySessionService) UpdateSessionState(ctx context.Context, appName, userID, sessionID string, state map[string]any) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	session, exists := s.sessions[s.sessionKey(appName, userID, sessionID)]
	if !exists || expired(session, s.ttl, s.now()) {
		return core.NotFoundf("session not found: %s", sessionID)
	}

	session.State = copyMap(state)
	session.LastUpdateTime = s.now()
	return nil
}

// DeleteSession removes a session.
func (s *InMemorySessionService) DeleteSession(ctx context.Context, req *core.DeleteSessionRequest) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.sessions, s.sessionKey(req.AppName, req.UserID, req.SessionID))
	return nil
}

// ListSessions returns sessions for a user, most recently updated first.
func (s *InMemorySessionService) ListSessions(ctx context.Context, req *core.ListSessionsRequest) (*core.ListSessionsResponse, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	now := s.now()
	sessions := make([]*core.Session, 0)
	for _, session := range s.sessions {
		if session.AppName == req.AppName && session.UserID == req.UserID && !expired(session, s.ttl, now) {
			sessions = append(sessions, session.Clone())
		}
	}
	sortSessions(sessions)

	return &core.ListSessionsResponse{
		Sessions:   sessions,
		TotalCount: len(sessions),
	}, nil
}

// CleanupExpiredSessions removes sessions idle for longer than the TTL and
// returns how many were dropped.
func (s *InMemorySessionService) CleanupExpiredSessions(ctx context.Context) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	deleted := 0
	for key, session := range s.sessions {
		if expired(session, s.ttl, now) {
			delete(s.sessions, key)
			deleted++
		}
	}
	return deleted, nil
}

// Close performs cleanup operations and closes resources.
func (s *InMemorySessionService) Close(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.sessions = make(map[string]*core.Session)
	return nil
}

// sessionKey creates a unique key for session storage.
func (s *InMemorySessionService) sessionKey(appName, userID, sessionID string) string {
	return fmt.Sprintf("%s:%s:%s", appName, userID, sessionID)
}
