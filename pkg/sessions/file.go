package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/agent-protocol/ucp-shopper/pkg/core"
)

var _ core.SessionService = (*FileSessionService)(nil)

// FileSessionService implements SessionService using one JSON file per
// session under baseDir/app/user/.
type FileSessionService struct {
	baseDir string
	ttl     time.Duration
	mutex   sync.RWMutex
	now     func() time.Time
}

// NewFileSessionService creates a new file-based session service.
func NewFileSessionService(baseDir string, ttl time.Duration) (*FileSessionService, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FileSessionService{baseDir: baseDir, ttl: ttl, now: time.Now}, nil
}

// CreateSession creates a new session.
func (f *FileSessionService) CreateSession(ctx context.Context, req *core.CreateSessionRequest) (*core.Session, error) {
	session := newSession(req, f.now())
	if err := session.Validate(); err != nil {
		return nil, core.InvalidArgumentf("%v", err)
	}
	if err := checkPathSegments(session.AppName, session.UserID, session.ID); err != nil {
		return nil, err
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	path := f.sessionPath(session.AppName, session.UserID, session.ID)
	if existing, err := f.loadSession(path); err == nil && !expired(existing, f.ttl, f.now()) {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, session.ID)
	}

	if err := f.saveSession(session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return session.Clone(), nil
}

// GetSession retrieves a session by ID. A missing or expired session is (nil, nil).
func (f *FileSessionService) GetSession(ctx context.Context, req *core.GetSessionRequest) (*core.Session, error) {
	if err := checkPathSegments(req.AppName, req.UserID, req.SessionID); err != nil {
		return nil, nil
	}

	f.mutex.RLock()
	defer f.mutex.RUnlock()

	session, err := f.loadSession(f.sessionPath(req.AppName, req.UserID, req.SessionID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if expired(session, f.ttl, f.now()) {
		return nil, nil
	}
	return session, nil
}

// UpdateSessionState replaces the state of an existing session.
func (f *FileSessionService) UpdateSessionState(ctx context.Context, appName, userID, sessionID string, state map[string]any) error {
	if err := checkPathSegments(appName, userID, sessionID); err != nil {
		return err
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	session, err := f.loadSession(f.sessionPath(appName, userID, sessionID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return core.NotFoundf("session not found: %s", sessionID)
		}
		return fmt.Errorf("failed to load session: %w", err)
	}
	if expired(session, f.ttl, f.now()) {
		return core.NotFoundf("session not found: %s", sessionID)
	}

	session.State = copyMap(state)
	session.LastUpdateTime = f.now()
	return f.saveSession(session)
}

// DeleteSession removes a session.
func (f *FileSessionService) DeleteSession(ctx context.Context, req *core.DeleteSessionRequest) error {
	if err := checkPathSegments(req.AppName, req.UserID, req.SessionID); err != nil {
		return err
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	err := os.Remove(f.sessionPath(req.AppName, req.UserID, req.SessionID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// ListSessions returns sessions for a user, most recently updated first.
func (f *FileSessionService) ListSessions(ctx context.Context, req *core.ListSessionsRequest) (*core.ListSessionsResponse, error) {
	if err := checkPathSegments(req.AppName, req.UserID); err != nil {
		return nil, err
	}

	f.mutex.RLock()
	defer f.mutex.RUnlock()

	entries, err := os.ReadDir(f.userDir(req.AppName, req.UserID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read user directory: %w", err)
	}

	now := f.now()
	sessions := make([]*core.Session, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		session, err := f.loadSession(filepath.Join(f.userDir(req.AppName, req.UserID), entry.Name()))
		if err != nil || expired(session, f.ttl, now) {
			continue
		}
		sessions = append(sessions, session)
	}
	sortSessions(sessions)

	return &core.ListSessionsResponse{
		Sessions:   sessions,
		TotalCount: len(sessions),
	}, nil
}

// Close performs cleanup operations.
func (f *FileSessionService) Close(ctx context.Context) error {
	return nil
}

func (f *FileSessionService) userDir(appName, userID string) string {
	return filepath.Join(f.baseDir, appName, userID)
}

func (f *FileSessionService) sessionPath(appName, userID, sessionID string) string {
	return filepath.Join(f.userDir(appName, userID), sessionID+".json")
}

// saveSession writes through a temp file so readers never see a partial document.
func (f *FileSessionService) saveSession(session *core.Session) error {
	path := f.sessionPath(session.AppName, session.UserID, session.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (f *FileSessionService) loadSession(path string) (*core.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var session core.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	if session.State == nil {
		session.State = make(map[string]any)
	}
	return &session, nil
}

// checkPathSegments rejects identifiers that would escape the base directory.
func checkPathSegments(segments ...string) error {
	for _, s := range segments {
		if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
			return core.InvalidArgumentf("invalid session path segment %q", s)
		}
	}
	return nil
}
