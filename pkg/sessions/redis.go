package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/agent-protocol/ucp-shopper/pkg/core"
)

// Key prefixes for session documents and the per-user index.
const (
	prefixSession = "shopper:session:"
	zUserSessions = "shopper:z:session:" // + app:user
)

var _ core.SessionService = (*RedisSessionService)(nil)

// RedisSessionService stores each session as a JSON document with the
// configured TTL and indexes a user's sessions in a sorted set scored by
// last update time.
type RedisSessionService struct {
	rdb goredis.UniversalClient
	ttl time.Duration
}

// NewRedisSessionService wraps an existing client. The service takes
// ownership and closes it in Close.
func NewRedisSessionService(rdb goredis.UniversalClient, ttl time.Duration) *RedisSessionService {
	return &RedisSessionService{rdb: rdb, ttl: ttl}
}

// NewRedisSessionServiceFromURL connects to the redis:// URL and verifies
// the connection.
func NewRedisSessionServiceFromURL(ctx context.Context, url string, ttl time.Duration) (*RedisSessionService, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisSessionService(rdb, ttl), nil
}

func sessionKey(appName, userID, sessionID string) string {
	return prefixSession + appName + ":" + userID + ":" + sessionID
}

func userIndexKey(appName, userID string) string {
	return zUserSessions + appName + ":" + userID
}

func isRedisNil(err error) bool {
	return errors.Is(err, goredis.Nil)
}

// CreateSession creates a new session. The write fails if the id is taken.
func (s *RedisSessionService) CreateSession(ctx context.Context, req *core.CreateSessionRequest) (*core.Session, error) {
	session := newSession(req, time.Now())
	if err := session.Validate(); err != nil {
		return nil, core.InvalidArgumentf("%v", err)
	}

	raw, err := json.Marshal(session)
	if err != nil {
		return nil, fmt.Errorf("marshal session: %w", err)
	}

	ok, err := s.rdb.SetNX(ctx, sessionKey(session.AppName, session.UserID, session.ID), raw, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis create session: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, session.ID)
	}

	if err := s.index(ctx, session); err != nil {
		return nil, err
	}
	return session.Clone(), nil
}

// GetSession retrieves a session by ID. A missing or expired session is (nil, nil).
func (s *RedisSessionService) GetSession(ctx context.Context, req *core.GetSessionRequest) (*core.Session, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(req.AppName, req.UserID, req.SessionID)).Bytes()
	if err != nil {
		if isRedisNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	return decodeSession(raw)
}

// UpdateSessionState replaces the state of an existing session and
// refreshes its TTL.
func (s *RedisSessionService) UpdateSessionState(ctx context.Context, appName, userID, sessionID string, state map[string]any) error {
	session := &core.Session{
		ID:             sessionID,
		AppName:        appName,
		UserID:         userID,
		State:          copyMap(state),
		LastUpdateTime: time.Now(),
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	ok, err := s.rdb.SetXX(ctx, sessionKey(appName, userID, sessionID), raw, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis update session: %w", err)
	}
	if !ok {
		return core.NotFoundf("session not found: %s", sessionID)
	}
	return s.index(ctx, session)
}

// DeleteSession removes a session and its index entry.
func (s *RedisSessionService) DeleteSession(ctx context.Context, req *core.DeleteSessionRequest) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(req.AppName, req.UserID, req.SessionID))
		pipe.ZRem(ctx, userIndexKey(req.AppName, req.UserID), req.SessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

// ListSessions returns sessions for a user, most recently updated first.
// Index entries whose document has expired are pruned.
func (s *RedisSessionService) ListSessions(ctx context.Context, req *core.ListSessionsRequest) (*core.ListSessionsResponse, error) {
	indexKey := userIndexKey(req.AppName, req.UserID)
	ids, err := s.rdb.ZRevRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list sessions: %w", err)
	}

	sessions := make([]*core.Session, 0, len(ids))
	if len(ids) == 0 {
		return &core.ListSessionsResponse{Sessions: sessions}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = sessionKey(req.AppName, req.UserID, id)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list sessions: %w", err)
	}

	var stale []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		session, err := decodeSession([]byte(raw))
		if err != nil {
			continue
		}
		sessions = append(sessions, session)
	}
	if len(stale) > 0 {
		s.rdb.ZRem(ctx, indexKey, stale...)
	}
	sortSessions(sessions)

	return &core.ListSessionsResponse{
		Sessions:   sessions,
		TotalCount: len(sessions),
	}, nil
}

// Close closes the underlying client.
func (s *RedisSessionService) Close(ctx context.Context) error {
	return s.rdb.Close()
}

func (s *RedisSessionService) index(ctx context.Context, session *core.Session) error {
	indexKey := userIndexKey(session.AppName, session.UserID)
	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.ZAdd(ctx, indexKey, goredis.Z{
			Score:  float64(session.LastUpdateTime.UnixNano()) / 1e9,
			Member: session.ID,
		})
		if s.ttl > 0 {
			pipe.Expire(ctx, indexKey, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis index session: %w", err)
	}
	return nil
}

func decodeSession(raw []byte) (*core.Session, error) {
	var session core.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if session.State == nil {
		session.State = make(map[string]any)
	}
	return &session, nil
}
