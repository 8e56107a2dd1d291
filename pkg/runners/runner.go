// Package runners binds tool dispatch to persisted sessions.
package runners

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/agent-protocol/ucp-shopper/internal/keymutex"
	"github.com/agent-protocol/ucp-shopper/pkg/core"
	"github.com/agent-protocol/ucp-shopper/pkg/dispatcher"
	"github.com/agent-protocol/ucp-shopper/pkg/sessions"
)

// RunRequest is one tool call on behalf of a user session. An empty
// SessionID starts a new session.
type RunRequest struct {
	UserID    string         `json:"user_id"`
	SessionID string         `json:"session_id,omitempty"`
	Tool      string         `json:"tool"`
	Args      map[string]any `json:"args,omitempty"`
}

// RunResponse carries the tool result and the session it ran in.
type RunResponse struct {
	SessionID string      `json:"session_id"`
	Result    core.Result `json:"result"`
}

// RunnerImpl loads the caller's session, dispatches the call and persists
// the resulting state. Calls for the same session are serialized.
type RunnerImpl struct {
	appName        string
	dispatcher     *dispatcher.Dispatcher
	sessionService core.SessionService
	locks          *keymutex.KeyMutex
	logger         *slog.Logger
}

// NewRunner creates a new runner implementation.
func NewRunner(appName string, d *dispatcher.Dispatcher, sessionService core.SessionService) *RunnerImpl {
	return &RunnerImpl{
		appName:        appName,
		dispatcher:     d,
		sessionService: sessionService,
		locks:          keymutex.New(),
		logger:         slog.Default(),
	}
}

// SetLogger sets the logger.
func (r *RunnerImpl) SetLogger(l *slog.Logger) {
	r.logger = l
}

// AppName returns the application name sessions are stored under.
func (r *RunnerImpl) AppName() string { return r.appName }

// Dispatcher returns the underlying dispatcher.
func (r *RunnerImpl) Dispatcher() *dispatcher.Dispatcher { return r.dispatcher }

// Sessions returns the session service.
func (r *RunnerImpl) Sessions() core.SessionService { return r.sessionService }

// Run executes one tool call. The returned error covers session storage
// failures only; tool failures are reported in the result.
func (r *RunnerImpl) Run(ctx context.Context, req *RunRequest) (*RunResponse, error) {
	if req.UserID == "" {
		return nil, core.InvalidArgumentf("user_id is required")
	}
	if req.Tool == "" {
		return nil, core.InvalidArgumentf("tool is required")
	}

	session, unlock, err := r.lockSession(ctx, req.UserID, req.SessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	state := core.NewStateContext(session)
	result := r.dispatcher.Invoke(ctx, req.Tool, req.Args, state)

	// Persist even when the request context is done so the mirror never
	// lags a committed checkout change.
	if err := r.sessionService.UpdateSessionState(context.WithoutCancel(ctx), r.appName, req.UserID, session.ID, session.State); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return &RunResponse{SessionID: session.ID, Result: result}, nil
}

// SetPayment stores the buyer's payment data in the session so the next
// complete_checkout call can use it.
func (r *RunnerImpl) SetPayment(ctx context.Context, userID, sessionID string, payment *core.PaymentState) error {
	if payment == nil || payment.Instrument.ID == "" {
		return core.InvalidArgumentf("payment instrument id is required")
	}

	unlock := r.locks.Lock(r.lockKey(userID, sessionID))
	defer unlock()

	session, err := r.sessionService.GetSession(ctx, &core.GetSessionRequest{
		AppName:   r.appName,
		UserID:    userID,
		SessionID: sessionID,
	})
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return core.NotFoundf("session not found: %s", sessionID)
	}

	core.NewStateContext(session).SetPaymentState(payment)
	return r.sessionService.UpdateSessionState(ctx, r.appName, userID, sessionID, session.State)
}

// Close releases the session backend.
func (r *RunnerImpl) Close(ctx context.Context) error {
	return r.sessionService.Close(ctx)
}

// lockSession resolves the session and holds its lock. A new session is
// created when sessionID is empty or unknown.
func (r *RunnerImpl) lockSession(ctx context.Context, userID, sessionID string) (*core.Session, func(), error) {
	if sessionID == "" {
		session, err := r.createSession(ctx, userID, "")
		if err != nil {
			return nil, nil, err
		}
		sessionID = session.ID
	}

	unlock := r.locks.Lock(r.lockKey(userID, sessionID))
	session, err := r.getOrCreateSession(ctx, userID, sessionID)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return session, unlock, nil
}

// getOrCreateSession gets an existing session or creates a new one.
func (r *RunnerImpl) getOrCreateSession(ctx context.Context, userID, sessionID string) (*core.Session, error) {
	session, err := r.sessionService.GetSession(ctx, &core.GetSessionRequest{
		AppName:   r.appName,
		UserID:    userID,
		SessionID: sessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session != nil {
		return session, nil
	}
	return r.createSession(ctx, userID, sessionID)
}

func (r *RunnerImpl) createSession(ctx context.Context, userID, sessionID string) (*core.Session, error) {
	req := &core.CreateSessionRequest{
		AppName: r.appName,
		UserID:  userID,
		State:   make(map[string]any),
	}
	if sessionID != "" {
		req.SessionID = &sessionID
	}

	session, err := r.sessionService.CreateSession(ctx, req)
	if errors.Is(err, sessions.ErrSessionExists) {
		// Lost a creation race; the winner's session is the one to use.
		return r.getOrCreateSession(ctx, userID, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	r.logger.Debug("session created", slog.String("session_id", session.ID), slog.String("user_id", userID))
	return session, nil
}

func (r *RunnerImpl) lockKey(userID, sessionID string) string {
	return userID + "\x00" + sessionID
}
