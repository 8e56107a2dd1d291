// Package api provides the HTTP surface of the shopper: tool invocation,
// session management, a live websocket channel, metrics and the A2A endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"github.com/agent-protocol/ucp-shopper/pkg/a2a"
	a2aserver "github.com/agent-protocol/ucp-shopper/pkg/a2a/server"
	"github.com/agent-protocol/ucp-shopper/pkg/config"
	"github.com/agent-protocol/ucp-shopper/pkg/core"
	"github.com/agent-protocol/ucp-shopper/pkg/negotiator"
	"github.com/agent-protocol/ucp-shopper/pkg/observability"
	"github.com/agent-protocol/ucp-shopper/pkg/runners"
	"github.com/agent-protocol/ucp-shopper/pkg/sessions"
	"github.com/agent-protocol/ucp-shopper/pkg/tools"
)

// Version is reported by /health and the agent card.
const Version = "0.1.0"

// defaultMaxMessageBytes applies when the config leaves the live message cap unset.
const defaultMaxMessageBytes = 1 << 20

// Server represents the HTTP API server.
type Server struct {
	config   config.ServerConfig
	router   *http.ServeMux
	runner   *runners.RunnerImpl
	metrics  *observability.Metrics
	card     *a2a.AgentCard
	a2a      *a2aserver.A2AServer
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// InvokeRequest is the body of POST /invoke.
type InvokeRequest struct {
	UserID    string         `json:"user_id"`
	SessionID string         `json:"session_id,omitempty"`
	Tool      string         `json:"tool"`
	Args      map[string]any `json:"args,omitempty"`
}

// CreateSessionRequest represents a request to create a session.
type CreateSessionRequest struct {
	State map[string]any `json:"state,omitempty"`
}

// NewServer creates a new API server instance.
func NewServer(cfg config.ServerConfig, runner *runners.RunnerImpl, metrics *observability.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:  cfg,
		runner:  runner,
		metrics: metrics,
		logger:  logger,
		card:    a2aserver.AgentCard(cfg.AppName, cfg.BaseURL+"/a2a", Version, runner.Dispatcher().Declarations()),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return originAllowed(cfg.AllowOrigins, r.Header.Get("Origin")) },
		},
	}
	if cfg.A2AEnabled {
		s.a2a = a2aserver.NewA2AServer(runner, s.card, logger)
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router = http.NewServeMux()

	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /list-tools", s.handleListTools)
	s.router.HandleFunc("GET /stores", s.handleStores)
	s.router.HandleFunc("POST /invoke", s.handleInvoke)
	s.router.HandleFunc("GET /invoke_live", s.handleInvokeLive)
	s.router.HandleFunc("GET /.well-known/agent.json", s.handleAgentCard)

	s.router.HandleFunc("GET /apps/{app}/users/{user}/sessions", s.handleListSessions)
	s.router.HandleFunc("POST /apps/{app}/users/{user}/sessions", s.handleCreateSession)
	s.router.HandleFunc("POST /apps/{app}/users/{user}/sessions/{session}", s.handleCreateSession)
	s.router.HandleFunc("GET /apps/{app}/users/{user}/sessions/{session}", s.handleGetSession)
	s.router.HandleFunc("DELETE /apps/{app}/users/{user}/sessions/{session}", s.handleDeleteSession)
	s.router.HandleFunc("PUT /apps/{app}/users/{user}/sessions/{session}/payment", s.handleSetPayment)

	if s.metrics != nil {
		s.router.Handle("GET /metrics", s.metrics.Handler())
	}
	if s.a2a != nil {
		s.router.Handle("POST /a2a", s.a2a)
	}
}

// Handler returns the router wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.config.AllowOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})
	return c.Handler(s.router)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting shopper API server",
			slog.String("address", srv.Addr),
			slog.String("base_url", s.config.BaseURL),
			slog.Bool("a2a", s.a2a != nil))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down shopper API server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": Version,
		"stores":  s.runner.Dispatcher().Registry().Len(),
	})
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.Dispatcher().Declarations())
}

func (s *Server) handleStores(w http.ResponseWriter, r *http.Request) {
	reg := s.runner.Dispatcher().Registry()
	stores := reg.List()
	items := make([]tools.StoreListing, 0, len(stores))
	for _, st := range stores {
		items = append(items, tools.StoreListing{
			StoreInfo:        st.Info(),
			SupportsCheckout: st.Supports(core.CapabilityCheckout),
		})
	}
	d := negotiator.ChooseDefault(reg)
	writeJSON(w, http.StatusOK, map[string]any{
		"stores":                    items,
		"recommended_default_store": d.SelectedStoreID,
		"explanation":               d.Explanation,
	})
}

func (s *Server) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.card)
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	var req InvokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, core.InvalidArgumentf("invalid request body: %v", err))
		return
	}

	resp, err := s.runner.Run(r.Context(), &runners.RunRequest{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Tool:      req.Tool,
		Args:      req.Args,
	})
	if err != nil {
		s.logger.Error("invoke failed", slog.String("tool", req.Tool), slog.Any("error", err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// liveMessage is one tool call read from /invoke_live.
type liveMessage struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

// handleInvokeLive runs tool calls received over a websocket, one at a time,
// replying to each with the same body POST /invoke returns.
func (s *Server) handleInvokeLive(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	userID := query.Get("user_id")
	sessionID := query.Get("session_id")
	if userID == "" {
		http.Error(w, "Missing required parameter: user_id", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade websocket connection", slog.Any("error", err))
		return
	}
	defer conn.Close()

	limit := s.config.MaxMessageBytes
	if limit <= 0 {
		limit = defaultMaxMessageBytes
	}
	conn.SetReadLimit(limit)

	s.metrics.ConnectionOpened()
	defer s.metrics.ConnectionClosed()

	ctx := r.Context()
	for {
		var msg liveMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", slog.Any("error", err))
			}
			return
		}

		resp, err := s.runner.Run(ctx, &runners.RunRequest{
			UserID:    userID,
			SessionID: sessionID,
			Tool:      msg.Tool,
			Args:      msg.Args,
		})
		if err != nil {
			if werr := conn.WriteJSON(map[string]any{"error": errorMessage(err)}); werr != nil {
				return
			}
			continue
		}
		sessionID = resp.SessionID
		if err := conn.WriteJSON(resp); err != nil {
			s.logger.Warn("websocket write failed", slog.Any("error", err))
			return
		}
	}
}

// checkApp rejects requests for an app this server does not host.
func (s *Server) checkApp(w http.ResponseWriter, r *http.Request) bool {
	if app := r.PathValue("app"); app != s.runner.AppName() {
		writeError(w, core.NotFoundf("unknown app: %s", app))
		return false
	}
	return true
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if !s.checkApp(w, r) {
		return
	}
	resp, err := s.runner.Sessions().ListSessions(r.Context(), &core.ListSessionsRequest{
		AppName: s.runner.AppName(),
		UserID:  r.PathValue("user"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp.Sessions)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	if !s.checkApp(w, r) {
		return
	}

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, core.InvalidArgumentf("invalid request body: %v", err))
		return
	}

	create := &core.CreateSessionRequest{
		AppName: s.runner.AppName(),
		UserID:  r.PathValue("user"),
		State:   req.State,
	}
	if id := r.PathValue("session"); id != "" {
		create.SessionID = &id
	}

	session, err := s.runner.Sessions().CreateSession(r.Context(), create)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if !s.checkApp(w, r) {
		return
	}
	session, err := s.runner.Sessions().GetSession(r.Context(), &core.GetSessionRequest{
		AppName:   s.runner.AppName(),
		UserID:    r.PathValue("user"),
		SessionID: r.PathValue("session"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if session == nil {
		writeError(w, core.NotFoundf("session not found: %s", r.PathValue("session")))
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.checkApp(w, r) {
		return
	}
	err := s.runner.Sessions().DeleteSession(r.Context(), &core.DeleteSessionRequest{
		AppName:   s.runner.AppName(),
		UserID:    r.PathValue("user"),
		SessionID: r.PathValue("session"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetPayment stores the payment data the buyer confirmed in the host UI.
func (s *Server) handleSetPayment(w http.ResponseWriter, r *http.Request) {
	if !s.checkApp(w, r) {
		return
	}

	var payment core.PaymentState
	if err := json.NewDecoder(r.Body).Decode(&payment); err != nil {
		writeError(w, core.InvalidArgumentf("invalid request body: %v", err))
		return
	}

	if err := s.runner.SetPayment(r.Context(), r.PathValue("user"), r.PathValue("session"), &payment); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps error kinds to status codes. Internal details stay out of
// the response body.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, sessions.ErrSessionExists):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]any{"error": errorMessage(err)})
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidArgument), errors.Is(err, core.ErrNotFound), errors.Is(err, sessions.ErrSessionExists):
		return core.Cause(err)
	default:
		return "internal error"
	}
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return true
	}
	for _, o := range allowed {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}
