// Package server exposes the shopping tools as an A2A JSON-RPC endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agent-protocol/ucp-shopper/internal/jsonrpc2"
	"github.com/agent-protocol/ucp-shopper/pkg/a2a"
	"github.com/agent-protocol/ucp-shopper/pkg/core"
	"github.com/agent-protocol/ucp-shopper/pkg/runners"
)

// DefaultUserID is used when a message does not name its user.
const DefaultUserID = "a2a"

// defaultMaxTasks bounds the finished tasks kept for tasks/get.
const defaultMaxTasks = 1000

// A2AServer runs one tool call per message/send. The message must carry a
// data part {"tool": name, "args": {...}}; the message contextId is the
// session id.
type A2AServer struct {
	runner   *runners.RunnerImpl
	card     *a2a.AgentCard
	rpc      *jsonrpc2.Server
	logger   *slog.Logger
	maxTasks int

	mu    sync.RWMutex
	tasks map[string]*a2a.Task
	order []string
}

// NewA2AServer creates a new A2A server.
func NewA2AServer(runner *runners.RunnerImpl, card *a2a.AgentCard, logger *slog.Logger) *A2AServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &A2AServer{
		runner:   runner,
		card:     card,
		logger:   logger,
		maxTasks: defaultMaxTasks,
		tasks:    make(map[string]*a2a.Task),
	}
	s.rpc = jsonrpc2.NewServer(jsonrpc2.HandlerFunc(s.handle), logger)
	return s
}

// AgentCard builds the card advertising every tool as a skill.
func AgentCard(name, url, version string, decls []*core.FunctionDeclaration) *a2a.AgentCard {
	skills := make([]a2a.AgentSkill, 0, len(decls))
	for _, d := range decls {
		skills = append(skills, a2a.AgentSkill{
			ID:          d.Name,
			Name:        d.Name,
			Description: d.Description,
			Tags:        []string{"shopping"},
		})
	}
	return &a2a.AgentCard{
		Name:               name,
		Description:        "Shopping agent that searches merchant catalogs and completes UCP checkouts.",
		URL:                url,
		Version:            version,
		ProtocolVersion:    "0.3.0",
		DefaultInputModes:  []string{"application/json"},
		DefaultOutputModes: []string{"application/json", "text/plain"},
		Skills:             skills,
	}
}

// GetAgentCard returns the server's agent card.
func (s *A2AServer) GetAgentCard() *a2a.AgentCard {
	return s.card
}

// ServeHTTP implements http.Handler for the A2A server.
func (s *A2AServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.rpc.ServeHTTP(w, r)
}

func (s *A2AServer) handle(ctx context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case "agents/card":
		return s.card, nil
	case "message/send":
		var p a2a.MessageSendParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return s.handleSendMessage(ctx, &p)
	case "tasks/get":
		var p a2a.TaskQueryParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return s.handleGetTask(&p)
	case "tasks/cancel":
		var p a2a.TaskIDParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return s.handleCancelTask(&p)
	default:
		return nil, jsonrpc2.ErrMethodNotFound
	}
}

func decodeParams(params json.RawMessage, dst any) error {
	if len(params) == 0 {
		return jsonrpc2.InvalidParams(errors.New("params are required"))
	}
	if err := json.Unmarshal(params, dst); err != nil {
		return jsonrpc2.InvalidParams(err)
	}
	return nil
}

// toolCall is the data part payload of a message/send.
type toolCall struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

func findToolCall(msg *a2a.Message) (*toolCall, bool) {
	for _, part := range msg.Parts {
		if part.Kind != a2a.PartKindData {
			continue
		}
		name, ok := part.Data["tool"].(string)
		if !ok || name == "" {
			continue
		}
		call := &toolCall{Tool: name}
		if args, ok := part.Data["args"].(map[string]any); ok {
			call.Args = args
		}
		return call, true
	}
	return nil, false
}

// handleSendMessage runs the tool call synchronously and records the task.
func (s *A2AServer) handleSendMessage(ctx context.Context, p *a2a.MessageSendParams) (*a2a.Task, error) {
	if p.Message.MessageID == "" {
		return nil, jsonrpc2.InvalidParams(errors.New("messageId is required in message"))
	}
	call, ok := findToolCall(&p.Message)
	if !ok {
		return nil, jsonrpc2.InvalidParams(errors.New(`message needs a data part with {"tool": name, "args": {...}}`))
	}

	userID := DefaultUserID
	if v, ok := p.Metadata["user_id"].(string); ok && v != "" {
		userID = v
	}

	resp, err := s.runner.Run(ctx, &runners.RunRequest{
		UserID:    userID,
		SessionID: p.Message.ContextID,
		Tool:      call.Tool,
		Args:      call.Args,
	})
	if err != nil {
		if errors.Is(err, core.ErrInvalidArgument) {
			return nil, jsonrpc2.InvalidParams(err)
		}
		return nil, err
	}

	task := s.newTask(resp, &p.Message)
	s.store(task)

	s.logger.Info("a2a task finished",
		slog.String("task_id", task.ID),
		slog.String("context_id", task.ContextID),
		slog.String("tool", call.Tool),
		slog.String("state", string(task.Status.State)))
	return task, nil
}

func (s *A2AServer) newTask(resp *runners.RunResponse, msg *a2a.Message) *a2a.Task {
	now := time.Now().UTC()
	result := resp.Result

	status := a2a.TaskStatus{State: taskState(result.Outcome), Timestamp: &now}
	if result.Message != "" {
		status.Message = &a2a.Message{
			Kind:      "message",
			MessageID: uuid.NewString(),
			Role:      "agent",
			Parts:     []a2a.Part{a2a.TextPart(result.Message)},
			ContextID: resp.SessionID,
		}
	}

	data, err := resultData(result)
	if err != nil {
		s.logger.Error("failed to encode tool result", slog.Any("error", err))
		data = map[string]any{"status": string(result.Status()), "message": result.Message}
	}

	taskID := uuid.NewString()
	msg.TaskID = taskID
	msg.ContextID = resp.SessionID
	return &a2a.Task{
		Kind:      "task",
		ID:        taskID,
		ContextID: resp.SessionID,
		Status:    status,
		Artifacts: []a2a.Artifact{{
			ArtifactID: uuid.NewString(),
			Name:       "tool_result",
			Parts:      []a2a.Part{a2a.DataPart(data)},
		}},
		History: []a2a.Message{*msg},
	}
}

// resultData renders the result as generic JSON so stored tasks never
// alias live objects.
func resultData(result core.Result) (map[string]any, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func taskState(o core.Outcome) a2a.TaskState {
	switch o {
	case core.OutcomeSuccess:
		return a2a.TaskStateCompleted
	case core.OutcomeNeedsMoreInfo:
		return a2a.TaskStateInputRequired
	default:
		return a2a.TaskStateFailed
	}
}

func (s *A2AServer) store(task *a2a.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[task.ID] = task
	s.order = append(s.order, task.ID)
	for len(s.order) > s.maxTasks {
		delete(s.tasks, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *A2AServer) lookup(id string) (*a2a.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, jsonrpc2.NewError(a2a.CodeTaskNotFound, "Task not found", id)
	}
	return task, nil
}

// handleGetTask handles the tasks/get method.
func (s *A2AServer) handleGetTask(p *a2a.TaskQueryParams) (*a2a.Task, error) {
	return s.lookup(p.ID)
}

// handleCancelTask handles the tasks/cancel method. Tasks finish within
// message/send, so a known task is never cancelable.
func (s *A2AServer) handleCancelTask(p *a2a.TaskIDParams) (*a2a.Task, error) {
	task, err := s.lookup(p.ID)
	if err != nil {
		return nil, err
	}
	return nil, jsonrpc2.NewError(a2a.CodeTaskNotCancelable, "Task cannot be canceled",
		fmt.Sprintf("task %s is %s", task.ID, task.Status.State))
}
