// Package jsonrpc2 implements JSON-RPC 2.0 framing over HTTP POST.
package jsonrpc2

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

// Version is the only protocol version accepted.
const Version = "2.0"

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// maxBodyBytes bounds a single request or batch.
const maxBodyBytes = 1 << 20

// Request is a JSON-RPC request or notification. A notification has no ID.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC response. Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error is a JSON-RPC error object. Handlers return it to control the code
// sent to the client; any other error becomes an internal error.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// NewError creates an error with the given code.
func NewError(code int, message string, data any) *Error {
	return &Error{Code: code, Message: message, Data: data}
}

// ErrMethodNotFound is returned by handlers for methods they do not serve.
var ErrMethodNotFound = &Error{Code: CodeMethodNotFound, Message: "Method not found"}

// InvalidParams wraps a params decoding failure.
func InvalidParams(err error) *Error {
	return &Error{Code: CodeInvalidParams, Message: "Invalid parameters", Data: err.Error()}
}

// Handler serves JSON-RPC methods.
type Handler interface {
	Handle(ctx context.Context, method string, params json.RawMessage) (any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, method string, params json.RawMessage) (any, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, method string, params json.RawMessage) (any, error) {
	return f(ctx, method, params)
}

// Server represents a JSON-RPC 2.0 server.
type Server struct {
	handler Handler
	logger  *slog.Logger
}

// NewServer creates a new JSON-RPC 2.0 server with the given handler.
func NewServer(handler Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{handler: handler, logger: logger}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Error reading request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	w.Header().Set("Content-Type", "application/json")

	if isBatch(body) {
		s.handleBatchRequest(r.Context(), w, body)
	} else {
		s.handleSingleRequest(r.Context(), w, body)
	}
}

func isBatch(body []byte) bool {
	for _, c := range body {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return c == '['
	}
	return false
}

// handleSingleRequest processes a single JSON-RPC request.
func (s *Server) handleSingleRequest(ctx context.Context, w http.ResponseWriter, body []byte) {
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		s.write(w, errorResponse(nil, NewError(CodeParseError, "Invalid JSON payload", nil)))
		return
	}

	if resp := s.processRequest(ctx, req); resp != nil {
		s.write(w, resp)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleBatchRequest processes a batch of JSON-RPC requests.
func (s *Server) handleBatchRequest(ctx context.Context, w http.ResponseWriter, body []byte) {
	var requests []Request
	if err := json.Unmarshal(body, &requests); err != nil {
		s.write(w, errorResponse(nil, NewError(CodeParseError, "Invalid JSON payload", nil)))
		return
	}

	if len(requests) == 0 {
		s.write(w, errorResponse(nil, NewError(CodeInvalidRequest, "Request payload validation error", "Batch request cannot be empty")))
		return
	}

	responses := make([]*Response, 0, len(requests))
	for _, req := range requests {
		if resp := s.processRequest(ctx, req); resp != nil {
			responses = append(responses, resp)
		}
	}

	if len(responses) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.write(w, responses)
}

// processRequest handles one request. Notifications run but produce no response.
func (s *Server) processRequest(ctx context.Context, req Request) *Response {
	if req.JSONRPC != Version {
		return errorResponse(req.ID, NewError(CodeInvalidRequest, "Request payload validation error", "jsonrpc must be '2.0'"))
	}
	if req.Method == "" {
		return errorResponse(req.ID, NewError(CodeInvalidRequest, "Request payload validation error", "method is required"))
	}

	result, err := s.handler.Handle(ctx, req.Method, req.Params)

	if req.ID == nil {
		if err != nil {
			s.logger.Warn("notification failed", slog.String("method", req.Method), slog.Any("error", err))
		}
		return nil
	}

	if err != nil {
		var rpcErr *Error
		if errors.As(err, &rpcErr) {
			return errorResponse(req.ID, rpcErr)
		}
		s.logger.Error("rpc method failed", slog.String("method", req.Method), slog.Any("error", err))
		return errorResponse(req.ID, NewError(CodeInternalError, "Internal error", nil))
	}

	return &Response{JSONRPC: Version, ID: req.ID, Result: result}
}

func (s *Server) write(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to write rpc response", slog.Any("error", err))
	}
}

func errorResponse(id any, err *Error) *Response {
	return &Response{JSONRPC: Version, ID: id, Error: err}
}
