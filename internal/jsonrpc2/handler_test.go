package jsonrpc2

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

type echoParams struct {
	Text string `json:"text"`
}

func newTestServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	handler := HandlerFunc(func(ctx context.Context, method string, params json.RawMessage) (any, error) {
		calls.Add(1)
		switch method {
		case "echo":
			var p echoParams
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, InvalidParams(err)
			}
			return map[string]string{"text": p.Text}, nil
		case "boom":
			return nil, errors.New("database on fire")
		case "missing":
			return nil, NewError(-32001, "Task not found", "t-1")
		default:
			return nil, ErrMethodNotFound
		}
	})
	ts := httptest.NewServer(NewServer(handler, nil))
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	return resp, buf.Bytes()
}

func decodeResponse(t *testing.T, body []byte) Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("Failed to parse response %s: %v", body, err)
	}
	return resp
}

func TestSingleRequest(t *testing.T) {
	var calls atomic.Int32
	ts := newTestServer(t, &calls)

	_, body := post(t, ts.URL, `{"jsonrpc":"2.0","id":1,"method":"echo","params":{"text":"hola"}}`)
	resp := decodeResponse(t, body)

	if resp.JSONRPC != "2.0" {
		t.Errorf("Expected JSONRPC version 2.0, got %s", resp.JSONRPC)
	}
	if resp.ID != float64(1) {
		t.Errorf("Expected ID 1, got %v", resp.ID)
	}
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]any)
	if !ok || result["text"] != "hola" {
		t.Errorf("Unexpected result: %v", resp.Result)
	}
}

func TestErrorCodes(t *testing.T) {
	var calls atomic.Int32
	ts := newTestServer(t, &calls)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"parse error", `{"jsonrpc":`, CodeParseError},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"echo"}`, CodeInvalidRequest},
		{"no method", `{"jsonrpc":"2.0","id":1}`, CodeInvalidRequest},
		{"unknown method", `{"jsonrpc":"2.0","id":1,"method":"nope"}`, CodeMethodNotFound},
		{"bad params", `{"jsonrpc":"2.0","id":1,"method":"echo","params":[1]}`, CodeInvalidParams},
		{"internal", `{"jsonrpc":"2.0","id":1,"method":"boom"}`, CodeInternalError},
		{"custom", `{"jsonrpc":"2.0","id":1,"method":"missing"}`, -32001},
		{"empty batch", `[]`, CodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, body := post(t, ts.URL, tt.body)
			resp := decodeResponse(t, body)
			if resp.Error == nil {
				t.Fatalf("Expected error, got %s", body)
			}
			if resp.Error.Code != tt.code {
				t.Errorf("Expected code %d, got %d", tt.code, resp.Error.Code)
			}
		})
	}
}

func TestInternalErrorHidesDetail(t *testing.T) {
	var calls atomic.Int32
	ts := newTestServer(t, &calls)

	_, body := post(t, ts.URL, `{"jsonrpc":"2.0","id":"x","method":"boom"}`)
	if bytes.Contains(body, []byte("database on fire")) {
		t.Errorf("Internal error leaked detail: %s", body)
	}
}

func TestBatchRequest(t *testing.T) {
	var calls atomic.Int32
	ts := newTestServer(t, &calls)

	_, body := post(t, ts.URL, `[
		{"jsonrpc":"2.0","id":1,"method":"echo","params":{"text":"a"}},
		{"jsonrpc":"2.0","method":"echo","params":{"text":"notify"}},
		{"jsonrpc":"2.0","id":2,"method":"nope"}
	]`)

	var responses []Response
	if err := json.Unmarshal(body, &responses); err != nil {
		t.Fatalf("Failed to parse batch response %s: %v", body, err)
	}
	if len(responses) != 2 {
		t.Fatalf("Expected 2 responses, got %d", len(responses))
	}
	if responses[0].Error != nil {
		t.Errorf("Unexpected error in first response: %+v", responses[0].Error)
	}
	if responses[1].Error == nil || responses[1].Error.Code != CodeMethodNotFound {
		t.Errorf("Expected method not found, got %+v", responses[1].Error)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 handler calls, got %d", calls.Load())
	}
}

func TestNotificationHasNoBody(t *testing.T) {
	var calls atomic.Int32
	ts := newTestServer(t, &calls)

	resp, body := post(t, ts.URL, `{"jsonrpc":"2.0","method":"echo","params":{"text":"n"}}`)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected status %d, got %d", http.StatusNoContent, resp.StatusCode)
	}
	if len(body) != 0 {
		t.Errorf("Expected empty body, got %s", body)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected notification to run once, got %d", calls.Load())
	}
}

func TestRejectsGet(t *testing.T) {
	var calls atomic.Int32
	ts := newTestServer(t, &calls)

	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("Expected status %d, got %d", http.StatusMethodNotAllowed, resp.StatusCode)
	}
}
