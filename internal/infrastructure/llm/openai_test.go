package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newChatServer(t *testing.T, statusCode int, body any, inspect func(*http.Request)) (*httptest.Server, *http.Client) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inspect != nil {
			inspect(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		if err := json.NewEncoder(w).Encode(body); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, srv.Client()
}

func choices(content string) map[string]any {
	return map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"content": content}},
		},
	}
}

func TestComplete_Success(t *testing.T) {
	var gotReq chatRequest
	var gotAuth, gotPath string
	srv, client := newChatServer(t, http.StatusOK, choices(`  {"job_title":"Go Dev"}  `), func(r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
	})

	p := NewOpenAIProvider(srv.URL+"/", "test-key", "test-model", client)
	got, err := p.Complete(context.Background(), "extract this", CompletionOptions{MaxTokens: 2000, Temperature: 0.1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"job_title":"Go Dev"}` {
		t.Fatalf("unexpected content: %q", got)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if gotPath != "/chat/completions" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
	if gotReq.Model != "test-model" || gotReq.MaxTokens != 2000 || gotReq.Temperature != 0.1 {
		t.Fatalf("unexpected request: %+v", gotReq)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[1].Content != "extract this" {
		t.Fatalf("unexpected messages: %+v", gotReq.Messages)
	}
}

func TestComplete_Errors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   any
	}{
		{name: "server error", status: http.StatusInternalServerError, body: map[string]string{"error": "boom"}},
		{name: "rate limited", status: http.StatusTooManyRequests, body: map[string]string{"error": "slow down"}},
		{name: "no choices", status: http.StatusOK, body: map[string]any{"choices": []any{}}},
		{name: "empty content", status: http.StatusOK, body: choices("   ")},
		{name: "api error", status: http.StatusOK, body: map[string]any{"error": map[string]string{"message": "bad", "type": "invalid_request_error"}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, client := newChatServer(t, tc.status, tc.body, nil)
			p := NewOpenAIProvider(srv.URL, "test-key", "", client)
			if _, err := p.Complete(context.Background(), "x", CompletionOptions{}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestComplete_MissingAPIKey(t *testing.T) {
	p := NewOpenAIProvider("", " ", "", nil)
	_, err := p.Complete(context.Background(), "x", CompletionOptions{})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}
