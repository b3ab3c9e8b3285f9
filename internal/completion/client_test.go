package completion

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

type request struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newServer(t *testing.T, status int, body string, got *request, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		if r.Method != http.MethodPost || r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		if got != nil {
			data, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(data, got); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(Config{APIKey: "test-key", BaseURL: baseURL + "/v1/"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestComplete_Success(t *testing.T) {
	t.Parallel()

	var req request
	srv := newServer(t, http.StatusOK, `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 1,
		"model": "gpt-3.5-turbo",
		"choices": [{"index": 0, "finish_reason": "stop",
			"message": {"role": "assistant", "content": "Luzes acesas."}}]
	}`, &req, nil)

	reply := newClient(t, srv.URL).Complete(context.Background(), "turn on the lights")
	if reply != "Luzes acesas." {
		t.Errorf("reply = %q", reply)
	}
	if req.Model != DefaultModel {
		t.Errorf("model = %q, want %q", req.Model, DefaultModel)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" || req.Messages[0].Content != "turn on the lights" {
		t.Errorf("messages = %+v, want one user message", req.Messages)
	}
}

func TestComplete_MissingChoices(t *testing.T) {
	t.Parallel()

	srv := newServer(t, http.StatusOK, `{"id": "chatcmpl-2", "object": "chat.completion"}`, nil, nil)

	if reply := newClient(t, srv.URL).Complete(context.Background(), "oi"); reply != DefaultFallbackReply {
		t.Errorf("reply = %q, want fallback", reply)
	}
}

func TestComplete_EmptyContent(t *testing.T) {
	t.Parallel()

	srv := newServer(t, http.StatusOK, `{"id": "chatcmpl-3", "choices": [{"index": 0, "message": {"role": "assistant", "content": ""}}]}`, nil, nil)

	if reply := newClient(t, srv.URL).Complete(context.Background(), "oi"); reply != DefaultFallbackReply {
		t.Errorf("reply = %q, want fallback", reply)
	}
}

func TestComplete_MalformedBody(t *testing.T) {
	t.Parallel()

	for _, body := range []string{
		`not json at all`,
		`{"choices": "oops"}`,
		`{"choices": [{"message": "x"}]}`,
	} {
		srv := newServer(t, http.StatusOK, body, nil, nil)
		if reply := newClient(t, srv.URL).Complete(context.Background(), "oi"); reply != DefaultFallbackReply {
			t.Errorf("body %s: reply = %q, want fallback", body, reply)
		}
	}
}

func TestComplete_HTTPErrorNoRetry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := newServer(t, http.StatusInternalServerError, `{"error": {"message": "boom"}}`, nil, &calls)

	if reply := newClient(t, srv.URL).Complete(context.Background(), "oi"); reply != DefaultErrorReply {
		t.Errorf("reply = %q, want error reply", reply)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server saw %d requests, want exactly 1", n)
	}
}

func TestComplete_NetworkError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Config{APIKey: "test-key", BaseURL: url + "/v1/", ErrorReply: "falhou"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if reply := c.Complete(context.Background(), "oi"); reply != "falhou" {
		t.Errorf("reply = %q, want configured error reply", reply)
	}
}

func TestNew_RequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); err == nil {
		t.Fatal("expected error for empty api key")
	}
}
