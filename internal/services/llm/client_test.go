package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const pixel = "data:image/png;base64,iVBORw0KGgo="

func reply(w http.ResponseWriter, content any) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
	})
}

func newTestClient(srv *httptest.Server, waits *[]time.Duration) *Client {
	return NewClient(Config{Endpoint: srv.URL, APIKey: "sk-test", Model: "vision"},
		WithHTTPClient(srv.Client()),
		WithRetry(3, 100*time.Millisecond, time.Second),
		WithWait(func(_ context.Context, d time.Duration) error {
			if waits != nil {
				*waits = append(*waits, d)
			}
			return nil
		}),
	)
}

func TestAskSendsImagePart(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		} `json:"messages"`
		ResponseFormat map[string]string `json:"response_format"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		reply(w, `{"detections":[]}`)
	}))
	defer srv.Close()

	out, err := newTestClient(srv, nil).Ask(context.Background(), Request{
		System:   "json only",
		Prompt:   "find flowers",
		ImageURL: pixel,
	})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if out != `{"detections":[]}` {
		t.Fatalf("unexpected reply %q", out)
	}
	if got.Model != "vision" || got.ResponseFormat["type"] != "json_object" {
		t.Fatalf("unexpected payload %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
	var parts []part
	if err := json.Unmarshal(got.Messages[1].Content, &parts); err != nil {
		t.Fatalf("user content is not a part list: %s", got.Messages[1].Content)
	}
	if len(parts) != 2 || parts[0].Text != "find flowers" || parts[1].ImageURL == nil || parts[1].ImageURL.URL != pixel {
		t.Fatalf("unexpected parts %+v", parts)
	}
}

func TestAskOmitsEmptySystemMessage(t *testing.T) {
	var roles []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, m := range req.Messages {
			roles = append(roles, m.Role)
		}
		reply(w, "{}")
	}))
	defer srv.Close()

	if _, err := newTestClient(srv, nil).Ask(context.Background(), Request{Prompt: "p", ImageURL: pixel}); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(roles) != 1 || roles[0] != "user" {
		t.Fatalf("expected a single user message, got %v", roles)
	}
}

func TestAskJoinsTextParts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reply(w, []map[string]string{
			{"type": "text", "text": `{"detections":`},
			{"type": "text", "text": `[]}`},
		})
	}))
	defer srv.Close()

	out, err := newTestClient(srv, nil).Ask(context.Background(), Request{Prompt: "p", ImageURL: pixel})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if out != `{"detections":[]}` {
		t.Fatalf("unexpected reply %q", out)
	}
}

func TestAskValidatesInput(t *testing.T) {
	client := NewClient(Config{Model: "vision"})
	if _, err := client.Ask(context.Background(), Request{Prompt: "p", ImageURL: pixel}); err == nil || !strings.Contains(err.Error(), "api key") {
		t.Fatalf("expected api key error, got %v", err)
	}
	client = NewClient(Config{APIKey: "sk", Model: "vision"})
	if _, err := client.Ask(context.Background(), Request{Prompt: "p"}); err == nil {
		t.Fatal("expected error without image")
	}
	if client.cfg.Endpoint != DefaultEndpoint {
		t.Fatalf("expected default endpoint, got %q", client.cfg.Endpoint)
	}
}

func TestAskRetriesRateLimitWithRetryAfter(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
			return
		}
		reply(w, "{}")
	}))
	defer srv.Close()

	var waits []time.Duration
	if _, err := newTestClient(srv, &waits).Ask(context.Background(), Request{Prompt: "p", ImageURL: pixel}); err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
	if len(waits) != 1 || waits[0] != time.Second {
		t.Fatalf("expected Retry-After capped to the max delay, got %v", waits)
	}
}

func TestAskRetriesEmptyReplyWithBackoff(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": ""}, "finish_reason": "length"}},
		})
	}))
	defer srv.Close()

	var waits []time.Duration
	_, err := newTestClient(srv, &waits).Ask(context.Background(), Request{Prompt: "p", ImageURL: pixel})
	if !errors.Is(err, ErrEmptyReply) {
		t.Fatalf("expected ErrEmptyReply, got %v", err)
	}
	if !strings.Contains(err.Error(), `finish_reason="length"`) {
		t.Fatalf("expected finish reason in %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
	if len(waits) != 2 || waits[0] != 100*time.Millisecond || waits[1] != 200*time.Millisecond {
		t.Fatalf("unexpected backoff %v", waits)
	}
}

func TestAskDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv, nil).Ask(context.Background(), Request{Prompt: "p", ImageURL: pixel})
	var status *StatusError
	if !errors.As(err, &status) || status.Code != http.StatusUnauthorized || status.Message != "bad key" {
		t.Fatalf("expected 401 status error, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}

func TestAskReportsRefusal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": nil, "refusal": "no people"}}},
		})
	}))
	defer srv.Close()

	_, err := newTestClient(srv, nil).Ask(context.Background(), Request{Prompt: "p", ImageURL: pixel})
	if err == nil || !strings.Contains(err.Error(), "no people") || errors.Is(err, ErrEmptyReply) {
		t.Fatalf("expected refusal error, got %v", err)
	}
}

func TestRetryAfterParsing(t *testing.T) {
	if got := retryAfter("3"); got != 3*time.Second {
		t.Fatalf("seconds: got %v", got)
	}
	if got := retryAfter(""); got != 0 {
		t.Fatalf("empty: got %v", got)
	}
	if got := retryAfter(time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat)); got != 0 {
		t.Fatalf("past date: got %v", got)
	}
}
