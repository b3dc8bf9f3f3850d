package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"floravision/internal/config"
)

const userAgent = "floravision/0.1"

// Event names a notification kind.
type Event string

const (
	EventBatchCompleted Event = "batch_completed"
	EventTaskFailed     Event = "task_failed"
	EventTest           Event = "test"
)

// Payload carries event fields. Keys are event specific.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := cfg.NotificationTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventBatchCompleted: cfg.Notifications.Batch,
			EventTaskFailed:     cfg.Notifications.Errors,
			EventTest:           true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventBatchCompleted:
		failed := intValue(payload["failed"])
		title := "FloraVision - Batch Complete"
		if failed > 0 {
			title = "FloraVision - Batch Complete (with errors)"
		}
		body := fmt.Sprintf("%d processed, %d with location, %d resolved, %d failed",
			intValue(payload["processed"]),
			intValue(payload["withLocation"]),
			intValue(payload["resolved"]),
			failed,
		)
		if d, ok := payload["duration"].(time.Duration); ok && d > 0 {
			body += " in " + d.Round(time.Second).String()
		}
		return message{title: title, body: body, tags: []string{"floravision", "batch", "completed"}}, true
	case EventTaskFailed:
		var b strings.Builder
		b.WriteString("Failed")
		if category := stringValue(payload["category"]); category != "" {
			b.WriteString(" ")
			b.WriteString(category)
		}
		if path := stringValue(payload["path"]); path != "" {
			b.WriteString(" for ")
			b.WriteString(path)
		}
		b.WriteString(": ")
		if errText := stringValue(payload["error"]); errText != "" {
			b.WriteString(errText)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "FloraVision - Error",
			body:     b.String(),
			tags:     []string{"floravision", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "FloraVision - Test",
			body:     "Notification system test",
			tags:     []string{"floravision", "test"},
			priority: "low",
		}, true
	}
	return message{}, false
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func stringValue(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case error:
		return strings.TrimSpace(s.Error())
	case fmt.Stringer:
		return s.String()
	}
	return ""
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
