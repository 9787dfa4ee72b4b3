package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tracksync/internal/config"
)

const userAgent = "Tracksync-Go/0.1.0"

// Service defines the notification surface exposed to the workflow.
type Service interface {
	NotifyRelocated(ctx context.Context, name, destination string) error
	NotifyQuarantined(ctx context.Context, name, reason string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// Enabled reports whether svc actually delivers anything.
func Enabled(svc Service) bool {
	_, noop := svc.(noopService)
	return svc != nil && !noop
}

// NewService builds a notification service backed by ntfy when configured.
// Without a topic every call is a no-op.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		topicURL: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[event]bool{
			eventRelocated:   cfg.Notifications.Relocated,
			eventQuarantined: cfg.Notifications.Quarantined,
			eventError:       cfg.Notifications.Errors,
			eventTest:        true,
		},
	}
}

type event int

const (
	eventRelocated event = iota
	eventQuarantined
	eventError
	eventTest
)

// notice is one ntfy message. Lines are joined with newlines into the body.
type notice struct {
	kind     event
	title    string
	lines    []string
	tags     []string
	priority string
}

func (n notice) withDetail(label, value string) notice {
	if value = strings.TrimSpace(value); value != "" {
		n.lines = append(n.lines, label+": "+value)
	}
	return n
}

type ntfyService struct {
	topicURL string
	client   *http.Client
	enabled  map[event]bool
}

func (s *ntfyService) NotifyRelocated(ctx context.Context, name, destination string) error {
	return s.deliver(ctx, notice{
		kind:  eventRelocated,
		title: "Tracksync - Library Updated",
		lines: []string{"🎵 Added to library: " + strings.TrimSpace(name)},
		tags:  []string{"tracksync", "library", "added"},
	}.withDetail("File", destination))
}

func (s *ntfyService) NotifyQuarantined(ctx context.Context, name, reason string) error {
	return s.deliver(ctx, notice{
		kind:  eventQuarantined,
		title: "Tracksync - Quarantined",
		lines: []string{"Unsupported file set aside: " + strings.TrimSpace(name)},
		tags:  []string{"tracksync", "quarantine", "review"},
	}.withDetail("Reason", reason))
}

func (s *ntfyService) NotifyError(ctx context.Context, err error, subject string) error {
	headline := "❌ Error"
	if subject = strings.TrimSpace(subject); subject != "" {
		headline += " with " + subject
	}
	cause := "unknown"
	if err != nil {
		cause = strings.TrimSpace(err.Error())
	}
	return s.deliver(ctx, notice{
		kind:     eventError,
		title:    "Tracksync - Error",
		lines:    []string{headline + ": " + cause},
		tags:     []string{"tracksync", "error", "alert"},
		priority: "high",
	})
}

// TestNotification ignores the per-event toggles.
func (s *ntfyService) TestNotification(ctx context.Context) error {
	return s.deliver(ctx, notice{
		kind:     eventTest,
		title:    "Tracksync - Test",
		lines:    []string{"🧪 Notification system test"},
		tags:     []string{"tracksync", "test"},
		priority: "low",
	})
}

func (s *ntfyService) deliver(ctx context.Context, n notice) error {
	if s == nil || s.client == nil || !s.enabled[n.kind] {
		return nil
	}

	body := strings.Join(n.lines, "\n")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.topicURL, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	headers := map[string]string{
		"User-Agent":   userAgent,
		"Content-Type": "text/plain; charset=utf-8",
		"Title":        n.title,
		"Tags":         strings.Join(n.tags, ","),
		"Priority":     n.priority,
	}
	for key, value := range headers {
		if value != "" {
			req.Header.Set(key, value)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyRelocated(context.Context, string, string) error   { return nil }
func (noopService) NotifyQuarantined(context.Context, string, string) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error        { return nil }
func (noopService) TestNotification(context.Context) error                  { return nil }
