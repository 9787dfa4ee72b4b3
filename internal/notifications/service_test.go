package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"tracksync/internal/config"
	"tracksync/internal/notifications"
)

type capturedRequest struct {
	title    string
	tags     string
	priority string
	body     string
}

func newNtfyServer(t *testing.T, status int) (*httptest.Server, func() []capturedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []capturedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, capturedRequest{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), reqs...)
	}
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyError(context.Background(), errors.New("boom"), "upload"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	srv, requests := newNtfyServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	cfg.Notifications.Relocated = true
	svc := notifications.NewService(&cfg)
	ctx := context.Background()

	if err := svc.NotifyRelocated(ctx, "song.mp3", "/library/aa/bb/cc/dd/ee/song.mp3"); err != nil {
		t.Fatalf("NotifyRelocated: %v", err)
	}
	if err := svc.NotifyQuarantined(ctx, "voice.wav", "unsupported file type"); err != nil {
		t.Fatalf("NotifyQuarantined: %v", err)
	}
	if err := svc.NotifyError(ctx, errors.New("upload error: 503"), "song.mp3"); err != nil {
		t.Fatalf("NotifyError: %v", err)
	}

	got := requests()
	if len(got) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(got))
	}
	if got[0].title != "Tracksync - Library Updated" || !strings.Contains(got[0].body, "song.mp3") || got[0].tags != "tracksync,library,added" {
		t.Fatalf("unexpected relocation payload: %+v", got[0])
	}
	if got[1].title != "Tracksync - Quarantined" || !strings.Contains(got[1].body, "Reason: unsupported file type") {
		t.Fatalf("unexpected quarantine payload: %+v", got[1])
	}
	if got[2].priority != "high" || got[2].body != "❌ Error with song.mp3: upload error: 503" {
		t.Fatalf("unexpected error payload: %+v", got[2])
	}
}

func TestNtfyServiceHonoursToggles(t *testing.T) {
	srv, requests := newNtfyServer(t, http.StatusOK)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	cfg.Notifications.Relocated = false
	cfg.Notifications.Quarantined = false
	cfg.Notifications.Errors = false
	svc := notifications.NewService(&cfg)
	ctx := context.Background()

	_ = svc.NotifyRelocated(ctx, "a.mp3", "")
	_ = svc.NotifyQuarantined(ctx, "b.wav", "")
	_ = svc.NotifyError(ctx, errors.New("x"), "")
	if n := len(requests()); n != 0 {
		t.Fatalf("expected no requests with all toggles off, got %d", n)
	}
	if err := svc.TestNotification(ctx); err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if n := len(requests()); n != 1 {
		t.Fatalf("test notification must ignore toggles, got %d requests", n)
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	srv, _ := newNtfyServer(t, http.StatusInternalServerError)
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = srv.URL
	svc := notifications.NewService(&cfg)
	if err := svc.TestNotification(context.Background()); err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestEnabled(t *testing.T) {
	cfg := config.Default()
	if notifications.Enabled(notifications.NewService(&cfg)) {
		t.Fatal("expected service without topic to be disabled")
	}
	cfg.Notifications.NtfyTopic = "https://ntfy.example/tracksync"
	if !notifications.Enabled(notifications.NewService(&cfg)) {
		t.Fatal("expected service with topic to be enabled")
	}
}
