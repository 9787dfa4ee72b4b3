package catalog_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"tracksync/internal/media"
	"tracksync/internal/services"
	"tracksync/internal/services/catalog"
)

type fakeCatalog struct {
	mu        sync.Mutex
	tokens    int
	valid     string
	tracks    map[string]map[string]any
	uploads   map[string][]byte
	trackCode int
}

func newFakeCatalog(t *testing.T) (*fakeCatalog, *httptest.Server) {
	t.Helper()
	f := &fakeCatalog{tracks: map[string]map[string]any{}, uploads: map[string][]byte{}}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["username"] != "tester" || body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.mu.Lock()
		f.tokens++
		f.valid = "token-" + string(rune('0'+f.tokens))
		token := f.valid
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"token": token})
	})
	mux.HandleFunc("GET /user", f.authed(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(media.Identity{ID: "u-1", Email: "t@example.com", Username: "tester"})
	}))
	mux.HandleFunc("POST /tracks", f.authed(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.trackCode != 0 {
			w.WriteHeader(f.trackCode)
			_, _ = w.Write([]byte("rejected"))
			return
		}
		f.tracks[body["hash"].(string)] = body
		w.WriteHeader(http.StatusCreated)
	}))
	mux.HandleFunc("PUT /uploads/{hash}", f.authed(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.uploads[r.PathValue("hash")] = data
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeCatalog) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		valid := f.valid
		f.mu.Unlock()
		if valid == "" || r.Header.Get("Authorization") != "Bearer "+valid {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (f *fakeCatalog) expire() {
	f.mu.Lock()
	f.valid = "rotated"
	f.mu.Unlock()
}

func newClient(url string) *catalog.Client {
	return catalog.New(catalog.Options{BaseURL: url, Username: "tester", Password: "secret", Timeout: 5 * time.Second})
}

func TestLoginAndCurrentUser(t *testing.T) {
	_, srv := newFakeCatalog(t)
	client := newClient(srv.URL)
	ctx := context.Background()

	if err := client.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}
	identity, err := client.CurrentUser(ctx)
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if identity.ID != "u-1" || identity.Username != "tester" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestLoginRejectedCredentials(t *testing.T) {
	_, srv := newFakeCatalog(t)
	client := catalog.New(catalog.Options{BaseURL: srv.URL, Username: "tester", Password: "wrong"})
	err := client.Login(context.Background())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestLoginRequiresCredentials(t *testing.T) {
	client := catalog.New(catalog.Options{BaseURL: "http://127.0.0.1:1"})
	if err := client.Login(context.Background()); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestCreateTrackAndUpload(t *testing.T) {
	fake, srv := newFakeCatalog(t)
	client := newClient(srv.URL)
	ctx := context.Background()
	if err := client.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}

	path := filepath.Join(t.TempDir(), "song.mp3")
	if err := os.WriteFile(path, []byte("id3-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	file := media.File{Name: "song.mp3", Path: path, MediaType: "audio/mp3", Size: 9, Fingerprint: "aabbccdd"}

	if err := client.CreateTrack(ctx, file); err != nil {
		t.Fatalf("CreateTrack: %v", err)
	}
	if err := client.Upload(ctx, file); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	track := fake.tracks["aabbccdd"]
	if track == nil || track["name"] != "song.mp3" || track["type"] != "audio/mp3" {
		t.Fatalf("unexpected track body: %#v", track)
	}
	if string(fake.uploads["aabbccdd"]) != "id3-bytes" {
		t.Fatalf("unexpected upload body: %q", fake.uploads["aabbccdd"])
	}
}

func TestCreateTrackConflictIsSuccess(t *testing.T) {
	fake, srv := newFakeCatalog(t)
	fake.trackCode = http.StatusConflict
	client := newClient(srv.URL)
	ctx := context.Background()
	if err := client.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := client.CreateTrack(ctx, media.File{Name: "a.mp3", Fingerprint: "ff"}); err != nil {
		t.Fatalf("conflict should be treated as registered: %v", err)
	}
}

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		code int
		want error
	}{
		{http.StatusBadRequest, services.ErrValidation},
		{http.StatusUnprocessableEntity, services.ErrValidation},
		{http.StatusForbidden, services.ErrConfiguration},
		{http.StatusTooManyRequests, services.ErrTransient},
		{http.StatusBadGateway, services.ErrTransient},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.code), func(t *testing.T) {
			fake, srv := newFakeCatalog(t)
			fake.trackCode = tc.code
			client := newClient(srv.URL)
			ctx := context.Background()
			if err := client.Login(ctx); err != nil {
				t.Fatalf("Login: %v", err)
			}
			err := client.CreateTrack(ctx, media.File{Name: "a.mp3", Fingerprint: "ff"})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			var statusErr *catalog.StatusError
			if !errors.As(err, &statusErr) || statusErr.Code != tc.code {
				t.Fatalf("expected status error with code %d, got %v", tc.code, err)
			}
		})
	}
}

func TestExpiredSessionLogsInAgain(t *testing.T) {
	fake, srv := newFakeCatalog(t)
	client := newClient(srv.URL)
	ctx := context.Background()
	if err := client.Login(ctx); err != nil {
		t.Fatalf("Login: %v", err)
	}
	fake.expire()

	path := filepath.Join(t.TempDir(), "song.mp3")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := client.Upload(ctx, media.File{Path: path, MediaType: "audio/mp3", Size: 3, Fingerprint: "cafe"}); err != nil {
		t.Fatalf("Upload after expiry: %v", err)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if fake.tokens != 2 {
		t.Fatalf("expected a second login, got %d", fake.tokens)
	}
	if string(fake.uploads["cafe"]) != "abc" {
		t.Fatalf("retried upload must resend the full body, got %q", fake.uploads["cafe"])
	}
}

func TestTransportFailureIsExternal(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := newClient(url)
	if err := client.Login(context.Background()); !errors.Is(err, services.ErrExternal) {
		t.Fatalf("expected external error, got %v", err)
	}
}
