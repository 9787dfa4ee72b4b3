package daemon_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"tracksync/internal/config"
	"tracksync/internal/daemon"
	"tracksync/internal/ingest"
	"tracksync/internal/ledger"
	"tracksync/internal/media"
	"tracksync/internal/metrics"
	"tracksync/internal/preflight"
	"tracksync/internal/testsupport"
	"tracksync/internal/workflow"
)

type recordingProcessor struct {
	mu    sync.Mutex
	paths []string
}

func (p *recordingProcessor) Process(_ context.Context, path string) (*ingest.Record, error) {
	p.mu.Lock()
	p.paths = append(p.paths, path)
	p.mu.Unlock()
	return &ingest.Record{Stage: ingest.StageRelocated, File: ingest.DroppedFile{Path: path, Name: filepath.Base(path)}}, nil
}

func (p *recordingProcessor) seen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.paths...)
}

type fakeIdentity struct {
	loginErr error
	userErr  error
	logins   int
}

func (f *fakeIdentity) Login(context.Context) error {
	f.logins++
	return f.loginErr
}

func (f *fakeIdentity) CurrentUser(context.Context) (media.Identity, error) {
	if f.userErr != nil {
		return media.Identity{}, f.userErr
	}
	return media.Identity{ID: "u-1", Username: "dj"}, nil
}

func passingPreflight(context.Context, *config.Config) []preflight.Result {
	return []preflight.Result{{Name: "stub", Passed: true}}
}

type harness struct {
	cfg   *config.Config
	store *ledger.Store
	proc  *recordingProcessor
	d     *daemon.Daemon
}

func newHarness(t *testing.T, identity daemon.IdentityProvider, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenLedger(t, cfg)
	proc := &recordingProcessor{}
	mgr := workflow.NewManager(proc, nil, nil, nil, workflow.Options{Workers: 2, QueueSize: 8})
	d, err := daemon.New(daemon.Options{
		Config:    cfg,
		Ledger:    store,
		Workflow:  mgr,
		Identity:  identity,
		Metrics:   metrics.New(nil),
		Preflight: passingPreflight,
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)
	return &harness{cfg: cfg, store: store, proc: proc, d: d}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestDaemonStartStop(t *testing.T) {
	h := newHarness(t, &fakeIdentity{})
	ctx := context.Background()

	if err := h.d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := h.d.Status(ctx)
	if !status.Running || !status.Workflow.Running {
		t.Fatalf("expected daemon and workflow running, got %+v", status)
	}
	if status.Offline || status.Identity.Username != "dj" {
		t.Fatalf("expected catalog identity, got %+v", status.Identity)
	}
	if status.LockFilePath != h.cfg.LockPath() {
		t.Fatalf("unexpected lock path %q", status.LockFilePath)
	}

	if err := h.d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	h.d.Stop()
	status = h.d.Status(ctx)
	if status.Running || status.Workflow.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonIdentityFailureIsFatal(t *testing.T) {
	for _, tc := range []struct {
		name     string
		identity *fakeIdentity
	}{
		{name: "login", identity: &fakeIdentity{loginErr: errors.New("bad password")}},
		{name: "user", identity: &fakeIdentity{userErr: errors.New("no such user")}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.identity)
			testsupport.Drop(t, h.cfg.Paths.InboxDir, "song.mp3", "x")

			err := h.d.Start(context.Background())
			var fatal *daemon.FatalError
			if !errors.As(err, &fatal) {
				t.Fatalf("expected FatalError, got %v", err)
			}
			if !errors.Is(err, daemon.ErrIdentityFetch) {
				t.Fatalf("expected ErrIdentityFetch, got %v", err)
			}
			if h.d.Status(context.Background()).Running {
				t.Fatal("daemon must not run after fatal startup")
			}

			time.Sleep(3 * h.cfg.SettleWindow())
			if seen := h.proc.seen(); len(seen) != 0 {
				t.Fatalf("watcher must not be armed, processed %v", seen)
			}

			lock := flock.New(h.cfg.LockPath())
			ok, err := lock.TryLock()
			if err != nil || !ok {
				t.Fatalf("expected lock to be released, ok=%v err=%v", ok, err)
			}
			_ = lock.Unlock()
		})
	}
}

func TestDaemonOfflineSkipsIdentity(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !h.d.Status(context.Background()).Offline {
		t.Fatal("expected offline status without identity provider")
	}
}

func TestDaemonBlockingPreflightStopsStartup(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	mgr := workflow.NewManager(&recordingProcessor{}, nil, nil, nil, workflow.Options{Workers: 1})
	d, err := daemon.New(daemon.Options{
		Config:   cfg,
		Ledger:   store,
		Workflow: mgr,
		Preflight: func(context.Context, *config.Config) []preflight.Result {
			return []preflight.Result{
				{Name: "Library directory", Passed: false, Detail: "not writable"},
				{Name: "Library free space", Passed: false, Optional: true, Detail: "low"},
			}
		},
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	err = d.Start(context.Background())
	if err == nil {
		t.Fatal("expected preflight failure")
	}
	if got := err.Error(); got != "preflight failed: Library directory: not writable" {
		t.Fatalf("unexpected error %q", got)
	}
	if mgr.Status().Running {
		t.Fatal("workers must not start after failed preflight")
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	holder := flock.New(h.cfg.LockPath())
	ok, err := holder.TryLock()
	if err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}
	defer holder.Unlock()

	if err := h.d.Start(context.Background()); !errors.Is(err, daemon.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestDaemonInitialScanAndWatcher(t *testing.T) {
	h := newHarness(t, nil)
	early := testsupport.Drop(t, h.cfg.Paths.InboxDir, "early.mp3", "x")
	testsupport.Drop(t, h.cfg.Paths.InboxDir, ".partial", "x")

	if err := h.d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "initial scan", func() bool { return len(h.proc.seen()) == 1 })
	if got := h.proc.seen()[0]; got != early {
		t.Fatalf("expected %s, got %s", early, got)
	}

	late := testsupport.Drop(t, h.cfg.Paths.InboxDir, "late.mp3", "y")
	waitFor(t, "watched drop", func() bool { return len(h.proc.seen()) == 2 })
	if got := h.proc.seen()[1]; got != late {
		t.Fatalf("expected %s, got %s", late, got)
	}
}

func TestDaemonReclaimsInterruptedRecords(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	rec := &ingest.Record{
		RequestID: "r-1",
		File:      ingest.DroppedFile{Path: "/inbox/a.mp3", Name: "a.mp3"},
		Stage:     ingest.StageUploaded,
		StartedAt: time.Now(),
	}
	if err := store.Begin(context.Background(), rec); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	mgr := workflow.NewManager(&recordingProcessor{}, nil, nil, nil, workflow.Options{Workers: 1})
	d, err := daemon.New(daemon.Options{Config: cfg, Ledger: store, Workflow: mgr, Preflight: passingPreflight})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	entry, err := store.GetByID(context.Background(), rec.ID)
	if err != nil || entry == nil {
		t.Fatalf("GetByID: %v", err)
	}
	if entry.Stage != ingest.StageFailed || entry.FailedStage != ingest.StageUploaded {
		t.Fatalf("expected reclaimed failure at uploaded, got %s/%s", entry.Stage, entry.FailedStage)
	}
}

func TestDaemonSubmitValidatesPath(t *testing.T) {
	h := newHarness(t, nil)
	if _, err := h.d.Submit(context.Background(), "/nowhere"); !errors.Is(err, workflow.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning before start, got %v", err)
	}
	if err := h.d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := h.d.Submit(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty path")
	}
	if _, err := h.d.Submit(context.Background(), filepath.Join(h.cfg.Paths.InboxDir, "missing.mp3")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := h.d.Submit(context.Background(), h.cfg.Paths.LibraryDir); err == nil {
		t.Fatal("expected error for directory")
	}
}
