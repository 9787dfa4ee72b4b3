package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"tracksync/internal/config"
	"tracksync/internal/ingest"
	"tracksync/internal/ledger"
	"tracksync/internal/logging"
	"tracksync/internal/media"
	"tracksync/internal/metrics"
	"tracksync/internal/preflight"
	"tracksync/internal/watch"
	"tracksync/internal/workflow"
)

var (
	// ErrIdentityFetch marks a failed catalog login or identity lookup at startup.
	ErrIdentityFetch = errors.New("identity fetch failed")
	// ErrLocked is returned when another process holds the inbox lock.
	ErrLocked = errors.New("another tracksync instance holds the inbox lock")
)

// FatalError aborts daemon startup. The caller should exit non-zero.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IdentityProvider authenticates against the catalog and reports the account.
type IdentityProvider interface {
	Login(ctx context.Context) error
	CurrentUser(ctx context.Context) (media.Identity, error)
}

// PreflightFunc runs the startup environment checks.
type PreflightFunc func(ctx context.Context, cfg *config.Config) []preflight.Result

// Options wires a daemon. Identity and Metrics may be nil; a nil Identity runs
// the daemon offline.
type Options struct {
	Config    *config.Config
	Ledger    *ledger.Store
	Workflow  *workflow.Manager
	Identity  IdentityProvider
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Preflight PreflightFunc
}

// Daemon coordinates the background services and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *ledger.Store
	workflow  *workflow.Manager
	identity  IdentityProvider
	metrics   *metrics.Metrics
	preflight PreflightFunc
	root      *slog.Logger
	watcher   *watch.Watcher
	api       *apiServer

	lockPath string
	lock     *flock.Flock

	mu        sync.RWMutex
	account   media.Identity
	checks    []preflight.Result
	scanGroup sync.WaitGroup
	running   atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Offline      bool
	Identity     media.Identity
	Workflow     workflow.StatusSummary
	Ledger       map[ingest.Stage]int
	Preflight    []preflight.Result
	InboxDir     string
	LedgerPath   string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil || opts.Ledger == nil || opts.Workflow == nil {
		return nil, errors.New("daemon requires config, ledger, and workflow manager")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	check := opts.Preflight
	if check == nil {
		check = preflight.RunAll
	}

	lockPath := opts.Config.LockPath()
	d := &Daemon{
		cfg:       opts.Config,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     opts.Ledger,
		workflow:  opts.Workflow,
		identity:  opts.Identity,
		metrics:   opts.Metrics,
		preflight: check,
		root:      logger,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	d.api = newAPIServer(opts.Config, d, logger)
	return d, nil
}

// Start runs the startup sequence: lock, preflight, identity, ledger reclaim,
// workers, watcher with initial scan, then the HTTP API. The watcher is never
// armed unless identity succeeded.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrLocked
	}

	if err := d.startLocked(ctx); err != nil {
		d.teardown()
		return err
	}

	d.running.Store(true)
	d.logger.Info("tracksync daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("inbox", d.cfg.Paths.InboxDir),
	)
	return nil
}

func (d *Daemon) startLocked(ctx context.Context) error {
	if err := d.runPreflight(ctx); err != nil {
		return err
	}
	if err := d.Initialize(ctx); err != nil {
		return err
	}

	reclaimed, err := d.store.ReclaimInterrupted(ctx)
	if err != nil {
		return fmt.Errorf("reclaim interrupted records: %w", err)
	}
	for _, entry := range reclaimed {
		d.logger.Warn("record interrupted by previous shutdown",
			logging.Int64(logging.FieldItemID, entry.ID),
			logging.String(logging.FieldEventType, "record_reclaimed"),
			logging.String("source", entry.SourcePath),
			logging.String("failed_stage", string(entry.FailedStage)),
		)
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.workflow.Start(d.ctx); err != nil {
		return fmt.Errorf("start workflow: %w", err)
	}
	watcher, err := watch.New(d.cfg.Paths.InboxDir, d.cfg.SettleWindow(), d.submitDetected, d.root)
	if err != nil {
		return err
	}
	d.watcher = watcher
	if err := watcher.Start(d.ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	if d.cfg.Ingest.InitialScan {
		paths, err := watcher.Scan()
		if err != nil {
			return fmt.Errorf("scan inbox: %w", err)
		}
		d.scanGroup.Go(func() {
			for _, path := range paths {
				d.submitDetected(path)
			}
		})
	}
	if err := d.api.start(d.ctx); err != nil {
		return err
	}
	return nil
}

// Initialize authenticates against the catalog and fetches the account the
// daemon runs as. Failures are fatal and wrap ErrIdentityFetch.
func (d *Daemon) Initialize(ctx context.Context) error {
	if d.identity == nil {
		d.logger.Info("catalog disabled; running offline",
			logging.String(logging.FieldEventType, "catalog_offline"),
		)
		return nil
	}
	account, err := FetchIdentity(ctx, d.identity)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.account = account
	d.mu.Unlock()
	d.logger.Info("authenticated with catalog",
		logging.String(logging.FieldEventType, "catalog_identity"),
		logging.String("user", account.Username),
		logging.String("user_id", account.ID),
	)
	return nil
}

// FetchIdentity logs in and looks up the account. Either failure is returned
// as a *FatalError wrapping ErrIdentityFetch.
func FetchIdentity(ctx context.Context, provider IdentityProvider) (media.Identity, error) {
	if err := provider.Login(ctx); err != nil {
		return media.Identity{}, &FatalError{Op: "catalog login", Err: fmt.Errorf("%w: %w", ErrIdentityFetch, err)}
	}
	account, err := provider.CurrentUser(ctx)
	if err != nil {
		return media.Identity{}, &FatalError{Op: "catalog identity", Err: fmt.Errorf("%w: %w", ErrIdentityFetch, err)}
	}
	return account, nil
}

func (d *Daemon) runPreflight(ctx context.Context) error {
	results := d.preflight(ctx, d.cfg)
	d.mu.Lock()
	d.checks = results
	d.mu.Unlock()

	for _, r := range results {
		if !r.Passed && r.Optional {
			logging.WarnWithContext(d.logger, "preflight warning", "preflight_warning",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
			)
		}
	}
	blocking := preflight.Blocking(results)
	if len(blocking) == 0 {
		return nil
	}
	details := make([]string, 0, len(blocking))
	for _, r := range blocking {
		details = append(details, r.Name+": "+r.Detail)
	}
	return fmt.Errorf("preflight failed: %s", strings.Join(details, "; "))
}

// Stop stops background processing and releases the daemon lock. In-flight
// files are abandoned and reclaimed on the next start.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.teardown()
	d.running.Store(false)
	d.logger.Info("tracksync daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stopped"),
	)
}

func (d *Daemon) teardown() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	if d.watcher != nil {
		d.watcher.Stop()
		d.watcher = nil
	}
	d.scanGroup.Wait()
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Submit validates a manually requested path and hands it to the worker pool.
func (d *Daemon) Submit(ctx context.Context, sourcePath string) (string, error) {
	if !d.running.Load() {
		return "", workflow.ErrNotRunning
	}
	trimmed := strings.TrimSpace(sourcePath)
	if trimmed == "" {
		return "", errors.New("source path is required")
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve source path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("stat source file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("source path %q is a directory", absPath)
	}
	if err := d.workflow.Submit(ctx, absPath); err != nil {
		return "", err
	}
	d.logger.Info("manual ingest queued",
		logging.String(logging.FieldEventType, "manual_ingest"),
		logging.String("source", absPath),
	)
	return absPath, nil
}

// submitDetected is the watcher callback. It runs on the watcher's delivery
// goroutine and may block while the queue is full.
func (d *Daemon) submitDetected(path string) {
	ctx := d.ctx
	if ctx == nil {
		return
	}
	err := d.workflow.Submit(ctx, path)
	switch {
	case err == nil:
	case errors.Is(err, workflow.ErrDuplicate):
		d.logger.Debug("path already queued", logging.String("path", path))
	case errors.Is(err, workflow.ErrNotRunning), errors.Is(err, context.Canceled):
	default:
		d.logger.Warn("failed to queue detected file",
			logging.String("path", path),
			logging.Error(err),
		)
	}
}

// ListRecords returns ledger entries filtered by optional stages.
func (d *Daemon) ListRecords(ctx context.Context, stages []ingest.Stage) ([]*ledger.Entry, error) {
	return d.store.List(ctx, stages...)
}

// Record returns one ledger entry, or nil when absent.
func (d *Daemon) Record(ctx context.Context, id int64) (*ledger.Entry, error) {
	return d.store.GetByID(ctx, id)
}

// APIAddr returns the address the HTTP API listens on, or "" when disabled.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	stats, err := d.store.Stats(ctx)
	if err != nil {
		d.logger.Warn("ledger stats unavailable", logging.Error(err))
	}
	d.mu.RLock()
	account := d.account
	checks := append([]preflight.Result(nil), d.checks...)
	d.mu.RUnlock()

	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Offline:      d.identity == nil,
		Identity:     account,
		Workflow:     d.workflow.Status(),
		Ledger:       stats,
		Preflight:    checks,
		InboxDir:     d.cfg.Paths.InboxDir,
		LedgerPath:   d.store.Path(),
		LockFilePath: d.lockPath,
	}
}
