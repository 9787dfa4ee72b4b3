package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"

	"tracksync/internal/config"
	"tracksync/internal/daemon"
	"tracksync/internal/ingest"
	"tracksync/internal/ledger"
	"tracksync/internal/logging"
	"tracksync/internal/metrics"
	"tracksync/internal/notifications"
	"tracksync/internal/workflow"
)

// Run starts the tracksync daemon and blocks until SIGINT/SIGTERM or ctx is
// done. Startup failures, including *daemon.FatalError, are returned to the
// caller.
func Run(cmdCtx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return errors.New("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	store, err := ledger.Open(cfg)
	if err != nil {
		logger.Error("open ledger", logging.Error(err))
		return err
	}

	m := metrics.New(nil)
	pipeline, err := BuildPipeline(cfg, store, m, logger)
	if err != nil {
		_ = store.Close()
		return err
	}

	manager := workflow.NewManager(pipeline.Machine, notifications.NewService(cfg), m, logger, workflow.Options{
		Workers:   cfg.Ingest.Workers,
		QueueSize: cfg.Ingest.QueueSize,
	})
	d, err := daemon.New(daemon.Options{
		Config:   cfg,
		Ledger:   store,
		Workflow: manager,
		Identity: pipeline.identity(),
		Metrics:  m,
		Logger:   logger,
	})
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check catalog credentials, directory permissions and the lock file"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("tracksync daemon shutting down",
		logging.String(logging.FieldEventType, "daemon_shutdown"),
	)
	return nil
}

// RunOnce processes paths in-process under the inbox lock, for use when no
// daemon is running. Per-file failures are reported in the returned records;
// the error is reserved for lock, setup and identity failures.
func RunOnce(ctx context.Context, cfg *config.Config, paths []string, logger *slog.Logger) ([]*ingest.Record, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	resolved := make([]string, 0, len(paths))
	for _, path := range paths {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", path, err)
		}
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			return nil, fmt.Errorf("source path %q is a directory", abs)
		}
		resolved = append(resolved, abs)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, daemon.ErrLocked
	}
	defer lock.Unlock()

	store, err := ledger.Open(cfg)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	pipeline, err := BuildPipeline(cfg, store, nil, logger)
	if err != nil {
		return nil, err
	}
	if _, err := pipeline.Authenticate(ctx); err != nil {
		return nil, err
	}
	if reclaimed, err := store.ReclaimInterrupted(ctx); err != nil {
		return nil, fmt.Errorf("reclaim interrupted records: %w", err)
	} else if len(reclaimed) > 0 {
		logging.NewComponentLogger(logger, "ingest-once").Warn("reclaimed interrupted records",
			logging.String(logging.FieldEventType, "record_reclaimed"),
			logging.Int("count", len(reclaimed)),
		)
	}

	records := make([]*ingest.Record, 0, len(resolved))
	for _, path := range resolved {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		rec, _ := pipeline.Machine.Process(ctx, path)
		if rec != nil {
			records = append(records, rec)
		}
	}
	return records, nil
}
