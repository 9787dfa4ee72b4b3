package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"tracksync/internal/ingest"
	"tracksync/internal/logging"
	"tracksync/internal/metrics"
	"tracksync/internal/notifications"
)

var (
	// ErrNotRunning is returned by Submit before Start or after Stop.
	ErrNotRunning = errors.New("workflow not running")
	// ErrDuplicate is returned by Submit when the path is already queued or in flight.
	ErrDuplicate = errors.New("path already queued")
)

// Processor runs one path through the ingest pipeline.
type Processor interface {
	Process(ctx context.Context, path string) (*ingest.Record, error)
}

// Options sizes the worker pool.
type Options struct {
	Workers   int
	QueueSize int
}

// Manager coordinates the worker pool.
type Manager struct {
	proc     Processor
	notifier notifications.Service
	metrics  *metrics.Metrics
	logger   *slog.Logger
	workers  int

	jobs chan string

	mu       sync.RWMutex
	running  bool
	runCtx   context.Context
	cancel   context.CancelFunc
	group    *errgroup.Group
	inflight map[string]struct{}
	active   map[string]struct{}

	processed   int
	relocated   int
	quarantined int
	duplicates  int
	failed      int
	lastErr     error
	lastRecord  *ingest.Record
}

// NewManager constructs a manager. notifier and m may be nil.
func NewManager(proc Processor, notifier notifications.Service, m *metrics.Metrics, logger *slog.Logger, opts Options) *Manager {
	workers := max(opts.Workers, 1)
	queueSize := max(opts.QueueSize, workers)
	return &Manager{
		proc:     proc,
		notifier: notifier,
		metrics:  m,
		logger:   logging.NewComponentLogger(logger, "workflow-manager"),
		workers:  workers,
		jobs:     make(chan string, queueSize),
		inflight: make(map[string]struct{}),
		active:   make(map[string]struct{}),
	}
}
