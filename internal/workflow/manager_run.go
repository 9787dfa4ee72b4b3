package workflow

import (
	"context"
	"errors"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"tracksync/internal/ingest"
	"tracksync/internal/logging"
	"tracksync/internal/services"
)

// Start launches the workers. It does not block.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("workflow already running")
	}
	if m.proc == nil {
		return errors.New("workflow processor not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	m.runCtx = groupCtx
	m.cancel = cancel
	m.group = group
	m.running = true

	for worker := 1; worker <= m.workers; worker++ {
		group.Go(func() error {
			m.runWorker(services.WithWorker(groupCtx, worker), worker)
			return nil
		})
	}
	m.logger.Info("workflow started",
		logging.String(logging.FieldEventType, "workflow_started"),
		logging.Int("workers", m.workers),
		logging.Int("queue_size", cap(m.jobs)),
	)
	return nil
}

// Stop cancels in-flight work and waits for every worker to return.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel, group := m.cancel, m.group
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	_ = group.Wait()
	m.logger.Info("workflow stopped", logging.String(logging.FieldEventType, "workflow_stopped"))
}

// Submit queues path, blocking while the queue is full. It returns
// ErrDuplicate when the path is already queued or being processed.
func (m *Manager) Submit(ctx context.Context, path string) error {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return ErrNotRunning
	}
	if _, ok := m.inflight[path]; ok {
		m.mu.Unlock()
		return ErrDuplicate
	}
	m.inflight[path] = struct{}{}
	runCtx := m.runCtx
	m.mu.Unlock()

	select {
	case m.jobs <- path:
		m.observeQueueDepth()
		m.logger.Debug("path queued", logging.String("path", path))
		return nil
	case <-ctx.Done():
		m.release(path)
		return ctx.Err()
	case <-runCtx.Done():
		m.release(path)
		return ErrNotRunning
	}
}

func (m *Manager) runWorker(ctx context.Context, worker int) {
	logger := m.logger.With(logging.Int("worker", worker))
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-m.jobs:
			m.observeQueueDepth()
			m.setActive(path, true)
			rec, err := m.proc.Process(ctx, path)
			m.setActive(path, false)
			m.release(path)
			m.recordOutcome(rec, err)
			m.notifyOutcome(ctx, rec, err)
			if err != nil && ctx.Err() != nil {
				logger.Debug("worker stopping after cancelled file", logging.String("path", path))
				return
			}
		}
	}
}

func (m *Manager) release(path string) {
	m.mu.Lock()
	delete(m.inflight, path)
	m.mu.Unlock()
}

func (m *Manager) setActive(path string, on bool) {
	m.mu.Lock()
	if on {
		m.active[path] = struct{}{}
	} else {
		delete(m.active, path)
	}
	m.mu.Unlock()
}

func (m *Manager) recordOutcome(rec *ingest.Record, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed++
	if err != nil {
		m.failed++
		m.lastErr = err
	}
	if rec == nil {
		return
	}
	switch rec.Stage {
	case ingest.StageRelocated:
		m.relocated++
	case ingest.StageQuarantined:
		m.quarantined++
	case ingest.StageDuplicate:
		m.duplicates++
	}
	copy := *rec
	m.lastRecord = &copy
}

func (m *Manager) observeQueueDepth() {
	if m.metrics != nil {
		m.metrics.QueueDepth.Set(float64(len(m.jobs)))
	}
}
