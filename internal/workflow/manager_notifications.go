package workflow

import (
	"context"
	"errors"
	"fmt"

	"tracksync/internal/ingest"
	"tracksync/internal/logging"
)

func (m *Manager) notifyOutcome(ctx context.Context, rec *ingest.Record, procErr error) {
	if m.notifier == nil || rec == nil {
		return
	}
	var err error
	switch rec.Stage {
	case ingest.StageRelocated:
		err = m.notifier.NotifyRelocated(ctx, rec.File.Name, rec.Destination)
	case ingest.StageQuarantined, ingest.StageDuplicate:
		err = m.notifier.NotifyQuarantined(ctx, rec.File.Name, rec.ErrorMessage())
	case ingest.StageFailed:
		if errors.Is(procErr, context.Canceled) {
			return
		}
		label := fmt.Sprintf("%s (%s)", rec.File.Name, rec.FailedStage)
		err = m.notifier.NotifyError(ctx, procErr, label)
	}
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		m.logger.Debug("daemon shutting down, could not send notification")
		return
	}
	m.logger.Debug("notification failed", logging.Error(err), logging.String("stage", string(rec.Stage)))
}
