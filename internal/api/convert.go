package api

import (
	"time"

	"tracksync/internal/ingest"
	"tracksync/internal/ledger"
	"tracksync/internal/media"
	"tracksync/internal/preflight"
	"tracksync/internal/workflow"
)

// FromEntry converts a ledger entry to its API representation.
func FromEntry(entry *ledger.Entry) Record {
	if entry == nil {
		return Record{}
	}
	dto := Record{
		ID:                 entry.ID,
		RequestID:          entry.RequestID,
		SourcePath:         entry.SourcePath,
		FileName:           entry.FileName,
		Stage:              string(entry.Stage),
		FailedStage:        string(entry.FailedStage),
		MediaType:          entry.MediaType,
		SizeBytes:          entry.SizeBytes,
		Fingerprint:        entry.Fingerprint,
		Destination:        entry.Destination,
		ErrorKind:          entry.ErrorKind,
		ErrorMessage:       entry.ErrorMessage,
		RelocationAttempts: entry.RelocationAttempts,
		CreatedAt:          formatTime(entry.CreatedAt),
		UpdatedAt:          formatTime(entry.UpdatedAt),
		DurationMillis:     entry.Duration().Milliseconds(),
	}
	if entry.FinishedAt != nil {
		dto.FinishedAt = formatTime(*entry.FinishedAt)
	}
	return dto
}

// FromEntries converts a slice of ledger entries, skipping nils.
func FromEntries(entries []*ledger.Entry) []Record {
	out := make([]Record, 0, len(entries))
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		out = append(out, FromEntry(entry))
	}
	return out
}

// FromStatusSummary converts worker pool diagnostics.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	active := summary.Active
	if active == nil {
		active = []string{}
	}
	return WorkflowStatus{
		Running:     summary.Running,
		Workers:     summary.Workers,
		Queued:      summary.Queued,
		Active:      active,
		Processed:   summary.Processed,
		Relocated:   summary.Relocated,
		Quarantined: summary.Quarantined,
		Duplicates:  summary.Duplicates,
		Failed:      summary.Failed,
		LastError:   summary.LastError,
	}
}

// FromPreflight converts preflight results.
func FromPreflight(results []preflight.Result) []CheckResult {
	out := make([]CheckResult, 0, len(results))
	for _, r := range results {
		out = append(out, CheckResult{
			Name:     r.Name,
			Passed:   r.Passed,
			Optional: r.Optional,
			Detail:   r.Detail,
		})
	}
	return out
}

// FromIdentity converts the catalog identity. A zero identity yields nil.
func FromIdentity(id media.Identity) *Identity {
	if id == (media.Identity{}) {
		return nil
	}
	return &Identity{ID: id.ID, Username: id.Username, Email: id.Email}
}

// FromStats reports a count for every stage, including empty ones.
func FromStats(stats map[ingest.Stage]int) map[string]int {
	out := make(map[string]int, len(stats))
	for _, stage := range ingest.AllStages() {
		out[string(stage)] = stats[stage]
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
