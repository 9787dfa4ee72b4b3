package ledger

import (
	"time"

	"tracksync/internal/ingest"
)

// Entry is the persisted view of an ingest record.
type Entry struct {
	ID                 int64        `json:"id"`
	RequestID          string       `json:"request_id"`
	SourcePath         string       `json:"source_path"`
	FileName           string       `json:"file_name"`
	Extension          string       `json:"extension,omitempty"`
	SizeBytes          int64        `json:"size_bytes"`
	Stage              ingest.Stage `json:"stage"`
	FailedStage        ingest.Stage `json:"failed_stage,omitempty"`
	MediaType          string       `json:"media_type,omitempty"`
	Fingerprint        string       `json:"fingerprint,omitempty"`
	Destination        string       `json:"destination,omitempty"`
	ErrorKind          string       `json:"error_kind,omitempty"`
	ErrorMessage       string       `json:"error_message,omitempty"`
	RelocationAttempts int          `json:"relocation_attempts"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
	FinishedAt         *time.Time   `json:"finished_at,omitempty"`
}

// Terminal reports whether the entry reached a terminal stage.
func (e *Entry) Terminal() bool {
	return e.Stage.Terminal()
}

// Duration is the time between detection and the last update.
func (e *Entry) Duration() time.Duration {
	end := e.UpdatedAt
	if e.FinishedAt != nil {
		end = *e.FinishedAt
	}
	if end.IsZero() || e.CreatedAt.IsZero() {
		return 0
	}
	return end.Sub(e.CreatedAt)
}

// interruptedKind is stored for rows reclaimed after an unclean shutdown.
const interruptedKind = "interrupted"

func entryFromRecord(rec *ingest.Record) Entry {
	entry := Entry{
		ID:                 rec.ID,
		RequestID:          rec.RequestID,
		SourcePath:         rec.File.Path,
		FileName:           rec.File.Name,
		Extension:          rec.File.Extension,
		SizeBytes:          rec.File.Size,
		Stage:              rec.Stage,
		FailedStage:        rec.FailedStage,
		MediaType:          rec.MediaType,
		Fingerprint:        rec.Fingerprint,
		Destination:        rec.Destination,
		ErrorKind:          ingest.KindName(rec.Err),
		ErrorMessage:       rec.ErrorMessage(),
		RelocationAttempts: rec.RelocationAttempts,
		CreatedAt:          rec.StartedAt,
		UpdatedAt:          rec.UpdatedAt,
	}
	if !rec.FinishedAt.IsZero() {
		finished := rec.FinishedAt
		entry.FinishedAt = &finished
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = entry.CreatedAt
	}
	return entry
}
