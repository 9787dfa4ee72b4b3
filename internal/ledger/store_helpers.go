package ledger

import (
	"database/sql"
	"errors"
	"time"

	"tracksync/internal/ingest"
)

const entryColumns = "id, request_id, source_path, file_name, extension, size_bytes, stage, failed_stage, media_type, fingerprint, destination, error_kind, error_message, relocation_attempts, created_at, updated_at, finished_at"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		id           int64
		requestID    string
		sourcePath   string
		fileName     string
		extension    sql.NullString
		sizeBytes    int64
		stage        string
		failedStage  sql.NullString
		mediaType    sql.NullString
		fingerprint  sql.NullString
		destination  sql.NullString
		errorKind    sql.NullString
		errorMessage sql.NullString
		attempts     int
		createdRaw   string
		updatedRaw   string
		finishedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&requestID,
		&sourcePath,
		&fileName,
		&extension,
		&sizeBytes,
		&stage,
		&failedStage,
		&mediaType,
		&fingerprint,
		&destination,
		&errorKind,
		&errorMessage,
		&attempts,
		&createdRaw,
		&updatedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:                 id,
		RequestID:          requestID,
		SourcePath:         sourcePath,
		FileName:           fileName,
		Extension:          extension.String,
		SizeBytes:          sizeBytes,
		Stage:              ingest.Stage(stage),
		FailedStage:        ingest.Stage(failedStage.String),
		MediaType:          mediaType.String,
		Fingerprint:        fingerprint.String,
		Destination:        destination.String,
		ErrorKind:          errorKind.String,
		ErrorMessage:       errorMessage.String,
		RelocationAttempts: attempts,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		entry.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		entry.UpdatedAt = updated
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			entry.FinishedAt = &finished
		}
	}
	return entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func stageArgs(stages []ingest.Stage) []any {
	args := make([]any, len(stages))
	for i, stage := range stages {
		args[i] = string(stage)
	}
	return args
}

func terminalStages() []ingest.Stage {
	var out []ingest.Stage
	for _, stage := range ingest.AllStages() {
		if stage.Terminal() {
			out = append(out, stage)
		}
	}
	return out
}
