package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tracksync/internal/ingest"
)

// Begin inserts a row for a freshly detected file and assigns rec.ID.
func (s *Store) Begin(ctx context.Context, rec *ingest.Record) error {
	if rec == nil {
		return errors.New("record is nil")
	}
	entry := entryFromRecord(rec)
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO ingest_records (
            request_id, source_path, file_name, extension, size_bytes, stage, failed_stage,
            media_type, fingerprint, destination, error_kind, error_message,
            relocation_attempts, created_at, updated_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RequestID,
		entry.SourcePath,
		entry.FileName,
		nullableString(entry.Extension),
		entry.SizeBytes,
		string(entry.Stage),
		nullableString(string(entry.FailedStage)),
		nullableString(entry.MediaType),
		nullableString(entry.Fingerprint),
		nullableString(entry.Destination),
		nullableString(entry.ErrorKind),
		nullableString(entry.ErrorMessage),
		entry.RelocationAttempts,
		formatTime(entry.CreatedAt),
		formatTime(entry.UpdatedAt),
		nullableTime(entry.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	rec.ID = id
	return nil
}

// Save updates the row for rec, inserting it first if Begin never succeeded.
func (s *Store) Save(ctx context.Context, rec *ingest.Record) error {
	if rec == nil {
		return errors.New("record is nil")
	}
	if rec.ID == 0 {
		return s.Begin(ctx, rec)
	}
	entry := entryFromRecord(rec)
	res, err := s.execWithRetry(
		ctx,
		`UPDATE ingest_records
        SET stage = ?, failed_stage = ?, media_type = ?, fingerprint = ?, destination = ?,
            error_kind = ?, error_message = ?, relocation_attempts = ?, size_bytes = ?,
            updated_at = ?, finished_at = ?
        WHERE id = ?`,
		string(entry.Stage),
		nullableString(string(entry.FailedStage)),
		nullableString(entry.MediaType),
		nullableString(entry.Fingerprint),
		nullableString(entry.Destination),
		nullableString(entry.ErrorKind),
		nullableString(entry.ErrorMessage),
		entry.RelocationAttempts,
		entry.SizeBytes,
		formatTime(entry.UpdatedAt),
		nullableTime(entry.FinishedAt),
		entry.ID,
	)
	if err != nil {
		return fmt.Errorf("update record %d: %w", rec.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update record %d: no such record", rec.ID)
	}
	return nil
}

// GetByID fetches an entry. It returns nil, nil when the id is unknown.
func (s *Store) GetByID(ctx context.Context, id int64) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM ingest_records WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return entry, nil
}

// FindByFingerprint returns the most recent entry placed in the library with
// the given fingerprint, or nil when there is none.
func (s *Store) FindByFingerprint(ctx context.Context, fingerprint string) (*Entry, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+entryColumns+` FROM ingest_records WHERE fingerprint = ? AND stage = ? ORDER BY id DESC LIMIT 1`,
		fingerprint,
		string(ingest.StageRelocated),
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by fingerprint: %w", err)
	}
	return entry, nil
}

// ResidentPath returns the library path of the most recent placement of
// fingerprint, or "" when the content was never placed.
func (s *Store) ResidentPath(ctx context.Context, fingerprint string) (string, error) {
	entry, err := s.FindByFingerprint(ctx, fingerprint)
	if err != nil || entry == nil {
		return "", err
	}
	return entry.Destination, nil
}

// List returns entries in insertion order, optionally filtered by stage.
func (s *Store) List(ctx context.Context, stages ...ingest.Stage) ([]*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM ingest_records`
	var args []any
	if len(stages) > 0 {
		query += ` WHERE stage IN (` + makePlaceholders(len(stages)) + `)`
		args = stageArgs(stages)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Stats returns a count of entries grouped by stage.
func (s *Store) Stats(ctx context.Context) (map[ingest.Stage]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT stage, COUNT(1) FROM ingest_records GROUP BY stage`)
	if err != nil {
		return nil, fmt.Errorf("ledger stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[ingest.Stage]int)
	for rows.Next() {
		var stage string
		var count int
		if err := rows.Scan(&stage, &count); err != nil {
			return nil, err
		}
		stats[ingest.Stage(stage)] = count
	}
	return stats, rows.Err()
}

// ReclaimInterrupted marks every non-terminal entry as failed and returns the
// reclaimed entries. Call it before any worker starts.
func (s *Store) ReclaimInterrupted(ctx context.Context) ([]*Entry, error) {
	terminal := terminalStages()
	stuck, err := s.listExcluding(ctx, terminal)
	if err != nil {
		return nil, err
	}
	if len(stuck) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	for _, entry := range stuck {
		if _, err := s.execWithRetry(
			ctx,
			`UPDATE ingest_records
            SET failed_stage = stage, stage = ?, error_kind = ?, error_message = ?, updated_at = ?, finished_at = ?
            WHERE id = ?`,
			string(ingest.StageFailed),
			interruptedKind,
			fmt.Sprintf("interrupted during %s", entry.Stage),
			formatTime(now),
			formatTime(now),
			entry.ID,
		); err != nil {
			return nil, fmt.Errorf("reclaim record %d: %w", entry.ID, err)
		}
		entry.FailedStage = entry.Stage
		entry.Stage = ingest.StageFailed
		entry.ErrorKind = interruptedKind
		entry.UpdatedAt = now
		finished := now
		entry.FinishedAt = &finished
	}
	return stuck, nil
}

func (s *Store) listExcluding(ctx context.Context, stages []ingest.Stage) ([]*Entry, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+entryColumns+` FROM ingest_records WHERE stage NOT IN (`+makePlaceholders(len(stages))+`) ORDER BY id`,
		stageArgs(stages)...,
	)
	if err != nil {
		return nil, fmt.Errorf("list in-flight records: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ClearTerminal deletes every entry in a terminal stage.
func (s *Store) ClearTerminal(ctx context.Context) (int64, error) {
	terminal := terminalStages()
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM ingest_records WHERE stage IN (`+makePlaceholders(len(terminal))+`)`,
		stageArgs(terminal)...,
	)
	if err != nil {
		return 0, fmt.Errorf("clear terminal records: %w", err)
	}
	return res.RowsAffected()
}

// Remove deletes a single entry and reports whether it existed.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM ingest_records WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("remove record %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
