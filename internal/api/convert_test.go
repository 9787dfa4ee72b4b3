package api

import (
	"testing"
	"time"

	"tracksync/internal/ingest"
	"tracksync/internal/ledger"
	"tracksync/internal/media"
	"tracksync/internal/workflow"
)

func TestFromEntry(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	finished := created.Add(1500 * time.Millisecond)
	entry := &ledger.Entry{
		ID:                 7,
		RequestID:          "req-1",
		SourcePath:         "/inbox/song.mp3",
		FileName:           "song.mp3",
		Stage:              ingest.StageFailed,
		FailedStage:        ingest.StageUploaded,
		MediaType:          "audio/mp3",
		SizeBytes:          42,
		Fingerprint:        "aabbccddeeff",
		ErrorKind:          "upload",
		ErrorMessage:       "boom",
		RelocationAttempts: 0,
		CreatedAt:          created,
		UpdatedAt:          finished,
		FinishedAt:         &finished,
	}

	dto := FromEntry(entry)
	if dto.Stage != "failed" || dto.FailedStage != "uploaded" {
		t.Fatalf("unexpected stages: %q/%q", dto.Stage, dto.FailedStage)
	}
	if dto.CreatedAt != "2026-03-01T12:00:00.000Z" {
		t.Fatalf("unexpected createdAt %q", dto.CreatedAt)
	}
	if dto.FinishedAt != "2026-03-01T12:00:01.500Z" {
		t.Fatalf("unexpected finishedAt %q", dto.FinishedAt)
	}
	if dto.DurationMillis != 1500 {
		t.Fatalf("expected 1500ms duration, got %d", dto.DurationMillis)
	}
	if dto.ErrorKind != "upload" || dto.ErrorMessage != "boom" {
		t.Fatalf("unexpected error fields: %+v", dto)
	}
}

func TestFromEntryNil(t *testing.T) {
	if got := FromEntry(nil); got != (Record{}) {
		t.Fatalf("expected zero record, got %+v", got)
	}
	if got := FromEntries([]*ledger.Entry{nil, {ID: 3}}); len(got) != 1 || got[0].ID != 3 {
		t.Fatalf("unexpected entries: %+v", got)
	}
}

func TestFromStatsIncludesEveryStage(t *testing.T) {
	got := FromStats(map[ingest.Stage]int{ingest.StageRelocated: 4})
	if len(got) != len(ingest.AllStages()) {
		t.Fatalf("expected %d stages, got %d", len(ingest.AllStages()), len(got))
	}
	if got["relocated"] != 4 || got["failed"] != 0 {
		t.Fatalf("unexpected counts: %v", got)
	}
}

func TestFromStatusSummaryNeverNilActive(t *testing.T) {
	got := FromStatusSummary(workflow.StatusSummary{Running: true, Workers: 2})
	if got.Active == nil {
		t.Fatal("expected empty active slice")
	}
	if !got.Running || got.Workers != 2 {
		t.Fatalf("unexpected status: %+v", got)
	}
}

func TestFromIdentity(t *testing.T) {
	if FromIdentity(media.Identity{}) != nil {
		t.Fatal("expected nil for zero identity")
	}
	id := FromIdentity(media.Identity{ID: "u1", Username: "dj"})
	if id == nil || id.Username != "dj" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}
