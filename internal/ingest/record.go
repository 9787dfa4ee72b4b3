package ingest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// DroppedFile is the inbox entry as observed at detection time.
type DroppedFile struct {
	Path      string
	Name      string
	Extension string
	Size      int64
	Mode      fs.FileMode
	ModTime   time.Time
}

// IsRegular reports whether the entry is a plain file.
func (f DroppedFile) IsRegular() bool {
	return f.Mode.IsRegular()
}

// Detect stats path without following symlinks. Path is made absolute; Name
// and Extension are filled even when the stat fails.
func Detect(path string) (DroppedFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	file := DroppedFile{
		Path:      abs,
		Name:      filepath.Base(abs),
		Extension: filepath.Ext(abs),
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return file, fmt.Errorf("stat dropped file: %w", err)
	}
	file.Size = info.Size()
	file.Mode = info.Mode()
	file.ModTime = info.ModTime()
	return file, nil
}

// Record tracks one pass of one dropped file through the pipeline.
type Record struct {
	ID          int64
	RequestID   string
	File        DroppedFile
	Stage       Stage
	MediaType   string
	Fingerprint string
	Destination string
	// FailedStage is the stage that was being entered when the record failed.
	FailedStage Stage
	// Err holds the failure for StageFailed and the classification mismatch
	// for StageQuarantined, or ErrDuplicateContent for StageDuplicate.
	Err                error
	RelocationAttempts int
	StartedAt          time.Time
	UpdatedAt          time.Time
	FinishedAt         time.Time
}

// Terminal reports whether the record reached a terminal stage.
func (r *Record) Terminal() bool {
	return r.Stage.Terminal()
}

// Duration is the wall time spent on the record so far.
func (r *Record) Duration() time.Duration {
	end := r.FinishedAt
	if end.IsZero() {
		end = r.UpdatedAt
	}
	if end.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return end.Sub(r.StartedAt)
}

// ErrorMessage returns the recorded error text, if any.
func (r *Record) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
