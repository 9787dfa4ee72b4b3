package ingest

import (
	"errors"
	"fmt"
)

// Failure kinds. A *StageError matches exactly one of these with errors.Is.
var (
	ErrDetect                 = errors.New("dropped file unavailable")
	ErrClassificationMismatch = errors.New("unsupported file type")
	ErrDuplicateContent       = errors.New("content already in library")
	ErrMetadata               = errors.New("metadata error")
	ErrRegistration           = errors.New("registration error")
	ErrUpload                 = errors.New("upload error")
	ErrRelocation             = errors.New("relocation error")
)

// StageError is the failure that moved a record to StageFailed.
type StageError struct {
	Path  string
	Stage Stage
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("ingest %s: %s: %v", e.Path, e.Stage, e.Kind)
	}
	return fmt.Sprintf("ingest %s: %s: %v: %v", e.Path, e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindName returns a stable, storable name for the failure kind carried by
// err, or "" when err carries none.
func KindName(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDetect):
		return "detect"
	case errors.Is(err, ErrClassificationMismatch):
		return "classification_mismatch"
	case errors.Is(err, ErrDuplicateContent):
		return "duplicate"
	case errors.Is(err, ErrMetadata):
		return "metadata"
	case errors.Is(err, ErrRegistration):
		return "registration"
	case errors.Is(err, ErrUpload):
		return "upload"
	case errors.Is(err, ErrRelocation):
		return "relocation"
	default:
		return ""
	}
}
