package ingest

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"tracksync/internal/classify"
	"tracksync/internal/media"
	"tracksync/internal/relocate"
)

// MetadataLoader reads a supported file and returns it with Fingerprint set.
type MetadataLoader interface {
	Load(ctx context.Context, file media.File) (media.File, error)
}

// Catalog registers a track with the remote catalog.
type Catalog interface {
	CreateTrack(ctx context.Context, file media.File) error
}

// Uploader transfers the file bytes to remote storage.
type Uploader interface {
	Upload(ctx context.Context, file media.File) error
}

// Relocator moves a file, retrying internally.
type Relocator interface {
	Relocate(ctx context.Context, src, dst string) (relocate.Result, error)
}

// Recorder persists records. Begin assigns Record.ID; Save is called after
// every transition. Errors are logged and never fail the file.
type Recorder interface {
	Begin(ctx context.Context, rec *Record) error
	Save(ctx context.Context, rec *Record) error
}

// Index looks up content that an earlier run already placed in the library.
type Index interface {
	// ResidentPath returns the library path recorded for fingerprint, or ""
	// when none is known.
	ResidentPath(ctx context.Context, fingerprint string) (string, error)
}

// Observer is told about every transition, after the record was saved.
type Observer interface {
	ObserveTransition(rec Record, from Stage, elapsed time.Duration)
}

// Env carries everything a Machine needs. Roots are fixed for the lifetime of
// the Machine.
type Env struct {
	LibraryRoot    string
	QuarantineRoot string

	Classifier *classify.Classifier
	Metadata   MetadataLoader
	Catalog    Catalog
	Uploader   Uploader
	Relocator  Relocator
	Recorder   Recorder
	Index      Index
	Observer   Observer
	Logger     *slog.Logger

	MetadataTimeout time.Duration
	RegisterTimeout time.Duration
	UploadTimeout   time.Duration

	Now func() time.Time
}

func (e *Env) validate() error {
	var missing []string
	if strings.TrimSpace(e.LibraryRoot) == "" {
		missing = append(missing, "library root")
	}
	if strings.TrimSpace(e.QuarantineRoot) == "" {
		missing = append(missing, "quarantine root")
	}
	if e.Metadata == nil {
		missing = append(missing, "metadata loader")
	}
	if e.Catalog == nil {
		missing = append(missing, "catalog")
	}
	if e.Uploader == nil {
		missing = append(missing, "uploader")
	}
	if e.Relocator == nil {
		missing = append(missing, "relocator")
	}
	if len(missing) > 0 {
		return errors.New("ingest env missing " + strings.Join(missing, ", "))
	}
	return nil
}

type nopRecorder struct{}

func (nopRecorder) Begin(context.Context, *Record) error { return nil }

func (nopRecorder) Save(context.Context, *Record) error { return nil }
