// Package ingest drives one dropped file from detection to its final place in
// the content-addressed library, or to quarantine, or to a failed record.
//
// A Machine is safe for concurrent use: every call to Process owns its own
// Record and shares nothing mutable with other calls.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"tracksync/internal/classify"
	"tracksync/internal/logging"
	"tracksync/internal/media"
	"tracksync/internal/services"
	"tracksync/internal/shard"
)

// Machine runs the ingest pipeline against an Env.
type Machine struct {
	env    Env
	logger *slog.Logger
}

// NewMachine validates env and fills defaults for optional fields.
func NewMachine(env Env) (*Machine, error) {
	if err := env.validate(); err != nil {
		return nil, err
	}
	if env.Classifier == nil {
		env.Classifier = classify.Default()
	}
	if env.Recorder == nil {
		env.Recorder = nopRecorder{}
	}
	if env.Now == nil {
		env.Now = time.Now
	}
	env.LibraryRoot = filepath.Clean(env.LibraryRoot)
	env.QuarantineRoot = filepath.Clean(env.QuarantineRoot)
	return &Machine{env: env, logger: logging.NewComponentLogger(env.Logger, "ingest")}, nil
}

// Process runs path through the pipeline and returns the final record. The
// error is nil for StageRelocated, StageQuarantined and StageDuplicate and a
// *StageError for StageFailed.
func (m *Machine) Process(ctx context.Context, path string) (*Record, error) {
	now := m.env.Now()
	rec := &Record{
		RequestID: uuid.NewString(),
		Stage:     StageDetected,
		StartedAt: now,
		UpdatedAt: now,
	}
	ctx = services.WithRequestID(ctx, rec.RequestID)

	file, detectErr := Detect(path)
	rec.File = file
	if err := m.env.Recorder.Begin(ctx, rec); err != nil {
		m.persistWarning(ctx, rec, err)
	}
	if rec.ID != 0 {
		ctx = services.WithItemID(ctx, rec.ID)
	}
	m.stageLogger(ctx, StageDetected).Info("file detected",
		logging.String(logging.FieldEventType, "file_detected"),
		logging.String("path", file.Path),
		logging.Int64("size_bytes", file.Size),
	)
	if detectErr != nil {
		return m.fail(ctx, rec, StageDetected, ErrDetect, services.Wrap(services.ErrNotFound, string(StageDetected), "stat", "", detectErr))
	}

	verdict := m.env.Classifier.Classify(file.Extension)
	if !file.IsRegular() {
		verdict = classify.Unsupported
	}
	m.advance(ctx, rec, StageClassified)
	if verdict == classify.Unsupported {
		return m.quarantine(ctx, rec)
	}
	rec.MediaType, _ = m.env.Classifier.MediaType(file.Extension)

	mf := media.File{
		Name:      file.Name,
		Path:      file.Path,
		MediaType: rec.MediaType,
		Size:      file.Size,
	}

	loaded, err := callWithTimeout(ctx, m.env.MetadataTimeout, func(ctx context.Context) (media.File, error) {
		return m.env.Metadata.Load(ctx, mf)
	})
	if err != nil {
		return m.fail(ctx, rec, StageMetadataLoaded, ErrMetadata, wrapCollaborator(ctx, StageMetadataLoaded, "load metadata", err))
	}
	if err := checkFingerprint(loaded.Fingerprint); err != nil {
		return m.fail(ctx, rec, StageMetadataLoaded, ErrMetadata, services.Wrap(services.ErrValidation, string(StageMetadataLoaded), "fingerprint", "", err))
	}
	// The collaborator may not rename or relocate the file under us.
	loaded.Name, loaded.Path, loaded.MediaType, loaded.Size = mf.Name, mf.Path, mf.MediaType, mf.Size
	mf = loaded
	rec.Fingerprint = mf.Fingerprint
	m.advance(ctx, rec, StageMetadataLoaded)

	dst := filepath.Join(shard.Derive(rec.Fingerprint).Join(m.env.LibraryRoot), file.Name)
	if existing := m.residentCopy(ctx, mf, dst); existing != "" {
		return m.setAsideDuplicate(ctx, rec, existing)
	}

	if _, err := callWithTimeout(ctx, m.env.RegisterTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, m.env.Catalog.CreateTrack(ctx, mf)
	}); err != nil {
		return m.fail(ctx, rec, StageRegistered, ErrRegistration, wrapCollaborator(ctx, StageRegistered, "create track", err))
	}
	m.advance(ctx, rec, StageRegistered)

	if _, err := callWithTimeout(ctx, m.env.UploadTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, m.env.Uploader.Upload(ctx, mf)
	}); err != nil {
		return m.fail(ctx, rec, StageUploaded, ErrUpload, wrapCollaborator(ctx, StageUploaded, "upload", err))
	}
	m.advance(ctx, rec, StageUploaded)

	rec.Destination = dst
	res, err := m.env.Relocator.Relocate(ctx, file.Path, dst)
	rec.RelocationAttempts = res.Attempts
	if err != nil {
		return m.fail(ctx, rec, StageRelocated, ErrRelocation, err)
	}
	m.advance(ctx, rec, StageRelocated)
	m.stageLogger(ctx, StageRelocated).Info("file placed in library",
		logging.String(logging.FieldEventType, "ingest_complete"),
		logging.String("destination", dst),
		logging.String("fingerprint", rec.Fingerprint),
		logging.Int("relocation_attempts", res.Attempts),
		logging.Duration("total_duration", rec.Duration()),
	)
	return rec, nil
}

func (m *Machine) quarantine(ctx context.Context, rec *Record) (*Record, error) {
	file := rec.File
	dst := availablePath(m.env.QuarantineRoot, file.Name)
	rec.Destination = dst
	reason := fmt.Errorf("%w: extension %q", ErrClassificationMismatch, file.Extension)
	if !file.IsRegular() {
		reason = fmt.Errorf("%w: %s is not a regular file", ErrClassificationMismatch, file.Mode.Type())
	}

	res, err := m.env.Relocator.Relocate(ctx, file.Path, dst)
	rec.RelocationAttempts = res.Attempts
	if err != nil {
		return m.fail(ctx, rec, StageQuarantined, ErrRelocation, err)
	}
	rec.Err = reason
	m.advance(ctx, rec, StageQuarantined)
	logging.WarnWithContext(m.stageLogger(ctx, StageQuarantined), "unsupported file moved to quarantine", "file_quarantined",
		logging.String("path", file.Path),
		logging.String("extension", file.Extension),
		logging.String("destination", dst),
		logging.String("reason", reason.Error()),
		logging.Alert("quarantine"),
		logging.String(logging.FieldErrorHint, "convert the file to a supported format and drop it into the inbox again"),
		logging.String(logging.FieldImpact, "file was not registered or uploaded"),
	)
	return rec, nil
}

// residentCopy returns the library path of a file with the same content as
// mf, or "" when the content is new. The ledger is asked first; without an
// entry, an existing file at the computed destination is fingerprinted.
func (m *Machine) residentCopy(ctx context.Context, mf media.File, dst string) string {
	if m.env.Index != nil {
		path, err := m.env.Index.ResidentPath(ctx, mf.Fingerprint)
		if err != nil {
			logging.WarnWithContext(m.stageLogger(ctx, StageMetadataLoaded), "fingerprint lookup failed", "ledger_lookup_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "falling back to the library path check"),
			)
		} else if path != "" {
			if _, ok := regularFile(path); ok {
				return path
			}
		}
	}

	info, ok := regularFile(dst)
	if !ok {
		return ""
	}
	existing, err := callWithTimeout(ctx, m.env.MetadataTimeout, func(ctx context.Context) (media.File, error) {
		return m.env.Metadata.Load(ctx, media.File{
			Name:      filepath.Base(dst),
			Path:      dst,
			MediaType: mf.MediaType,
			Size:      info.Size(),
		})
	})
	if err != nil || existing.Fingerprint != mf.Fingerprint {
		return ""
	}
	return dst
}

// setAsideDuplicate moves a file whose content is already in the library out
// of the inbox without registering or uploading it again.
func (m *Machine) setAsideDuplicate(ctx context.Context, rec *Record, existing string) (*Record, error) {
	file := rec.File
	dst := availablePath(m.env.QuarantineRoot, file.Name)
	rec.Destination = dst

	res, err := m.env.Relocator.Relocate(ctx, file.Path, dst)
	rec.RelocationAttempts = res.Attempts
	if err != nil {
		return m.fail(ctx, rec, StageDuplicate, ErrRelocation, err)
	}
	rec.Err = fmt.Errorf("%w: %s", ErrDuplicateContent, existing)
	m.advance(ctx, rec, StageDuplicate)
	logging.WarnWithContext(m.stageLogger(ctx, StageDuplicate), "duplicate content moved to quarantine", "file_duplicate",
		logging.String("path", file.Path),
		logging.String("fingerprint", rec.Fingerprint),
		logging.String("library_copy", existing),
		logging.String("destination", dst),
		logging.String(logging.FieldErrorHint, "the library already holds this file; delete the quarantined copy once checked"),
		logging.String(logging.FieldImpact, "file was not registered or uploaded again"),
	)
	return rec, nil
}

func (m *Machine) advance(ctx context.Context, rec *Record, next Stage) {
	from := rec.Stage
	prev := rec.UpdatedAt
	rec.Stage = next
	rec.UpdatedAt = m.env.Now()
	if next.Terminal() {
		rec.FinishedAt = rec.UpdatedAt
	}
	if err := m.env.Recorder.Save(ctx, rec); err != nil {
		m.persistWarning(ctx, rec, err)
	}
	elapsed := rec.UpdatedAt.Sub(prev)
	m.stageLogger(ctx, next).Debug("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("from_stage", string(from)),
		logging.Duration("stage_duration", elapsed),
	)
	if m.env.Observer != nil {
		m.env.Observer.ObserveTransition(*rec, from, elapsed)
	}
}

func (m *Machine) fail(ctx context.Context, rec *Record, stage Stage, kind, cause error) (*Record, error) {
	stageErr := &StageError{Path: rec.File.Path, Stage: stage, Kind: kind, Err: cause}
	rec.Err = stageErr
	rec.FailedStage = stage
	m.advance(ctx, rec, StageFailed)
	logging.ErrorWithContext(m.stageLogger(ctx, stage), "ingest failed", "stage_failure",
		logging.String("path", rec.File.Path),
		logging.String("failed_stage", string(stage)),
		logging.String("error_kind", kind.Error()),
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, failureHint(kind, cause)),
		logging.Alert("stage_failure"),
	)
	return rec, stageErr
}

func (m *Machine) persistWarning(ctx context.Context, rec *Record, err error) {
	logging.WarnWithContext(m.stageLogger(ctx, rec.Stage), "failed to persist ingest record", "ledger_write_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check free space and permissions of the state directory"),
		logging.String(logging.FieldImpact, "ingest continues; history for this file may be incomplete"),
	)
}

func (m *Machine) stageLogger(ctx context.Context, stage Stage) *slog.Logger {
	return logging.WithContext(services.WithStage(ctx, string(stage)), m.logger)
}

func failureHint(kind, cause error) string {
	if errors.Is(kind, ErrRelocation) {
		return "file left in place; fix the destination and run 'tracksync ingest <path>'"
	}
	return services.FailureHint(cause)
}

// callWithTimeout runs fn under its own deadline. A zero timeout only inherits
// the parent deadline.
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(callCtx)
}

// wrapCollaborator tags a collaborator error as a timeout when its own
// deadline, not the parent context, expired.
func wrapCollaborator(ctx context.Context, stage Stage, operation string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		return services.Wrap(services.ErrTimeout, string(stage), operation, "deadline exceeded", err)
	case errors.Is(err, services.ErrExternal), errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrTransient), errors.Is(err, services.ErrTimeout),
		errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrConfiguration):
		return err
	default:
		return services.Wrap(services.ErrExternal, string(stage), operation, "", err)
	}
}

func regularFile(path string) (os.FileInfo, bool) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, false
	}
	return info, true
}

// availablePath returns dir/name, or "stem (n)ext" for the lowest n whose
// name is still free. The no-clobber move still guards against a race.
func availablePath(dir, name string) string {
	candidate := filepath.Join(dir, name)
	if _, err := os.Lstat(candidate); errors.Is(err, fs.ErrNotExist) {
		return candidate
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 1; n < maxNameSuffix; n++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
		if _, err := os.Lstat(candidate); errors.Is(err, fs.ErrNotExist) {
			return candidate
		}
	}
	return candidate
}

const maxNameSuffix = 10000

func checkFingerprint(fp string) error {
	if fp == "" {
		return errors.New("metadata loader returned an empty fingerprint")
	}
	if !shard.Derive(fp).Safe() {
		return fmt.Errorf("fingerprint %q cannot be used as a library path", fp)
	}
	return nil
}
