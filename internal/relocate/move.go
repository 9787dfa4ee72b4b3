package relocate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"tracksync/internal/fileutil"
)

var (
	// ErrDestinationExists is returned instead of overwriting an existing entry.
	ErrDestinationExists = errors.New("destination already exists")
	// ErrSourceRetained means the destination was written but the source could
	// not be removed afterwards.
	ErrSourceRetained = errors.New("destination placed but source not removed")

	errNoReplaceUnsupported = errors.New("no-replace rename unsupported")
)

// Move renames src to dst without clobbering an existing dst. When src and dst
// live on different filesystems the entry is copied into a hidden
// ".<name>.partial-<uuid>" sibling of dst, verified, renamed into place, and
// only then is src removed. A crash between placing the copy and removing src
// leaves a duplicate, never a loss; a crash mid-copy leaves a partial sibling
// next to dst and src intact.
func Move(src, dst string) error {
	err := place(src, dst)
	if err == nil || !isCrossDevice(err) {
		return err
	}
	return moveAcrossDevices(src, dst)
}

// place renames within one filesystem, refusing to replace dst.
func place(src, dst string) error {
	err := renameNoReplace(src, dst)
	if errors.Is(err, errNoReplaceUnsupported) {
		// Racy fallback for kernels or filesystems without RENAME_NOREPLACE.
		if _, statErr := os.Lstat(dst); statErr == nil {
			return fmt.Errorf("%w: %s", ErrDestinationExists, dst)
		} else if !errors.Is(statErr, fs.ErrNotExist) {
			return statErr
		}
		err = os.Rename(src, dst)
	}
	if err != nil && errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", ErrDestinationExists, dst)
	}
	return err
}

func moveAcrossDevices(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("%w: %s", ErrDestinationExists, dst)
	}
	partial := filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+".partial-"+uuid.NewString())
	if err := fileutil.CopyPath(src, partial); err != nil {
		_ = os.RemoveAll(partial)
		return fmt.Errorf("copy across filesystems: %w", err)
	}
	if err := place(partial, dst); err != nil {
		_ = os.RemoveAll(partial)
		return err
	}
	if err := removeSource(src); err != nil {
		return err
	}
	return nil
}

func removeSource(src string) error {
	if err := os.RemoveAll(src); err != nil {
		return fmt.Errorf("%w: %w", ErrSourceRetained, err)
	}
	return nil
}
