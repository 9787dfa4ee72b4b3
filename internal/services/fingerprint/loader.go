// Package fingerprint computes the content fingerprint that decides where a
// file lands in the library.
package fingerprint

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"

	"tracksync/internal/fileutil"
	"tracksync/internal/media"
	"tracksync/internal/services"
)

const stageName = "metadata_loaded"

// Loader fills media.File.Fingerprint with the hex BLAKE3 digest of the file.
type Loader struct{}

// New returns a Loader.
func New() *Loader {
	return &Loader{}
}

// Load hashes file.Path. Cancelling ctx aborts the read.
func (l *Loader) Load(ctx context.Context, file media.File) (media.File, error) {
	if err := ctx.Err(); err != nil {
		return media.File{}, err
	}
	f, err := os.Open(file.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return media.File{}, services.Wrap(services.ErrNotFound, stageName, "open", "", err)
		}
		return media.File{}, services.Wrap(services.ErrExternal, stageName, "open", "", err)
	}
	defer f.Close()

	sum, n, err := fileutil.HashReader(&contextReader{ctx: ctx, r: f})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return media.File{}, ctxErr
		}
		return media.File{}, services.Wrap(services.ErrExternal, stageName, "hash", "", err)
	}
	file.Fingerprint = sum
	file.Size = n
	return file, nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
