// Package assets pushes user-supplied images to the object store and returns
// their public URLs.
package assets

import (
	"context"
	"errors"
)

// ErrNoFile is returned when Upload is called without a local path.
var ErrNoFile = errors.New("no file to upload")

type UploadResult struct {
	URL string
	Key string
}

// Uploader moves a spooled local file to remote storage. The local file is
// removed afterwards whether or not the upload succeeded.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (*UploadResult, error)
}
