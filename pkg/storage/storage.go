// Package storage defines the blob store contract shared by the GCS and S3 backends.
package storage

import (
	"context"
	"errors"
	"io"
)

// DownloadTokenKey is the object metadata key Firebase Storage reads download tokens from.
const DownloadTokenKey = "firebaseStorageDownloadTokens"

// ErrObjectNotFound is returned by Get when the object does not exist.
var ErrObjectNotFound = errors.New("storage: object not found")

// Object is a single blob write.
type Object struct {
	Path        string
	ContentType string
	Data        []byte
	Metadata    map[string]string
}

// BlobStore is implemented by every storage backend.
type BlobStore interface {
	Put(ctx context.Context, obj Object) error
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Bucket() string
	Ping(ctx context.Context) error
}
