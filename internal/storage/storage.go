// Package storage provides the object storage abstraction used for the
// poster archive.
//
// Two implementations are available:
//   - LocalStorage: filesystem-backed, served over HTTP (development)
//   - R2Storage: Cloudflare R2 via the S3-compatible AWS SDK (production)
//
// Generated posters are written under "posters/<session>/<id>.<ext>" and
// retrieved through time-limited URLs.
package storage

import (
	"context"
	"io"
	"time"
)

// Storage is the interface both archive backends implement.
// All methods accept a context for timeout and cancellation.
type Storage interface {
	// Put stores data at key. Unless opts.Overwrite is set, writing to an
	// existing key fails with ErrKeyExists.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get returns the object data (caller closes) and its metadata.
	// Returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the object at key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// URL returns a URL for reading the object. Backends that support
	// presigning honor expires; others return a public URL.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Exists reports whether an object is stored at key.
	Exists(ctx context.Context, key string) (bool, error)
}

// PutOptions configures a Put call.
type PutOptions struct {
	// ContentType is the MIME type of the object. Detected from the key's
	// extension when empty.
	ContentType string

	// MaxSize caps the object size in bytes; 0 means unlimited.
	// Oversized writes fail with ErrTooLarge.
	MaxSize int64

	// Overwrite permits replacing an existing object.
	Overwrite bool

	// Public marks the object world-readable (R2 ACL; informational for
	// local storage).
	Public bool
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// LocalConfig configures filesystem storage.
type LocalConfig struct {
	// BasePath is the root directory for stored files, e.g. "./data/archive".
	BasePath string

	// BaseURL is the public prefix files are served under,
	// e.g. "http://localhost:8080/files".
	BaseURL string
}

// R2Config configures Cloudflare R2 storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// PublicURL is an optional custom-domain prefix for the bucket.
	// When empty, all URLs are presigned.
	PublicURL string

	// Region is required by the AWS SDK; R2 accepts "auto".
	Region string
}

const (
	ProviderLocal = "local"
	ProviderR2    = "r2"
)
