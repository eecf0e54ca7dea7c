// Package core declares the blob storage contract shared by the drivers
// and the facade. Image handling and report exports talk to Store and
// never to a concrete backend.
package core

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver names a concrete backend.
type Driver string

const (
	// DriverFilesystem is the local filesystem backend, the default for
	// development and single-host installs.
	DriverFilesystem Driver = "fs"
	// DriverS3 is the AWS S3 / MinIO backend.
	DriverS3 Driver = "s3"
	// DriverMemory is the in-process backend used by tests.
	DriverMemory Driver = "memory"
)

// PutOptions carries optional attributes for a write.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// SignedURLOptions configures URL pre-signing. Only GET is signed today;
// drivers report ErrUnsupported for other methods.
type SignedURLOptions struct {
	Method  string
	Expiry  time.Duration // drivers default this to 15m when zero
	Headers map[string]string
}

// Info describes a stored blob.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
	URL          string            `json:"url,omitempty"`
}

// Store is the interface every backend implements. Put is create-only:
// writing an existing key fails, and callers rotate keys instead of
// overwriting.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	PresignURL(ctx context.Context, key string, opts SignedURLOptions) (string, error)
	Driver() Driver
}

// ErrUnsupported is returned when an optional capability is not available.
var ErrUnsupported = errors.New("blobstore: unsupported operation")
