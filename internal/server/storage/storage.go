// Package storage is the object-storage capability used by the file
// services: a Connector turns resolved bucket credentials into a Backend
// session bound to one bucket.
package storage

import (
	"context"
	"io"
	"time"
)

// Credentials identify one bucket and the keys that unlock it. SecretKey is
// plaintext; never log a Credentials value.
type Credentials struct {
	AccessKeyID string
	SecretKey   string
	Region      string
	BucketName  string
}

type ListInput struct {
	Prefix    string
	Delimiter string
	MaxKeys   int32
}

type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Listing is one page of a delimited listing.
type Listing struct {
	CommonPrefixes []string
	Objects        []Object
	Truncated      bool
}

type ObjectInfo struct {
	Key           string
	ContentType   string
	ContentLength int64
	LastModified  time.Time
}

// ObjectReader streams an object body. The caller must close Body.
type ObjectReader struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
}

// Backend is a session against a single bucket. Errors are either
// common.ErrObjectNotFound or *common.UpstreamStorageError.
type Backend interface {
	List(ctx context.Context, in ListInput) (*Listing, error)
	Head(ctx context.Context, key string) (*ObjectInfo, error)
	Get(ctx context.Context, key string) (*ObjectReader, error)
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type Connector interface {
	Open(ctx context.Context, creds Credentials) (Backend, error)
}
