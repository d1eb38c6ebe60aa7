package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const objectScheme = "gs://"

var (
	errInvalidURI    = errors.New("storage: object uri must look like gs://bucket/object")
	errInvalidBucket = errors.New("storage: bucket name is required")
	errInvalidObject = errors.New("storage: object name is required")
)

// ObjectLocation identifies a Cloud Storage object.
type ObjectLocation struct {
	Bucket string
	Object string
}

func (l ObjectLocation) String() string {
	return objectScheme + l.Bucket + "/" + l.Object
}

// ParseObjectURI splits a gs://bucket/object reference.
func ParseObjectURI(uri string) (ObjectLocation, error) {
	trimmed := strings.TrimSpace(uri)
	if !strings.HasPrefix(trimmed, objectScheme) {
		return ObjectLocation{}, errInvalidURI
	}
	bucket, object, found := strings.Cut(strings.TrimPrefix(trimmed, objectScheme), "/")
	if !found {
		return ObjectLocation{}, errInvalidURI
	}
	bucket = strings.TrimSpace(bucket)
	object = strings.Trim(strings.TrimSpace(object), "/")
	if bucket == "" {
		return ObjectLocation{}, errInvalidBucket
	}
	if object == "" {
		return ObjectLocation{}, errInvalidObject
	}
	return ObjectLocation{Bucket: bucket, Object: object}, nil
}

type openFunc func(ctx context.Context, loc ObjectLocation) (io.ReadCloser, error)

// ObjectReader streams objects out of Cloud Storage.
type ObjectReader struct {
	open  openFunc
	close func() error
}

// ReaderOption customises the ObjectReader.
type ReaderOption func(*readerOptions)

type readerOptions struct {
	endpoint   string
	clientOpts []option.ClientOption
}

// WithEndpoint targets an emulator such as fake-gcs-server; authentication is disabled.
func WithEndpoint(endpoint string) ReaderOption {
	return func(o *readerOptions) {
		o.endpoint = strings.TrimSpace(endpoint)
	}
}

// WithClientOptions appends raw client options.
func WithClientOptions(opts ...option.ClientOption) ReaderOption {
	return func(o *readerOptions) {
		o.clientOpts = append(o.clientOpts, opts...)
	}
}

// NewObjectReader creates a Cloud Storage client using application default credentials.
func NewObjectReader(ctx context.Context, opts ...ReaderOption) (*ObjectReader, error) {
	var cfg readerOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	clientOpts := append([]option.ClientOption(nil), cfg.clientOpts...)
	if cfg.endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.endpoint), option.WithoutAuthentication())
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("storage: create client: %w", err)
	}
	return &ObjectReader{
		open: func(ctx context.Context, loc ObjectLocation) (io.ReadCloser, error) {
			return client.Bucket(loc.Bucket).Object(loc.Object).NewReader(ctx)
		},
		close: client.Close,
	}, nil
}

// Open returns a reader for the object at uri. The caller closes it.
func (r *ObjectReader) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	if r == nil || r.open == nil {
		return nil, errors.New("storage: reader not initialised")
	}
	loc, err := ParseObjectURI(uri)
	if err != nil {
		return nil, err
	}
	rc, err := r.open(ctx, loc)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, fmt.Errorf("storage: %s not found: %w", loc, err)
		}
		return nil, fmt.Errorf("storage: open %s: %w", loc, err)
	}
	return rc, nil
}

// Close releases the underlying client.
func (r *ObjectReader) Close() error {
	if r == nil || r.close == nil {
		return nil
	}
	return r.close()
}
