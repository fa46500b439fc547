package minio

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/molfilter/internal/infrastructure/chemio"
	"github.com/turtacn/molfilter/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molfilter/pkg/errors"
)

// ObjectStore streams objects in and out of buckets.  It satisfies
// chemio.ObjectStore.
type ObjectStore struct {
	client *Client
	logger logging.Logger
}

var _ chemio.ObjectStore = (*ObjectStore)(nil)

// NewObjectStore returns a store backed by client.
func NewObjectStore(client *Client) *ObjectStore {
	return &ObjectStore{client: client, logger: client.logger.Named("s3")}
}

// Open streams an object.  A missing bucket or key is CodeInputNotFound.
func (s *ObjectStore) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	info, err := s.client.api.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, errors.Wrap(err, errors.CodeInputNotFound, "object not found").
				WithDetailf("uri %q", "s3://"+bucket+"/"+key)
		}
		return nil, errors.Wrap(err, errors.CodeInputUnreadable, "cannot stat object").
			WithDetailf("uri %q", "s3://"+bucket+"/"+key)
	}
	rc, err := s.client.api.GetObjectReader(ctx, bucket, key)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInputUnreadable, "cannot read object").
			WithDetailf("uri %q", "s3://"+bucket+"/"+key)
	}
	s.logger.Debug("reading object",
		logging.String("bucket", bucket),
		logging.String("key", key),
		logging.Int64("size", info.Size))
	return rc, nil
}

// Create starts a streaming upload.  The object becomes visible when the
// returned writer is closed; the upload error, if any, is returned by Close.
func (s *ObjectStore) Create(ctx context.Context, bucket, key string) (io.WriteCloser, error) {
	uri := "s3://" + bucket + "/" + key
	ok, err := s.client.api.BucketExists(ctx, bucket)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeOutputUnwritable, "cannot reach bucket").WithDetailf("uri %q", uri)
	}
	if !ok {
		return nil, errors.New(errors.CodeOutputUnwritable, "bucket does not exist").WithDetailf("uri %q", uri)
	}

	pr, pw := io.Pipe()
	w := &objectWriter{pw: pw, uri: uri, done: make(chan struct{})}
	start := time.Now()
	go func() {
		defer close(w.done)
		info, err := s.client.api.PutObject(ctx, bucket, key, pr, -1, minio.PutObjectOptions{
			ContentType: "application/octet-stream",
			PartSize:    s.client.config.PartSize,
		})
		if err != nil {
			w.err = err
			_ = pr.CloseWithError(err)
			return
		}
		_ = pr.Close()
		s.logger.Debug("object uploaded",
			logging.String("bucket", bucket),
			logging.String("key", key),
			logging.Int64("size", info.Size),
			logging.Duration("elapsed", time.Since(start)))
	}()
	return w, nil
}

type objectWriter struct {
	pw   *io.PipeWriter
	uri  string
	done chan struct{}
	err  error
	once sync.Once
	cerr error
}

func (w *objectWriter) Write(p []byte) (int, error) {
	n, err := w.pw.Write(p)
	if err != nil {
		return n, errors.Wrap(err, errors.CodeOutputWriteFailed, "upload failed").WithDetailf("uri %q", w.uri)
	}
	return n, nil
}

func (w *objectWriter) Close() error {
	w.once.Do(func() {
		_ = w.pw.Close()
		<-w.done
		if w.err != nil {
			w.cerr = errors.Wrap(w.err, errors.CodeOutputWriteFailed, "upload failed").WithDetailf("uri %q", w.uri)
		}
	})
	return w.cerr
}
