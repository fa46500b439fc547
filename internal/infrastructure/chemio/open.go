package chemio

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/turtacn/molfilter/pkg/errors"
)

// StdStream is the path naming stdin for inputs and stdout for outputs.
const StdStream = "-"

// ObjectStore reads and writes objects of S3-compatible storage.
type ObjectStore interface {
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Create(ctx context.Context, bucket, key string) (io.WriteCloser, error)
}

// ParseS3URI splits "s3://bucket/key" into its parts.
func ParseS3URI(uri string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(uri, "s3://")
	if !found {
		return "", "", false
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// IsS3URI reports whether uri uses the s3:// scheme.
func IsS3URI(uri string) bool { return strings.HasPrefix(uri, "s3://") }

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// multiReadCloser closes several io.Closers, innermost first.
type multiReadCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiReadCloser) Close() error {
	var err error
	for _, c := range m.closers {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func openRaw(ctx context.Context, uri string, store ObjectStore) (io.ReadCloser, error) {
	switch {
	case uri == StdStream:
		return io.NopCloser(os.Stdin), nil
	case IsS3URI(uri):
		bucket, key, ok := ParseS3URI(uri)
		if !ok {
			return nil, errors.New(errors.CodeInvalidParam, "malformed object URI").WithDetailf("uri %q", uri)
		}
		if store == nil {
			return nil, errors.New(errors.CodeInvalidParam, "object storage is not configured").
				WithDetailf("uri %q; set storage.s3.endpoint", uri)
		}
		return store.Open(ctx, bucket, key)
	}
	fh, err := os.Open(uri)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, errors.CodeInputNotFound, "input not found").WithDetailf("path %q", uri)
		}
		return nil, errors.Wrap(err, errors.CodeInputUnreadable, "cannot open input").WithDetailf("path %q", uri)
	}
	if st, err := fh.Stat(); err == nil && st.IsDir() {
		_ = fh.Close()
		return nil, errors.New(errors.CodeInputUnreadable, "input is a directory").WithDetailf("path %q", uri)
	}
	return fh, nil
}

// OpenDecompressed opens uri for reading and transparently decompresses it.
// The codec is detected from the leading magic bytes, so a compressed file
// without a .gz or .zst suffix is still read correctly.
func OpenDecompressed(ctx context.Context, uri string, store ObjectStore) (io.ReadCloser, Compression, error) {
	raw, err := openRaw(ctx, uri, store)
	if err != nil {
		return nil, CompressionNone, err
	}
	br := bufio.NewReaderSize(raw, 64*1024)
	sig, _ := br.Peek(4)

	switch {
	case bytes.HasPrefix(sig, gzipMagic):
		gr, err := gzip.NewReader(br)
		if err != nil {
			_ = raw.Close()
			return nil, CompressionNone, errors.Wrap(err, errors.CodeInputUnreadable, "corrupt gzip stream").
				WithDetailf("path %q", uri)
		}
		return &multiReadCloser{Reader: gr, closers: []io.Closer{gr, raw}}, CompressionGzip, nil
	case bytes.HasPrefix(sig, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			_ = raw.Close()
			return nil, CompressionNone, errors.Wrap(err, errors.CodeInputUnreadable, "corrupt zstd stream").
				WithDetailf("path %q", uri)
		}
		return &multiReadCloser{Reader: zr, closers: []io.Closer{zr.IOReadCloser(), raw}}, CompressionZstd, nil
	}
	return &multiReadCloser{Reader: br, closers: []io.Closer{raw}}, CompressionNone, nil
}

// ReadAll reads a whole, possibly compressed, input.  Used for auxiliary
// structures such as the reference pose or the protein.
func ReadAll(ctx context.Context, uri string, store ObjectStore) ([]byte, error) {
	rc, _, err := OpenDecompressed(ctx, uri, store)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInputUnreadable, "cannot read input").WithDetailf("path %q", uri)
	}
	return data, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Output
// ─────────────────────────────────────────────────────────────────────────────

type stdoutCloser struct{ io.Writer }

func (stdoutCloser) Close() error { return nil }

// multiWriteCloser flushes the compressor before closing the destination.
type multiWriteCloser struct {
	io.Writer
	closers []io.Closer
}

func (m *multiWriteCloser) Close() error {
	var err error
	for _, c := range m.closers {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

func createRaw(ctx context.Context, uri string, store ObjectStore) (io.WriteCloser, error) {
	switch {
	case uri == StdStream:
		return stdoutCloser{os.Stdout}, nil
	case IsS3URI(uri):
		bucket, key, ok := ParseS3URI(uri)
		if !ok {
			return nil, errors.New(errors.CodeInvalidParam, "malformed object URI").WithDetailf("uri %q", uri)
		}
		if store == nil {
			return nil, errors.New(errors.CodeInvalidParam, "object storage is not configured").
				WithDetailf("uri %q; set storage.s3.endpoint", uri)
		}
		return store.Create(ctx, bucket, key)
	}
	fh, err := os.Create(uri)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeOutputUnwritable, "cannot create output").WithDetailf("path %q", uri)
	}
	return fh, nil
}

// CreateCompressed opens uri for writing through the given codec.
func CreateCompressed(ctx context.Context, uri string, comp Compression, store ObjectStore) (io.WriteCloser, error) {
	raw, err := createRaw(ctx, uri, store)
	if err != nil {
		return nil, err
	}
	switch comp {
	case CompressionGzip:
		gw := gzip.NewWriter(raw)
		return &multiWriteCloser{Writer: gw, closers: []io.Closer{gw, raw}}, nil
	case CompressionZstd:
		zw, err := zstd.NewWriter(raw)
		if err != nil {
			_ = raw.Close()
			return nil, errors.Wrap(err, errors.CodeOutputUnwritable, "cannot start zstd stream").WithDetailf("path %q", uri)
		}
		return &multiWriteCloser{Writer: zw, closers: []io.Closer{zw, raw}}, nil
	}
	return raw, nil
}

// OutputCompression picks the output codec: the output suffix when it names
// one, otherwise the codec the input was read with.  Stdout follows the
// input too.
func OutputCompression(output string, input Compression) Compression {
	if output != StdStream {
		if _, comp := SplitCompression(output); comp != CompressionNone {
			return comp
		}
	}
	return input
}
