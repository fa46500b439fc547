package chemio

import (
	"bufio"
	"context"
	"io"
	"syscall"

	"github.com/turtacn/molfilter/pkg/errors"
)

// CreateOptions configures Create.
type CreateOptions struct {
	Compression Compression
	// Header is written once before the first record, e.g. a SMILES table
	// header line.
	Header []byte
	Store  ObjectStore
}

// Writer copies records, byte for byte, to an output stream.
type Writer struct {
	uri   string
	wc    io.WriteCloser
	bw    *bufio.Writer
	count int
}

// Create opens uri for writing.  The header, if any, is written immediately
// so that an output without passing records still carries it.
func Create(ctx context.Context, uri string, opts CreateOptions) (*Writer, error) {
	wc, err := CreateCompressed(ctx, uri, opts.Compression, opts.Store)
	if err != nil {
		return nil, err
	}
	w := &Writer{uri: uri, wc: wc, bw: bufio.NewWriterSize(wc, 256*1024)}
	if len(opts.Header) > 0 {
		if err := w.writeTerminated(opts.Header); err != nil {
			_ = wc.Close()
			return nil, err
		}
	}
	return w, nil
}

// Write appends the raw bytes of rec.  A record missing its final newline,
// such as the last line of a file, gets one.
func (w *Writer) Write(rec Record) error {
	if err := w.writeTerminated(rec.Raw); err != nil {
		return err
	}
	w.count++
	return nil
}

// WriteLine appends one text line.
func (w *Writer) WriteLine(s string) error {
	return w.writeTerminated([]byte(s))
}

// Count returns the number of records written.
func (w *Writer) Count() int { return w.count }

func (w *Writer) writeTerminated(b []byte) error {
	if _, err := w.bw.Write(b); err != nil {
		return w.writeErr(err)
	}
	if len(b) == 0 || b[len(b)-1] != '\n' {
		if err := w.bw.WriteByte('\n'); err != nil {
			return w.writeErr(err)
		}
	}
	return nil
}

// Close flushes buffered records and closes the stream.
func (w *Writer) Close() error {
	ferr := w.bw.Flush()
	cerr := w.wc.Close()
	if ferr != nil {
		return w.writeErr(ferr)
	}
	if cerr != nil {
		return w.writeErr(cerr)
	}
	return nil
}

func (w *Writer) writeErr(err error) error {
	if IsBrokenPipe(err) {
		return errors.Wrap(err, errors.CodeCanceled, "output closed by reader").WithDetailf("path %q", w.uri)
	}
	return errors.Wrap(err, errors.CodeOutputWriteFailed, "write failed").WithDetailf("path %q", w.uri)
}

// IsBrokenPipe reports whether err comes from a downstream consumer, such as
// `head`, closing the pipe early.
func IsBrokenPipe(err error) bool {
	return err != nil && (errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrClosedPipe))
}
