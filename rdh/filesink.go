package rdh

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/justapithecus/hbframe/iox"
	"github.com/justapithecus/hbframe/policy"
	"github.com/justapithecus/hbframe/types"
)

// FileOptions controls the raw output file encoding.
type FileOptions struct {
	// Compression of the file on disk. Empty is detected from the path.
	Compression iox.Compression
	// Digest enables a HighwayHash digest of the uncompressed page stream.
	Digest bool
	// DigestKey is the 32-byte hash key. Nil selects iox.DefaultDigestKey.
	DigestKey []byte
}

// FileSink writes raw pages to a file. Implements policy.Sink.
//
// Layering: Writer -> digest -> bufio -> xz -> file.
type FileSink struct {
	mu     sync.Mutex
	path   string
	out    io.WriteCloser
	bw     *bufio.Writer
	digest *iox.DigestWriter
	w      *Writer
	sum    string
}

// NewFileSink creates (or truncates) path.
func NewFileSink(path string, o FileOptions) (*FileSink, error) {
	c := o.Compression
	if c == "" {
		c = iox.DetectCompression(path)
	}
	out, err := iox.Create(path, c)
	if err != nil {
		return nil, fmt.Errorf("create raw output %s: %w", path, err)
	}

	s := &FileSink{path: path, out: out, bw: bufio.NewWriterSize(out, 1<<16)}
	var dst io.Writer = s.bw
	if o.Digest {
		s.digest, err = iox.NewDigestWriter(s.bw, o.DigestKey)
		if err != nil {
			iox.DiscardClose(out)
			return nil, err
		}
		dst = s.digest
	}
	s.w = NewWriter(dst)
	return s, nil
}

// WriteHeaders writes each header and its payload in order.
func (s *FileSink) WriteHeaders(ctx context.Context, headers []types.RawHeader) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.out == nil {
		return os.ErrClosed
	}
	for _, h := range headers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.w.WriteHeader(h); err != nil {
			return fmt.Errorf("write %s: %w", s.path, err)
		}
	}
	return nil
}

// Close flushes buffered pages, finishes compression and closes the file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.out == nil {
		return nil
	}
	if s.digest != nil {
		s.sum = s.digest.Sum()
	}
	flushErr := s.bw.Flush()
	closeErr := s.out.Close()
	s.out = nil
	if flushErr != nil {
		return fmt.Errorf("flush %s: %w", s.path, flushErr)
	}
	return closeErr
}

// Path returns the output path.
func (s *FileSink) Path() string { return s.path }

// Digest returns the hex digest of the uncompressed stream written so far,
// or "" when digests are disabled.
func (s *FileSink) Digest() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.digest == nil {
		return ""
	}
	if s.out == nil {
		return s.sum
	}
	return s.digest.Sum()
}

// Stats returns pages and uncompressed bytes written so far.
func (s *FileSink) Stats() (pages, bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Pages(), s.w.Bytes()
}

var _ policy.Sink = (*FileSink)(nil)
