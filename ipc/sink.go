package ipc

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/justapithecus/hbframe/policy"
	"github.com/justapithecus/hbframe/types"
)

// ErrSinkClosed is returned by writes after Close.
var ErrSinkClosed = errors.New("ipc sink closed")

// Sink writes header pages as header frames to a stream, typically the
// stdout of the emulator consumed by a downstream reader.
type Sink struct {
	mu     sync.Mutex
	w      *bufio.Writer
	enc    *FrameEncoder
	closer io.Closer
	seq    int64
	closed bool
}

// NewSink returns a sink writing to w. If w is an io.Closer it is closed by
// Close.
func NewSink(w io.Writer) *Sink {
	bw := bufio.NewWriter(w)
	s := &Sink{w: bw, enc: NewFrameEncoder(bw)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// WriteHeaders encodes and flushes one batch.
func (s *Sink) WriteHeaders(ctx context.Context, headers []types.RawHeader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	for _, h := range headers {
		if err := s.enc.Encode(HeaderFrame{Type: HeaderType, Seq: s.seq, Header: h}); err != nil {
			return err
		}
		s.seq++
	}
	return s.w.Flush()
}

// WriteSummary appends the terminating summary frame.
func (s *Sink) WriteSummary(summary types.SessionSummary, outcome types.SessionOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	if err := s.enc.Encode(SummaryFrame{Type: SummaryType, Summary: summary, Outcome: outcome}); err != nil {
		return err
	}
	return s.w.Flush()
}

// Close flushes and closes the underlying writer. Close is idempotent.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.w.Flush()
	if s.closer != nil {
		err = errors.Join(err, s.closer.Close())
	}
	return err
}

// Headers returns the number of header frames written.
func (s *Sink) Headers() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

var _ policy.Sink = (*Sink)(nil)

// HeaderStream is the decoded content of a header frame stream.
type HeaderStream struct {
	Headers []types.RawHeader
	Summary *SummaryFrame
}

// ReadHeaderStream decodes a stream written by Sink. Sequence gaps are
// reported as decode errors.
func ReadHeaderStream(r io.Reader) (*HeaderStream, error) {
	dec := NewFrameDecoder(r)
	out := &HeaderStream{}
	for {
		payload, err := dec.ReadFrame()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		v, err := DecodeFrame(payload)
		if err != nil {
			return out, err
		}
		switch f := v.(type) {
		case *HeaderFrame:
			if f.Seq != int64(len(out.Headers)) {
				return out, &FrameError{
					Kind: FrameErrorDecode,
					Msg:  "header sequence gap",
				}
			}
			out.Headers = append(out.Headers, f.Header)
		case *SummaryFrame:
			out.Summary = f
		}
	}
}
