package rdh

import (
	"errors"
	"fmt"
	"io"

	"github.com/justapithecus/hbframe/types"
)

// ErrTruncatedPage is returned when a page ends before its offset to next.
var ErrTruncatedPage = errors.New("truncated raw data page")

// Writer appends pages (header plus opaque zero payload) to a byte stream.
type Writer struct {
	w     io.Writer
	buf   []byte
	pages int64
	bytes int64
}

// NewWriter returns a Writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteHeader writes h followed by OffsetToNext-HeaderSize payload bytes.
func (w *Writer) WriteHeader(h types.RawHeader) error {
	w.buf = AppendHeader(w.buf[:0], h)
	if pad := int(h.OffsetToNext) - len(w.buf); pad > 0 {
		w.buf = append(w.buf, make([]byte, pad)...)
	}
	n, err := w.w.Write(w.buf)
	w.bytes += int64(n)
	if err != nil {
		return err
	}
	w.pages++
	return nil
}

// Pages returns the number of pages written.
func (w *Writer) Pages() int64 { return w.pages }

// Bytes returns the number of bytes written.
func (w *Writer) Bytes() int64 { return w.bytes }

// Reader decodes pages written by Writer, skipping payloads.
type Reader struct {
	r   io.Reader
	buf [MaxHeaderSize]byte
}

// NewReader returns a Reader on r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadHeader returns the next header and skips the rest of its page.
// Returns io.EOF at a clean end of stream.
func (r *Reader) ReadHeader() (types.RawHeader, error) {
	if _, err := io.ReadFull(r.r, r.buf[:LayoutSize]); err != nil {
		if err == io.EOF {
			return types.RawHeader{}, io.EOF
		}
		return types.RawHeader{}, fmt.Errorf("%w: %v", ErrTruncatedPage, err)
	}
	h, err := Unmarshal(r.buf[:LayoutSize])
	if err != nil {
		return types.RawHeader{}, err
	}
	if int(h.OffsetToNext) < int(h.HeaderSize) {
		return types.RawHeader{}, fmt.Errorf("%w: offset to next %d below header size %d",
			ErrBadHeaderSize, h.OffsetToNext, h.HeaderSize)
	}
	rest := int64(h.OffsetToNext) - LayoutSize
	if n, err := io.CopyN(io.Discard, r.r, rest); err != nil {
		return types.RawHeader{}, fmt.Errorf("%w: got %d of %d bytes", ErrTruncatedPage, n, rest)
	}
	return h, nil
}

// ReadAll decodes every page from r.
func ReadAll(r io.Reader) ([]types.RawHeader, error) {
	rd := NewReader(r)
	var out []types.RawHeader
	for {
		h, err := rd.ReadHeader()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, h)
	}
}
