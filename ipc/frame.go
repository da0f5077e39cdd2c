// Package ipc implements the length-prefixed msgpack stream used to move
// interaction records in and header pages out of the framing pipeline.
//
// Every frame is a 4-byte big-endian payload length followed by a msgpack
// map carrying a "type" discriminant.
package ipc

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/justapithecus/hbframe/types"
)

// Frame size constants.
const (
	// MaxFrameSize is the maximum frame size (16 MiB), including length prefix.
	MaxFrameSize = 16 * 1024 * 1024
	// MaxPayloadSize is the maximum payload size (MaxFrameSize - 4 bytes).
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// Frame type discriminants.
const (
	RecordType  = "record"
	HeaderType  = "header"
	SummaryType = "summary"
)

// RecordFrame carries one interaction record.
type RecordFrame struct {
	Type   string                  `msgpack:"type"`
	Record types.InteractionRecord `msgpack:"record"`
}

// HeaderFrame carries one header page. Seq is the zero-based position of
// the page in its session's stream.
type HeaderFrame struct {
	Type   string          `msgpack:"type"`
	Seq    int64           `msgpack:"seq"`
	Header types.RawHeader `msgpack:"header"`
}

// SummaryFrame carries the final session summary and terminates a header
// stream.
type SummaryFrame struct {
	Type    string               `msgpack:"type"`
	Summary types.SessionSummary `msgpack:"summary"`
	Outcome types.SessionOutcome `msgpack:"outcome"`
}

// FrameErrorKind classifies frame decoding errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding MaxFrameSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack decoding error.
	FrameErrorDecode
	// FrameErrorUnknownType indicates a well-formed frame of a type this
	// reader does not handle.
	FrameErrorUnknownType
)

// FrameError represents a frame decoding error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (k FrameErrorKind) String() string {
	switch k {
	case FrameErrorPartial:
		return "partial frame"
	case FrameErrorTooLarge:
		return "oversized frame"
	case FrameErrorDecode:
		return "undecodable frame"
	case FrameErrorUnknownType:
		return "unknown frame"
	}
	return fmt.Sprintf("FrameErrorKind(%d)", int(k))
}

func (e *FrameError) Error() string {
	msg := "ipc: " + e.Kind.String() + ": " + e.Msg
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if the stream cannot be resynchronized.
// Partial and oversized frames are fatal; a bad payload only loses itself.
func (e *FrameError) IsFatal() bool {
	return e.Kind == FrameErrorPartial || e.Kind == FrameErrorTooLarge
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// FrameDecoder reads length-prefixed frames from a stream.
type FrameDecoder struct {
	r      *bufio.Reader
	prefix [LengthPrefixSize]byte
}

// NewFrameDecoder wraps r in a buffered reader unless it already is one.
func NewFrameDecoder(r io.Reader) *FrameDecoder {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &FrameDecoder{r: br}
}

// ReadFrame returns the next frame payload. A clean end of stream between
// frames is io.EOF; a stream ending inside a frame is a fatal
// FrameErrorPartial and an over-limit prefix a fatal FrameErrorTooLarge.
func (d *FrameDecoder) ReadFrame() ([]byte, error) {
	switch _, err := io.ReadFull(d.r, d.prefix[:]); {
	case err == io.EOF:
		return nil, io.EOF
	case err != nil:
		return nil, &FrameError{Kind: FrameErrorPartial, Msg: "length prefix", Err: err}
	}

	n := binary.BigEndian.Uint32(d.prefix[:])
	if n > MaxPayloadSize {
		return nil, tooLarge(int(n))
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(d.r, payload); err != nil {
		return nil, &FrameError{Kind: FrameErrorPartial, Msg: fmt.Sprintf("payload of %d bytes", n), Err: err}
	}
	return payload, nil
}

func tooLarge(n int) *FrameError {
	return &FrameError{
		Kind: FrameErrorTooLarge,
		Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", n, MaxPayloadSize),
	}
}

// FrameEncoder writes length-prefixed frames. Each frame goes out in a
// single Write.
type FrameEncoder struct {
	w      io.Writer
	buf    []byte
	frames int64
}

// NewFrameEncoder creates a new frame encoder.
func NewFrameEncoder(w io.Writer) *FrameEncoder {
	return &FrameEncoder{w: w}
}

// Encode marshals v with msgpack and writes it as one frame.
func (e *FrameEncoder) Encode(v any) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	return e.WriteFrame(payload)
}

// WriteFrame writes payload behind its length prefix.
func (e *FrameEncoder) WriteFrame(payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return tooLarge(len(payload))
	}
	e.buf = binary.BigEndian.AppendUint32(e.buf[:0], uint32(len(payload)))
	e.buf = append(e.buf, payload...)
	if _, err := e.w.Write(e.buf); err != nil {
		return err
	}
	e.frames++
	return nil
}

// Frames returns the number of frames written.
func (e *FrameEncoder) Frames() int64 {
	return e.frames
}

// frameTypeProbe is used to peek at the type field without full decode.
type frameTypeProbe struct {
	Type string `msgpack:"type"`
}

// DecodeFrame decodes a payload into a *RecordFrame, *HeaderFrame or
// *SummaryFrame depending on its type field.
func DecodeFrame(payload []byte) (any, error) {
	var probe frameTypeProbe
	if err := msgpack.Unmarshal(payload, &probe); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode frame type",
			Err:  err,
		}
	}

	switch probe.Type {
	case RecordType:
		return decodeAs[RecordFrame](payload, "record")
	case HeaderType:
		return decodeAs[HeaderFrame](payload, "header")
	case SummaryType:
		return decodeAs[SummaryFrame](payload, "summary")
	default:
		return nil, &FrameError{
			Kind: FrameErrorUnknownType,
			Msg:  fmt.Sprintf("unknown frame type %q", probe.Type),
		}
	}
}

func decodeAs[T any](payload []byte, what string) (*T, error) {
	var v T
	if err := msgpack.Unmarshal(payload, &v); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode " + what,
			Err:  err,
		}
	}
	return &v, nil
}
