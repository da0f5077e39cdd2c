package ipc

import (
	"errors"
	"io"
	"iter"

	"github.com/justapithecus/hbframe/types"
)

// WriteRecords encodes records as a record frame stream.
func WriteRecords(w io.Writer, records iter.Seq[types.InteractionRecord]) (int64, error) {
	enc := NewFrameEncoder(w)
	for rec := range records {
		if err := enc.Encode(RecordFrame{Type: RecordType, Record: rec}); err != nil {
			return enc.Frames(), err
		}
	}
	return enc.Frames(), nil
}

// RecordReader reads interaction records from a frame stream.
//
// Frames that fail to decode, and frames of other types, are skipped and
// reported through OnSkip. Fatal framing errors end the stream.
type RecordReader struct {
	dec *FrameDecoder

	// OnSkip, if set, is called with every non-fatal frame error.
	OnSkip func(error)

	skipped int64
}

// NewRecordReader returns a reader over r.
func NewRecordReader(r io.Reader) *RecordReader {
	return &RecordReader{dec: NewFrameDecoder(r)}
}

// Next returns the next record, or io.EOF at a clean end of stream.
func (r *RecordReader) Next() (types.InteractionRecord, error) {
	for {
		payload, err := r.dec.ReadFrame()
		if err != nil {
			return types.InteractionRecord{}, err
		}
		v, err := DecodeFrame(payload)
		if err != nil {
			r.skip(err)
			continue
		}
		frame, ok := v.(*RecordFrame)
		if !ok {
			r.skip(&FrameError{Kind: FrameErrorUnknownType, Msg: "non-record frame in record stream"})
			continue
		}
		return frame.Record, nil
	}
}

// Skipped returns the number of frames skipped so far.
func (r *RecordReader) Skipped() int64 {
	return r.skipped
}

func (r *RecordReader) skip(err error) {
	r.skipped++
	if r.OnSkip != nil {
		r.OnSkip(err)
	}
}

// All returns the remaining records as a sequence. The error of a fatal
// frame, if any, is stored in *errp once the sequence ends.
func (r *RecordReader) All(errp *error) iter.Seq[types.InteractionRecord] {
	return func(yield func(types.InteractionRecord) bool) {
		for {
			rec, err := r.Next()
			if err != nil {
				if !errors.Is(err, io.EOF) && errp != nil {
					*errp = err
				}
				return
			}
			if !yield(rec) {
				return
			}
		}
	}
}
