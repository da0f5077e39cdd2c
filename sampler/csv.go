package sampler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"

	"github.com/justapithecus/hbframe/ipc"
	"github.com/justapithecus/hbframe/types"
)

// ErrBadRow is wrapped by CSV rows that cannot be parsed.
var ErrBadRow = errors.New("bad record row")

// ReadCSV yields records from rows of "orbit,bc[,payload_size]". A first
// row starting with a non-numeric cell is treated as a header. Lines
// starting with '#' are comments. Parsing stops at the first bad row and
// its error is stored in *errp.
func ReadCSV(r io.Reader, errp *error) iter.Seq[types.InteractionRecord] {
	return func(yield func(types.InteractionRecord) bool) {
		cr := csv.NewReader(r)
		cr.Comment = '#'
		cr.FieldsPerRecord = -1
		cr.TrimLeadingSpace = true

		first := true
		for {
			row, err := cr.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				setErr(errp, err)
				return
			}
			if first {
				first = false
				if len(row) > 0 && !isNumeric(row[0]) {
					continue
				}
			}
			line, _ := cr.FieldPos(0)
			rec, err := parseRow(row)
			if err != nil {
				setErr(errp, fmt.Errorf("line %d: %w", line, err))
				return
			}
			if !yield(rec) {
				return
			}
		}
	}
}

func parseRow(row []string) (types.InteractionRecord, error) {
	if len(row) < 2 || len(row) > 3 {
		return types.InteractionRecord{}, fmt.Errorf("%w: want 2 or 3 fields, got %d", ErrBadRow, len(row))
	}
	orbit, err := strconv.ParseUint(strings.TrimSpace(row[0]), 10, 32)
	if err != nil {
		return types.InteractionRecord{}, fmt.Errorf("%w: orbit: %w", ErrBadRow, err)
	}
	bc, err := strconv.ParseUint(strings.TrimSpace(row[1]), 10, 16)
	if err != nil {
		return types.InteractionRecord{}, fmt.Errorf("%w: bc: %w", ErrBadRow, err)
	}
	rec := types.InteractionRecord{Orbit: uint32(orbit), BC: uint16(bc)}
	if len(row) == 3 && strings.TrimSpace(row[2]) != "" {
		size, err := strconv.ParseUint(strings.TrimSpace(row[2]), 10, 32)
		if err != nil {
			return types.InteractionRecord{}, fmt.Errorf("%w: payload_size: %w", ErrBadRow, err)
		}
		rec.PayloadSize = uint32(size)
	}
	return rec, nil
}

func isNumeric(s string) bool {
	_, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	return err == nil
}

// WriteCSV writes records with a header row.
func WriteCSV(w io.Writer, records iter.Seq[types.InteractionRecord]) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"orbit", "bc", "payload_size"}); err != nil {
		return err
	}
	for rec := range records {
		row := []string{
			strconv.FormatUint(uint64(rec.Orbit), 10),
			strconv.FormatUint(uint64(rec.BC), 10),
			strconv.FormatUint(uint64(rec.PayloadSize), 10),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadIPC yields records from an ipc record frame stream. onSkip, if not
// nil, is called for every undecodable frame.
func ReadIPC(r io.Reader, onSkip func(error), errp *error) iter.Seq[types.InteractionRecord] {
	rr := ipc.NewRecordReader(r)
	rr.OnSkip = onSkip
	return rr.All(errp)
}

func setErr(errp *error, err error) {
	if errp != nil {
		*errp = err
	}
}
