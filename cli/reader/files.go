package reader

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/justapithecus/hbframe/grid"
	"github.com/justapithecus/hbframe/iox"
	"github.com/justapithecus/hbframe/ipc"
	"github.com/justapithecus/hbframe/rdh"
	"github.com/justapithecus/hbframe/types"
)

// Header file formats.
const (
	FormatRaw = "raw"
	FormatIPC = "ipc"
)

// DetectFormat infers the header file format from its extension, ignoring
// a trailing .xz. Anything that is not .ipc is read as raw pages.
func DetectFormat(path string) string {
	path = strings.TrimSuffix(path, iox.XZSuffix)
	if strings.EqualFold(filepath.Ext(path), ".ipc") {
		return FormatIPC
	}
	return FormatRaw
}

// ExpandPaths resolves glob patterns ("out/**/*.raw.xz") to a sorted,
// de-duplicated file list. A pattern without matches is an error.
func ExpandPaths(patterns []string) ([]string, error) {
	var out []string
	for _, p := range patterns {
		matches, err := doublestar.FilepathGlob(p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", p, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", p)
		}
		out = append(out, matches...)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// ReadHeaders decodes every header of a raw or ipc file. For raw files it
// also returns the digest of the uncompressed page stream.
// Uncompressed raw files are memory-mapped.
func ReadHeaders(path, format string) (headers []types.RawHeader, digest string, err error) {
	if format == "" {
		format = DetectFormat(path)
	}

	if format == FormatRaw && iox.DetectCompression(path) == iox.CompressionNone {
		data, closer, err := iox.MapFile(path)
		if err != nil {
			return nil, "", err
		}
		defer iox.DiscardClose(closer)

		headers, err = rdh.ReadAll(bytes.NewReader(data))
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", path, err)
		}
		digest, err = iox.Digest(bytes.NewReader(data), nil)
		return headers, digest, err
	}

	r, err := iox.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer iox.DiscardClose(r)

	switch format {
	case FormatRaw:
		dw, err := iox.NewDigestWriter(io.Discard, nil)
		if err != nil {
			return nil, "", err
		}
		headers, err = rdh.ReadAll(io.TeeReader(r, dw))
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", path, err)
		}
		return headers, dw.Sum(), nil
	case FormatIPC:
		stream, err := ipc.ReadHeaderStream(r)
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", path, err)
		}
		return stream.Headers, "", nil
	default:
		return nil, "", fmt.Errorf("unknown header format %q", format)
	}
}

// Rows lays headers out one per row, placing each on g.
// Headers before the grid epoch get HBF, TF and HBInTF of -1.
func Rows(g *grid.Grid, headers []types.RawHeader) ([]HeaderRow, FileTotals) {
	rows := make([]HeaderRow, 0, len(headers))
	var tot FileTotals
	for i, h := range headers {
		row := HeaderRow{
			Index:   i,
			Kind:    kind(h),
			HBF:     -1,
			TF:      -1,
			HBInTF:  -1,
			Size:    h.MemorySize,
			Orbit:   h.Orbit,
			BC:      h.BC,
			Trigger: h.TriggerType.String(),
			Packet:  h.PacketCounter,
			Page:    h.PageCounter,
			Stop:    h.Stop,
		}
		if hbf, err := g.HBF(h.IR()); err == nil {
			row.HBF = int64(hbf)
			row.TF, row.HBInTF = g.TFAndPosition(hbf)
		}
		rows = append(rows, row)

		switch {
		case h.Stop:
			tot.Closed++
		case h.IsOpen():
			tot.Opened++
			if h.TriggerType.Has(types.TriggerTimeFrame) {
				tot.TimeFrames++
			}
			if h.TriggerType.Has(types.TriggerHeartbeat) {
				tot.Frames++
			}
			if h.IsEmpty() {
				tot.EmptyFrames++
			}
		}
	}
	return rows, tot
}

func kind(h types.RawHeader) string {
	switch {
	case h.Stop:
		return "close"
	case h.IsContinuation():
		return "cont"
	default:
		return "open"
	}
}

// Inspect reads one header file and lays it out on g.
func Inspect(g *grid.Grid, path, format string) (*InspectFileResponse, error) {
	if format == "" {
		format = DetectFormat(path)
	}
	headers, digest, err := ReadHeaders(path, format)
	if err != nil {
		return nil, err
	}
	rows, tot := Rows(g, headers)
	return &InspectFileResponse{
		Path:    path,
		Format:  format,
		Pages:   len(headers),
		Digest:  digest,
		Totals:  tot,
		Headers: rows,
	}, nil
}

// FormatRow renders a row like the reference sampler printout.
func FormatRow(r HeaderRow) string {
	kind := "Open "
	if r.Stop {
		kind = "Close"
	} else if r.Kind == "cont" {
		kind = "Cont "
	}
	return fmt.Sprintf("%s HBF%4d (TF%3d/HB%3d) Sz:%4d| HB Orbit/BC :%4d/%4d Trigger: %-12s Packet: %3d Page: %3d Stop: %d",
		kind, r.HBF, r.TF, r.HBInTF, r.Size, r.Orbit, r.BC, r.Trigger, r.Packet, r.Page, boolInt(r.Stop))
}

// FormatTotals renders the closing tally line.
func FormatTotals(t FileTotals) string {
	return fmt.Sprintf("N_TF=%d, N_HBF=%d (%d empty), Opened %d / Closed %d",
		t.TimeFrames, t.Frames, t.EmptyFrames, t.Opened, t.Closed)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Text renders the file the way the sampler printout does: one line per
// header followed by the tally.
func (r *InspectFileResponse) Text() string {
	var b strings.Builder
	for _, row := range r.Headers {
		b.WriteString(FormatRow(row))
		b.WriteByte('\n')
	}
	b.WriteString(FormatTotals(r.Totals))
	b.WriteByte('\n')
	return b.String()
}
