package runtime

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"path/filepath"
	"slices"
	"strings"

	"github.com/justapithecus/hbframe/iox"
	"github.com/justapithecus/hbframe/sampler"
	"github.com/justapithecus/hbframe/types"
)

// ErrSource marks failures reading collision times. They end a session with
// an input_error outcome.
var ErrSource = errors.New("source")

// Input is one link's record stream.
type Input struct {
	// Records yields the link's collision times in order.
	Records iter.Seq[types.InteractionRecord]

	err    error
	closer io.Closer
}

// Err returns the read error recorded while iterating Records.
func (in *Input) Err() error {
	if in.err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrSource, in.err)
}

// Close releases the underlying reader.
func (in *Input) Close() error {
	if in.closer == nil {
		return nil
	}
	return in.closer.Close()
}

// Source opens the collision-time stream of a link. index is the link's
// position in the run; onSkip is told about undecodable input that was
// skipped.
type Source interface {
	Open(link Link, index int, onSkip func(error)) (*Input, error)
}

// PoissonSource generates Count records per link. Each link draws from its
// own stream seeded with Config.Seed + index.
type PoissonSource struct {
	Config sampler.PoissonConfig
	Count  int
}

// Open implements Source.
func (s PoissonSource) Open(_ Link, index int, _ func(error)) (*Input, error) {
	cfg := s.Config
	cfg.Seed += uint64(index)
	gen, err := sampler.NewPoisson(cfg)
	if err != nil {
		return nil, err
	}
	return &Input{Records: gen.Records(s.Count)}, nil
}

// Input file formats.
const (
	FormatCSV = "csv"
	FormatIPC = "ipc"
)

// LinkPlaceholder in a FileSource path is replaced by the link name.
const LinkPlaceholder = "{link}"

// FileSource reads records from a CSV or ipc record file. xz-compressed
// files are decompressed on the fly.
type FileSource struct {
	// Path of the input. May contain LinkPlaceholder.
	Path string
	// Format is csv or ipc. Empty is detected from the extension.
	Format string
}

// PathFor returns the input path of link.
func (s FileSource) PathFor(link Link) string {
	return strings.ReplaceAll(s.Path, LinkPlaceholder, link.Name)
}

// Open implements Source.
func (s FileSource) Open(link Link, _ int, onSkip func(error)) (*Input, error) {
	path := s.PathFor(link)
	format := s.Format
	if format == "" {
		format = DetectFormat(path)
	}

	r, err := iox.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrSource, path, err)
	}

	in := &Input{closer: r}
	switch format {
	case FormatCSV:
		in.Records = sampler.ReadCSV(r, &in.err)
	case FormatIPC:
		in.Records = sampler.ReadIPC(r, onSkip, &in.err)
	default:
		iox.DiscardClose(r)
		return nil, fmt.Errorf("%w: unknown input format %q", ErrSource, format)
	}
	return in, nil
}

// DetectFormat infers the input format from the file extension, ignoring a
// trailing .xz. Anything that is not .csv is read as ipc.
func DetectFormat(path string) string {
	path = strings.TrimSuffix(path, iox.XZSuffix)
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return FormatCSV
	}
	return FormatIPC
}

// SliceSource serves fixed records, keyed by link name. Links without an
// entry get an empty stream.
type SliceSource map[string][]types.InteractionRecord

// Open implements Source.
func (s SliceSource) Open(link Link, _ int, _ func(error)) (*Input, error) {
	return &Input{Records: slices.Values(s[link.Name])}, nil
}
