package reader

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/justapithecus/hbframe/grid"
	"github.com/justapithecus/hbframe/iox"
	"github.com/justapithecus/hbframe/ipc"
	"github.com/justapithecus/hbframe/policy"
	"github.com/justapithecus/hbframe/rdh"
	"github.com/justapithecus/hbframe/session"
	"github.com/justapithecus/hbframe/types"
)

var gapRecords = []types.InteractionRecord{
	{Orbit: 0, BC: 0, PayloadSize: 100},
	{Orbit: 5, BC: 0, PayloadSize: 100},
}

// emit runs one session over gapRecords into sink.
func emit(t *testing.T, sink policy.Sink) types.SessionSummary {
	t.Helper()
	pol := policy.NewStrictPolicy(sink)
	s, err := session.New(session.DefaultConfig(), pol)
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	sum, err := session.Run(t.Context(), s, slices.Values(gapRecords))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := pol.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return sum
}

func writeRaw(t *testing.T, path string, digest bool) (*rdh.FileSink, types.SessionSummary) {
	t.Helper()
	sink, err := rdh.NewFileSink(path, rdh.FileOptions{Digest: digest})
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	return sink, emit(t, sink)
}

func TestInspect_Raw(t *testing.T) {
	for _, name := range []string{"tpc_l0.raw", "tpc_l0.raw.xz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			sink, sum := writeRaw(t, path, true)

			resp, err := Inspect(grid.MustNew(grid.DefaultConfig()), path, "")
			if err != nil {
				t.Fatalf("Inspect: %v", err)
			}
			if resp.Format != FormatRaw || int64(resp.Pages) != sum.Headers {
				t.Errorf("format/pages = %s/%d, want raw/%d", resp.Format, resp.Pages, sum.Headers)
			}
			if resp.Digest != sink.Digest() {
				t.Errorf("digest = %s, want %s", resp.Digest, sink.Digest())
			}
			want := FileTotals{TimeFrames: 1, Frames: 6, EmptyFrames: 4, Opened: 6, Closed: 6}
			if resp.Totals != want {
				t.Errorf("totals = %+v, want %+v", resp.Totals, want)
			}

			first, last := resp.Headers[0], resp.Headers[len(resp.Headers)-1]
			if first.Kind != "open" || first.HBF != 0 || first.TF != 0 || first.HBInTF != 0 {
				t.Errorf("first row = %+v", first)
			}
			if last.Kind != "close" || !last.Stop || last.HBF != 5 || last.HBInTF != 5 {
				t.Errorf("last row = %+v", last)
			}
		})
	}
}

func TestInspect_IPC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tpc_l0.ipc")
	w, err := iox.Create(path, iox.CompressionNone)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	sum := emit(t, ipc.NewSink(w))

	resp, err := Inspect(grid.MustNew(grid.DefaultConfig()), path, "")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if resp.Format != FormatIPC || int64(resp.Pages) != sum.Headers {
		t.Errorf("format/pages = %s/%d", resp.Format, resp.Pages)
	}
	if resp.Digest != "" {
		t.Errorf("ipc digest = %q, want empty", resp.Digest)
	}
	if resp.Totals.Opened != resp.Totals.Closed {
		t.Errorf("opened %d != closed %d", resp.Totals.Opened, resp.Totals.Closed)
	}
}

func TestInspect_Truncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.raw")
	if err := os.WriteFile(path, make([]byte, 10), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Inspect(grid.MustNew(grid.DefaultConfig()), path, ""); err == nil {
		t.Error("expected error for truncated page")
	}
}

func TestRows_BeforeEpoch(t *testing.T) {
	g := grid.MustNew(grid.Config{FirstOrbit: 100, OrbitsPerHBF: 1, HBFPerTF: 8, BunchCrossings: 3564})
	rows, _ := Rows(g, []types.RawHeader{{Orbit: 50}, {Orbit: 109}})
	if rows[0].HBF != -1 || rows[0].TF != -1 {
		t.Errorf("pre-epoch row = %+v", rows[0])
	}
	if rows[1].HBF != 9 || rows[1].TF != 1 || rows[1].HBInTF != 1 {
		t.Errorf("row = %+v", rows[1])
	}
}

func TestExpandPaths(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{"a/x.raw", "a/b/y.raw.xz", "a/z.ipc"} {
		full := filepath.Join(dir, p)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := ExpandPaths([]string{
		filepath.Join(dir, "**", "*.raw*"),
		filepath.Join(dir, "a", "x.raw"),
	})
	if err != nil {
		t.Fatalf("ExpandPaths: %v", err)
	}
	want := []string{filepath.Join(dir, "a", "b", "y.raw.xz"), filepath.Join(dir, "a", "x.raw")}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if _, err := ExpandPaths([]string{filepath.Join(dir, "*.none")}); err == nil {
		t.Error("expected error for pattern without matches")
	}
}

func TestDetectFormat(t *testing.T) {
	tests := map[string]string{
		"a.raw":    FormatRaw,
		"a.raw.xz": FormatRaw,
		"a.ipc":    FormatIPC,
		"a.IPC.xz": FormatIPC,
		"a":        FormatRaw,
	}
	for path, want := range tests {
		if got := DetectFormat(path); got != want {
			t.Errorf("DetectFormat(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestFormatRow(t *testing.T) {
	row := HeaderRow{Kind: "close", HBF: 3, TF: 0, HBInTF: 3, Size: 64, Orbit: 3, BC: 0, Trigger: "HB|EMPTY", Packet: 7, Page: 1, Stop: true}
	got := FormatRow(row)
	for _, want := range []string{"Close HBF   3", "(TF  0/HB  3)", "Sz:  64", "Packet:   7", "Stop: 1"} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatRow = %q, missing %q", got, want)
		}
	}
	if got := FormatTotals(FileTotals{TimeFrames: 1, Frames: 6, EmptyFrames: 4, Opened: 6, Closed: 6}); got != "N_TF=1, N_HBF=6 (4 empty), Opened 6 / Closed 6" {
		t.Errorf("FormatTotals = %q", got)
	}
}
