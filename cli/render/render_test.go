package render

import (
	"bytes"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"json": FormatJSON, "JSON": FormatJSON, "table": FormatTable,
		"yaml": FormatYAML, "Text": FormatText, "": "",
	} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}

	for _, in := range []string{"xml", "csv", "raw"} {
		_, err := ParseFormat(in)
		if err == nil || !strings.Contains(err.Error(), "json, table, yaml, or text") {
			t.Errorf("ParseFormat(%q) error = %v", in, err)
		}
	}
}

type linkRow struct {
	Link    string `json:"link"`
	FeeID   int    `json:"fee_id"`
	Headers int64  `json:"headers"`
}

func render(t *testing.T, f Format, noColor bool, data any) string {
	t.Helper()
	var buf bytes.Buffer
	if err := NewRendererWithWriter(f, noColor, &buf).Render(data); err != nil {
		t.Fatalf("Render(%s) failed: %v", f, err)
	}
	return buf.String()
}

func TestRenderer_Formats(t *testing.T) {
	row := linkRow{Link: "l0", FeeID: 3, Headers: 12}
	rows := []linkRow{row, {Link: "l1", FeeID: 4, Headers: 6}}

	tests := []struct {
		name   string
		format Format
		data   any
		want   []string
	}{
		{"json", FormatJSON, row, []string{`"link": "l0"`, `"fee_id": 3`}},
		{"yaml", FormatYAML, row, []string{"link: l0", "headers: 12"}},
		{"table record", FormatTable, row, []string{"link:", "fee_id:", "12"}},
		{"table rows", FormatTable, rows, []string{"link", "headers", "l0", "l1"}},
		{"table empty", FormatTable, []linkRow{}, []string{"(no results)"}},
		{"table nil", FormatTable, nil, []string{"(no results)"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := render(t, tt.format, false, tt.data)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("output missing %q:\n%s", w, got)
				}
			}
		})
	}
}

func TestRenderer_NoColorKeepsStructuredOutput(t *testing.T) {
	row := linkRow{Link: "l0", Headers: 12}
	for _, f := range []Format{FormatJSON, FormatYAML} {
		if render(t, f, false, row) != render(t, f, true, row) {
			t.Errorf("--no-color changed %s output", f)
		}
	}
}

type textPayload struct {
	Lines []string `json:"lines"`
}

func (p *textPayload) Text() string { return strings.Join(p.Lines, "\n") + "\n" }

func TestRenderer_Text(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatText, false, &buf)

	if err := r.Render(&textPayload{Lines: []string{"Open  HBF   0", "Close HBF   0"}}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if got := buf.String(); got != "Open  HBF   0\nClose HBF   0\n" {
		t.Errorf("text output = %q", got)
	}

	// Payloads without a text form fall back to table.
	buf.Reset()
	if err := r.Render(map[string]int{"b": 2, "a": 1}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	got := buf.String()
	if strings.Index(got, "a:") > strings.Index(got, "b:") || !strings.HasPrefix(got, "a:") {
		t.Errorf("table fallback not sorted: %q", got)
	}
}

func TestRenderer_Path(t *testing.T) {
	type Link struct {
		Name    string `json:"name"`
		Headers int    `json:"headers"`
	}
	data := struct {
		Links []Link `json:"links"`
	}{Links: []Link{{"l0", 12}, {"l1", 4}}}

	tests := []struct {
		expr string
		want string
	}{
		{"$.links[0].headers", "12\n"},
		{"$.links[*].name", "[\n  \"l0\",\n  \"l1\"\n]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			var buf bytes.Buffer
			r := NewRendererWithWriter(FormatJSON, false, &buf)
			if err := r.SetPath(tt.expr); err != nil {
				t.Fatalf("SetPath: %v", err)
			}
			if err := r.Render(data); err != nil {
				t.Fatalf("Render failed: %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatJSON, false, &buf)
	if err := r.SetPath("$.missing"); err != nil {
		t.Fatalf("SetPath: %v", err)
	}
	if err := r.Render(data); err == nil {
		t.Error("expected error when the path matches nothing")
	}
	if err := r.SetPath("$[[["); err == nil {
		t.Error("expected parse error")
	}
}

func TestRenderer_Table_GenericSlice(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, false, &buf)

	data := []any{
		map[string]any{"link": "l0", "headers": int64(12)},
		map[string]any{"link": "l1", "headers": int64(4)},
	}
	if err := r.Render(data); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "headers") || !strings.Contains(lines[1], "l0") {
		t.Errorf("table = %q", buf.String())
	}
}

func TestRenderer_Table_HiddenFieldsAndTime(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, false, &buf)

	type row struct {
		Link    string    `json:"link"`
		Secret  string    `json:"-"`
		At      time.Time `json:"at"`
		Pending *int      `json:"pending,omitempty"`
		note    string
	}
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	if err := r.Render([]row{{Link: "l0", Secret: "s3cr3t", At: at, note: "x"}}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("table = %q", buf.String())
	}
	if got := strings.Fields(lines[0]); !slices.Equal(got, []string{"link", "at", "pending"}) {
		t.Errorf("header = %v", got)
	}
	if strings.Contains(buf.String(), "s3cr3t") {
		t.Error("json:\"-\" field rendered")
	}
	if !strings.Contains(lines[1], "2026-10-19T12:00:00Z") {
		t.Errorf("row = %q", lines[1])
	}
}
