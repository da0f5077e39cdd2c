// Package render provides centralized output rendering for the hbframe CLI.
//
// Format selection rules:
//   - If output is a TTY, default to table
//   - If output is not a TTY, default to json
//   - --format flag always overrides defaults
//   - Invalid formats are errors
//
// A --path JSONPath expression narrows the payload before any format is
// applied. Text output prints values that implement Texter verbatim and
// falls back to table for everything else.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"slices"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/justapithecus/hbframe/cli/tui"
)

// Format represents an output format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
	FormatText  Format = "text"
)

// Texter is implemented by payloads with a native line-oriented rendering.
type Texter interface {
	Text() string
}

// formats lists the accepted --format values.
var formats = []Format{FormatJSON, FormatTable, FormatYAML, FormatText}

// ParseFormat parses a --format value. The empty string is returned as is
// so the caller can pick a default.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(s))
	if f == "" || slices.Contains(formats, f) {
		return f, nil
	}
	return "", fmt.Errorf("invalid format: %q (must be json, table, yaml, or text)", s)
}

// Renderer handles output formatting.
type Renderer struct {
	format  Format
	noColor bool
	out     io.Writer
	path    jp.Expr
}

// NewRenderer creates a renderer from CLI context.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	return NewRendererWithDefault(c, "")
}

// NewRendererWithDefault is NewRenderer with a command-specific default
// format used when --format is not given. An empty def keeps TTY detection.
func NewRendererWithDefault(c *cli.Context, def Format) (*Renderer, error) {
	formatStr := c.String("format")
	format, err := ParseFormat(formatStr)
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = def
	}

	// Apply default format based on TTY detection
	if format == "" {
		if isTTY(os.Stdout) {
			format = FormatTable
		} else {
			format = FormatJSON
		}
	}

	r := &Renderer{
		format:  format,
		noColor: c.Bool("no-color"),
		out:     os.Stdout,
	}
	if expr := c.String("path"); expr != "" {
		if err := r.SetPath(expr); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// SetPath sets a JSONPath expression applied to every rendered payload.
func (r *Renderer) SetPath(expr string) error {
	x, err := jp.ParseString(expr)
	if err != nil {
		return fmt.Errorf("invalid --path expression %q: %w", expr, err)
	}
	r.path = x
	return nil
}

// NewRendererWithWriter creates a renderer with a custom writer (for testing).
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	return &Renderer{
		format:  format,
		noColor: noColor,
		out:     out,
	}
}

// Render outputs the data in the configured format.
func (r *Renderer) Render(data any) error {
	if r.path != nil {
		selected, err := r.selectPath(data)
		if err != nil {
			return err
		}
		data = selected
	}

	switch r.format {
	case FormatJSON:
		return r.renderJSON(data)
	case FormatTable:
		return r.renderTable(data)
	case FormatYAML:
		return r.renderYAML(data)
	case FormatText:
		return r.renderText(data)
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// RenderTUI initiates TUI mode for the given view type.
// The TUI shows the whole payload; --path does not apply.
func (r *Renderer) RenderTUI(viewType string, data any) error {
	if !tui.IsTUISupported(viewType) {
		return fmt.Errorf("--tui is not supported for %s", viewType)
	}
	return tui.Run(viewType, data)
}

// selectPath evaluates the JSONPath expression over the JSON form of data.
// A single match is returned bare, several as a list.
func (r *Renderer) selectPath(data any) (any, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	generic, err := oj.Parse(b)
	if err != nil {
		return nil, err
	}
	results := r.path.Get(generic)
	switch len(results) {
	case 0:
		return nil, fmt.Errorf("--path %s matched nothing", r.path)
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}

func (r *Renderer) renderText(data any) error {
	if t, ok := data.(Texter); ok {
		_, err := io.WriteString(r.out, t.Text())
		return err
	}
	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Slice && v.Len() > 0 {
		if _, ok := v.Index(0).Interface().(Texter); ok {
			for i := range v.Len() {
				if _, err := io.WriteString(r.out, v.Index(i).Interface().(Texter).Text()); err != nil {
					return err
				}
			}
			return nil
		}
	}
	return r.renderTable(data)
}

func (r *Renderer) renderJSON(data any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (r *Renderer) renderYAML(data any) error {
	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	return enc.Encode(data)
}

// isTTY returns true if the writer is a TTY.
func isTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
