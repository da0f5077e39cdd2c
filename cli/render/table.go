package render

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"text/tabwriter"
	"time"
)

// cell is one named value of a struct or map.
type cell struct {
	name, value string
}

// renderTable prints a slice as columns under a header row and anything
// else as "name: value" lines.
func (r *Renderer) renderTable(data any) error {
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	v := indirect(reflect.ValueOf(data))
	if v.Kind() == reflect.Slice || v.Kind() == reflect.Array {
		writeRows(w, v)
	} else {
		writeRecord(w, v, data)
	}
	return w.Flush()
}

func writeRows(w *tabwriter.Writer, v reflect.Value) {
	if v.Len() == 0 {
		fmt.Fprintln(w, "(no results)")
		return
	}

	var header []string
	for _, c := range cells(v.Index(0)) {
		header = append(header, c.name)
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))

	for i := range v.Len() {
		byName := make(map[string]string, len(header))
		for _, c := range cells(v.Index(i)) {
			byName[c.name] = c.value
		}
		row := make([]string, len(header))
		for j, name := range header {
			row[j] = byName[name]
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
}

func writeRecord(w *tabwriter.Writer, v reflect.Value, data any) {
	switch v.Kind() {
	case reflect.Invalid:
		fmt.Fprintln(w, "(no results)")
	case reflect.Struct, reflect.Map:
		for _, c := range cells(v) {
			fmt.Fprintf(w, "%s:\t%s\n", c.name, c.value)
		}
	default:
		fmt.Fprintf(w, "%v\n", data)
	}
}

// cells flattens a struct (exported fields under their json names) or a
// map (keys in sorted order). Other kinds have no cells.
func cells(v reflect.Value) []cell {
	v = indirect(v)
	var out []cell
	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := range t.NumField() {
			f := t.Field(i)
			name, ok := fieldName(f)
			if !ok {
				continue
			}
			out = append(out, cell{name, formatValue(v.Field(i))})
		}
	case reflect.Map:
		keys := v.MapKeys()
		slices.SortFunc(keys, func(a, b reflect.Value) int {
			return strings.Compare(fmt.Sprint(a.Interface()), fmt.Sprint(b.Interface()))
		})
		for _, k := range keys {
			out = append(out, cell{fmt.Sprint(k.Interface()), formatValue(v.MapIndex(k))})
		}
	}
	return out
}

// fieldName returns the json name of an exported field, or its lowercased
// Go name. Fields tagged "-" are hidden.
func fieldName(f reflect.StructField) (string, bool) {
	if !f.IsExported() {
		return "", false
	}
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return "", false
	case "":
		return strings.ToLower(f.Name), true
	}
	return name, true
}

var timeType = reflect.TypeFor[time.Time]()

// formatValue renders one cell. Collections collapse to a count.
func formatValue(v reflect.Value) string {
	v = indirect(v)
	if !v.IsValid() {
		return ""
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "[]"
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		if v.Len() == 0 {
			return "{}"
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Struct:
		if v.Type() == timeType {
			return v.Interface().(time.Time).Format(time.RFC3339)
		}
		return "{...}"
	}
	return fmt.Sprint(v.Interface())
}

// indirect unwraps interfaces and pointers. A nil pointer becomes the
// zero Value.
func indirect(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}
