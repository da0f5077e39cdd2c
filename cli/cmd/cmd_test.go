package cmd

import (
	"slices"
	"testing"
)

func TestReadOnlyFlags_IncludesTUI(t *testing.T) {
	flags := ReadOnlyFlags()

	hasTUI := false
	for _, f := range flags {
		if f.Names()[0] == "tui" {
			hasTUI = true
			break
		}
	}

	if !hasTUI {
		t.Error("ReadOnlyFlags should include --tui flag for explicit error handling")
	}
}

func TestTUIReadOnlyFlags_IncludesTUI(t *testing.T) {
	flags := TUIReadOnlyFlags()

	hasTUI := false
	for _, f := range flags {
		if f.Names()[0] == "tui" {
			hasTUI = true
			break
		}
	}

	if !hasTUI {
		t.Error("TUIReadOnlyFlags should include --tui flag")
	}
}

func TestReadOnlyFlags_IncludesPath(t *testing.T) {
	var names []string
	for _, f := range ReadOnlyFlags() {
		names = append(names, f.Names()[0])
	}
	for _, want := range []string{"format", "no-color", "path"} {
		if !slices.Contains(names, want) {
			t.Errorf("ReadOnlyFlags missing --%s, got %v", want, names)
		}
	}
}

func TestGridFlags(t *testing.T) {
	var names []string
	for _, f := range gridFlags() {
		names = append(names, f.Names()[0])
	}
	want := []string{"first-orbit", "orbits-per-hbf", "hbf-per-tf"}
	if !slices.Equal(names, want) {
		t.Errorf("gridFlags = %v, want %v", names, want)
	}
}
