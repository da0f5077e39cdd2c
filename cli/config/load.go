package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML file at path. See Decode.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode expands environment references in the document and decodes it
// over Default(). Unknown keys are rejected and an empty document yields
// the defaults.
func Decode(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(strings.NewReader(ExpandEnv(string(raw))))
	dec.KnownFields(true)
	switch err := dec.Decode(&cfg); {
	case err == nil, errors.Is(err, io.EOF):
		return &cfg, nil
	default:
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
}
